// file: pkg/diskimg/directory_test.go

package diskimg

import (
	"testing"
)

// TestLSUAndTimestampRoundTrip reproduces spec.md's S2 scenario: a
// 40-byte program written with a known timestamp reports LSU=41 (the
// payload length plus one) and its directory entry's packed
// year/month/day/hour/minute decode back to the write timestamp.
func TestLSUAndTimestampRoundTrip(t *testing.T) {
	img, err := Create("d64", "LSU TEST", "lt")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	data := make([]byte, 40)
	for i := range data {
		data[i] = byte(i)
	}
	if err := img.WriteProgram("FORTY", FileTypePRG, data, testDate); err != nil {
		t.Fatalf("WriteProgram: %v", err)
	}

	e, err := img.Directory().FindDirEntry("FORTY", FileTypeDEL)
	if err != nil {
		t.Fatalf("FindDirEntry: %v", err)
	}
	if e.LSU != 41 {
		t.Errorf("LSU = %d, want 41 for a 40-byte payload", e.LSU)
	}
	if !e.Timestamp().Equal(testDate) {
		t.Errorf("Timestamp() = %v, want %v", e.Timestamp(), testDate)
	}

	if err := img.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	reparsed, err := ParseDirectory(img)
	if err != nil {
		t.Fatalf("ParseDirectory: %v", err)
	}
	re, err := reparsed.FindDirEntry("FORTY", FileTypeDEL)
	if err != nil {
		t.Fatalf("FindDirEntry after reparse: %v", err)
	}
	if re.LSU != 41 {
		t.Errorf("reparsed LSU = %d, want 41", re.LSU)
	}
	if !re.Timestamp().Equal(testDate) {
		t.Errorf("reparsed Timestamp() = %v, want %v", re.Timestamp(), testDate)
	}
}

// TestLSUMultiBlock confirms LSU tracks the final block's payload length,
// not the whole file's, once a file spans more than one T/S chain block.
func TestLSUMultiBlock(t *testing.T) {
	img, err := Create("d64", "LSU TEST", "lt")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	data := make([]byte, payloadSize+10)
	if err := img.WriteProgram("BIG", FileTypePRG, data, testDate); err != nil {
		t.Fatalf("WriteProgram: %v", err)
	}

	e, err := img.Directory().FindDirEntry("BIG", FileTypeDEL)
	if err != nil {
		t.Fatalf("FindDirEntry: %v", err)
	}
	if e.LSU != 11 {
		t.Errorf("LSU = %d, want 11 for a %d-byte payload spanning two blocks", e.LSU, len(data))
	}
	if e.Blocks != 2 {
		t.Errorf("Blocks = %d, want 2", e.Blocks)
	}
}
