// file: pkg/diskimg/fileio.go

package diskimg

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ReadProgramByFilename returns the payload bytes of the active
// directory entry named name.
func (img *Image) ReadProgramByFilename(name string) ([]byte, error) {
	e, err := img.directory.FindDirEntry(name, fileTypeClosedBit)
	if err != nil {
		return nil, errors.Wrapf(err, "ReadProgramByFilename(%q)", name)
	}
	return img.ReadChain(e.FirstTrack, e.FirstSector)
}

// ReadProgramByIndex returns the payload bytes of the nth active
// directory entry (0-based, in directory scan order).
func (img *Image) ReadProgramByIndex(index int) ([]byte, error) {
	e, err := img.dirEntryByIndex(index)
	if err != nil {
		return nil, err
	}
	return img.ReadChain(e.FirstTrack, e.FirstSector)
}

func (img *Image) dirEntryByIndex(index int) (*DirectoryEntry, error) {
	active := img.directory.List()
	if index < 0 || index >= len(active) {
		return nil, errors.Wrapf(ErrNotFound, "index %d: only %d entries", index, len(active))
	}
	return active[index], nil
}

// fileTypeExtension returns the three-letter type suffix used in
// timestamped host filenames.
func fileTypeExtension(fileType byte) string {
	switch fileType & 0x0F {
	case FileTypeSEQ:
		return "SEQ"
	case FileTypePRG:
		return "PRG"
	case FileTypeUSR:
		return "USR"
	case FileTypeREL:
		return "REL"
	case FileTypeCBM:
		return "CBM"
	case FileTypeDIR:
		return "DIR"
	default:
		return "DEL"
	}
}

// WriteProgram allocates a new T/S chain for data and adds a directory
// entry named name with the given file type and write timestamp. It is
// ErrNameExists if an active entry with that name already exists.
func (img *Image) WriteProgram(name string, fileType byte, data []byte, date time.Time) error {
	if len(data) == 0 {
		return errors.Wrapf(ErrEmptyFile, "WriteProgram(%q)", name)
	}
	name = normalizeFilename(name)
	if _, err := img.directory.FindDirEntry(name, FileTypeDEL); err == nil {
		return errors.Wrapf(ErrNameExists, "WriteProgram(%q)", name)
	}

	slot, err := img.AllocDirEntry()
	if err != nil {
		return errors.Wrapf(err, "WriteProgram(%q)", name)
	}

	firstTrack, firstSector, blocks, err := img.WriteChain(data)
	if err != nil {
		return errors.Wrapf(err, "WriteProgram(%q)", name)
	}

	lastChunk := len(data) - (blocks-1)*payloadSize

	slot.FileType = fileType | fileTypeClosedBit
	slot.FirstTrack, slot.FirstSector = firstTrack, firstSector
	slot.Blocks = blocks
	slot.LSU = byte(lastChunk + 1)
	slot.setTimestamp(date)
	copy(slot.Name[:], toA0(name, 16))
	img.directory.dirty = true
	return nil
}

// timestampedFilenamePattern matches the <name>.YYYY-MM-DD-HH-MM.<TYPE>
// convention read_store_program_by_index writes and
// write_program_from_file parses back.
var timestampedFilenamePattern = regexp.MustCompile(`^(.+)\.(\d{4})-(\d{2})-(\d{2})-(\d{2})-(\d{2})\.([A-Za-z]+)$`)

func fileTypeFromExtension(ext string) (byte, bool) {
	switch strings.ToUpper(ext) {
	case "SEQ":
		return FileTypeSEQ, true
	case "PRG":
		return FileTypePRG, true
	case "USR":
		return FileTypeUSR, true
	case "REL":
		return FileTypeREL, true
	case "CBM":
		return FileTypeCBM, true
	case "DIR":
		return FileTypeDIR, true
	default:
		return 0, false
	}
}

// simpleFilenamePattern matches the <name>.<TYPE> fallback convention
// write_program_from_file accepts when no timestamp is present.
var simpleFilenamePattern = regexp.MustCompile(`^(.+)\.([A-Za-z]+)$`)

// parseSimpleFilename parses hostPath's base name against the
// <name>.<TYPE> fallback convention. ok is false if the extension is
// not a recognized CBM file type.
func parseSimpleFilename(hostPath string) (name string, fileType byte, ok bool) {
	base := filepath.Base(hostPath)
	m := simpleFilenamePattern.FindStringSubmatch(base)
	if m == nil {
		return "", 0, false
	}
	ft, known := fileTypeFromExtension(m[2])
	if !known {
		return "", 0, false
	}
	return m[1], ft, true
}

// parseTimestampedFilename parses the base name of hostPath against the
// <name>.YYYY-MM-DD-HH-MM.<TYPE> convention. ok is false if hostPath
// does not match, in which case the caller falls back to <name>.<TYPE>
// with the current time.
func parseTimestampedFilename(hostPath string) (name string, fileType byte, date time.Time, ok bool) {
	base := filepath.Base(hostPath)
	m := timestampedFilenamePattern.FindStringSubmatch(base)
	if m == nil {
		return "", 0, time.Time{}, false
	}
	ft, known := fileTypeFromExtension(m[7])
	if !known {
		return "", 0, time.Time{}, false
	}
	year, _ := strconv.Atoi(m[2])
	month, _ := strconv.Atoi(m[3])
	day, _ := strconv.Atoi(m[4])
	hour, _ := strconv.Atoi(m[5])
	minute, _ := strconv.Atoi(m[6])
	return m[1], ft, time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC), true
}

// WriteProgramFromFile is the inverse of ExportProgramByIndex: it reads
// hostPath and writes it into the image with the given fileType. If
// hostPath's base name matches the <name>.YYYY-MM-DD-HH-MM.<TYPE>
// convention, the write timestamp is parsed from it, and so is the
// on-disk name when name is empty. Otherwise the timestamp is the
// current time, and an empty name is taken from the <name>.<TYPE>
// convention if it matches, else from hostPath's base name.
func (img *Image) WriteProgramFromFile(hostPath, name string, fileType byte) error {
	data, err := os.ReadFile(hostPath)
	if err != nil {
		return errors.Wrapf(ErrIO, "WriteProgramFromFile(%s): %v", hostPath, err)
	}

	date := time.Now()
	if parsedName, _, parsedDate, ok := parseTimestampedFilename(hostPath); ok {
		date = parsedDate
		if name == "" {
			name = parsedName
		}
	} else if parsedName, _, ok := parseSimpleFilename(hostPath); ok {
		if name == "" {
			name = parsedName
		}
	} else if name == "" {
		name = normalizeFilename(hostPath)
	}

	return img.WriteProgram(name, fileType, data, date)
}

// ExportProgram writes the named entry's payload out to hostPath.
func (img *Image) ExportProgram(name, hostPath string) error {
	data, err := img.ReadProgramByFilename(name)
	if err != nil {
		return errors.Wrapf(err, "ExportProgram(%q)", name)
	}
	if err := os.WriteFile(hostPath, data, 0644); err != nil {
		return errors.Wrapf(ErrIO, "ExportProgram(%q): writing %s: %v", name, hostPath, err)
	}
	return nil
}

// ExportProgramByIndex extracts the nth active directory entry into
// destDir, naming the host file <name>.YYYY-MM-DD-HH-MM.<TYPE> from the
// entry's own write timestamp and file type. It returns the full path
// written.
func (img *Image) ExportProgramByIndex(index int, destDir string) (string, error) {
	e, err := img.dirEntryByIndex(index)
	if err != nil {
		return "", errors.Wrapf(err, "ExportProgramByIndex(%d)", index)
	}
	data, err := img.ReadChain(e.FirstTrack, e.FirstSector)
	if err != nil {
		return "", errors.Wrapf(err, "ExportProgramByIndex(%d)", index)
	}

	ts := e.Timestamp()
	filename := fmt.Sprintf("%s.%04d-%02d-%02d-%02d-%02d.%s",
		e.FilenameASCII(), ts.Year(), ts.Month(), ts.Day(), ts.Hour(), ts.Minute(), fileTypeExtension(e.FileType))
	outPath := filepath.Join(destDir, filename)

	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return "", errors.Wrapf(ErrIO, "ExportProgramByIndex(%d): writing %s: %v", index, outPath, err)
	}
	return outPath, nil
}

// Rename changes the active entry named oldName to newName.
func (img *Image) Rename(oldName, newName string) error {
	e, err := img.directory.FindDirEntry(oldName, fileTypeClosedBit-1)
	if err != nil {
		return errors.Wrapf(err, "Rename(%q)", oldName)
	}
	if _, err := img.directory.FindDirEntry(newName, FileTypeDEL); err == nil {
		return errors.Wrapf(ErrNameExists, "Rename: target %q", newName)
	}
	img.directory.Rename(e, normalizeFilename(newName))
	return nil
}
