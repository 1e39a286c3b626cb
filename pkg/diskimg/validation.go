// file: pkg/diskimg/validation.go

package diskimg

import (
	"fmt"

	"github.com/pkg/errors"
)

// ValidationError names a single invariant violation found by Validate.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error - %s: %s", e.Field, e.Message)
}

// Validate checks the image's BAM and directory against the
// invariants CBM DOS relies on: the BAM's free-sector-count byte must
// match its bitmap's popcount for every track, every directory entry's
// T/S chain must stay within the image's addressable range, and no two
// active files may claim the same block.
func (img *Image) Validate() error {
	if err := img.validateBAMCounts(); err != nil {
		return err
	}
	if err := img.validateChainsInRange(); err != nil {
		return err
	}
	if err := img.validateNoOverlappingChains(); err != nil {
		return err
	}
	return nil
}

func (img *Image) validateBAMCounts() error {
	g := img.Geometry
	total := g.TrackCount() * g.SidesPerDisk
	for t := 1; t <= total; t++ {
		e, err := img.bam.entry(t)
		if err != nil {
			return err
		}
		spt, err := g.SectorsPerTrack(t)
		if err != nil {
			return err
		}
		want := popcount(e.bits)
		if want > spt {
			want = spt
		}
		if e.free != want {
			return &ValidationError{
				Field:   fmt.Sprintf("BAM.track[%d]", t),
				Message: fmt.Sprintf("free-sector-count byte says %d, bitmap popcount says %d", e.free, want),
			}
		}
	}
	return nil
}

func (img *Image) validateChainsInRange() error {
	for _, e := range img.directory.List() {
		t, s := e.FirstTrack, e.FirstSector
		seen := map[[2]int]bool{}
		for t != 0 {
			if seen[[2]int{t, s}] {
				return &ValidationError{Field: e.FilenameASCII(), Message: "cyclic T/S chain"}
			}
			seen[[2]int{t, s}] = true
			if _, err := img.Geometry.GetSectorOffset(t, s); err != nil {
				return &ValidationError{Field: e.FilenameASCII(), Message: fmt.Sprintf("chain references out-of-range block (%d,%d)", t, s)}
			}
			nt, ns, err := img.ReadTSLink(t, s)
			if err != nil {
				return &ValidationError{Field: e.FilenameASCII(), Message: err.Error()}
			}
			t, s = nt, ns
		}
	}
	return nil
}

func (img *Image) validateNoOverlappingChains() error {
	owner := map[[2]int]string{}
	for _, e := range img.directory.List() {
		t, s := e.FirstTrack, e.FirstSector
		for t != 0 {
			key := [2]int{t, s}
			if prev, ok := owner[key]; ok {
				return &ValidationError{Field: e.FilenameASCII(), Message: fmt.Sprintf("block (%d,%d) also claimed by %q", t, s, prev)}
			}
			owner[key] = e.FilenameASCII()
			nt, ns, err := img.ReadTSLink(t, s)
			if err != nil {
				return &ValidationError{Field: e.FilenameASCII(), Message: err.Error()}
			}
			t, s = nt, ns
		}
	}
	return nil
}

// RevalidateBAM rebuilds the BAM from scratch by walking every active
// directory entry's chain and marking its blocks used, leaving every
// other block free. This discards whatever the on-disk BAM currently
// says and is the recovery path for an image whose BAM has drifted out
// of sync with its directory (a corrupted BAM, or one written by a tool
// that does not track allocation correctly). It also clears every
// tombstoned directory entry to free, completing the reclaim spec.md
// §4.10 describes: their blocks are excluded from the walk below, so
// they come back free in the rebuilt BAM, and the slot itself becomes
// reusable without AllocDirEntry needing to free the (now already
// free) chain again.
func (img *Image) RevalidateBAM() error {
	g := img.Geometry
	fresh, err := InitBAM(g)
	if err != nil {
		return errors.Wrap(err, "RevalidateBAM")
	}

	mark := func(t, s int) error {
		avail, err := fresh.BlockAvailable(t, s)
		if err != nil {
			return err
		}
		if avail {
			return fresh.MarkBlocks(t, s, true)
		}
		return nil
	}

	if err := mark(g.HeaderTrack, g.HeaderSector); err != nil {
		return errors.Wrap(err, "RevalidateBAM: header")
	}
	bt, bs := g.BAMPosition()
	for i := 0; i < g.BAMSectors; i++ {
		if err := mark(bt, bs+i); err != nil {
			return errors.Wrap(err, "RevalidateBAM: bam sector")
		}
	}

	dirTrack, dirSector := g.DirTrack, g.DirSector
	seen := map[[2]int]bool{}
	for dirTrack != 0 && !seen[[2]int{dirTrack, dirSector}] {
		seen[[2]int{dirTrack, dirSector}] = true
		if err := mark(dirTrack, dirSector); err != nil {
			return errors.Wrap(err, "RevalidateBAM: directory sector")
		}
		nt, ns, err := img.ReadTSLink(dirTrack, dirSector)
		if err != nil {
			return errors.Wrap(err, "RevalidateBAM: walking directory chain")
		}
		dirTrack, dirSector = nt, ns
	}

	for _, e := range img.directory.List() {
		t, s := e.FirstTrack, e.FirstSector
		visited := map[[2]int]bool{}
		for t != 0 {
			if visited[[2]int{t, s}] {
				return errors.Wrapf(ErrInvalidImage, "RevalidateBAM: cyclic chain for %q", e.FilenameASCII())
			}
			visited[[2]int{t, s}] = true
			if err := mark(t, s); err != nil {
				return errors.Wrapf(err, "RevalidateBAM: file %q", e.FilenameASCII())
			}
			nt, ns, err := img.ReadTSLink(t, s)
			if err != nil {
				return errors.Wrapf(err, "RevalidateBAM: file %q", e.FilenameASCII())
			}
			t, s = nt, ns
		}
	}

	for _, e := range img.directory.entries {
		if e.IsTombstone() {
			e.Blocks = 0
			e.FirstTrack, e.FirstSector = 0, 0
			img.directory.dirty = true
		}
	}

	img.bam = fresh
	img.emitDiagnostic(Diagnostic{Level: LevelInfo, Message: "BAM rebuilt from directory chain walk"})
	return nil
}
