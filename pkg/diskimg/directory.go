// file: pkg/diskimg/directory.go

package diskimg

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// DirectoryEntry is one 32-byte CBM DOS directory slot.
type DirectoryEntry struct {
	// FileType is the low nibble file-type code (0=DEL, 1=SEQ, 2=PRG,
	// 3=USR, 4=REL) with the closed bit (0x80) and locked bit (0x40) in
	// the high nibble. A type of 0 with Blocks > 0 is a tombstone: a
	// deleted entry still owning a block chain the BAM has not yet
	// reclaimed.
	FileType byte
	// FirstTrack, FirstSector locate the start of the file's T/S chain.
	FirstTrack, FirstSector int
	// Name is the PETSCII, 0xA0-padded 16-byte filename.
	Name [16]byte
	// RelSideTrack, RelSideSector locate a REL file's side-sector chain
	// (unused for other file types).
	RelSideTrack, RelSideSector int
	RelRecordLength             byte
	// LSU is the last-sector-used byte: for non-REL files, one more than
	// the number of payload bytes in the file's final block (the same
	// value as the terminal T/S link's sector byte); for REL files, the
	// record length.
	LSU byte
	// Year, Month, Day, Hour, Minute pack the entry's write timestamp.
	// Year is stored as calendar-year-minus-1900, per setTimestamp.
	Year, Month, Day, Hour, Minute byte
	// Blocks is the file size in whole 254-byte blocks.
	Blocks int

	slot int // index within its directory sector, set by ParseDirectory
	dirTrack, dirSector int
}

// Timestamp reconstructs the entry's write time from its packed
// year/month/day/hour/minute fields.
func (e *DirectoryEntry) Timestamp() time.Time {
	return time.Date(1900+int(e.Year), time.Month(e.Month), int(e.Day), int(e.Hour), int(e.Minute), 0, 0, time.UTC)
}

// setTimestamp packs t into the entry's year/month/day/hour/minute
// fields. A calendar year above 255 is reduced by 1900 before packing,
// per spec.md's write_entry rule.
func (e *DirectoryEntry) setTimestamp(t time.Time) {
	y := t.Year()
	if y > 255 {
		y -= 1900
	}
	if y < 0 {
		y = 0
	}
	if y > 255 {
		y = 255
	}
	e.Year = byte(y)
	e.Month = byte(t.Month())
	e.Day = byte(t.Day())
	e.Hour = byte(t.Hour())
	e.Minute = byte(t.Minute())
}

const (
	dirEntrySize    = 32
	entriesPerBlock = 8
)

// file type codes
const (
	FileTypeDEL = 0
	FileTypeSEQ = 1
	FileTypePRG = 2
	FileTypeUSR = 3
	FileTypeREL = 4
	FileTypeCBM = 5
	FileTypeDIR = 6

	fileTypeLockedBit = 0x40
	fileTypeClosedBit = 0x80
)

// IsTombstone reports whether the entry is a reclaimed-but-not-yet-freed
// slot: type byte 0 (DEL, unlocked, unclosed) but still owning blocks.
func (e *DirectoryEntry) IsTombstone() bool {
	return e.FileType == FileTypeDEL && e.Blocks > 0
}

// IsFree reports whether the slot is available for reuse: type byte 0
// and no owned blocks.
func (e *DirectoryEntry) IsFree() bool {
	return e.FileType == FileTypeDEL && e.Blocks == 0
}

// TypeCode returns the low-nibble file type, ignoring the locked/closed
// bits.
func (e *DirectoryEntry) TypeCode() byte { return e.FileType & 0x0F }

// FilenameASCII projects the entry's PETSCII name to an ASCII string for
// display.
func (e *DirectoryEntry) FilenameASCII() string { return a0ToASCII(e.Name[:]) }

// Directory is the parsed CBM directory: the ordered list of entries
// found by walking the directory's T/S-link chain, plus a dirty flag.
// AllocDirEntry grows the chain; Sync only rewrites its sectors.
type Directory struct {
	entries []*DirectoryEntry
	dirty   bool
}

// NewDirectory returns an empty directory backed by a single, freshly
// allocated first directory sector (the caller's geometry's DirTrack/
// DirSector).
func NewDirectory(g Geometry) *Directory {
	d := &Directory{}
	for i := 0; i < entriesPerBlock; i++ {
		d.entries = append(d.entries, &DirectoryEntry{dirTrack: g.DirTrack, dirSector: g.DirSector, slot: i})
	}
	d.dirty = true
	return d
}

// ParseDirectory walks img's directory T/S-link chain starting at its
// geometry's DirTrack/DirSector and decodes every 32-byte slot in every
// sector visited.
func ParseDirectory(img *Image) (*Directory, error) {
	d := &Directory{}
	g := img.Geometry
	t, s := g.DirTrack, g.DirSector
	seen := map[[2]int]bool{}
	for t != 0 {
		if seen[[2]int{t, s}] {
			return nil, errors.Wrapf(ErrInvalidImage, "ParseDirectory: cyclic chain at (%d,%d)", t, s)
		}
		seen[[2]int{t, s}] = true

		block, err := img.ReadBlock(t, s)
		if err != nil {
			return nil, errors.Wrapf(err, "ParseDirectory: reading sector (%d,%d)", t, s)
		}
		for i := 0; i < entriesPerBlock; i++ {
			off := i * dirEntrySize
			raw := block[off : off+dirEntrySize]
			e := decodeDirEntry(raw, t, s, i)
			d.entries = append(d.entries, e)
		}

		nt, ns, err := img.ReadTSLink(t, s)
		if err != nil {
			return nil, errors.Wrapf(err, "ParseDirectory: reading link at (%d,%d)", t, s)
		}
		t, s = nt, ns
	}
	return d, nil
}

func decodeDirEntry(raw []byte, t, s, slot int) *DirectoryEntry {
	e := &DirectoryEntry{
		FileType:        raw[0x02],
		FirstTrack:      int(raw[0x03]),
		FirstSector:     int(raw[0x04]),
		RelSideTrack:    int(raw[0x15]),
		RelSideSector:   int(raw[0x16]),
		RelRecordLength: raw[0x17],
		LSU:             raw[0x18],
		Year:            raw[0x19],
		Month:           raw[0x1A],
		Day:             raw[0x1B],
		Hour:            raw[0x1C],
		Minute:          raw[0x1D],
		Blocks:          int(raw[0x1E]) | int(raw[0x1F])<<8,
		dirTrack:        t,
		dirSector:       s,
		slot:            slot,
	}
	copy(e.Name[:], raw[0x05:0x05+16])
	return e
}

func encodeDirEntry(e *DirectoryEntry, nextTrack, nextSector int, out []byte) {
	// out must be dirEntrySize bytes, zeroed by the caller.
	if e.slot == 0 {
		out[0x00] = byte(nextTrack)
		out[0x01] = byte(nextSector)
	}
	out[0x02] = e.FileType
	out[0x03] = byte(e.FirstTrack)
	out[0x04] = byte(e.FirstSector)
	copy(out[0x05:0x05+16], e.Name[:])
	out[0x15] = byte(e.RelSideTrack)
	out[0x16] = byte(e.RelSideSector)
	out[0x17] = e.RelRecordLength
	out[0x18] = e.LSU
	out[0x19] = e.Year
	out[0x1A] = e.Month
	out[0x1B] = e.Day
	out[0x1C] = e.Hour
	out[0x1D] = e.Minute
	out[0x1E] = byte(e.Blocks & 0xFF)
	out[0x1F] = byte(e.Blocks >> 8)
}

// FindDirEntry returns the first entry whose type is strictly greater
// than lowType and whose name matches name, or ErrNotFound. Passing
// lowType=0 matches every entry with a nonzero type byte, including
// closed DEL (0x80) entries; tombstoned and free slots (type 0) never
// match. AllocDirEntry scans the entries directly instead.
func (d *Directory) FindDirEntry(name string, lowType byte) (*DirectoryEntry, error) {
	for _, e := range d.entries {
		if e.FileType <= lowType {
			continue
		}
		if petsciiEqualFold(e.Name[:], name) {
			return e, nil
		}
	}
	return nil, errors.Wrapf(ErrNotFound, "no directory entry for %q", name)
}

// List returns every active (non-free, non-tombstone) directory entry.
func (d *Directory) List() []*DirectoryEntry {
	var out []*DirectoryEntry
	for _, e := range d.entries {
		if !e.IsFree() && !e.IsTombstone() {
			out = append(out, e)
		}
	}
	return out
}

// AllocDirEntry returns a free or tombstoned slot for reuse, growing the
// directory chain by one sector if no existing slot is free. The new
// sector is always placed on the header/directory track, at
// (1 + (entryIndex/entriesPerBlock)*DirInterleave) mod sectorsPerTrack,
// probing forward by DirInterleave for the next free sector on that
// track if the computed one is already taken.
func (img *Image) AllocDirEntry() (*DirectoryEntry, error) {
	d := img.directory
	for _, e := range d.entries {
		if e.IsFree() {
			return e, nil
		}
		if e.IsTombstone() {
			if err := img.FreeChain(e.FirstTrack, e.FirstSector); err != nil {
				return nil, errors.Wrap(err, "AllocDirEntry: reclaiming tombstoned slot")
			}
			e.Blocks = 0
			e.FirstTrack, e.FirstSector = 0, 0
			return e, nil
		}
	}

	last := d.entries[len(d.entries)-1]
	lastTrack, lastSector := last.dirTrack, last.dirSector

	nt, ns, err := img.allocDirSector(len(d.entries))
	if err != nil {
		return nil, errors.Wrap(err, "AllocDirEntry: growing directory chain")
	}

	if err := img.WriteTSLink(lastTrack, lastSector, nt, ns); err != nil {
		return nil, errors.Wrap(err, "AllocDirEntry: linking new directory sector")
	}

	for i := 0; i < entriesPerBlock; i++ {
		d.entries = append(d.entries, &DirectoryEntry{dirTrack: nt, dirSector: ns, slot: i})
	}
	d.dirty = true
	return d.entries[len(d.entries)-entriesPerBlock], nil
}

// allocDirSector picks and marks used the next directory-track sector for
// growing the chain, following DirInterleave from the entryIndex-derived
// starting point and staying on the directory track throughout.
func (img *Image) allocDirSector(entryIndex int) (int, int, error) {
	g := img.Geometry
	dt := g.DirTrack
	spt, err := g.SectorsPerTrack(dt)
	if err != nil {
		return 0, 0, err
	}
	step := g.DirInterleave
	if step <= 0 {
		step = 1
	}
	start := (1 + (entryIndex/entriesPerBlock)*step) % spt
	for i := 0; i < spt; i++ {
		s := (start + i*step) % spt
		avail, err := img.bam.BlockAvailable(dt, s)
		if err != nil {
			return 0, 0, err
		}
		if avail {
			if err := img.bam.MarkBlocks(dt, s, true); err != nil {
				return 0, 0, err
			}
			return dt, s, nil
		}
	}
	return 0, 0, errors.Wrap(ErrNoFreeBlocks, "allocDirSector: directory track full")
}

// Rename changes e's filename in place, marking the directory dirty.
func (d *Directory) Rename(e *DirectoryEntry, newName string) {
	copy(e.Name[:], toA0(newName, 16))
	d.dirty = true
}

// Delete tombstones e: clears the file type to DEL but leaves Blocks and
// the T/S chain pointer intact, so the chain stays allocated in BAM
// until RevalidateBAM reclaims it or AllocDirEntry reuses this slot.
func (img *Image) Delete(e *DirectoryEntry) error {
	e.FileType = FileTypeDEL
	img.directory.dirty = true
	return nil
}

// Mkdir creates a subdirectory named name: allocates a single data
// block formatted as a terminal directory sector holding a ".." back-
// reference entry pointing at the current directory's first sector,
// then adds a type-DIR entry to the current directory pointing at that
// block.
func (img *Image) Mkdir(name string) error {
	name = normalizeFilename(name)
	if _, err := img.directory.FindDirEntry(name, FileTypeDEL); err == nil {
		return errors.Wrapf(ErrNameExists, "Mkdir(%q)", name)
	}

	blocks, err := img.bam.AllocateBlocks(1)
	if err != nil {
		return errors.Wrapf(err, "Mkdir(%q): allocating directory block", name)
	}
	dt, ds := blocks[0][0], blocks[0][1]

	backref := &DirectoryEntry{
		FileType:    FileTypeDIR | fileTypeClosedBit,
		FirstTrack:  img.Geometry.DirTrack,
		FirstSector: img.Geometry.DirSector,
	}
	copy(backref.Name[:], toA0("..", 16))
	buf := make([]byte, SectorSize)
	encodeDirEntry(backref, 0, 0xFF, buf[0:dirEntrySize])
	if err := img.WriteBlock(dt, ds, buf); err != nil {
		return errors.Wrapf(err, "Mkdir(%q): writing back-reference block", name)
	}

	slot, err := img.AllocDirEntry()
	if err != nil {
		return errors.Wrapf(err, "Mkdir(%q)", name)
	}
	slot.FileType = FileTypeDIR | fileTypeClosedBit
	slot.FirstTrack, slot.FirstSector = dt, ds
	slot.Blocks = 1
	copy(slot.Name[:], toA0(name, 16))
	img.directory.dirty = true
	return nil
}

// Sync writes every directory sector back to img, using each entry's
// recorded (dirTrack, dirSector, slot) position. It does not itself grow
// the chain; AllocDirEntry does that eagerly when needed.
func (d *Directory) Sync(img *Image) error {
	bySector := map[[2]int][]*DirectoryEntry{}
	order := [][2]int{}
	for _, e := range d.entries {
		key := [2]int{e.dirTrack, e.dirSector}
		if _, ok := bySector[key]; !ok {
			order = append(order, key)
		}
		bySector[key] = append(bySector[key], e)
	}

	for i, key := range order {
		entries := bySector[key]
		buf := make([]byte, SectorSize)
		var nextTrack, nextSector int
		if i+1 < len(order) {
			nextTrack, nextSector = order[i+1][0], order[i+1][1]
		}
		for _, e := range entries {
			off := e.slot * dirEntrySize
			encodeDirEntry(e, nextTrack, nextSector, buf[off:off+dirEntrySize])
		}
		if i+1 == len(order) {
			buf[0], buf[1] = 0, 0xFF
		}
		if err := img.WriteBlock(key[0], key[1], buf); err != nil {
			return errors.Wrapf(err, "Directory.Sync: writing sector (%d,%d)", key[0], key[1])
		}
	}
	d.dirty = false
	return nil
}

// normalizeFilename upper-cases and trims a host-provided filename for
// use as a CBM directory name, stripping any path separators.
func normalizeFilename(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	return strings.ToUpper(strings.TrimSpace(name))
}
