// file: pkg/diskimg/bam.go

package diskimg

import "github.com/pkg/errors"

// bamEntryWidth returns the byte width of one track's BAM entry: one
// free-sector-count byte followed by enough bitmap bytes to cover the
// widest zone in the geometry.
func bamEntryWidth(g Geometry) int {
	return 1 + (g.MaxSectorsPerTrack()+7)/8
}

// bamEntry is the free-sector-count and per-sector bitmap for one track.
type bamEntry struct {
	free int
	bits []byte // one bit per sector, LSB of bits[0] is sector 0
}

// BAM is the parsed Block Availability Map for an Image. Track indices
// are 1-based, matching CBM DOS numbering; a double-sided geometry's
// second-side tracks continue past TrackCount().
type BAM struct {
	geometry Geometry
	entries  []bamEntry // index 0 is track 1
}

func newBAM(g Geometry) *BAM {
	total := g.TrackCount() * g.SidesPerDisk
	entries := make([]bamEntry, total)
	width := (g.MaxSectorsPerTrack() + 7) / 8
	for i := range entries {
		entries[i].bits = make([]byte, width)
	}
	return &BAM{geometry: g, entries: entries}
}

func (b *BAM) entry(track int) (*bamEntry, error) {
	if track < 1 || track > len(b.entries) {
		return nil, errors.Wrapf(ErrGeometry, "track %d out of BAM range", track)
	}
	return &b.entries[track-1], nil
}

// InitBAM builds a fresh BAM for geometry g with every addressable
// sector marked free.
func InitBAM(g Geometry) (*BAM, error) {
	bam := newBAM(g)
	for t := 1; t <= len(bam.entries); t++ {
		spt, err := g.SectorsPerTrack(t)
		if err != nil {
			return nil, err
		}
		e := &bam.entries[t-1]
		e.free = spt
		for s := 0; s < spt; s++ {
			e.bits[s/8] |= 1 << uint(s%8)
		}
	}
	return bam, nil
}

// ParseBAM reads the BAM from img's on-disk sectors starting at its
// geometry's BAMPosition, walking BAMSectors sectors packed with
// bamEntryWidth-sized per-track records (the first sector's records
// start at Geometry.BAMLabelOffset; each later sector's at byte 2, after
// its T/S link).
func ParseBAM(img *Image) (*BAM, error) {
	g := img.Geometry
	bam := newBAM(g)
	width := bamEntryWidth(g)

	track, sector := g.BAMPosition()
	within := g.BAMLabelOffset

	for t := 1; t <= len(bam.entries); t++ {
		if within+width > SectorSize {
			nt, ns, err := img.ReadTSLink(track, sector)
			if err != nil {
				return nil, errors.Wrapf(err, "ParseBAM: walking to next BAM sector for track %d", t)
			}
			if nt == 0 {
				sector = sector + 1
			} else {
				track, sector = nt, ns
			}
			within = 2
		}
		raw, err := img.ReadBytes(track, sector, within, width)
		if err != nil {
			return nil, errors.Wrapf(err, "ParseBAM: reading track %d entry", t)
		}
		e := &bam.entries[t-1]
		e.free = int(raw[0])
		copy(e.bits, raw[1:])
		within += width
	}
	return bam, nil
}

// SyncBAM writes bam back to img's on-disk BAM sectors, mirroring the
// layout ParseBAM reads.
func (b *BAM) SyncBAM(img *Image) error {
	g := b.geometry
	width := bamEntryWidth(g)

	track, sector := g.BAMPosition()
	within := g.BAMLabelOffset

	if g.BAMLocation == BAMSpillsOver {
		img.emitDiagnostic(Diagnostic{Level: LevelWarning, Message: "1571 BAM spill-over sync uses the generic sector-count layout, not a side-B-relocated one"})
	}

	for t := 1; t <= len(b.entries); t++ {
		if within+width > SectorSize {
			nt, ns, err := img.ReadTSLink(track, sector)
			if err != nil {
				return errors.Wrapf(err, "SyncBAM: walking to next BAM sector for track %d", t)
			}
			if nt == 0 {
				sector = sector + 1
			} else {
				track, sector = nt, ns
			}
			within = 2
		}
		e := &b.entries[t-1]
		raw := make([]byte, width)
		raw[0] = byte(e.free)
		copy(raw[1:], e.bits)
		if err := img.WriteBytes(track, sector, within, raw); err != nil {
			return errors.Wrapf(err, "SyncBAM: writing track %d entry", t)
		}
		within += width
	}
	return nil
}

// BlockAvailable reports whether (track, sector) is currently free.
func (b *BAM) BlockAvailable(track, sector int) (bool, error) {
	e, err := b.entry(track)
	if err != nil {
		return false, err
	}
	byteIdx, bit := sector/8, byte(1<<uint(sector%8))
	if byteIdx >= len(e.bits) {
		return false, errors.Wrapf(ErrGeometry, "sector %d out of BAM bitmap range for track %d", sector, track)
	}
	return e.bits[byteIdx]&bit != 0, nil
}

// MarkBlocks sets (track, sector) used (used=true) or free (used=false),
// updating the track's free-sector count. It is ErrDoubleAlloc to mark an
// already-used block used, or to free an already-free block.
func (b *BAM) MarkBlocks(track, sector int, used bool) error {
	e, err := b.entry(track)
	if err != nil {
		return err
	}
	byteIdx, bit := sector/8, byte(1<<uint(sector%8))
	if byteIdx >= len(e.bits) {
		return errors.Wrapf(ErrGeometry, "sector %d out of BAM bitmap range for track %d", sector, track)
	}
	isFree := e.bits[byteIdx]&bit != 0
	if used {
		if !isFree {
			return errors.Wrapf(ErrDoubleAlloc, "track %d sector %d", track, sector)
		}
		e.bits[byteIdx] &^= bit
		e.free--
	} else {
		if isFree {
			return errors.Wrapf(ErrDoubleAlloc, "track %d sector %d already free", track, sector)
		}
		e.bits[byteIdx] |= bit
		e.free++
	}
	return nil
}

// FreeOnTrack returns the free-sector count for track, from the FSC byte
// (not recomputed from the bitmap; Validate cross-checks the two).
func (b *BAM) FreeOnTrack(track int) (int, error) {
	e, err := b.entry(track)
	if err != nil {
		return 0, err
	}
	return e.free, nil
}

// BlocksFree returns the total free-sector count across every track,
// excluding the header/directory track (which CBM DOS never reports as
// available capacity).
func (b *BAM) BlocksFree(dirTrack int) int {
	total := 0
	for t := 1; t <= len(b.entries); t++ {
		if t == dirTrack {
			continue
		}
		total += b.entries[t-1].free
	}
	return total
}

// popcount returns the number of set bits across bits.
func popcount(bits []byte) int {
	n := 0
	for _, b := range bits {
		for b != 0 {
			n += int(b & 1)
			b >>= 1
		}
	}
	return n
}

// zoneOrder returns track numbers in write-preferred order for a single
// side: tracks q1..q3-1 around the header/directory track first (the
// directory track itself excluded), then 1..q1-1, then q3 to the last
// track.
func zoneOrder(trackCount, dirTrack int) []int {
	mid := trackCount/2 + 1
	q1 := mid / 2
	q3 := 3 * q1

	order := make([]int, 0, trackCount)
	appendRange := func(lo, hi int) {
		for t := lo; t <= hi; t++ {
			if t >= 1 && t <= trackCount && t != dirTrack {
				order = append(order, t)
			}
		}
	}
	appendRange(q1, mid-1)
	appendRange(mid, q3-1)
	appendRange(1, q1-1)
	appendRange(q3, trackCount)
	return order
}

// AllocateBlocks reserves n free sectors from bam in write-preferred zone
// order (see DESIGN.md Open Question 3: file_interleave is not consulted
// here), returning their (track, sector) coordinates in allocation order.
// It marks each block used as it is chosen; on failure, blocks already
// marked in this call are rolled back.
func (b *BAM) AllocateBlocks(n int) ([][2]int, error) {
	g := b.geometry
	single := g.TrackCount()
	order := zoneOrder(single, g.DirTrack)
	if g.SidesPerDisk == 2 {
		second := make([]int, len(order))
		for i, t := range order {
			second[i] = t + single
		}
		order = append(order, second...)
	}

	var picked [][2]int
	for _, t := range order {
		if len(picked) >= n {
			break
		}
		spt, err := g.SectorsPerTrack(t)
		if err != nil {
			return nil, err
		}
		for s := 0; s < spt && len(picked) < n; s++ {
			avail, err := b.BlockAvailable(t, s)
			if err != nil {
				return nil, err
			}
			if !avail {
				continue
			}
			if err := b.MarkBlocks(t, s, true); err != nil {
				return nil, err
			}
			picked = append(picked, [2]int{t, s})
		}
	}
	if len(picked) < n {
		for _, ts := range picked {
			b.MarkBlocks(ts[0], ts[1], false)
		}
		return nil, errors.Wrapf(ErrNoFreeBlocks, "requested %d blocks, found %d", n, len(picked))
	}
	return picked, nil
}
