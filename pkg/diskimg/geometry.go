// file: pkg/diskimg/geometry.go

package diskimg

import "github.com/pkg/errors"

// BAMLocation describes where a geometry keeps its Block Availability Map
// relative to the header/directory track.
type BAMLocation int

const (
	// BAMOnHeader means the BAM lives in the same sector as the disk
	// header (1541/2040-family single-sector HDR+BAM).
	BAMOnHeader BAMLocation = iota
	// BAMFollowsHeader means the BAM occupies one or more sectors
	// immediately following the header sector.
	BAMFollowsHeader
	// BAMTrackBeforeHeader means the BAM lives on the track preceding the
	// header track (8050/8250-family).
	BAMTrackBeforeHeader
	// BAMSpillsOver means the BAM does not fit in the sectors normally
	// reserved for it and spills onto a second location (1571 side B).
	// spec.md's own source material flags this behavior as unreliable;
	// see DESIGN.md Open Question 4.
	BAMSpillsOver
	// BAMStealsFromZones means the drive family (9000-series) encodes
	// track/sector T/S links with a nonstandard 10-bit track field,
	// borrowing bits from what would otherwise be zone-table headroom.
	// See DESIGN.md Open Question 5.
	BAMStealsFromZones
)

// Zone is a contiguous run of tracks sharing the same sector count.
type Zone struct {
	// HighTrack is the last (1-based) track number in this zone.
	HighTrack int
	// SectorsPerTrack is the sector count for every track in the zone.
	SectorsPerTrack int
}

// Geometry is the immutable parameter set describing one CBM disk drive
// family: its zone table, header/BAM/directory placement, and interleave
// hints. Catalog Geometry values are constructed once, in the
// package-level table below; BuildCustomGeometry constructs others from
// an X64 custom geometry parameter block. None is mutated afterwards.
type Geometry struct {
	// Name is the human-readable drive family name, e.g. "1541".
	Name string
	// Extension is the conventional image file extension, without a dot.
	Extension string
	// Zones lists up to four track ranges of constant sector count, in
	// ascending track order. Track numbering is 1-based.
	Zones []Zone
	// SidesPerDisk is 1 for single-sided drives, 2 for double-sided
	// (1571/8250) drives; a second side repeats the
	// zone table starting after TrackCount() tracks.
	SidesPerDisk int
	// HeaderTrack and HeaderSector locate the disk header (label, ID,
	// DOS type) sector.
	HeaderTrack, HeaderSector int
	// BAMLocation selects how the BAM is laid out relative to HeaderTrack.
	BAMLocation BAMLocation
	// BAMSectors is the number of sectors the BAM occupies (1 for the
	// 1541/2040; more for the double-sided and larger geometries).
	BAMSectors int
	// DirTrack and DirSector locate the first directory sector.
	DirTrack, DirSector int
	// DirInterleave and FileInterleave are the sector-stagger hints CBM
	// DOS uses for directory growth and file data, respectively.
	// FileInterleave is stored but not consulted by the block allocator;
	// see DESIGN.md Open Question 3.
	DirInterleave, FileInterleave int
	// DiskNameOffset and DiskIDOffset are the byte offsets, within the
	// header sector, of the 16-byte disk name and 2-byte disk ID fields.
	DiskNameOffset, DiskIDOffset int
	// DOSType is the two-PETSCII-byte DOS version marker written to the
	// header (e.g. "2A" for 1541).
	DOSType string
	// StealsFromZones is true for 9000-series geometries whose T/S links
	// need the 10-bit track adjustment; see adjustLinkRead/adjustLinkWrite.
	StealsFromZones bool

	// BAMLabelOffset is the number of header-prefix bytes (T/S link plus
	// drive-specific bytes) each BAM sector reserves before its first
	// per-track FSC+bitmap row.
	BAMLabelOffset int
	// BAMInterleave is stored for X64 round-tripping but not consulted by
	// the block allocator, matching FileInterleave's status.
	BAMInterleave int
	// TracksPerBAMSector is stored for X64 round-tripping; this package
	// always derives BAM sector boundaries from BAMSectors instead.
	TracksPerBAMSector int
	// BootTrack is stored for X64 round-tripping; booting is out of scope.
	BootTrack int
	// IsCustom marks a Geometry built from an X64 custom geometry
	// parameter block rather than looked up from the catalog table.
	IsCustom bool
}

// SectorSize is fixed at 256 bytes for every CBM geometry this package
// supports; only the zone table and sector count vary.
const SectorSize = 256

// TrackCount returns the number of tracks in one side of the geometry.
func (g Geometry) TrackCount() int {
	if len(g.Zones) == 0 {
		return 0
	}
	return g.Zones[len(g.Zones)-1].HighTrack
}

// SectorsPerTrack returns the sector count for track (1-based, wrapping
// past TrackCount() onto side two for double-sided geometries).
func (g Geometry) SectorsPerTrack(track int) (int, error) {
	t := track
	single := g.TrackCount()
	if g.SidesPerDisk == 2 && t > single {
		t -= single
	}
	low := 1
	for _, z := range g.Zones {
		if t >= low && t <= z.HighTrack {
			return z.SectorsPerTrack, nil
		}
		low = z.HighTrack + 1
	}
	return 0, errors.Wrapf(ErrGeometry, "track %d out of range for %s", track, g.Name)
}

// MaxSectorsPerTrack returns the largest sector count across all zones,
// used to size fixed-width BAM bitmap rows.
func (g Geometry) MaxSectorsPerTrack() int {
	max := 0
	for _, z := range g.Zones {
		if z.SectorsPerTrack > max {
			max = z.SectorsPerTrack
		}
	}
	return max
}

// SectorCount returns the total addressable sector count across all
// sides of the geometry.
func (g Geometry) SectorCount() int {
	total := 0
	low := 1
	for _, z := range g.Zones {
		total += (z.HighTrack - low + 1) * z.SectorsPerTrack
		low = z.HighTrack + 1
	}
	return total * g.SidesPerDisk
}

// ImageSize returns the total byte size of a raw (non-X64) image using
// this geometry.
func (g Geometry) ImageSize() int {
	return g.SectorCount() * SectorSize
}

// GetSectorOffset returns the byte offset of (track, sector) within a
// raw image buffer using this geometry, or ErrGeometry if either
// coordinate is out of range.
func (g Geometry) GetSectorOffset(track, sector int) (int, error) {
	spt, err := g.SectorsPerTrack(track)
	if err != nil {
		return 0, err
	}
	if sector < 0 || sector >= spt {
		return 0, errors.Wrapf(ErrGeometry, "sector %d out of range for track %d (%s, %d sectors/track)", sector, track, g.Name, spt)
	}

	single := g.TrackCount()
	side := 0
	t := track
	if g.SidesPerDisk == 2 && t > single {
		side = 1
		t -= single
	}

	offset := 0
	low := 1
	for _, z := range g.Zones {
		if t <= z.HighTrack {
			offset += (t - low) * z.SectorsPerTrack
			break
		}
		offset += (z.HighTrack - low + 1) * z.SectorsPerTrack
		low = z.HighTrack + 1
	}
	offset += sector

	if side == 1 {
		offset += g.SectorCount() / g.SidesPerDisk
	}

	return offset * SectorSize, nil
}

// BAMPosition returns the (track, sector) of the first BAM sector for
// this geometry.
func (g Geometry) BAMPosition() (int, int) {
	switch g.BAMLocation {
	case BAMOnHeader:
		return g.HeaderTrack, 0
	case BAMFollowsHeader:
		return g.HeaderTrack, 1
	case BAMTrackBeforeHeader:
		return g.HeaderTrack - 1, 0
	case BAMSpillsOver:
		return g.HeaderTrack, 0
	case BAMStealsFromZones:
		return g.HeaderTrack - 1, 0
	default:
		return g.HeaderTrack, g.HeaderSector
	}
}

// CustomGeometryParams mirrors the 22-byte X64 custom geometry parameter
// block (spec.md §6): the same fields an X64 header carries when its
// device byte is 0xFF. parseCustomGeometryBlock decodes a header into
// one, and it is the input to BuildCustomGeometry and the create_custom
// entry point (CreateCustomFromParams).
type CustomGeometryParams struct {
	// DOSType is the two-PETSCII-byte DOS version marker.
	DOSType string
	// HeaderDirTrack is used as both HeaderTrack and DirTrack: every
	// catalog geometry in this package keeps the two on the same track.
	HeaderDirTrack int
	// HeaderLabelOffset becomes DiskNameOffset; DiskIDOffset is derived
	// as HeaderLabelOffset+18.
	HeaderLabelOffset int
	DirInterleave     int
	FileInterleave    int
	BAMLabelOffset    int
	// Zones holds up to four zone pairs; a zone with HighTrack==0 is
	// absent.
	Zones              [4]Zone
	BAMInterleave      int
	BAMLocationFlag    byte
	BAMSectorCount     int
	TracksPerBAMSector int
	BootTrack          int
}

// BuildCustomGeometry constructs a Geometry from a CustomGeometryParams
// block, the same construction the X64 loader performs when it finds a
// device byte of 0xFF.
func BuildCustomGeometry(p CustomGeometryParams) (Geometry, error) {
	loc, err := bamLocationFromFlag(p.BAMLocationFlag)
	if err != nil {
		return Geometry{}, errors.Wrap(err, "BuildCustomGeometry")
	}
	steals := loc == BAMStealsFromZones

	var zones []Zone
	for _, z := range p.Zones {
		if z.HighTrack == 0 {
			continue
		}
		spt := z.SectorsPerTrack
		if spt == 0 && !steals {
			spt = 256
		}
		zones = append(zones, Zone{HighTrack: z.HighTrack, SectorsPerTrack: spt})
	}
	if len(zones) == 0 {
		return Geometry{}, errors.Wrap(ErrInvalidImage, "BuildCustomGeometry: no zones defined")
	}

	g := Geometry{
		Name:               "custom",
		Extension:          "x64",
		Zones:              zones,
		SidesPerDisk:       1,
		HeaderTrack:        p.HeaderDirTrack,
		HeaderSector:       0,
		BAMLocation:        loc,
		BAMSectors:         p.BAMSectorCount,
		DirTrack:           p.HeaderDirTrack,
		DirInterleave:      p.DirInterleave,
		FileInterleave:     p.FileInterleave,
		DiskNameOffset:     p.HeaderLabelOffset,
		DiskIDOffset:       p.HeaderLabelOffset + 18,
		DOSType:            p.DOSType,
		StealsFromZones:    steals,
		BAMLabelOffset:     p.BAMLabelOffset,
		BAMInterleave:      p.BAMInterleave,
		TracksPerBAMSector: p.TracksPerBAMSector,
		BootTrack:          p.BootTrack,
		IsCustom:           true,
	}
	g.DirSector = g.DirSectorOffset()
	return g, nil
}

// bamLocationFromFlag maps an X64 bam_location_flag byte to a
// BAMLocation, or ErrInvalidImage for an unrecognized flag.
func bamLocationFromFlag(flag byte) (BAMLocation, error) {
	switch flag {
	case 0x00:
		return BAMOnHeader, nil
	case 0x01:
		return BAMFollowsHeader, nil
	case 0x02:
		return BAMTrackBeforeHeader, nil
	case 0x47:
		return BAMSpillsOver, nil
	case 0x5A:
		return BAMStealsFromZones, nil
	default:
		return 0, errors.Wrapf(ErrInvalidImage, "unknown bam_location_flag 0x%02X", flag)
	}
}

// bamLocationToFlag is the inverse of bamLocationFromFlag.
func bamLocationToFlag(loc BAMLocation) byte {
	switch loc {
	case BAMOnHeader:
		return 0x00
	case BAMFollowsHeader:
		return 0x01
	case BAMTrackBeforeHeader:
		return 0x02
	case BAMSpillsOver:
		return 0x47
	case BAMStealsFromZones:
		return 0x5A
	default:
		return 0x00
	}
}

// packZonePair encodes a Zone into its two X64 parameter-block bytes.
// steals-from-zones geometries borrow the top two bits of the second
// byte to extend HighTrack past 255 and cap SectorsPerTrack at 6 bits;
// other geometries encode SectorsPerTrack==256 as 0.
func packZonePair(z Zone, steals bool) (hi, spt byte) {
	if !steals {
		s := z.SectorsPerTrack
		if s == 256 {
			s = 0
		}
		return byte(z.HighTrack), byte(s)
	}
	hi = byte(z.HighTrack & 0xFF)
	highBits := byte((z.HighTrack >> 8) & 0x03)
	spt = byte(z.SectorsPerTrack&0x3F) | (highBits << 6)
	return hi, spt
}

// unpackZonePair is the inverse of packZonePair.
func unpackZonePair(hi, spt byte, steals bool) Zone {
	if !steals {
		s := int(spt)
		if s == 0 {
			s = 256
		}
		return Zone{HighTrack: int(hi), SectorsPerTrack: s}
	}
	high := int(hi) | (int(spt>>6) << 8)
	return Zone{HighTrack: high, SectorsPerTrack: int(spt & 0x3F)}
}

// DirSectorOffset returns the first directory sector on the header track:
// 1 plus BAMSectors when the BAM follows the header, otherwise 1.
func (g Geometry) DirSectorOffset() int {
	if g.BAMLocation == BAMFollowsHeader {
		return 1 + g.BAMSectors
	}
	return 1
}

// adjustLinkRead decodes a raw on-disk (track, sector) link byte pair for
// a StealsFromZones geometry into a logical (track, sector) pair. See
// DESIGN.md Open Question 5 for why this specific formula was chosen over
// the spec's other, inconsistent worked example.
func adjustLinkRead(rawTrack, rawSector byte) (track, sector int) {
	track = int(rawTrack) >> 2
	sector = int(rawSector) & 0x1F
	return
}

// adjustLinkWrite encodes a logical (track, sector) pair into the raw
// on-disk link byte pair for a StealsFromZones geometry.
func adjustLinkWrite(track, sector int) (rawTrack, rawSector byte) {
	rawTrack = byte((track << 2) & 0xFF)
	rawSector = byte(sector) | byte((track>>8)<<6)
	return
}

// SelectByExtension returns the predefined Geometry whose conventional
// file extension matches ext (case-insensitive, leading dot optional),
// or ErrInvalidImage if there is no match.
func SelectByExtension(ext string) (Geometry, error) {
	ext = normalizeExtension(ext)
	for _, g := range geometryTable {
		if g.Extension == ext {
			return g, nil
		}
	}
	return Geometry{}, errors.Wrapf(ErrInvalidImage, "no known geometry for extension %q", ext)
}

// SelectBySize returns the predefined Geometry whose raw image size
// matches size exactly, or ErrInvalidImage if none match. Used when
// loading an image whose extension is missing or ambiguous.
func SelectBySize(size int) (Geometry, error) {
	for _, g := range geometryTable {
		if g.ImageSize() == size {
			return g, nil
		}
	}
	return Geometry{}, errors.Wrapf(ErrInvalidImage, "no known geometry matches image size %d", size)
}

func normalizeExtension(ext string) string {
	if len(ext) > 0 && ext[0] == '.' {
		ext = ext[1:]
	}
	out := make([]byte, len(ext))
	for i := 0; i < len(ext); i++ {
		c := ext[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

// geometryTable lists every drive family this package knows how to
// address. 1541 constants are cross-checked against the S1 scenario;
// zone tables for the larger CBM DOS 3.x drives follow their published
// track layouts.
var geometryTable = []Geometry{
	{
		Name:      "1541",
		Extension: "d64",
		Zones: []Zone{
			{HighTrack: 17, SectorsPerTrack: 21},
			{HighTrack: 24, SectorsPerTrack: 19},
			{HighTrack: 30, SectorsPerTrack: 18},
			{HighTrack: 35, SectorsPerTrack: 17},
		},
		SidesPerDisk:   1,
		HeaderTrack:    18,
		HeaderSector:   0,
		BAMLocation:    BAMOnHeader,
		BAMSectors:     1,
		DirTrack:       18,
		DirSector:      1,
		DirInterleave:  3,
		FileInterleave: 10,
		DiskNameOffset: 0x90,
		DiskIDOffset:   0xA2,
		DOSType:        "2A",
		BAMLabelOffset: 4,
	},
	{
		Name:      "1571",
		Extension: "d71",
		Zones: []Zone{
			{HighTrack: 17, SectorsPerTrack: 21},
			{HighTrack: 24, SectorsPerTrack: 19},
			{HighTrack: 30, SectorsPerTrack: 18},
			{HighTrack: 35, SectorsPerTrack: 17},
		},
		SidesPerDisk:   2,
		HeaderTrack:    18,
		HeaderSector:   0,
		BAMLocation:    BAMSpillsOver,
		BAMSectors:     2,
		DirTrack:       18,
		DirSector:      1,
		DirInterleave:  3,
		FileInterleave: 10,
		DiskNameOffset: 0x90,
		DiskIDOffset:   0xA2,
		DOSType:        "2A",
		BAMLabelOffset: 4,
	},
	{
		Name:      "1581",
		Extension: "d81",
		Zones: []Zone{
			{HighTrack: 80, SectorsPerTrack: 40},
		},
		SidesPerDisk:   1,
		HeaderTrack:    40,
		HeaderSector:   0,
		BAMLocation:    BAMFollowsHeader,
		BAMSectors:     2,
		DirTrack:       40,
		DirSector:      3,
		DirInterleave:  1,
		FileInterleave: 1,
		DiskNameOffset: 0x04,
		DiskIDOffset:   0x16,
		DOSType:        "3D",
		BAMLabelOffset: 2,
	},
	{
		Name:      "2040",
		Extension: "d67",
		Zones: []Zone{
			{HighTrack: 17, SectorsPerTrack: 20},
			{HighTrack: 24, SectorsPerTrack: 18},
			{HighTrack: 30, SectorsPerTrack: 17},
			{HighTrack: 35, SectorsPerTrack: 16},
		},
		SidesPerDisk:   1,
		HeaderTrack:    18,
		HeaderSector:   0,
		BAMLocation:    BAMOnHeader,
		BAMSectors:     1,
		DirTrack:       18,
		DirSector:      1,
		DirInterleave:  3,
		FileInterleave: 10,
		DiskNameOffset: 0x90,
		DiskIDOffset:   0xA2,
		DOSType:        "1",
		BAMLabelOffset: 4,
	},
	{
		Name:      "8050",
		Extension: "d80",
		Zones: []Zone{
			{HighTrack: 39, SectorsPerTrack: 29},
			{HighTrack: 53, SectorsPerTrack: 27},
			{HighTrack: 64, SectorsPerTrack: 25},
			{HighTrack: 77, SectorsPerTrack: 23},
		},
		SidesPerDisk:   1,
		HeaderTrack:    39,
		HeaderSector:   0,
		BAMLocation:    BAMTrackBeforeHeader,
		BAMSectors:     2,
		DirTrack:       39,
		DirSector:      1,
		DirInterleave:  3,
		FileInterleave: 5,
		DiskNameOffset: 0x06,
		DiskIDOffset:   0x18,
		DOSType:        "2C",
		BAMLabelOffset: 2,
	},
	{
		Name:      "8250",
		Extension: "d82",
		Zones: []Zone{
			{HighTrack: 39, SectorsPerTrack: 29},
			{HighTrack: 53, SectorsPerTrack: 27},
			{HighTrack: 64, SectorsPerTrack: 25},
			{HighTrack: 77, SectorsPerTrack: 23},
		},
		SidesPerDisk:   2,
		HeaderTrack:    39,
		HeaderSector:   0,
		BAMLocation:    BAMTrackBeforeHeader,
		BAMSectors:     2,
		DirTrack:       39,
		DirSector:      1,
		DirInterleave:  3,
		FileInterleave: 5,
		DiskNameOffset: 0x06,
		DiskIDOffset:   0x18,
		DOSType:        "2C",
		BAMLabelOffset: 2,
	},
	{
		Name:      "9030",
		Extension: "d93",
		Zones: []Zone{
			{HighTrack: 152, SectorsPerTrack: 32},
		},
		SidesPerDisk:     1,
		HeaderTrack:      76,
		HeaderSector:     0,
		BAMLocation:      BAMStealsFromZones,
		BAMSectors:       4,
		DirTrack:         76,
		DirSector:        1,
		DirInterleave:    1,
		FileInterleave:   1,
		DiskNameOffset:   0x06,
		DiskIDOffset:     0x18,
		DOSType:          "3D",
		StealsFromZones:  true,
		BAMLabelOffset:   2,
	},
	{
		Name:      "9060",
		Extension: "d96",
		Zones: []Zone{
			{HighTrack: 304, SectorsPerTrack: 32},
		},
		SidesPerDisk:     1,
		HeaderTrack:      152,
		HeaderSector:     0,
		BAMLocation:      BAMStealsFromZones,
		BAMSectors:       8,
		DirTrack:         152,
		DirSector:        1,
		DirInterleave:    1,
		FileInterleave:   1,
		DiskNameOffset:   0x06,
		DiskIDOffset:     0x18,
		DOSType:          "3D",
		StealsFromZones:  true,
		BAMLabelOffset:   2,
	},
	{
		Name:      "9090",
		Extension: "d99",
		Zones: []Zone{
			{HighTrack: 456, SectorsPerTrack: 32},
		},
		SidesPerDisk:     1,
		HeaderTrack:      228,
		HeaderSector:     0,
		BAMLocation:      BAMStealsFromZones,
		BAMSectors:       12,
		DirTrack:         228,
		DirSector:        1,
		DirInterleave:    1,
		FileInterleave:   1,
		DiskNameOffset:   0x06,
		DiskIDOffset:     0x18,
		DOSType:          "3D",
		StealsFromZones:  true,
		BAMLabelOffset:   2,
	},
}
