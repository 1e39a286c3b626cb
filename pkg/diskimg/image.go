// file: pkg/diskimg/image.go

package diskimg

import (
	"os"

	"github.com/pkg/errors"
)

// Image is an in-memory CBM disk image: a raw sector buffer plus the
// geometry used to address it and the parsed HDR/BAM/DIR caches built on
// top of that buffer. Header, BAM and directory changes are made in the
// caches and reach the buffer only through Sync, which Save calls.
type Image struct {
	Geometry Geometry
	data     []byte

	header    *Header
	bam       *BAM
	directory *Directory

	sink   Sink
	events *sliceSink

	// sourcePath is set by Load and used only for diagnostic messages.
	sourcePath string
}

// Create builds a blank image for the named drive family (matched by
// SelectByExtension), with a freshly initialized header, BAM, and empty
// directory.
func Create(driveExtension, label, id string) (*Image, error) {
	g, err := SelectByExtension(driveExtension)
	if err != nil {
		return nil, err
	}
	return CreateCustom(g, label, id)
}

// CreateCustom builds a blank image for an explicit Geometry, allowing
// callers (notably the X64 loader) to construct non-catalog geometries.
func CreateCustom(g Geometry, label, id string) (*Image, error) {
	img := newImage(g)

	bam, err := InitBAM(g)
	if err != nil {
		return nil, err
	}
	img.bam = bam

	hdr := NewHeader(g, label, id)
	img.header = hdr

	img.directory = NewDirectory(g)

	if err := img.markSystemTracksUsed(); err != nil {
		return nil, err
	}
	if err := img.Sync(); err != nil {
		return nil, err
	}
	return img, nil
}

// CreateCustomFromParams builds a blank image from an X64 custom
// geometry parameter block description, the create_custom entry point
// spec.md §4.9 names alongside the catalog-driven Create.
func CreateCustomFromParams(p CustomGeometryParams, label, id string) (*Image, error) {
	g, err := BuildCustomGeometry(p)
	if err != nil {
		return nil, errors.Wrap(err, "CreateCustomFromParams")
	}
	return CreateCustom(g, label, id)
}

func newImage(g Geometry) *Image {
	sink := &sliceSink{}
	return &Image{
		Geometry: g,
		data:     make([]byte, g.ImageSize()),
		sink:     sink,
		events:   sink,
	}
}

// markSystemTracksUsed reserves the header, BAM, and initial directory
// sectors in the BAM so a fresh image does not report them as free.
func (img *Image) markSystemTracksUsed() error {
	ht, hs := img.Geometry.HeaderTrack, img.Geometry.HeaderSector
	if free, err := img.bam.BlockAvailable(ht, hs); err == nil && free {
		img.bam.MarkBlocks(ht, hs, true)
	}
	bt, bs := img.Geometry.BAMPosition()
	if bt != ht || bs != hs {
		for i := 0; i < img.Geometry.BAMSectors; i++ {
			s := bs + i
			if spt, err := img.Geometry.SectorsPerTrack(bt); err == nil && s < spt {
				if free, err := img.bam.BlockAvailable(bt, s); err == nil && free {
					img.bam.MarkBlocks(bt, s, true)
				}
			}
		}
	}
	dt, ds := img.Geometry.DirTrack, img.Geometry.DirSector
	if free, err := img.bam.BlockAvailable(dt, ds); err == nil && free {
		img.bam.MarkBlocks(dt, ds, true)
	}
	return nil
}

// Load reads a raw or X64-wrapped disk image from path, inferring its
// geometry from an X64 parameter block if present, else from the file
// extension, else from the raw file size.
func Load(path string) (*Image, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(ErrIO, "Load(%s): %v", path, err)
	}

	body := raw
	var g Geometry
	if isX64(raw) {
		var custom *Geometry
		body, custom, err = unwrapX64(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "Load(%s)", path)
		}
		if custom != nil {
			g = *custom
		} else if g, err = SelectBySize(len(body)); err != nil {
			return nil, errors.Wrapf(err, "Load(%s)", path)
		}
	} else if g, err = SelectByExtension(fileExt(path)); err != nil {
		if g, err = SelectBySize(len(body)); err != nil {
			return nil, errors.Wrapf(ErrInvalidImage, "Load(%s): cannot determine geometry", path)
		}
	}

	if len(body) != g.ImageSize() {
		return nil, errors.Wrapf(ErrInvalidImage, "Load(%s): body size %d does not match %s image size %d", path, len(body), g.Name, g.ImageSize())
	}

	img := newImage(g)
	copy(img.data, body)
	img.sourcePath = path

	if img.header, err = ParseHeader(img); err != nil {
		return nil, errors.Wrapf(err, "Load(%s)", path)
	}
	if img.bam, err = ParseBAM(img); err != nil {
		return nil, errors.Wrapf(err, "Load(%s)", path)
	}
	if img.directory, err = ParseDirectory(img); err != nil {
		return nil, errors.Wrapf(err, "Load(%s)", path)
	}
	if g.BAMLocation == BAMSpillsOver {
		img.emitDiagnostic(Diagnostic{Level: LevelWarning, Message: "loaded a 1571 image; BAM spill-over handling is approximate"})
	}
	return img, nil
}

// Save flushes the header, directory, and BAM caches (in that order, per
// their dependency on each other) and writes the image to path. A
// geometry built from an X64 custom geometry parameter block (IsCustom)
// is wrapped back into an X64 container so the parameter block survives
// the round trip; every other geometry is written as a raw sector image.
func (img *Image) Save(path string) error {
	if err := img.Sync(); err != nil {
		return errors.Wrapf(err, "Save(%s)", path)
	}
	if img.Geometry.IsCustom {
		if err := os.WriteFile(path, wrapX64(img.Geometry, img.data), 0644); err != nil {
			return errors.Wrapf(ErrIO, "Save(%s): %v", path, err)
		}
		return nil
	}
	if err := os.WriteFile(path, img.data, 0644); err != nil {
		return errors.Wrapf(ErrIO, "Save(%s): %v", path, err)
	}
	return nil
}

// Sync writes the header, directory, and BAM caches back into the raw
// sector buffer, in that dependency order: the directory may allocate
// new sectors that the BAM sync must account for.
func (img *Image) Sync() error {
	if img.header != nil {
		if err := img.header.SyncHeader(img); err != nil {
			return errors.Wrap(err, "Sync: header")
		}
	}
	if img.directory != nil {
		if err := img.directory.Sync(img); err != nil {
			return errors.Wrap(err, "Sync: directory")
		}
	}
	if img.bam != nil {
		if err := img.bam.SyncBAM(img); err != nil {
			return errors.Wrap(err, "Sync: BAM")
		}
	}
	return nil
}

// Header returns the image's parsed header cache.
func (img *Image) Header() *Header { return img.header }

// BAM returns the image's parsed Block Availability Map cache.
func (img *Image) BAM() *BAM { return img.bam }

// Directory returns the image's parsed directory cache.
func (img *Image) Directory() *Directory { return img.directory }

// Diagnostics drains and returns every non-fatal event raised since the
// last call, when the image is using the default buffering sink. Images
// constructed with a custom Sink (via SetSink) always return nil here;
// their diagnostics went to the custom sink as they were raised.
func (img *Image) Diagnostics() []Diagnostic {
	if img.events == nil {
		return nil
	}
	out := img.events.events
	img.events.events = nil
	return out
}

// SetSink redirects future diagnostics to sink instead of the default
// buffer, disabling Diagnostics().
func (img *Image) SetSink(sink Sink) {
	img.sink = sink
	img.events = nil
}

func (img *Image) emitDiagnostic(d Diagnostic) {
	if img.sink != nil {
		img.sink.Emit(d)
	}
}

// Summary reports the disk label, ID, DOS type, and free/total block
// counts, in the style of the CBM DOS "$" directory header line.
type Summary struct {
	Label       string
	ID          string
	DOSType     string
	DriveFamily string
	BlocksFree  int
	BlocksTotal int
}

// Summary computes a Summary from the image's current header/BAM caches.
func (img *Image) Summary() Summary {
	total := img.Geometry.SectorCount()
	return Summary{
		Label:       img.header.Label(),
		ID:          img.header.ID(),
		DOSType:     img.header.DOSType(),
		DriveFamily: img.Geometry.Name,
		BlocksFree:  img.bam.BlocksFree(img.Geometry.DirTrack),
		BlocksTotal: total,
	}
}

func fileExt(path string) string {
	for i := len(path) - 1; i >= 0 && path[i] != '/'; i-- {
		if path[i] == '.' {
			return path[i+1:]
		}
	}
	return ""
}
