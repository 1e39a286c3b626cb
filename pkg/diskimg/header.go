// file: pkg/diskimg/header.go

package diskimg

import "github.com/pkg/errors"

// Header is the parsed disk header: label, ID, and DOS type marker. Its
// on-disk position and field offsets come from the image's Geometry.
type Header struct {
	label [16]byte
	id    [2]byte
	dos   [2]byte
}

// NewHeader builds a Header for a fresh image, PETSCII-padding label and
// truncating/padding id to two characters.
func NewHeader(g Geometry, label, id string) *Header {
	h := &Header{}
	copy(h.label[:], toA0(label, 16))
	copy(h.id[:], toA0(id, 2))
	copy(h.dos[:], toA0(g.DOSType, 2))
	return h
}

// Label returns the disk label projected to ASCII.
func (h *Header) Label() string { return a0ToASCII(h.label[:]) }

// ID returns the two-character disk ID projected to ASCII.
func (h *Header) ID() string { return a0ToASCII(h.id[:]) }

// DOSType returns the two-character DOS version marker projected to ASCII.
func (h *Header) DOSType() string { return a0ToASCII(h.dos[:]) }

// SetHeaderLabel normalizes and replaces the disk label and ID, upper-
// casing both at the PETSCII boundary. dosType is left unchanged when
// empty; passed non-empty, it replaces the DOS type marker too.
func (h *Header) SetHeaderLabel(label, id, dosType string) {
	copy(h.label[:], toA0(label, 16))
	copy(h.id[:], toA0(id, 2))
	if dosType != "" {
		copy(h.dos[:], toA0(dosType, 2))
	}
}

// ParseHeader reads the header fields out of img's header sector using
// its Geometry's field offsets, including the on-disk DOS-type marker
// (which may legitimately differ from the geometry's default).
func ParseHeader(img *Image) (*Header, error) {
	g := img.Geometry
	label, err := img.ReadBytes(g.HeaderTrack, g.HeaderSector, g.DiskNameOffset, 16)
	if err != nil {
		return nil, errors.Wrap(err, "ParseHeader: label")
	}
	id, err := img.ReadBytes(g.HeaderTrack, g.HeaderSector, g.DiskIDOffset, 2)
	if err != nil {
		return nil, errors.Wrap(err, "ParseHeader: id")
	}
	dos, err := img.ReadBytes(g.HeaderTrack, g.HeaderSector, g.DiskIDOffset+3, 2)
	if err != nil {
		return nil, errors.Wrap(err, "ParseHeader: dos type")
	}
	h := &Header{}
	copy(h.label[:], label)
	copy(h.id[:], id)
	copy(h.dos[:], dos)
	return h, nil
}

// SyncHeader writes h's fields back into img's header sector.
func (h *Header) SyncHeader(img *Image) error {
	g := img.Geometry
	if err := img.WriteBytes(g.HeaderTrack, g.HeaderSector, g.DiskNameOffset, h.label[:]); err != nil {
		return errors.Wrap(err, "SyncHeader: label")
	}
	if err := img.WriteBytes(g.HeaderTrack, g.HeaderSector, g.DiskIDOffset, h.id[:]); err != nil {
		return errors.Wrap(err, "SyncHeader: id")
	}
	if err := img.WriteBytes(g.HeaderTrack, g.HeaderSector, g.DiskIDOffset+3, h.dos[:]); err != nil {
		return errors.Wrap(err, "SyncHeader: dos type")
	}
	if g.BAMLocation == BAMOnHeader {
		dt, ds := g.DirTrack, g.DirSector
		if err := img.WriteTSLink(g.HeaderTrack, g.HeaderSector, dt, ds); err != nil {
			return errors.Wrap(err, "SyncHeader: directory link")
		}
	}
	return nil
}
