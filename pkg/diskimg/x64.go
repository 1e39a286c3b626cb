// file: pkg/diskimg/x64.go

package diskimg

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// x64 container layout: a 64-byte header preceding the raw disk image
// body. Bytes 0-3 are the magic signature; byte 6 is the device byte
// selecting a canonical geometry (spec.md §4.8). A device byte of 0xFF
// means bytes 10-31 carry a 22-byte custom geometry parameter block
// (spec.md §6) instead of a single dos_type byte.
var x64Magic = [4]byte{0x43, 0x15, 0x41, 0x64}

const x64HeaderSize = 64
const x64CustomBlockOffset = 10

// x64DeviceExtension maps an X64 device byte to the catalog extension it
// selects.
var x64DeviceExtension = map[byte]string{
	0x00: "d64",
	0x01: "d64",
	0x05: "d71",
	0x08: "d81",
	0x11: "d67",
	0x20: "d80",
	0x31: "d82",
	0x40: "d93",
	0x41: "d96",
	0x42: "d99",
}

// extensionToX64Device is the inverse of x64DeviceExtension, used when
// writing a catalog geometry's header.
var extensionToX64Device = map[string]byte{
	"d64": 0x01,
	"d71": 0x05,
	"d81": 0x08,
	"d67": 0x11,
	"d80": 0x20,
	"d82": 0x31,
	"d93": 0x40,
	"d96": 0x41,
	"d99": 0x42,
}

// isX64 reports whether raw begins with the X64 magic signature.
func isX64(raw []byte) bool {
	if len(raw) < x64HeaderSize {
		return false
	}
	for i, b := range x64Magic {
		if raw[i] != b {
			return false
		}
	}
	return true
}

// dosTypeFromByte projects a DOS-type byte to its hex-pair PETSCII form,
// e.g. 0x3A -> "3A".
func dosTypeFromByte(b byte) string {
	return fmt.Sprintf("%02X", b)
}

// dosTypeToByte is the inverse of dosTypeFromByte.
func dosTypeToByte(s string) byte {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 16, 8)
	if err != nil {
		return 0
	}
	return byte(v)
}

// parseCustomGeometryBlock decodes the 22-byte custom geometry
// parameter block at header offset 10, used when raw's device byte is
// 0xFF.
func parseCustomGeometryBlock(raw []byte) (Geometry, error) {
	if len(raw) < x64CustomBlockOffset+22 {
		return Geometry{}, errors.Wrap(ErrInvalidImage, "parseCustomGeometryBlock: header too short")
	}
	b := raw[x64CustomBlockOffset : x64CustomBlockOffset+22]

	loc, err := bamLocationFromFlag(b[15])
	if err != nil {
		return Geometry{}, errors.Wrap(err, "parseCustomGeometryBlock")
	}
	steals := loc == BAMStealsFromZones

	p := CustomGeometryParams{
		DOSType:            dosTypeFromByte(b[0]),
		HeaderDirTrack:     int(b[1]),
		HeaderLabelOffset:  int(b[2]),
		DirInterleave:      int(b[3]),
		FileInterleave:     int(b[4]),
		BAMLabelOffset:     int(b[5]),
		BAMInterleave:      int(b[14]),
		BAMLocationFlag:    b[15],
		BAMSectorCount:     int(b[16]),
		TracksPerBAMSector: int(b[17]),
		BootTrack:          int(b[21]),
	}
	for i := 0; i < 4; i++ {
		p.Zones[i] = unpackZonePair(b[6+i*2], b[7+i*2], steals)
	}

	g, err := BuildCustomGeometry(p)
	if err != nil {
		return Geometry{}, errors.Wrap(err, "parseCustomGeometryBlock")
	}
	return g, nil
}

// writeCustomGeometryBlock serializes g's custom-geometry fields into
// the 22-byte parameter block at offset 10 of out (already sized to at
// least x64HeaderSize).
func writeCustomGeometryBlock(g Geometry, out []byte) {
	b := out[x64CustomBlockOffset : x64CustomBlockOffset+22]
	b[0] = dosTypeToByte(g.DOSType)
	b[1] = byte(g.HeaderTrack)
	b[2] = byte(g.DiskNameOffset)
	b[3] = byte(g.DirInterleave)
	b[4] = byte(g.FileInterleave)
	b[5] = byte(g.BAMLabelOffset)
	for i := 0; i < 4; i++ {
		var z Zone
		if i < len(g.Zones) {
			z = g.Zones[i]
		}
		hi, spt := packZonePair(z, g.StealsFromZones)
		b[6+i*2] = hi
		b[7+i*2] = spt
	}
	b[14] = byte(g.BAMInterleave)
	b[15] = bamLocationToFlag(g.BAMLocation)
	b[16] = byte(g.BAMSectors)
	b[17] = byte(g.TracksPerBAMSector)
	// bytes 18-20 reserved, left zero
	b[21] = byte(g.BootTrack)
}

// unwrapX64 strips an X64 header from raw, returning the raw disk body
// and the Geometry the header's device byte (or, for device 0xFF, its
// custom geometry parameter block) selects.
func unwrapX64(raw []byte) (body []byte, geometry *Geometry, err error) {
	if !isX64(raw) {
		return nil, nil, errors.Wrap(ErrInvalidImage, "unwrapX64: missing signature")
	}
	if len(raw) <= x64HeaderSize {
		return nil, nil, errors.Wrap(ErrInvalidImage, "unwrapX64: no body after header")
	}
	body = raw[x64HeaderSize:]

	device := raw[6]
	if device == 0xFF {
		g, err := parseCustomGeometryBlock(raw)
		if err != nil {
			return nil, nil, errors.Wrap(err, "unwrapX64")
		}
		return body, &g, nil
	}

	ext, ok := x64DeviceExtension[device]
	if !ok {
		return nil, nil, errors.Wrapf(ErrInvalidImage, "unwrapX64: unknown device byte 0x%02X", device)
	}
	g, err := SelectByExtension(ext)
	if err != nil {
		return nil, nil, errors.Wrap(err, "unwrapX64")
	}
	return body, &g, nil
}

// wrapX64 prepends an X64 header describing g to body, for SaveX64.
// Catalog geometries are written by device byte with a bare dos_type
// byte at offset 10; custom geometries (or any geometry whose extension
// has no device byte) get device 0xFF and a full parameter block.
func wrapX64(g Geometry, body []byte) []byte {
	out := make([]byte, x64HeaderSize+len(body))
	copy(out[0:4], x64Magic[:])
	out[4] = 1 // version major
	out[5] = 2 // version minor
	out[7] = byte(g.TrackCount())
	out[8] = byte(g.SidesPerDisk)
	out[9] = 0 // error_data_present: this package never emits per-sector error maps

	if dev, ok := extensionToX64Device[g.Extension]; ok && !g.IsCustom {
		out[6] = dev
		out[10] = dosTypeToByte(g.DOSType)
	} else {
		out[6] = 0xFF
		writeCustomGeometryBlock(g, out)
	}

	copy(out[x64HeaderSize:], body)
	return out
}

// SaveX64 writes img wrapped in an X64 container to path.
func (img *Image) SaveX64(path string) error {
	if err := img.Sync(); err != nil {
		return errors.Wrap(err, "SaveX64")
	}
	wrapped := wrapX64(img.Geometry, img.data)
	if err := os.WriteFile(path, wrapped, 0644); err != nil {
		return errors.Wrapf(ErrIO, "SaveX64(%s): %v", path, err)
	}
	return nil
}
