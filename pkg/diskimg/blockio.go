// file: pkg/diskimg/blockio.go

package diskimg

import "github.com/pkg/errors"

// ReadBlock returns a copy of the 256-byte sector at (track, sector).
func (img *Image) ReadBlock(track, sector int) ([]byte, error) {
	off, err := img.Geometry.GetSectorOffset(track, sector)
	if err != nil {
		return nil, errors.Wrapf(err, "ReadBlock(%d,%d)", track, sector)
	}
	if off+SectorSize > len(img.data) {
		return nil, errors.Wrapf(ErrIO, "ReadBlock(%d,%d): offset %d exceeds image size %d", track, sector, off, len(img.data))
	}
	block := make([]byte, SectorSize)
	copy(block, img.data[off:off+SectorSize])
	return block, nil
}

// WriteBlock overwrites the 256-byte sector at (track, sector) with data.
// data shorter than a full sector is zero-padded; longer data is an error.
func (img *Image) WriteBlock(track, sector int, data []byte) error {
	if len(data) > SectorSize {
		return errors.Wrapf(ErrIO, "WriteBlock(%d,%d): %d bytes exceeds sector size %d", track, sector, len(data), SectorSize)
	}
	off, err := img.Geometry.GetSectorOffset(track, sector)
	if err != nil {
		return errors.Wrapf(err, "WriteBlock(%d,%d)", track, sector)
	}
	if off+SectorSize > len(img.data) {
		return errors.Wrapf(ErrIO, "WriteBlock(%d,%d): offset %d exceeds image size %d", track, sector, off, len(img.data))
	}
	dst := img.data[off : off+SectorSize]
	for i := range dst {
		dst[i] = 0
	}
	copy(dst, data)
	return nil
}

// ReadTSLink returns the (nextTrack, nextSector) pair stored in the first
// two bytes of the sector at (track, sector), decoding the 9000-series
// 10-bit track encoding when the image's geometry requires it.
func (img *Image) ReadTSLink(track, sector int) (nextTrack, nextSector int, err error) {
	block, err := img.ReadBlock(track, sector)
	if err != nil {
		return 0, 0, err
	}
	if img.Geometry.StealsFromZones {
		nextTrack, nextSector = adjustLinkRead(block[0], block[1])
		return nextTrack, nextSector, nil
	}
	return int(block[0]), int(block[1]), nil
}

// WriteTSLink stores (nextTrack, nextSector) into the first two bytes of
// the sector at (track, sector), leaving the remaining 254 payload bytes
// untouched.
func (img *Image) WriteTSLink(track, sector, nextTrack, nextSector int) error {
	off, err := img.Geometry.GetSectorOffset(track, sector)
	if err != nil {
		return errors.Wrapf(err, "WriteTSLink(%d,%d)", track, sector)
	}
	if off+2 > len(img.data) {
		return errors.Wrapf(ErrIO, "WriteTSLink(%d,%d): offset %d exceeds image size %d", track, sector, off, len(img.data))
	}
	if img.Geometry.StealsFromZones {
		rawT, rawS := adjustLinkWrite(nextTrack, nextSector)
		img.data[off], img.data[off+1] = rawT, rawS
		return nil
	}
	img.data[off] = byte(nextTrack)
	img.data[off+1] = byte(nextSector)
	return nil
}

// WriteBytes copies data into the sector at (track, sector) starting at
// byte offset within-sector, without touching bytes outside the given
// range. It is used for field-level updates (header label, BAM entries)
// that should not disturb the rest of the sector.
func (img *Image) WriteBytes(track, sector, within int, data []byte) error {
	if within < 0 || within+len(data) > SectorSize {
		return errors.Wrapf(ErrIO, "WriteBytes(%d,%d,%d): %d bytes overruns sector", track, sector, within, len(data))
	}
	off, err := img.Geometry.GetSectorOffset(track, sector)
	if err != nil {
		return errors.Wrapf(err, "WriteBytes(%d,%d)", track, sector)
	}
	copy(img.data[off+within:off+within+len(data)], data)
	return nil
}

// ReadBytes returns a copy of length n starting at byte offset within the
// sector at (track, sector).
func (img *Image) ReadBytes(track, sector, within, n int) ([]byte, error) {
	if within < 0 || within+n > SectorSize {
		return nil, errors.Wrapf(ErrIO, "ReadBytes(%d,%d,%d,%d): overruns sector", track, sector, within, n)
	}
	off, err := img.Geometry.GetSectorOffset(track, sector)
	if err != nil {
		return nil, errors.Wrapf(err, "ReadBytes(%d,%d)", track, sector)
	}
	out := make([]byte, n)
	copy(out, img.data[off+within:off+within+n])
	return out, nil
}
