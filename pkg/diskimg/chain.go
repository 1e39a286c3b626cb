// file: pkg/diskimg/chain.go

package diskimg

import "github.com/pkg/errors"

// payloadSize is the usable byte count per block once the 2-byte T/S
// link header is excluded.
const payloadSize = SectorSize - 2

// ReadChain follows the T/S-link chain starting at (track, sector) and
// returns the concatenated payload bytes. A terminal block is one whose
// link track is 0; its link sector byte is the offset of the last valid
// byte in that block, so the final block holds that value minus one
// payload bytes.
func (img *Image) ReadChain(track, sector int) ([]byte, error) {
	var out []byte
	seen := map[[2]int]bool{}
	t, s := track, sector
	for {
		if seen[[2]int{t, s}] {
			return nil, errors.Wrapf(ErrInvalidImage, "ReadChain: cyclic T/S link at (%d,%d)", t, s)
		}
		seen[[2]int{t, s}] = true

		nt, ns, err := img.ReadTSLink(t, s)
		if err != nil {
			return nil, errors.Wrapf(err, "ReadChain: reading link at (%d,%d)", t, s)
		}
		block, err := img.ReadBlock(t, s)
		if err != nil {
			return nil, errors.Wrapf(err, "ReadChain: reading block at (%d,%d)", t, s)
		}

		if nt == 0 {
			n := ns - 1
			if n < 0 {
				n = 0
			}
			if n > payloadSize {
				n = payloadSize
			}
			out = append(out, block[2:2+n]...)
			break
		}
		out = append(out, block[2:]...)
		t, s = nt, ns
	}
	return out, nil
}

// WriteChain allocates a fresh chain of blocks from bam sufficient to
// hold data, writes data into them with correct T/S links, and returns
// the (track, sector) of the first block plus the number of blocks used.
// A zero-length data is rejected with ErrEmptyFile rather than silently
// allocating a one-block empty file.
func (img *Image) WriteChain(data []byte) (firstTrack, firstSector, blockCount int, err error) {
	if len(data) == 0 {
		return 0, 0, 0, errors.Wrap(ErrEmptyFile, "WriteChain")
	}
	n := (len(data) + payloadSize - 1) / payloadSize
	blocks, err := img.bam.AllocateBlocks(n)
	if err != nil {
		return 0, 0, 0, errors.Wrap(err, "WriteChain")
	}

	for i, ts := range blocks {
		lo := i * payloadSize
		hi := lo + payloadSize
		if hi > len(data) {
			hi = len(data)
		}
		chunk := data[lo:hi]

		buf := make([]byte, SectorSize)
		copy(buf[2:], chunk)

		if i == len(blocks)-1 {
			buf[0] = 0
			buf[1] = byte(len(chunk) + 1)
		} else {
			next := blocks[i+1]
			if img.Geometry.StealsFromZones {
				rawT, rawS := adjustLinkWrite(next[0], next[1])
				buf[0], buf[1] = rawT, rawS
			} else {
				buf[0], buf[1] = byte(next[0]), byte(next[1])
			}
		}
		if err := img.WriteBlock(ts[0], ts[1], buf); err != nil {
			return 0, 0, 0, errors.Wrapf(err, "WriteChain: writing block %d", i)
		}
	}
	return blocks[0][0], blocks[0][1], len(blocks), nil
}

// FreeChain walks the T/S-link chain starting at (track, sector) and
// marks every visited block free in bam.
func (img *Image) FreeChain(track, sector int) error {
	t, s := track, sector
	seen := map[[2]int]bool{}
	for t != 0 {
		if seen[[2]int{t, s}] {
			return errors.Wrapf(ErrInvalidImage, "FreeChain: cyclic T/S link at (%d,%d)", t, s)
		}
		seen[[2]int{t, s}] = true

		nt, ns, err := img.ReadTSLink(t, s)
		if err != nil {
			return errors.Wrapf(err, "FreeChain: reading link at (%d,%d)", t, s)
		}
		if err := img.bam.MarkBlocks(t, s, false); err != nil {
			return errors.Wrapf(err, "FreeChain: freeing (%d,%d)", t, s)
		}
		t, s = nt, ns
	}
	return nil
}
