// file: pkg/diskimg/errors.go

package diskimg

import "errors"

// Sentinel errors matching the taxonomy of the disk-image error model.
// Operations that add context wrap these with github.com/pkg/errors so
// callers can still errors.Is against the sentinel.
var (
	// ErrInvalidImage covers signature mismatches, truncated buffers,
	// unknown device bytes, and unparseable geometry.
	ErrInvalidImage = errors.New("invalid disk image")

	// ErrGeometry means a requested (track,sector) falls outside the
	// addressable range of the image's geometry.
	ErrGeometry = errors.New("track/sector out of range for geometry")

	// ErrNameExists means an allocation of a filename collided with an
	// already-active directory entry.
	ErrNameExists = errors.New("filename already exists")

	// ErrNoFreeDirEntry means the directory is full and cannot grow.
	ErrNoFreeDirEntry = errors.New("no free directory entry")

	// ErrNoFreeBlocks means BAM cannot satisfy a requested allocation.
	ErrNoFreeBlocks = errors.New("not enough free blocks")

	// ErrDoubleAlloc means a mark-used request targeted an already-used
	// block.
	ErrDoubleAlloc = errors.New("block already allocated")

	// ErrNotFound covers filename and index lookup misses.
	ErrNotFound = errors.New("not found")

	// ErrIO wraps underlying file read/write failures.
	ErrIO = errors.New("disk image I/O error")

	// ErrEmptyFile means a write was attempted with zero-length payload
	// data, which CBM DOS does not allocate a block for.
	ErrEmptyFile = errors.New("cannot allocate a zero-length file")
)
