// file: cmd/rm/rm.go

package rm

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/ha1tch/cbmdisk/pkg/diskimg"
)

// RmOptions configures the Rm operation.
type RmOptions struct {
	Quiet bool
}

// DefaultRmOptions returns the default rm options.
func DefaultRmOptions() *RmOptions {
	return &RmOptions{Quiet: false}
}

// Rm deletes the named file from the disk image at diskPath by
// tombstoning its directory entry; its block chain stays allocated in
// the BAM until a revalidate pass or reuse of the slot reclaims it.
func Rm(diskPath, name string, opts *RmOptions) error {
	if opts == nil {
		opts = DefaultRmOptions()
	}

	img, err := diskimg.Load(diskPath)
	if err != nil {
		return errors.Wrap(err, "Rm: opening disk image")
	}

	e, err := img.Directory().FindDirEntry(name, 0x80)
	if err != nil {
		return errors.Wrapf(err, "Rm: %s", name)
	}

	if err := img.Delete(e); err != nil {
		return errors.Wrapf(err, "Rm: %s", name)
	}

	if err := img.Save(diskPath); err != nil {
		return errors.Wrap(err, "Rm: saving disk image")
	}

	if !opts.Quiet {
		fmt.Printf("Deleted %s\n", name)
	}
	return nil
}
