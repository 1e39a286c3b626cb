// file: cmd/revalidate/revalidate.go

package revalidate

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/ha1tch/cbmdisk/pkg/diskimg"
)

// RevalidateOptions configures the Revalidate operation.
type RevalidateOptions struct {
	Quiet bool
}

// DefaultRevalidateOptions returns the default revalidate options.
func DefaultRevalidateOptions() *RevalidateOptions {
	return &RevalidateOptions{Quiet: false}
}

// Revalidate rebuilds the BAM of the disk image at diskPath from its
// directory chain, discarding whatever the on-disk BAM currently claims.
func Revalidate(diskPath string, opts *RevalidateOptions) error {
	if opts == nil {
		opts = DefaultRevalidateOptions()
	}

	img, err := diskimg.Load(diskPath)
	if err != nil {
		return errors.Wrap(err, "Revalidate: opening disk image")
	}

	if err := img.RevalidateBAM(); err != nil {
		return errors.Wrap(err, "Revalidate")
	}

	if err := img.Save(diskPath); err != nil {
		return errors.Wrap(err, "Revalidate: saving disk image")
	}

	if !opts.Quiet {
		fmt.Println("BAM rebuilt from directory chain")
	}
	return nil
}
