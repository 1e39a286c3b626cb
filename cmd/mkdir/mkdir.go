// file: cmd/mkdir/mkdir.go

package mkdir

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/ha1tch/cbmdisk/pkg/diskimg"
)

// MkdirOptions configures the Mkdir operation.
type MkdirOptions struct {
	Quiet bool
}

// DefaultMkdirOptions returns the default mkdir options.
func DefaultMkdirOptions() *MkdirOptions {
	return &MkdirOptions{Quiet: false}
}

// Mkdir creates a subdirectory named name on the disk image at diskPath.
func Mkdir(diskPath, name string, opts *MkdirOptions) error {
	if opts == nil {
		opts = DefaultMkdirOptions()
	}

	img, err := diskimg.Load(diskPath)
	if err != nil {
		return errors.Wrap(err, "Mkdir: opening disk image")
	}

	if err := img.Mkdir(name); err != nil {
		return errors.Wrapf(err, "Mkdir: %s", name)
	}

	if err := img.Save(diskPath); err != nil {
		return errors.Wrap(err, "Mkdir: saving disk image")
	}

	if !opts.Quiet {
		fmt.Printf("Created directory %s\n", name)
	}
	return nil
}
