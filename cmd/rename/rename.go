// file: cmd/rename/rename.go

package rename

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/ha1tch/cbmdisk/pkg/diskimg"
)

// RenameOptions configures the Rename operation.
type RenameOptions struct {
	Quiet bool
}

// DefaultRenameOptions returns the default rename options.
func DefaultRenameOptions() *RenameOptions {
	return &RenameOptions{Quiet: false}
}

// Rename changes oldName to newName in the disk image at diskPath.
func Rename(diskPath, oldName, newName string, opts *RenameOptions) error {
	if opts == nil {
		opts = DefaultRenameOptions()
	}

	img, err := diskimg.Load(diskPath)
	if err != nil {
		return errors.Wrap(err, "Rename: opening disk image")
	}

	if err := img.Rename(oldName, newName); err != nil {
		return errors.Wrap(err, "Rename")
	}

	if err := img.Save(diskPath); err != nil {
		return errors.Wrap(err, "Rename: saving disk image")
	}

	if !opts.Quiet {
		fmt.Printf("Renamed %s to %s\n", oldName, newName)
	}
	return nil
}
