// file: cmd/create/create.go

package create

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/ha1tch/cbmdisk/pkg/diskimg"
)

// CreateOptions configures the Create operation.
type CreateOptions struct {
	// DriveExtension selects the drive family by its conventional
	// extension (d64, d71, d81, d67, d80, d82, d93, d96, d99).
	DriveExtension string
	Label          string
	ID             string
	Force          bool
	Quiet          bool
}

// DefaultCreateOptions returns the default 1541 image options.
func DefaultCreateOptions() *CreateOptions {
	return &CreateOptions{
		DriveExtension: "d64",
		Label:          "NEW DISK",
		ID:             "1A",
		Force:          false,
		Quiet:          false,
	}
}

// Create builds a blank disk image at outPath.
func Create(outPath string, opts *CreateOptions) error {
	if opts == nil {
		opts = DefaultCreateOptions()
	}

	outPath = filepath.Clean(outPath)
	if !opts.Force {
		if _, err := os.Stat(outPath); err == nil {
			return errors.Errorf("file already exists: %s (use force to overwrite)", outPath)
		}
	}
	if dir := filepath.Dir(outPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrap(err, "failed to create directory")
		}
	}

	img, err := diskimg.Create(opts.DriveExtension, opts.Label, opts.ID)
	if err != nil {
		return errors.Wrap(err, "failed to create disk image")
	}

	if err := img.Save(outPath); err != nil {
		os.Remove(outPath)
		return errors.Wrap(err, "failed to save disk image")
	}

	if err := verifyDiskImage(outPath); err != nil {
		os.Remove(outPath)
		return errors.Wrap(err, "disk image verification failed")
	}

	if !opts.Quiet {
		fmt.Printf("Created %s image: %s\n", img.Geometry.Name, outPath)
		fmt.Printf("Disk label: %s, ID: %s\n", opts.Label, opts.ID)
	}
	return nil
}

// verifyDiskImage reloads the just-written image and checks its
// invariants before the caller trusts it.
func verifyDiskImage(path string) error {
	img, err := diskimg.Load(path)
	if err != nil {
		return err
	}
	return img.Validate()
}
