// file: cmd/extract/extract.go

package extract

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/ha1tch/cbmdisk/pkg/diskimg"
)

// ExtractOptions configures the Extract operation.
type ExtractOptions struct {
	// Index selects extraction by directory position instead of by
	// name; -1 means "use name instead".
	Index int
	Force bool
	Quiet bool
}

// DefaultExtractOptions returns the default extract options.
func DefaultExtractOptions() *ExtractOptions {
	return &ExtractOptions{Index: -1, Force: false, Quiet: false}
}

// Extract copies a file out of the disk image at diskPath. With
// opts.Index >= 0, it extracts the entry at that directory position
// into outPath (treated as a destination directory), naming the host
// file <name>.YYYY-MM-DD-HH-MM.<TYPE> from the entry's own write
// timestamp. Otherwise it copies the entry named name into outPath
// verbatim.
func Extract(diskPath, name, outPath string, opts *ExtractOptions) error {
	if opts == nil {
		opts = DefaultExtractOptions()
	}

	img, err := diskimg.Load(diskPath)
	if err != nil {
		return errors.Wrap(err, "Extract: opening disk image")
	}

	if opts.Index >= 0 {
		if err := os.MkdirAll(outPath, 0755); err != nil {
			return errors.Wrap(err, "Extract: creating output directory")
		}
		written, err := img.ExportProgramByIndex(opts.Index, outPath)
		if err != nil {
			return errors.Wrapf(err, "Extract: index %d", opts.Index)
		}
		if !opts.Quiet {
			fmt.Printf("Extracted entry %d to %s\n", opts.Index, written)
		}
		return nil
	}

	if !opts.Force {
		if _, err := os.Stat(outPath); err == nil {
			return errors.Errorf("output file already exists: %s (use force to overwrite)", outPath)
		}
	}

	if dir := filepath.Dir(outPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrap(err, "Extract: creating output directory")
		}
	}

	if err := img.ExportProgram(name, outPath); err != nil {
		return errors.Wrapf(err, "Extract: %s", name)
	}

	if !opts.Quiet {
		fmt.Printf("Extracted %s to %s\n", name, outPath)
	}
	return nil
}
