// file: cmd/info/info.go

package info

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/ha1tch/cbmdisk/pkg/diskimg"
)

// InfoOptions configures the Info operation.
type InfoOptions struct {
	// ShowDiagnostics includes any non-fatal events raised while
	// loading the image (e.g. a 1571 BAM spill-over warning).
	ShowDiagnostics bool
}

// DefaultInfoOptions returns the default info options.
func DefaultInfoOptions() *InfoOptions {
	return &InfoOptions{ShowDiagnostics: true}
}

// Info returns a human-readable summary of the disk image at diskPath:
// its drive family, label, ID, DOS type, and free/total block counts.
func Info(diskPath string, opts *InfoOptions) (string, error) {
	if opts == nil {
		opts = DefaultInfoOptions()
	}

	img, err := diskimg.Load(diskPath)
	if err != nil {
		return "", errors.Wrap(err, "Info: opening disk image")
	}

	s := img.Summary()
	var b strings.Builder
	fmt.Fprintf(&b, "Drive:   %s\n", s.DriveFamily)
	fmt.Fprintf(&b, "Label:   %s\n", s.Label)
	fmt.Fprintf(&b, "ID:      %s\n", s.ID)
	fmt.Fprintf(&b, "DOS:     %s\n", s.DOSType)
	fmt.Fprintf(&b, "Files:   %d\n", len(img.Directory().List()))
	fmt.Fprintf(&b, "Blocks:  %d free / %d total\n", s.BlocksFree, s.BlocksTotal)

	if opts.ShowDiagnostics {
		for _, d := range img.Diagnostics() {
			fmt.Fprintf(&b, "%s\n", d.String())
		}
	}

	if err := img.Validate(); err != nil {
		fmt.Fprintf(&b, "Warning: %s\n", err.Error())
	}

	return b.String(), nil
}
