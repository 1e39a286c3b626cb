// file: cmd/dir/dir.go

package dir

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/ha1tch/cbmdisk/pkg/diskimg"
)

// DirOptions configures the Dir listing.
type DirOptions struct {
	Sort    string // "name", "size", or "" for on-disk order
	Reverse bool
	Pattern string // case-insensitive substring filter
}

// DefaultDirOptions returns the default on-disk-order listing.
func DefaultDirOptions() *DirOptions {
	return &DirOptions{Sort: "", Reverse: false, Pattern: ""}
}

var fileTypeNames = map[byte]string{
	diskimg.FileTypeDEL: "DEL",
	diskimg.FileTypeSEQ: "SEQ",
	diskimg.FileTypePRG: "PRG",
	diskimg.FileTypeUSR: "USR",
	diskimg.FileTypeREL: "REL",
}

// Dir renders the directory of the image at diskPath in the style of a
// CBM DOS "$" listing: a header line with the disk label and ID, one
// line per file giving its block count and type, then a free-blocks
// trailer.
func Dir(diskPath string, opts *DirOptions) (string, error) {
	if opts == nil {
		opts = DefaultDirOptions()
	}

	img, err := diskimg.Load(diskPath)
	if err != nil {
		return "", errors.Wrap(err, "Dir")
	}

	entries := img.Directory().List()
	if opts.Pattern != "" {
		pat := strings.ToUpper(opts.Pattern)
		var filtered []*diskimg.DirectoryEntry
		for _, e := range entries {
			if strings.Contains(e.FilenameASCII(), pat) {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}
	switch opts.Sort {
	case "name":
		sort.Slice(entries, func(i, j int) bool { return entries[i].FilenameASCII() < entries[j].FilenameASCII() })
	case "size":
		sort.Slice(entries, func(i, j int) bool { return entries[i].Blocks < entries[j].Blocks })
	}
	if opts.Reverse {
		for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
			entries[i], entries[j] = entries[j], entries[i]
		}
	}

	summary := img.Summary()
	var b strings.Builder
	fmt.Fprintf(&b, "0 \"%-16s\" %s %s\n", summary.Label, summary.ID, summary.DOSType)
	for _, e := range entries {
		typ := fileTypeNames[e.TypeCode()]
		if typ == "" {
			typ = "???"
		}
		lock := " "
		if e.FileType&0x40 != 0 {
			lock = "<"
		}
		fmt.Fprintf(&b, "%-4d \"%-16s\" %s%s\n", e.Blocks, e.FilenameASCII(), typ, lock)
	}
	fmt.Fprintf(&b, "%d BLOCKS FREE.\n", summary.BlocksFree)
	return b.String(), nil
}
