// file: cmd/add/add.go

package add

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/ha1tch/cbmdisk/pkg/diskimg"
)

// AddOptions configures the Add operation.
type AddOptions struct {
	// Name overrides the on-disk filename; defaults to the host
	// filename (uppercased, path stripped).
	Name string
	// FileType is one of diskimg.FileTypePRG/SEQ/USR/REL; typeAuto
	// (0xFF) resolves from the host file's extension.
	FileType byte
	Force    bool
	Quiet    bool
}

const typeAuto = 0xFF

// DefaultAddOptions returns the default add options: auto-detected file
// type, no forced overwrite.
func DefaultAddOptions() *AddOptions {
	return &AddOptions{FileType: typeAuto, Force: false, Quiet: false}
}

func determineFileType(path string) byte {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".seq", ".txt":
		return diskimg.FileTypeSEQ
	case ".rel":
		return diskimg.FileTypeREL
	case ".prg", ".bin":
		return diskimg.FileTypePRG
	default:
		return diskimg.FileTypeUSR
	}
}

// Add imports a host file into the disk image at diskPath.
func Add(diskPath, filePath string, opts *AddOptions) error {
	if opts == nil {
		opts = DefaultAddOptions()
	}

	img, err := diskimg.Load(diskPath)
	if err != nil {
		return errors.Wrap(err, "Add: opening disk image")
	}

	name := opts.Name
	if name == "" {
		name = filepath.Base(filePath)
	}

	if !opts.Force {
		if _, err := img.Directory().FindDirEntry(name, 0x80); err == nil {
			return errors.Errorf("file already exists: %s (use force to overwrite)", name)
		}
	} else if e, err := img.Directory().FindDirEntry(name, 0x80); err == nil {
		if err := img.Delete(e); err != nil {
			return errors.Wrap(err, "Add: replacing existing file")
		}
	}

	fileType := opts.FileType
	if fileType == typeAuto {
		fileType = determineFileType(filePath)
	}

	if err := img.WriteProgramFromFile(filePath, name, fileType); err != nil {
		return errors.Wrap(err, "Add: importing file")
	}

	if err := img.Save(diskPath); err != nil {
		return errors.Wrap(err, "Add: saving disk image")
	}

	if !opts.Quiet {
		fmt.Printf("Added %s to disk image\n", name)
	}
	return nil
}
