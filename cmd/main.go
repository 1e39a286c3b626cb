// file: cmd/main.go

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ha1tch/cbmdisk/cmd/add"
	"github.com/ha1tch/cbmdisk/cmd/create"
	"github.com/ha1tch/cbmdisk/cmd/dir"
	"github.com/ha1tch/cbmdisk/cmd/extract"
	"github.com/ha1tch/cbmdisk/cmd/info"
	"github.com/ha1tch/cbmdisk/cmd/mkdir"
	"github.com/ha1tch/cbmdisk/cmd/rename"
	"github.com/ha1tch/cbmdisk/cmd/revalidate"
	"github.com/ha1tch/cbmdisk/cmd/rm"
)

func main() {
	root := &cobra.Command{
		Use:   "cbmdisk",
		Short: "Read, write, and inspect Commodore floppy disk images",
	}

	root.AddCommand(newCreateCmd())
	root.AddCommand(newDirCmd())
	root.AddCommand(newExtractCmd())
	root.AddCommand(newAddCmd())
	root.AddCommand(newRmCmd())
	root.AddCommand(newMkdirCmd())
	root.AddCommand(newRenameCmd())
	root.AddCommand(newInfoCmd())
	root.AddCommand(newRevalidateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCreateCmd() *cobra.Command {
	opts := create.DefaultCreateOptions()
	cmd := &cobra.Command{
		Use:   "create <image>",
		Short: "Create a blank disk image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return create.Create(args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.DriveExtension, "drive", opts.DriveExtension, "drive family (d64, d71, d81, d67, d80, d82, d93, d96, d99)")
	cmd.Flags().StringVar(&opts.Label, "label", opts.Label, "disk label")
	cmd.Flags().StringVar(&opts.ID, "id", opts.ID, "two-character disk ID")
	cmd.Flags().BoolVar(&opts.Force, "force", opts.Force, "overwrite an existing file")
	cmd.Flags().BoolVar(&opts.Quiet, "quiet", opts.Quiet, "suppress non-error output")
	return cmd
}

func newDirCmd() *cobra.Command {
	opts := dir.DefaultDirOptions()
	cmd := &cobra.Command{
		Use:   "dir <image>",
		Short: "List the directory of a disk image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := dir.Dir(args[0], opts)
			if err != nil {
				return err
			}
			fmt.Print(out)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Sort, "sort", opts.Sort, "sort by name or size")
	cmd.Flags().BoolVar(&opts.Reverse, "reverse", opts.Reverse, "reverse sort order")
	cmd.Flags().StringVar(&opts.Pattern, "pattern", opts.Pattern, "filter by filename substring")
	return cmd
}

func newExtractCmd() *cobra.Command {
	opts := extract.DefaultExtractOptions()
	cmd := &cobra.Command{
		Use:   "extract <image> <name> <outfile>",
		Short: "Extract a file from a disk image, or by --index into a directory",
		Args: func(cmd *cobra.Command, args []string) error {
			if opts.Index >= 0 {
				return cobra.ExactArgs(2)(cmd, args)
			}
			return cobra.ExactArgs(3)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Index >= 0 {
				return extract.Extract(args[0], "", args[1], opts)
			}
			return extract.Extract(args[0], args[1], args[2], opts)
		},
	}
	cmd.Flags().IntVar(&opts.Index, "index", opts.Index, "extract by directory position into a destination directory, named <name>.<timestamp>.<TYPE>")
	cmd.Flags().BoolVar(&opts.Force, "force", opts.Force, "overwrite an existing output file")
	cmd.Flags().BoolVar(&opts.Quiet, "quiet", opts.Quiet, "suppress non-error output")
	return cmd
}

func newAddCmd() *cobra.Command {
	opts := add.DefaultAddOptions()
	cmd := &cobra.Command{
		Use:   "add <image> <hostfile>",
		Short: "Add a host file to a disk image",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return add.Add(args[0], args[1], opts)
		},
	}
	cmd.Flags().StringVar(&opts.Name, "name", opts.Name, "on-disk filename (default: host filename)")
	cmd.Flags().BoolVar(&opts.Force, "force", opts.Force, "overwrite an existing file")
	cmd.Flags().BoolVar(&opts.Quiet, "quiet", opts.Quiet, "suppress non-error output")
	return cmd
}

func newRmCmd() *cobra.Command {
	opts := rm.DefaultRmOptions()
	cmd := &cobra.Command{
		Use:   "rm <image> <name>",
		Short: "Delete a file from a disk image",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rm.Rm(args[0], args[1], opts)
		},
	}
	cmd.Flags().BoolVar(&opts.Quiet, "quiet", opts.Quiet, "suppress non-error output")
	return cmd
}

func newMkdirCmd() *cobra.Command {
	opts := mkdir.DefaultMkdirOptions()
	cmd := &cobra.Command{
		Use:   "mkdir <image> <name>",
		Short: "Create a subdirectory on a disk image",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mkdir.Mkdir(args[0], args[1], opts)
		},
	}
	cmd.Flags().BoolVar(&opts.Quiet, "quiet", opts.Quiet, "suppress non-error output")
	return cmd
}

func newRenameCmd() *cobra.Command {
	opts := rename.DefaultRenameOptions()
	cmd := &cobra.Command{
		Use:   "rename <image> <name> <newname>",
		Short: "Rename a file on a disk image",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rename.Rename(args[0], args[1], args[2], opts)
		},
	}
	cmd.Flags().BoolVar(&opts.Quiet, "quiet", opts.Quiet, "suppress non-error output")
	return cmd
}

func newInfoCmd() *cobra.Command {
	opts := info.DefaultInfoOptions()
	cmd := &cobra.Command{
		Use:   "info <image>",
		Short: "Show disk image summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := info.Info(args[0], opts)
			if err != nil {
				return err
			}
			fmt.Print(out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.ShowDiagnostics, "diagnostics", opts.ShowDiagnostics, "include non-fatal load diagnostics")
	return cmd
}

func newRevalidateCmd() *cobra.Command {
	opts := revalidate.DefaultRevalidateOptions()
	cmd := &cobra.Command{
		Use:   "revalidate <image>",
		Short: "Rebuild the BAM from the directory chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return revalidate.Revalidate(args[0], opts)
		},
	}
	cmd.Flags().BoolVar(&opts.Quiet, "quiet", opts.Quiet, "suppress non-error output")
	return cmd
}
