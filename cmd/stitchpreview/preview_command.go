package main

import (
	"errors"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/ivlev/stitchpreview/internal/preview"
)

func newPreviewCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "preview",
		Short: "Play the composition in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !stdinIsTTY() {
				return errors.New("preview requires an interactive terminal (TTY)")
			}
			comp, inst, err := ctx.openInstance(cmd.Context())
			if err != nil {
				return err
			}
			defer inst.Close()
			return preview.Run(cmd.Context(), comp, inst)
		},
	}
}

func stdinIsTTY() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
