package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ivlev/stitchpreview/internal/poster"
)

func newPosterCommand(ctx *commandContext) *cobra.Command {
	var (
		frame  int
		output string
	)

	cmd := &cobra.Command{
		Use:   "poster",
		Short: "Write a PNG still of one frame",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, inst, err := ctx.openInstance(cmd.Context())
			if err != nil {
				return err
			}
			defer inst.Close()

			layout, err := inst.Wait(cmd.Context())
			if err != nil {
				return err
			}

			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := poster.Encode(f, layout, frame); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "poster of frame %d written to %s\n", frame, output)
			return nil
		},
	}

	cmd.Flags().IntVar(&frame, "frame", 0, "Frame to paint")
	cmd.Flags().StringVarP(&output, "output", "o", "poster.png", "PNG output path")
	return cmd
}
