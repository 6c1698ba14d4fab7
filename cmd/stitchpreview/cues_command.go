package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ivlev/stitchpreview/internal/director"
)

func newCuesCommand(ctx *commandContext) *cobra.Command {
	var (
		dir    string
		format string
	)

	cmd := &cobra.Command{
		Use:   "cues [path]",
		Short: "Print a saved cue sheet (default: the newest one in --dir)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				latest, err := director.FindLatestCueSheet(dir)
				if err != nil {
					return err
				}
				path = latest
			}

			sheet, err := director.ReadCueSheet(path)
			if err != nil {
				return err
			}
			ctx.log().Debug().Str("path", path).Msg("cue sheet loaded")

			out := cmd.OutOrStdout()
			switch strings.ToLower(format) {
			case "yaml":
				return director.EncodeCueSheet(out, sheet)
			case "table", "":
				fmt.Fprintf(out, "%s  %s  %d frames @ %d fps\n", path, sheet.StoryID, sheet.Duration(), sheet.FPS)
				fmt.Fprintln(out, layoutTable(sheet))
				return nil
			default:
				return fmt.Errorf("unknown format %q (want table or yaml)", format)
			}
		},
	}

	cmd.Flags().StringVar(&dir, "dir", ".", "Directory searched for cues_*.yaml when no path is given")
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table, yaml")
	return cmd
}
