package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ivlev/stitchpreview/internal/director"
)

func newLayoutCommand(ctx *commandContext) *cobra.Command {
	var (
		format  string
		cuesOut string
		cuesDir string
	)

	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Resolve the manifest and print the sequenced timeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, inst, err := ctx.openInstance(cmd.Context())
			if err != nil {
				return err
			}
			defer inst.Close()

			layout, err := inst.Wait(cmd.Context())
			if err != nil {
				return err
			}
			sheet := director.Build(comp.ID, comp.FPS, layout)

			if cuesOut == "" && cuesDir != "" {
				if err := os.MkdirAll(cuesDir, 0o755); err != nil {
					return fmt.Errorf("create cue sheet dir: %w", err)
				}
				cuesOut = director.GenerateCueSheetPath(cuesDir, sheet.StoryID, time.Now())
			}
			if cuesOut != "" {
				if err := director.WriteCueSheet(sheet, cuesOut); err != nil {
					return fmt.Errorf("write cue sheet: %w", err)
				}
				ctx.log().Info().Str("path", cuesOut).Msg("cue sheet written")
			}

			out := cmd.OutOrStdout()
			switch strings.ToLower(format) {
			case "json":
				return writeJSON(cmd, layout)
			case "yaml", "cues":
				return director.EncodeCueSheet(out, sheet)
			case "table", "":
				fmt.Fprintln(out, layout.Heading)
				if layout.Placeholder {
					fmt.Fprintln(out, layout.PlaceholderText)
					return nil
				}
				fmt.Fprintln(out, layoutTable(sheet))
				return nil
			default:
				return fmt.Errorf("unknown format %q (want table, json or yaml)", format)
			}
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table, json, yaml")
	cmd.Flags().StringVar(&cuesOut, "cues-out", "", "Also write the YAML cue sheet to this path")
	cmd.Flags().StringVar(&cuesDir, "cues-dir", "", "Also write a timestamped cue sheet into this directory")
	return cmd
}

func layoutTable(sheet *director.CueSheet) string {
	var rows [][]string
	for _, t := range sheet.Tracks {
		if len(t.Cues) == 0 {
			rows = append(rows, []string{t.Title, "-", "", "", "", "", t.Label})
			continue
		}
		for _, c := range t.Cues {
			rows = append(rows, []string{
				t.Title,
				strconv.Itoa(c.Index + 1),
				c.VideoFile,
				strconv.Itoa(c.StartFrame),
				strconv.Itoa(c.EndFrame),
				fmt.Sprintf("%.2fs", c.Start),
				t.Label,
			})
		}
	}
	return renderTable(
		[]string{"Track", "Scene", "Video", "Start", "End", "At", "Count"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignRight, alignRight, alignRight, alignLeft},
	)
}
