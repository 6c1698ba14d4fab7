package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newCompositionsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "compositions",
		Short: "List registered compositions",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := ctx.registry()
			if err != nil {
				return err
			}
			list := reg.List()
			if asJSON {
				return writeJSON(cmd, list)
			}

			rows := make([][]string, 0, len(list))
			for _, c := range list {
				rows = append(rows, []string{
					c.ID,
					fmt.Sprintf("%dx%d", c.Width, c.Height),
					strconv.Itoa(c.FPS),
					strconv.Itoa(c.DurationInFrames),
					strconv.Itoa(c.SceneDurationFrames),
					c.Manifest,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Canvas", "FPS", "Frames", "Scene Frames", "Manifest"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
			))
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no compositions registered")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}
