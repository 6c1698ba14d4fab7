package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}
	ctx := newCommandContext(flags)

	rootCmd := &cobra.Command{
		Use:           "stitchpreview",
		Short:         "Preview and render multi-track story stitch timelines",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.config, "config", "c", "", "Configuration file path (.yaml or .toml)")
	pf.StringVar(&flags.staticDir, "static-dir", "", "Directory served as static assets")
	pf.StringVar(&flags.manifest, "manifest", "", "Manifest location: path in the static dir, http(s):// URL or s3://bucket/key")
	pf.StringVar(&flags.mediaMode, "media-mode", "", "How video_file references resolve: static or passthrough")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&flags.logFormat, "log-format", "", "Log format: auto, console, json")
	pf.StringVar(&flags.progress, "progress-dir", "", "Directory for _progress.json phase reports (render writes, serve exposes)")

	rootCmd.AddCommand(newRenderCommand(ctx))
	rootCmd.AddCommand(newLayoutCommand(ctx))
	rootCmd.AddCommand(newCuesCommand(ctx))
	rootCmd.AddCommand(newPosterCommand(ctx))
	rootCmd.AddCommand(newPreviewCommand(ctx))
	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newCompositionsCommand(ctx))

	return rootCmd
}
