package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"

	"github.com/ivlev/stitchpreview/internal/progress"
	"github.com/ivlev/stitchpreview/internal/server"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var (
		addr        string
		showQR      bool
		sessionTTL  time.Duration
		maxSessions int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the manifest, media and composition session API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			reg, err := ctx.registry()
			if err != nil {
				return err
			}
			f, err := ctx.fetcher()
			if err != nil {
				return err
			}

			if cfg.ProgressDir != "" {
				if err := progress.Ensure(cfg.ProgressDir, nil); err != nil {
					return fmt.Errorf("prepare progress dir: %w", err)
				}
			}

			srv, err := server.New(server.Options{
				Registry:    reg,
				Fetcher:     f,
				StaticDir:   cfg.StaticDir,
				Manifest:    manifestRoute(cfg.Manifest),
				MediaMode:   cfg.MediaMode,
				DefaultID:   cfg.CompositionID,
				ProgressDir: cfg.ProgressDir,
				SessionTTL:  sessionTTL,
				MaxSessions: maxSessions,
				Logger:      ctx.log(),
			})
			if err != nil {
				return err
			}

			if showQR {
				url := localURL(cfg.Addr)
				qr, err := qrcode.New(url, qrcode.Medium)
				if err != nil {
					return fmt.Errorf("build qr code: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), qr.ToSmallString(false))
				fmt.Fprintln(cmd.OutOrStdout(), url)
			}

			sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.ListenAndServe(sigCtx, cfg.Addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default :8081)")
	cmd.Flags().BoolVar(&showQR, "qr", false, "Print a QR code of the server URL")
	cmd.Flags().DurationVar(&sessionTTL, "session-ttl", server.DefaultSessionTTL, "Drop sessions idle for longer than this")
	cmd.Flags().IntVar(&maxSessions, "max-sessions", server.DefaultMaxSessions, "Maximum open sessions; the least recently used is dropped")
	return cmd
}

// manifestRoute is the URL path the manifest is served under. Remote
// manifests are proxied under their base name.
func manifestRoute(location string) string {
	location = strings.TrimSpace(location)
	if i := strings.Index(location, "://"); i >= 0 {
		location = location[i+3:]
		if j := strings.IndexAny(location, "?#"); j >= 0 {
			location = location[:j]
		}
		return path.Base(location)
	}
	return strings.TrimPrefix(path.Clean("/"+location), "/")
}

// localURL guesses the address a phone on the same network can reach.
func localURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = outboundIP()
	}
	return "http://" + net.JoinHostPort(host, port)
}

func outboundIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "localhost"
	}
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
			return ipnet.IP.String()
		}
	}
	return "localhost"
}
