package serve

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/paularlott/cli"

	"github.com/martinsuchenak/ipusage/internal/config"
	"github.com/martinsuchenak/ipusage/internal/log"
	"github.com/martinsuchenak/ipusage/internal/mcp"
	"github.com/martinsuchenak/ipusage/internal/report"
	"github.com/martinsuchenak/ipusage/internal/source"
)

const shutdownTimeout = 10 * time.Second

// Command starts the MCP tool server
func Command() *cli.Command {
	return &cli.Command{
		Name:        "serve",
		Usage:       "Start the MCP server",
		Description: "Serve the subnet_usage tool over MCP so agents can query subnet IP usage",
		Flags: append(config.GetFlags(),
			&cli.StringFlag{
				Name:  "listen-addr",
				Usage: "Listen address (default: :8080)",
			},
			&cli.StringFlag{
				Name:  "mcp-token",
				Usage: "Bearer token required on MCP requests",
			},
			&cli.IntFlag{
				Name:  "max-addresses",
				Usage: "Refuse blocks with more addresses than this (default: 65536)",
			},
		),
		Run: func(ctx context.Context, cmd *cli.Command) error {
			opts := config.OptionsFromCommand(cmd)
			opts.ListenAddr = cmd.GetString("listen-addr")
			opts.MCPAuthToken = cmd.GetString("mcp-token")
			opts.MaxAddresses = cmd.GetInt("max-addresses")
			cfg := config.Load(opts)

			l := log.Default()
			l.Info("Configuration loaded", "inventory", cfg.String(), "listen_addr", cfg.ListenAddr)

			src, closeSrc, err := source.Open(ctx, cfg, l)
			if err != nil {
				l.Error("Failed to open inventory", "error", err)
				return err
			}
			defer closeSrc()

			mcpServer := mcp.NewServer(src, report.Options{MaxAddresses: cfg.MaxAddresses}, cfg.MCPAuthToken, l)
			server := &http.Server{
				Addr:              cfg.ListenAddr,
				Handler:           mcpServer.Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			go func() {
				<-ctx.Done()
				l.Info("Shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					l.Warn("Graceful shutdown failed", "error", err)
					server.Close()
				}
			}()

			l.Info("Starting ipusage MCP server", "addr", cfg.ListenAddr)
			l.Info("MCP available", "url", "http://localhost"+cfg.ListenAddr+"/mcp")
			if cfg.IsMCPAuthEnabled() {
				l.Info("MCP authentication enabled")
			}

			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				l.Error("Server error", "error", err)
				return err
			}

			l.Info("Server stopped")
			return nil
		},
	}
}
