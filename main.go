package main

import (
	"context"
	"os"

	"github.com/paularlott/cli"
	"github.com/paularlott/cli/env"

	"github.com/martinsuchenak/ipusage/cmd/inventory"
	"github.com/martinsuchenak/ipusage/cmd/query"
	"github.com/martinsuchenak/ipusage/cmd/serve"
	"github.com/martinsuchenak/ipusage/internal/log"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Load .env file if it exists
	env.Load()

	rootCmd := &cli.Command{
		Name:        "ipusage",
		Version:     version,
		Usage:       "Subnet IP usage report",
		Description: "Reconcile a subnet's address space against the network interfaces attached to it (build " + commit + ", " + date + ")",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:         "log-level",
				Usage:        "Log level (trace, debug, info, warn, error)",
				DefaultValue: "warn",
				EnvVars:      []string{"IPUSAGE_LOG_LEVEL"},
				Global:       true,
			},
			&cli.StringFlag{
				Name:         "log-format",
				Usage:        "Log format (console, json)",
				DefaultValue: "console",
				EnvVars:      []string{"IPUSAGE_LOG_FORMAT"},
				Global:       true,
			},
		},
		PreRun: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			log.Configure(cmd.GetString("log-level"), cmd.GetString("log-format"))
			return ctx, nil
		},
		Commands: []*cli.Command{
			query.Command(),
			serve.Command(),
			{
				Name:        "inventory",
				Usage:       "Offline inventory commands",
				Description: "Snapshot subnets and manage the local SQLite inventory",
				Commands:    inventory.Commands(),
			},
		},
	}

	if err := rootCmd.Execute(context.Background()); err != nil {
		log.Default().Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}
