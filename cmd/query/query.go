package query

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/paularlott/cli"

	"github.com/martinsuchenak/ipusage/internal/config"
	"github.com/martinsuchenak/ipusage/internal/log"
	"github.com/martinsuchenak/ipusage/internal/render"
	"github.com/martinsuchenak/ipusage/internal/report"
	"github.com/martinsuchenak/ipusage/internal/source"
	"github.com/martinsuchenak/ipusage/internal/worker"
	"github.com/martinsuchenak/ipusage/pkg/model"
)

// Command reports the address usage of one subnet
func Command() *cli.Command {
	flags := append(config.GetFlags(),
		&cli.StringFlag{
			Name:     "subnet-id",
			Usage:    "Subnet to report on (e.g., subnet-0abc1234); comma-separated for several",
			Required: true,
		},
		&cli.IntFlag{
			Name:         "workers",
			Usage:        "Subnets reconciled concurrently",
			DefaultValue: worker.DefaultWorkers,
		},
		&cli.BoolFlag{
			Name:  "one-column",
			Usage: "Print one address per line",
		},
		&cli.BoolFlag{
			Name:  "no-color",
			Usage: "Disable coloured output",
		},
		&cli.IntFlag{
			Name:  "max-addresses",
			Usage: "Refuse blocks with more addresses than this (default: 65536)",
		},
		&cli.BoolFlag{
			Name:  "ipv6",
			Usage: "Report on the subnet's IPv6 block instead of its IPv4 block (only blocks within --max-addresses, e.g. small imported blocks; EC2 /64 blocks are refused)",
		},
		&cli.StringFlag{
			Name:  "export",
			Usage: "Also export the report: json, yaml or xlsx",
		},
		&cli.StringFlag{
			Name:  "output",
			Usage: "Export file (default: stdout)",
		},
	)

	return &cli.Command{
		Name:        "query",
		Usage:       "Report IP usage of a subnet",
		Description: "List every address of a subnet as reserved, in use by a network interface, or free",
		Flags:       flags,
		Run: func(ctx context.Context, cmd *cli.Command) error {
			opts := config.OptionsFromCommand(cmd)
			opts.MaxAddresses = cmd.GetInt("max-addresses")
			opts.NoColor = cmd.GetBool("no-color")
			cfg := config.Load(opts)

			l := log.Default()
			l.Debug("Configuration loaded", "inventory", cfg.String(), "max_addresses", cfg.MaxAddresses)

			src, closeSrc, err := source.Open(ctx, cfg, l)
			if err != nil {
				return err
			}
			defer closeSrc()

			subnetIDs := splitIDs(cmd.GetString("subnet-id"))
			if len(subnetIDs) == 0 {
				return errors.New("no subnet id given")
			}
			format := cmd.GetString("export")
			if format != "" && len(subnetIDs) > 1 {
				return errors.New("--export needs a single subnet id")
			}

			rec := report.NewReconciler(src, report.Options{
				MaxAddresses: cfg.MaxAddresses,
				IPv6:         cmd.GetBool("ipv6"),
			}, l)
			reports, err := rec.RunMany(ctx, subnetIDs, cmd.GetInt("workers"))
			if err != nil {
				return err
			}

			if format != "" {
				if err := exportReport(reports[0], format, cmd.GetString("output")); err != nil {
					return err
				}
				l.Info("Report exported", "format", format, "output", cmd.GetString("output"))
			}

			colour := !cfg.NoColor && render.IsTerminal(os.Stdout)
			for i, rep := range reports {
				if i > 0 {
					fmt.Fprintln(os.Stdout)
				}
				if err := display(os.Stdout, rep, colour, cmd.GetBool("one-column")); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// splitIDs splits a comma-separated id list, dropping blanks and repeats
func splitIDs(s string) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, id := range strings.Split(s, ",") {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

func exportReport(rep *model.Report, format, output string) (err error) {
	var w io.Writer = os.Stdout
	if output != "" && output != "-" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("creating export file: %w", err)
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		w = f
	}
	return report.Export(w, rep, format)
}

// display prints the address table followed by the summary block
func display(out *os.File, rep *model.Report, colour, oneColumn bool) error {
	lines := report.FormatLines(rep.Records, report.NewPalette(colour))
	err := report.WriteTable(out, lines, render.TerminalWidth(out), oneColumn)

	var tooSmall *render.TerminalTooSmallError
	if errors.As(err, &tooSmall) {
		return fmt.Errorf("%w (use --one-column)", err)
	}
	if err != nil {
		return err
	}

	return report.WriteSummary(out, rep.Summary)
}
