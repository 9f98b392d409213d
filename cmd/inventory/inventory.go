package inventory

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/paularlott/cli"

	"github.com/martinsuchenak/ipusage/internal/config"
	inv "github.com/martinsuchenak/ipusage/internal/inventory"
	"github.com/martinsuchenak/ipusage/internal/log"
	"github.com/martinsuchenak/ipusage/internal/source"
	"github.com/martinsuchenak/ipusage/internal/storage"
)

// Commands returns the offline inventory commands
func Commands() []*cli.Command {
	return []*cli.Command{
		snapshotCommand(),
		importCommand(),
		listCommand(),
	}
}

func snapshotCommand() *cli.Command {
	return &cli.Command{
		Name:        "snapshot",
		Usage:       "Save a subnet's inventory to a JSON snapshot",
		Description: "Describe a subnet and list its network interfaces, then write both to a snapshot file",
		Flags: append(config.GetFlags(),
			&cli.StringFlag{Name: "subnet-id", Usage: "Subnet to snapshot", Required: true},
			&cli.StringFlag{Name: "output", Usage: "Snapshot file (default: stdout)"},
		),
		Run: func(ctx context.Context, cmd *cli.Command) (err error) {
			cfg := config.Load(config.OptionsFromCommand(cmd))
			l := log.Default()

			src, closeSrc, err := source.Open(ctx, cfg, l)
			if err != nil {
				return err
			}
			defer closeSrc()

			subnetID := cmd.GetString("subnet-id")
			snap, err := inv.Snapshot(ctx, src, subnetID)
			if err != nil {
				return fmt.Errorf("snapshotting %s: %w", subnetID, err)
			}

			out := os.Stdout
			if path := cmd.GetString("output"); path != "" && path != "-" {
				out, err = os.Create(path)
				if err != nil {
					return fmt.Errorf("creating snapshot file: %w", err)
				}
				defer func() {
					if cerr := out.Close(); err == nil {
						err = cerr
					}
				}()
			}

			if err := storage.SaveSnapshot(out, snap); err != nil {
				return fmt.Errorf("writing snapshot: %w", err)
			}
			l.Info("Snapshot saved", "subnet_id", subnetID, "interfaces", len(snap.Interfaces), "source", cfg.String())
			return nil
		},
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:        "import",
		Usage:       "Load snapshots into the local inventory",
		Description: "Replace each snapshot's subnet and interfaces in the SQLite inventory",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "db", Usage: "SQLite inventory path (default: ./data/inventory.db)"},
		},
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "file", Required: true},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			path := cmd.GetStringArg("file")
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("opening snapshot: %w", err)
			}
			defer f.Close()

			snap, err := storage.LoadSnapshot(f)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}
			if err := store.Import(ctx, snap); err != nil {
				return err
			}

			log.Default().Info("Snapshot imported", "subnet_id", snap.Subnet.ID, "interfaces", len(snap.Interfaces))
			fmt.Printf("Imported %s (%d interface records)\n", snap.Subnet.ID, len(snap.Interfaces))
			return nil
		},
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:        "list",
		Usage:       "List subnets in the local inventory",
		Description: "List every subnet imported into the SQLite inventory",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "db", Usage: "SQLite inventory path (default: ./data/inventory.db)"},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			subnets, err := store.ListSubnets(ctx)
			if err != nil {
				return err
			}
			if len(subnets) == 0 {
				fmt.Println("No subnets imported")
				return nil
			}

			for _, s := range subnets {
				fmt.Printf("%s\t%s\t%s\t%s\n", s.ID, s.Name, s.CIDR, strings.Join(s.IPv6CIDRs, ","))
			}
			return nil
		},
	}
}

func openStore(cmd *cli.Command) (storage.Storage, error) {
	cfg := config.Load(&config.Config{Source: config.SourceSQLite, DBPath: cmd.GetString("db")})
	store, err := storage.NewSQLiteStorage(cfg.DBPath, cfg.PageSize, log.Default())
	if err != nil {
		return nil, err
	}
	return store, nil
}
