package config

import "github.com/paularlott/cli"

// GetFlags returns the flags shared by every command that reads an inventory
func GetFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "profile",
			Usage: "AWS shared config profile (default: default)",
		},
		&cli.StringFlag{
			Name:  "region",
			Usage: "AWS region (default: ap-southeast-2)",
		},
		&cli.StringFlag{
			Name:  "source",
			Usage: "Inventory source: ec2 or sqlite (default: ec2)",
		},
		&cli.StringFlag{
			Name:  "db",
			Usage: "SQLite inventory path (default: ./data/inventory.db)",
		},
		&cli.IntFlag{
			Name:  "page-size",
			Usage: "Interface records requested per inventory page",
		},
	}
}

// OptionsFromCommand collects the shared flags as Load options
func OptionsFromCommand(cmd *cli.Command) *Config {
	return &Config{
		Profile:  cmd.GetString("profile"),
		Region:   cmd.GetString("region"),
		Source:   cmd.GetString("source"),
		DBPath:   cmd.GetString("db"),
		PageSize: cmd.GetInt("page-size"),
	}
}
