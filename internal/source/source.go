// Package source opens the inventory selected by the configuration.
package source

import (
	"context"
	"fmt"

	"github.com/paularlott/logger"

	"github.com/martinsuchenak/ipusage/internal/config"
	"github.com/martinsuchenak/ipusage/internal/inventory"
	"github.com/martinsuchenak/ipusage/internal/inventory/awsec2"
	"github.com/martinsuchenak/ipusage/internal/storage"
)

// Open returns the configured inventory and a function releasing it
func Open(ctx context.Context, cfg *config.Config, l logger.Logger) (inventory.Source, func() error, error) {
	switch cfg.Source {
	case config.SourceSQLite:
		store, err := storage.NewSQLiteStorage(cfg.DBPath, cfg.PageSize, l)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite inventory: %w", err)
		}
		return store, store.Close, nil
	case config.SourceEC2:
		src, err := awsec2.New(ctx, awsec2.Options{
			Profile:  cfg.Profile,
			Region:   cfg.Region,
			PageSize: pageSize32(cfg.PageSize),
		}, l)
		if err != nil {
			return nil, nil, err
		}
		return src, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown inventory source %q", cfg.Source)
	}
}

// pageSize32 clamps the page size to what DescribeNetworkInterfaces accepts
func pageSize32(n int) int32 {
	switch {
	case n <= 0:
		return 0
	case n < 5:
		return 5
	case n > 1000:
		return 1000
	default:
		return int32(n)
	}
}
