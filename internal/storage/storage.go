// Package storage keeps an offline copy of the interface inventory in SQLite.
//
// The store holds inventory input imported from snapshots. Usage reports are
// never written here.
package storage

import (
	"context"
	"errors"

	"github.com/martinsuchenak/ipusage/internal/inventory"
	"github.com/martinsuchenak/ipusage/pkg/model"
)

// DefaultPageSize is the number of interface rows returned per page
const DefaultPageSize = 500

var (
	ErrInvalidCursor   = errors.New("invalid page cursor")
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)

// Storage is an inventory source that can also be loaded from snapshots
type Storage interface {
	inventory.Source
	Import(ctx context.Context, snap *model.Snapshot) error
	ListSubnets(ctx context.Context) ([]model.Subnet, error)
	Close() error
}

// validateSnapshot checks the fields the schema requires
func validateSnapshot(snap *model.Snapshot) error {
	if snap == nil {
		return ErrInvalidSnapshot
	}
	if snap.Subnet.ID == "" {
		return errors.Join(ErrInvalidSnapshot, errors.New("subnet id is required"))
	}
	if snap.Subnet.CIDR == "" && len(snap.Subnet.IPv6CIDRs) == 0 {
		return errors.Join(ErrInvalidSnapshot, errors.New("subnet cidr is required"))
	}
	for _, iface := range snap.Interfaces {
		if iface.ID == "" || iface.PrivateIP == "" {
			return errors.Join(ErrInvalidSnapshot, errors.New("interfaces need an id and a private address"))
		}
	}
	return nil
}
