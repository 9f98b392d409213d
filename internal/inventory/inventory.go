// Package inventory defines the remote collaborators that describe a subnet
// and list the interfaces attached to it.
package inventory

import (
	"context"
	"errors"

	"github.com/martinsuchenak/ipusage/internal/pager"
	"github.com/martinsuchenak/ipusage/pkg/model"
)

// ErrSubnetNotFound is returned when the inventory has no such subnet
var ErrSubnetNotFound = errors.New("subnet not found")

// Source is a read-only inventory of subnets and their interfaces
type Source interface {
	// Subnet describes one subnet
	Subnet(ctx context.Context, id string) (*model.Subnet, error)

	// InterfacePages returns the paginated listing of interface records
	// attached to the subnet
	InterfacePages(subnetID string) pager.PageFunc[model.Interface]
}

// Snapshot copies the inventory of one subnet
func Snapshot(ctx context.Context, src Source, subnetID string) (*model.Snapshot, error) {
	subnet, err := src.Subnet(ctx, subnetID)
	if err != nil {
		return nil, err
	}

	ifaces, err := pager.Collect(ctx, src.InterfacePages(subnetID), nil)
	if err != nil {
		return nil, err
	}

	return &model.Snapshot{Subnet: *subnet, Interfaces: ifaces}, nil
}
