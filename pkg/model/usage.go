package model

import "time"

// UsageKind groups address labels for counting
type UsageKind string

const (
	UsageReserved UsageKind = "reserved"
	UsageInUse    UsageKind = "in-use"
	UsageFree     UsageKind = "free"
)

// AddressRecord is the classification of one address in a block
type AddressRecord struct {
	Position    int       `json:"position" yaml:"position"`
	Address     string    `json:"address" yaml:"address"`
	Usage       string    `json:"usage" yaml:"usage"`
	Kind        UsageKind `json:"kind" yaml:"kind"`
	InterfaceID string    `json:"interface_id,omitempty" yaml:"interface_id,omitempty"`
}

// Summary holds the counters printed after the address table
type Summary struct {
	SubnetID   string `json:"subnet_id" yaml:"subnet_id"`
	SubnetName string `json:"subnet_name,omitempty" yaml:"subnet_name,omitempty"`
	CIDR       string `json:"cidr" yaml:"cidr"`
	Total      int    `json:"total" yaml:"total"`
	Available  int    `json:"available" yaml:"available"`
	Free       int    `json:"free" yaml:"free"`
	InUse      int    `json:"in_use" yaml:"in_use"`
	Reserved   int    `json:"reserved" yaml:"reserved"`
}

// Report is the result of one reconciliation pass
type Report struct {
	ID          string          `json:"id" yaml:"id"`
	GeneratedAt time.Time       `json:"generated_at" yaml:"generated_at"`
	Subnet      Subnet          `json:"subnet" yaml:"subnet"`
	Records     []AddressRecord `json:"records" yaml:"records"`
	Summary     Summary         `json:"summary" yaml:"summary"`
}
