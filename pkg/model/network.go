package model

// Subnet represents a network block as described by the inventory
type Subnet struct {
	ID               string            `json:"id" yaml:"id"`
	Name             string            `json:"name,omitempty" yaml:"name,omitempty"`
	CIDR             string            `json:"cidr" yaml:"cidr"` // CIDR notation, e.g., "10.0.0.0/24"
	IPv6CIDRs        []string          `json:"ipv6_cidrs,omitempty" yaml:"ipv6_cidrs,omitempty"`
	VpcID            string            `json:"vpc_id,omitempty" yaml:"vpc_id,omitempty"`
	AvailabilityZone string            `json:"availability_zone,omitempty" yaml:"availability_zone,omitempty"`
	Tags             map[string]string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Interface is one private address held by a network interface.
// An interface with several private addresses yields several records.
type Interface struct {
	ID          string `json:"id" yaml:"id"`
	SubnetID    string `json:"subnet_id" yaml:"subnet_id"`
	PrivateIP   string `json:"private_ip" yaml:"private_ip"`
	Status      string `json:"status" yaml:"status"`                 // e.g., "in-use", "available"
	Type        string `json:"interface_type" yaml:"interface_type"` // e.g., "interface", "nat_gateway"
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Primary     bool   `json:"primary" yaml:"primary"`
}

// Snapshot is a point-in-time copy of the inventory for one subnet
type Snapshot struct {
	Subnet     Subnet      `json:"subnet" yaml:"subnet"`
	Interfaces []Interface `json:"interfaces" yaml:"interfaces"`
}
