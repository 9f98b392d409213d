// Package usage labels every address of a block as reserved, in use or free.
package usage

import (
	"net/netip"

	"github.com/paularlott/logger"

	"github.com/martinsuchenak/ipusage/internal/log"
	"github.com/martinsuchenak/ipusage/pkg/model"
)

// Usage labels
const (
	LabelNetwork   = "Network"
	LabelRouter    = "Reserved: Router"
	LabelDNS       = "Reserved: DNS"
	LabelFuture    = "Reserved: future use"
	LabelBroadcast = "Broadcast: Blocked"
	LabelFree      = "Free"
)

// ReservedCount is the number of positions held back in every block:
// the first four addresses and the last one
const ReservedCount = 5

// reservation assigns a label by position alone
type reservation struct {
	label string
	match func(position, lastIndex int) bool
}

// Evaluated in order, first match wins. Broadcast comes first so the last
// address stays blocked in blocks of fewer than five addresses, where it
// shares a position with one of the leading reservations.
var reservations = []reservation{
	{LabelBroadcast, func(p, last int) bool { return p == last }},
	{LabelNetwork, func(p, _ int) bool { return p == 0 }},
	{LabelRouter, func(p, _ int) bool { return p == 1 }},
	{LabelDNS, func(p, _ int) bool { return p == 2 }},
	{LabelFuture, func(p, _ int) bool { return p == 3 }},
}

// ReservedLabel returns the positional label of an address, if any
func ReservedLabel(position, total int) (string, bool) {
	last := total - 1
	for _, r := range reservations {
		if r.match(position, last) {
			return r.label, true
		}
	}
	return "", false
}

// InterfaceLabel formats the usage of an address held by an interface
func InterfaceLabel(iface model.Interface) string {
	return iface.Status + ": " + iface.Type
}

// Index looks up interface records by private address
type Index map[string]model.Interface

// NewIndex builds an index; a later record replaces an earlier one with the
// same address.
func NewIndex(ifaces []model.Interface) Index {
	idx := make(Index, len(ifaces))
	for _, iface := range ifaces {
		idx[canonical(iface.PrivateIP)] = iface
	}
	return idx
}

// Lookup finds the interface holding addr
func (idx Index) Lookup(addr string) (model.Interface, bool) {
	iface, ok := idx[canonical(addr)]
	return iface, ok
}

// canonical normalises textual addresses so "2001:DB8::0001" and
// "2001:db8::1" share a key
func canonical(addr string) string {
	a, err := netip.ParseAddr(addr)
	if err != nil {
		return addr
	}
	return a.Unmap().String()
}

// Classifier labels enumerated addresses against the interface inventory
type Classifier struct {
	log logger.Logger
}

// NewClassifier creates a classifier reporting diagnostics to l
func NewClassifier(l logger.Logger) *Classifier {
	return &Classifier{log: log.OrNull(l)}
}

// Classify returns one record per address, in the same order
func (c *Classifier) Classify(addrs []string, ifaces []model.Interface) []model.AddressRecord {
	idx := NewIndex(ifaces)
	if len(idx) != len(ifaces) {
		c.log.Debug("Duplicate interface addresses collapsed", "records", len(ifaces), "unique", len(idx))
	}

	total := len(addrs)
	records := make([]model.AddressRecord, total)
	for position, addr := range addrs {
		rec := model.AddressRecord{Position: position, Address: addr}

		if label, ok := ReservedLabel(position, total); ok {
			rec.Usage = label
			rec.Kind = model.UsageReserved
		} else if iface, ok := idx.Lookup(addr); ok {
			rec.Usage = InterfaceLabel(iface)
			rec.Kind = model.UsageInUse
			rec.InterfaceID = iface.ID
		} else {
			rec.Usage = LabelFree
			rec.Kind = model.UsageFree
		}

		records[position] = rec
	}

	c.log.Debug("Addresses classified", "total", total, "interfaces", len(idx))
	return records
}

// Summarize counts a classified block
func Summarize(subnet model.Subnet, cidr string, records []model.AddressRecord) model.Summary {
	s := model.Summary{
		SubnetID:   subnet.ID,
		SubnetName: subnet.Name,
		CIDR:       cidr,
		Total:      len(records),
	}
	s.Available = max(s.Total-ReservedCount, 0)

	for _, rec := range records {
		switch rec.Kind {
		case model.UsageFree:
			s.Free++
		case model.UsageInUse:
			s.InUse++
		case model.UsageReserved:
			s.Reserved++
		}
	}
	return s
}
