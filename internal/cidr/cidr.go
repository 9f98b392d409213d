// Package cidr parses network blocks and enumerates their addresses.
package cidr

import (
	"fmt"
	"iter"
	"math/big"
	"net/netip"
	"strings"
)

// DefaultMaxAddresses bounds eager enumeration (a /16 in IPv4)
const DefaultMaxAddresses = 1 << 16

// Family is the address family of a block
type Family int

const (
	IPv4 Family = 4
	IPv6 Family = 6
)

func (f Family) String() string {
	if f == IPv6 {
		return "ipv6"
	}
	return "ipv4"
}

// Bits returns the address length of the family
func (f Family) Bits() int {
	if f == IPv6 {
		return 128
	}
	return 32
}

// Block is a parsed network prefix with its host bits cleared
type Block struct {
	prefix netip.Prefix
}

// Parse parses an IPv4 or IPv6 CIDR. Host bits must be zero.
func Parse(s string) (Block, error) {
	s = strings.TrimSpace(s)
	p, err := netip.ParsePrefix(s)
	if err != nil {
		return Block{}, &InvalidBlockError{CIDR: s, Reason: "malformed prefix", Err: err}
	}
	if p.Addr().Zone() != "" {
		return Block{}, &InvalidBlockError{CIDR: s, Reason: "zoned addresses are not allowed"}
	}
	if p.Masked() != p {
		return Block{}, &InvalidBlockError{CIDR: s, Reason: "host bits set"}
	}
	return Block{prefix: p}, nil
}

// MustParse is Parse for tests and constants
func MustParse(s string) Block {
	b, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return b
}

// Prefix returns the underlying prefix
func (b Block) Prefix() netip.Prefix { return b.prefix }

// Family returns the address family
func (b Block) Family() Family {
	if b.prefix.Addr().Is4() {
		return IPv4
	}
	return IPv6
}

// PrefixLen returns the prefix length
func (b Block) PrefixLen() int { return b.prefix.Bits() }

func (b Block) String() string { return b.prefix.String() }

// Size returns the number of addresses in the block
func (b Block) Size() *big.Int {
	hostBits := b.Family().Bits() - b.prefix.Bits()
	return new(big.Int).Lsh(big.NewInt(1), uint(hostBits))
}

// First returns the network address
func (b Block) First() netip.Addr { return b.prefix.Addr() }

// Last returns the broadcast (all ones) address
func (b Block) Last() netip.Addr {
	last := new(big.Int).Add(addrToBig(b.First()), b.Size())
	last.Sub(last, big.NewInt(1))
	return bigToAddr(last, b.Family())
}

// Contains reports whether addr is inside the block
func (b Block) Contains(addr netip.Addr) bool { return b.prefix.Contains(addr) }

// All yields every address of the block in increasing order without
// materialising them.
func (b Block) All() iter.Seq[netip.Addr] {
	return func(yield func(netip.Addr) bool) {
		if !b.prefix.IsValid() {
			return
		}
		last := b.Last()
		for a := b.First(); ; a = a.Next() {
			if !yield(a) {
				return
			}
			if a == last {
				return
			}
		}
	}
}

// Enumerator materialises blocks up to a size bound
type Enumerator struct {
	MaxAddresses int
}

// NewEnumerator returns an enumerator; max <= 0 selects DefaultMaxAddresses
func NewEnumerator(max int) *Enumerator {
	if max <= 0 {
		max = DefaultMaxAddresses
	}
	return &Enumerator{MaxAddresses: max}
}

// Enumerate returns every address of the block as a string
func (e *Enumerator) Enumerate(b Block) ([]string, error) {
	max := e.MaxAddresses
	if max <= 0 {
		max = DefaultMaxAddresses
	}
	size := b.Size()
	if size.Cmp(big.NewInt(int64(max))) > 0 {
		return nil, &BlockTooLargeError{CIDR: b.String(), Size: size, Max: max}
	}

	addrs := make([]string, 0, int(size.Int64()))
	for a := range b.All() {
		addrs = append(addrs, a.String())
	}
	return addrs, nil
}

// Enumerate parses s and materialises it with the default bound
func Enumerate(s string) ([]string, error) {
	b, err := Parse(s)
	if err != nil {
		return nil, err
	}
	return NewEnumerator(0).Enumerate(b)
}

func addrToBig(a netip.Addr) *big.Int {
	if a.Is4() {
		b := a.As4()
		return new(big.Int).SetBytes(b[:])
	}
	b := a.As16()
	return new(big.Int).SetBytes(b[:])
}

func bigToAddr(i *big.Int, f Family) netip.Addr {
	if f == IPv4 {
		var out [4]byte
		i.FillBytes(out[:])
		return netip.AddrFrom4(out)
	}
	var out [16]byte
	i.FillBytes(out[:])
	return netip.AddrFrom16(out)
}

// InvalidBlockError reports a CIDR that is not a valid network address
type InvalidBlockError struct {
	CIDR   string
	Reason string
	Err    error
}

func (e *InvalidBlockError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid block %q: %s: %v", e.CIDR, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid block %q: %s", e.CIDR, e.Reason)
}

func (e *InvalidBlockError) Unwrap() error { return e.Err }

// BlockTooLargeError reports a block above the enumeration bound
type BlockTooLargeError struct {
	CIDR string
	Size *big.Int
	Max  int
}

func (e *BlockTooLargeError) Error() string {
	return fmt.Sprintf("block %s has %s addresses, more than the limit of %d", e.CIDR, e.Size, e.Max)
}
