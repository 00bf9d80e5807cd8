// Package netalloc matches host network interfaces to build domains and
// computes the DHCP shared-network declarations that serve them. It also
// picks free addresses inside a build domain.
//
// Addresses are host-order uint32 values throughout, as stored in the
// build database.
package netalloc

import (
	"fmt"

	"github.com/openfroyo/cbc/pkg/engine"
)

// Interface is an IPv4 network interface.
type Interface struct {
	Name    string `json:"name"`
	IP      uint32 `json:"ip"`
	Netmask uint32 `json:"netmask"`
}

// Network returns the network address.
func (i Interface) Network() uint32 { return i.IP & i.Netmask }

// Broadcast returns the broadcast address.
func (i Interface) Broadcast() uint32 { return i.Network() | ^i.Netmask }

// FirstUsable returns the first host address of the network.
func (i Interface) FirstUsable() uint32 { return i.Network() + 1 }

// LastUsable returns the last host address of the network.
func (i Interface) LastUsable() uint32 { return i.Broadcast() - 1 }

// Covers reports whether the whole range of d lies in the usable range
// of the interface's network.
func (i Interface) Covers(d BuildDomain) bool {
	return i.FirstUsable() <= d.Start && i.LastUsable() >= d.End
}

// String formats the interface as name ip/mask.
func (i Interface) String() string {
	return fmt.Sprintf("%s %s/%s", i.Name, engine.IPv4String(i.IP), engine.IPv4String(i.Netmask))
}

// BuildDomain is a named address range with the network services its
// hosts use.
type BuildDomain struct {
	ID         uint64 `json:"id"`
	Name       string `json:"name"`
	Start      uint32 `json:"start"`
	End        uint32 `json:"end"`
	Netmask    uint32 `json:"netmask"`
	Gateway    uint32 `json:"gateway"`
	Nameserver uint32 `json:"nameserver"`
}

// Validate checks that the range is ordered.
func (d BuildDomain) Validate() error {
	if d.Start > d.End {
		return engine.NewInvalidError(fmt.Sprintf("range start %s is after end %s",
			engine.IPv4String(d.Start), engine.IPv4String(d.End))).WithDomain(d.Name)
	}
	return nil
}

// Size returns the number of addresses in the range.
func (d BuildDomain) Size() uint64 {
	if d.Start > d.End {
		return 0
	}
	return uint64(d.End) - uint64(d.Start) + 1
}

// SharedNetwork is one DHCP shared-network declaration.
type SharedNetwork struct {
	Domain     string   `json:"domain"`
	Interface  string   `json:"interface"`
	Network    uint32   `json:"network"`
	Netmask    uint32   `json:"netmask"`
	Gateway    uint32   `json:"gateway"`
	Nameserver uint32   `json:"nameserver"`
	Search     []string `json:"search"`
}

// Valid reports whether every address field is set.
func (n SharedNetwork) Valid() bool {
	return n.Network != 0 && n.Netmask != 0 && n.Gateway != 0 && n.Nameserver != 0
}

// Options tunes Allocate.
type Options struct {
	// StrictKey deduplicates on network and netmask instead of the
	// network address alone.
	StrictKey bool
}

type netKey struct {
	network, netmask uint32
}

// Allocate returns one shared network per interface network that covers
// at least one domain. Domains are visited in the order given and
// interfaces in the order given within each domain, so the output follows
// the domain order. The first domain to claim a network owns its entry;
// later matches are not merged into it. Domains whose range is out of
// order are ignored. Entries with a zero network, netmask, gateway or
// nameserver are dropped after deduplication.
func Allocate(ifaces []Interface, domains []BuildDomain, opts Options) []SharedNetwork {
	seen := make(map[netKey]bool)
	var nets []SharedNetwork

	for _, d := range domains {
		if d.Validate() != nil {
			continue
		}
		for _, i := range ifaces {
			if !i.Covers(d) {
				continue
			}

			key := netKey{network: i.Network()}
			if opts.StrictKey {
				key.netmask = i.Netmask
			}
			if seen[key] {
				continue
			}
			seen[key] = true

			nets = append(nets, SharedNetwork{
				Domain:     d.Name,
				Interface:  i.Name,
				Network:    i.Network(),
				Netmask:    i.Netmask,
				Gateway:    d.Gateway,
				Nameserver: d.Nameserver,
				Search:     []string{d.Name},
			})
		}
	}

	valid := nets[:0]
	for _, n := range nets {
		if n.Valid() {
			valid = append(valid, n)
		}
	}
	return valid
}

// WriteSharedNetworks appends nets to buf in ISC dhcpd syntax.
func WriteSharedNetworks(buf *engine.Buffer, nets []SharedNetwork) {
	for _, n := range nets {
		buf.Appendf("shared-network %s {\n", n.Domain)
		buf.Append("\toption domain-search ")
		for i, s := range n.Search {
			if i > 0 {
				buf.Append(", ")
			}
			buf.Appendf("%q", s)
		}
		buf.Append(";\n")
		buf.Appendf("\toption domain-name-servers %s;\n", engine.IPv4String(n.Nameserver))
		buf.Appendf("\tsubnet %s netmask %s {\n", engine.IPv4String(n.Network), engine.IPv4String(n.Netmask))
		buf.Appendf("\t\toption routers %s;\n", engine.IPv4String(n.Gateway))
		buf.Appendf("\t\tnext-server %s;\n", engine.IPv4String(n.Nameserver))
		buf.Append("\t\tfilename \"pxelinux.0\";\n")
		buf.Append("\t}\n")
		buf.Append("}\n")
	}
}

// NextFreeIP returns the lowest address of d's range that is not in used.
// used must be the current allocation state of the domain, re-read for
// every call.
func NextFreeIP(d BuildDomain, used []uint32) (uint32, error) {
	if err := d.Validate(); err != nil {
		return 0, err
	}

	taken := make(map[uint32]struct{}, len(used))
	for _, ip := range used {
		taken[ip] = struct{}{}
	}

	for ip := uint64(d.Start); ip <= uint64(d.End); ip++ {
		if _, ok := taken[uint32(ip)]; !ok {
			return uint32(ip), nil
		}
	}
	return 0, engine.NewNetworkRangeExhaustedError(d.Name)
}
