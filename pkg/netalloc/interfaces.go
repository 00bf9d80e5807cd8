package netalloc

import (
	"encoding/binary"
	"fmt"
	"net"
	"net/netip"
)

// LocalInterfaces returns the IPv4 addresses of the host's interfaces
// that are up, loopback excluded. An interface with several addresses
// yields one entry per address.
func LocalInterfaces() ([]Interface, error) {
	sys, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to list interfaces: %w", err)
	}

	var out []Interface
	for _, si := range sys {
		if si.Flags&net.FlagLoopback != 0 || si.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := si.Addrs()
		if err != nil {
			return nil, fmt.Errorf("failed to read addresses of %s: %w", si.Name, err)
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			ip4 := ipnet.IP.To4()
			if ip4 == nil || len(ipnet.Mask) != net.IPv4len {
				continue
			}
			out = append(out, Interface{
				Name:    si.Name,
				IP:      binary.BigEndian.Uint32(ip4),
				Netmask: binary.BigEndian.Uint32(ipnet.Mask),
			})
		}
	}
	return out, nil
}

// ParseInterface builds an Interface from a name and an address in CIDR
// notation, such as "10.0.0.5/24".
func ParseInterface(name, cidr string) (Interface, error) {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return Interface{}, fmt.Errorf("interface %s: %w", name, err)
	}
	if !prefix.Addr().Is4() {
		return Interface{}, fmt.Errorf("interface %s: %s is not IPv4", name, cidr)
	}

	b := prefix.Addr().As4()
	var mask uint32
	if bits := prefix.Bits(); bits > 0 {
		mask = ^uint32(0) << (32 - bits)
	}
	return Interface{
		Name:    name,
		IP:      binary.BigEndian.Uint32(b[:]),
		Netmask: mask,
	}, nil
}
