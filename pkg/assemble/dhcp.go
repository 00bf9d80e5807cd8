package assemble

import (
	"context"

	"github.com/openfroyo/cbc/pkg/engine"
	"github.com/openfroyo/cbc/pkg/netalloc"
)

// Default file names of the DHCP documents.
const (
	DHCPHostsFile    = "dhcpd.hosts"
	DHCPNetworksFile = "dhcpd.networks"
)

// DHCPHosts assembles one dhcpd host reservation per built server.
func (a *Assembler) DHCPHosts(ctx context.Context) (*Document, error) {
	hosts, err := LoadDHCPHosts(ctx, a.s)
	if err != nil {
		return nil, err
	}

	buf := engine.NewBuffer(0)
	for _, h := range hosts {
		buf.Appendf("host %s { hardware ethernet %s; fixed-address %s; option domain-name \"%s\"; }\n",
			h.Name, h.MAC, engine.IPv4String(h.IP), h.Domain)
	}

	a.logger.Debug().Int("hosts", len(hosts)).Msg("DHCP hosts assembled")
	return &Document{Kind: KindDHCPHosts, Name: DHCPHostsFile, Buffer: buf}, nil
}

// DHCPNetworks assembles the shared-network declarations serving every
// build domain that one of ifaces can reach.
func (a *Assembler) DHCPNetworks(ctx context.Context, ifaces []netalloc.Interface, opts netalloc.Options) (*Document, error) {
	domains, err := LoadDomains(ctx, a.s)
	if err != nil {
		return nil, err
	}

	for _, d := range domains {
		if err := d.Validate(); err != nil {
			a.logger.Warn().Err(err).Str("domain", d.Name).Msg("Skipping build domain")
		}
	}

	nets := netalloc.Allocate(ifaces, domains, opts)

	buf := engine.NewBuffer(0)
	netalloc.WriteSharedNetworks(buf, nets)

	a.logger.Debug().
		Int("interfaces", len(ifaces)).
		Int("domains", len(domains)).
		Int("networks", len(nets)).
		Msg("DHCP networks assembled")
	return &Document{Kind: KindDHCPNetworks, Name: DHCPNetworksFile, Buffer: buf}, nil
}
