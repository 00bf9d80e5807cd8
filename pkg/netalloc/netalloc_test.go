package netalloc

import (
	"strings"
	"testing"

	"github.com/openfroyo/cbc/pkg/engine"
)

func ip(t *testing.T, s string) uint32 {
	t.Helper()
	v, err := engine.ParseIPv4(s)
	if err != nil {
		t.Fatalf("bad address %s: %v", s, err)
	}
	return v
}

func iface(t *testing.T, name, cidr string) Interface {
	t.Helper()
	i, err := ParseInterface(name, cidr)
	if err != nil {
		t.Fatalf("ParseInterface(%s): %v", cidr, err)
	}
	return i
}

func domain(t *testing.T, name, start, end string) BuildDomain {
	t.Helper()
	return BuildDomain{
		Name:       name,
		Start:      ip(t, start),
		End:        ip(t, end),
		Netmask:    ip(t, "255.255.255.0"),
		Gateway:    ip(t, "10.0.0.1"),
		Nameserver: ip(t, "10.0.0.2"),
	}
}

func TestInterfaceDerived(t *testing.T) {
	i := Interface{Name: "eth0", IP: ip(t, "10.0.0.5"), Netmask: ip(t, "255.255.255.0")}

	checks := []struct {
		name string
		got  uint32
		want string
	}{
		{"network", i.Network(), "10.0.0.0"},
		{"broadcast", i.Broadcast(), "10.0.0.255"},
		{"first", i.FirstUsable(), "10.0.0.1"},
		{"last", i.LastUsable(), "10.0.0.254"},
	}
	for _, c := range checks {
		if engine.IPv4String(c.got) != c.want {
			t.Errorf("%s: got %s, want %s", c.name, engine.IPv4String(c.got), c.want)
		}
	}
}

func TestCovers(t *testing.T) {
	i := iface(t, "eth0", "10.0.0.5/24")

	if !i.Covers(domain(t, "a", "10.0.0.10", "10.0.0.50")) {
		t.Error("expected [10.0.0.10,10.0.0.50] to be covered")
	}
	if i.Covers(domain(t, "b", "10.0.0.10", "10.0.1.5")) {
		t.Error("expected [10.0.0.10,10.0.1.5] not to be covered")
	}
	if i.Covers(domain(t, "c", "10.0.0.0", "10.0.0.50")) {
		t.Error("network address is not usable")
	}
	if !i.Covers(domain(t, "d", "10.0.0.1", "10.0.0.254")) {
		t.Error("full usable range should be covered")
	}
}

func TestAllocate(t *testing.T) {
	ifaces := []Interface{
		iface(t, "eth0", "10.0.0.5/24"),
		iface(t, "eth1", "192.168.1.1/24"),
	}

	second := domain(t, "lab.example.com", "192.168.1.100", "192.168.1.200")
	second.Gateway = ip(t, "192.168.1.254")
	second.Nameserver = ip(t, "192.168.1.1")

	domains := []BuildDomain{
		second,
		domain(t, "example.com", "10.0.0.10", "10.0.0.50"),
		domain(t, "nowhere.com", "172.16.0.10", "172.16.0.20"),
	}

	nets := Allocate(ifaces, domains, Options{})
	if len(nets) != 2 {
		t.Fatalf("expected 2 shared networks, got %d", len(nets))
	}

	// output follows domain order
	if nets[0].Domain != "lab.example.com" || nets[1].Domain != "example.com" {
		t.Errorf("unexpected order: %s, %s", nets[0].Domain, nets[1].Domain)
	}
	if nets[0].Interface != "eth1" || engine.IPv4String(nets[0].Network) != "192.168.1.0" {
		t.Errorf("unexpected entry: %+v", nets[0])
	}
	if engine.IPv4String(nets[0].Gateway) != "192.168.1.254" {
		t.Errorf("gateway should come from the domain, got %s", engine.IPv4String(nets[0].Gateway))
	}
	if len(nets[1].Search) != 1 || nets[1].Search[0] != "example.com" {
		t.Errorf("unexpected search list %v", nets[1].Search)
	}
}

func TestAllocateDedupByNetwork(t *testing.T) {
	ifaces := []Interface{iface(t, "eth0", "10.0.0.5/24")}
	domains := []BuildDomain{
		domain(t, "first.com", "10.0.0.10", "10.0.0.50"),
		domain(t, "second.com", "10.0.0.100", "10.0.0.150"),
	}

	nets := Allocate(ifaces, domains, Options{})
	if len(nets) != 1 {
		t.Fatalf("expected one entry per network, got %d", len(nets))
	}
	if nets[0].Domain != "first.com" || len(nets[0].Search) != 1 {
		t.Errorf("first domain must own the entry unmerged: %+v", nets[0])
	}
}

func TestAllocateStrictKey(t *testing.T) {
	ifaces := []Interface{
		iface(t, "eth0", "10.0.0.5/24"),
		iface(t, "eth1", "10.0.0.6/16"),
	}
	domains := []BuildDomain{domain(t, "example.com", "10.0.0.10", "10.0.0.50")}

	if got := len(Allocate(ifaces, domains, Options{})); got != 1 {
		t.Errorf("network-only key: expected 1 entry, got %d", got)
	}

	nets := Allocate(ifaces, domains, Options{StrictKey: true})
	if len(nets) != 2 {
		t.Fatalf("strict key: expected 2 entries, got %d", len(nets))
	}
	if nets[0].Netmask == nets[1].Netmask {
		t.Error("strict entries should differ by netmask")
	}
}

func TestAllocateDropsInvalid(t *testing.T) {
	ifaces := []Interface{iface(t, "eth0", "10.0.0.5/24")}

	noGateway := domain(t, "example.com", "10.0.0.10", "10.0.0.50")
	noGateway.Gateway = 0
	if nets := Allocate(ifaces, []BuildDomain{noGateway}, Options{}); len(nets) != 0 {
		t.Errorf("expected entry without gateway to be dropped, got %+v", nets)
	}

	reversed := domain(t, "backwards.com", "10.0.0.50", "10.0.0.10")
	if nets := Allocate(ifaces, []BuildDomain{reversed}, Options{}); len(nets) != 0 {
		t.Errorf("expected reversed range to be ignored, got %+v", nets)
	}
}

func TestWriteSharedNetworks(t *testing.T) {
	nets := Allocate(
		[]Interface{iface(t, "eth0", "10.0.0.5/24")},
		[]BuildDomain{domain(t, "example.com", "10.0.0.10", "10.0.0.50")},
		Options{},
	)

	buf := engine.NewBuffer(0)
	WriteSharedNetworks(buf, nets)

	want := `shared-network example.com {
	option domain-search "example.com";
	option domain-name-servers 10.0.0.2;
	subnet 10.0.0.0 netmask 255.255.255.0 {
		option routers 10.0.0.1;
		next-server 10.0.0.2;
		filename "pxelinux.0";
	}
}
`
	if buf.String() != want {
		t.Errorf("unexpected output:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestNextFreeIP(t *testing.T) {
	d := domain(t, "example.com", "10.0.0.10", "10.0.0.12")

	got, err := NextFreeIP(d, nil)
	if err != nil || engine.IPv4String(got) != "10.0.0.10" {
		t.Fatalf("expected 10.0.0.10, got %s (%v)", engine.IPv4String(got), err)
	}

	got, err = NextFreeIP(d, []uint32{ip(t, "10.0.0.10"), ip(t, "10.0.0.99")})
	if err != nil || engine.IPv4String(got) != "10.0.0.11" {
		t.Fatalf("expected 10.0.0.11, got %s (%v)", engine.IPv4String(got), err)
	}

	_, err = NextFreeIP(d, []uint32{ip(t, "10.0.0.10"), ip(t, "10.0.0.11"), ip(t, "10.0.0.12")})
	if !engine.IsNetworkRangeExhausted(err) {
		t.Fatalf("expected network_range_exhausted, got %v", err)
	}
	if !strings.Contains(err.Error(), "example.com") {
		t.Errorf("error should name the domain: %v", err)
	}

	_, err = NextFreeIP(domain(t, "bad", "10.0.0.9", "10.0.0.1"), nil)
	if !engine.IsInvalid(err) {
		t.Errorf("expected invalid error for reversed range, got %v", err)
	}
}

func TestParseInterface(t *testing.T) {
	i := iface(t, "eth0", "192.168.10.7/23")
	if engine.IPv4String(i.Netmask) != "255.255.254.0" {
		t.Errorf("unexpected netmask %s", engine.IPv4String(i.Netmask))
	}
	if engine.IPv4String(i.Network()) != "192.168.10.0" {
		t.Errorf("unexpected network %s", engine.IPv4String(i.Network()))
	}

	for _, bad := range []string{"10.0.0.5", "fe80::1/64", "nonsense"} {
		if _, err := ParseInterface("x", bad); err == nil {
			t.Errorf("ParseInterface(%s): expected error", bad)
		}
	}
}

func TestLocalInterfacesExcludesLoopback(t *testing.T) {
	ifaces, err := LocalInterfaces()
	if err != nil {
		t.Skipf("interfaces unavailable: %v", err)
	}
	for _, i := range ifaces {
		if i.IP>>24 == 127 {
			t.Errorf("loopback address returned: %s", i)
		}
	}
}
