package assemble

import (
	"context"
	"testing"

	"github.com/openfroyo/cbc/pkg/engine"
	"github.com/openfroyo/cbc/pkg/stores"
	"github.com/openfroyo/cbc/pkg/stores/storetest"
	"github.com/rs/zerolog"
)

const (
	testServer   = "web01"
	testServerID = uint64(7)
	testSchemeID = uint64(1)
)

func ip(t *testing.T, s string) uint64 {
	t.Helper()
	v, err := engine.ParseIPv4(s)
	if err != nil {
		t.Fatalf("bad address %s: %v", s, err)
	}
	return uint64(v)
}

type osRow struct {
	name, version, alias, verAlias, arch string
}

var (
	debian12 = osRow{"Debian", "12", "debian", "bookworm", "x86_64"}
	centos5  = osRow{"CentOS", "5.11", "centos", "", "x86_64"}
	centos6  = osRow{"CentOS", "6.10", "centos", "", "x86_64"}
	centos7  = osRow{"CentOS", "7.9", "centos", "", "x86_64"}
)

// fixture returns the rows of one fully described server built with o.
func fixture(t *testing.T, o osRow) *storetest.Searcher {
	t.Helper()

	s := storetest.New()
	s.Add(stores.QueryServerID, testServer, stores.Row{stores.Uint(testServerID)})

	s.Add(stores.QueryNetworkConfig, testServerID, stores.Row{
		stores.Uint(ip(t, "10.0.0.10")),
		stores.Uint(ip(t, "255.255.255.0")),
		stores.Uint(ip(t, "10.0.0.1")),
		stores.Uint(ip(t, "10.0.0.2")),
		stores.Text(testServer),
		stores.Text("example.com"),
		stores.Text("eth0"),
		stores.Text("AA:BB:CC:00:11:22"),
	})
	s.Add(stores.QueryBuildOS, testServerID, stores.Row{
		stores.Text(o.name), stores.Text(o.version), stores.Text(o.alias), stores.Text(o.verAlias), stores.Text(o.arch),
	})
	s.Add(stores.QueryLocale, testServerID, stores.Row{
		stores.Text("en_GB.UTF-8"), stores.Text("gb"), stores.Text("Europe/London"), stores.Text("en"), stores.Text("GB"),
	})
	buildType := "preseed"
	if o.alias != "debian" {
		buildType = "kickstart"
	}
	s.Add(stores.QueryBuildType, testServerID, stores.Row{
		stores.Text(o.alias),
		stores.Text(buildType),
		stores.Text(""),
		stores.Text("http://build.example.com/" + o.alias + "/"),
		stores.Text("mirror.example.com"),
		stores.Text(""),
	})
	s.Add(stores.QueryNTP, testServerID, stores.Row{stores.Short(1), stores.Text("ntp.example.com")})

	s.Add(stores.QueryScheme, testServerID, stores.Row{stores.Uint(testSchemeID), stores.Text("base"), stores.Short(0)})
	s.Add(stores.QueryPartitions, testSchemeID,
		stores.Row{stores.Uint(100), stores.Uint(512), stores.Uint(1), stores.Text("/boot"), stores.Text("ext3"), stores.Text("")},
		stores.Row{stores.Uint(1000), stores.Uint(8000), stores.Uint(2), stores.Text("/"), stores.Text("ext4"), stores.Text("")},
		stores.Row{stores.Uint(512), stores.Uint(512), stores.Uint(3), stores.Text("swap"), stores.Text("swap"), stores.Text("")},
	)
	s.Add(stores.QueryPackages, testServerID, stores.Row{stores.Text("curl")}, stores.Row{stores.Text("vim")})

	// Placeholder sources.
	s.Add(stores.QueryBuildIP, testServerID, stores.Row{stores.Uint(ip(t, "10.0.0.10"))})
	s.Add(stores.QueryBuildHostname, testServerID, stores.Row{stores.Text(testServer)})
	s.Add(stores.QueryBuildFQDN, testServerID, stores.Row{stores.Text(testServer), stores.Text("example.com")})

	s.Add(stores.QueryScriptArgs, testServerID,
		scriptArg("-i %ip -n %hostname", 1, "setup.sh", o.alias),
		scriptArg("--domain %domain", 1, "dns.sh", o.alias),
		scriptArg("--fqdn %fqdn", 1, "motd.sh", o.alias),
	)

	s.Add(stores.QueryDomainByName, "example.com", domainRow(t, 3, "example.com", "10.0.0.10", "10.0.0.12"))
	return s
}

func scriptArg(template string, seq uint64, script, alias string) stores.Row {
	return stores.Row{stores.Text(template), stores.Uint(seq), stores.Text(script), stores.Text("example.com"), stores.Text(alias)}
}

func domainRow(t *testing.T, id uint64, name, start, end string) stores.Row {
	t.Helper()
	return stores.Row{
		stores.Uint(id),
		stores.Text(name),
		stores.Uint(ip(t, start)),
		stores.Uint(ip(t, end)),
		stores.Uint(ip(t, "255.255.255.0")),
		stores.Uint(ip(t, "10.0.0.1")),
		stores.Uint(ip(t, "10.0.0.2")),
	}
}

func newTestAssembler(s stores.Searcher, opts Options) *Assembler {
	return New(s, opts, zerolog.Nop())
}

func server(t *testing.T, a *Assembler) Server {
	t.Helper()
	srv, err := a.Server(context.Background(), testServer)
	if err != nil {
		t.Fatalf("Server failed: %v", err)
	}
	return srv
}
