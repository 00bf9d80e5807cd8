package assemble

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/openfroyo/cbc/pkg/engine"
	"github.com/openfroyo/cbc/pkg/netalloc"
	"github.com/openfroyo/cbc/pkg/partition"
	"github.com/openfroyo/cbc/pkg/stores"
	"github.com/rs/zerolog"
)

// Server identifies the host a document is built for.
type Server struct {
	ID   uint64
	Name string
}

func (s Server) String() string { return s.Name }

// Network is the static addressing of a server's build interface.
type Network struct {
	IP         uint32
	Netmask    uint32
	Gateway    uint32
	Nameserver uint32
	Hostname   string
	Domain     string
	Interface  string
	MAC        string
}

// FQDN returns hostname.domain.
func (n Network) FQDN() string {
	if n.Domain == "" {
		return n.Hostname
	}
	return n.Hostname + "." + n.Domain
}

// OS is the operating system a server is built with.
type OS struct {
	Name         string
	Version      string
	Alias        string
	VersionAlias string
	Arch         string
	Family       engine.OSFamily
}

// Major returns the version up to the first dot ("5" for "5.11").
func (o OS) Major() string {
	major, _, _ := strings.Cut(o.Version, ".")
	return major
}

// Locale holds the installer language settings.
type Locale struct {
	Locale   string
	Keymap   string
	Timezone string
	Language string
	Country  string
}

// BuildType is the installer flavour of an OS alias.
type BuildType struct {
	Alias     string
	BuildType string
	Arg       string
	URL       string
	Mirror    string
	BootLine  string
}

// NTP is the time configuration of a build domain.
type NTP struct {
	Enabled bool
	Server  string
}

// Disk is the install target of a server.
type Disk struct {
	Device string
	LVM    bool
}

// Facts reads the rows one server's documents are built from. Every
// method re-reads the store.
type Facts struct {
	s      stores.Searcher
	server Server
	logger zerolog.Logger
}

// NewFacts returns a fact reader for server.
func NewFacts(s stores.Searcher, server Server, logger zerolog.Logger) *Facts {
	return &Facts{s: s, server: server, logger: logger}
}

// LookupServer resolves a server name to its id.
func LookupServer(ctx context.Context, s stores.Searcher, name string, logger zerolog.Logger) (Server, error) {
	row, err := engine.RequireOne(ctx, s, stores.QueryServerID, name, name, logger)
	if err != nil {
		return Server{}, err
	}
	return Server{ID: row.Uint(0), Name: name}, nil
}

func (f *Facts) one(ctx context.Context, id stores.QueryID) (stores.Row, error) {
	return engine.RequireOne(ctx, f.s, id, f.server.ID, f.server.Name, f.logger)
}

// Network loads the build interface addressing.
func (f *Facts) Network(ctx context.Context) (Network, error) {
	row, err := f.one(ctx, stores.QueryNetworkConfig)
	if err != nil {
		return Network{}, err
	}
	return Network{
		IP:         uint32(row.Uint(0)),
		Netmask:    uint32(row.Uint(1)),
		Gateway:    uint32(row.Uint(2)),
		Nameserver: uint32(row.Uint(3)),
		Hostname:   row.Text(4),
		Domain:     row.Text(5),
		Interface:  row.Text(6),
		MAC:        row.Text(7),
	}, nil
}

// OS loads the operating system and classifies its family from the alias.
func (f *Facts) OS(ctx context.Context) (OS, error) {
	row, err := f.one(ctx, stores.QueryBuildOS)
	if err != nil {
		return OS{}, err
	}
	o := OS{
		Name:         row.Text(0),
		Version:      row.Text(1),
		Alias:        row.Text(2),
		VersionAlias: row.Text(3),
		Arch:         row.Text(4),
	}
	family, err := engine.ParseOSFamily(o.Alias)
	if err != nil {
		family, err = engine.ParseOSFamily(o.Name)
	}
	if err != nil {
		return OS{}, engine.NewInvalidError(fmt.Sprintf("unknown OS family for %s %s", o.Name, o.Alias)).
			WithServer(f.server.Name).
			WithQuery(stores.QueryBuildOS.String())
	}
	o.Family = family
	return o, nil
}

// Locale loads the installer locale.
func (f *Facts) Locale(ctx context.Context) (Locale, error) {
	row, err := f.one(ctx, stores.QueryLocale)
	if err != nil {
		return Locale{}, err
	}
	return Locale{
		Locale:   row.Text(0),
		Keymap:   row.Text(1),
		Timezone: row.Text(2),
		Language: row.Text(3),
		Country:  row.Text(4),
	}, nil
}

// BuildType loads the build type of the server's OS alias.
func (f *Facts) BuildType(ctx context.Context) (BuildType, error) {
	row, err := f.one(ctx, stores.QueryBuildType)
	if err != nil {
		return BuildType{}, err
	}
	return BuildType{
		Alias:     row.Text(0),
		BuildType: row.Text(1),
		Arg:       row.Text(2),
		URL:       row.Text(3),
		Mirror:    row.Text(4),
		BootLine:  row.Text(5),
	}, nil
}

// NTP loads the time settings of the server's build domain.
func (f *Facts) NTP(ctx context.Context) (NTP, error) {
	row, err := f.one(ctx, stores.QueryNTP)
	if err != nil {
		return NTP{}, err
	}
	return NTP{Enabled: row.Short(0) != 0, Server: row.Text(1)}, nil
}

// Scheme loads the server's partition scheme with its partitions and
// mount options.
func (f *Facts) Scheme(ctx context.Context) (engine.PartitionScheme, error) {
	row, err := f.one(ctx, stores.QueryScheme)
	if err != nil {
		return engine.PartitionScheme{}, err
	}
	return loadPartitions(ctx, f.s, schemeFromRow(row), f.server.Name)
}

// LoadSchemeByName loads a partition scheme without a server.
func LoadSchemeByName(ctx context.Context, s stores.Searcher, name string, logger zerolog.Logger) (engine.PartitionScheme, error) {
	row, err := engine.RequireOne(ctx, s, stores.QuerySchemeByName, name, "", logger)
	if err != nil {
		return engine.PartitionScheme{}, err
	}
	return loadPartitions(ctx, s, schemeFromRow(row), "")
}

func schemeFromRow(row stores.Row) engine.PartitionScheme {
	return engine.PartitionScheme{
		ID:   row.Uint(0),
		Name: row.Text(1),
		LVM:  row.Short(2) != 0,
	}
}

// loadPartitions fills in the partitions of scheme. Options attach to the
// partition with the same mount point, in query order.
func loadPartitions(ctx context.Context, s stores.Searcher, scheme engine.PartitionScheme, server string) (engine.PartitionScheme, error) {
	parts, err := engine.RequireRows(ctx, s, stores.QueryPartitions, scheme.ID, server)
	if err != nil {
		return engine.PartitionScheme{}, err
	}

	scheme.Partitions = make([]engine.PartitionSpec, 0, len(parts))
	for _, row := range parts {
		scheme.Partitions = append(scheme.Partitions, engine.PartitionSpec{
			MinSizeMB:     row.Uint(0),
			MaxSizeMB:     row.Uint(1),
			Priority:      row.Uint(2),
			MountPoint:    row.Text(3),
			Filesystem:    row.Text(4),
			LogicalVolume: row.Text(5),
		})
	}

	opts, err := s.Search(ctx, stores.QueryPartOptions, scheme.ID)
	if err != nil {
		return engine.PartitionScheme{}, fmt.Errorf("query %s for %s: %w", stores.QueryPartOptions, scheme.Name, err)
	}
	for _, row := range opts.Rows {
		mount, option := row.Text(0), row.Text(1)
		for i := range scheme.Partitions {
			if scheme.Partitions[i].MountPoint == mount {
				scheme.Partitions[i].Options = append(scheme.Partitions[i].Options, option)
				break
			}
		}
	}

	return scheme, nil
}

// Packages loads the extra packages to install. No rows is not an error.
func (f *Facts) Packages(ctx context.Context) ([]string, error) {
	rs, err := f.s.Search(ctx, stores.QueryPackages, f.server.ID)
	if err != nil {
		return nil, fmt.Errorf("query %s for %s: %w", stores.QueryPackages, f.server.Name, err)
	}
	pkgs := make([]string, 0, rs.Len())
	for _, row := range rs.Rows {
		pkgs = append(pkgs, row.Text(0))
	}
	return pkgs, nil
}

// Disk loads the install target. A server without a disk row installs to
// partition.DefaultDisk; with several rows the first is used.
func (f *Facts) Disk(ctx context.Context) (Disk, error) {
	rs, err := f.s.Search(ctx, stores.QueryDisk, f.server.ID)
	if err != nil {
		return Disk{}, fmt.Errorf("query %s for %s: %w", stores.QueryDisk, f.server.Name, err)
	}
	row, ok := rs.First()
	if !ok {
		f.logger.Debug().Str("server", f.server.Name).Msg("No disk configured, using default")
		return Disk{Device: partition.DefaultDisk}, nil
	}
	return Disk{
		Device: strings.TrimPrefix(row.Text(0), "/dev/"),
		LVM:    row.Short(1) != 0,
	}, nil
}

// ScriptArgs loads the post-install script invocations for the server's
// domain and build type, ordered by script and sequence.
func (f *Facts) ScriptArgs(ctx context.Context) ([]engine.ScriptArgument, error) {
	rs, err := f.s.Search(ctx, stores.QueryScriptArgs, f.server.ID)
	if err != nil {
		return nil, fmt.Errorf("query %s for %s: %w", stores.QueryScriptArgs, f.server.Name, err)
	}
	args := make([]engine.ScriptArgument, 0, rs.Len())
	for _, row := range rs.Rows {
		args = append(args, engine.ScriptArgument{
			Template:  row.Text(0),
			Sequence:  row.Uint(1),
			Script:    row.Text(2),
			Domain:    row.Text(3),
			BuildType: row.Text(4),
		})
	}
	return args, nil
}

// DHCPHost is one reservation of a built server.
type DHCPHost struct {
	Name   string
	MAC    string
	IP     uint32
	Domain string
}

// LoadDHCPHosts loads every built server's reservation, ordered by name.
func LoadDHCPHosts(ctx context.Context, s stores.Searcher) ([]DHCPHost, error) {
	rs, err := s.Search(ctx, stores.QueryDHCPHosts, nil)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", stores.QueryDHCPHosts, err)
	}
	hosts := make([]DHCPHost, 0, rs.Len())
	for _, row := range rs.Rows {
		hosts = append(hosts, DHCPHost{
			Name:   row.Text(0),
			MAC:    row.Text(1),
			IP:     uint32(row.Uint(2)),
			Domain: row.Text(3),
		})
	}
	return hosts, nil
}

func domainFromRow(row stores.Row) netalloc.BuildDomain {
	return netalloc.BuildDomain{
		ID:         row.Uint(0),
		Name:       row.Text(1),
		Start:      uint32(row.Uint(2)),
		End:        uint32(row.Uint(3)),
		Netmask:    uint32(row.Uint(4)),
		Gateway:    uint32(row.Uint(5)),
		Nameserver: uint32(row.Uint(6)),
	}
}

// LoadDomains loads every build domain in query order.
func LoadDomains(ctx context.Context, s stores.Searcher) ([]netalloc.BuildDomain, error) {
	rs, err := s.Search(ctx, stores.QueryBuildDomains, nil)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", stores.QueryBuildDomains, err)
	}
	domains := make([]netalloc.BuildDomain, 0, rs.Len())
	for _, row := range rs.Rows {
		domains = append(domains, domainFromRow(row))
	}
	return domains, nil
}

// LoadDomain loads one build domain by name.
func LoadDomain(ctx context.Context, s stores.Searcher, name string, logger zerolog.Logger) (netalloc.BuildDomain, error) {
	row, err := engine.RequireOne(ctx, s, stores.QueryDomainByName, name, "", logger)
	if err != nil {
		var be *engine.BuildError
		if errors.As(err, &be) {
			be.WithDomain(name)
		}
		return netalloc.BuildDomain{}, err
	}
	return domainFromRow(row), nil
}

// LoadDomainIPs loads the addresses already assigned in a build domain.
func LoadDomainIPs(ctx context.Context, s stores.Searcher, domainID uint64) ([]uint32, error) {
	rs, err := s.Search(ctx, stores.QueryDomainIPs, domainID)
	if err != nil {
		return nil, fmt.Errorf("query %s for domain %s: %w", stores.QueryDomainIPs, strconv.FormatUint(domainID, 10), err)
	}
	ips := make([]uint32, 0, rs.Len())
	for _, row := range rs.Rows {
		ips = append(ips, uint32(row.Uint(0)))
	}
	return ips, nil
}
