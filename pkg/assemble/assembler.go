package assemble

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openfroyo/cbc/pkg/engine"
	"github.com/openfroyo/cbc/pkg/partition"
	"github.com/openfroyo/cbc/pkg/resolver"
	"github.com/openfroyo/cbc/pkg/stores"
	"github.com/rs/zerolog"
)

// Kind names a generated document.
type Kind string

const (
	// KindAnswer is the installer answer file; it becomes KindPreseed or
	// KindKickstart once the server's OS family is known.
	KindAnswer       Kind = "answer"
	KindPreseed      Kind = "preseed"
	KindKickstart    Kind = "kickstart"
	KindScript       Kind = "script"
	KindPXE          Kind = "pxe"
	KindDHCPHosts    Kind = "dhcp-hosts"
	KindDHCPNetworks Kind = "dhcp-networks"
)

// ServerKinds are the per-server documents built by "all".
var ServerKinds = []Kind{KindAnswer, KindScript, KindPXE}

// ParseKinds parses a --type value. "all" expands to ServerKinds.
func ParseKinds(s string) ([]Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "", "all":
		return append([]Kind(nil), ServerKinds...), nil
	case KindAnswer, KindPreseed, KindKickstart, KindScript, KindPXE:
		return []Kind{k}, nil
	default:
		return nil, fmt.Errorf("unknown document type %q", s)
	}
}

// ScriptsDir is the directory under the build type URL that serves host
// and post-install scripts.
const ScriptsDir = "scripts"

// Document is one assembled file. Name is relative to the directory of
// its kind.
type Document struct {
	Kind   Kind
	Name   string
	Buffer *engine.Buffer
}

// UnresolvedFunc is told about every script line dropped because a
// placeholder did not resolve.
type UnresolvedFunc func(ctx context.Context, err *engine.BuildError)

// Options are the site settings the database does not hold.
type Options struct {
	// RootPasswordHash is a crypt(3) root password. Empty leaves the
	// installer default (preseed) or locks root (kickstart).
	RootPasswordHash string

	// VolumeGroup names the LVM volume group; partition.DefaultVolumeGroup
	// when empty.
	VolumeGroup string

	// OnUnresolved is called for each dropped script line.
	OnUnresolved UnresolvedFunc
}

// Assembler builds the documents of one server from store rows.
type Assembler struct {
	s        stores.Searcher
	resolver *resolver.Resolver
	compiler *partition.Compiler
	opts     Options
	logger   zerolog.Logger
}

// New creates an Assembler reading from s.
func New(s stores.Searcher, opts Options, logger zerolog.Logger) *Assembler {
	logger = logger.With().Str("component", "assemble").Logger()
	return &Assembler{
		s:        s,
		resolver: resolver.New(s, logger),
		compiler: partition.New(logger),
		opts:     opts,
		logger:   logger,
	}
}

// Server resolves a server name.
func (a *Assembler) Server(ctx context.Context, name string) (Server, error) {
	return LookupServer(ctx, a.s, name, a.logger)
}

// Facts returns the fact reader for srv.
func (a *Assembler) Facts(srv Server) *Facts {
	return NewFacts(a.s, srv, a.logger)
}

// Answer builds the answer file matching the server's OS family.
func (a *Assembler) Answer(ctx context.Context, srv Server) (*Document, error) {
	osInfo, err := a.Facts(srv).OS(ctx)
	if err != nil {
		return nil, err
	}
	if osInfo.Family.Preseeded() {
		return a.Preseed(ctx, srv)
	}
	return a.Kickstart(ctx, srv)
}

// compilePartitions writes the partition directives of the server's
// scheme in dialect d.
func (a *Assembler) compilePartitions(ctx context.Context, f *Facts, d partition.Dialect, buf *engine.Buffer) error {
	scheme, err := f.Scheme(ctx)
	if err != nil {
		return err
	}
	disk, err := f.Disk(ctx)
	if err != nil {
		return err
	}

	_, err = a.compiler.Compile(scheme, d, partition.Layout{
		Disk:        disk.Device,
		VolumeGroup: a.opts.VolumeGroup,
	}, buf)
	if err != nil {
		var be *engine.BuildError
		if errors.As(err, &be) {
			be.WithServer(f.server.Name)
		}
	}
	return err
}

// scriptURL returns where the host fetches a script from.
func scriptURL(bt BuildType, name string) string {
	return joinURL(bt.URL, ScriptsDir, name)
}

// configURL returns where the installer fetches the answer file from.
func configURL(bt BuildType, server string) string {
	return joinURL(bt.URL, server+".cfg")
}

func joinURL(base string, parts ...string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSuffix(base, "/"))
	for _, p := range parts {
		b.WriteByte('/')
		b.WriteString(strings.Trim(p, "/"))
	}
	return b.String()
}
