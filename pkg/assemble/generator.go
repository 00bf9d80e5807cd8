package assemble

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"

	"github.com/google/uuid"
	"github.com/openfroyo/cbc/pkg/engine"
	"github.com/openfroyo/cbc/pkg/netalloc"
	"github.com/openfroyo/cbc/pkg/output"
	"github.com/openfroyo/cbc/pkg/policy"
	"github.com/openfroyo/cbc/pkg/stores"
	"github.com/openfroyo/cbc/pkg/telemetry"
	"github.com/rs/zerolog"
)

// Paths places documents under the writer root.
type Paths struct {
	// Web holds answer files, with host scripts under Web/scripts.
	Web string
	// TFTP holds pxelinux.cfg.
	TFTP string
	// DHCP holds the dhcpd include files.
	DHCP string
}

// DefaultPaths returns the layout used when no paths are configured.
func DefaultPaths() Paths {
	return Paths{Web: "web", TFTP: "tftp", DHCP: "dhcp"}
}

// For returns the writer path of d.
func (p Paths) For(d *Document) string {
	switch d.Kind {
	case KindScript:
		return path.Join(p.Web, ScriptsDir, d.Name)
	case KindPXE:
		return path.Join(p.TFTP, "pxelinux.cfg", d.Name)
	case KindDHCPHosts, KindDHCPNetworks:
		return path.Join(p.DHCP, d.Name)
	default:
		return path.Join(p.Web, d.Name)
	}
}

// Auditor records generated documents.
type Auditor interface {
	CreateAuditEntry(ctx context.Context, entry *stores.AuditEntry) error
}

// Linter checks a build before its answer file is written.
type Linter interface {
	Evaluate(ctx context.Context, input *policy.Input) (*policy.Result, error)
}

// GeneratorConfig wires a Generator. Searcher and Writer are required.
type GeneratorConfig struct {
	Searcher stores.Searcher
	Writer   output.Writer
	Options  Options
	Paths    Paths

	// Auditor, when set, gets one entry per document.
	Auditor Auditor
	// Actor is the audit actor; "cbc" when empty.
	Actor string

	// Linter, when set, lints each server before its answer file.
	Linter     Linter
	PolicyMode policy.Mode

	Logger zerolog.Logger
}

// Generator builds documents and hands them to a Writer. A failed document
// does not stop the others.
type Generator struct {
	asm     *Assembler
	writer  output.Writer
	paths   Paths
	auditor Auditor
	actor   string
	linter  Linter
	mode    policy.Mode
	logger  zerolog.Logger
}

// DocumentResult is the outcome of one document.
type DocumentResult struct {
	Kind  Kind   `json:"kind"`
	Path  string `json:"path,omitempty"`
	Bytes int    `json:"bytes"`
	Err   error  `json:"-"`
}

// Report is the outcome of one run.
type Report struct {
	RunID     string           `json:"run_id"`
	Server    string           `json:"server,omitempty"`
	Documents []DocumentResult `json:"documents"`
	Lint      *policy.Result   `json:"lint,omitempty"`
}

// Failed returns the number of documents that were not written.
func (r *Report) Failed() int {
	n := 0
	for _, d := range r.Documents {
		if d.Err != nil {
			n++
		}
	}
	return n
}

// NewGenerator creates a Generator. Store reads are counted in the
// metrics of the telemetry in each call's context, and dropped script
// lines in unresolved_tokens_total.
func NewGenerator(cfg GeneratorConfig) *Generator {
	if cfg.Paths == (Paths{}) {
		cfg.Paths = DefaultPaths()
	}
	if cfg.Actor == "" {
		cfg.Actor = "cbc"
	}
	if cfg.PolicyMode == "" {
		cfg.PolicyMode = policy.ModeAdvisory
	}

	opts := cfg.Options
	next := opts.OnUnresolved
	opts.OnUnresolved = func(ctx context.Context, err *engine.BuildError) {
		if tel := telemetry.FromTelemetryContext(ctx); tel != nil {
			tel.Metrics.RecordUnresolvedToken(err.Token)
		}
		if next != nil {
			next(ctx, err)
		}
	}

	logger := cfg.Logger.With().Str("component", "generator").Logger()
	return &Generator{
		asm:     New(Instrument(cfg.Searcher), opts, cfg.Logger),
		writer:  cfg.Writer,
		paths:   cfg.Paths,
		auditor: cfg.Auditor,
		actor:   cfg.Actor,
		linter:  cfg.Linter,
		mode:    cfg.PolicyMode,
		logger:  logger,
	}
}

// Assembler returns the assembler the generator builds with.
func (g *Generator) Assembler() *Assembler {
	return g.asm
}

// Build generates the given documents for one server. The returned error
// joins every document failure; the Report lists each document either way.
func (g *Generator) Build(ctx context.Context, server string, kinds []Kind) (report *Report, err error) {
	report = &Report{RunID: uuid.NewString(), Server: server}

	ctx = telemetry.WithRunContext(ctx, report.RunID, server)
	defer func() { telemetry.EndRunContext(ctx, err) }()

	logger := g.runLogger(ctx, g.logger.With().Str("run_id", report.RunID).Str("server", server).Logger())

	srv, err := g.asm.Server(ctx, server)
	if err != nil {
		return report, err
	}

	var blocked error
	if g.linter != nil && wantsAnswer(kinds) {
		report.Lint, blocked = g.lint(ctx, srv, logger)
	}

	var errs []error
	for _, kind := range kinds {
		kind := kind
		build := func(ctx context.Context) (*Document, error) {
			return g.assemble(ctx, srv, kind)
		}
		var docBlocked error
		if isAnswer(kind) {
			docBlocked = blocked
		}
		res := g.emit(ctx, report.RunID, server, kind, build, docBlocked, logger)
		report.Documents = append(report.Documents, res)
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", kind, res.Err))
		}
	}

	logger.Info().
		Int("documents", len(report.Documents)).
		Int("failed", report.Failed()).
		Msg("Build run complete")

	return report, errors.Join(errs...)
}

// DHCPHosts generates the host reservation file.
func (g *Generator) DHCPHosts(ctx context.Context) (*Report, error) {
	return g.single(ctx, KindDHCPHosts, g.asm.DHCPHosts)
}

// DHCPNetworks generates the shared-network file for ifaces.
func (g *Generator) DHCPNetworks(ctx context.Context, ifaces []netalloc.Interface, opts netalloc.Options) (*Report, error) {
	return g.single(ctx, KindDHCPNetworks, func(ctx context.Context) (*Document, error) {
		return g.asm.DHCPNetworks(ctx, ifaces, opts)
	})
}

func (g *Generator) single(ctx context.Context, kind Kind, build func(context.Context) (*Document, error)) (report *Report, err error) {
	report = &Report{RunID: uuid.NewString()}

	ctx = telemetry.WithRunContext(ctx, report.RunID, "")
	defer func() { telemetry.EndRunContext(ctx, err) }()

	logger := g.runLogger(ctx, g.logger.With().Str("run_id", report.RunID).Logger())
	res := g.emit(ctx, report.RunID, "", kind, build, nil, logger)
	report.Documents = append(report.Documents, res)
	if res.Err != nil {
		return report, fmt.Errorf("%s: %w", kind, res.Err)
	}
	return report, nil
}

func (g *Generator) assemble(ctx context.Context, srv Server, kind Kind) (*Document, error) {
	switch kind {
	case KindAnswer:
		return g.asm.Answer(ctx, srv)
	case KindPreseed:
		return g.asm.Preseed(ctx, srv)
	case KindKickstart:
		return g.asm.Kickstart(ctx, srv)
	case KindScript:
		return g.asm.HostScript(ctx, srv)
	case KindPXE:
		return g.asm.PXE(ctx, srv)
	default:
		return nil, engine.NewInvalidError(fmt.Sprintf("%s is not a server document", kind)).WithServer(srv.Name)
	}
}

// runLogger returns the logger telemetry placed in ctx for the current run
// or document, tagged with the generator component. Without telemetry in
// ctx it returns fallback.
func (g *Generator) runLogger(ctx context.Context, fallback zerolog.Logger) zerolog.Logger {
	if l, ok := telemetry.LoggerFromContext(ctx); ok {
		return l.NewComponentLogger("generator").Zerolog()
	}
	return fallback
}

// emit assembles, writes and records one document.
func (g *Generator) emit(ctx context.Context, runID, server string, kind Kind, build func(context.Context) (*Document, error), blocked error, logger zerolog.Logger) DocumentResult {
	ctx = telemetry.WithDocumentContext(ctx, string(kind), "")
	logger = g.runLogger(ctx, logger.With().Str("document", string(kind)).Logger())
	res := DocumentResult{Kind: kind}

	doc, err := func() (*Document, error) {
		if blocked != nil {
			return nil, blocked
		}
		doc, err := build(ctx)
		if err != nil {
			return nil, err
		}
		res.Kind = doc.Kind
		res.Path = g.paths.For(doc)
		res.Bytes = doc.Buffer.Len()
		telemetry.SetDocumentPath(ctx, res.Path)
		if err := g.writer.WriteFile(ctx, res.Path, doc.Buffer.Bytes()); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", res.Path, err)
		}
		return doc, nil
	}()
	res.Err = err

	status := "success"
	if err != nil {
		status = "failure"
	}
	duration := telemetry.EndDocumentContext(ctx, string(res.Kind), status, err)

	if err != nil {
		logger.Error().
			Err(err).
			Str("kind", string(res.Kind)).
			Str("class", string(engine.ClassOf(err))).
			Msg("Document failed")
	} else {
		logger.Info().
			Str("kind", string(doc.Kind)).
			Str("path", res.Path).
			Int("bytes", res.Bytes).
			Dur("duration", duration).
			Msg("Document written")
	}

	g.audit(ctx, runID, server, res, logger)
	return res
}

func (g *Generator) audit(ctx context.Context, runID, server string, res DocumentResult, logger zerolog.Logger) {
	if g.auditor == nil {
		return
	}

	details := map[string]any{
		"run_id": runID,
		"kind":   res.Kind,
		"bytes":  res.Bytes,
	}
	if server != "" {
		details["server"] = server
	}
	action := stores.AuditDocumentGenerated
	if res.Err != nil {
		action = stores.AuditDocumentFailed
		details["error"] = res.Err.Error()
		if class := engine.ClassOf(res.Err); class != "" {
			details["class"] = class
		}
	}

	raw, err := json.Marshal(details)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to encode audit details")
		return
	}
	detailStr := string(raw)

	target := res.Path
	if target == "" {
		target = server
	}

	entry := &stores.AuditEntry{
		Action:  action,
		Actor:   g.actor,
		Details: &detailStr,
	}
	if target != "" {
		entry.TargetID = &target
	}
	if err := g.auditor.CreateAuditEntry(ctx, entry); err != nil {
		logger.Warn().Err(err).Msg("Failed to write audit entry")
	}
}

// lint evaluates the server's build. The returned error is non-nil only in
// enforcing mode with blocking findings.
func (g *Generator) lint(ctx context.Context, srv Server, logger zerolog.Logger) (*policy.Result, error) {
	input, err := g.asm.LintInput(ctx, srv)
	if err != nil {
		logger.Warn().Err(err).Msg("Cannot gather lint input, skipping lint")
		return nil, nil
	}

	result, err := g.linter.Evaluate(ctx, input)
	if err != nil {
		logger.Warn().Err(err).Msg("Lint evaluation failed")
		return nil, nil
	}

	tel := telemetry.FromTelemetryContext(ctx)
	for _, v := range result.Violations {
		if tel != nil {
			tel.Metrics.RecordPolicyFinding(v.Policy, string(v.Severity))
		}
		event := logger.Info()
		if v.Severity.Blocking() {
			event = logger.Warn()
		}
		event.
			Str("policy", v.Policy).
			Str("severity", string(v.Severity)).
			Str("subject", v.Subject).
			Msg(v.Message)
	}

	if g.mode == policy.ModeEnforcing {
		return result, result.Err()
	}
	return result, nil
}

func isAnswer(k Kind) bool {
	return k == KindAnswer || k == KindPreseed || k == KindKickstart
}

func wantsAnswer(kinds []Kind) bool {
	for _, k := range kinds {
		if isAnswer(k) {
			return true
		}
	}
	return false
}
