package policy

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/openfroyo/cbc/pkg/engine"
	"github.com/openfroyo/cbc/pkg/netalloc"
	"github.com/openfroyo/cbc/pkg/resolver"
)

// Severity represents the severity level of a lint finding.
type Severity string

const (
	// SeverityInfo is for informational findings.
	SeverityInfo Severity = "info"

	// SeverityWarning is for findings that should be reviewed.
	SeverityWarning Severity = "warning"

	// SeverityError is for findings that produce a broken install.
	SeverityError Severity = "error"

	// SeverityCritical is for findings that must be addressed immediately.
	SeverityCritical Severity = "critical"
)

// Blocking reports whether findings of this severity fail a lint run.
func (s Severity) Blocking() bool {
	return s == SeverityError || s == SeverityCritical
}

// Mode selects what a failed lint does to the build.
type Mode string

const (
	// ModeAdvisory logs findings and builds anyway.
	ModeAdvisory Mode = "advisory"

	// ModeEnforcing refuses to build answer files for a server with
	// blocking findings.
	ModeEnforcing Mode = "enforcing"
)

// ParseMode parses a lint mode name. The empty string is advisory.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeAdvisory:
		return ModeAdvisory, nil
	case ModeEnforcing:
		return ModeEnforcing, nil
	default:
		return "", fmt.Errorf("unknown policy mode %q", s)
	}
}

// Policy is a lint rule with its Rego code.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code. Findings are read from the
	// package's deny set.
	Rego string `json:"rego"`

	// Severity is the default severity for findings.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is evaluated.
	Enabled bool `json:"enabled"`

	// Builtin marks the rules shipped with cbc.
	Builtin bool `json:"builtin,omitempty"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty"`

	// Source is the file the policy was loaded from.
	Source string `json:"source,omitempty"`

	// LoadedAt is when the policy was read.
	LoadedAt time.Time `json:"loaded_at"`
}

// Violation is a single lint finding.
type Violation struct {
	// Policy is the name of the policy that produced the finding.
	Policy string `json:"policy"`

	// Server is the server the build input describes.
	Server string `json:"server"`

	// Subject names the partition, script or domain the finding is about.
	Subject string `json:"subject,omitempty"`

	// Message is a human-readable message.
	Message string `json:"message"`

	// Severity is the finding severity.
	Severity Severity `json:"severity"`
}

func (v Violation) String() string {
	if v.Subject != "" {
		return fmt.Sprintf("%s [%s] %s: %s", v.Severity, v.Policy, v.Subject, v.Message)
	}
	return fmt.Sprintf("%s [%s] %s", v.Severity, v.Policy, v.Message)
}

// Result is the outcome of linting one build.
type Result struct {
	// Server is the server that was linted.
	Server string `json:"server"`

	// Allowed is false when any finding is blocking.
	Allowed bool `json:"allowed"`

	// Violations lists every finding in policy order.
	Violations []Violation `json:"violations,omitempty"`

	// EvaluatedPolicies lists the names of the policies that ran.
	EvaluatedPolicies []string `json:"evaluated_policies"`

	// EvaluatedAt is when the evaluation started.
	EvaluatedAt time.Time `json:"evaluated_at"`

	// Duration is how long the evaluation took.
	Duration time.Duration `json:"duration"`
}

// Blocking returns the findings that fail the lint.
func (r *Result) Blocking() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity.Blocking() {
			out = append(out, v)
		}
	}
	return out
}

// Count returns the number of findings with the given severity.
func (r *Result) Count(s Severity) int {
	n := 0
	for _, v := range r.Violations {
		if v.Severity == s {
			n++
		}
	}
	return n
}

// Err returns an invalid-class error listing the blocking findings, or nil
// when the build is allowed.
func (r *Result) Err() error {
	blocking := r.Blocking()
	if len(blocking) == 0 {
		return nil
	}
	msgs := make([]string, len(blocking))
	for i, v := range blocking {
		msgs[i] = v.String()
	}
	return engine.NewInvalidError("policy lint failed: " + strings.Join(msgs, "; ")).WithServer(r.Server)
}

// Input is the document a build is linted as. Field names are the keys the
// Rego rules see under input.
type Input struct {
	Server   string                  `json:"server"`
	OS       OSInput                 `json:"os"`
	IP       uint32                  `json:"ip"`
	IPString string                  `json:"ip_string,omitempty"`
	Scheme   *engine.PartitionScheme `json:"scheme,omitempty"`
	Domain   *DomainInput            `json:"domain,omitempty"`
	Packages []string                `json:"packages"`
	Scripts  []engine.ScriptArgument `json:"scripts"`

	// Tokens is the set of placeholders argument templates may use.
	Tokens []string `json:"tokens"`
}

// regoInput is what rules see under input: the Input plus, per argument
// template, the %words that start with no placeholder.
type regoInput struct {
	*Input
	UnknownTokens map[string][]string `json:"unknown_tokens"`
}

var placeholderWord = regexp.MustCompile(`%[a-z]+`)

func newRegoInput(in *Input) *regoInput {
	doc := &regoInput{Input: in, UnknownTokens: map[string][]string{}}
	for _, s := range in.Scripts {
		if _, done := doc.UnknownTokens[s.Template]; done {
			continue
		}
		unknown := []string{}
		for _, word := range placeholderWord.FindAllString(s.Template, -1) {
			if len(resolver.Find(word)) == 0 {
				unknown = append(unknown, word)
			}
		}
		doc.UnknownTokens[s.Template] = unknown
	}
	return doc
}

// OSInput describes the operating system being installed.
type OSInput struct {
	Alias   string `json:"alias"`
	Family  string `json:"family"`
	Version string `json:"version"`
	Arch    string `json:"arch"`
}

// DomainInput is a build domain with both numeric and dotted addresses.
type DomainInput struct {
	Name       string `json:"name"`
	Start      uint32 `json:"start"`
	End        uint32 `json:"end"`
	StartIP    string `json:"start_ip"`
	EndIP      string `json:"end_ip"`
	Netmask    string `json:"netmask"`
	Gateway    string `json:"gateway"`
	Nameserver string `json:"nameserver"`
}

// NewInput returns an input for server with the placeholder set filled in.
func NewInput(server string) *Input {
	tokens := resolver.Tokens()
	literals := make([]string, len(tokens))
	for i, t := range tokens {
		literals[i] = t.Literal()
	}
	return &Input{
		Server:   server,
		Packages: []string{},
		Scripts:  []engine.ScriptArgument{},
		Tokens:   literals,
	}
}

// SetIP records the server's build address.
func (in *Input) SetIP(ip uint32) {
	in.IP = ip
	in.IPString = engine.IPv4String(ip)
}

// SetDomain records the server's build domain.
func (in *Input) SetDomain(d netalloc.BuildDomain) {
	in.Domain = &DomainInput{
		Name:       d.Name,
		Start:      d.Start,
		End:        d.End,
		StartIP:    engine.IPv4String(d.Start),
		EndIP:      engine.IPv4String(d.End),
		Netmask:    engine.IPv4String(d.Netmask),
		Gateway:    engine.IPv4String(d.Gateway),
		Nameserver: engine.IPv4String(d.Nameserver),
	}
}
