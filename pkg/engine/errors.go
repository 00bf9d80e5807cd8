package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorClass classifies a generation failure.
type ErrorClass string

const (
	// ErrorClassNoRecords: a query that must return one row returned none.
	// Fatal for the document being assembled.
	ErrorClassNoRecords ErrorClass = "no_records"

	// ErrorClassAmbiguousRecords: a query that should return one row
	// returned several. Logged; the first row is used.
	ErrorClassAmbiguousRecords ErrorClass = "ambiguous_records"

	// ErrorClassUnresolvedToken: an argument template placeholder could not
	// be resolved. Fatal only for the script line that carries it.
	ErrorClassUnresolvedToken ErrorClass = "unresolved_token"

	// ErrorClassNetworkRangeExhausted: no free address left in a build
	// domain. Fatal for that assignment only.
	ErrorClassNetworkRangeExhausted ErrorClass = "network_range_exhausted"

	// ErrorClassAllocationFailure: an output buffer could not grow.
	// Process-fatal.
	ErrorClassAllocationFailure ErrorClass = "allocation_failure"

	// ErrorClassInvalid: input data violates an invariant (min > max,
	// start > end, unknown OS family).
	ErrorClassInvalid ErrorClass = "invalid"
)

// BuildError is a classified error with enough context to diagnose a
// failed document without re-running at higher verbosity.
type BuildError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Server is the server name or id the document was built for.
	Server string `json:"server,omitempty"`

	// Domain is the build domain involved, if any.
	Domain string `json:"domain,omitempty"`

	// Query is the catalogue query that produced the condition.
	Query string `json:"query,omitempty"`

	// Token is the placeholder that failed to resolve.
	Token string `json:"token,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Class, e.Message)

	var ctx []string
	if e.Server != "" {
		ctx = append(ctx, "server="+e.Server)
	}
	if e.Domain != "" {
		ctx = append(ctx, "domain="+e.Domain)
	}
	if e.Query != "" {
		ctx = append(ctx, "query="+e.Query)
	}
	if e.Token != "" {
		ctx = append(ctx, "token="+e.Token)
	}
	if len(ctx) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(ctx, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %s", e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error for error chain inspection.
func (e *BuildError) Unwrap() error {
	return e.Err
}

// Is matches any BuildError of the same class.
func (e *BuildError) Is(target error) bool {
	t, ok := target.(*BuildError)
	if !ok {
		return false
	}
	return e.Class == t.Class
}

// Sentinels for errors.Is.
var (
	ErrNoRecords             = &BuildError{Class: ErrorClassNoRecords}
	ErrAmbiguousRecords      = &BuildError{Class: ErrorClassAmbiguousRecords}
	ErrUnresolvedToken       = &BuildError{Class: ErrorClassUnresolvedToken}
	ErrNetworkRangeExhausted = &BuildError{Class: ErrorClassNetworkRangeExhausted}
	ErrAllocationFailure     = &BuildError{Class: ErrorClassAllocationFailure}
	ErrInvalid               = &BuildError{Class: ErrorClassInvalid}
)

// NewNoRecordsError reports a required query that returned no rows.
func NewNoRecordsError(query, server string) *BuildError {
	return &BuildError{
		Class:   ErrorClassNoRecords,
		Message: "required query returned no rows",
		Query:   query,
		Server:  server,
	}
}

// NewAmbiguousRecordsError reports a single-row query that returned n rows.
func NewAmbiguousRecordsError(query, server string, n int) *BuildError {
	return &BuildError{
		Class:   ErrorClassAmbiguousRecords,
		Message: fmt.Sprintf("expected one row, got %d", n),
		Query:   query,
		Server:  server,
	}
}

// NewUnresolvedTokenError reports a placeholder whose query returned nothing.
func NewUnresolvedTokenError(token, query, server string, err error) *BuildError {
	return &BuildError{
		Class:   ErrorClassUnresolvedToken,
		Message: "cannot resolve placeholder",
		Token:   token,
		Query:   query,
		Server:  server,
		Err:     err,
	}
}

// NewNetworkRangeExhaustedError reports a build domain with no free address.
func NewNetworkRangeExhaustedError(domain string) *BuildError {
	return &BuildError{
		Class:   ErrorClassNetworkRangeExhausted,
		Message: "no free address in range",
		Domain:  domain,
	}
}

// NewAllocationError reports a buffer that cannot grow to size bytes.
func NewAllocationError(size int) *BuildError {
	return &BuildError{
		Class:   ErrorClassAllocationFailure,
		Message: fmt.Sprintf("cannot grow output buffer to %d bytes", size),
	}
}

// NewInvalidError reports input data that violates an invariant.
func NewInvalidError(message string) *BuildError {
	return &BuildError{
		Class:   ErrorClassInvalid,
		Message: message,
	}
}

// WithServer adds server context to an error.
func (e *BuildError) WithServer(server string) *BuildError {
	e.Server = server
	return e
}

// WithDomain adds build domain context to an error.
func (e *BuildError) WithDomain(domain string) *BuildError {
	e.Domain = domain
	return e
}

// WithQuery adds query context to an error.
func (e *BuildError) WithQuery(query string) *BuildError {
	e.Query = query
	return e
}

// ClassOf returns the class of the first BuildError in err's chain, or "".
func ClassOf(err error) ErrorClass {
	var e *BuildError
	if errors.As(err, &e) {
		return e.Class
	}
	return ""
}

// IsNoRecords returns true if the error is classified as no_records.
func IsNoRecords(err error) bool {
	return ClassOf(err) == ErrorClassNoRecords
}

// IsUnresolvedToken returns true if the error is classified as unresolved_token.
func IsUnresolvedToken(err error) bool {
	return ClassOf(err) == ErrorClassUnresolvedToken
}

// IsNetworkRangeExhausted returns true if the error is classified as
// network_range_exhausted.
func IsNetworkRangeExhausted(err error) bool {
	return ClassOf(err) == ErrorClassNetworkRangeExhausted
}

// IsInvalid returns true if the error is classified as invalid.
func IsInvalid(err error) bool {
	return ClassOf(err) == ErrorClassInvalid
}
