package resolver

import (
	"strings"

	"github.com/openfroyo/cbc/pkg/engine"
	"github.com/openfroyo/cbc/pkg/stores"
)

// Token is a placeholder that can appear in a script argument template.
// The set is closed: every variant is declared in this file.
type Token interface {
	// Literal is the placeholder text, including the leading '%'.
	Literal() string

	// Query is the catalogue query the token reads, keyed on server id.
	Query() stores.QueryID

	// transform turns the first row of Query into the substituted text.
	transform(row stores.Row) string
}

// BaseIP resolves to the server's address with the last octet zeroed.
type BaseIP struct{}

func (BaseIP) Literal() string       { return "%baseip" }
func (BaseIP) Query() stores.QueryID { return stores.QueryBuildIP }
func (BaseIP) transform(r stores.Row) string {
	ip := engine.IPv4String(uint32(r.Uint(0)))
	return ip[:strings.LastIndexByte(ip, '.')+1] + "0"
}

// Domain resolves to the server's domain name.
type Domain struct{}

func (Domain) Literal() string               { return "%domain" }
func (Domain) Query() stores.QueryID         { return stores.QueryBuildDomainName }
func (Domain) transform(r stores.Row) string { return r.Text(0) }

// FQDN resolves to hostname.domain.
type FQDN struct{}

func (FQDN) Literal() string               { return "%fqdn" }
func (FQDN) Query() stores.QueryID         { return stores.QueryBuildFQDN }
func (FQDN) transform(r stores.Row) string { return r.Text(0) + "." + r.Text(1) }

// Hostname resolves to the server's short host name.
type Hostname struct{}

func (Hostname) Literal() string               { return "%hostname" }
func (Hostname) Query() stores.QueryID         { return stores.QueryBuildHostname }
func (Hostname) transform(r stores.Row) string { return r.Text(0) }

// IP resolves to the server's address as a dotted quad.
type IP struct{}

func (IP) Literal() string               { return "%ip" }
func (IP) Query() stores.QueryID         { return stores.QueryBuildIP }
func (IP) transform(r stores.Row) string { return engine.IPv4String(uint32(r.Uint(0))) }

// Tokens returns every token, longest literal first, so a scan never
// matches a token that is a prefix of a longer one.
func Tokens() []Token {
	return []Token{Hostname{}, BaseIP{}, Domain{}, FQDN{}, IP{}}
}
