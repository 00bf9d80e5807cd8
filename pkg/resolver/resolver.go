// Package resolver substitutes %token placeholders in script argument
// templates with facts about the server being built.
package resolver

import (
	"context"
	"strconv"
	"strings"

	"github.com/openfroyo/cbc/pkg/engine"
	"github.com/openfroyo/cbc/pkg/stores"
	"github.com/rs/zerolog"
)

// Resolver resolves templates against a Searcher. It holds no scan state
// between calls and may be shared.
type Resolver struct {
	searcher stores.Searcher
	logger   zerolog.Logger
}

// New creates a Resolver.
func New(s stores.Searcher, logger zerolog.Logger) *Resolver {
	return &Resolver{
		searcher: s,
		logger:   logger.With().Str("component", "resolver").Logger(),
	}
}

// Resolve returns template with every token replaced. Scanning resumes
// after each substituted value, so values are never rescanned and later
// tokens are still found. Text after a '%' that names no token is copied
// through. The first token whose query returns no rows fails the call
// with an unresolved_token error.
func (r *Resolver) Resolve(ctx context.Context, serverID uint64, template string) (string, error) {
	var out strings.Builder
	out.Grow(len(template))

	pos := 0
	for pos < len(template) {
		idx := strings.IndexByte(template[pos:], '%')
		if idx < 0 {
			out.WriteString(template[pos:])
			break
		}
		out.WriteString(template[pos : pos+idx])
		pos += idx

		tok := match(template[pos:])
		if tok == nil {
			out.WriteByte('%')
			pos++
			continue
		}

		value, err := r.value(ctx, serverID, tok)
		if err != nil {
			return "", err
		}
		out.WriteString(value)
		pos += len(tok.Literal())
	}

	return out.String(), nil
}

// Find lists the tokens present in template, in order of appearance.
func Find(template string) []Token {
	var found []Token
	for pos := 0; pos < len(template); {
		idx := strings.IndexByte(template[pos:], '%')
		if idx < 0 {
			break
		}
		pos += idx
		if tok := match(template[pos:]); tok != nil {
			found = append(found, tok)
			pos += len(tok.Literal())
			continue
		}
		pos++
	}
	return found
}

func (r *Resolver) value(ctx context.Context, serverID uint64, tok Token) (string, error) {
	server := strconv.FormatUint(serverID, 10)

	row, err := engine.RequireOne(ctx, r.searcher, tok.Query(), serverID, server, r.logger)
	if err != nil {
		if engine.IsNoRecords(err) {
			return "", engine.NewUnresolvedTokenError(tok.Literal(), tok.Query().String(), server, err)
		}
		return "", err
	}
	return tok.transform(row), nil
}

func match(s string) Token {
	for _, t := range Tokens() {
		if strings.HasPrefix(s, t.Literal()) {
			return t
		}
	}
	return nil
}
