package stores

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ColumnType is the declared type of a result column.
type ColumnType int

const (
	// ColumnText is a text column.
	ColumnText ColumnType = iota
	// ColumnUint64 is a 64-bit unsigned integer column (IPv4 addresses, sizes, ids).
	ColumnUint64
	// ColumnInt16 is a 16-bit signed integer column (flags).
	ColumnInt16
)

// String returns the column type name.
func (c ColumnType) String() string {
	switch c {
	case ColumnText:
		return "text"
	case ColumnUint64:
		return "uint64"
	case ColumnInt16:
		return "int16"
	default:
		return fmt.Sprintf("column(%d)", int(c))
	}
}

// Value is a single typed cell of a result row.
type Value struct {
	Type  ColumnType
	Text  string
	Uint  uint64
	Short int16
}

// Text builds a text value.
func Text(s string) Value {
	return Value{Type: ColumnText, Text: s}
}

// Uint builds a uint64 value.
func Uint(u uint64) Value {
	return Value{Type: ColumnUint64, Uint: u}
}

// Short builds an int16 value.
func Short(i int16) Value {
	return Value{Type: ColumnInt16, Short: i}
}

// Row is one result row. Its length and cell types match the declared
// columns of the query that produced it.
type Row []Value

// Text returns the text cell at i, or "" when out of range.
func (r Row) Text(i int) string {
	if i < 0 || i >= len(r) {
		return ""
	}
	return r[i].Text
}

// Uint returns the uint64 cell at i, or 0 when out of range.
func (r Row) Uint(i int) uint64 {
	if i < 0 || i >= len(r) {
		return 0
	}
	return r[i].Uint
}

// Short returns the int16 cell at i, or 0 when out of range.
func (r Row) Short(i int) int16 {
	if i < 0 || i >= len(r) {
		return 0
	}
	return r[i].Short
}

// ResultSet is the ordered row sequence returned by one Search call.
// It is owned by the caller.
type ResultSet struct {
	Query QueryID
	Rows  []Row
}

// Len returns the number of rows.
func (rs *ResultSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Rows)
}

// First returns the first row, if any.
func (rs *ResultSet) First() (Row, bool) {
	if rs.Len() == 0 {
		return nil, false
	}
	return rs.Rows[0], true
}

// Searcher runs catalogue queries. Rows arrive in the order the query
// specifies.
type Searcher interface {
	Search(ctx context.Context, id QueryID, key any) (*ResultSet, error)
}

// BuildIP is an address assignment written back by `cbc ip assign`.
type BuildIP struct {
	ID         int64  `json:"id"`
	ServerID   uint64 `json:"server_id"`
	DomainID   uint64 `json:"domain_id"`
	IP         uint32 `json:"ip"`
	Hostname   string `json:"hostname"`
	DomainName string `json:"domain_name"`
}

// AuditEntry represents an audit trail entry
type AuditEntry struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"`              // e.g., "document.generated", "ip.assigned"
	Actor     string    `json:"actor"`               // user or system identifier
	TargetID  *string   `json:"target_id,omitempty"` // server name or file path
	Details   *string   `json:"details,omitempty"`   // JSON blob
	IPAddress *string   `json:"ip_address,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Audit actions.
const (
	AuditDocumentGenerated = "document.generated"
	AuditDocumentFailed    = "document.failed"
	AuditIPAssigned        = "ip.assigned"
)

// Store defines the interface for the persistence layer
type Store interface {
	Searcher

	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Transaction support
	BeginTx(ctx context.Context) (*sql.Tx, error)
	CommitTx(tx *sql.Tx) error
	RollbackTx(tx *sql.Tx) error

	// Write-backs
	AssignBuildIP(ctx context.Context, ip *BuildIP) error

	// Audit operations
	CreateAuditEntry(ctx context.Context, entry *AuditEntry) error
	ListAuditEntries(ctx context.Context, action *string, actor *string, limit, offset int) ([]*AuditEntry, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
