// Package stores provides the relational collaborator the document
// generators read from. Every read goes through Search with a QueryID
// from a fixed catalogue; each query declares its column types and the
// SQLite implementation refuses rows that do not match them. The few
// write-backs (IP assignment, audit trail) live on SQLiteStore.
package stores
