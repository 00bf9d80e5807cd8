// Package assemble builds the documents of a network install from the
// build database: preseed and kickstart answer files, host post-install
// scripts, pxelinux boot stanzas and the dhcpd host and shared-network
// include files.
//
// An Assembler reads facts through a stores.Searcher and returns each
// document as a Document. A Generator drives an Assembler for a whole
// run. It lints the server, writes documents through an output.Writer,
// records audit entries and reports telemetry. A document that fails does
// not stop the rest of the run.
package assemble
