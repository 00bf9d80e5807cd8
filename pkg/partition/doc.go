// Package partition compiles a partition scheme into installer
// partitioning directives.
//
// Two dialects are supported: Partman, the Debian installer's expert
// recipe language, and Kickstart, the part/logvol lines of the Red Hat
// installer. Both read the same engine.PartitionScheme:
//
//	c := partition.New(logger)
//	report, err := c.Compile(scheme, partition.Partman, partition.Layout{Disk: "sda"}, buf)
//
// Specs are classified as BOOT (mount point /boot), ROOT (mount point /),
// SWAP (filesystem swap or linux-swap) or OTHER, in scheme order. A scheme
// with a second /boot or / spec still compiles: the first one is used and
// every later duplicate is skipped and reported as a warning.
//
// Compilation has no side effects beyond the buffer it writes to, so the
// same scheme, dialect and layout always produce the same bytes.
package partition
