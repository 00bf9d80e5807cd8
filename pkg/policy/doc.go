// Package policy lints builds with Open Policy Agent (OPA) Rego rules.
//
// A build is described as an Input document (partition scheme, build
// domain and address, packages, post-install scripts) and evaluated
// against every enabled policy. Each policy is a Rego module whose deny
// set holds the findings:
//
//	package cbc.policies.example
//
//	import rego.v1
//
//	deny contains violation if {
//		some p in input.scheme.partitions
//		p.filesystem == "ext2"
//		violation := {"message": "ext2 is not journaled", "subject": p.mount_point}
//	}
//
// A finding is either a string or an object with message, subject and an
// optional severity that overrides the policy default.
//
// # Built-in Policies
//
//   - partition-root: exactly one / mount (error; repeats are warnings)
//   - partition-sizes: min_size_mb <= max_size_mb (error)
//   - lvm-volume-names: LVM partitions name their volume (warning)
//   - domain-range: start <= end and the address is in range
//   - script-tokens: templates only use known placeholders (warning)
//   - packages: the build selects extra packages (info)
//
// # Modes
//
// In ModeAdvisory findings are only reported. In ModeEnforcing a server
// whose Result is not Allowed gets no answer file.
//
// # Custom Policies
//
// Loader reads .rego and .json files from files or directories. A .rego
// file is named after the file and its leading comment block is the
// description; "# severity: error" in that block sets its severity.
// Loader.Watch reloads the files when they change, which is how
// cbc lint --watch re-runs the lint.
package policy
