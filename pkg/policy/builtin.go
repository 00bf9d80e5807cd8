package policy

// GetBuiltinPolicies returns the lint rules shipped with cbc.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		partitionRootPolicy(),
		partitionSizesPolicy(),
		lvmVolumeNamesPolicy(),
		domainRangePolicy(),
		scriptTokensPolicy(),
		packagesPolicy(),
	}
}

func builtin(name, description string, severity Severity, tags []string, rego string) Policy {
	return Policy{
		Name:        name,
		Description: description,
		Severity:    severity,
		Enabled:     true,
		Builtin:     true,
		Tags:        tags,
		Rego:        rego,
	}
}

// partitionRootPolicy requires exactly one root filesystem.
func partitionRootPolicy() Policy {
	return builtin("partition-root",
		"Partition schemes must mount exactly one root filesystem",
		SeverityError, []string{"partition"},
		`package cbc.policies.partition_root

import rego.v1

roots := [p | some p in input.scheme.partitions; p.mount_point == "/"]

deny contains violation if {
	input.scheme
	count(roots) == 0
	violation := {
		"message": "scheme has no root partition",
		"subject": input.scheme.name,
	}
}

deny contains violation if {
	input.scheme
	count(roots) > 1
	violation := {
		"message": sprintf("scheme mounts / %d times, only the first is used", [count(roots)]),
		"subject": input.scheme.name,
		"severity": "warning",
	}
}

deny contains violation if {
	input.scheme
	boots := [p | some p in input.scheme.partitions; p.mount_point == "/boot"]
	count(boots) > 1
	violation := {
		"message": sprintf("scheme mounts /boot %d times, only the first is used", [count(boots)]),
		"subject": input.scheme.name,
		"severity": "warning",
	}
}
`)
}

// partitionSizesPolicy rejects partitions whose minimum exceeds the maximum.
func partitionSizesPolicy() Policy {
	return builtin("partition-sizes",
		"Partition minimum size must not exceed its maximum",
		SeverityError, []string{"partition"},
		`package cbc.policies.partition_sizes

import rego.v1

deny contains violation if {
	some p in input.scheme.partitions
	p.min_size_mb > p.max_size_mb
	violation := {
		"message": sprintf("minimum %dMB exceeds maximum %dMB", [p.min_size_mb, p.max_size_mb]),
		"subject": p.mount_point,
	}
}

deny contains violation if {
	some p in input.scheme.partitions
	p.max_size_mb == 0
	violation := {
		"message": "maximum size is zero",
		"subject": p.mount_point,
		"severity": "warning",
	}
}
`)
}

// lvmVolumeNamesPolicy flags LVM partitions that rely on a derived volume name.
func lvmVolumeNamesPolicy() Policy {
	return builtin("lvm-volume-names",
		"Partitions in an LVM scheme should name their logical volume",
		SeverityWarning, []string{"partition", "lvm"},
		`package cbc.policies.lvm_volume_names

import rego.v1

deny contains violation if {
	input.scheme.lvm
	some p in input.scheme.partitions
	p.mount_point != "/boot"
	object.get(p, "logical_volume", "") == ""
	violation := {
		"message": "no logical volume name, one is derived from the mount point",
		"subject": p.mount_point,
	}
}
`)
}

// domainRangePolicy checks the build domain range and the server address.
func domainRangePolicy() Policy {
	return builtin("domain-range",
		"Build domain ranges must be ordered and contain the server address",
		SeverityError, []string{"network"},
		`package cbc.policies.domain_range

import rego.v1

deny contains violation if {
	input.domain.start > input.domain.end
	violation := {
		"message": sprintf("range start %s is after end %s", [input.domain.start_ip, input.domain.end_ip]),
		"subject": input.domain.name,
	}
}

deny contains violation if {
	input.domain.start <= input.domain.end
	input.ip != 0
	outside
	violation := {
		"message": sprintf("build address %s is outside %s-%s", [input.ip_string, input.domain.start_ip, input.domain.end_ip]),
		"subject": input.domain.name,
		"severity": "warning",
	}
}

outside if input.ip < input.domain.start

outside if input.ip > input.domain.end
`)
}

// scriptTokensPolicy flags argument templates with unknown placeholders.
func scriptTokensPolicy() Policy {
	return builtin("script-tokens",
		"Script argument templates should only use known placeholders",
		SeverityWarning, []string{"script"},
		`package cbc.policies.script_tokens

import rego.v1

deny contains violation if {
	some s in input.scripts
	some word in input.unknown_tokens[s.template]
	violation := {
		"message": sprintf("%s is not a placeholder and is copied through", [word]),
		"subject": s.script,
	}
}
`)
}

// packagesPolicy notes builds without extra packages.
func packagesPolicy() Policy {
	return builtin("packages",
		"Builds usually install extra packages",
		SeverityInfo, []string{"packages"},
		`package cbc.policies.packages

import rego.v1

deny contains violation if {
	count(input.packages) == 0
	violation := {
		"message": "no extra packages selected",
		"subject": input.os.alias,
	}
}
`)
}
