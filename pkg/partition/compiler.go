package partition

import (
	"fmt"
	"strings"

	"github.com/openfroyo/cbc/pkg/engine"
	"github.com/rs/zerolog"
)

// Dialect selects the installer syntax.
type Dialect int

const (
	// Partman is the Debian/Ubuntu expert recipe syntax.
	Partman Dialect = iota
	// Kickstart is the Red Hat part/logvol syntax.
	Kickstart
)

// String returns the dialect name.
func (d Dialect) String() string {
	switch d {
	case Partman:
		return "partman"
	case Kickstart:
		return "kickstart"
	default:
		return fmt.Sprintf("dialect(%d)", int(d))
	}
}

// DialectFor returns the dialect an OS family installs with.
func DialectFor(f engine.OSFamily) Dialect {
	if f.Preseeded() {
		return Partman
	}
	return Kickstart
}

// Class is the role a spec plays in a layout.
type Class int

const (
	ClassOther Class = iota
	ClassBoot
	ClassRoot
	ClassSwap
)

// String returns the class name.
func (c Class) String() string {
	switch c {
	case ClassBoot:
		return "boot"
	case ClassRoot:
		return "root"
	case ClassSwap:
		return "swap"
	default:
		return "other"
	}
}

// Classify returns the class of spec.
func Classify(spec engine.PartitionSpec) Class {
	switch {
	case spec.MountPoint == "/boot":
		return ClassBoot
	case spec.MountPoint == "/":
		return ClassRoot
	case spec.Filesystem == "swap" || spec.Filesystem == "linux-swap":
		return ClassSwap
	default:
		return ClassOther
	}
}

// Defaults for Layout fields left empty.
const (
	DefaultDisk        = "sda"
	DefaultVolumeGroup = "vg00"
	DefaultRecipe      = "cbc"
)

// Layout carries the per-host values a scheme does not know.
type Layout struct {
	// Disk is the target device, with or without /dev/.
	Disk string
	// VolumeGroup names the LVM volume group.
	VolumeGroup string
	// Recipe names the partman recipe. Defaults to the scheme name.
	Recipe string
}

func (l Layout) withDefaults(scheme engine.PartitionScheme) Layout {
	l.Disk = strings.TrimPrefix(l.Disk, "/dev/")
	if l.Disk == "" {
		l.Disk = DefaultDisk
	}
	if l.VolumeGroup == "" {
		l.VolumeGroup = DefaultVolumeGroup
	}
	if l.Recipe == "" {
		l.Recipe = scheme.Name
	}
	if l.Recipe == "" {
		l.Recipe = DefaultRecipe
	}
	return l
}

// Report describes what a compilation emitted.
type Report struct {
	// Blocks is the number of partition entries written, not counting
	// the LVM physical volume block.
	Blocks int
	// Skipped holds duplicate /boot or / specs that were left out.
	Skipped []engine.PartitionSpec
	// Warnings explains each skipped spec.
	Warnings []string
}

// Compiler turns partition schemes into installer directives.
type Compiler struct {
	logger zerolog.Logger
}

// New creates a Compiler.
func New(logger zerolog.Logger) *Compiler {
	return &Compiler{logger: logger.With().Str("component", "partition").Logger()}
}

// Compile validates scheme and appends its directives in dialect d to
// buf. Nothing is written when validation fails. Duplicate /boot and /
// specs are skipped before validation, so only emitted specs are checked.
func (c *Compiler) Compile(scheme engine.PartitionScheme, d Dialect, layout Layout, buf *engine.Buffer) (Report, error) {
	specs, report := c.selectSpecs(scheme)
	if err := validate(scheme.Name, specs); err != nil {
		return Report{}, err
	}

	layout = layout.withDefaults(scheme)

	switch d {
	case Partman:
		writePartman(buf, scheme.LVM, specs, layout)
	case Kickstart:
		writeKickstart(buf, scheme.LVM, specs, layout)
	default:
		return Report{}, engine.NewInvalidError(fmt.Sprintf("unknown partition dialect %d", int(d)))
	}

	report.Blocks = len(specs)
	return report, nil
}

// validate checks the specs a scheme compiles to: there must be at least
// one, and none may have a minimum above its maximum.
func validate(scheme string, specs []engine.PartitionSpec) error {
	if len(specs) == 0 {
		return engine.NewInvalidError(fmt.Sprintf("scheme %q has no partitions", scheme))
	}
	for _, p := range specs {
		if p.MinSizeMB > p.MaxSizeMB {
			return engine.NewInvalidError(fmt.Sprintf(
				"scheme %q: partition %s has minimum %d above maximum %d",
				scheme, p.MountPoint, p.MinSizeMB, p.MaxSizeMB))
		}
	}
	return nil
}

// selectSpecs drops every /boot or / spec after the first of its class.
func (c *Compiler) selectSpecs(scheme engine.PartitionScheme) ([]engine.PartitionSpec, Report) {
	var (
		report             Report
		seenBoot, seenRoot bool
	)

	specs := make([]engine.PartitionSpec, 0, len(scheme.Partitions))
	for _, p := range scheme.Partitions {
		class := Classify(p)

		dup := false
		switch class {
		case ClassBoot:
			dup, seenBoot = seenBoot, true
		case ClassRoot:
			dup, seenRoot = seenRoot, true
		}

		if dup {
			msg := fmt.Sprintf("scheme %q: duplicate %s partition (priority %d) skipped", scheme.Name, p.MountPoint, p.Priority)
			c.logger.Warn().
				Str("scheme", scheme.Name).
				Str("mount_point", p.MountPoint).
				Uint64("priority", p.Priority).
				Msg("Duplicate partition skipped, keeping the first")
			report.Skipped = append(report.Skipped, p)
			report.Warnings = append(report.Warnings, msg)
			continue
		}
		specs = append(specs, p)
	}

	return specs, report
}

// LogicalVolumeName returns the logical volume name of spec, deriving one
// from the mount point when the scheme leaves it empty.
func LogicalVolumeName(spec engine.PartitionSpec) string {
	if spec.LogicalVolume != "" {
		return spec.LogicalVolume
	}
	switch Classify(spec) {
	case ClassRoot:
		return "root"
	case ClassSwap:
		return "swap"
	}
	name := strings.Trim(spec.MountPoint, "/")
	if name == "" {
		return "lv"
	}
	return strings.ReplaceAll(name, "/", "_")
}
