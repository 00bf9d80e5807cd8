package partition

import (
	"fmt"

	"github.com/openfroyo/cbc/pkg/engine"
)

// recipeLine writes one recipe line with its continuation backslash.
func recipeLine(buf *engine.Buffer, indent, text string) {
	buf.Append(indent)
	buf.Append(text)
	buf.Append(" \\\n")
}

func writePartman(buf *engine.Buffer, lvm bool, specs []engine.PartitionSpec, l Layout) {
	buf.Appendf("d-i partman-auto/disk string /dev/%s\n", l.Disk)
	if lvm {
		buf.Append("d-i partman-auto/method string lvm\n")
		buf.Append("d-i partman-lvm/device_remove_lvm boolean true\n")
		buf.Append("d-i partman-md/device_remove_md boolean true\n")
		buf.Append("d-i partman-lvm/confirm boolean true\n")
		buf.Append("d-i partman-lvm/confirm_nooverwrite boolean true\n")
		buf.Append("d-i partman-auto-lvm/guided_size string max\n")
		buf.Appendf("d-i partman-auto-lvm/new_vg_name string %s\n", l.VolumeGroup)
	} else {
		buf.Append("d-i partman-auto/method string regular\n")
	}
	buf.Appendf("d-i partman-auto/choose_recipe select %s\n", l.Recipe)

	buf.Append("d-i partman-auto/expert_recipe string \\\n")
	recipeLine(buf, "      ", l.Recipe+" ::")

	total := len(specs)
	if lvm {
		total++
		recipeLine(buf, "              ", "100 1000 1000000000 ext3")
		recipeLine(buf, "                ", "$defaultignore{ } $primary{ }")
		recipeLine(buf, "                ", "method{ lvm }")
		recipeLine(buf, "                ", "device{ /dev/"+l.Disk+" }")
		recipeLine(buf, "                ", "vg_name{ "+l.VolumeGroup+" }")
		endBlock(buf, &total)
	}

	for _, p := range specs {
		writePartmanBlock(buf, lvm, p, l)
		endBlock(buf, &total)
	}

	buf.Append("d-i partman-partitioning/confirm_write_new_label boolean true\n")
	buf.Append("d-i partman/choose_partition select finish\n")
	buf.Append("d-i partman/confirm boolean true\n")
	buf.Append("d-i partman/confirm_nooverwrite boolean true\n")
}

// endBlock closes a recipe block. The last block of the recipe carries no
// continuation.
func endBlock(buf *engine.Buffer, remaining *int) {
	*remaining--
	if *remaining > 0 {
		recipeLine(buf, "              ", ".")
		return
	}
	buf.Append("              .\n")
}

func writePartmanBlock(buf *engine.Buffer, lvm bool, p engine.PartitionSpec, l Layout) {
	const indent = "                "
	class := Classify(p)

	fs := p.Filesystem
	if class == ClassSwap {
		fs = "linux-swap"
	}
	recipeLine(buf, "              ", fmt.Sprintf("%d %d %d %s", p.MinSizeMB, p.Priority, p.MaxSizeMB, fs))

	if lvm && class != ClassBoot {
		recipeLine(buf, indent, "$lvmok{ } in_vg{ "+l.VolumeGroup+" } lv_name{ "+LogicalVolumeName(p)+" }")
	}

	switch class {
	case ClassBoot:
		recipeLine(buf, indent, "$primary{ } $bootable{ }")
		writeFormat(buf, indent, p)
	case ClassSwap:
		recipeLine(buf, indent, "method{ swap } format{ }")
	default:
		writeFormat(buf, indent, p)
		for _, o := range p.Options {
			recipeLine(buf, indent, "options/"+o+"{ "+o+" }")
		}
	}
}

func writeFormat(buf *engine.Buffer, indent string, p engine.PartitionSpec) {
	recipeLine(buf, indent, "method{ format } format{ }")
	recipeLine(buf, indent, "use_filesystem{ } filesystem{ "+p.Filesystem+" }")
	recipeLine(buf, indent, "mountpoint{ "+p.MountPoint+" }")
}
