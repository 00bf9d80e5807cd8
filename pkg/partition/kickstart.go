package partition

import (
	"strings"

	"github.com/openfroyo/cbc/pkg/engine"
)

func writeKickstart(buf *engine.Buffer, lvm bool, specs []engine.PartitionSpec, l Layout) {
	buf.Append("zerombr\n")
	buf.Appendf("bootloader --location=mbr --driveorder=%s\n", l.Disk)
	buf.Append("clearpart --all --initlabel\n")
	if lvm {
		buf.Appendf("part pv.01 --size=1 --grow --ondisk=%s\n", l.Disk)
		buf.Appendf("volgroup %s pv.01\n", l.VolumeGroup)
	}

	for _, p := range specs {
		writeKickstartLine(buf, lvm, p, l)
	}
}

func writeKickstartLine(buf *engine.Buffer, lvm bool, p engine.PartitionSpec, l Layout) {
	class := Classify(p)

	mount, fs := p.MountPoint, p.Filesystem
	if class == ClassSwap {
		mount, fs = "swap", "swap"
	}

	if lvm && class != ClassBoot {
		buf.Appendf("logvol %s --name=%s --vgname=%s", mount, LogicalVolumeName(p), l.VolumeGroup)
	} else {
		buf.Appendf("part %s", mount)
	}

	buf.Appendf(" --fstype=%s --size=%d", fs, p.MinSizeMB)
	if p.MaxSizeMB > p.MinSizeMB {
		buf.Appendf(" --grow --maxsize=%d", p.MaxSizeMB)
	}
	if class != ClassSwap && len(p.Options) > 0 {
		buf.Append(` --fsoptions="` + strings.Join(p.Options, ",") + `"`)
	}
	buf.Append("\n")
}
