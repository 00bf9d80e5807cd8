package assemble

import (
	"context"
	"strings"

	"github.com/openfroyo/cbc/pkg/engine"
	"github.com/openfroyo/cbc/pkg/partition"
)

// debianArch maps an OS arch to the Debian architecture name.
func debianArch(arch string) string {
	switch arch {
	case "x86_64", "amd64":
		return "amd64"
	case "i386", "i486", "i586", "i686":
		return "686"
	case "aarch64", "arm64":
		return "arm64"
	default:
		return arch
	}
}

// kernelImage returns the kernel package the installer puts on the target.
func kernelImage(o OS) string {
	if o.Family == engine.FamilyUbuntu {
		return "linux-generic"
	}
	return "linux-image-" + debianArch(o.Arch)
}

// Preseed assembles the Debian/Ubuntu answer file of srv.
func (a *Assembler) Preseed(ctx context.Context, srv Server) (*Document, error) {
	f := a.Facts(srv)

	osInfo, err := f.OS(ctx)
	if err != nil {
		return nil, err
	}
	loc, err := f.Locale(ctx)
	if err != nil {
		return nil, err
	}
	nw, err := f.Network(ctx)
	if err != nil {
		return nil, err
	}
	bt, err := f.BuildType(ctx)
	if err != nil {
		return nil, err
	}
	ntp, err := f.NTP(ctx)
	if err != nil {
		return nil, err
	}
	disk, err := f.Disk(ctx)
	if err != nil {
		return nil, err
	}
	pkgs, err := f.Packages(ctx)
	if err != nil {
		return nil, err
	}

	buf := engine.NewBuffer(0)

	buf.Appendf("d-i debian-installer/locale string %s\n", loc.Locale)
	buf.Appendf("d-i debian-installer/language string %s\n", loc.Language)
	buf.Appendf("d-i debian-installer/country string %s\n", loc.Country)
	buf.Append("d-i console-setup/ask_detect boolean false\n")
	buf.Appendf("d-i keyboard-configuration/xkb-keymap select %s\n", loc.Keymap)

	buf.Appendf("d-i netcfg/choose_interface select %s\n", nw.Interface)
	buf.Append("d-i netcfg/disable_autoconfig boolean true\n")
	buf.Appendf("d-i netcfg/get_ipaddress string %s\n", engine.IPv4String(nw.IP))
	buf.Appendf("d-i netcfg/get_netmask string %s\n", engine.IPv4String(nw.Netmask))
	buf.Appendf("d-i netcfg/get_gateway string %s\n", engine.IPv4String(nw.Gateway))
	buf.Appendf("d-i netcfg/get_nameservers string %s\n", engine.IPv4String(nw.Nameserver))
	buf.Append("d-i netcfg/confirm_static boolean true\n")
	buf.Appendf("d-i netcfg/get_hostname string %s\n", nw.Hostname)
	buf.Appendf("d-i netcfg/get_domain string %s\n", nw.Domain)
	buf.Appendf("d-i netcfg/hostname string %s\n", nw.Hostname)

	buf.Append("d-i mirror/country string manual\n")
	buf.Appendf("d-i mirror/http/hostname string %s\n", bt.Mirror)
	buf.Appendf("d-i mirror/http/directory string /%s\n", osInfo.Alias)
	buf.Append("d-i mirror/http/proxy string\n")
	buf.Appendf("d-i mirror/suite string %s\n", osInfo.VersionAlias)

	buf.Append("d-i clock-setup/utc boolean true\n")
	buf.Appendf("d-i time/zone string %s\n", loc.Timezone)

	buf.Append("d-i passwd/make-user boolean false\n")
	if a.opts.RootPasswordHash != "" {
		buf.Appendf("d-i passwd/root-password-crypted password %s\n", a.opts.RootPasswordHash)
	}

	if ntp.Enabled {
		buf.Append("d-i clock-setup/ntp boolean true\n")
		buf.Appendf("d-i clock-setup/ntp-server string %s\n", ntp.Server)
	} else {
		buf.Append("d-i clock-setup/ntp boolean false\n")
	}

	if err := a.compilePartitions(ctx, f, partition.Partman, buf); err != nil {
		return nil, err
	}

	buf.Appendf("d-i base-installer/kernel/image string %s\n", kernelImage(osInfo))
	if osInfo.Family == engine.FamilyUbuntu {
		buf.Append("d-i apt-setup/restricted boolean true\n")
		buf.Append("d-i apt-setup/universe boolean true\n")
	} else {
		buf.Append("d-i apt-setup/non-free boolean true\n")
		buf.Append("d-i apt-setup/contrib boolean true\n")
	}
	buf.Append("d-i apt-setup/services-select multiselect security, updates\n")
	buf.Append("tasksel tasksel/first multiselect standard, ssh-server\n")
	if len(pkgs) > 0 {
		buf.Appendf("d-i pkgsel/include string %s\n", strings.Join(pkgs, " "))
	}
	buf.Append("d-i pkgsel/upgrade select none\n")
	buf.Append("popularity-contest popularity-contest/participate boolean false\n")

	buf.Append("d-i grub-installer/only_debian boolean true\n")
	buf.Appendf("d-i grub-installer/bootdev string /dev/%s\n", disk.Device)
	buf.Append("d-i finish-install/reboot_in_progress note\n")

	script := srv.Name + ".sh"
	buf.Appendf("d-i preseed/late_command string in-target wget -O /root/%s %s; in-target sh /root/%s\n",
		script, scriptURL(bt, script), script)

	return &Document{Kind: KindPreseed, Name: srv.Name + ".cfg", Buffer: buf}, nil
}
