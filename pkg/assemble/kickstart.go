package assemble

import (
	"context"
	"fmt"

	"github.com/openfroyo/cbc/pkg/engine"
	"github.com/openfroyo/cbc/pkg/partition"
)

// kickstartKeymap returns the keyboard name the installer accepts. The
// version 6 installers of CentOS and Red Hat reject "gb".
func kickstartKeymap(o OS, keymap string) string {
	if keymap == "gb" && o.Major() == "6" &&
		(o.Family == engine.FamilyCentOS || o.Family == engine.FamilyRedHat) {
		return "uk"
	}
	return keymap
}

// closesSections reports whether %packages and %post take an %end line.
// Version 5 installers fail on it.
func closesSections(o OS) bool {
	return o.Major() != "5"
}

// installURL returns the install tree of the OS on mirror.
func installURL(o OS, mirror string) string {
	if o.Family == engine.FamilyFedora {
		return fmt.Sprintf("http://%s/fedora/linux/releases/%s/Everything/%s/os", mirror, o.Version, o.Arch)
	}
	return fmt.Sprintf("http://%s/%s/%s/os/%s", mirror, o.Alias, o.Version, o.Arch)
}

// Kickstart assembles the CentOS/Red Hat/Fedora answer file of srv.
func (a *Assembler) Kickstart(ctx context.Context, srv Server) (*Document, error) {
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
	pkgs, err := f.Packages(ctx)
	if err != nil {
		return nil, err
	}

	buf := engine.NewBuffer(0)

	buf.Append("auth --useshadow --passalgo=sha512\n")
	buf.Append("text\n")
	buf.Appendf("lang %s\n", loc.Locale)
	buf.Appendf("keyboard %s\n", kickstartKeymap(osInfo, loc.Keymap))
	if ntp.Enabled {
		buf.Appendf("timezone --utc --ntpservers=%s %s\n", ntp.Server, loc.Timezone)
	} else {
		buf.Appendf("timezone --utc %s\n", loc.Timezone)
	}
	if a.opts.RootPasswordHash != "" {
		buf.Appendf("rootpw --iscrypted %s\n", a.opts.RootPasswordHash)
	} else {
		buf.Append("rootpw --lock\n")
	}
	buf.Append("firewall --disabled\n")
	buf.Append("selinux --permissive\n")
	buf.Append("skipx\n")
	buf.Append("reboot\n")

	if err := a.compilePartitions(ctx, f, partition.Kickstart, buf); err != nil {
		return nil, err
	}

	buf.Appendf("url --url=%s\n", installURL(osInfo, bt.Mirror))
	buf.Appendf("network --bootproto=static --device=%s --ip=%s --netmask=%s --gateway=%s --nameserver=%s --hostname=%s --onboot=on\n",
		nw.Interface,
		engine.IPv4String(nw.IP),
		engine.IPv4String(nw.Netmask),
		engine.IPv4String(nw.Gateway),
		engine.IPv4String(nw.Nameserver),
		nw.FQDN())

	end := closesSections(osInfo)

	buf.Append("\n%packages\n")
	buf.Append("@core\n")
	for _, p := range pkgs {
		buf.Appendf("%s\n", p)
	}
	if end {
		buf.Append("%end\n")
	}

	script := srv.Name + ".sh"
	buf.Append("\n%post\n")
	buf.Append("cd /root\n")
	buf.Appendf("wget -O /root/%s %s\n", script, scriptURL(bt, script))
	buf.Appendf("sh /root/%s\n", script)
	if end {
		buf.Append("%end\n")
	}

	return &Document{Kind: KindKickstart, Name: srv.Name + ".cfg", Buffer: buf}, nil
}
