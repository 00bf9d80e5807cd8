package assemble

import (
	"context"
	"strings"

	"github.com/openfroyo/cbc/pkg/engine"
)

// PXEConfigName returns the pxelinux.cfg file name of a MAC address:
// "01-" and the address in lower case with dashes.
func PXEConfigName(mac string) string {
	return "01-" + strings.ReplaceAll(strings.ToLower(mac), ":", "-")
}

// PXE assembles the syslinux boot stanza of srv.
func (a *Assembler) PXE(ctx context.Context, srv Server) (*Document, error) {
	f := a.Facts(srv)

	osInfo, err := f.OS(ctx)
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
	if nw.MAC == "" {
		return nil, engine.NewInvalidError("build has no MAC address").WithServer(srv.Name)
	}

	image := osInfo.Alias + "-" + osInfo.Version + "-" + osInfo.Arch
	cfg := configURL(bt, srv.Name)

	var args []string
	args = append(args, "initrd=initrd-"+image+".img")
	if osInfo.Family.Preseeded() {
		arg := bt.Arg
		if arg == "" {
			arg = "url"
		}
		args = append(args, "auto=true", "priority=critical", arg+"="+cfg, "interface="+nw.Interface)
	} else {
		arg := bt.Arg
		if arg == "" {
			arg = "ks"
		}
		args = append(args, arg+"="+cfg, "ksdevice="+nw.Interface)
	}
	if bt.BootLine != "" {
		args = append(args, bt.BootLine)
	}

	buf := engine.NewBuffer(0)
	buf.Appendf("default %s\n\n", srv.Name)
	buf.Appendf("label %s\n", srv.Name)
	buf.Appendf("kernel vmlinuz-%s\n", image)
	buf.Appendf("append %s\n", strings.Join(args, " "))

	return &Document{Kind: KindPXE, Name: PXEConfigName(nw.MAC), Buffer: buf}, nil
}
