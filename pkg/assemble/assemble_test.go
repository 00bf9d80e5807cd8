package assemble

import (
	"context"
	"strings"
	"testing"

	"github.com/openfroyo/cbc/pkg/engine"
	"github.com/openfroyo/cbc/pkg/netalloc"
	"github.com/openfroyo/cbc/pkg/stores"
	"github.com/openfroyo/cbc/pkg/stores/storetest"
)

func TestPreseed(t *testing.T) {
	a := newTestAssembler(fixture(t, debian12), Options{RootPasswordHash: "$6$salt$hash"})
	doc, err := a.Answer(context.Background(), server(t, a))
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if doc.Kind != KindPreseed || doc.Name != "web01.cfg" {
		t.Fatalf("expected preseed web01.cfg, got %s %s", doc.Kind, doc.Name)
	}

	out := doc.Buffer.String()
	head := `d-i debian-installer/locale string en_GB.UTF-8
d-i debian-installer/language string en
d-i debian-installer/country string GB
d-i console-setup/ask_detect boolean false
d-i keyboard-configuration/xkb-keymap select gb
d-i netcfg/choose_interface select eth0
d-i netcfg/disable_autoconfig boolean true
d-i netcfg/get_ipaddress string 10.0.0.10
d-i netcfg/get_netmask string 255.255.255.0
d-i netcfg/get_gateway string 10.0.0.1
d-i netcfg/get_nameservers string 10.0.0.2
d-i netcfg/confirm_static boolean true
d-i netcfg/get_hostname string web01
d-i netcfg/get_domain string example.com
d-i netcfg/hostname string web01
d-i mirror/country string manual
d-i mirror/http/hostname string mirror.example.com
d-i mirror/http/directory string /debian
d-i mirror/http/proxy string
d-i mirror/suite string bookworm
d-i clock-setup/utc boolean true
d-i time/zone string Europe/London
d-i passwd/make-user boolean false
d-i passwd/root-password-crypted password $6$salt$hash
d-i clock-setup/ntp boolean true
d-i clock-setup/ntp-server string ntp.example.com
d-i partman-auto/disk string /dev/sda
`
	tail := `d-i base-installer/kernel/image string linux-image-amd64
d-i apt-setup/non-free boolean true
d-i apt-setup/contrib boolean true
d-i apt-setup/services-select multiselect security, updates
tasksel tasksel/first multiselect standard, ssh-server
d-i pkgsel/include string curl vim
d-i pkgsel/upgrade select none
popularity-contest popularity-contest/participate boolean false
d-i grub-installer/only_debian boolean true
d-i grub-installer/bootdev string /dev/sda
d-i finish-install/reboot_in_progress note
d-i preseed/late_command string in-target wget -O /root/web01.sh http://build.example.com/debian/scripts/web01.sh; in-target sh /root/web01.sh
`
	if !strings.HasPrefix(out, head) {
		t.Errorf("unexpected preseed head:\n%s", out)
	}
	if !strings.HasSuffix(out, tail) {
		t.Errorf("unexpected preseed tail:\n%s", out)
	}
	if !strings.Contains(out, "d-i partman-auto/choose_recipe select base\n") {
		t.Errorf("missing partman recipe:\n%s", out)
	}
}

func TestPreseedWithoutPackages(t *testing.T) {
	s := storetest.New()
	full := fixture(t, debian12)
	// Copy everything but packages.
	for _, id := range []stores.QueryID{
		stores.QueryNetworkConfig, stores.QueryBuildOS, stores.QueryLocale,
		stores.QueryBuildType, stores.QueryNTP, stores.QueryScheme,
	} {
		rs, _ := full.Search(context.Background(), id, testServerID)
		s.Add(id, testServerID, rs.Rows...)
	}
	rs, _ := full.Search(context.Background(), stores.QueryPartitions, testSchemeID)
	s.Add(stores.QueryPartitions, testSchemeID, rs.Rows...)

	a := newTestAssembler(s, Options{})
	doc, err := a.Preseed(context.Background(), Server{ID: testServerID, Name: testServer})
	if err != nil {
		t.Fatalf("Preseed failed: %v", err)
	}
	out := doc.Buffer.String()
	if strings.Contains(out, "pkgsel/include") {
		t.Errorf("expected no pkgsel/include line without packages:\n%s", out)
	}
	if strings.Contains(out, "root-password-crypted") {
		t.Errorf("expected no root password without a hash:\n%s", out)
	}
}

func TestKickstart(t *testing.T) {
	a := newTestAssembler(fixture(t, centos7), Options{})
	doc, err := a.Answer(context.Background(), server(t, a))
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if doc.Kind != KindKickstart {
		t.Fatalf("expected kickstart, got %s", doc.Kind)
	}

	want := `auth --useshadow --passalgo=sha512
text
lang en_GB.UTF-8
keyboard gb
timezone --utc --ntpservers=ntp.example.com Europe/London
rootpw --lock
firewall --disabled
selinux --permissive
skipx
reboot
zerombr
bootloader --location=mbr --driveorder=sda
clearpart --all --initlabel
part /boot --fstype=ext3 --size=100 --grow --maxsize=512
part / --fstype=ext4 --size=1000 --grow --maxsize=8000
part swap --fstype=swap --size=512
url --url=http://mirror.example.com/centos/7.9/os/x86_64
network --bootproto=static --device=eth0 --ip=10.0.0.10 --netmask=255.255.255.0 --gateway=10.0.0.1 --nameserver=10.0.0.2 --hostname=web01.example.com --onboot=on

%packages
@core
curl
vim
%end

%post
cd /root
wget -O /root/web01.sh http://build.example.com/centos/scripts/web01.sh
sh /root/web01.sh
%end
`
	if got := doc.Buffer.String(); got != want {
		t.Errorf("unexpected kickstart:\n%s\nwant:\n%s", got, want)
	}
}

func TestKickstartVersionRules(t *testing.T) {
	tests := []struct {
		name     string
		os       osRow
		ends     int
		keyboard string
	}{
		{"centos 5 has no %end", centos5, 0, "keyboard gb\n"},
		{"centos 6 maps gb to uk", centos6, 2, "keyboard uk\n"},
		{"centos 7 keeps gb", centos7, 2, "keyboard gb\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAssembler(fixture(t, tt.os), Options{RootPasswordHash: "$6$x"})
			doc, err := a.Kickstart(context.Background(), server(t, a))
			if err != nil {
				t.Fatalf("Kickstart failed: %v", err)
			}
			out := doc.Buffer.String()
			if got := strings.Count(out, "%end\n"); got != tt.ends {
				t.Errorf("expected %d %%end lines, got %d", tt.ends, got)
			}
			if !strings.Contains(out, tt.keyboard) {
				t.Errorf("expected %q in:\n%s", tt.keyboard, out)
			}
			if !strings.Contains(out, "rootpw --iscrypted $6$x\n") {
				t.Errorf("expected crypted root password")
			}
		})
	}
}

func TestHostScriptDropsUnresolved(t *testing.T) {
	var dropped []*engine.BuildError
	a := newTestAssembler(fixture(t, debian12), Options{
		OnUnresolved: func(_ context.Context, err *engine.BuildError) {
			dropped = append(dropped, err)
		},
	})

	doc, err := a.HostScript(context.Background(), server(t, a))
	if err != nil {
		t.Fatalf("HostScript failed: %v", err)
	}
	if doc.Name != "web01.sh" {
		t.Errorf("expected web01.sh, got %s", doc.Name)
	}

	want := `#!/bin/sh
#
# Post-install script for web01
#

cd /root
wget http://build.example.com/debian/scripts/setup.sh
chmod 755 setup.sh
./setup.sh -i 10.0.0.10 -n web01 >> setup.sh.log 2>&1
wget http://build.example.com/debian/scripts/motd.sh
chmod 755 motd.sh
./motd.sh --fqdn web01.example.com >> motd.sh.log 2>&1
`
	if got := doc.Buffer.String(); got != want {
		t.Errorf("unexpected script:\n%s\nwant:\n%s", got, want)
	}

	if len(dropped) != 1 {
		t.Fatalf("expected 1 dropped line, got %d", len(dropped))
	}
	if dropped[0].Token != "%domain" || dropped[0].Server != testServer {
		t.Errorf("unexpected dropped error: %+v", dropped[0])
	}
}

func TestPXE(t *testing.T) {
	tests := []struct {
		name string
		os   osRow
		want string
	}{
		{
			name: "preseed",
			os:   debian12,
			want: `default web01

label web01
kernel vmlinuz-debian-12-x86_64
append initrd=initrd-debian-12-x86_64.img auto=true priority=critical url=http://build.example.com/debian/web01.cfg interface=eth0
`,
		},
		{
			name: "kickstart",
			os:   centos7,
			want: `default web01

label web01
kernel vmlinuz-centos-7.9-x86_64
append initrd=initrd-centos-7.9-x86_64.img ks=http://build.example.com/centos/web01.cfg ksdevice=eth0
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAssembler(fixture(t, tt.os), Options{})
			doc, err := a.PXE(context.Background(), server(t, a))
			if err != nil {
				t.Fatalf("PXE failed: %v", err)
			}
			if doc.Name != "01-aa-bb-cc-00-11-22" {
				t.Errorf("unexpected config name %s", doc.Name)
			}
			if got := doc.Buffer.String(); got != tt.want {
				t.Errorf("unexpected pxe config:\n%s\nwant:\n%s", got, tt.want)
			}
		})
	}
}

func TestPXEConfigName(t *testing.T) {
	if got := PXEConfigName("00:1A:2B:3C:4D:5E"); got != "01-00-1a-2b-3c-4d-5e" {
		t.Errorf("unexpected name %s", got)
	}
}

func TestMissingFactsFail(t *testing.T) {
	s := storetest.New()
	s.Add(stores.QueryServerID, testServer, stores.Row{stores.Uint(testServerID)})
	a := newTestAssembler(s, Options{})

	_, err := a.Answer(context.Background(), server(t, a))
	if !engine.IsNoRecords(err) {
		t.Fatalf("expected no_records error, got %v", err)
	}

	if _, err := a.Server(context.Background(), "nope"); !engine.IsNoRecords(err) {
		t.Errorf("expected no_records for unknown server, got %v", err)
	}
}

func TestUnknownOSFamily(t *testing.T) {
	a := newTestAssembler(fixture(t, osRow{"Plan9", "4", "plan9", "", "x86_64"}), Options{})
	_, err := a.Answer(context.Background(), server(t, a))
	if !engine.IsInvalid(err) {
		t.Fatalf("expected invalid error, got %v", err)
	}
}

func TestDHCPHosts(t *testing.T) {
	s := storetest.New()
	s.Add(stores.QueryDHCPHosts, nil,
		stores.Row{stores.Text("db01"), stores.Text("aa:bb:cc:00:00:01"), stores.Uint(ip(t, "10.0.0.11")), stores.Text("example.com")},
		stores.Row{stores.Text("web01"), stores.Text("aa:bb:cc:00:00:02"), stores.Uint(ip(t, "10.0.0.10")), stores.Text("example.com")},
	)

	doc, err := newTestAssembler(s, Options{}).DHCPHosts(context.Background())
	if err != nil {
		t.Fatalf("DHCPHosts failed: %v", err)
	}
	want := `host db01 { hardware ethernet aa:bb:cc:00:00:01; fixed-address 10.0.0.11; option domain-name "example.com"; }
host web01 { hardware ethernet aa:bb:cc:00:00:02; fixed-address 10.0.0.10; option domain-name "example.com"; }
`
	if got := doc.Buffer.String(); got != want {
		t.Errorf("unexpected hosts:\n%s\nwant:\n%s", got, want)
	}
}

func TestDHCPNetworks(t *testing.T) {
	s := storetest.New()
	s.Add(stores.QueryBuildDomains, nil,
		domainRow(t, 1, "example.com", "10.0.0.10", "10.0.0.50"),
		domainRow(t, 2, "broken.example.com", "10.0.0.60", "10.0.0.55"),
		domainRow(t, 3, "far.example.com", "192.168.9.10", "192.168.9.20"),
	)

	eth0, err := netalloc.ParseInterface("eth0", "10.0.0.5/24")
	if err != nil {
		t.Fatalf("ParseInterface failed: %v", err)
	}

	doc, err := newTestAssembler(s, Options{}).DHCPNetworks(context.Background(), []netalloc.Interface{eth0}, netalloc.Options{})
	if err != nil {
		t.Fatalf("DHCPNetworks failed: %v", err)
	}
	out := doc.Buffer.String()
	if strings.Count(out, "shared-network ") != 1 {
		t.Fatalf("expected one shared network:\n%s", out)
	}
	if !strings.Contains(out, "shared-network example.com {") {
		t.Errorf("expected example.com network:\n%s", out)
	}
	if strings.Contains(out, "broken") || strings.Contains(out, "far.example.com") {
		t.Errorf("unexpected domain in output:\n%s", out)
	}
}

func TestParseKinds(t *testing.T) {
	tests := []struct {
		in      string
		want    []Kind
		wantErr bool
	}{
		{"", ServerKinds, false},
		{"all", ServerKinds, false},
		{"PXE", []Kind{KindPXE}, false},
		{"kickstart", []Kind{KindKickstart}, false},
		{"dhcp-hosts", nil, true},
		{"bogus", nil, true},
	}
	for _, tt := range tests {
		got, err := ParseKinds(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseKinds(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if strings.Join(kindStrings(got), ",") != strings.Join(kindStrings(tt.want), ",") {
			t.Errorf("ParseKinds(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func kindStrings(ks []Kind) []string {
	out := make([]string, len(ks))
	for i, k := range ks {
		out[i] = string(k)
	}
	return out
}

func TestJoinURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://build/debian", "http://build/debian/scripts/a.sh"},
		{"http://build/debian/", "http://build/debian/scripts/a.sh"},
	}
	for _, tt := range tests {
		if got := joinURL(tt.base, ScriptsDir, "/a.sh"); got != tt.want {
			t.Errorf("joinURL(%q) = %s, want %s", tt.base, got, tt.want)
		}
	}
}
