package engine

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"strings"
)

// PartitionSpec is one entry of a partition scheme.
type PartitionSpec struct {
	Priority      uint64   `json:"priority"`
	MinSizeMB     uint64   `json:"min_size_mb"`
	MaxSizeMB     uint64   `json:"max_size_mb"`
	Filesystem    string   `json:"filesystem"`
	MountPoint    string   `json:"mount_point"`
	LogicalVolume string   `json:"logical_volume,omitempty"`
	Options       []string `json:"options,omitempty"`
}

// PartitionScheme is an ordered partition layout.
type PartitionScheme struct {
	ID         uint64          `json:"id"`
	Name       string          `json:"name"`
	LVM        bool            `json:"lvm"`
	Partitions []PartitionSpec `json:"partitions"`
}

// ScriptArgument is one invocation of a post-install script.
type ScriptArgument struct {
	Script    string `json:"script"`
	Template  string `json:"template"`
	Sequence  uint64 `json:"sequence"`
	Domain    string `json:"domain"`
	BuildType string `json:"build_type"`
}

// OSFamily groups operating systems by installer.
type OSFamily string

const (
	FamilyDebian OSFamily = "debian"
	FamilyUbuntu OSFamily = "ubuntu"
	FamilyCentOS OSFamily = "centos"
	FamilyRedHat OSFamily = "redhat"
	FamilyFedora OSFamily = "fedora"
)

// ParseOSFamily maps an OS alias or name ("debian", "CentOS", "rhel") to
// its family.
func ParseOSFamily(s string) (OSFamily, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debian":
		return FamilyDebian, nil
	case "ubuntu":
		return FamilyUbuntu, nil
	case "centos":
		return FamilyCentOS, nil
	case "redhat", "rhel":
		return FamilyRedHat, nil
	case "fedora":
		return FamilyFedora, nil
	default:
		return "", NewInvalidError(fmt.Sprintf("unknown OS family %q", s))
	}
}

// Preseeded reports whether the family installs from a preseed file.
func (f OSFamily) Preseeded() bool {
	return f == FamilyDebian || f == FamilyUbuntu
}

// Kickstarted reports whether the family installs from a kickstart file.
func (f OSFamily) Kickstarted() bool {
	return f == FamilyCentOS || f == FamilyRedHat || f == FamilyFedora
}

// IPv4String formats a host-order address as a dotted quad.
func IPv4String(ip uint32) string {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], ip)
	return netip.AddrFrom4(b).String()
}

// ParseIPv4 parses a dotted quad into a host-order address.
func ParseIPv4(s string) (uint32, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return 0, fmt.Errorf("invalid IPv4 address %q: %w", s, err)
	}
	if !addr.Is4() {
		return 0, fmt.Errorf("not an IPv4 address: %q", s)
	}
	b := addr.As4()
	return binary.BigEndian.Uint32(b[:]), nil
}
