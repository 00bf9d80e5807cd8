package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/openfroyo/cbc/pkg/assemble"
	"github.com/openfroyo/cbc/pkg/netalloc"
	"github.com/openfroyo/cbc/pkg/output"
	"github.com/openfroyo/cbc/pkg/policy"
	"github.com/openfroyo/cbc/pkg/stores"
	"github.com/openfroyo/cbc/pkg/telemetry"
)

// Config is the cbc configuration file.
type Config struct {
	// Store is the build database.
	Store StoreConfig `yaml:"store" json:"store"`

	// Paths places generated documents.
	Paths PathsConfig `yaml:"paths" json:"paths"`

	// Build holds site settings the database does not carry.
	Build BuildConfig `yaml:"build" json:"build"`

	// DHCP configures the shared-network file.
	DHCP DHCPConfig `yaml:"dhcp" json:"dhcp"`

	// Remote, when set, publishes documents over SFTP as well.
	Remote *RemoteConfig `yaml:"remote,omitempty" json:"remote,omitempty"`

	// Policy configures build lint.
	Policy PolicyConfig `yaml:"policy" json:"policy"`

	// Telemetry configures logging, tracing and metrics.
	Telemetry *telemetry.Config `yaml:"telemetry" json:"telemetry" validate:"required"`
}

// StoreConfig locates the SQLite build database.
type StoreConfig struct {
	// Path is the database file, or ":memory:".
	Path string `yaml:"path" json:"path" validate:"required"`

	MaxOpenConns int `yaml:"max_open_conns" json:"max_open_conns" validate:"gte=0"`
	MaxIdleConns int `yaml:"max_idle_conns" json:"max_idle_conns" validate:"gte=0"`

	// ConnMaxLifetime is a duration string such as "5m".
	ConnMaxLifetime string `yaml:"conn_max_lifetime" json:"conn_max_lifetime" validate:"omitempty,duration"`
}

// PathsConfig places documents under Root.
type PathsConfig struct {
	Root string `yaml:"root" json:"root" validate:"required"`
	Web  string `yaml:"web" json:"web" validate:"required"`
	TFTP string `yaml:"tftp" json:"tftp" validate:"required"`
	DHCP string `yaml:"dhcp" json:"dhcp" validate:"required"`
}

// BuildConfig holds answer file settings.
type BuildConfig struct {
	// RootPasswordHash is a crypt(3) hash written into answer files.
	RootPasswordHash string `yaml:"root_password_hash" json:"root_password_hash" validate:"omitempty,startswith=$"`

	// VolumeGroup names the LVM volume group of LVM schemes.
	VolumeGroup string `yaml:"volume_group" json:"volume_group" validate:"omitempty,excludesall=/ "`
}

// DHCPConfig configures the shared-network file.
type DHCPConfig struct {
	// StrictNetworkKey deduplicates shared networks by network and netmask
	// instead of network alone.
	StrictNetworkKey bool `yaml:"strict_network_key" json:"strict_network_key"`

	// Interfaces replaces the host's own interfaces when set.
	Interfaces []InterfaceConfig `yaml:"interfaces" json:"interfaces" validate:"dive"`
}

// InterfaceConfig is one DHCP server interface.
type InterfaceConfig struct {
	// CIDR is the interface address with its prefix length, such as
	// "10.0.0.5/24". Host bits may be set.
	Name string `yaml:"name" json:"name" validate:"required"`
	CIDR string `yaml:"cidr" json:"cidr" validate:"required,ipv4prefix"`
}

// RemoteConfig is the SFTP publish target.
type RemoteConfig struct {
	Host                 string `yaml:"host" json:"host" validate:"required"`
	Port                 int    `yaml:"port" json:"port" validate:"omitempty,min=1,max=65535"`
	User                 string `yaml:"user" json:"user" validate:"required"`
	AuthMethod           string `yaml:"auth_method" json:"auth_method" validate:"omitempty,oneof=password key"`
	Password             string `yaml:"password" json:"password"`
	PrivateKeyPath       string `yaml:"private_key_path" json:"private_key_path"`
	PrivateKeyPassphrase string `yaml:"private_key_passphrase" json:"private_key_passphrase"`
	KnownHostsPath       string `yaml:"known_hosts_path" json:"known_hosts_path"`

	// StrictHostKeyChecking defaults to true.
	StrictHostKeyChecking *bool `yaml:"strict_host_key_checking" json:"strict_host_key_checking"`

	ConnectionTimeout string `yaml:"connection_timeout" json:"connection_timeout" validate:"omitempty,duration"`
	RemoteRoot        string `yaml:"remote_root" json:"remote_root"`

	// FileMode is an octal mode such as "0644".
	FileMode string `yaml:"file_mode" json:"file_mode" validate:"omitempty,octal"`
}

// PolicyConfig configures build lint.
type PolicyConfig struct {
	// Mode is advisory or enforcing.
	Mode string `yaml:"mode" json:"mode" validate:"omitempty,oneof=advisory enforcing"`

	// Paths are extra .rego or .json policy files and directories.
	Paths []string `yaml:"paths" json:"paths"`

	// Disabled names policies to skip.
	Disabled []string `yaml:"disabled" json:"disabled"`
}

// Default returns the configuration used for anything a file leaves out.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Path: "cbc.db",
		},
		Paths: PathsConfig{
			Root: "build",
			Web:  "web",
			TFTP: "tftp",
			DHCP: "dhcp",
		},
		Policy: PolicyConfig{
			Mode: string(policy.ModeAdvisory),
		},
		Telemetry: telemetry.DefaultConfig(),
	}
}

// StoreConfig converts the store section.
func (c *Config) StoreConfig() (stores.Config, error) {
	cfg := stores.Config{
		Path:         c.Store.Path,
		MaxOpenConns: c.Store.MaxOpenConns,
		MaxIdleConns: c.Store.MaxIdleConns,
	}
	if c.Store.ConnMaxLifetime != "" {
		d, err := time.ParseDuration(c.Store.ConnMaxLifetime)
		if err != nil {
			return stores.Config{}, fmt.Errorf("store.conn_max_lifetime: %w", err)
		}
		cfg.ConnMaxLifetime = d
	}
	return cfg, nil
}

// AssembleOptions returns the answer file settings.
func (c *Config) AssembleOptions() assemble.Options {
	return assemble.Options{
		RootPasswordHash: c.Build.RootPasswordHash,
		VolumeGroup:      c.Build.VolumeGroup,
	}
}

// DocumentPaths returns the document layout relative to Paths.Root.
func (c *Config) DocumentPaths() assemble.Paths {
	return assemble.Paths{Web: c.Paths.Web, TFTP: c.Paths.TFTP, DHCP: c.Paths.DHCP}
}

// NetallocOptions returns the shared-network options.
func (c *Config) NetallocOptions() netalloc.Options {
	return netalloc.Options{StrictKey: c.DHCP.StrictNetworkKey}
}

// Interfaces returns the configured DHCP interfaces, or the host's own
// when none are configured.
func (c *Config) Interfaces() ([]netalloc.Interface, error) {
	if len(c.DHCP.Interfaces) == 0 {
		return netalloc.LocalInterfaces()
	}
	out := make([]netalloc.Interface, 0, len(c.DHCP.Interfaces))
	for i, ic := range c.DHCP.Interfaces {
		iface, err := netalloc.ParseInterface(ic.Name, ic.CIDR)
		if err != nil {
			return nil, fmt.Errorf("dhcp.interfaces[%d]: %w", i, err)
		}
		out = append(out, iface)
	}
	return out, nil
}

// PolicyMode returns the parsed lint mode.
func (c *Config) PolicyMode() (policy.Mode, error) {
	return policy.ParseMode(c.Policy.Mode)
}

// SFTPConfig converts the remote section. It returns nil when no remote
// is configured.
func (c *Config) SFTPConfig() (*output.SFTPConfig, error) {
	r := c.Remote
	if r == nil {
		return nil, nil
	}

	cfg := output.DefaultSFTPConfig(r.Host, r.User)
	if r.Port != 0 {
		cfg.Port = r.Port
	}
	if r.AuthMethod != "" {
		cfg.AuthMethod = output.AuthMethod(r.AuthMethod)
	}
	cfg.Password = r.Password
	cfg.PrivateKeyPath = expandHome(r.PrivateKeyPath)
	cfg.PrivateKeyPassphrase = r.PrivateKeyPassphrase
	if r.KnownHostsPath != "" {
		cfg.KnownHostsPath = expandHome(r.KnownHostsPath)
	}
	if r.StrictHostKeyChecking != nil {
		cfg.StrictHostKeyChecking = *r.StrictHostKeyChecking
	}
	if r.ConnectionTimeout != "" {
		d, err := time.ParseDuration(r.ConnectionTimeout)
		if err != nil {
			return nil, fmt.Errorf("remote.connection_timeout: %w", err)
		}
		cfg.ConnectionTimeout = d
	}
	cfg.RemoteRoot = r.RemoteRoot
	if r.FileMode != "" {
		mode, err := strconv.ParseUint(r.FileMode, 8, 32)
		if err != nil {
			return nil, fmt.Errorf("remote.file_mode: %w", err)
		}
		cfg.FileMode = os.FileMode(mode)
	}
	return cfg, nil
}

func expandHome(p string) string {
	if len(p) < 2 || p[:2] != "~/" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}
