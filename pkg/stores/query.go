package stores

import (
	"fmt"
	"strings"
)

// QueryID identifies a catalogue query.
type QueryID int

// Catalogue queries. Keys are a server id unless noted.
const (
	QueryServerID        QueryID = iota + 1 // key: server name
	QueryBuildIP                            // ip
	QueryBuildHostname                      // hostname
	QueryBuildDomainName                    // domain name
	QueryBuildFQDN                          // hostname, domain name
	QueryNetworkConfig                      // ip, netmask, gateway, ns, hostname, domain, interface, mac
	QueryBuildOS                            // os, version, alias, version alias, arch
	QueryLocale                             // locale, keymap, timezone, language, country
	QueryBuildType                          // alias, build type, arg, url, mirror, boot line
	QueryNTP                                // config flag, ntp server
	QueryScheme                             // scheme id, name, lvm
	QuerySchemeByName                       // key: scheme name
	QueryPartitions                         // key: scheme id
	QueryPartOptions                        // key: scheme id
	QueryPackages                           // package
	QueryDisk                               // device, lvm
	QueryScriptArgs                         // arg, no, script, domain, build type
	QueryDHCPHosts                          // unkeyed
	QueryBuildDomains                       // unkeyed
	QueryDomainByName                       // key: domain name
	QueryDomainIPs                          // key: build domain id
)

// Query is a catalogue entry: the SQL text and its declared column types.
type Query struct {
	Name    string
	SQL     string
	Columns []ColumnType
}

// Keyed reports whether the query takes a key argument.
func (q Query) Keyed() bool {
	return strings.Contains(q.SQL, "?")
}

const (
	colText  = ColumnText
	colUint  = ColumnUint64
	colShort = ColumnInt16
)

const domainColumns = `bd_id, domain, start_ip, end_ip, netmask, gateway, ns`

// buildIPJoin reads the address the server's build points at.
const buildIPJoin = `
			FROM build b
			JOIN build_ip bi ON bi.ip_id = b.ip_id
			WHERE b.server_id = ?`

var catalogue = map[QueryID]Query{
	QueryServerID: {
		Name:    "server-id",
		SQL:     `SELECT server_id FROM server WHERE name = ?`,
		Columns: []ColumnType{colUint},
	},
	QueryBuildIP: {
		Name:    "build-ip",
		SQL:     `SELECT bi.ip` + buildIPJoin,
		Columns: []ColumnType{colUint},
	},
	QueryBuildHostname: {
		Name:    "build-hostname",
		SQL:     `SELECT bi.hostname` + buildIPJoin,
		Columns: []ColumnType{colText},
	},
	QueryBuildDomainName: {
		Name:    "build-domain-name",
		SQL:     `SELECT bi.domainname` + buildIPJoin,
		Columns: []ColumnType{colText},
	},
	QueryBuildFQDN: {
		Name:    "build-fqdn",
		SQL:     `SELECT bi.hostname, bi.domainname` + buildIPJoin,
		Columns: []ColumnType{colText, colText},
	},
	QueryNetworkConfig: {
		Name: "network-config",
		SQL: `
			SELECT bi.ip, bd.netmask, bd.gateway, bd.ns, bi.hostname, bi.domainname, b.net_inter, b.mac_addr
			FROM build b
			JOIN build_ip bi ON bi.ip_id = b.ip_id
			JOIN build_domain bd ON bd.bd_id = bi.bd_id
			WHERE b.server_id = ?`,
		Columns: []ColumnType{colUint, colUint, colUint, colUint, colText, colText, colText, colText},
	},
	QueryBuildOS: {
		Name: "build-os",
		SQL: `
			SELECT o.os, o.os_version, o.alias, o.ver_alias, o.arch
			FROM build b
			JOIN build_os o ON o.os_id = b.os_id
			WHERE b.server_id = ?`,
		Columns: []ColumnType{colText, colText, colText, colText, colText},
	},
	QueryLocale: {
		Name: "locale",
		SQL: `
			SELECT l.locale, l.keymap, l.timezone, l.language, l.country
			FROM build b
			JOIN locale l ON l.locale_id = b.locale_id
			WHERE b.server_id = ?`,
		Columns: []ColumnType{colText, colText, colText, colText, colText},
	},
	QueryBuildType: {
		Name: "build-type",
		SQL: `
			SELECT bt.alias, bt.build_type, bt.arg, bt.url, bt.mirror, bt.boot_line
			FROM build b
			JOIN build_os o ON o.os_id = b.os_id
			JOIN build_type bt ON bt.alias = o.alias
			WHERE b.server_id = ?`,
		Columns: []ColumnType{colText, colText, colText, colText, colText, colText},
	},
	QueryNTP: {
		Name: "ntp",
		SQL: `
			SELECT bd.config_ntp, bd.ntp_server
			FROM build b
			JOIN build_ip bi ON bi.ip_id = b.ip_id
			JOIN build_domain bd ON bd.bd_id = bi.bd_id
			WHERE b.server_id = ?`,
		Columns: []ColumnType{colShort, colText},
	},
	QueryScheme: {
		Name: "scheme",
		SQL: `
			SELECT s.def_scheme_id, s.scheme_name, s.lvm
			FROM build b
			JOIN seed_schemes s ON s.def_scheme_id = b.def_scheme_id
			WHERE b.server_id = ?`,
		Columns: []ColumnType{colUint, colText, colShort},
	},
	QuerySchemeByName: {
		Name:    "scheme-by-name",
		SQL:     `SELECT def_scheme_id, scheme_name, lvm FROM seed_schemes WHERE scheme_name = ?`,
		Columns: []ColumnType{colUint, colText, colShort},
	},
	QueryPartitions: {
		Name: "partitions",
		SQL: `
			SELECT minimum, maximum, priority, mount_point, filesystem, logical_volume
			FROM default_part
			WHERE def_scheme_id = ?
			ORDER BY priority, def_part_id`,
		Columns: []ColumnType{colUint, colUint, colUint, colText, colText, colText},
	},
	QueryPartOptions: {
		Name: "partition-options",
		SQL: `
			SELECT mount_point, poption
			FROM part_options
			WHERE def_scheme_id = ?
			ORDER BY part_options_id`,
		Columns: []ColumnType{colText, colText},
	},
	QueryPackages: {
		Name: "packages",
		SQL: `
			SELECT p.package
			FROM build b
			JOIN packages p ON p.varient_id = b.varient_id AND p.os_id = b.os_id
			WHERE b.server_id = ?
			ORDER BY p.package`,
		Columns: []ColumnType{colText},
	},
	QueryDisk: {
		Name:    "disk",
		SQL:     `SELECT device, lvm FROM disk_dev WHERE server_id = ? ORDER BY disk_id`,
		Columns: []ColumnType{colText, colShort},
	},
	QueryScriptArgs: {
		Name: "script-args",
		SQL: `
			SELECT a.arg, a.seq_no, s.name, bd.domain, bt.alias
			FROM build b
			JOIN build_ip bi ON bi.ip_id = b.ip_id
			JOIN build_domain bd ON bd.bd_id = bi.bd_id
			JOIN build_os o ON o.os_id = b.os_id
			JOIN build_type bt ON bt.alias = o.alias
			JOIN system_scripts s ON s.bd_id = bd.bd_id AND s.bt_id = bt.bt_id
			JOIN system_scripts_args a ON a.systscr_id = s.systscr_id
			WHERE b.server_id = ?
			ORDER BY s.name, a.seq_no`,
		Columns: []ColumnType{colText, colUint, colText, colText, colText},
	},
	QueryDHCPHosts: {
		Name: "dhcp-hosts",
		SQL: `
			SELECT s.name, b.mac_addr, bi.ip, bi.domainname
			FROM build b
			JOIN server s ON s.server_id = b.server_id
			JOIN build_ip bi ON bi.ip_id = b.ip_id
			ORDER BY s.name`,
		Columns: []ColumnType{colText, colText, colUint, colText},
	},
	QueryBuildDomains: {
		Name:    "build-domains",
		SQL:     `SELECT ` + domainColumns + ` FROM build_domain ORDER BY bd_id`,
		Columns: []ColumnType{colUint, colText, colUint, colUint, colUint, colUint, colUint},
	},
	QueryDomainByName: {
		Name:    "domain-by-name",
		SQL:     `SELECT ` + domainColumns + ` FROM build_domain WHERE domain = ?`,
		Columns: []ColumnType{colUint, colText, colUint, colUint, colUint, colUint, colUint},
	},
	QueryDomainIPs: {
		Name:    "domain-ips",
		SQL:     `SELECT ip FROM build_ip WHERE bd_id = ? ORDER BY ip`,
		Columns: []ColumnType{colUint},
	},
}

// Lookup returns the catalogue entry for id.
func Lookup(id QueryID) (Query, bool) {
	q, ok := catalogue[id]
	return q, ok
}

// String returns the catalogue name of the query.
func (id QueryID) String() string {
	if q, ok := catalogue[id]; ok {
		return q.Name
	}
	return fmt.Sprintf("query(%d)", int(id))
}

// CheckRow verifies that row matches the declared columns of id.
func CheckRow(id QueryID, row Row) error {
	q, ok := catalogue[id]
	if !ok {
		return fmt.Errorf("unknown query %d", int(id))
	}
	if len(row) != len(q.Columns) {
		return fmt.Errorf("query %s: expected %d columns, got %d", q.Name, len(q.Columns), len(row))
	}
	for i, col := range q.Columns {
		if row[i].Type != col {
			return fmt.Errorf("query %s: column %d is %s, declared %s", q.Name, i, row[i].Type, col)
		}
	}
	return nil
}
