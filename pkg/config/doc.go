// Package config loads the cbc configuration file.
//
// # Overview
//
// A configuration is YAML (or JSON) or CUE. Either way it is decoded over
// Default, so a file only names what it changes. CUE sources are first
// unified with a closed #Config schema, which reports misspelt keys and
// bad values with file and line positions. The decoded Config is then
// checked with struct tags and the telemetry section's own Validate.
//
// The CBC_DB environment variable overrides store.path after decoding.
//
// # Example
//
//	store:
//	  path: /var/lib/cbc/cbc.db
//	paths:
//	  root: /srv/install
//	build:
//	  root_password_hash: "$6$..."
//	  volume_group: sysvg
//	dhcp:
//	  interfaces:
//	    - name: eth1
//	      cidr: 10.0.0.5/24
//	remote:
//	  host: tftp01.example.com
//	  user: deploy
//	policy:
//	  mode: enforcing
//	  paths: [/etc/cbc/policies]
//
// The same file in CUE:
//
//	store: path: "/var/lib/cbc/cbc.db"
//	paths: root: "/srv/install"
//	policy: mode: "enforcing"
//
// # Errors
//
// Load and Parse return ValidationErrors listing every problem found, each
// with a key path and, for CUE sources, a position.
package config
