package config

import (
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// configSchema closes the top level and the cbc sections, so a misspelt
// key in a .cue file fails at load time. Telemetry is left open; its
// fields are checked after decoding.
const configSchema = `
#Duration: =~"^([0-9]+(\\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$"

#Interface: {
	name: string & !=""
	cidr: =~"^[0-9]{1,3}(\\.[0-9]{1,3}){3}/[0-9]{1,2}$"
}

#Config: {
	store?: {
		path?:              string & !=""
		max_open_conns?:    int & >=0
		max_idle_conns?:    int & >=0
		conn_max_lifetime?: #Duration
	}
	paths?: {
		root?: string & !=""
		web?:  string
		tftp?: string
		dhcp?: string
	}
	build?: {
		root_password_hash?: =~"^\\$"
		volume_group?:       =~"^[A-Za-z0-9_.+-]+$"
	}
	dhcp?: {
		strict_network_key?: bool
		interfaces?: [...#Interface]
	}
	remote?: {
		host:                      string & !=""
		user:                      string & !=""
		port?:                     int & >0 & <=65535
		auth_method?:              "password" | "key"
		password?:                 string
		private_key_path?:         string
		private_key_passphrase?:   string
		known_hosts_path?:         string
		strict_host_key_checking?: bool
		connection_timeout?:       #Duration
		remote_root?:              string
		file_mode?:                =~"^0?[0-7]{3,4}$"
	}
	policy?: {
		mode?: "advisory" | "enforcing"
		paths?: [...string]
		disabled?: [...string]
	}
	telemetry?: {...}
}
`

var (
	schemaOnce sync.Once
	schemaCtx  *cue.Context
	schemaVal  cue.Value
	schemaErr  error
)

// schema returns the compiled #Config definition and the context it
// lives in. Values unified with it must come from the same context.
func schema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		v := schemaCtx.CompileString(configSchema, cue.Filename("config-schema.cue"))
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("failed to compile config schema: %w", err)
			return
		}
		schemaVal = v.LookupPath(cue.ParsePath("#Config"))
	})
	return schemaCtx, schemaVal, schemaErr
}
