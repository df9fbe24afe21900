package main

import (
	"fmt"
	"strings"

	"gopkg.in/ini.v1"
)

// Command is a named macro: a short help string plus the sequence of
// datagram lines (each a full "$tag,..." line, without its trailing
// newline) it sends when invoked.
type Command struct {
	Help string
	Cmds []string
}

// Config is the host companion's configuration: the bridge address plus
// a table of user-defined command macros, the Go-idiomatic rendering of
// the original host tool's "ip" + "commands: HashMap<String, Command>"
// config, loaded from INI instead of TOML (gopkg.in/ini.v1, the config
// library one of the retrieved CAN-stack examples uses for its own
// config needs).
type Config struct {
	IP       string
	Commands map[string]Command
}

// LoadConfig parses path. A [bridge] section supplies "ip"; every other
// section is a macro definition, named after the section, with "help"
// and a "cmds" key holding '|'-separated datagram lines (datagrams
// themselves use ',' as a field separator, so '|' is the macro
// delimiter instead).
func LoadConfig(path string) (*Config, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	cfg := &Config{Commands: make(map[string]Command)}
	if bridge := f.Section("bridge"); bridge != nil {
		cfg.IP = bridge.Key("ip").String()
	}
	for _, section := range f.Sections() {
		name := section.Name()
		if name == ini.DefaultSection || name == "bridge" {
			continue
		}
		raw := section.Key("cmds").String()
		var cmds []string
		for _, part := range strings.Split(raw, "|") {
			part = strings.TrimSpace(part)
			if part != "" {
				cmds = append(cmds, part)
			}
		}
		cfg.Commands[name] = Command{
			Help: section.Key("help").String(),
			Cmds: cmds,
		}
	}
	return cfg, nil
}
