package spec

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Host is either a NetworkHost or an OpaqueHost.
type Host interface {
	isHost()
}

// NetworkHost is a host reachable over the network. The zero value means
// "no network host": work happens on the local machine.
type NetworkHost struct {
	Hostname string `yaml:"hostname,omitempty" json:"hostname,omitempty"`
	Address  string `yaml:"address,omitempty" json:"address,omitempty"`
	SSHKey   string `yaml:"ssh-key,omitempty" json:"ssh-key,omitempty"`
	User     string `yaml:"user,omitempty" json:"user,omitempty"`
	Port     int    `yaml:"port,omitempty" json:"port,omitempty"`
}

// OpaqueHost is a scalar host entry for roles with no network host concept.
type OpaqueHost struct {
	Value string
}

func (NetworkHost) isHost() {}
func (OpaqueHost) isHost()  {}

// IsLocal reports whether h names neither a hostname nor an address.
func (h NetworkHost) IsLocal() bool {
	return h.Hostname == "" && h.Address == ""
}

func (h OpaqueHost) String() string { return h.Value }

func decodeHost(node *yaml.Node) (Host, error) {
	if node.Kind == yaml.MappingNode {
		var h NetworkHost
		if err := node.Decode(&h); err != nil {
			return nil, fmt.Errorf("line %d: %w", node.Line, err)
		}
		return h, nil
	}
	if node.Kind == yaml.ScalarNode {
		return OpaqueHost{Value: node.Value}, nil
	}
	return nil, fmt.Errorf("line %d: unsupported host entry", node.Line)
}

// HostFields renders h the way it appears in the source document.
func HostFields(h Host) any {
	switch v := h.(type) {
	case NetworkHost:
		m := map[string]any{}
		if v.Hostname != "" {
			m["hostname"] = v.Hostname
		}
		if v.Address != "" {
			m["address"] = v.Address
		}
		if v.SSHKey != "" {
			m["ssh-key"] = v.SSHKey
		}
		if v.User != "" {
			m["user"] = v.User
		}
		if v.Port != 0 {
			m["port"] = v.Port
		}
		return m
	case OpaqueHost:
		return v.Value
	}
	return nil
}
