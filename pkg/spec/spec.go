// Package spec models the declarative snapshot spec: an ordered
// set of roles, each listing the objects to collect and the hosts to
// collect them from.
package spec

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Spec is the decoded snapshot spec. Role order follows the source
// document.
type Spec struct {
	Target    string
	Timestamp *bool
	Timeout   *time.Duration
	LastDump  string
	Roles     []Role
}

// Role groups objects with the hosts they are collected from. HasHosts is
// false when the role declares no hosts key at all.
type Role struct {
	Name     string
	Objects  []Object
	Hosts    []Host
	HasHosts bool
}

// Object is an open, driver specific mapping. It always carries a "type"
// key when it is meant to be collected.
type Object map[string]any

// Parse decodes a YAML (or JSON) document into a Spec.
func Parse(data []byte) (*Spec, error) {
	var s Spec
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse spec: %w", err)
	}
	return &s, nil
}

// UnmarshalYAML walks the node tree by hand so that mapping order is kept.
func (s *Spec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: spec must be a mapping", node.Line)
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		switch key.Value {
		case "target":
			if err := val.Decode(&s.Target); err != nil {
				return fmt.Errorf("target: %w", err)
			}
		case "lastdump":
			if err := val.Decode(&s.LastDump); err != nil {
				return fmt.Errorf("lastdump: %w", err)
			}
		case "timestamp":
			var b bool
			if err := val.Decode(&b); err != nil {
				return fmt.Errorf("timestamp: %w", err)
			}
			s.Timestamp = &b
		case "timeout":
			var secs float64
			if err := val.Decode(&secs); err != nil {
				return fmt.Errorf("timeout: %w", err)
			}
			d := time.Duration(secs * float64(time.Second))
			s.Timeout = &d
		case "dump":
			roles, err := decodeRoles(val)
			if err != nil {
				return fmt.Errorf("dump: %w", err)
			}
			s.Roles = roles
		}
	}
	return nil
}

func decodeRoles(node *yaml.Node) ([]Role, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: expected mapping of roles", node.Line)
	}
	roles := make([]Role, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		role := Role{Name: node.Content[i].Value}
		body := node.Content[i+1]
		if body.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("role %q: expected mapping", role.Name)
		}
		for j := 0; j+1 < len(body.Content); j += 2 {
			key, val := body.Content[j], body.Content[j+1]
			switch key.Value {
			case "objects":
				var objs []Object
				if err := val.Decode(&objs); err != nil {
					return nil, fmt.Errorf("role %q objects: %w", role.Name, err)
				}
				role.Objects = objs
			case "hosts":
				hosts, err := decodeHosts(val)
				if err != nil {
					return nil, fmt.Errorf("role %q hosts: %w", role.Name, err)
				}
				role.Hosts = hosts
				role.HasHosts = true
			}
		}
		roles = append(roles, role)
	}
	return roles, nil
}

func decodeHosts(node *yaml.Node) ([]Host, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("line %d: expected list of hosts", node.Line)
	}
	hosts := make([]Host, 0, len(node.Content))
	for _, n := range node.Content {
		h, err := decodeHost(n)
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, h)
	}
	return hosts, nil
}
