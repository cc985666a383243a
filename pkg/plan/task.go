package plan

import (
	"maps"

	"github.com/andrej220/shotgun/pkg/spec"
)

// Task is one (role, host, object) unit of collection.
type Task struct {
	Role   string
	Host   spec.Host
	Object spec.Object
}

func newTask(role string, host spec.Host, obj spec.Object) Task {
	return Task{Role: role, Host: host, Object: maps.Clone(obj)}
}

// Type returns the declared driver type, or "" when absent.
func (t Task) Type() string {
	s, _ := t.Object["type"].(string)
	return s
}

// NetworkHost returns the task host when it is a network host.
func (t Task) NetworkHost() (spec.NetworkHost, bool) {
	h, ok := t.Host.(spec.NetworkHost)
	return h, ok
}

// Fields returns the object merged with its "host" key, as laid out in the
// source document.
func (t Task) Fields() map[string]any {
	m := make(map[string]any, len(t.Object)+1)
	maps.Copy(m, t.Object)
	m["host"] = spec.HostFields(t.Host)
	return m
}

// networkAddress prefers the address over the hostname.
func networkAddress(t Task) (string, bool) {
	h, ok := t.NetworkHost()
	if !ok {
		return "", false
	}
	if h.Address != "" {
		return h.Address, true
	}
	if h.Hostname != "" {
		return h.Hostname, true
	}
	return "", false
}
