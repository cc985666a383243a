package driver

import (
	"errors"
	"fmt"
	"sort"

	"github.com/andrej220/shotgun/pkg/plan"
)

var (
	ErrUnknownDriverType = errors.New("unknown driver type")
	ErrUnsupportedHost   = errors.New("host entry is not a network host")
	ErrInvalidTask       = errors.New("invalid task")
)

type constructor func(task plan.Task, conf Conf, env Env) (Driver, error)

// Offline is not listed: the orchestrator builds it through NewOffline.
var registry = map[string]constructor{
	"file":           newFileDriver,
	"dir":            newDirDriver,
	"command":        newCommandDriver,
	"docker_command": newDockerDriver,
	"postgres":       newPostgresDriver,
}

// New builds the driver registered for the task type.
func New(task plan.Task, conf Conf, env Env) (Driver, error) {
	build, ok := registry[task.Type()]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriverType, task.Type())
	}
	return build(task, conf, env)
}

// Types lists the registered task types.
func Types() []string {
	out := make([]string, 0, len(registry))
	for t := range registry {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func newFileDriver(task plan.Task, conf Conf, env Env) (Driver, error) {
	f, err := NewFile(task, conf, env)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func newDirDriver(task plan.Task, conf Conf, env Env) (Driver, error) {
	d, err := NewDir(task, conf, env)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func newCommandDriver(task plan.Task, conf Conf, env Env) (Driver, error) {
	c, err := NewCommand(task, conf, env)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func newDockerDriver(task plan.Task, conf Conf, env Env) (Driver, error) {
	d, err := NewDockerCommand(task, conf, env)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func newPostgresDriver(task plan.Task, conf Conf, env Env) (Driver, error) {
	p, err := NewPostgres(task, conf, env)
	if err != nil {
		return nil, err
	}
	return p, nil
}
