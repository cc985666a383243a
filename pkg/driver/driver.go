// Package driver turns a planned task into collected artifacts under the
// run target directory, either locally or over a remote session.
package driver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/andrej220/shotgun/pkg/executor"
	"github.com/andrej220/shotgun/pkg/lg"
	"github.com/andrej220/shotgun/pkg/plan"
	"github.com/andrej220/shotgun/pkg/spec"
)

// ConnectTimeout bounds connection establishment only; commands use the
// driver timeout.
const ConnectTimeout = 2 * time.Second

// Conf is the part of the plan a driver needs.
type Conf interface {
	Target() string
	Timeout() time.Duration
}

// Env carries the capabilities drivers run with. Zero fields fall back to
// the local implementations; Remote has no default.
type Env struct {
	Remote   executor.Opener
	Local    executor.Runner
	FS       executor.Filesystem
	Logger   lg.Logger
	Hostname func() (string, error)
}

func (e Env) withDefaults() Env {
	if e.Local == nil {
		e.Local = executor.LocalRunner{}
	}
	if e.FS == nil {
		e.FS = executor.LocalFS{}
	}
	if e.Logger == nil {
		e.Logger = lg.Discard
	}
	if e.Hostname == nil {
		e.Hostname = os.Hostname
	}
	return e
}

// Driver produces the artifact of one task.
type Driver interface {
	Host() string
	Timeout() time.Duration
	Snapshot(ctx context.Context) error
}

// Base implements command execution and fetching for every variant.
type Base struct {
	task    plan.Task
	conf    Conf
	env     Env
	net     spec.NetworkHost
	host    string
	timeout time.Duration
	logger  lg.Logger
}

func newBase(task plan.Task, conf Conf, env Env) (*Base, error) {
	h, ok := task.NetworkHost()
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedHost, task.Host)
	}
	env = env.withDefaults()

	host := h.Hostname
	if host == "" {
		host = h.Address
	}
	if host == "" {
		name, err := env.Hostname()
		if err != nil {
			return nil, fmt.Errorf("local hostname: %w", err)
		}
		host = name
	}

	timeout := conf.Timeout()
	if d, ok, err := durationField(task.Object, "timeout"); err != nil {
		return nil, err
	} else if ok {
		timeout = d
	}

	return &Base{
		task:    task,
		conf:    conf,
		env:     env,
		net:     h,
		host:    host,
		timeout: timeout,
		logger:  env.Logger.With(lg.String("host", host), lg.String("type", task.Type())),
	}, nil
}

// Host is the label used for destination paths: hostname, else address,
// else the local machine name.
func (b *Base) Host() string { return b.host }

func (b *Base) Timeout() time.Duration { return b.timeout }

func (b *Base) Task() plan.Task { return b.task }

func (b *Base) remote() bool { return !b.net.IsLocal() }

// hostPath joins parts under <target>/<host>.
func (b *Base) hostPath(parts ...string) string {
	return filepath.Join(append([]string{b.conf.Target(), b.host}, parts...)...)
}

func (b *Base) open(ctx context.Context) (executor.Session, error) {
	if b.env.Remote == nil {
		return nil, fmt.Errorf("no remote opener configured for %s", b.host)
	}
	addr := b.net.Address
	if addr == "" {
		addr = b.net.Hostname
	}
	return b.env.Remote.Open(ctx, executor.Target{
		Address:        addr,
		Port:           b.net.Port,
		User:           b.net.User,
		KeyPath:        b.net.SSHKey,
		ConnectTimeout: ConnectTimeout,
		NoPrompt:       true,
	})
}

// RunCommand executes command on the task host. A command timeout is not an
// error: the outcome carries the output captured so far and no return code.
func (b *Base) RunCommand(ctx context.Context, command string) (CommandOutcome, error) {
	if !b.remote() {
		code, stdout, stderr, err := b.env.Local.Execute(ctx, command)
		if err != nil {
			return CommandOutcome{}, err
		}
		return CommandOutcome{Stdout: stdout, Stderr: stderr, Output: stdout, ReturnCode: &code}, nil
	}

	sess, err := b.open(ctx)
	if err != nil {
		return CommandOutcome{}, err
	}
	defer sess.Close()

	var stdout, stderr syncBuffer
	b.logger.Debug("running remote command", lg.String("command", command), lg.Duration("timeout", b.timeout))
	code, err := sess.Run(ctx, command, executor.RunOptions{
		Timeout:    b.timeout,
		BestEffort: true,
		NoPrompt:   true,
		UseShell:   true,
	}, &stdout, &stderr)
	if errors.Is(err, executor.ErrCommandTimeout) {
		b.logger.Warn("command timed out, keeping partial output",
			lg.String("command", command), lg.Duration("timeout", b.timeout))
		out := stdout.String()
		return CommandOutcome{Stdout: out, Stderr: stderr.String(), Output: out}, nil
	}
	if err != nil {
		return CommandOutcome{}, err
	}
	out := stdout.String()
	return CommandOutcome{Stdout: out, Stderr: stderr.String(), Output: out, ReturnCode: &code}, nil
}

// Fetch copies remotePath into localDir, creating localDir first.
func (b *Base) Fetch(ctx context.Context, remotePath, localDir string) error {
	if err := b.env.FS.MkdirAll(localDir); err != nil {
		return fmt.Errorf("create %s: %w", localDir, err)
	}
	if !b.remote() {
		return b.env.FS.Copy(remotePath, localDir)
	}

	sess, err := b.open(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()
	b.logger.Debug("fetching", lg.String("path", remotePath), lg.String("dst", localDir))
	return sess.Fetch(ctx, remotePath, localDir)
}
