package driver

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/andrej220/shotgun/pkg/executor"
	"github.com/andrej220/shotgun/pkg/plan"
	"github.com/andrej220/shotgun/pkg/spec"
)

type testConf struct {
	target  string
	timeout time.Duration
}

func (c testConf) Target() string         { return c.target }
func (c testConf) Timeout() time.Duration { return c.timeout }

type runCall struct {
	command string
	opts    executor.RunOptions
}

type fetchCall struct {
	src, dst string
}

type fakeSession struct {
	mu      *sync.Mutex
	run     func(command string, stdout, stderr io.Writer) (int, error)
	runs    *[]runCall
	fetches *[]fetchCall
	closed  *int
}

func (s fakeSession) Run(_ context.Context, command string, opts executor.RunOptions, stdout, stderr io.Writer) (int, error) {
	s.mu.Lock()
	*s.runs = append(*s.runs, runCall{command: command, opts: opts})
	s.mu.Unlock()
	if s.run == nil {
		return 0, nil
	}
	return s.run(command, stdout, stderr)
}

func (s fakeSession) Fetch(_ context.Context, remotePath, localDir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	*s.fetches = append(*s.fetches, fetchCall{src: remotePath, dst: localDir})
	return nil
}

func (s fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	*s.closed++
	return nil
}

type fakeOpener struct {
	mu      sync.Mutex
	err     error
	run     func(command string, stdout, stderr io.Writer) (int, error)
	targets []executor.Target
	runs    []runCall
	fetches []fetchCall
	closed  int
}

func (o *fakeOpener) Open(_ context.Context, target executor.Target) (executor.Session, error) {
	o.mu.Lock()
	o.targets = append(o.targets, target)
	o.mu.Unlock()
	if o.err != nil {
		return nil, o.err
	}
	return fakeSession{mu: &o.mu, run: o.run, runs: &o.runs, fetches: &o.fetches, closed: &o.closed}, nil
}

type result struct {
	code           int
	stdout, stderr string
	err            error
}

type fakeRunner struct {
	mu      sync.Mutex
	results map[string]result
	calls   []string
}

func (r *fakeRunner) Execute(_ context.Context, command string) (int, string, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, command)
	res := r.results[command]
	return res.code, res.stdout, res.stderr, res.err
}

type fakeFS struct {
	mkdirs  []string
	copies  []fetchCall
	removed map[string][]string
	err     error
}

func (f *fakeFS) MkdirAll(dir string) error {
	f.mkdirs = append(f.mkdirs, dir)
	return nil
}

func (f *fakeFS) Copy(src, dstDir string) error {
	f.copies = append(f.copies, fetchCall{src: src, dst: dstDir})
	return f.err
}

func (f *fakeFS) RemoveMatching(root string, patterns []string) error {
	if f.removed == nil {
		f.removed = make(map[string][]string)
	}
	f.removed[root] = patterns
	return nil
}

var errBoom = errors.New("boom")

func remoteTask(obj spec.Object) plan.Task {
	return plan.Task{
		Role:   "master",
		Host:   spec.NetworkHost{Address: "10.109.0.2", SSHKey: "/root/.ssh/id_rsa"},
		Object: obj,
	}
}

func namedTask(obj spec.Object) plan.Task {
	return plan.Task{
		Role:   "master",
		Host:   spec.NetworkHost{Hostname: "node-1", Address: "10.109.0.2"},
		Object: obj,
	}
}

func localTask(obj spec.Object) plan.Task {
	return plan.Task{Role: "local", Host: spec.NetworkHost{}, Object: obj}
}

func staticHostname() (string, error) { return "workstation", nil }
