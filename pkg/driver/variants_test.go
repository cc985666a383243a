package driver

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/andrej220/shotgun/pkg/executor"
	"github.com/andrej220/shotgun/pkg/plan"
	"github.com/andrej220/shotgun/pkg/spec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactory(t *testing.T) {
	cases := []struct {
		obj  spec.Object
		want any
	}{
		{spec.Object{"type": "file", "path": "/etc/hosts"}, &File{}},
		{spec.Object{"type": "dir", "path": "/var/log"}, &Dir{}},
		{spec.Object{"type": "command", "command": "uptime"}, &Command{}},
		{spec.Object{"type": "docker_command", "command": "ps", "containers": []any{"nginx"}}, &DockerCommand{}},
		{spec.Object{"type": "postgres", "dbname": "nailgun"}, &Postgres{}},
	}
	for _, tc := range cases {
		d, err := New(namedTask(tc.obj), conf, Env{})
		require.NoError(t, err, tc.obj["type"])
		assert.IsType(t, tc.want, d)
	}
	assert.Equal(t, []string{"command", "dir", "docker_command", "file", "postgres"}, Types())
}

func TestFactoryErrors(t *testing.T) {
	_, err := New(namedTask(spec.Object{"type": "tarball"}), conf, Env{})
	assert.ErrorIs(t, err, ErrUnknownDriverType)

	_, err = New(namedTask(spec.Object{"path": "/etc/hosts"}), conf, Env{})
	assert.ErrorIs(t, err, ErrUnknownDriverType)

	opaque := plan.Task{Role: "r", Host: spec.OpaqueHost{Value: "node-1"}, Object: spec.Object{"type": "file", "path": "/x"}}
	_, err = New(opaque, conf, Env{})
	assert.ErrorIs(t, err, ErrUnsupportedHost)

	for _, obj := range []spec.Object{
		{"type": "file"},
		{"type": "file", "path": 7},
		{"type": "dir", "path": "/var/log", "exclude": []any{"*.gz", 3}},
		{"type": "command"},
		{"type": "command", "command": []any{}},
		{"type": "docker_command", "command": "ps"},
		{"type": "postgres"},
	} {
		_, err := New(namedTask(obj), conf, Env{})
		assert.ErrorIs(t, err, ErrInvalidTask, obj)
	}
}

func TestFileSnapshot(t *testing.T) {
	fs := &fakeFS{}
	d, err := New(localTask(spec.Object{"type": "file", "path": "/etc/nailgun/settings.yaml"}), conf,
		Env{FS: fs, Hostname: staticHostname})
	require.NoError(t, err)
	f := d.(*File)
	assert.Equal(t, "/tmp/sample/workstation/etc/nailgun", f.TargetPath())

	require.NoError(t, f.Snapshot(context.Background()))
	assert.Equal(t, []fetchCall{{src: "/etc/nailgun/settings.yaml", dst: "/tmp/sample/workstation/etc/nailgun"}}, fs.copies)
}

func TestDirSnapshot(t *testing.T) {
	fs := &fakeFS{}
	task := localTask(spec.Object{"type": "dir", "path": "/var/log/", "exclude": []any{"*.gz", "old"}})
	d, err := NewDir(task, conf, Env{FS: fs, Hostname: staticHostname})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/sample/workstation/var/log", d.TargetPath())
	assert.Equal(t, "/tmp/sample/workstation/var/log/log", d.FullDstPath())

	require.NoError(t, d.Snapshot(context.Background()))
	assert.Equal(t, []fetchCall{{src: "/var/log/", dst: "/tmp/sample/workstation/var/log"}}, fs.copies)
	assert.Equal(t, map[string][]string{"/tmp/sample/workstation/var/log/log": {"*.gz", "old"}}, fs.removed)
}

func TestDirSnapshotFetchError(t *testing.T) {
	fs := &fakeFS{err: errBoom}
	d, err := NewDir(localTask(spec.Object{"type": "dir", "path": "/var/log"}), conf, Env{FS: fs, Hostname: staticHostname})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/sample/workstation/var/log", d.FullDstPath())
	assert.ErrorIs(t, d.Snapshot(context.Background()), errBoom)
	assert.Nil(t, fs.removed)
}

func TestCommandInit(t *testing.T) {
	c, err := NewCommand(namedTask(spec.Object{"type": "command", "command": "uptime", "to_file": "uptime.txt"}), conf, Env{})
	require.NoError(t, err)
	assert.Equal(t, []string{"uptime"}, c.Commands())
	assert.Equal(t, "/tmp/sample/node-1/commands/uptime.txt", c.TargetPath())

	c, err = NewCommand(namedTask(spec.Object{"type": "command", "command": []any{"cmd1", "cmd2"}}), conf, Env{})
	require.NoError(t, err)
	assert.Equal(t, []string{"cmd1", "cmd2"}, c.Commands())
	assert.Empty(t, c.TargetPath())
}

func TestCommandSnapshot(t *testing.T) {
	target := t.TempDir()
	runner := &fakeRunner{results: map[string]result{
		"cmd1": {code: 0, stdout: "out1", stderr: ""},
		"cmd2": {code: 2, stdout: "", stderr: "err2"},
	}}
	task := localTask(spec.Object{"type": "command", "command": []any{"cmd1", "cmd2"}, "to_file": "cmds.txt"})
	c, err := NewCommand(task, testConf{target: target}, Env{Local: runner, Hostname: staticHostname})
	require.NoError(t, err)

	require.NoError(t, c.Snapshot(context.Background()))
	assert.Equal(t, []string{"cmd1", "cmd2"}, runner.calls)

	data, err := os.ReadFile(filepath.Join(target, "workstation", "commands", "cmds.txt"))
	require.NoError(t, err)
	want := "===== COMMAND =====: cmd1\n" +
		"===== RETURN CODE =====: 0\n" +
		"===== STDOUT =====:\n" +
		"out1" +
		"\n===== STDERR =====:\n" +
		"" +
		"===== COMMAND =====: cmd2\n" +
		"===== RETURN CODE =====: 2\n" +
		"===== STDOUT =====:\n" +
		"" +
		"\n===== STDERR =====:\n" +
		"err2"
	assert.Equal(t, want, string(data))

	// a second snapshot appends
	require.NoError(t, c.Snapshot(context.Background()))
	data, err = os.ReadFile(filepath.Join(target, "workstation", "commands", "cmds.txt"))
	require.NoError(t, err)
	assert.Equal(t, want+want, string(data))
}

func TestCommandSnapshotTimedOut(t *testing.T) {
	target := t.TempDir()
	opener := &fakeOpener{run: func(_ string, stdout, _ io.Writer) (int, error) {
		_, _ = io.WriteString(stdout, "partial")
		return -1, executor.ErrCommandTimeout
	}}
	task := namedTask(spec.Object{"type": "command", "command": "tail -f x", "to_file": "tail.txt"})
	c, err := NewCommand(task, testConf{target: target}, Env{Remote: opener})
	require.NoError(t, err)

	require.NoError(t, c.Snapshot(context.Background()))
	data, err := os.ReadFile(filepath.Join(target, "node-1", "commands", "tail.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "===== RETURN CODE =====: none\n")
	assert.Contains(t, string(data), "===== STDOUT =====:\npartial\n")
}

func TestCommandSnapshotStopsOnError(t *testing.T) {
	runner := &fakeRunner{results: map[string]result{"cmd1": {err: errBoom}}}
	task := localTask(spec.Object{"type": "command", "command": []any{"cmd1", "cmd2"}})
	c, err := NewCommand(task, conf, Env{Local: runner, Hostname: staticHostname})
	require.NoError(t, err)

	assert.ErrorIs(t, c.Snapshot(context.Background()), errBoom)
	assert.Equal(t, []string{"cmd1"}, runner.calls)
}

func TestCommandReport(t *testing.T) {
	runner := &fakeRunner{results: map[string]result{
		"cmd1":         {stdout: "r1\nr2\nr3\n"},
		"cmd2\ncmd2-b": {stdout: "x"},
	}}
	task := localTask(spec.Object{"type": "command", "command": []any{"cmd1", "cmd2\ncmd2-b"}})
	c, err := NewCommand(task, conf, Env{Local: runner, Hostname: staticHostname})
	require.NoError(t, err)

	var rows []ReportRow
	for row, err := range c.Report(context.Background()) {
		require.NoError(t, err)
		rows = append(rows, row)
	}
	assert.Equal(t, []ReportRow{
		{Host: "workstation", Command: "cmd1", Output: "r1"},
		{Output: "r2"},
		{Output: "r3"},
		{Host: "workstation", Command: "cmd2", Output: "x"},
		{Command: "cmd2-b"},
	}, rows)
}

func TestCommandReportError(t *testing.T) {
	runner := &fakeRunner{results: map[string]result{"cmd1": {err: errBoom}}}
	task := localTask(spec.Object{"type": "command", "command": []any{"cmd1", "cmd2"}})
	c, err := NewCommand(task, conf, Env{Local: runner, Hostname: staticHostname})
	require.NoError(t, err)

	var errs []error
	for _, err := range c.Report(context.Background()) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], errBoom)
	assert.Equal(t, []string{"cmd1"}, runner.calls)
}

func TestDockerCommands(t *testing.T) {
	task := namedTask(spec.Object{
		"type":       "docker_command",
		"containers": []any{"nginx", "keystone"},
		"command":    []any{"ps", "df"},
		"to_file":    "docker.txt",
	})
	d, err := NewDockerCommand(task, conf, Env{})
	require.NoError(t, err)
	assert.Equal(t, []string{"nginx", "keystone"}, d.Containers())
	assert.Equal(t, "/tmp/sample/node-1/commands/docker.txt", d.TargetPath())

	exec := func(container, cmd string) string {
		return "docker exec \\\n" +
			"$(docker ps -q \\\n" +
			"  --filter 'name=" + container + "' \\\n" +
			"  --format '{{.Names}}') " + cmd
	}
	assert.Equal(t, []string{
		exec("nginx", "ps"),
		exec("nginx", "df"),
		exec("keystone", "ps"),
		exec("keystone", "df"),
	}, d.Commands())
}

func TestOfflineSnapshot(t *testing.T) {
	target := t.TempDir()
	o, err := NewOffline(namedTask(spec.Object{"type": "file", "path": "/etc/hosts"}), testConf{target: target}, Env{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(target, "node-1", "OFFLINE_NODE.txt"), o.TargetPath())

	require.NoError(t, o.Snapshot(context.Background()))
	data, err := os.ReadFile(o.TargetPath())
	require.NoError(t, err)
	assert.Equal(t, "Host node-1 was offline/unreachable during logs obtaining.\n", string(data))
}

func TestPostgresSnapshot(t *testing.T) {
	fs := &fakeFS{}
	p, err := NewPostgres(localTask(spec.Object{"type": "postgres", "dbname": "nailgun"}), conf, Env{Hostname: staticHostname, FS: fs})
	require.NoError(t, err)
	dump := p.DumpCommand("/tmp/tmp.X")
	assert.Equal(t, "pg_dump -h 'localhost' -U 'postgres' -w -f '/tmp/tmp.X' 'nailgun'", dump)

	runner := &fakeRunner{results: map[string]result{
		"mktemp": {stdout: "/tmp/tmp.X\n"},
		dump:     {},
	}}
	p.env.Local = runner

	require.NoError(t, p.Snapshot(context.Background()))
	assert.Equal(t, []string{"mktemp", dump, "rm -f '/tmp/tmp.X'"}, runner.calls)
	assert.Equal(t, []fetchCall{{src: "/tmp/tmp.X", dst: "/tmp/sample/workstation/pg_dump"}}, fs.copies)
	assert.Equal(t, "/tmp/sample/workstation/pg_dump", p.TargetPath())
}

func TestPostgresDumpCommand(t *testing.T) {
	task := namedTask(spec.Object{
		"type":     "postgres",
		"dbname":   "keystone",
		"dbhost":   "db.local",
		"username": "admin",
		"password": "it's",
	})
	p, err := NewPostgres(task, conf, Env{})
	require.NoError(t, err)
	assert.Equal(t,
		`PGPASSWORD='it'\''s' pg_dump -h 'db.local' -U 'admin' -w -f '/tmp/f' 'keystone'`,
		p.DumpCommand("/tmp/f"))
}

func TestPostgresEmptyMktemp(t *testing.T) {
	runner := &fakeRunner{results: map[string]result{"mktemp": {}}}
	p, err := NewPostgres(localTask(spec.Object{"type": "postgres", "dbname": "nailgun"}), conf,
		Env{Local: runner, Hostname: staticHostname, FS: &fakeFS{}})
	require.NoError(t, err)
	assert.Error(t, p.Snapshot(context.Background()))
	assert.Equal(t, []string{"mktemp"}, runner.calls)
}
