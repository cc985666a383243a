package driver

import (
	"context"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/andrej220/shotgun/pkg/executor"
	"github.com/andrej220/shotgun/pkg/lg"
	"github.com/andrej220/shotgun/pkg/plan"
)

type commandFields struct {
	Commands []string `validate:"min=1,dive,required"`
	ToFile   string
}

// Command runs a list of shell commands in order. Snapshot appends one
// block per command to <target>/<host>/commands/<to_file>; without to_file
// the blocks are discarded and the command only serves reports.
type Command struct {
	*Base
	cmds       []string
	toFile     string
	targetPath string
}

// ReportRow is one printable line of a command report.
type ReportRow struct {
	Host    string
	Command string
	Output  string
}

func NewCommand(task plan.Task, conf Conf, env Env) (*Command, error) {
	base, err := newBase(task, conf, env)
	if err != nil {
		return nil, err
	}
	cmds, err := stringList(task.Object, "command")
	if err != nil {
		return nil, err
	}
	toFile, err := stringField(task.Object, "to_file")
	if err != nil {
		return nil, err
	}
	return newCommand(base, cmds, toFile)
}

func newCommand(base *Base, cmds []string, toFile string) (*Command, error) {
	if err := validateFields(base.task.Type(), commandFields{Commands: cmds, ToFile: toFile}); err != nil {
		return nil, err
	}
	c := &Command{Base: base, cmds: cmds, toFile: toFile}
	if toFile != "" {
		c.targetPath = base.hostPath("commands", toFile)
	}
	return c, nil
}

func (c *Command) Commands() []string { return c.cmds }
func (c *Command) TargetPath() string { return c.targetPath }

func (c *Command) Snapshot(ctx context.Context) error {
	var w io.Writer = io.Discard
	if c.targetPath != "" {
		f := &lazyFile{path: c.targetPath, fs: c.env.FS}
		defer f.Close()
		w = f
	}
	for _, cmd := range c.cmds {
		if err := c.snapshotSingle(ctx, w, cmd); err != nil {
			return err
		}
	}
	return nil
}

// lazyFile opens path for appending on the first write, so a host that
// fails before producing output leaves no file behind.
type lazyFile struct {
	path string
	fs   executor.Filesystem
	f    *os.File
}

func (l *lazyFile) Write(p []byte) (int, error) {
	if l.f == nil {
		dir := filepath.Dir(l.path)
		if err := l.fs.MkdirAll(dir); err != nil {
			return 0, fmt.Errorf("create %s: %w", dir, err)
		}
		f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return 0, err
		}
		l.f = f
	}
	return l.f.Write(p)
}

func (l *lazyFile) Close() error {
	if l.f == nil {
		return nil
	}
	return l.f.Close()
}

func (c *Command) snapshotSingle(ctx context.Context, w io.Writer, cmd string) error {
	out, err := c.RunCommand(ctx, cmd)
	if err != nil {
		return err
	}
	c.logger.Debug("command finished", lg.String("command", cmd), lg.String("code", out.code()))
	return writeBlock(w, cmd, out)
}

func writeBlock(w io.Writer, cmd string, out CommandOutcome) error {
	_, err := fmt.Fprintf(w,
		"===== COMMAND =====: %s\n===== RETURN CODE =====: %s\n===== STDOUT =====:\n%s\n===== STDERR =====:\n%s",
		cmd, out.code(), out.Stdout, out.Stderr)
	return err
}

// Report runs the commands and yields one row per output line. The first
// row of every command carries the host label. Line i of the command text
// labels line i of its output; surplus output lines get an empty label.
// The sequence stops at the first error.
func (c *Command) Report(ctx context.Context) iter.Seq2[ReportRow, error] {
	return func(yield func(ReportRow, error) bool) {
		for _, cmd := range c.cmds {
			rows, err := c.reportSingle(ctx, cmd)
			if err != nil {
				yield(ReportRow{}, err)
				return
			}
			for _, r := range rows {
				if !yield(r, nil) {
					return
				}
			}
		}
	}
}

func (c *Command) reportSingle(ctx context.Context, cmd string) ([]ReportRow, error) {
	out, err := c.RunCommand(ctx, cmd)
	if err != nil {
		return nil, err
	}
	labels := strings.Split(cmd, "\n")
	lines := strings.Split(strings.TrimSuffix(out.Stdout, "\n"), "\n")

	n := max(len(labels), len(lines))
	rows := make([]ReportRow, 0, n)
	for i := 0; i < n; i++ {
		var r ReportRow
		if i == 0 {
			r.Host = c.host
		}
		if i < len(labels) {
			r.Command = labels[i]
		}
		if i < len(lines) {
			r.Output = lines[i]
		}
		rows = append(rows, r)
	}
	return rows, nil
}
