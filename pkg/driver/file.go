package driver

import (
	"context"
	"path/filepath"

	"github.com/andrej220/shotgun/pkg/plan"
)

type fileFields struct {
	Path    string   `validate:"required"`
	Exclude []string `validate:"dive,required"`
}

// File copies one remote or local path into <target>/<host>/<dir of path>,
// so the source tree layout is mirrored under the host directory.
type File struct {
	*Base
	path       string
	targetPath string
}

func NewFile(task plan.Task, conf Conf, env Env) (*File, error) {
	base, err := newBase(task, conf, env)
	if err != nil {
		return nil, err
	}
	p, err := stringField(task.Object, "path")
	if err != nil {
		return nil, err
	}
	if err := validateFields("file", fileFields{Path: p}); err != nil {
		return nil, err
	}
	return &File{
		Base:       base,
		path:       p,
		targetPath: base.hostPath(filepath.Dir(p)),
	}, nil
}

func (f *File) Path() string       { return f.path }
func (f *File) TargetPath() string { return f.targetPath }

func (f *File) Snapshot(ctx context.Context) error {
	return f.Fetch(ctx, f.path, f.targetPath)
}

// Dir fetches a directory and prunes entries whose base name matches one of
// the exclude patterns from the local copy.
type Dir struct {
	*File
	exclude     []string
	fullDstPath string
}

func NewDir(task plan.Task, conf Conf, env Env) (*Dir, error) {
	f, err := NewFile(task, conf, env)
	if err != nil {
		return nil, err
	}
	exclude, err := stringList(task.Object, "exclude")
	if err != nil {
		return nil, err
	}
	if err := validateFields("dir", fileFields{Path: f.path, Exclude: exclude}); err != nil {
		return nil, err
	}
	return &Dir{
		File:        f,
		exclude:     exclude,
		fullDstPath: filepath.Join(f.targetPath, filepath.Base(filepath.Clean(f.path))),
	}, nil
}

func (d *Dir) Exclude() []string   { return d.exclude }
func (d *Dir) FullDstPath() string { return d.fullDstPath }

func (d *Dir) Snapshot(ctx context.Context) error {
	if err := d.File.Snapshot(ctx); err != nil {
		return err
	}
	return d.env.FS.RemoveMatching(d.fullDstPath, d.exclude)
}
