package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"

	cp "github.com/otiai10/copy"
)

// LocalRunner executes commands through sh -c on this machine.
type LocalRunner struct {
	Shell string // defaults to /bin/sh
}

func (r LocalRunner) Execute(ctx context.Context, command string) (int, string, string, error) {
	shell := r.Shell
	if shell == "" {
		shell = "/bin/sh"
	}
	cmd := exec.CommandContext(ctx, shell, "-c", command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return -1, stdout.String(), stderr.String(), ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), stdout.String(), stderr.String(), nil
		}
		return -1, stdout.String(), stderr.String(), fmt.Errorf("execute %q: %w", command, err)
	}
	return 0, stdout.String(), stderr.String(), nil
}

// LocalFS implements Filesystem on the local disk.
type LocalFS struct{}

func (LocalFS) MkdirAll(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// Copy behaves like cp -r src dstDir: the copy keeps the base name of src
// and symlinks are copied as links.
func (LocalFS) Copy(src, dstDir string) error {
	sources := []string{filepath.Clean(src)}
	if hasMeta(src) {
		matches, err := filepath.Glob(src)
		if err != nil {
			return fmt.Errorf("glob %s: %w", src, err)
		}
		if len(matches) == 0 {
			return fmt.Errorf("%s: %w", src, os.ErrNotExist)
		}
		sources = matches
	}

	opts := cp.Options{
		OnSymlink: func(string) cp.SymlinkAction { return cp.Shallow },
	}
	var errs []error
	for _, s := range sources {
		if _, err := os.Lstat(s); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := cp.Copy(s, filepath.Join(dstDir, filepath.Base(s)), opts); err != nil {
			errs = append(errs, fmt.Errorf("copy %s: %w", s, err))
		}
	}
	return errors.Join(errs...)
}

// RemoveMatching matches patterns against base names, like find -name.
func (LocalFS) RemoveMatching(root string, patterns []string) error {
	if len(patterns) == 0 {
		return nil
	}
	for _, p := range patterns {
		if _, err := filepath.Match(p, ""); err != nil {
			return fmt.Errorf("exclude pattern %q: %w", p, err)
		}
	}
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if p == root {
			return nil
		}
		for _, pattern := range patterns {
			if ok, _ := filepath.Match(pattern, d.Name()); ok {
				if err := os.RemoveAll(p); err != nil {
					return err
				}
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
