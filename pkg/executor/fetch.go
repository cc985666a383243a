package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/sftp"
)

// remoteTree is the read side of a remote filesystem.
type remoteTree interface {
	Lstat(p string) (os.FileInfo, error)
	ReadDir(p string) ([]os.FileInfo, error)
	ReadLink(p string) (string, error)
	Glob(pattern string) ([]string, error)
	Open(p string) (io.ReadCloser, error)
}

type sftpTree struct{ c *sftp.Client }

func (t sftpTree) Lstat(p string) (os.FileInfo, error)     { return t.c.Lstat(p) }
func (t sftpTree) ReadDir(p string) ([]os.FileInfo, error) { return t.c.ReadDir(p) }
func (t sftpTree) ReadLink(p string) (string, error)       { return t.c.ReadLink(p) }
func (t sftpTree) Glob(pattern string) ([]string, error)   { return t.c.Glob(pattern) }
func (t sftpTree) Open(p string) (io.ReadCloser, error)    { return t.c.Open(p) }

func hasMeta(p string) bool {
	return strings.ContainsAny(p, `*?[`)
}

// fetch copies remotePath into localDir, keeping its base name. A directory
// is copied recursively and a glob fetches every match. Unreadable entries
// inside a directory do not stop the walk; their errors are joined.
func fetch(ctx context.Context, tree remoteTree, remotePath, localDir string) error {
	sources := []string{path.Clean(remotePath)}
	if hasMeta(remotePath) {
		matches, err := tree.Glob(remotePath)
		if err != nil {
			return fmt.Errorf("glob %s: %w", remotePath, err)
		}
		if len(matches) == 0 {
			return fmt.Errorf("%s: %w", remotePath, os.ErrNotExist)
		}
		sources = matches
	}

	var errs []error
	for _, src := range sources {
		info, err := tree.Lstat(src)
		if err != nil {
			errs = append(errs, fmt.Errorf("stat %s: %w", src, err))
			continue
		}
		if err := fetchEntry(ctx, tree, src, filepath.Join(localDir, path.Base(src)), info); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func fetchEntry(ctx context.Context, tree remoteTree, src, dst string, info os.FileInfo) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	mode := info.Mode()
	switch {
	case mode.IsDir():
		if err := os.MkdirAll(dst, mode.Perm()|0o700); err != nil {
			return err
		}
		entries, err := tree.ReadDir(src)
		if err != nil {
			return fmt.Errorf("read dir %s: %w", src, err)
		}
		var errs []error
		for _, e := range entries {
			if err := fetchEntry(ctx, tree, path.Join(src, e.Name()), filepath.Join(dst, e.Name()), e); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	case mode&os.ModeSymlink != 0:
		link, err := tree.ReadLink(src)
		if err != nil {
			return fmt.Errorf("read link %s: %w", src, err)
		}
		_ = os.Remove(dst)
		return os.Symlink(link, dst)
	case mode.IsRegular():
		return fetchFile(tree, src, dst, mode.Perm())
	default:
		// devices, sockets and pipes are not collected
		return nil
	}
}

func fetchFile(tree remoteTree, src, dst string, perm os.FileMode) error {
	in, err := tree.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm|0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}
