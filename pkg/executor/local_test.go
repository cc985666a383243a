package executor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalRunnerExecute(t *testing.T) {
	code, stdout, stderr, err := LocalRunner{}.Execute(context.Background(), "echo out; echo err >&2; exit 3")
	require.NoError(t, err)
	assert.Equal(t, 3, code)
	assert.Equal(t, "out\n", stdout)
	assert.Equal(t, "err\n", stderr)

	code, stdout, _, err = LocalRunner{}.Execute(context.Background(), "printf ok")
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "ok", stdout)
}

func TestLocalRunnerCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, _, err := LocalRunner{}.Execute(ctx, "sleep 5")
	assert.ErrorIs(t, err, context.Canceled)
}

func makeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		p := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
}

func TestLocalFSCopy(t *testing.T) {
	src := t.TempDir()
	makeTree(t, src, map[string]string{
		"etc/nailgun/settings.yaml": "a: 1",
		"etc/nailgun/sub/x.conf":    "x",
	})
	dst := filepath.Join(t.TempDir(), "target", "host", "etc")
	fs := LocalFS{}
	require.NoError(t, fs.MkdirAll(dst))
	require.NoError(t, fs.MkdirAll(dst), "MkdirAll is idempotent")

	require.NoError(t, fs.Copy(filepath.Join(src, "etc", "nailgun")+"/", dst))
	data, err := os.ReadFile(filepath.Join(dst, "nailgun", "sub", "x.conf"))
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))

	require.NoError(t, fs.Copy(filepath.Join(src, "etc", "nailgun", "settings.yaml"), dst))
	assert.FileExists(t, filepath.Join(dst, "settings.yaml"))

	assert.Error(t, fs.Copy(filepath.Join(src, "missing"), dst))
}

func TestLocalFSCopyGlob(t *testing.T) {
	src := t.TempDir()
	makeTree(t, src, map[string]string{"a.log": "a", "b.log": "b", "c.txt": "c"})
	dst := t.TempDir()
	require.NoError(t, LocalFS{}.Copy(filepath.Join(src, "*.log"), dst))
	assert.FileExists(t, filepath.Join(dst, "a.log"))
	assert.FileExists(t, filepath.Join(dst, "b.log"))
	assert.NoFileExists(t, filepath.Join(dst, "c.txt"))
}

func TestLocalFSRemoveMatching(t *testing.T) {
	root := t.TempDir()
	makeTree(t, root, map[string]string{
		"keep.log":           "k",
		"unit_test":          "t",
		"deep/other_test":    "t",
		"deep/keep.conf":     "k",
		"mytest/inside.file": "t",
	})
	require.NoError(t, LocalFS{}.RemoveMatching(root, []string{"*test"}))

	assert.FileExists(t, filepath.Join(root, "keep.log"))
	assert.FileExists(t, filepath.Join(root, "deep", "keep.conf"))
	assert.NoFileExists(t, filepath.Join(root, "unit_test"))
	assert.NoFileExists(t, filepath.Join(root, "deep", "other_test"))
	assert.NoDirExists(t, filepath.Join(root, "mytest"))

	assert.NoError(t, LocalFS{}.RemoveMatching(filepath.Join(root, "absent"), []string{"*"}))
	assert.Error(t, LocalFS{}.RemoveMatching(root, []string{"[bad"}))
}
