package executor

import (
	"context"
	"io"
	"time"
)

// Target describes where and how to open a remote session.
type Target struct {
	Address        string
	Port           int
	User           string
	KeyPath        string // optional private key; default keys and the agent are used otherwise
	ConnectTimeout time.Duration
	NoPrompt       bool // never fall back to interactive authentication
}

// RunOptions controls a single remote command.
type RunOptions struct {
	Timeout    time.Duration // zero means no command timeout
	BestEffort bool          // a non-zero exit status is not an error
	NoPrompt   bool
	UseShell   bool // run through a login shell
}

// Opener opens remote sessions. Implementations must be safe for
// concurrent use.
type Opener interface {
	Open(ctx context.Context, target Target) (Session, error)
}

// Session runs commands and transfers files on one remote host.
// Run streams output into stdout and stderr as it arrives and returns
// ErrCommandTimeout when opts.Timeout expires first.
type Session interface {
	Run(ctx context.Context, command string, opts RunOptions, stdout, stderr io.Writer) (int, error)
	Fetch(ctx context.Context, remotePath, localDir string) error
	Close() error
}

// Runner executes a command on the local machine.
type Runner interface {
	Execute(ctx context.Context, command string) (code int, stdout, stderr string, err error)
}

// Filesystem covers the local file operations drivers need.
type Filesystem interface {
	MkdirAll(dir string) error
	// Copy copies src (a file, a directory or a glob) into dstDir.
	Copy(src, dstDir string) error
	// RemoveMatching deletes every entry under root whose base name
	// matches one of the glob patterns.
	RemoveMatching(root string, patterns []string) error
}
