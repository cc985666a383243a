package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

const loginShell = "/bin/bash -l -c"

type sshSession struct {
	client     *ssh.Client
	addr       string
	newBackOff func() backoff.BackOff
}

// newSession opens a channel on the established connection, retrying
// transient channel failures.
func (s *sshSession) newSession(ctx context.Context) (*ssh.Session, error) {
	var sess *ssh.Session
	operation := func() error {
		var err error
		sess, err = s.client.NewSession()
		return err
	}
	b := backoff.WithContext(s.newBackOff(), ctx)
	if err := backoff.Retry(operation, b); err != nil {
		return nil, &NetworkError{Addr: s.addr, Op: "new session", Err: err}
	}
	return sess, nil
}

func (s *sshSession) Run(ctx context.Context, command string, opts RunOptions, stdout, stderr io.Writer) (int, error) {
	sess, err := s.newSession(ctx)
	if err != nil {
		return -1, err
	}
	defer sess.Close()

	sess.Stdout = stdout
	sess.Stderr = stderr
	if opts.UseShell {
		command = ShellWrap(command)
	}
	if err := sess.Start(command); err != nil {
		return -1, &NetworkError{Addr: s.addr, Op: "start", Err: err}
	}

	done := make(chan error, 1)
	go func() { done <- sess.Wait() }()

	var timeout <-chan time.Time
	if opts.Timeout > 0 {
		timer := time.NewTimer(opts.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case err := <-done:
		return s.exitStatus(command, err, opts.BestEffort)
	case <-timeout:
		_ = sess.Signal(ssh.SIGKILL)
		return -1, ErrCommandTimeout
	case <-ctx.Done():
		return -1, ctx.Err()
	}
}

func (s *sshSession) exitStatus(command string, err error, bestEffort bool) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		if bestEffort {
			return exitErr.ExitStatus(), nil
		}
		return exitErr.ExitStatus(), fmt.Errorf("command %q on %s: %w", command, s.addr, err)
	}
	// connection dropped or the remote end never reported a status
	return -1, &NetworkError{Addr: s.addr, Op: "wait", Err: err}
}

func (s *sshSession) Fetch(ctx context.Context, remotePath, localDir string) error {
	client, err := sftp.NewClient(s.client)
	if err != nil {
		return &NetworkError{Addr: s.addr, Op: "sftp", Err: err}
	}
	defer client.Close()
	return fetch(ctx, sftpTree{client}, remotePath, localDir)
}

func (s *sshSession) Close() error {
	return s.client.Close()
}

// ShellWrap runs command through a login shell, the same way an interactive
// operator would see it.
func ShellWrap(command string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, `$`, `\$`, "`", "\\`")
	return fmt.Sprintf(`%s "%s"`, loginShell, r.Replace(command))
}
