package driver

import (
	"bytes"
	"strconv"
	"sync"
)

// CommandOutcome is the normalized result of one command. ReturnCode is nil
// when the command timed out and only partial output was captured.
type CommandOutcome struct {
	Stdout     string
	Stderr     string
	Output     string // same as Stdout
	ReturnCode *int
}

func (o CommandOutcome) TimedOut() bool { return o.ReturnCode == nil }

func (o CommandOutcome) code() string {
	if o.ReturnCode == nil {
		return "none"
	}
	return strconv.Itoa(*o.ReturnCode)
}

// syncBuffer is written by the session while the driver may already be
// reading it after a timeout.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
