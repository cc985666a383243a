// Package manager runs a snapshot plan: every task goes through its driver
// on a bounded pool, unreachable hosts are marked offline, and the run is
// summarized in a manifest.
package manager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/andrej220/shotgun/pkg/driver"
	"github.com/andrej220/shotgun/pkg/executor"
	"github.com/andrej220/shotgun/pkg/lg"
	"github.com/andrej220/shotgun/pkg/persistence"
	"github.com/andrej220/shotgun/pkg/plan"
	dm "github.com/andrej220/shotgun/pkg/shared-models"
	"github.com/andrej220/shotgun/pkg/spec"
	"github.com/andrej220/shotgun/pkg/workerpool"
)

const (
	manifestFile = "manifest.json"
	logDir       = "shotgun"
)

// Publisher receives one event per task outcome.
type Publisher interface {
	Publish(ctx context.Context, key []byte, v any) error
}

type Option func(*Manager)

func WithWorkers(n int) Option { return func(m *Manager) { m.workers = n } }

// WithLogFile names this process's log file, copied into the snapshot.
func WithLogFile(path string) Option { return func(m *Manager) { m.logFile = path } }

// WithLastDump is used when the snapshot spec names no lastdump file.
func WithLastDump(path string) Option { return func(m *Manager) { m.lastDump = path } }

func WithPublisher(p Publisher) Option { return func(m *Manager) { m.publisher = p } }

func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

type Manager struct {
	plan      *plan.Plan
	env       driver.Env
	fs        executor.Filesystem
	logger    lg.Logger
	workers   int
	logFile   string
	lastDump  string
	publisher Publisher
	now       func() time.Time
	uid       uuid.UUID

	mu     sync.Mutex
	events []dm.TaskEvent
}

func New(p *plan.Plan, env driver.Env, opts ...Option) *Manager {
	m := &Manager{
		plan:    p,
		env:     env,
		fs:      env.FS,
		logger:  env.Logger,
		workers: workerpool.TotalMaxWorkers,
		now:     time.Now,
		uid:     uuid.New(),
	}
	if m.fs == nil {
		m.fs = executor.LocalFS{}
	}
	if m.logger == nil {
		m.logger = lg.Discard
	}
	for _, o := range opts {
		o(m)
	}
	m.logger = m.logger.With(lg.String("exuid", m.uid.String()))
	return m
}

func (m *Manager) ExecutionUID() uuid.UUID { return m.uid }

// Events returns the task outcomes recorded so far.
func (m *Manager) Events() []dm.TaskEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]dm.TaskEvent(nil), m.events...)
}

// Snapshot collects every task into a fresh target directory and returns
// its path. Task failures are recorded in the manifest, not returned.
func (m *Manager) Snapshot(ctx context.Context) (string, error) {
	target := m.plan.Target()
	started := m.now()
	m.logger.Info("snapshot started", lg.String("target", target), lg.Int("workers", m.workers))

	if err := os.RemoveAll(target); err != nil {
		return target, fmt.Errorf("clear target %s: %w", target, err)
	}
	if err := m.fs.MkdirAll(target); err != nil {
		return target, fmt.Errorf("create target %s: %w", target, err)
	}

	pool := workerpool.NewPool[plan.Task](lg.Attach(ctx, m.logger), m.workers)
	for task := range m.plan.Tasks(ctx) {
		pool.Submit(workerpool.Job[plan.Task]{Payload: task, Fn: m.runTask})
	}
	if err := pool.Wait(); err != nil {
		m.logger.Debug("some tasks failed", lg.Err(err))
	}

	for _, task := range m.plan.TryAgain() {
		if err := m.writeOffline(ctx, task); err != nil {
			m.logger.Error("offline marker", lg.Any("host", spec.HostFields(task.Host)), lg.Err(err))
		}
	}

	m.copyLogFile(target)

	manifest := dm.Manifest{
		ExecutionUID: m.uid,
		Target:       target,
		Started:      started,
		Finished:     m.now(),
		OfflineHosts: m.plan.OfflineHosts(),
		Tasks:        m.Events(),
	}
	if err := persistence.WriteJSON(manifest, filepath.Join(target, manifestFile)); err != nil {
		return target, err
	}

	lastDump := m.plan.LastDump()
	if lastDump == "" {
		lastDump = m.lastDump
	}
	if lastDump != "" {
		if err := persistence.WriteText(lastDump, target); err != nil {
			return target, fmt.Errorf("lastdump %s: %w", lastDump, err)
		}
	}

	m.logger.Info("snapshot finished",
		lg.String("target", target),
		lg.Strings("offline", manifest.OfflineHosts),
		lg.Duration("took", manifest.Finished.Sub(started)))
	return target, ctx.Err()
}

func (m *Manager) runTask(ctx context.Context, task plan.Task) error {
	if m.plan.IsOffline(task) {
		err := m.writeOffline(ctx, task)
		m.record(ctx, task, dm.StatusOffline, err)
		return err
	}

	d, err := driver.New(task, m.plan, m.env)
	if err != nil {
		m.logger.Error("cannot build driver", lg.String("role", task.Role), lg.String("type", task.Type()), lg.Err(err))
		m.record(ctx, task, dm.StatusFailed, err)
		return err
	}

	err = d.Snapshot(ctx)
	switch {
	case err == nil:
		m.record(ctx, task, dm.StatusOK, nil)
	case executor.IsNetworkError(err):
		m.logger.Warn("host unreachable", lg.String("host", d.Host()), lg.Err(err))
		m.plan.OnNetworkError(task)
		m.record(ctx, task, dm.StatusOffline, err)
	default:
		m.logger.Error("task failed", lg.String("host", d.Host()), lg.String("type", task.Type()), lg.Err(err))
		m.record(ctx, task, dm.StatusFailed, err)
	}
	return err
}

func (m *Manager) writeOffline(ctx context.Context, task plan.Task) error {
	o, err := driver.NewOffline(task, m.plan, m.env)
	if err != nil {
		return err
	}
	return o.Snapshot(ctx)
}

func (m *Manager) copyLogFile(target string) {
	if m.logFile == "" {
		return
	}
	if _, err := os.Stat(m.logFile); errors.Is(err, os.ErrNotExist) {
		return
	}
	dst := filepath.Join(target, logDir)
	if err := m.fs.MkdirAll(dst); err != nil {
		m.logger.Warn("copy log file", lg.Err(err))
		return
	}
	if err := m.fs.Copy(m.logFile, dst); err != nil {
		m.logger.Warn("copy log file", lg.String("file", m.logFile), lg.Err(err))
	}
}

func (m *Manager) record(ctx context.Context, task plan.Task, status string, err error) {
	ev := dm.TaskEvent{
		ExecutionUID: m.uid,
		Role:         task.Role,
		Host:         hostLabel(task),
		Type:         task.Type(),
		Status:       status,
		Time:         m.now(),
	}
	if err != nil {
		ev.Error = err.Error()
	}

	m.mu.Lock()
	m.events = append(m.events, ev)
	m.mu.Unlock()

	if m.publisher == nil {
		return
	}
	if err := m.publisher.Publish(ctx, m.uid[:], ev); err != nil {
		m.logger.Warn("publish task event", lg.Err(err))
	}
}

func hostLabel(task plan.Task) string {
	switch h := task.Host.(type) {
	case spec.NetworkHost:
		if h.Hostname != "" {
			return h.Hostname
		}
		return h.Address
	case spec.OpaqueHost:
		return h.Value
	}
	return ""
}
