// Package plan expands a snapshot spec into a flat sequence of
// tasks and keeps track of the hosts that went offline during a run.
package plan

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/andrej220/shotgun/pkg/settings"
	"github.com/andrej220/shotgun/pkg/spec"
)

const timestampLayout = "2006-01-02_15-04-05"

// Timestamp suffixes label with now formatted as YYYY-MM-DD_HH-MM-SS.
func Timestamp(label string, now time.Time) string {
	return label + "-" + now.Format(timestampLayout)
}

type Option func(*Plan)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Plan) { p.now = now }
}

// WithSettings sets the defaults used when the snapshot spec omits target,
// timestamp or timeout.
func WithSettings(s settings.Settings) Option {
	return func(p *Plan) {
		p.defaultTarget = s.Target
		p.defaultTimestamp = s.Timestamp
		p.defaultTimeout = s.DefaultTimeout
	}
}

func WithDefaultTimeout(d time.Duration) Option {
	return func(p *Plan) { p.defaultTimeout = d }
}

type Plan struct {
	spec *spec.Spec
	now  func() time.Time

	defaultTarget    string
	defaultTimestamp bool
	defaultTimeout   time.Duration

	targetOnce sync.Once
	target     string

	mu       sync.Mutex
	tryAgain []Task
	offline  map[string]struct{}
}

func New(s *spec.Spec, opts ...Option) *Plan {
	if s == nil {
		s = &spec.Spec{}
	}
	def := settings.Default()
	p := &Plan{
		spec:             s,
		now:              time.Now,
		defaultTarget:    def.Target,
		defaultTimestamp: def.Timestamp,
		defaultTimeout:   settings.DefaultTimeout,
		offline:          make(map[string]struct{}),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Timestamp suffixes label with the plan clock's current local time.
func (p *Plan) Timestamp(label string) string {
	return Timestamp(label, p.now())
}

// Target is computed once; the timestamp does not move afterwards.
func (p *Plan) Target() string {
	p.targetOnce.Do(func() {
		target := p.spec.Target
		if target == "" {
			target = p.defaultTarget
		}
		stamp := p.defaultTimestamp
		if p.spec.Timestamp != nil {
			stamp = *p.spec.Timestamp
		}
		if stamp {
			target = p.Timestamp(target)
		}
		p.target = target
	})
	return p.target
}

func (p *Plan) Timeout() time.Duration {
	if p.spec.Timeout != nil {
		return *p.spec.Timeout
	}
	return p.defaultTimeout
}

// LastDump is the file that receives the target path of the finished run.
func (p *Plan) LastDump() string {
	return p.spec.LastDump
}

// Tasks streams every task once, role by role, host-major, object-minor.
// The channel is single pass: each call starts a new producer, and a drained
// channel cannot be replayed. Cancelling ctx stops the producer.
func (p *Plan) Tasks(ctx context.Context) <-chan Task {
	ch := make(chan Task)
	go func() {
		defer close(ch)
		for _, role := range p.spec.Roles {
			hosts := role.Hosts
			if !role.HasHosts {
				hosts = []spec.Host{spec.NetworkHost{}}
			}
			for _, h := range hosts {
				for _, obj := range role.Objects {
					if ctx.Err() != nil {
						return
					}
					select {
					case ch <- newTask(role.Name, h, obj):
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return ch
}

// NetworkAddress returns the host address, else its hostname.
func (p *Plan) NetworkAddress(t Task) (string, bool) {
	return networkAddress(t)
}

// OnNetworkError queues t for another attempt and marks its host offline.
func (p *Plan) OnNetworkError(t Task) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tryAgain = append(p.tryAgain, t)
	if addr, ok := networkAddress(t); ok {
		p.offline[addr] = struct{}{}
	}
}

func (p *Plan) TryAgain() []Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.tryAgain)
}

func (p *Plan) OfflineHosts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	hosts := make([]string, 0, len(p.offline))
	for h := range p.offline {
		hosts = append(hosts, h)
	}
	slices.Sort(hosts)
	return hosts
}

// IsOffline reports whether the task's host already failed this run.
func (p *Plan) IsOffline(t Task) bool {
	addr, ok := networkAddress(t)
	if !ok {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, found := p.offline[addr]
	return found
}
