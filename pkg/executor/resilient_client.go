package executor

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/time/rate"

	"github.com/andrej220/shotgun/pkg/lg"
)

const (
	defaultPort           = 22
	defaultConnectTimeout = 2 * time.Second
	sessionRetries        = 2
)

var defaultKeyFiles = []string{"id_ed25519", "id_ecdsa", "id_rsa"}

type ResilienceConfig struct {
	CircuitBreakerSettings gobreaker.Settings
	// NewBackOff builds the policy used when opening a session channel on an
	// already established connection.
	NewBackOff func() backoff.BackOff
	// ConnectRate limits new connections per second across all hosts.
	ConnectRate float64
}

func DefaultResilienceConfig() ResilienceConfig {
	return ResilienceConfig{
		CircuitBreakerSettings: gobreaker.Settings{
			MaxRequests: 1,
			Interval:    1 * time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		},
		NewBackOff: func() backoff.BackOff {
			return backoff.WithMaxRetries(&backoff.ExponentialBackOff{
				InitialInterval:     200 * time.Millisecond,
				MaxInterval:         2 * time.Second,
				Multiplier:          1.5,
				RandomizationFactor: 0.5,
				Stop:                backoff.Stop,
				Clock:               backoff.SystemClock,
			}, sessionRetries)
		},
	}
}

// SSHOpener dials hosts over SSH. Dialing is rate limited and guarded by a
// circuit breaker per address.
type SSHOpener struct {
	user    string
	conf    ResilienceConfig
	limiter *rate.Limiter
	logger  lg.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker

	agentOnce sync.Once
	agentAuth ssh.AuthMethod

	dial func(network, addr string, config *ssh.ClientConfig) (*ssh.Client, error)
}

func NewSSHOpener(user string, conf ResilienceConfig, logger lg.Logger) *SSHOpener {
	limit := rate.Inf
	if conf.ConnectRate > 0 {
		limit = rate.Limit(conf.ConnectRate)
	}
	if conf.NewBackOff == nil {
		conf.NewBackOff = DefaultResilienceConfig().NewBackOff
	}
	if logger == nil {
		logger = lg.Discard
	}
	return &SSHOpener{
		user:     user,
		conf:     conf,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		dial:     ssh.Dial,
	}
}

func (o *SSHOpener) breaker(addr string) *gobreaker.CircuitBreaker {
	o.mu.Lock()
	defer o.mu.Unlock()
	cb, ok := o.breakers[addr]
	if !ok {
		settings := o.conf.CircuitBreakerSettings
		settings.Name = "ssh-" + addr
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			o.logger.Warn("circuit breaker state changed",
				lg.String("breaker", name), lg.String("from", from.String()), lg.String("to", to.String()))
		}
		cb = gobreaker.NewCircuitBreaker(settings)
		o.breakers[addr] = cb
	}
	return cb
}

func (o *SSHOpener) Open(ctx context.Context, target Target) (Session, error) {
	port := target.Port
	if port == 0 {
		port = defaultPort
	}
	addr := net.JoinHostPort(target.Address, strconv.Itoa(port))

	config, err := o.clientConfig(target)
	if err != nil {
		return nil, &NetworkError{Addr: addr, Op: "auth", Err: err}
	}

	if err := o.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	res, err := o.breaker(addr).Execute(func() (any, error) {
		return o.dial("tcp", addr, config)
	})
	if err != nil {
		return nil, &NetworkError{Addr: addr, Op: "dial", Err: err}
	}
	o.logger.Debug("ssh connection established", lg.String("addr", addr))
	return &sshSession{client: res.(*ssh.Client), addr: addr, newBackOff: o.conf.NewBackOff}, nil
}

func (o *SSHOpener) clientConfig(target Target) (*ssh.ClientConfig, error) {
	user := target.User
	if user == "" {
		user = o.user
	}
	timeout := target.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	auth, err := authMethods(target.KeyPath, o.agent())
	if err != nil {
		return nil, err
	}
	// interactive methods are never offered
	return &ssh.ClientConfig{
		User:            user,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
		BannerCallback:  func(message string) error { return nil }, //ignore banner
	}, nil
}

// agent connects to the running ssh-agent once per opener.
func (o *SSHOpener) agent() ssh.AuthMethod {
	o.agentOnce.Do(func() {
		sock := os.Getenv("SSH_AUTH_SOCK")
		if sock == "" {
			return
		}
		conn, err := net.Dial("unix", sock)
		if err != nil {
			o.logger.Warn("ssh-agent unavailable", lg.Err(err))
			return
		}
		o.agentAuth = ssh.PublicKeysCallback(agent.NewClient(conn).Signers)
	})
	return o.agentAuth
}

// authMethods uses keyPath when set, otherwise the default keys in ~/.ssh
// plus the agent, when one is running.
func authMethods(keyPath string, agentAuth ssh.AuthMethod) ([]ssh.AuthMethod, error) {
	if keyPath != "" {
		signer, err := readSigner(keyPath)
		if err != nil {
			return nil, err
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}

	var signers []ssh.Signer
	if home, err := os.UserHomeDir(); err == nil {
		for _, name := range defaultKeyFiles {
			if s, err := readSigner(filepath.Join(home, ".ssh", name)); err == nil {
				signers = append(signers, s)
			}
		}
	}
	var methods []ssh.AuthMethod
	if len(signers) > 0 {
		methods = append(methods, ssh.PublicKeys(signers...))
	}
	if agentAuth != nil {
		methods = append(methods, agentAuth)
	}
	if len(methods) == 0 {
		return nil, fmt.Errorf("no usable ssh credentials")
	}
	return methods, nil
}

func readSigner(path string) (ssh.Signer, error) {
	key, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read private key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("unable to parse private key %s: %w", path, err)
	}
	return signer, nil
}
