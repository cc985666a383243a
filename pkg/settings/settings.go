// Package settings holds process-wide defaults, overridable from the
// environment and optional .env files.
package settings

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const envPrefix = "SHOTGUN_"

// DefaultTimeout is used when neither the snapshot spec nor a task declares one.
var DefaultTimeout = 2 * time.Minute

type Settings struct {
	DefaultTimeout time.Duration `validate:"gt=0"`
	Target         string        `validate:"required"`
	Timestamp      bool
	LastDump       string
	LogFile        string
	Workers        int     `validate:"min=1,max=256"`
	SSHUser        string  `validate:"required"`
	ConnectRate    float64 `validate:"gte=0"` // new SSH connections per second, 0 = unlimited
	KafkaBrokers   []string
	KafkaTopic     string `validate:"required_with=KafkaBrokers"`
}

var validate = validator.New()

func Default() Settings {
	return Settings{
		DefaultTimeout: DefaultTimeout,
		Target:         "/tmp/shotgun/snapshot",
		Timestamp:      true,
		LastDump:       "",
		LogFile:        "",
		Workers:        10,
		SSHUser:        "root",
		ConnectRate:    20,
		KafkaTopic:     "shotgun-tasks",
	}
}

// Load applies .env files (missing ones are ignored) and SHOTGUN_* variables
// on top of Default.
func Load(envFiles ...string) (Settings, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return Settings{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	s := Default()
	if err := s.applyEnv(os.LookupEnv); err != nil {
		return Settings{}, err
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s *Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

func (s *Settings) applyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(envPrefix + key)
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}

	if v, ok := get("DEFAULT_TIMEOUT"); ok {
		d, err := parseSeconds(v)
		if err != nil {
			return fmt.Errorf("%sDEFAULT_TIMEOUT: %w", envPrefix, err)
		}
		s.DefaultTimeout = d
	}
	if v, ok := get("TARGET"); ok {
		s.Target = v
	}
	if v, ok := get("TIMESTAMP"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sTIMESTAMP: %w", envPrefix, err)
		}
		s.Timestamp = b
	}
	if v, ok := get("LASTDUMP"); ok {
		s.LastDump = v
	}
	if v, ok := get("LOG_FILE"); ok {
		s.LogFile = v
	}
	if v, ok := get("WORKERS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sWORKERS: %w", envPrefix, err)
		}
		s.Workers = n
	}
	if v, ok := get("SSH_USER"); ok {
		s.SSHUser = v
	}
	if v, ok := get("CONNECT_RATE"); ok {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sCONNECT_RATE: %w", envPrefix, err)
		}
		s.ConnectRate = r
	}
	if v, ok := get("KAFKA_BROKERS"); ok {
		s.KafkaBrokers = strings.Split(v, ",")
	}
	if v, ok := get("KAFKA_TOPIC"); ok {
		s.KafkaTopic = v
	}
	return nil
}

// parseSeconds accepts a bare number of seconds or a Go duration string.
func parseSeconds(v string) (time.Duration, error) {
	if n, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(n * float64(time.Second)), nil
	}
	return time.ParseDuration(v)
}
