package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/andrej220/shotgun/pkg/config"
	"github.com/andrej220/shotgun/pkg/config/configstore"
	"github.com/andrej220/shotgun/pkg/config/mongostore"
	"github.com/andrej220/shotgun/pkg/driver"
	"github.com/andrej220/shotgun/pkg/executor"
	"github.com/andrej220/shotgun/pkg/lg"
	"github.com/andrej220/shotgun/pkg/plan"
	"github.com/andrej220/shotgun/pkg/settings"
)

const serviceName = "shotgun"

type options struct {
	config    string
	mongo     config.MongoConfig
	envFiles  []string
	workers   int
	debug     bool
	logFormat string
}

func NewRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           serviceName,
		Short:         "Collect diagnostic snapshots from a fleet of hosts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	f := cmd.PersistentFlags()
	f.StringVarP(&opts.config, "config", "c", "", "Snapshot spec file (YAML)")
	f.StringVar(&opts.mongo.URI, "mongo-uri", "", "Read the snapshot spec from MongoDB at this URI instead of a file")
	f.StringVar(&opts.mongo.DBName, "mongo-db", "shotgun", "MongoDB database holding the snapshot spec")
	f.StringVar(&opts.mongo.CollName, "mongo-collection", "specs", "MongoDB collection holding the snapshot spec")
	f.StringVar(&opts.mongo.ID, "mongo-id", "", "Spec document ID")
	f.StringArrayVar(&opts.envFiles, "env-file", []string{".env"}, "Settings file with SHOTGUN_* variables (repeatable)")
	f.IntVar(&opts.workers, "workers", 0, "Concurrent tasks (default from settings)")
	f.BoolVar(&opts.debug, "debug", false, "Debug logging")
	f.StringVar(&opts.logFormat, "log-format", "console", "Log encoding (json|console)")

	cmd.AddCommand(NewSnapshotCmd(opts))
	cmd.AddCommand(NewReportCmd(opts))
	cmd.AddCommand(NewWatchCmd(opts))
	return cmd
}

type runtime struct {
	settings settings.Settings
	logger   lg.Logger
	plan     *plan.Plan
	env      driver.Env
	closers  []func()
}

func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	_ = r.logger.Sync()
}

func (o *options) loadSettings() (settings.Settings, error) {
	s, err := settings.Load(o.envFiles...)
	if err != nil {
		return s, err
	}
	if o.workers > 0 {
		s.Workers = o.workers
	}
	return s, s.Validate()
}

func (o *options) newLogger(s settings.Settings) lg.Logger {
	return lg.New(&lg.Config{
		ServiceName: serviceName,
		Debug:       o.debug,
		Format:      o.logFormat,
		File:        s.LogFile,
	})
}

func (o *options) openStore() (configstore.ConfigStore, func(), error) {
	if o.mongo.URI != "" {
		store, err := config.NewStore(config.MongoStore, &o.mongo)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			if ms, ok := store.(*mongostore.MongoStore); ok {
				_ = ms.Close(context.Background())
			}
		}, nil
	}
	if o.config == "" {
		return nil, nil, errors.New("either --config or --mongo-uri is required")
	}
	store, err := config.NewStore(config.FileStore, &config.FileConfig{Path: o.config})
	if err != nil {
		return nil, nil, err
	}
	return store, func() {}, nil
}

func (o *options) setup() (*runtime, error) {
	s, err := o.loadSettings()
	if err != nil {
		return nil, err
	}
	logger := o.newLogger(s)

	store, closeStore, err := o.openStore()
	if err != nil {
		return nil, err
	}
	defer closeStore()
	sp, err := config.LoadSpec(store)
	if err != nil {
		return nil, fmt.Errorf("load spec: %w", err)
	}

	resilience := executor.DefaultResilienceConfig()
	resilience.ConnectRate = s.ConnectRate
	return &runtime{
		settings: s,
		logger:   logger,
		plan:     plan.New(sp, plan.WithSettings(s)),
		env: driver.Env{
			Remote: executor.NewSSHOpener(s.SSHUser, resilience, logger),
			Logger: logger,
		},
	}, nil
}
