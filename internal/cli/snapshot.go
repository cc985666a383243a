package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/andrej220/shotgun/internal/manager"
	"github.com/andrej220/shotgun/pkg/kafkautil"
	"github.com/andrej220/shotgun/pkg/lg"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func NewSnapshotCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Collect every object of the snapshot spec into a fresh target directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.setup()
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, cancel := signalContext()
			defer cancel()

			mopts := []manager.Option{
				manager.WithWorkers(rt.settings.Workers),
				manager.WithLogFile(rt.settings.LogFile),
				manager.WithLastDump(rt.settings.LastDump),
			}
			if len(rt.settings.KafkaBrokers) > 0 {
				producer := kafkautil.NewProducer(kafkautil.Config{
					Brokers: rt.settings.KafkaBrokers,
					Topic:   rt.settings.KafkaTopic,
				}, rt.logger)
				rt.closers = append(rt.closers, func() { _ = producer.Close() })
				mopts = append(mopts, manager.WithPublisher(producer))
			}

			m := manager.New(rt.plan, rt.env, mopts...)
			target, err := m.Snapshot(lg.Attach(ctx, rt.logger))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), target)
			return nil
		},
	}
}

func NewReportCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Run the command objects of the snapshot spec and print their output as a table",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.setup()
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, cancel := signalContext()
			defer cancel()
			return manager.New(rt.plan, rt.env).Report(lg.Attach(ctx, rt.logger), cmd.OutOrStdout())
		},
	}
}
