package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/andrej220/shotgun/pkg/kafkautil"
	"github.com/andrej220/shotgun/pkg/lg"
	dm "github.com/andrej220/shotgun/pkg/shared-models"
)

// NewWatchCmd follows the task events published by snapshot runs.
func NewWatchCmd(opts *options) *cobra.Command {
	var group string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print task outcome events as snapshot runs publish them",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.loadSettings()
			if err != nil {
				return err
			}
			if len(s.KafkaBrokers) == 0 {
				return errors.New("no Kafka brokers configured (SHOTGUN_KAFKA_BROKERS)")
			}
			logger := opts.newLogger(s)
			defer logger.Sync()

			cons := kafkautil.NewConsumer[dm.TaskEvent](kafkautil.Config{
				Brokers: s.KafkaBrokers,
				Topic:   s.KafkaTopic,
				GroupID: group,
			})
			defer cons.Close()

			ctx, cancel := signalContext()
			defer cancel()
			for {
				ev, err := cons.Read(ctx)
				if ctx.Err() != nil {
					return nil
				}
				if err != nil {
					logger.Error("read event", lg.Err(err))
					time.Sleep(time.Second)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s/%s %s %s\n",
					ev.Time.Format(time.RFC3339), ev.ExecutionUID, ev.Role, ev.Host, ev.Type, ev.Status)
			}
		},
	}
	cmd.Flags().StringVar(&group, "group", "shotgun-watch", "Kafka consumer group")
	return cmd
}
