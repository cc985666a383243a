package manager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"text/tabwriter"

	"github.com/andrej220/shotgun/pkg/driver"
	"github.com/andrej220/shotgun/pkg/executor"
	"github.com/andrej220/shotgun/pkg/lg"
)

type reporter interface {
	Report(ctx context.Context) iter.Seq2[driver.ReportRow, error]
}

// Report runs every command task and prints its rows as a table. Tasks
// that cannot report are skipped; their errors are returned joined.
func (m *Manager) Report(ctx context.Context, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "HOST\tCOMMAND\tOUTPUT")

	var errs []error
	for task := range m.plan.Tasks(ctx) {
		if t := task.Type(); t != "command" && t != "docker_command" {
			continue
		}
		if m.plan.IsOffline(task) {
			continue
		}
		d, err := driver.New(task, m.plan, m.env)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		r, ok := d.(reporter)
		if !ok {
			continue
		}
		for row, err := range r.Report(ctx) {
			if err != nil {
				if executor.IsNetworkError(err) {
					m.plan.OnNetworkError(task)
				}
				m.logger.Error("report failed", lg.String("host", d.Host()), lg.Err(err))
				errs = append(errs, err)
				break
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", row.Host, row.Command, row.Output)
		}
	}
	if err := tw.Flush(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
