package driver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/andrej220/shotgun/pkg/plan"
)

const offlineMarker = "OFFLINE_NODE.txt"

// Offline records that a host could not be reached.
type Offline struct {
	*Base
	targetPath string
}

func NewOffline(task plan.Task, conf Conf, env Env) (*Offline, error) {
	base, err := newBase(task, conf, env)
	if err != nil {
		return nil, err
	}
	return &Offline{Base: base, targetPath: base.hostPath(offlineMarker)}, nil
}

func (o *Offline) TargetPath() string { return o.targetPath }

func (o *Offline) Snapshot(context.Context) error {
	if err := o.env.FS.MkdirAll(filepath.Dir(o.targetPath)); err != nil {
		return err
	}
	msg := fmt.Sprintf("Host %s was offline/unreachable during logs obtaining.\n", o.host)
	return os.WriteFile(o.targetPath, []byte(msg), 0o644)
}
