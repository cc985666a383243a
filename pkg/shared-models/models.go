package datamodels

import (
	"time"

	"github.com/google/uuid"
)

// Task outcome statuses.
const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusOffline = "offline"
)

// TaskEvent reports the outcome of one task of a snapshot run.
type TaskEvent struct {
	ExecutionUID uuid.UUID `json:"exuid"`
	Role         string    `json:"role"`
	Host         string    `json:"host"`
	Type         string    `json:"type"`
	Status       string    `json:"status"`
	Error        string    `json:"error,omitempty"`
	Time         time.Time `json:"time"`
}

// Manifest summarizes a finished snapshot run.
type Manifest struct {
	ExecutionUID uuid.UUID   `json:"exuid"`
	Target       string      `json:"target"`
	Started      time.Time   `json:"started"`
	Finished     time.Time   `json:"finished"`
	OfflineHosts []string    `json:"offline_hosts"`
	Tasks        []TaskEvent `json:"tasks"`
}
