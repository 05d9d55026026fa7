// FilePath: internal/models/adminjob.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// JSON is a wrapper around map[string]interface{} for database storage.
type JSON map[string]interface{}

// Value implements the driver.Valuer interface.
func (j JSON) Value() (driver.Value, error) {
	if j == nil {
		return "{}", nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface.
func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = JSON{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	}
	return nil
}

// JobKind identifies the kind of admin job.
type JobKind string

const (
	JobLightNotify JobKind = "light_notify"
	JobBroadcast   JobKind = "broadcast"
)

// JobStatus is the lifecycle state of an AdminJob.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobDone      JobStatus = "done"
	JobFailed    JobStatus = "failed"
	JobCanceled  JobStatus = "canceled"
)

// AdminJob is a durable, leased unit of control-plane work.
type AdminJob struct {
	ID               string     `json:"id" db:"id" readxs:"admin" writexs:"-"`
	Kind             JobKind    `json:"kind" db:"kind"`
	Payload          JSON       `json:"payload" db:"payload" readxs:"admin" writexs:"-"`
	Status           JobStatus  `json:"status" db:"status"`
	CreatedBy        string     `json:"created_by,omitempty" db:"created_by"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	StartedAt        *time.Time `json:"started_at,omitempty" db:"started_at"`
	FinishedAt       *time.Time `json:"finished_at,omitempty" db:"finished_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
	Attempts         int        `json:"attempts" db:"attempts"`
	ProgressCurrent  int        `json:"progress_current" db:"progress_current"`
	ProgressTotal    int        `json:"progress_total" db:"progress_total"`
	LastError        string     `json:"last_error,omitempty" db:"last_error" readxs:"admin" writexs:"-"`
	LeaseOwner       string     `json:"-" db:"lease_owner"`
	LeaseExpiresAt   *time.Time `json:"-" db:"lease_expires_at"`
}

// Expired reports whether a running job's lease has lapsed as of now.
func (j *AdminJob) Expired(now time.Time) bool {
	return j.Status == JobRunning && j.LeaseExpiresAt != nil && j.LeaseExpiresAt.Before(now)
}

// JobFilters narrows an admin job listing query.
type JobFilters struct {
	Status JobStatus `schema:"status"`
	Kind   JobKind   `schema:"kind"`
	Since  string    `schema:"since"`
}
