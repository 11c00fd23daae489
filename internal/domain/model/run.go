package model

import "time"

type RunTrigger string

const (
	RunTriggerScheduled RunTrigger = "scheduled"
	RunTriggerManual    RunTrigger = "manual"
)

// RunRequest mirrors the job body {manual, email}. EmailOverride, when set,
// replaces recipient resolution for every message of the run.
type RunRequest struct {
	Trigger       RunTrigger
	EmailOverride string
}

func (r RunRequest) Manual() bool { return r.Trigger == RunTriggerManual }

// RunReport summarises one billing run.
type RunReport struct {
	RunID                  string    `json:"runId"`
	Manual                 bool      `json:"manual"`
	StartedAt              time.Time `json:"startedAt"`
	FinishedAt             time.Time `json:"finishedAt"`
	TrialsExpired          int       `json:"trialsExpired"`
	PeriodsLapsed          int       `json:"periodsLapsed"`
	SubscriptionsSuspended int       `json:"subscriptionsSuspended"`
	NotificationsSent      int       `json:"notificationsSent"`
	NotificationsSkipped   int       `json:"notificationsSkipped"`
	Errors                 []string  `json:"errors"`
}
