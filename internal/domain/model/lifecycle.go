package model

import (
	"time"

	"github.com/samber/lo"
)

const Day = 24 * time.Hour

// ApprovalPeriod is the paid window granted by an approved payment, counted from approval.
const ApprovalPeriod = 30 * Day

func Days(n int) time.Duration { return time.Duration(n) * Day }

// DaysUntil returns the ceiling of (target - now) in whole days. Past targets yield zero or negative values.
func DaysUntil(target, now time.Time) int {
	d := target.Sub(now)
	days := int(d / Day)
	if d%Day > 0 {
		days++
	}
	return days
}

// Transition is the outcome of evaluating one subscription at a point in time.
type Transition struct {
	From SubscriptionStatus
	To   SubscriptionStatus
	At   time.Time
}

func (t Transition) Changed() bool { return t.From != t.To }

// SuspensionDate is the moment a past_due subscription becomes eligible for suspension.
func SuspensionDate(sub *Subscription, plan *Plan) (time.Time, bool) {
	if sub == nil || sub.PastDueSince == nil {
		return time.Time{}, false
	}
	return sub.PastDueSince.Add(Days(plan.GraceDays())), true
}

// EvaluateTransition decides the next status of sub at now. It never moves a subscription
// towards active; only a reviewed payment does that. plan may be nil.
func EvaluateTransition(sub *Subscription, plan *Plan, now time.Time) Transition {
	t := Transition{From: sub.Status, To: sub.Status, At: now}
	switch sub.Status {
	case SubscriptionStatusTrial:
		if sub.TrialEndsAt != nil && sub.TrialEndsAt.Before(now) {
			t.To = SubscriptionStatusPastDue
		}
	case SubscriptionStatusActive:
		if sub.CurrentPeriodEnd != nil && sub.CurrentPeriodEnd.Before(now) {
			t.To = SubscriptionStatusPastDue
		}
	case SubscriptionStatusPastDue:
		if suspendAt, ok := SuspensionDate(sub, plan); ok && now.After(suspendAt) {
			t.To = SubscriptionStatusSuspended
		}
	}
	return t
}

// ReminderPolicy holds the reminder offsets used by the dispatcher.
type ReminderPolicy struct {
	TrialDays         []int // exact day offsets before trial end
	PastDueWindowDays int   // reminders fire while 0 < days-to-suspension <= window
}

var DefaultReminderPolicy = ReminderPolicy{
	TrialDays:         []int{7, 3, 1},
	PastDueWindowDays: 5,
}

// DueReminder returns the reminder type that sub qualifies for at now, if any.
func (p ReminderPolicy) DueReminder(sub *Subscription, plan *Plan, now time.Time) (NotificationType, bool) {
	switch sub.Status {
	case SubscriptionStatusTrial:
		if sub.TrialEndsAt == nil {
			return "", false
		}
		days := DaysUntil(*sub.TrialEndsAt, now)
		if lo.Contains(p.TrialDays, days) {
			return TrialEndingType(days), true
		}
	case SubscriptionStatusPastDue:
		suspendAt, ok := SuspensionDate(sub, plan)
		if !ok {
			return "", false
		}
		days := DaysUntil(suspendAt, now)
		if days > 0 && days <= p.PastDueWindowDays {
			return PastDueType(days), true
		}
	}
	return "", false
}
