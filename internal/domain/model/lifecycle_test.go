//go:build !integration

package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func ptr(t time.Time) *time.Time { return &t }

func TestDaysUntil(t *testing.T) {
	now := ts("2024-01-10T00:00:00Z")
	assert.Equal(t, 7, DaysUntil(now.Add(7*Day), now))
	assert.Equal(t, 7, DaysUntil(now.Add(6*Day+time.Minute), now))
	assert.Equal(t, 1, DaysUntil(now.Add(time.Second), now))
	assert.Equal(t, 0, DaysUntil(now, now))
	assert.Equal(t, -1, DaysUntil(now.Add(-36*time.Hour), now))
}

func TestEvaluateTransition_TrialExpiry(t *testing.T) {
	sub := &Subscription{ID: "s", BranchID: "b", Status: SubscriptionStatusTrial, TrialEndsAt: ptr(ts("2024-01-10T00:00:00Z"))}

	tr := EvaluateTransition(sub, nil, ts("2024-01-10T00:00:00Z"))
	assert.False(t, tr.Changed(), "trial end equal to now is not strictly in the past")

	now := ts("2024-01-10T00:01:00Z")
	tr = EvaluateTransition(sub, nil, now)
	require.True(t, tr.Changed())
	assert.Equal(t, SubscriptionStatusPastDue, tr.To)

	sub.Apply(tr)
	require.NotNil(t, sub.PastDueSince)
	assert.True(t, sub.PastDueSince.Equal(now))
}

func TestEvaluateTransition_PastDueEscalation(t *testing.T) {
	plan := &Plan{ID: "p", GracePeriodDays: 5}
	newSub := func() *Subscription {
		return &Subscription{ID: "s", BranchID: "b", Status: SubscriptionStatusPastDue, PastDueSince: ptr(ts("2024-01-10T00:01:00Z"))}
	}

	t.Run("one minute before the boundary stays past_due", func(t *testing.T) {
		tr := EvaluateTransition(newSub(), plan, ts("2024-01-14T23:59:00Z"))
		assert.False(t, tr.Changed())
	})

	t.Run("after the boundary suspends", func(t *testing.T) {
		sub := newSub()
		now := ts("2024-01-15T00:02:00Z")
		tr := EvaluateTransition(sub, plan, now)
		require.Equal(t, SubscriptionStatusSuspended, tr.To)
		sub.Apply(tr)
		require.NotNil(t, sub.SuspendedAt)
		assert.True(t, sub.SuspendedAt.Equal(now))
	})

	t.Run("missing plan uses the default grace period", func(t *testing.T) {
		tr := EvaluateTransition(newSub(), nil, ts("2024-01-15T00:00:00Z"))
		assert.False(t, tr.Changed())
		tr = EvaluateTransition(newSub(), nil, ts("2024-01-15T00:02:00Z"))
		assert.Equal(t, SubscriptionStatusSuspended, tr.To)
	})
}

func TestEvaluateTransition_NeverActivates(t *testing.T) {
	now := ts("2024-03-01T00:00:00Z")
	for _, status := range []SubscriptionStatus{SubscriptionStatusSuspended, SubscriptionStatusCancelled} {
		sub := &Subscription{ID: "s", BranchID: "b", Status: status, SuspendedAt: ptr(now.Add(-100 * Day))}
		tr := EvaluateTransition(sub, nil, now)
		assert.False(t, tr.Changed(), status)
	}
}

func TestEvaluateTransition_ActivePeriodLapse(t *testing.T) {
	now := ts("2024-03-01T00:00:00Z")
	sub := &Subscription{ID: "s", BranchID: "b", Status: SubscriptionStatusActive, CurrentPeriodEnd: ptr(now.Add(time.Hour))}
	assert.False(t, EvaluateTransition(sub, nil, now).Changed())

	sub.CurrentPeriodEnd = ptr(now.Add(-time.Hour))
	assert.Equal(t, SubscriptionStatusPastDue, EvaluateTransition(sub, nil, now).To)
}

func TestReminderPolicy_DueReminder(t *testing.T) {
	policy := DefaultReminderPolicy
	now := ts("2024-01-01T12:00:00Z")

	cases := []struct {
		name   string
		sub    *Subscription
		plan   *Plan
		want   NotificationType
		wantOK bool
	}{
		{"trial 7 days out", &Subscription{Status: SubscriptionStatusTrial, TrialEndsAt: ptr(now.Add(7 * Day))}, nil, "trial_ending_7d", true},
		{"trial 6.5 days out rounds up to 7", &Subscription{Status: SubscriptionStatusTrial, TrialEndsAt: ptr(now.Add(6*Day + 12*time.Hour))}, nil, "trial_ending_7d", true},
		{"trial 5 days out", &Subscription{Status: SubscriptionStatusTrial, TrialEndsAt: ptr(now.Add(5 * Day))}, nil, "", false},
		{"trial 1 hour out", &Subscription{Status: SubscriptionStatusTrial, TrialEndsAt: ptr(now.Add(time.Hour))}, nil, "trial_ending_1d", true},
		{"past_due just started", &Subscription{Status: SubscriptionStatusPastDue, PastDueSince: ptr(now)}, &Plan{ID: "p", GracePeriodDays: 5}, "past_due_5d", true},
		{"past_due outside window", &Subscription{Status: SubscriptionStatusPastDue, PastDueSince: ptr(now)}, &Plan{ID: "p", GracePeriodDays: 10}, "", false},
		{"past_due at boundary", &Subscription{Status: SubscriptionStatusPastDue, PastDueSince: ptr(now.Add(-5 * Day))}, nil, "", false},
		{"active never reminds", &Subscription{Status: SubscriptionStatusActive, CurrentPeriodEnd: ptr(now.Add(Day))}, nil, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := policy.DueReminder(tc.sub, tc.plan, now)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSubscriptionReactivate(t *testing.T) {
	now := ts("2024-02-01T10:00:00Z")
	sub := &Subscription{
		ID: "s", BranchID: "b", Status: SubscriptionStatusSuspended,
		PastDueSince:     ptr(now.Add(-10 * Day)),
		SuspendedAt:      ptr(now.Add(-5 * Day)),
		CurrentPeriodEnd: ptr(now.Add(-40 * Day)),
	}
	sub.Reactivate(now)

	assert.Equal(t, SubscriptionStatusActive, sub.Status)
	assert.Nil(t, sub.PastDueSince)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.True(t, sub.CurrentPeriodEnd.Equal(now.Add(30*Day)))
}
