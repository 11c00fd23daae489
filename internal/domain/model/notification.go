package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NotificationType is a composite tag such as trial_ending_7d, past_due_3d or suspended.
type NotificationType string

const NotificationTypeSuspended NotificationType = "suspended"

func TrialEndingType(days int) NotificationType {
	return NotificationType(fmt.Sprintf("trial_ending_%dd", days))
}

func PastDueType(days int) NotificationType {
	return NotificationType(fmt.Sprintf("past_due_%dd", days))
}

type NotificationChannel string

const NotificationChannelEmail NotificationChannel = "email"

type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
)

// DedupWindow is how long a notification of one type blocks another of the same type.
const DedupWindow = 24 * time.Hour

// Notification is the audit record of one attempted message.
type Notification struct {
	ID             string
	SubscriptionID string
	BranchID       string
	Type           NotificationType
	RecipientEmail string
	Channel        NotificationChannel
	Status         NotificationStatus
	Subject        string
	Body           string
	CreatedAt      time.Time
	SentAt         *time.Time
}

func NewEmailNotification(sub *Subscription, kind NotificationType, recipient, subject, body string, now time.Time) *Notification {
	return &Notification{
		ID:             uuid.NewString(),
		SubscriptionID: sub.ID,
		BranchID:       sub.BranchID,
		Type:           kind,
		RecipientEmail: recipient,
		Channel:        NotificationChannelEmail,
		Status:         NotificationStatusPending,
		Subject:        subject,
		Body:           body,
		CreatedAt:      now,
	}
}
