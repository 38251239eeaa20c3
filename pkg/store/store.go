// Package store persists health logs, notification logs, users, and
// notification subscriptions behind a narrow interface.
package store

import (
	"context"
	"time"
)

// HealthLogRecord is one check result as persisted.
type HealthLogRecord struct {
	TaskName       string
	CheckName      string
	Status         string
	Message        string
	ResponseTimeMS float64
	CheckedAt      time.Time
}

// NotificationRecord is one delivered notification as persisted. Cooldown
// checks key on these rows.
type NotificationRecord struct {
	UserID   int64
	TaskName string
	Status   string
	Message  string
	SentAt   time.Time
}

// User is a chat identity allowed to interact with the bot.
type User struct {
	ID        int64
	Username  string
	FullName  string
	IsAdmin   bool
	AddedBy   int64
	CreatedAt time.Time
	IsActive  bool
}

// Subscription is a per-user, per-task notification preference.
type Subscription struct {
	TaskName         string
	Enabled          bool
	NotifyOnRecovery bool
}

// Store is the persistence contract used by the notification engine and the
// interactive command path. Writes are independent appends; implementations
// must serialize concurrent writers themselves.
type Store interface {
	AppendHealthLog(ctx context.Context, rec HealthLogRecord) error
	AppendNotificationLog(ctx context.Context, rec NotificationRecord) error
	// IsInCooldown reports whether a notification for (user, task) was
	// logged within the last cooldown window.
	IsInCooldown(ctx context.Context, userID int64, taskName string, cooldown time.Duration) (bool, error)
	// ListEnabledSubscribers returns user IDs subscribed to a task.
	ListEnabledSubscribers(ctx context.Context, taskName string) ([]int64, error)

	RecentHealthLogs(ctx context.Context, taskName string, limit int) ([]HealthLogRecord, error)

	UpsertUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, id int64) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	DeactivateUser(ctx context.Context, id int64) (bool, error)

	// ToggleSubscription flips the enabled flag for (user, task), creating
	// the subscription enabled on first toggle. Returns the new state.
	ToggleSubscription(ctx context.Context, userID int64, taskName string) (bool, error)
	ListSubscriptions(ctx context.Context, userID int64) ([]Subscription, error)

	Close() error
}
