package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pressly/goose/v3"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

//go:embed migrations
var embedMigrations embed.FS

// Timestamps are stored as UTC RFC3339 text so the cooldown range scan works
// identically on both backends.
const timeLayout = time.RFC3339

// SQLStore is a database/sql implementation of Store supporting sqlite and
// postgres backends. Schema is applied on open via embedded goose migrations.
type SQLStore struct {
	db     *sql.DB
	driver string
	mu     sync.Mutex

	now func() time.Time
}

// Open opens (or creates) the database and runs pending migrations.
// Driver is "sqlite" or "postgres"; for sqlite the DSN is a file path and
// parent directories are created as needed.
func Open(driver, dsn string) (*SQLStore, error) {
	var dialect string
	switch driver {
	case "sqlite":
		dialect = "sqlite3"
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
	case "postgres":
		dialect = "postgres"
	default:
		return nil, fmt.Errorf("unsupported driver: %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &SQLStore{db: db, driver: driver, now: time.Now}
	if err := s.runMigrations(dialect); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

func (s *SQLStore) runMigrations(dialect string) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return goose.Up(s.db, "migrations/"+s.driver)
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind converts ? placeholders to $n for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) timestamp(t time.Time) string {
	if t.IsZero() {
		t = s.now()
	}
	return t.UTC().Format(timeLayout)
}

// AppendHealthLog records one check result.
func (s *SQLStore) AppendHealthLog(ctx context.Context, rec HealthLogRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO health_logs (task_name, check_name, status, message, response_time_ms, checked_at)
		 VALUES (?, ?, ?, ?, ?, ?)`),
		rec.TaskName, rec.CheckName, rec.Status, rec.Message, rec.ResponseTimeMS, s.timestamp(rec.CheckedAt),
	)
	return err
}

// AppendNotificationLog records one delivered notification.
func (s *SQLStore) AppendNotificationLog(ctx context.Context, rec NotificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO notification_log (user_id, task_name, status, message, sent_at)
		 VALUES (?, ?, ?, ?, ?)`),
		rec.UserID, rec.TaskName, rec.Status, rec.Message, s.timestamp(rec.SentAt),
	)
	return err
}

// IsInCooldown reports whether a notification-log row for (user, task) exists
// within the cooldown window.
func (s *SQLStore) IsInCooldown(ctx context.Context, userID int64, taskName string, cooldown time.Duration) (bool, error) {
	cutoff := s.now().UTC().Add(-cooldown).Format(timeLayout)
	var one int
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT 1 FROM notification_log
		 WHERE user_id = ? AND task_name = ? AND sent_at >= ?
		 LIMIT 1`),
		userID, taskName, cutoff,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListEnabledSubscribers returns user IDs with notifications enabled for a
// task.
func (s *SQLStore) ListEnabledSubscribers(ctx context.Context, taskName string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT user_id FROM subscriptions WHERE task_name = ? AND is_enabled = ? ORDER BY user_id`),
		taskName, true,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RecentHealthLogs returns the newest health-log rows for a task.
func (s *SQLStore) RecentHealthLogs(ctx context.Context, taskName string, limit int) ([]HealthLogRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT task_name, check_name, status, message, response_time_ms, checked_at
		 FROM health_logs WHERE task_name = ?
		 ORDER BY checked_at DESC, id DESC LIMIT ?`),
		taskName, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []HealthLogRecord
	for rows.Next() {
		var rec HealthLogRecord
		var message sql.NullString
		var checkedAt string
		if err := rows.Scan(&rec.TaskName, &rec.CheckName, &rec.Status, &message, &rec.ResponseTimeMS, &checkedAt); err != nil {
			return nil, err
		}
		rec.Message = message.String
		rec.CheckedAt, _ = time.Parse(timeLayout, checkedAt)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// UpsertUser inserts or updates a user by chat ID.
func (s *SQLStore) UpsertUser(ctx context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO users (id, username, full_name, is_admin, added_by, created_at, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   username = excluded.username,
		   full_name = excluded.full_name,
		   is_admin = excluded.is_admin,
		   is_active = excluded.is_active`),
		u.ID, u.Username, u.FullName, u.IsAdmin, u.AddedBy, s.timestamp(u.CreatedAt), u.IsActive,
	)
	return err
}

// GetUser returns an active user by ID, or nil when absent or deactivated.
func (s *SQLStore) GetUser(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, username, full_name, is_admin, added_by, created_at, is_active
		 FROM users WHERE id = ? AND is_active = ?`),
		id, true,
	)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// ListUsers returns active users ordered by creation time.
func (s *SQLStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, username, full_name, is_admin, added_by, created_at, is_active
		 FROM users WHERE is_active = ? ORDER BY created_at`),
		true,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// DeactivateUser marks a user inactive. Returns false when no such user.
func (s *SQLStore) DeactivateUser(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE users SET is_active = ? WHERE id = ?`),
		false, id,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ToggleSubscription flips the enabled flag for (user, task). A first toggle
// creates the subscription enabled.
func (s *SQLStore) ToggleSubscription(ctx context.Context, userID int64, taskName string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var enabled bool
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT is_enabled FROM subscriptions WHERE user_id = ? AND task_name = ?`),
		userID, taskName,
	).Scan(&enabled)
	if errors.Is(err, sql.ErrNoRows) {
		_, err = s.db.ExecContext(ctx, s.rebind(
			`INSERT INTO subscriptions (user_id, task_name, is_enabled, notify_on_recovery, updated_at)
			 VALUES (?, ?, ?, ?, ?)`),
			userID, taskName, true, true, s.timestamp(time.Time{}),
		)
		return true, err
	}
	if err != nil {
		return false, err
	}

	_, err = s.db.ExecContext(ctx, s.rebind(
		`UPDATE subscriptions SET is_enabled = ?, updated_at = ? WHERE user_id = ? AND task_name = ?`),
		!enabled, s.timestamp(time.Time{}), userID, taskName,
	)
	return !enabled, err
}

// ListSubscriptions returns all subscriptions for a user.
func (s *SQLStore) ListSubscriptions(ctx context.Context, userID int64) ([]Subscription, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT task_name, is_enabled, notify_on_recovery FROM subscriptions WHERE user_id = ? ORDER BY task_name`),
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []Subscription
	for rows.Next() {
		var sub Subscription
		if err := rows.Scan(&sub.TaskName, &sub.Enabled, &sub.NotifyOnRecovery); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var u User
	var username sql.NullString
	var addedBy sql.NullInt64
	var createdAt string
	if err := row.Scan(&u.ID, &username, &u.FullName, &u.IsAdmin, &addedBy, &createdAt, &u.IsActive); err != nil {
		return nil, err
	}
	u.Username = username.String
	u.AddedBy = addedBy.Int64
	u.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return &u, nil
}
