package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"k8s.io/klog/v2"

	"github.com/pipewatch/task-health-monitor/pkg/config"
	"github.com/pipewatch/task-health-monitor/pkg/format"
	"github.com/pipewatch/task-health-monitor/pkg/store"
	"github.com/pipewatch/task-health-monitor/pkg/task"
)

// errorBackoff is how long the poll loop waits after a getUpdates failure.
const errorBackoff = 5 * time.Second

// Bot routes incoming bot commands to handlers. Only users present and
// active in the store may interact; user management is admin-only.
type Bot struct {
	client   *Client
	registry *task.Registry
	store    store.Store
	adminID  int64
}

// NewBot creates the command router on top of a client.
func NewBot(client *Client, registry *task.Registry, st store.Store, cfg config.TelegramConfig) *Bot {
	return &Bot{
		client:   client,
		registry: registry,
		store:    st,
		adminID:  cfg.AdminID,
	}
}

// Run bootstraps the admin user, advertises the command menu, and long-polls
// for commands until the context is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	if b.adminID != 0 {
		err := b.store.UpsertUser(ctx, store.User{ID: b.adminID, FullName: "admin", IsAdmin: true, IsActive: true})
		if err != nil {
			return fmt.Errorf("failed to bootstrap admin user: %w", err)
		}
	}

	if err := b.client.SetMyCommands(ctx, []BotCommand{
		{Command: "status", Description: "Status of all tasks"},
		{Command: "check", Description: "Check one task"},
		{Command: "gpu", Description: "GPU status"},
		{Command: "notify", Description: "Toggle notifications for a task"},
		{Command: "help", Description: "All commands"},
	}); err != nil {
		klog.ErrorS(err, "Failed to set bot commands")
	}

	klog.InfoS("Bot started")

	var offset int64
	for {
		updates, err := b.client.GetUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			klog.ErrorS(err, "Failed to fetch updates")
			select {
			case <-time.After(errorBackoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		for _, u := range updates {
			offset = u.UpdateID + 1
			if u.Message == nil || u.Message.From == nil {
				continue
			}
			b.handleMessage(ctx, u.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *Message) {
	command, args := splitCommand(msg.Text)
	if command == "" {
		return
	}

	user, err := b.store.GetUser(ctx, msg.From.ID)
	if err != nil {
		klog.ErrorS(err, "Failed to look up user", "user", msg.From.ID)
		return
	}
	if user == nil {
		klog.V(2).InfoS("Ignoring command from unknown user", "user", msg.From.ID, "command", command)
		return
	}

	var reply string
	switch command {
	case "start", "help":
		reply = b.helpText(user.IsAdmin)
	case "status":
		reply = format.StatusReport(b.registry.RunAll(ctx))
	case "check":
		reply = b.checkTask(ctx, args)
	case "tasks":
		reply = b.listTasks()
	case "taskinfo":
		reply = b.taskInfo(args)
	case "gpu":
		reply = b.gpuStatus(ctx)
	case "notify":
		reply = b.toggleNotify(ctx, user.ID, args)
	case "history":
		reply = b.history(ctx, args)
	case "adduser":
		reply = b.addUser(ctx, user, args)
	case "removeuser":
		reply = b.removeUser(ctx, user, args)
	case "users":
		reply = b.listUsers(ctx, user)
	default:
		return
	}

	if reply == "" {
		return
	}
	if err := b.client.Send(ctx, msg.Chat.ID, reply); err != nil {
		klog.ErrorS(err, "Failed to send reply", "chat", msg.Chat.ID, "command", command)
	}
}

func splitCommand(text string) (string, string) {
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}
	parts := strings.SplitN(text, " ", 2)
	command := strings.TrimPrefix(parts[0], "/")
	// Strip the @botname suffix used in group chats.
	if at := strings.Index(command, "@"); at >= 0 {
		command = command[:at]
	}
	args := ""
	if len(parts) > 1 {
		args = strings.TrimSpace(parts[1])
	}
	return command, args
}

func (b *Bot) helpText(isAdmin bool) string {
	lines := []string{
		"<b>Commands</b>",
		"",
		"/status — status of all tasks",
		"/check &lt;task&gt; — check one task",
		"/tasks — list registered tasks",
		"/taskinfo &lt;task&gt; — task details",
		"/gpu — GPU status",
		"/notify &lt;task&gt; — toggle notifications",
		"/history &lt;task&gt; — recent check history",
	}
	if isAdmin {
		lines = append(lines,
			"",
			"<b>Admin</b>",
			"/adduser &lt;id&gt; [name] — allow a user",
			"/removeuser &lt;id&gt; — deactivate a user",
			"/users — list users",
		)
	}
	return strings.Join(lines, "\n")
}

func (b *Bot) checkTask(ctx context.Context, args string) string {
	if args == "" {
		return fmt.Sprintf("Usage: /check &lt;task&gt;\nAvailable: %s", b.taskNames())
	}
	t := b.registry.Get(args)
	if t == nil {
		return fmt.Sprintf("Task <code>%s</code> not found.", args)
	}
	return format.TaskDetail(t.RunHealthChecks(ctx))
}

func (b *Bot) listTasks() string {
	tasks := b.registry.All()
	if len(tasks) == 0 {
		return "No tasks registered."
	}
	lines := []string{"<b>Registered Tasks</b>", ""}
	for _, t := range tasks {
		lines = append(lines, fmt.Sprintf("• <code>%s</code> — %s", t.Name(), t.DisplayName()))
		if t.Description() != "" {
			lines = append(lines, fmt.Sprintf("  <i>%s</i>", t.Description()))
		}
	}
	return strings.Join(lines, "\n")
}

func (b *Bot) taskInfo(args string) string {
	if args == "" {
		return fmt.Sprintf("Usage: /taskinfo &lt;task&gt;\nAvailable: %s", b.taskNames())
	}
	t := b.registry.Get(args)
	if t == nil {
		return fmt.Sprintf("Task <code>%s</code> not found.", args)
	}
	return strings.Join([]string{
		fmt.Sprintf("<b>%s</b>", t.DisplayName()),
		fmt.Sprintf("Name: <code>%s</code>", t.Name()),
		fmt.Sprintf("Description: %s", t.Description()),
		fmt.Sprintf("Checks: %s", strings.Join(t.CheckNames(), ", ")),
	}, "\n")
}

// gpuStatus runs the first GPU check found across registered tasks.
func (b *Bot) gpuStatus(ctx context.Context) string {
	for _, t := range b.registry.All() {
		report := t.RunHealthChecks(ctx)
		for _, c := range report.Checks {
			if _, ok := c.Details["gpus"]; ok || strings.Contains(strings.ToLower(c.Name), "gpu") {
				return format.GPUReport(c)
			}
		}
	}
	return "No GPU check configured."
}

func (b *Bot) toggleNotify(ctx context.Context, userID int64, args string) string {
	if args == "" {
		subs, err := b.store.ListSubscriptions(ctx, userID)
		if err != nil {
			klog.ErrorS(err, "Failed to list subscriptions", "user", userID)
			return "Could not load notification settings."
		}
		enabled := map[string]bool{}
		for _, sub := range subs {
			enabled[sub.TaskName] = sub.Enabled
		}
		lines := []string{"<b>Notification settings</b>", ""}
		for _, t := range b.registry.All() {
			state := "\U0001f515 OFF"
			if enabled[t.Name()] {
				state = "\U0001f514 ON"
			}
			lines = append(lines, fmt.Sprintf("%s <code>%s</code> — %s", state, t.Name(), t.DisplayName()))
		}
		lines = append(lines, "", "Toggle with /notify &lt;task&gt;")
		return strings.Join(lines, "\n")
	}

	t := b.registry.Get(args)
	if t == nil {
		return fmt.Sprintf("Task <code>%s</code> not found.", args)
	}
	enabled, err := b.store.ToggleSubscription(ctx, userID, t.Name())
	if err != nil {
		klog.ErrorS(err, "Failed to toggle subscription", "user", userID, "task", t.Name())
		return "Could not update notification settings."
	}
	if enabled {
		return fmt.Sprintf("\U0001f514 Notifications for %s enabled", t.DisplayName())
	}
	return fmt.Sprintf("\U0001f515 Notifications for %s disabled", t.DisplayName())
}

func (b *Bot) history(ctx context.Context, args string) string {
	if args == "" {
		return fmt.Sprintf("Usage: /history &lt;task&gt;\nAvailable: %s", b.taskNames())
	}
	if b.registry.Get(args) == nil {
		return fmt.Sprintf("Task <code>%s</code> not found.", args)
	}
	logs, err := b.store.RecentHealthLogs(ctx, args, 20)
	if err != nil {
		klog.ErrorS(err, "Failed to load health logs", "task", args)
		return "Could not load history."
	}
	if len(logs) == 0 {
		return "No history yet."
	}
	lines := []string{fmt.Sprintf("<b>History: %s</b>", args), ""}
	for _, rec := range logs {
		lines = append(lines, fmt.Sprintf("<code>%s</code> %s: %s",
			rec.CheckedAt.Format("01-02 15:04"), rec.CheckName, rec.Status))
	}
	return strings.Join(lines, "\n")
}

func (b *Bot) addUser(ctx context.Context, actor *store.User, args string) string {
	if !actor.IsAdmin {
		return ""
	}
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return "Usage: /adduser &lt;id&gt; [name]"
	}
	id, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return fmt.Sprintf("Invalid user id: <code>%s</code>", fields[0])
	}
	name := strings.Join(fields[1:], " ")
	if err := b.store.UpsertUser(ctx, store.User{ID: id, FullName: name, AddedBy: actor.ID, IsActive: true}); err != nil {
		klog.ErrorS(err, "Failed to add user", "user", id)
		return "Could not add user."
	}
	return fmt.Sprintf("User <code>%d</code> added.", id)
}

func (b *Bot) removeUser(ctx context.Context, actor *store.User, args string) string {
	if !actor.IsAdmin {
		return ""
	}
	id, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil {
		return "Usage: /removeuser &lt;id&gt;"
	}
	removed, err := b.store.DeactivateUser(ctx, id)
	if err != nil {
		klog.ErrorS(err, "Failed to remove user", "user", id)
		return "Could not remove user."
	}
	if !removed {
		return fmt.Sprintf("User <code>%d</code> not found.", id)
	}
	return fmt.Sprintf("User <code>%d</code> removed.", id)
}

func (b *Bot) listUsers(ctx context.Context, actor *store.User) string {
	if !actor.IsAdmin {
		return ""
	}
	users, err := b.store.ListUsers(ctx)
	if err != nil {
		klog.ErrorS(err, "Failed to list users")
		return "Could not list users."
	}
	return format.UserList(users)
}

func (b *Bot) taskNames() string {
	names := b.registry.Names()
	quoted := make([]string, 0, len(names))
	for _, n := range names {
		quoted = append(quoted, fmt.Sprintf("<code>%s</code>", n))
	}
	if len(quoted) == 0 {
		return "none"
	}
	return strings.Join(quoted, ", ")
}
