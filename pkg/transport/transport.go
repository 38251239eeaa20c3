// Package transport abstracts message delivery to notification recipients.
package transport

import "context"

// Sender delivers a formatted message to a recipient. A returned error means
// the delivery definitively failed; callers use this to decide whether a
// notification was sent for cooldown purposes.
type Sender interface {
	Send(ctx context.Context, recipientID int64, text string) error
}
