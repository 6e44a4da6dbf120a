// Package mail delivers the verification and password-reset emails.
package mail

import "context"

// Sender delivers a plain-text email to a single recipient.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}
