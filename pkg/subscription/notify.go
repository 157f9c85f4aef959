package subscription

import (
	"context"
	"fmt"

	"github.com/foliopress/folio/pkg/email"
)

// EmailNotifier implements Notifier on the transactional email sender.
type EmailNotifier struct {
	sender email.Sender
}

// NewEmailNotifier creates a Notifier backed by the given sender.
func NewEmailNotifier(sender email.Sender) *EmailNotifier {
	if sender == nil {
		panic("subscription: email.Sender is required")
	}
	return &EmailNotifier{sender: sender}
}

// SendClaimEmail implements Notifier.
func (n *EmailNotifier) SendClaimEmail(ctx context.Context, to, claimURL string) error {
	params, err := email.RenderClaimEmail(to, claimURL)
	if err != nil {
		return err
	}
	if err := n.sender.SendEmail(ctx, params); err != nil {
		return fmt.Errorf("send claim email: %w", err)
	}
	return nil
}
