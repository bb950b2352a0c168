package mail

import (
	"context"

	"github.com/openbarn/authgate/pkg/slogx"
)

// Log is a Dispatcher that writes messages to the log instead of SMTP.
// Used when no mail host is configured, so dev environments can read
// verification codes straight from the log output.
type Log struct{}

func (Log) Send(ctx context.Context, recipient, subject, body string) error {
	slogx.FromContext(ctx).Info("mail dispatch (log only)",
		"recipient", recipient,
		"subject", subject,
		"body", body,
	)
	return nil
}
