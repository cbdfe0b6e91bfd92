package dirauth

import (
	"context"
)

// logNotifier writes notification intents to the log instead of delivering
// mail. It is the default used when no real transport is wired in.
type logNotifier struct {
	logger Logger
}

// NewLogNotifier returns a Notifier that only logs. Useful for development
// and as a safe default.
func NewLogNotifier(logger Logger) Notifier {
	if logger == nil {
		logger = defLogger{}
	}
	return &logNotifier{logger: logger}
}

func (n *logNotifier) SendVerification(ctx context.Context, email, token string) error {
	n.logger.Info("verification notification", "to", email, "link", "/verify/"+token)
	return nil
}

func (n *logNotifier) SendPasswordReset(ctx context.Context, email, token string) error {
	n.logger.Info("password reset notification", "to", email, "link", "/password-reset/"+token)
	return nil
}

func normalizeNotifier(n Notifier, logger Logger) Notifier {
	if n == nil {
		return NewLogNotifier(logger)
	}
	return n
}
