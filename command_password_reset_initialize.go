package dirauth

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

type InitializePasswordResetMessage struct {
	Email string `json:"email"`
}

func (e InitializePasswordResetMessage) Type() string { return "identity.password_reset" }

// InitializePasswordResetHandler starts a credential reset. The identity
// lookup goes to the directory, not the profile store, so recovery works
// even when the local profile email drifted from the directory mail
// attributes. The caller always gets a success result: response shape must
// not reveal whether an account exists.
type InitializePasswordResetHandler struct {
	directory DirectoryClient
	tokens    *TokenIssuer
	notifier  Notifier
	activity  ActivitySink
	logger    Logger
}

// NewInitializePasswordResetHandler creates a handler with sane defaults.
func NewInitializePasswordResetHandler(directory DirectoryClient, tokens *TokenIssuer) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{
		directory: directory,
		tokens:    tokens,
		notifier:  NewLogNotifier(nil),
		activity:  noopActivitySink{},
		logger:    defLogger{},
	}
}

func (h *InitializePasswordResetHandler) WithNotifier(n Notifier) *InitializePasswordResetHandler {
	h.notifier = normalizeNotifier(n, h.logger)
	return h
}

func (h *InitializePasswordResetHandler) WithActivitySink(sink ActivitySink) *InitializePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	identity, err := h.directory.FindByEmailLike(ctx, event.Email)
	if err != nil {
		// A directory outage is not an enumeration concern; surface it.
		return err
	}

	if identity == nil {
		// Unknown account: short-circuit without issuing a token, but report
		// success so the response shape leaks nothing.
		h.logger.Debug("password reset requested for unknown email", "email", event.Email)
		return nil
	}

	token, _, err := h.tokens.Issue(PurposeResetPassword, SubjectClaims{
		Handle: identity.Handle,
		Email:  identity.Email,
		DN:     identity.DN,
	}, 0)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue password reset token")
	}

	h.dispatchReset(identity.Email, token)

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventPasswordResetRequest,
		Actor:     ActorRef{Type: "user"},
		Metadata:  map[string]any{"handle": identity.Handle},
	})

	return nil
}

// dispatchReset is fire-and-forget: delivery failure is logged, never
// returned, so the response stays enumeration-safe.
func (h *InitializePasswordResetHandler) dispatchReset(email, token string) {
	go func() {
		if err := h.notifier.SendPasswordReset(context.Background(), email, token); err != nil {
			h.logger.Error("failed to send password reset notification", "email", email, "error", err)
		}
	}()
}
