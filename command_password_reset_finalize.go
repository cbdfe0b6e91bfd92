package dirauth

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

type FinalizePasswordResetMessage struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

func (e FinalizePasswordResetMessage) Type() string { return "identity.password_reset.finalize" }

// FinalizePasswordResetHandler redeems a reset token and rotates the
// directory credential. Tokens are not stored server-side: single-use is
// only as strong as the credential rotation the token triggers, so a
// captured token can be replayed until it expires. That residual risk is
// accepted; see DESIGN.md.
type FinalizePasswordResetHandler struct {
	directory DirectoryClient
	tokens    *TokenIssuer
	activity  ActivitySink
	logger    Logger
}

// NewFinalizePasswordResetHandler creates a handler with sane defaults.
func NewFinalizePasswordResetHandler(directory DirectoryClient, tokens *TokenIssuer) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{
		directory: directory,
		tokens:    tokens,
		activity:  noopActivitySink{},
		logger:    defLogger{},
	}
}

func (h *FinalizePasswordResetHandler) WithActivitySink(sink ActivitySink) *FinalizePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *FinalizePasswordResetHandler) WithLogger(logger Logger) *FinalizePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	claims, err := h.tokens.Verify(event.Token, PurposeResetPassword)
	if err != nil {
		return err
	}

	if claims.DN == "" {
		return ErrTokenInvalid
	}

	if err := h.directory.SetCredential(ctx, claims.DN, event.NewPassword); err != nil {
		return err
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventPasswordResetSuccess,
		Actor:     ActorRef{ID: claims.UID, Type: "user"},
		ProfileID: claims.UID,
		Metadata:  map[string]any{"handle": claims.Handle},
	})

	return nil
}
