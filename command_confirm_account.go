package dirauth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type ConfirmAccountMessage struct {
	Token string `json:"token"`
}

func (e ConfirmAccountMessage) Type() string { return "identity.confirm" }

// ConfirmAccountHandler redeems a confirmation token: the profile becomes
// confirmed exactly once and the token pair is erased, so redeeming the
// same token again fails as invalid.
type ConfirmAccountHandler struct {
	profiles ProfileStore
	tokens   *TokenIssuer
	activity ActivitySink
	logger   Logger
	now      func() time.Time
}

// NewConfirmAccountHandler creates a handler with sane defaults.
func NewConfirmAccountHandler(profiles ProfileStore, tokens *TokenIssuer) *ConfirmAccountHandler {
	return &ConfirmAccountHandler{
		profiles: profiles,
		tokens:   tokens,
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}
}

func (h *ConfirmAccountHandler) WithActivitySink(sink ActivitySink) *ConfirmAccountHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *ConfirmAccountHandler) WithLogger(logger Logger) *ConfirmAccountHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ConfirmAccountHandler) WithClock(clock func() time.Time) *ConfirmAccountHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *ConfirmAccountHandler) Execute(ctx context.Context, event ConfirmAccountMessage) (*Profile, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account confirmation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ConfirmAccountHandler) execute(ctx context.Context, event ConfirmAccountMessage) (*Profile, error) {
	// Signature, purpose, and expiry first: a tampered or repurposed token
	// never touches the store.
	if _, err := h.tokens.Verify(event.Token, PurposeConfirmAccount); err != nil {
		return nil, err
	}

	// The profile must still hold this exact token. A profile that already
	// redeemed it has the field cleared, which makes confirmation single-use.
	profile, err := h.profiles.GetByConfirmationToken(ctx, event.Token, h.now())
	if err != nil {
		if goerrors.Is(err, ErrProfileNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up confirmation token")
	}

	confirmed, err := h.profiles.MarkConfirmed(ctx, profile)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mark profile confirmed")
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventAccountConfirmed,
		Actor:     ActorRef{ID: confirmed.ID.String(), Type: "user"},
		ProfileID: confirmed.ID.String(),
		Metadata:  map[string]any{"handle": confirmed.Handle},
	})

	return confirmed, nil
}
