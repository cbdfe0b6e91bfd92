package dirauth

import (
	"context"
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
)

type RegisterUserMessage struct {
	GivenName       string `json:"given_name"`
	FamilyName      string `json:"family_name"`
	Handle          string `json:"handle"`
	Avatar          string `json:"avatar"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	AcceptTerms     bool   `json:"accept_terms"`
}

func (e RegisterUserMessage) Type() string { return "identity.register" }

// Validate aggregates every violation into a single validation error rather
// than failing on the first.
func (e RegisterUserMessage) Validate() error {
	err := validation.ValidateStruct(&e,
		validation.Field(&e.GivenName, validation.Required, validation.Length(2, 100)),
		validation.Field(&e.FamilyName, validation.Required, validation.Length(2, 100)),
		validation.Field(&e.Handle, validation.Required, validation.Length(3, 50)),
		validation.Field(&e.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&e.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(
			&e.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(e.Password)),
		),
		validation.Field(&e.AcceptTerms, validation.By(validateTermsAccepted)),
	)

	if err == nil {
		return nil
	}

	violations := map[string]any{}
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			violations[field] = ferr.Error()
		}
	}

	return goerrors.New("registration input is invalid", goerrors.CategoryValidation).
		WithTextCode(TextCodeValidation).
		WithMetadata(map[string]any{"violations": violations})
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}

func validateTermsAccepted(value any) error {
	accepted, _ := value.(bool)
	if !accepted {
		return errors.New("terms must be accepted")
	}
	return nil
}

// RegisterUserHandler creates an identity in the directory and a profile in
// the document store as one logical operation. There is no atomic commit
// across the two stores: profile uniqueness is checked before any directory
// mutation, and directory work is compensated when a later step fails.
type RegisterUserHandler struct {
	cfg       Config
	profiles  ProfileStore
	directory DirectoryClient
	tokens    *TokenIssuer
	notifier  Notifier
	activity  ActivitySink
	logger    Logger
	now       func() time.Time
}

// NewRegisterUserHandler creates a handler with sane defaults.
func NewRegisterUserHandler(cfg Config, profiles ProfileStore, directory DirectoryClient, tokens *TokenIssuer) *RegisterUserHandler {
	return &RegisterUserHandler{
		cfg:       cfg.WithDefaults(),
		profiles:  profiles,
		directory: directory,
		tokens:    tokens,
		notifier:  NewLogNotifier(nil),
		activity:  noopActivitySink{},
		logger:    defLogger{},
		now:       time.Now,
	}
}

func (h *RegisterUserHandler) WithNotifier(n Notifier) *RegisterUserHandler {
	h.notifier = normalizeNotifier(n, h.logger)
	return h
}

func (h *RegisterUserHandler) WithActivitySink(sink ActivitySink) *RegisterUserHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *RegisterUserHandler) WithLogger(logger Logger) *RegisterUserHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RegisterUserHandler) WithClock(clock func() time.Time) *RegisterUserHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) (*Profile, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) (*Profile, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}

	// Profile uniqueness comes before any directory mutation: a directory
	// entry is hard to undo from here without admin rights, and correctness
	// must not depend on the compensation path running.
	if err := h.ensureUnique(ctx, event); err != nil {
		return nil, err
	}

	dn := DeriveDN(event.Handle, h.cfg.UserContainerDN)

	if err := h.createDirectoryIdentity(ctx, dn, event); err != nil {
		return nil, err
	}

	profile, err := h.createProfile(ctx, dn, event)
	if err != nil {
		return nil, err
	}

	h.dispatchVerification(profile)

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventRegistration,
		Actor:     ActorRef{ID: profile.ID.String(), Type: "user"},
		ProfileID: profile.ID.String(),
		Metadata:  map[string]any{"handle": profile.Handle},
	})

	return profile, nil
}

func (h *RegisterUserHandler) ensureUnique(ctx context.Context, event RegisterUserMessage) error {
	if _, err := h.profiles.GetByEmail(ctx, event.Email); err == nil {
		return ErrDuplicateIdentity
	} else if !goerrors.Is(err, ErrProfileNotFound) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email uniqueness")
	}

	if _, err := h.profiles.GetByHandle(ctx, event.Handle); err == nil {
		return ErrDuplicateIdentity
	} else if !goerrors.Is(err, ErrProfileNotFound) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check handle uniqueness")
	}

	return nil
}

// createDirectoryIdentity runs the three sequential directory calls: add
// the disabled entry, assign the credential, enable the account. A failure
// after the entry exists triggers best-effort compensation before the
// original error is surfaced.
func (h *RegisterUserHandler) createDirectoryIdentity(ctx context.Context, dn string, event RegisterUserMessage) error {
	identity := NewIdentity{
		Handle:      event.Handle,
		GivenName:   event.GivenName,
		FamilyName:  event.FamilyName,
		DisplayName: event.GivenName + " " + event.FamilyName,
		Email:       event.Email,
	}

	if err := h.directory.CreateIdentity(ctx, dn, identity); err != nil {
		return err
	}

	if err := h.directory.SetCredential(ctx, dn, event.Password); err != nil {
		h.compensate(ctx, dn, "credential assignment failed")
		return err
	}

	if err := h.directory.EnableIdentity(ctx, dn); err != nil {
		h.compensate(ctx, dn, "identity enable failed")
		return err
	}

	return nil
}

func (h *RegisterUserHandler) createProfile(ctx context.Context, dn string, event RegisterUserMessage) (*Profile, error) {
	token, expires, err := h.tokens.Issue(PurposeConfirmAccount, SubjectClaims{
		Handle: event.Handle,
		Email:  event.Email,
	}, 0)
	if err != nil {
		h.compensate(ctx, dn, "confirmation token issue failed")
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue confirmation token")
	}

	now := h.now()
	profile := &Profile{
		GivenName:           event.GivenName,
		FamilyName:          event.FamilyName,
		Handle:              event.Handle,
		Avatar:              event.Avatar,
		Email:               event.Email,
		Role:                RolePlayer,
		Status:              StatusActive,
		Confirmed:           false,
		ConfirmationToken:   token,
		ConfirmationExpires: &expires,
		TermsAccepted:       event.AcceptTerms,
		TermsAcceptedAt:     &now,
		TermsVersion:        h.cfg.TermsVersion,
	}

	if id, err := hashid.NewUUID(event.Email); err == nil {
		profile.ID = id
	}

	created, err := h.profiles.Create(ctx, profile)
	if err != nil {
		// The directory entry exists but the profile does not. Compensation
		// must run, and if it also fails the orphan is surfaced loudly, not
		// swallowed.
		if compErr := h.directory.DisableOrDeleteIdentity(ctx, dn); compErr != nil {
			h.logger.Error(
				"FATAL registration inconsistency: directory entry has no profile and compensation failed",
				"dn", dn, "error", compErr,
			)
			clone := ErrStoreInconsistency.Clone()
			clone.Source = err
			return nil, clone.WithMetadata(map[string]any{
				"dn":                 dn,
				"compensation_error": compErr.Error(),
			})
		}

		h.logger.Warn("profile persistence failed, directory entry rolled back", "dn", dn)
		recordActivity(ctx, h.activity, h.logger, ActivityEvent{
			EventType: ActivityEventRegistrationRollback,
			Actor:     ActorRef{Type: "system"},
			Metadata:  map[string]any{"dn": dn, "reason": "profile persistence failed"},
		})

		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "profile persistence failed after directory creation")
	}

	return created, nil
}

// compensate attempts to undo a partially created directory entry. Its own
// failure is logged as an operational alert; it never masks the error that
// triggered the rollback.
func (h *RegisterUserHandler) compensate(ctx context.Context, dn, reason string) {
	if err := h.directory.DisableOrDeleteIdentity(ctx, dn); err != nil {
		h.logger.Error("registration compensation failed", "dn", dn, "reason", reason, "error", err)
		return
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventRegistrationRollback,
		Actor:     ActorRef{Type: "system"},
		Metadata:  map[string]any{"dn": dn, "reason": reason},
	})
}

// dispatchVerification is fire-and-forget: a notification failure never
// changes the registration outcome.
func (h *RegisterUserHandler) dispatchVerification(profile *Profile) {
	email := profile.Email
	token := profile.ConfirmationToken
	go func() {
		if err := h.notifier.SendVerification(context.Background(), email, token); err != nil {
			h.logger.Error("failed to send verification notification", "email", email, "error", err)
		}
	}()
}
