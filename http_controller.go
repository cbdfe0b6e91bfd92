package dirauth

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// IdentityControllerRoutes holds the route paths for the identity surface.
type IdentityControllerRoutes struct {
	Register      string
	Login         string
	Verify        string
	PasswordReset string
}

// IdentityController is thin transport glue: it binds payloads, calls the
// orchestrators, and translates taxonomy errors into responses. All
// invariants live in the handlers it delegates to.
type IdentityController struct {
	Debug    bool
	Logger   Logger
	Routes   *IdentityControllerRoutes
	Register *RegisterUserHandler
	Confirm  *ConfirmAccountHandler
	Broker   *AuthenticationBroker
	ResetReq *InitializePasswordResetHandler
	ResetFin *FinalizePasswordResetHandler
	Sessions *TokenService
}

type IdentityControllerOption func(*IdentityController) *IdentityController

func NewIdentityController(opts ...IdentityControllerOption) *IdentityController {
	c := &IdentityController{
		Logger: defLogger{},
		Routes: &IdentityControllerRoutes{
			Register:      "/register",
			Login:         "/login",
			Verify:        "/verify",
			PasswordReset: "/password-reset",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Register == nil || c.Confirm == nil || c.Broker == nil ||
		c.ResetReq == nil || c.ResetFin == nil || c.Sessions == nil {
		panic("Missing handlers in identity controller...")
	}

	return c
}

// RegisterIdentityRoutes mounts the identity surface on the given router.
func RegisterIdentityRoutes[T any](app router.Router[T], opts ...IdentityControllerOption) {
	controller := NewIdentityController(opts...)

	app.Post(controller.Routes.Register, controller.RegisterPost)
	app.Post(controller.Routes.Login, controller.LoginPost)

	app.Get(fmt.Sprintf("%s/:token", controller.Routes.Verify), controller.VerifyGet)

	app.Post(controller.Routes.PasswordReset, controller.PasswordResetPost)
	app.Post(fmt.Sprintf("%s/confirm", controller.Routes.PasswordReset), controller.PasswordResetExecute)
}

func (a *IdentityController) RegisterPost(ctx router.Context) error {
	payload := new(RegisterUserMessage)
	if err := ctx.Bind(payload); err != nil {
		return a.renderError(ctx, err)
	}

	if a.Debug {
		fmt.Println(print.MaybePrettyJSON(payload))
	}

	profile, err := a.Register.Execute(ctx.Context(), *payload)
	if err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.JSON(fiber.StatusCreated, router.ViewContext{
		"success": true,
		"profile": profile,
	})
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

func (a *IdentityController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)
	if err := ctx.Bind(payload); err != nil {
		return a.renderError(ctx, err)
	}

	if payload.Email == "" || payload.Password == "" {
		return ctx.JSON(fiber.StatusBadRequest, router.ViewContext{
			"success": false,
			"message": "email and password are required",
		})
	}

	user, err := a.Broker.Login(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		return a.renderError(ctx, err)
	}

	token, err := a.Sessions.Generate(user)
	if err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, router.ViewContext{
		"success": true,
		"token":   token,
		"user":    user,
	})
}

func (a *IdentityController) VerifyGet(ctx router.Context) error {
	token := ctx.Param("token")

	if _, err := a.Confirm.Execute(ctx.Context(), ConfirmAccountMessage{Token: token}); err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, router.ViewContext{
		"success": true,
		"message": "account verified",
	})
}

func (a *IdentityController) PasswordResetPost(ctx router.Context) error {
	payload := new(InitializePasswordResetMessage)
	if err := ctx.Bind(payload); err != nil {
		return a.renderError(ctx, err)
	}

	if err := a.ResetReq.Execute(ctx.Context(), *payload); err != nil {
		// Only infrastructure failures reach here; unknown accounts already
		// resolved to success inside the handler.
		return a.renderError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, router.ViewContext{
		"success": true,
		"message": "if the account exists, a reset link has been sent",
	})
}

func (a *IdentityController) PasswordResetExecute(ctx router.Context) error {
	payload := new(FinalizePasswordResetMessage)
	if err := ctx.Bind(payload); err != nil {
		return a.renderError(ctx, err)
	}

	if err := a.ResetFin.Execute(ctx.Context(), *payload); err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, router.ViewContext{
		"success": true,
		"message": "password updated",
	})
}

func (a *IdentityController) renderError(ctx router.Context, err error) error {
	a.Logger.Error("identity controller error", "error", err)

	status := fiber.StatusInternalServerError
	message := "internal error"

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		switch richErr.Category {
		case goerrors.CategoryValidation, goerrors.CategoryBadInput:
			status = fiber.StatusBadRequest
			message = richErr.Message
		case goerrors.CategoryConflict:
			status = fiber.StatusConflict
			message = richErr.Message
		case goerrors.CategoryNotFound:
			status = fiber.StatusNotFound
			message = richErr.Message
		case goerrors.CategoryAuth:
			status = fiber.StatusUnauthorized
			message = richErr.Message
		}
	}

	return ctx.JSON(status, router.ViewContext{
		"success": false,
		"message": message,
	})
}
