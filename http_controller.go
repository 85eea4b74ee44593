package access

import (
	"github.com/goliatone/go-router"
)

const (
	// MinCodeTTLMinutes and MaxCodeTTLMinutes bound the registration window
	// accepted over HTTP. The service itself accepts any positive ttl;
	// clamping is this layer's job.
	MinCodeTTLMinutes = 1
	MaxCodeTTLMinutes = 60

	// DefaultCodeTTLMinutes is used when a create request omits the ttl.
	DefaultCodeTTLMinutes = 30
)

// AccessControllerRoutes are the endpoint paths, overridable per deployment.
type AccessControllerRoutes struct {
	Create string
	Redeem string
	Check  string
	List   string
}

// AccessController serializes the access code service over HTTP with the
// stable error envelope.
type AccessController struct {
	Service      *AccessCodeService
	Routes       *AccessControllerRoutes
	Logger       Logger
	ErrorHandler func(c router.Context, err error) error
}

type AccessControllerOption func(*AccessController) *AccessController

// NewAccessController creates a controller with sane defaults.
func NewAccessController(service *AccessCodeService, opts ...AccessControllerOption) *AccessController {
	c := &AccessController{
		Service: service,
		Logger:  defLogger{},
		Routes: &AccessControllerRoutes{
			Create: "/access-codes",
			Redeem: "/access-codes/redeem",
			Check:  "/access-codes/check",
			List:   "/access-codes/claimed",
		},
	}

	c.ErrorHandler = c.writeError

	for _, opt := range opts {
		if opt != nil {
			c = opt(c)
		}
	}

	return c
}

// WithControllerLogger overrides the controller logger.
func WithControllerLogger(logger Logger) AccessControllerOption {
	return func(c *AccessController) *AccessController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

// RegisterAccessRoutes mounts the controller. Admin endpoints (create, list)
// should be wrapped with authenticator.Protected(RoleAdmin); redeem and check
// are called by anonymous game clients.
func RegisterAccessRoutes[T any](app router.Router[T], controller *AccessController, protected router.MiddlewareFunc) {
	guard := func(h router.HandlerFunc) router.HandlerFunc {
		if protected == nil {
			return h
		}
		return protected(h)
	}

	app.Post(controller.Routes.Create, guard(controller.CreateCode)).
		SetName("access-codes.create")

	app.Get(controller.Routes.List, guard(controller.ListClaimed)).
		SetName("access-codes.list")

	app.Post(controller.Routes.Redeem, controller.Redeem).
		SetName("access-codes.redeem")

	app.Post(controller.Routes.Check, controller.CheckAccess).
		SetName("access-codes.check")
}

// CreateCodePayload is the admin create request body.
type CreateCodePayload struct {
	TTLMinutes int `json:"ttl_minutes"`
}

// CreateCode mints a new code. The ttl is clamped to
// [MinCodeTTLMinutes, MaxCodeTTLMinutes].
func (a *AccessController) CreateCode(ctx router.Context) error {
	payload := &CreateCodePayload{}
	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("CreateCode parse error", "error", err)
		return a.ErrorHandler(ctx, ErrMissingFields)
	}

	ttl := payload.TTLMinutes
	if ttl == 0 {
		ttl = DefaultCodeTTLMinutes
	}
	if ttl < MinCodeTTLMinutes {
		ttl = MinCodeTTLMinutes
	}
	if ttl > MaxCodeTTLMinutes {
		ttl = MaxCodeTTLMinutes
	}

	createdBy := ""
	if principal, ok := GetRouterPrincipal(ctx, ""); ok {
		createdBy = principal.Subject()
	}

	created, err := a.Service.CreateCode(ctx.Context(), ttl, createdBy)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success":    true,
		"code":       created.Code,
		"expires_at": created.ExpiresAt,
	})
}

// Redeem claims an unclaimed code or verifies an existing binding.
func (a *AccessController) Redeem(ctx router.Context) error {
	payload := &RedeemRequest{}
	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("Redeem parse error", "error", err)
		return a.ErrorHandler(ctx, ErrMissingFields)
	}

	result, err := a.Service.Redeem(ctx.Context(), *payload)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
		"status":  result.Status,
		"package": result.Package,
	})
}

// CheckAccess verifies a returning claimant by identity alone.
func (a *AccessController) CheckAccess(ctx router.Context) error {
	payload := &CheckAccessRequest{}
	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("CheckAccess parse error", "error", err)
		return a.ErrorHandler(ctx, ErrMissingFields)
	}

	grant, err := a.Service.CheckAccess(ctx.Context(), *payload)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
		"allowed": grant.Allowed,
		"package": grant.Package,
	})
}

// ListClaimed returns every bound code for admin auditing.
func (a *AccessController) ListClaimed(ctx router.Context) error {
	records, err := a.Service.ListClaimed(ctx.Context())
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
		"records": records,
	})
}

func (a *AccessController) writeError(ctx router.Context, err error) error {
	response := NewErrorResponse(err)
	a.Logger.Info("Access controller error", "code", response.Code, "status", response.Status)
	return ctx.JSON(response.Status, response)
}
