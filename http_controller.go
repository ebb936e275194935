package auth

import (
	"sort"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	goerrors "github.com/goliatone/go-errors"
)

// AccountController serves the public account endpoints: register, login,
// and refresh-token.
type AccountController struct {
	Registration *Registration
	Login        *LoginFlow
	Engine       *TokenEngine
	Logger       Logger
}

// RegisterPost handles POST /api/account/register
func (a *AccountController) RegisterPost(c *fiber.Ctx) error {
	payload := new(RegisterRequest)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("register parse payload", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"description": "Register data is not valid",
			"errors":      []string{"failed to parse request body"},
		})
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Warn("register validate payload", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"description": "Register data is not valid",
			"errors":      FormatValidationErrors(err),
		})
	}

	result, err := a.Registration.Register(c.Context(), *payload)
	if err != nil {
		a.Logger.Error("register failed", "error", err)
		return respondError(c, err)
	}

	if !result.Success {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"description": "Register was not successful",
			"errors":      result.Errors,
		})
	}

	return c.JSON(fiber.Map{
		"description": "Register was successful",
		"user":        result.User,
	})
}

// LoginPost handles POST /api/account/login
func (a *AccountController) LoginPost(c *fiber.Ctx) error {
	payload := new(LoginRequest)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("login parse payload", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"description": "Login data is not valid",
			"errors":      []string{"failed to parse request body"},
		})
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Warn("login validate payload", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"description": "Login data is not valid",
			"errors":      FormatValidationErrors(err),
		})
	}

	result, err := a.Login.Login(c.Context(), *payload)
	if err != nil {
		a.Logger.Error("login failed", "error", err)
		return respondError(c, err)
	}

	if !result.Success {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"description": "Login failed",
			"errors":      result.Errors,
		})
	}

	return c.JSON(result.Tokens)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RefreshPost handles POST /api/account/refresh-token
func (a *AccountController) RefreshPost(c *fiber.Ctx) error {
	payload := new(refreshRequest)

	if err := c.BodyParser(payload); err != nil || payload.RefreshToken == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"description": "Refresh token is required",
		})
	}

	pair, err := a.Engine.Refresh(c.Context(), payload.RefreshToken)
	if err != nil {
		a.Logger.Warn("refresh failed", "error", err)
		return respondError(c, err)
	}

	return c.JSON(pair)
}

// UserManagementController serves the admin endpoints.
type UserManagementController struct {
	Manager *UserManager
	Logger  Logger
}

// GetAllUsers handles GET /api/user-management/get-all-users
func (u *UserManagementController) GetAllUsers(c *fiber.Ctx) error {
	users, err := u.Manager.ListUsers(c.Context())
	if err != nil {
		return respondError(c, err)
	}

	if len(users) == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"description": "No users found",
		})
	}

	return c.JSON(users)
}

// Search handles GET /api/user-management/search?query=
func (u *UserManagementController) Search(c *fiber.Ctx) error {
	query := c.Query("query")
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"description": "Search query is required",
		})
	}

	users, err := u.Manager.SearchUsers(c.Context(), query)
	if err != nil {
		return respondError(c, err)
	}

	if len(users) == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"description": "No users found",
		})
	}

	return c.JSON(users)
}

// UserToAdmin handles POST /api/user-management/user-to-admin?userId=
func (u *UserManagementController) UserToAdmin(c *fiber.Ctx) error {
	if err := u.Manager.PromoteToAdmin(c.Context(), c.Query("userId")); err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"description": "User is now an admin"})
}

// AdminToUser handles POST /api/user-management/admin-to-user?userId=
func (u *UserManagementController) AdminToUser(c *fiber.Ctx) error {
	if err := u.Manager.DemoteToUser(c.Context(), c.Query("userId")); err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"description": "Admin role removed successfully"})
}

type changeStatusRequest struct {
	Status UserStatus `json:"status"`
}

// ChangeStatus handles POST /api/user-management/change-status-user?userId=
func (u *UserManagementController) ChangeStatus(c *fiber.Ctx) error {
	payload := new(changeStatusRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"description": "Status payload is not valid",
		})
	}

	if err := u.Manager.ChangeStatus(c.Context(), c.Query("userId"), payload.Status); err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"description": "User status has been changed"})
}

// EditUser handles PUT /api/user-management/edit-user?userId=
func (u *UserManagementController) EditUser(c *fiber.Ctx) error {
	payload := new(EditUserRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"description": "Edit data is not valid",
			"errors":      []string{"failed to parse request body"},
		})
	}

	if err := payload.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"description": "Edit data is not valid",
			"errors":      FormatValidationErrors(err),
		})
	}

	if err := u.Manager.EditUser(c.Context(), c.Query("userId"), *payload); err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"description": "User successfully edited"})
}

// RouterConfig wires the flows into the fiber app.
type RouterConfig struct {
	Engine       *TokenEngine
	Login        *LoginFlow
	Registration *Registration
	Manager      *UserManager
	Logger       Logger

	// AdminRateLimit caps requests per client per minute on the
	// user-management routes. Zero keeps the default.
	AdminRateLimit int
}

// RegisterRoutes mounts the account and user-management endpoints.
func RegisterRoutes(app *fiber.App, cfg RouterConfig) {
	logger := cfg.Logger
	if logger == nil {
		logger = defLogger{}
	}

	account := &AccountController{
		Registration: cfg.Registration,
		Login:        cfg.Login,
		Engine:       cfg.Engine,
		Logger:       logger,
	}

	management := &UserManagementController{
		Manager: cfg.Manager,
		Logger:  logger,
	}

	api := app.Group("/api")

	api.Post("/account/register", account.RegisterPost)
	api.Post("/account/login", account.LoginPost)
	api.Post("/account/refresh-token", account.RefreshPost)

	adminLimit := cfg.AdminRateLimit
	if adminLimit <= 0 {
		adminLimit = 60
	}

	admin := api.Group("/user-management",
		limiter.New(limiter.Config{
			Max:        adminLimit,
			Expiration: time.Minute,
		}),
		RequireAuth(cfg.Engine, RoleAdmin, RoleSuperAdmin),
	)

	admin.Get("/get-all-users", management.GetAllUsers)
	admin.Get("/search", management.Search)
	admin.Post("/change-status-user", management.ChangeStatus)
	admin.Put("/edit-user", management.EditUser)

	admin.Post("/user-to-admin", RequireAuth(cfg.Engine, RoleSuperAdmin), management.UserToAdmin)
	admin.Post("/admin-to-user", RequireAuth(cfg.Engine, RoleSuperAdmin), management.AdminToUser)
}

// FormatValidationErrors flattens ozzo validation errors into a list of
// "field: reason" strings for error payloads.
func FormatValidationErrors(err error) []string {
	if err == nil {
		return nil
	}

	if verrs, ok := err.(validation.Errors); ok {
		out := make([]string, 0, len(verrs))
		for field, ferr := range verrs {
			out = append(out, field+": "+ferr.Error())
		}
		sort.Strings(out)
		return out
	}

	return []string{err.Error()}
}

func respondError(c *fiber.Ctx, err error) error {
	status := HTTPStatus(err)

	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return c.Status(status).JSON(fiber.Map{
			"description": rich.Message,
			"errors":      []string{rich.Message},
		})
	}

	return c.Status(status).JSON(fiber.Map{
		"description": "An unexpected error occurred",
	})
}
