package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type routerFixture struct {
	app    *fiber.App
	users  *memUserStore
	tokens *memTokenStore
	engine *TokenEngine
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	users := newMemUserStore()
	tokens := newMemTokenStore()
	engine := newTestEngine(t, users, tokens)

	app := fiber.New()
	RegisterRoutes(app, RouterConfig{
		Engine:       engine,
		Login:        NewLoginFlow(users, engine, WithLoginFlowLogger(nopLogger{})),
		Registration: NewRegistration(users, WithRegistrationLogger(nopLogger{})),
		Manager:      NewUserManager(users, WithUserManagerLogger(nopLogger{})),
		Logger:       nopLogger{},
	})

	return &routerFixture{app: app, users: users, tokens: tokens, engine: engine}
}

func (f *routerFixture) do(t *testing.T, method, path, bearer string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if bearer != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+bearer)
	}

	res, err := f.app.Test(req, -1)
	require.NoError(t, err)
	return res
}

func decodeBody(t *testing.T, res *http.Response) map[string]any {
	t.Helper()

	var payload map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&payload))
	return payload
}

func (f *routerFixture) adminToken(t *testing.T, roles ...RoleName) string {
	t.Helper()

	admin := f.users.seedUser(&User{
		Username: "admin-" + roles[len(roles)-1],
		Email:    "admin-" + roles[len(roles)-1] + "@example.com",
	}, "secret", roles...)

	token, err := f.engine.GenerateAccessToken(context.Background(), admin)
	require.NoError(t, err)
	return token
}

func TestAccountRegisterEndpoint(t *testing.T) {
	fixture := newRouterFixture(t)

	t.Run("success", func(t *testing.T) {
		res := fixture.do(t, http.MethodPost, "/api/account/register", "", validRegisterRequest())
		assert.Equal(t, http.StatusOK, res.StatusCode)

		payload := decodeBody(t, res)
		assert.Equal(t, "Register was successful", payload["description"])
		require.Contains(t, payload, "user")
	})

	t.Run("validation failure", func(t *testing.T) {
		req := validRegisterRequest()
		req.Password = "short"

		res := fixture.do(t, http.MethodPost, "/api/account/register", "", req)
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)

		payload := decodeBody(t, res)
		assert.Equal(t, "Register data is not valid", payload["description"])
	})

	t.Run("duplicate email", func(t *testing.T) {
		req := validRegisterRequest()
		req.Username = "someone-else"
		req.Phone = "2125550166"

		res := fixture.do(t, http.MethodPost, "/api/account/register", "", req)
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)

		payload := decodeBody(t, res)
		assert.Equal(t, []any{"Email already exists"}, payload["errors"])
	})
}

func TestAccountLoginEndpoint(t *testing.T) {
	fixture := newRouterFixture(t)

	fixture.users.seedUser(&User{
		Username: "alice",
		Email:    "alice@example.com",
		Status:   UserStatusActive,
	}, "correct horse battery", RoleUser)

	t.Run("success returns a token pair", func(t *testing.T) {
		res := fixture.do(t, http.MethodPost, "/api/account/login", "", LoginRequest{
			Identifier: "alice",
			Password:   "correct horse battery",
		})
		assert.Equal(t, http.StatusOK, res.StatusCode)

		payload := decodeBody(t, res)
		assert.NotEmpty(t, payload["accessToken"])
		assert.NotEmpty(t, payload["refreshToken"])
	})

	t.Run("bad credentials", func(t *testing.T) {
		res := fixture.do(t, http.MethodPost, "/api/account/login", "", LoginRequest{
			Identifier: "alice",
			Password:   "wrong",
		})
		assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

		payload := decodeBody(t, res)
		assert.Equal(t, []any{"Password does not match"}, payload["errors"])
	})

	t.Run("missing fields", func(t *testing.T) {
		res := fixture.do(t, http.MethodPost, "/api/account/login", "", LoginRequest{})
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	})
}

func TestAccountRefreshEndpoint(t *testing.T) {
	fixture := newRouterFixture(t)

	user := fixture.users.seedUser(&User{
		Username: "bob",
		Email:    "bob@example.com",
		Status:   UserStatusActive,
	}, "secret", RoleUser)

	pair, err := fixture.engine.GenerateTokens(context.Background(), user)
	require.NoError(t, err)

	t.Run("rotates the pair", func(t *testing.T) {
		res := fixture.do(t, http.MethodPost, "/api/account/refresh-token", "",
			map[string]string{"refreshToken": pair.RefreshToken})
		assert.Equal(t, http.StatusOK, res.StatusCode)

		payload := decodeBody(t, res)
		assert.NotEmpty(t, payload["accessToken"])
		assert.NotEqual(t, pair.RefreshToken, payload["refreshToken"])
	})

	t.Run("redeemed value is dead", func(t *testing.T) {
		res := fixture.do(t, http.MethodPost, "/api/account/refresh-token", "",
			map[string]string{"refreshToken": pair.RefreshToken})
		assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	})

	t.Run("missing token", func(t *testing.T) {
		res := fixture.do(t, http.MethodPost, "/api/account/refresh-token", "",
			map[string]string{})
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	})
}

func TestUserManagementEndpoints(t *testing.T) {
	fixture := newRouterFixture(t)

	adminToken := fixture.adminToken(t, RoleUser, RoleAdmin)
	superToken := fixture.adminToken(t, RoleUser, RoleAdmin, RoleSuperAdmin)

	target := fixture.users.seedUser(&User{
		Username: "target",
		Email:    "target@example.com",
		Status:   UserStatusActive,
	}, "secret", RoleUser)

	t.Run("unauthenticated requests are rejected", func(t *testing.T) {
		res := fixture.do(t, http.MethodGet, "/api/user-management/get-all-users", "", nil)
		assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	})

	t.Run("get-all-users", func(t *testing.T) {
		res := fixture.do(t, http.MethodGet, "/api/user-management/get-all-users", adminToken, nil)
		assert.Equal(t, http.StatusOK, res.StatusCode)

		var dtos []UserDTO
		require.NoError(t, json.NewDecoder(res.Body).Decode(&dtos))
		assert.NotEmpty(t, dtos)
	})

	t.Run("search requires a query", func(t *testing.T) {
		res := fixture.do(t, http.MethodGet, "/api/user-management/search", adminToken, nil)
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	})

	t.Run("search finds matches", func(t *testing.T) {
		res := fixture.do(t, http.MethodGet, "/api/user-management/search?query=target", adminToken, nil)
		assert.Equal(t, http.StatusOK, res.StatusCode)
	})

	t.Run("search misses return 404", func(t *testing.T) {
		res := fixture.do(t, http.MethodGet, "/api/user-management/search?query=zzz-nobody", adminToken, nil)
		assert.Equal(t, http.StatusNotFound, res.StatusCode)
	})

	t.Run("role changes require superadmin", func(t *testing.T) {
		res := fixture.do(t, http.MethodPost, "/api/user-management/user-to-admin?userId="+target.ID.String(), adminToken, nil)
		assert.Equal(t, http.StatusForbidden, res.StatusCode)

		res = fixture.do(t, http.MethodPost, "/api/user-management/user-to-admin?userId="+target.ID.String(), superToken, nil)
		assert.Equal(t, http.StatusOK, res.StatusCode)
	})

	t.Run("repeated promotion conflicts", func(t *testing.T) {
		res := fixture.do(t, http.MethodPost, "/api/user-management/user-to-admin?userId="+target.ID.String(), superToken, nil)
		assert.Equal(t, http.StatusConflict, res.StatusCode)
	})

	t.Run("change status", func(t *testing.T) {
		res := fixture.do(t, http.MethodPost, "/api/user-management/change-status-user?userId="+target.ID.String(),
			adminToken, map[string]string{"status": UserStatusSuspended})
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, UserStatusSuspended, target.Status)
	})

	t.Run("edit user", func(t *testing.T) {
		res := fixture.do(t, http.MethodPut, "/api/user-management/edit-user?userId="+target.ID.String(),
			adminToken, EditUserRequest{FirstName: "Renamed"})
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, "Renamed", target.FirstName)
	})

	t.Run("edit unknown user", func(t *testing.T) {
		res := fixture.do(t, http.MethodPut, "/api/user-management/edit-user?userId=00000000-0000-0000-0000-000000000001",
			adminToken, EditUserRequest{FirstName: "Ghost"})
		assert.Equal(t, http.StatusNotFound, res.StatusCode)
	})
}
