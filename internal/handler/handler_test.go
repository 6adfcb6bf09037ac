package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/munon-registry/internal/config"
	"github.com/iliyamo/munon-registry/internal/middleware"
	"github.com/iliyamo/munon-registry/internal/registry"
	"github.com/iliyamo/munon-registry/internal/repository"
	"github.com/iliyamo/munon-registry/internal/utils"
)

const (
	host    = "0x1111111111111111111111111111111111111111"
	alice   = "0x2222222222222222222222222222222222222222"
	sponsor = "0x3333333333333333333333333333333333333333"
)

// asCaller stands in for JWTAuth: the X-Caller header becomes the
// authenticated address.
func asCaller(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if addr := c.Request().Header.Get("X-Caller"); addr != "" {
			c.Set(middleware.AddressKey, addr)
		}
		return next(c)
	}
}

func newRegistryServer(t *testing.T) (*echo.Echo, *registry.Registry) {
	t.Helper()
	reg := registry.New()
	h := NewRegistryHandler(reg)
	e := echo.New()
	g := e.Group("/v1", asCaller)
	g.POST("/hackathons", h.CreateHackathon)
	g.POST("/hackathons/:id/join", h.Join)
	g.POST("/hackathons/:id/sponsor", h.Sponsor)
	g.POST("/hackathons/:id/finish", h.FinishHackathon)
	g.GET("/hackathons/count", h.Count)
	g.GET("/hackathons/:id", h.Get)
	g.GET("/hackathons/:id/participants/:address", h.ParticipantHasJoined)
	g.GET("/registry/balance", h.Balance)
	g.GET("/registry/events", h.Events)
	return e, reg
}

func call(e *echo.Echo, method, target, caller, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if caller != "" {
		req.Header.Set("X-Caller", caller)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

const createBody = `{"name":"Test Hackathon","image_hash":"QmTestHash","registration_fee":100,"metrics":["Innovation","Impact"]}`

func TestRegistryHandlerLifecycle(t *testing.T) {
	e, reg := newRegistryServer(t)

	rec := call(e, http.MethodPost, "/v1/hackathons", host, createBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.EqualValues(t, 1, decode(t, rec)["id"])

	rec = call(e, http.MethodGet, "/v1/hackathons/count", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["hackathon_count"])

	rec = call(e, http.MethodPost, "/v1/hackathons/1/join", alice, `{"payment":100}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = call(e, http.MethodGet, "/v1/hackathons/1/participants/"+strings.ToUpper(alice[2:]), "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "address without 0x prefix")

	rec = call(e, http.MethodGet, "/v1/hackathons/1/participants/"+alice, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["joined"])

	rec = call(e, http.MethodPost, "/v1/hackathons/1/sponsor", sponsor, `{"payment":500}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 500, decode(t, rec)["pot"])

	rec = call(e, http.MethodPost, "/v1/hackathons/1/finish", host, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 2, decode(t, rec)["status"])

	rec = call(e, http.MethodGet, "/v1/hackathons/1", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode(t, rec)
	assert.Equal(t, "Test Hackathon", got["name"])
	assert.Equal(t, host, got["host"])
	assert.EqualValues(t, 500, got["pot"])
	assert.Equal(t, []any{alice}, got["participants"])

	rec = call(e, http.MethodGet, "/v1/registry/balance", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 600, decode(t, rec)["balance"])
	assert.EqualValues(t, 600, reg.Balance())

	rec = call(e, http.MethodGet, "/v1/registry/events", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var events []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.EqualValues(t, 1, events[0]["id"])
	assert.Equal(t, host, events[0]["host"])
}

func TestRegistryHandlerTuple(t *testing.T) {
	e, _ := newRegistryServer(t)
	require.Equal(t, http.StatusCreated, call(e, http.MethodPost, "/v1/hackathons", host, createBody).Code)

	rec := call(e, http.MethodGet, "/v1/hackathons/1?format=tuple", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var tuple []any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tuple))
	require.Len(t, tuple, 7)
	assert.Equal(t, "Test Hackathon", tuple[0])
	assert.EqualValues(t, 1, tuple[1])
	assert.Equal(t, host, tuple[2])
	assert.Equal(t, "QmTestHash", tuple[3])
	assert.EqualValues(t, 100, tuple[4])
	assert.EqualValues(t, 0, tuple[5])
	assert.Equal(t, []any{"Innovation", "Impact"}, tuple[6])

	t.Run("unknown id is the zero record", func(t *testing.T) {
		rec := call(e, http.MethodGet, "/v1/hackathons/42?format=tuple", "", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var zero []any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &zero))
		assert.Equal(t, []any{"", float64(0), "", "", float64(0), float64(0), []any{}}, zero)
	})
}

func TestRegistryHandlerErrors(t *testing.T) {
	e, _ := newRegistryServer(t)
	require.Equal(t, http.StatusCreated, call(e, http.MethodPost, "/v1/hackathons", host, createBody).Code)

	cases := []struct {
		name   string
		method string
		target string
		caller string
		body   string
		status int
		msg    string
	}{
		{"no metrics", http.MethodPost, "/v1/hackathons", host, `{"name":"x","metrics":[]}`, http.StatusBadRequest, "There must be at least one metric"},
		{"wrong fee", http.MethodPost, "/v1/hackathons/1/join", alice, `{"payment":50}`, http.StatusBadRequest, "Amount not equal to pay fee"},
		{"missing payment", http.MethodPost, "/v1/hackathons/1/join", alice, `{}`, http.StatusBadRequest, "payment is required"},
		{"bad id", http.MethodPost, "/v1/hackathons/abc/join", alice, `{"payment":100}`, http.StatusBadRequest, "invalid hackathon id"},
		{"unknown hackathon", http.MethodPost, "/v1/hackathons/9/sponsor", sponsor, `{"payment":1}`, http.StatusNotFound, "Hackathon does not exist"},
		{"not host", http.MethodPost, "/v1/hackathons/1/finish", alice, "", http.StatusForbidden, "You are not the hackathon host"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := call(e, tc.method, tc.target, tc.caller, tc.body)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.Equal(t, tc.msg, decode(t, rec)["error"])
		})
	}

	t.Run("finished hackathon rejects sponsors", func(t *testing.T) {
		require.Equal(t, http.StatusOK, call(e, http.MethodPost, "/v1/hackathons/1/finish", host, "").Code)
		rec := call(e, http.MethodPost, "/v1/hackathons/1/sponsor", sponsor, `{"payment":1}`)
		require.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "Hackathon is finished", decode(t, rec)["error"])
	})
}

func TestAuthHandler(t *testing.T) {
	cfg := config.Config{JWTSecret: "test-secret", AccessTTLMin: 5, BcryptCost: 4}
	accounts := repository.NewMemoryAccountRepo()
	h := NewAuthHandler(cfg, accounts)

	e := echo.New()
	e.POST("/v1/auth/register", h.Register)
	e.POST("/v1/auth/login", h.Login)
	e.GET("/v1/accounts", h.ListAccounts)
	e.GET("/v1/me", h.Me, middleware.JWTAuth(cfg.JWTSecret))

	rec := call(e, http.MethodPost, "/v1/auth/register", "", `{"password":"short"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(e, http.MethodPost, "/v1/auth/register", "", `{"password":"correct horse"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var reg authResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reg))
	addr, ok := utils.NormalizeAddress(reg.Account.Address)
	require.True(t, ok)
	assert.Equal(t, reg.Account.Address, addr)

	t.Run("login", func(t *testing.T) {
		rec := call(e, http.MethodPost, "/v1/auth/login", "", `{"address":"`+addr+`","password":"wrong password"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		rec = call(e, http.MethodPost, "/v1/auth/login", "", `{"address":"`+strings.ToUpper(addr[2:])+`","password":"correct horse"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = call(e, http.MethodPost, "/v1/auth/login", "", `{"address":"0X`+strings.ToUpper(addr[2:])+`","password":"correct horse"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var out authResp
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		subject, err := utils.ParseAccessToken(cfg.JWTSecret, out.Access.Token)
		require.NoError(t, err)
		assert.Equal(t, addr, subject)
	})

	t.Run("me", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+reg.Access.Token)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, addr, decode(t, rec)["address"])
	})

	t.Run("list", func(t *testing.T) {
		rec := call(e, http.MethodGet, "/v1/accounts", "", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var list []accountPart
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
		require.Len(t, list, 1)
		assert.Equal(t, addr, list[0].Address)
	})
}

func TestHealth(t *testing.T) {
	e := echo.New()
	e.GET("/healthz", Health)
	rec := call(e, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
