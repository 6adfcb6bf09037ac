package handler

import (
    "context"  // provides context with cancellation for store calls
    "errors"   // errors.Is on repository sentinels
    "net/http" // HTTP status codes and primitives
    "strings"  // string manipulation utilities
    "time"     // timeouts for store calls

    "github.com/labstack/echo/v4" // Echo framework for HTTP routing

    "github.com/iliyamo/munon-registry/internal/config"     // app configuration
    "github.com/iliyamo/munon-registry/internal/middleware" // caller address from the JWT
    "github.com/iliyamo/munon-registry/internal/model"      // account model
    "github.com/iliyamo/munon-registry/internal/repository" // account stores
    "github.com/iliyamo/munon-registry/internal/utils"      // hashing, addresses, token issuing
)

// AuthHandler bundles dependencies for account endpoints.  An account is
// the identity the registry sees as host, participant or sponsor.
type AuthHandler struct {
	Cfg      config.Config
	Accounts repository.AccountStore
}

func NewAuthHandler(cfg config.Config, accounts repository.AccountStore) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Accounts: accounts}
}

// ----- DTOs -----

type registerReq struct {
	Password string `json:"password"`
}
type loginReq struct {
	Address  string `json:"address"`
	Password string `json:"password"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type accountPart struct {
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
}
type authResp struct {
	Account accountPart `json:"account"`
	Access  tokenPart   `json:"access"`
}

// Register: create an account with a fresh address and return an access
// token immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password required"})
	}
	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, utils.ErrPasswordTooShort) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "hash password failed"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	var acc model.Account
	// A collision on 20 random bytes is not expected; retry once anyway
	// rather than surface a conflict the client cannot fix.
	for attempt := 0; attempt < 2; attempt++ {
		addr, err := utils.NewAddress()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "generate address failed"})
		}
		acc = model.Account{Address: addr, PasswordHash: hash, CreatedAt: time.Now().UTC()}
		err = h.Accounts.Create(ctx, acc)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrAccountExists) || attempt == 1 {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create account failed"})
		}
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, acc.Address, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}
	return c.JSON(http.StatusCreated, authResp{
		Account: accountPart{Address: acc.Address, CreatedAt: acc.CreatedAt},
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// Login: verify address and password and return a new access token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	addr, ok := utils.NormalizeAddress(strings.TrimSpace(req.Address))
	if !ok || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "address/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	acc, err := h.Accounts.GetByAddress(ctx, addr)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !utils.VerifyPassword(acc.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, acc.Address, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}
	return c.JSON(http.StatusOK, authResp{
		Account: accountPart{Address: acc.Address, CreatedAt: acc.CreatedAt},
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// Me: simple protected endpoint returning the caller address.
func (h *AuthHandler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"address": middleware.CallerAddress(c)})
}

// ListAccounts returns every registered address, oldest first.
func (h *AuthHandler) ListAccounts(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	accs, err := h.Accounts.List(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list accounts failed"})
	}
	out := make([]accountPart, 0, len(accs))
	for _, a := range accs {
		out = append(out, accountPart{Address: a.Address, CreatedAt: a.CreatedAt})
	}
	return c.JSON(http.StatusOK, out)
}
