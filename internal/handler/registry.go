package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/munon-registry/internal/middleware"
	"github.com/iliyamo/munon-registry/internal/registry"
	"github.com/iliyamo/munon-registry/internal/utils"
)

// RegistryHandler exposes the hackathon registry over HTTP.  Mutating
// endpoints run behind JWTAuth; the authenticated address is the caller.
type RegistryHandler struct {
	Registry *registry.Registry
}

// NewRegistryHandler panics on a nil registry.
func NewRegistryHandler(r *registry.Registry) *RegistryHandler {
	if r == nil {
		panic("nil registry passed to NewRegistryHandler")
	}
	return &RegistryHandler{Registry: r}
}

type createReq struct {
	Name            string   `json:"name"`
	ImageHash       string   `json:"image_hash"`
	RegistrationFee uint64   `json:"registration_fee"`
	Metrics         []string `json:"metrics"`
}

// CreateHackathon handles POST /v1/hackathons.  Returns 201 with the new id.
func (h *RegistryHandler) CreateHackathon(c echo.Context) error {
	var req createReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	id, err := h.Registry.CreateHackathon(c.Request().Context(), middleware.CallerAddress(c), registry.CreateInput{
		Name:            req.Name,
		ImageHash:       req.ImageHash,
		RegistrationFee: req.RegistrationFee,
		Metrics:         req.Metrics,
	})
	if err != nil {
		return registryError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": id})
}

// Join handles POST /v1/hackathons/:id/join with body {"payment": n}.
func (h *RegistryHandler) Join(c echo.Context) error {
	id, payment, err := bindPayment(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if err := h.Registry.Join(c.Request().Context(), id, middleware.CallerAddress(c), payment); err != nil {
		return registryError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "joined": true})
}

// Sponsor handles POST /v1/hackathons/:id/sponsor with body {"payment": n}.
func (h *RegistryHandler) Sponsor(c echo.Context) error {
	id, payment, err := bindPayment(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if err := h.Registry.Sponsor(c.Request().Context(), id, middleware.CallerAddress(c), payment); err != nil {
		return registryError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "pot": h.Registry.Hackathons(id).Pot})
}

// FinishHackathon handles POST /v1/hackathons/:id/finish.
func (h *RegistryHandler) FinishHackathon(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid hackathon id"})
	}
	if err := h.Registry.FinishHackathon(c.Request().Context(), id, middleware.CallerAddress(c)); err != nil {
		return registryError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "status": h.Registry.Hackathons(id).Status})
}

// Count handles GET /v1/hackathons/count.
func (h *RegistryHandler) Count(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"hackathon_count": h.Registry.HackathonCount()})
}

// Get handles GET /v1/hackathons/:id.  Unknown ids return the zero record;
// ?format=tuple returns the positional array form.
func (h *RegistryHandler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid hackathon id"})
	}
	rec := h.Registry.Hackathons(id)
	if strings.EqualFold(c.QueryParam("format"), "tuple") {
		return c.JSON(http.StatusOK, rec.Tuple())
	}
	if rec.Metrics == nil {
		rec.Metrics = []string{}
	}
	if rec.Participants == nil {
		rec.Participants = []string{}
	}
	return c.JSON(http.StatusOK, rec)
}

// ParticipantHasJoined handles GET /v1/hackathons/:id/participants/:address.
func (h *RegistryHandler) ParticipantHasJoined(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid hackathon id"})
	}
	addr, ok := utils.NormalizeAddress(c.Param("address"))
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid address"})
	}
	return c.JSON(http.StatusOK, echo.Map{"joined": h.Registry.ParticipantHasJoined(id, addr)})
}

// Balance handles GET /v1/registry/balance.
func (h *RegistryHandler) Balance(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"balance": h.Registry.Balance()})
}

// Events handles GET /v1/registry/events.
func (h *RegistryHandler) Events(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Registry.Events())
}

func bindPayment(c echo.Context) (uint64, uint64, error) {
	id, err := parseID(c)
	if err != nil {
		return 0, 0, errors.New("invalid hackathon id")
	}
	var req paymentReq
	if err := c.Bind(&req); err != nil {
		return 0, 0, errors.New("invalid request body")
	}
	if req.Payment == nil {
		return 0, 0, errors.New("payment is required")
	}
	return id, *req.Payment, nil
}
