package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/PixelPet-dev/xlayerslot/auth"
	"github.com/PixelPet-dev/xlayerslot/errors"
)

// GameHandler bridges HTTP routes to the game service.
type GameHandler struct {
	svc    *GameService
	app    *App
	logger zerolog.Logger
}

func NewGameHandler(app *App, svc *GameService) *GameHandler {
	return &GameHandler{
		svc:    svc,
		app:    app,
		logger: app.logger.With().Str("handler", "game").Logger(),
	}
}

// Connect runs the wallet connection flow and mints a session token.
// Route: POST /api/session/connect
func (h *GameHandler) Connect(c *gin.Context) {
	snap, err := h.svc.Connect(c.Request.Context())
	if err != nil {
		HandleAppError(c, err)
		return
	}

	token, err := auth.GenerateToken(
		h.app.config.JWT.Secret,
		snap.Account.Hex(),
		snap.ChainID,
		h.app.config.JWT.Expiration,
	)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	OK(c, gin.H{
		"session": snap,
		"token":   token,
	})
}

// Session returns the current session snapshot.
// Route: GET /api/session
func (h *GameHandler) Session(c *gin.Context) {
	OK(c, h.svc.Session())
}

// Disconnect drops the local session.
// Route: POST /api/session/disconnect
func (h *GameHandler) Disconnect(c *gin.Context) {
	OK(c, h.svc.Disconnect())
}

// GetConfig returns the aggregate game configuration.
// Route: GET /api/game/config
func (h *GameHandler) GetConfig(c *gin.Context) {
	view, err := h.svc.Config(c.Request.Context())
	if err != nil {
		HandleAppError(c, err)
		return
	}
	OK(c, view)
}

type playRequest struct {
	Amount string `json:"amount" binding:"required"`
}

// Play places a bet and returns the resolved outcome with its reveal
// plan. A degraded resolution responds 200 with the placeholder result
// flagged, not an error status: the bet is on chain either way.
// Route: POST /api/game/play
func (h *GameHandler) Play(c *gin.Context) {
	if err := h.svc.ValidateConnected(); err != nil {
		HandleAppError(c, err)
		return
	}

	var req playRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, errors.Wrap(err, errors.ErrValidation, "invalid play request"))
		return
	}

	result, err := h.svc.Play(c.Request.Context(), req.Amount)
	if err != nil && !errors.IsCode(err, errors.ErrResolutionDegraded) {
		HandleAppError(c, err)
		return
	}
	OK(c, result)
}

// GetHistory returns the player's recent plays, newest first.
// Route: GET /api/game/history
func (h *GameHandler) GetHistory(c *gin.Context) {
	if err := h.svc.ValidateConnected(); err != nil {
		HandleAppError(c, err)
		return
	}
	OK(c, gin.H{"plays": h.svc.History(c.Request.Context())})
}

// Simulate runs the display-only preview spin.
// Route: GET /api/game/simulate
func (h *GameHandler) Simulate(c *gin.Context) {
	view, err := h.svc.Simulate(c.Request.Context())
	if err != nil {
		HandleAppError(c, err)
		return
	}
	OK(c, view)
}

// GetProfile returns the player's on-chain profile.
// Route: GET /api/user
func (h *GameHandler) GetProfile(c *gin.Context) {
	if err := h.svc.ValidateConnected(); err != nil {
		HandleAppError(c, err)
		return
	}
	profile, err := h.svc.Profile(c.Request.Context())
	if err != nil {
		HandleAppError(c, err)
		return
	}
	OK(c, profile)
}

type registerRequest struct {
	Nickname string `json:"nickname" binding:"required"`
}

// Register submits a user registration.
// Route: POST /api/user/register
func (h *GameHandler) Register(c *gin.Context) {
	if err := h.svc.ValidateConnected(); err != nil {
		HandleAppError(c, err)
		return
	}

	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, errors.Wrap(err, errors.ErrValidation, "invalid register request"))
		return
	}

	txHash, err := h.svc.Register(c.Request.Context(), req.Nickname)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	Success(c, http.StatusCreated, gin.H{"tx_hash": txHash.Hex()})
}

// Claim submits a pending-rewards claim.
// Route: POST /api/rewards/claim
func (h *GameHandler) Claim(c *gin.Context) {
	if err := h.svc.ValidateConnected(); err != nil {
		HandleAppError(c, err)
		return
	}
	txHash, err := h.svc.Claim(c.Request.Context())
	if err != nil {
		HandleAppError(c, err)
		return
	}
	OK(c, gin.H{"tx_hash": txHash.Hex()})
}

// GetBalance returns the player's token balance, preferring the
// poller's cached read over a live round trip.
// Route: GET /api/user/balance
func (h *GameHandler) GetBalance(c *gin.Context) {
	if err := h.svc.ValidateConnected(); err != nil {
		HandleAppError(c, err)
		return
	}

	if h.app.poller != nil {
		if balance, asOf := h.app.poller.Last(); balance != "" {
			OK(c, gin.H{"balance": balance, "as_of": asOf.Unix()})
			return
		}
	}

	balance, err := h.svc.Balance(c.Request.Context())
	if err != nil {
		HandleAppError(c, err)
		return
	}
	OK(c, gin.H{"balance": balance})
}
