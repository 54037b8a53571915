package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/dimasfr/careerlink-api/internal/auth"
	"github.com/dimasfr/careerlink-api/internal/middleware"
	"github.com/dimasfr/careerlink-api/internal/service"
	"github.com/dimasfr/careerlink-api/internal/utils"
)

// RelayHandler wires the websocket relay endpoint, gatekeeping each
// connection attempt before the upgrade completes.
type RelayHandler struct {
	service  service.RelayService
	verifier *auth.Verifier
	logger   zerolog.Logger
}

// NewRelayHandler creates a relay handler instance.
func NewRelayHandler(service service.RelayService, verifier *auth.Verifier, logger zerolog.Logger) *RelayHandler {
	return &RelayHandler{
		service:  service,
		verifier: verifier,
		logger:   logger.With().Str("component", "relay_handler").Logger(),
	}
}

// Register binds the relay websocket route under the provided group.
func (h *RelayHandler) Register(router fiber.Router) {
	router.Use("/ws", h.gatekeep)
	router.Get("/ws", websocket.New(h.handleConnection))
}

// gatekeep verifies the credential during the upgrade request. A rejected
// handshake never reaches the relay: no group membership, no activity
// entry, no open socket.
func (h *RelayHandler) gatekeep(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	token := c.Query("token")
	if token == "" {
		token = auth.BearerToken(c.Get("Authorization"))
	}

	claims, err := h.verifier.Verify(token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenMissing) {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}
		return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
	}

	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))

	c.Locals("relay_claims", claims)
	c.Locals("request_ctx", ctx)

	return c.Next()
}

func (h *RelayHandler) handleConnection(conn *websocket.Conn) {
	claims, ok := conn.Locals("relay_claims").(auth.Claims)
	if !ok {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "authentication required"))
		_ = conn.Close()
		return
	}

	baseCtx, _ := conn.Locals("request_ctx").(context.Context)

	opts := service.ConnectionOptions{
		Claims:        claims,
		CorrelationID: middleware.CorrelationIDFromContext(baseCtx),
		Context:       baseCtx,
	}

	h.logger.Info().Str("user_id", claims.UserID).Str("role", claims.Role).Msg("relay client connected")
	h.service.ServeConnection(conn, opts)
	h.logger.Info().Str("user_id", claims.UserID).Msg("relay client disconnected")
}
