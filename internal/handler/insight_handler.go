package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/dimasfr/careerlink-api/internal/dto"
	"github.com/dimasfr/careerlink-api/internal/middleware"
	"github.com/dimasfr/careerlink-api/internal/service"
	"github.com/dimasfr/careerlink-api/internal/utils"
)

// InsightHandler exposes the recommendation and analytics proxy as
// standalone request/response endpoints for callers outside the persistent
// connection model.
type InsightHandler struct {
	service service.InsightService
	logger  zerolog.Logger
}

// NewInsightHandler creates an insight handler instance.
func NewInsightHandler(service service.InsightService, logger zerolog.Logger) *InsightHandler {
	return &InsightHandler{
		service: service,
		logger:  logger.With().Str("component", "insight_handler").Logger(),
	}
}

// Register binds the proxy routes under the provided group. The group is
// expected to run behind JWTProtected.
func (h *InsightHandler) Register(router fiber.Router) {
	router.Post("/recommendations", h.recommendations)
	router.Get("/analytics/:userId", h.analytics)
}

func (h *InsightHandler) recommendations(c *fiber.Ctx) error {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	var req dto.RecommendationsRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return utils.SendErrorDetails(c, fiber.StatusBadRequest, "invalid payload", err.Error())
		}
	}

	envelope, err := h.service.RecommendationsFor(h.requestContext(c), claims.UserID, req)
	if err != nil {
		h.logger.Warn().Err(err).Str("user_id", claims.UserID).Msg("recommendations request failed")
		return utils.SendErrorDetails(c, fiber.StatusBadGateway, "failed to fetch recommendations", err.Error())
	}

	return utils.SendJSON(c, fiber.StatusOK, envelope)
}

func (h *InsightHandler) analytics(c *fiber.Ctx) error {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	subjectID := c.Params("userId")

	envelope, err := h.service.AnalyticsFor(h.requestContext(c), claims, subjectID)
	if err != nil {
		if errors.Is(err, service.ErrAccessDenied) {
			return utils.SendError(c, fiber.StatusForbidden, "access denied")
		}
		h.logger.Warn().Err(err).Str("subject_id", subjectID).Msg("analytics request failed")
		return utils.SendErrorDetails(c, fiber.StatusBadGateway, "failed to fetch analytics", err.Error())
	}

	return utils.SendJSON(c, fiber.StatusOK, envelope)
}

func (h *InsightHandler) requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}
