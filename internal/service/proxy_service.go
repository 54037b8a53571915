package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/dimasfr/careerlink-api/internal/auth"
	"github.com/dimasfr/careerlink-api/internal/dto"
	"github.com/dimasfr/careerlink-api/internal/models"
)

// ErrAccessDenied indicates a valid identity requested a scope it does not
// hold, distinct from a missing or invalid credential.
var ErrAccessDenied = errors.New("access denied")

// InsightClient is the upstream collaborator surface; *insight.Client
// satisfies it.
type InsightClient interface {
	Recommendations(ctx context.Context, userID, category string, limit int) ([]dto.RecommendationItem, error)
	Analytics(ctx context.Context, userID string) (dto.AnalyticsEnvelope, error)
}

// InsightService forwards pull requests to the upstream insight service,
// records each successful call, and enforces analytics read access.
type InsightService interface {
	RecommendationsFor(ctx context.Context, userID string, req dto.RecommendationsRequest) (dto.RecommendationsEnvelope, error)
	AnalyticsFor(ctx context.Context, actor auth.Claims, subjectID string) (dto.AnalyticsEnvelope, error)
}

type insightService struct {
	client    InsightClient
	recorder  ActivityRecorder
	cache     *redis.Client
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewInsightService builds the proxy service. The Redis cache is optional;
// without it every analytics call reaches the upstream.
func NewInsightService(client InsightClient, recorder ActivityRecorder, cache *redis.Client, cacheTTL time.Duration, validate *validator.Validate, logger zerolog.Logger) InsightService {
	return &insightService{
		client:    client,
		recorder:  recorder,
		cache:     cache,
		cacheTTL:  cacheTTL,
		validator: validate,
		logger:    logger.With().Str("component", "insight_service").Logger(),
		now:       time.Now,
	}
}

func (s *insightService) RecommendationsFor(ctx context.Context, userID string, req dto.RecommendationsRequest) (dto.RecommendationsEnvelope, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.RecommendationsEnvelope{}, err
	}

	category := strings.TrimSpace(req.Category)
	if category == "" {
		category = "all"
	}

	items, err := s.client.Recommendations(ctx, userID, category, req.Limit)
	if err != nil {
		return dto.RecommendationsEnvelope{}, fmt.Errorf("fetch recommendations: %w", err)
	}

	s.recorder.Record(models.ActivityEvent{
		UserID: userID,
		Action: models.ActionRequestRecommendations,
		Details: map[string]interface{}{
			"category": category,
			"limit":    req.Limit,
			"count":    len(items),
		},
	})

	return dto.RecommendationsEnvelope{
		UserID:      userID,
		GeneratedAt: s.now().UTC(),
		Items:       items,
	}, nil
}

func (s *insightService) AnalyticsFor(ctx context.Context, actor auth.Claims, subjectID string) (dto.AnalyticsEnvelope, error) {
	if subjectID == "" {
		subjectID = actor.UserID
	}

	// Only the subject itself or an administrator may read analytics.
	if subjectID != actor.UserID && !actor.Privileged() {
		return dto.AnalyticsEnvelope{}, ErrAccessDenied
	}

	envelope, cached := s.cachedAnalytics(ctx, subjectID)
	if !cached {
		var err error
		envelope, err = s.client.Analytics(ctx, subjectID)
		if err != nil {
			return dto.AnalyticsEnvelope{}, fmt.Errorf("fetch analytics: %w", err)
		}
		envelope.GeneratedAt = s.now().UTC()
		s.storeAnalytics(ctx, subjectID, envelope)
	}

	s.recorder.Record(models.ActivityEvent{
		UserID: actor.UserID,
		Action: models.ActionRequestAnalytics,
		Details: map[string]interface{}{
			"subjectId": subjectID,
			"cached":    cached,
		},
	})

	return envelope, nil
}

func (s *insightService) cachedAnalytics(ctx context.Context, subjectID string) (dto.AnalyticsEnvelope, bool) {
	if s.cache == nil {
		return dto.AnalyticsEnvelope{}, false
	}

	raw, err := s.cache.Get(ctx, analyticsCacheKey(subjectID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read analytics cache")
		}
		return dto.AnalyticsEnvelope{}, false
	}

	var envelope dto.AnalyticsEnvelope
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		s.logger.Warn().Err(err).Msg("failed to unmarshal cached analytics")
		return dto.AnalyticsEnvelope{}, false
	}

	s.logger.Debug().Str("subject_id", subjectID).Msg("analytics cache hit")
	return envelope, true
}

func (s *insightService) storeAnalytics(ctx context.Context, subjectID string, envelope dto.AnalyticsEnvelope) {
	if s.cache == nil {
		return
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to marshal analytics for cache")
		return
	}

	if err := s.cache.Set(ctx, analyticsCacheKey(subjectID), payload, s.cacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to store analytics cache")
	}
}

func analyticsCacheKey(subjectID string) string {
	return "analytics:user:" + subjectID
}
