package service

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/dimasfr/careerlink-api/internal/auth"
	"github.com/dimasfr/careerlink-api/internal/dto"
	"github.com/dimasfr/careerlink-api/internal/models"
)

type stubRecorder struct {
	events []models.ActivityEvent
}

func (r *stubRecorder) Record(event models.ActivityEvent) models.ActivityEvent {
	r.events = append(r.events, event)
	return event
}

type stubInsightClient struct {
	items        []dto.RecommendationItem
	analytics    dto.AnalyticsEnvelope
	err          error
	analyticsHit int
}

func (c *stubInsightClient) Recommendations(_ context.Context, userID, category string, limit int) ([]dto.RecommendationItem, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.items, nil
}

func (c *stubInsightClient) Analytics(_ context.Context, userID string) (dto.AnalyticsEnvelope, error) {
	if c.err != nil {
		return dto.AnalyticsEnvelope{}, c.err
	}
	c.analyticsHit++
	envelope := c.analytics
	envelope.UserID = userID
	return envelope, nil
}

func newTestValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func TestInsightServiceRecommendationsDefaultsCategory(t *testing.T) {
	client := &stubInsightClient{items: []dto.RecommendationItem{{ID: "rec-1", Title: "Go Course", Type: "course", MatchScore: 0.8}}}
	recorder := &stubRecorder{}
	svc := NewInsightService(client, recorder, nil, time.Minute, newTestValidator(), testLogger())

	envelope, err := svc.RecommendationsFor(context.Background(), "user-1", dto.RecommendationsRequest{})
	require.NoError(t, err)
	require.Equal(t, "user-1", envelope.UserID)
	require.Len(t, envelope.Items, 1)
	require.False(t, envelope.GeneratedAt.IsZero())

	require.Len(t, recorder.events, 1)
	require.Equal(t, models.ActionRequestRecommendations, recorder.events[0].Action)
	require.Equal(t, "all", recorder.events[0].Details["category"])
}

func TestInsightServiceRecommendationsValidatesLimit(t *testing.T) {
	svc := NewInsightService(&stubInsightClient{}, &stubRecorder{}, nil, time.Minute, newTestValidator(), testLogger())

	_, err := svc.RecommendationsFor(context.Background(), "user-1", dto.RecommendationsRequest{Limit: 500})
	require.Error(t, err)
}

func TestInsightServiceRecommendationsUpstreamFailure(t *testing.T) {
	client := &stubInsightClient{err: errors.New("connection refused")}
	recorder := &stubRecorder{}
	svc := NewInsightService(client, recorder, nil, time.Minute, newTestValidator(), testLogger())

	_, err := svc.RecommendationsFor(context.Background(), "user-1", dto.RecommendationsRequest{})
	require.Error(t, err)
	require.Empty(t, recorder.events, "failed calls are not recorded")
}

func TestInsightServiceAnalyticsAuthorization(t *testing.T) {
	client := &stubInsightClient{analytics: dto.AnalyticsEnvelope{MarketFit: dto.MarketFit{Score: 0.7}}}
	svc := NewInsightService(client, &stubRecorder{}, nil, time.Minute, newTestValidator(), testLogger())

	student := auth.Claims{UserID: "student-1", Role: auth.RoleStudent}
	admin := auth.Claims{UserID: "admin-1", Role: auth.RoleAdmin}

	// Subject itself succeeds.
	envelope, err := svc.AnalyticsFor(context.Background(), student, "student-1")
	require.NoError(t, err)
	require.Equal(t, "student-1", envelope.UserID)

	// Another identity's analytics are denied for a regular role.
	_, err = svc.AnalyticsFor(context.Background(), student, "student-2")
	require.ErrorIs(t, err, ErrAccessDenied)

	// Administrators may read anyone's analytics.
	_, err = svc.AnalyticsFor(context.Background(), admin, "student-2")
	require.NoError(t, err)

	// Empty subject defaults to the caller.
	envelope, err = svc.AnalyticsFor(context.Background(), student, "")
	require.NoError(t, err)
	require.Equal(t, "student-1", envelope.UserID)
}

func TestInsightServiceAnalyticsCache(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer redisClient.Close()

	client := &stubInsightClient{analytics: dto.AnalyticsEnvelope{MarketFit: dto.MarketFit{Score: 0.9}}}
	recorder := &stubRecorder{}
	svc := NewInsightService(client, recorder, redisClient, time.Minute, newTestValidator(), testLogger())

	actor := auth.Claims{UserID: "user-1", Role: auth.RoleStudent}

	first, err := svc.AnalyticsFor(context.Background(), actor, "user-1")
	require.NoError(t, err)
	require.Equal(t, 1, client.analyticsHit)

	second, err := svc.AnalyticsFor(context.Background(), actor, "user-1")
	require.NoError(t, err)
	require.Equal(t, 1, client.analyticsHit, "second read is served from cache")
	require.Equal(t, first.MarketFit.Score, second.MarketFit.Score)

	// Both calls are still recorded.
	require.Len(t, recorder.events, 2)
	require.Equal(t, models.ActionRequestAnalytics, recorder.events[1].Action)
	require.Equal(t, true, recorder.events[1].Details["cached"])
}
