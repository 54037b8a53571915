package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/dimasfr/careerlink-api/internal/auth"
	"github.com/dimasfr/careerlink-api/internal/dto"
	"github.com/dimasfr/careerlink-api/internal/models"
)

// fakeConn is an in-memory relay transport; frames pushed to in are read by
// the service, frames the service writes land in out.
type fakeConn struct {
	in   chan dto.Frame
	out  chan dto.Frame
	done chan struct{}
	once sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:   make(chan dto.Frame, 16),
		out:  make(chan dto.Frame, 64),
		done: make(chan struct{}),
	}
}

func (f *fakeConn) ReadJSON(v interface{}) error {
	select {
	case frame := <-f.in:
		raw, err := json.Marshal(frame)
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, v)
	case <-f.done:
		return io.EOF
	}
}

func (f *fakeConn) WriteJSON(v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var frame dto.Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return err
	}
	select {
	case f.out <- frame:
		return nil
	case <-f.done:
		return io.EOF
	}
}

func (f *fakeConn) WriteMessage(int, []byte) error { return nil }

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.done) })
	return nil
}

func (f *fakeConn) push(t *testing.T, event string, payload interface{}) {
	t.Helper()
	frame, err := dto.NewFrame(event, payload)
	require.NoError(t, err)
	f.in <- frame
}

func (f *fakeConn) next(t *testing.T) dto.Frame {
	t.Helper()
	select {
	case frame := <-f.out:
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return dto.Frame{}
	}
}

type fakeInsightService struct {
	recommendationsErr error
	analyticsErr       error
}

func (f *fakeInsightService) RecommendationsFor(_ context.Context, userID string, req dto.RecommendationsRequest) (dto.RecommendationsEnvelope, error) {
	if f.recommendationsErr != nil {
		return dto.RecommendationsEnvelope{}, f.recommendationsErr
	}
	return dto.RecommendationsEnvelope{
		UserID:      userID,
		GeneratedAt: time.Now().UTC(),
		Items: []dto.RecommendationItem{
			{ID: "rec-1", Title: "Backend Engineering Path", Type: "course", MatchScore: 0.92, Skills: []string{"go", "sql"}},
		},
	}, nil
}

func (f *fakeInsightService) AnalyticsFor(_ context.Context, actor auth.Claims, subjectID string) (dto.AnalyticsEnvelope, error) {
	if f.analyticsErr != nil {
		return dto.AnalyticsEnvelope{}, f.analyticsErr
	}
	return dto.AnalyticsEnvelope{UserID: subjectID, GeneratedAt: time.Now().UTC()}, nil
}

func newTestRelay(t *testing.T, insight InsightService) (RelayService, *ActivityStream) {
	t.Helper()
	stream := NewActivityStream(NewActivityLog(100), testLogger())
	svc := NewRelayService(RelayOptions{
		Stream:    stream,
		Insight:   insight,
		Validator: validator.New(validator.WithRequiredStructEnabled()),
		Logger:    testLogger(),
	})
	return svc, stream
}

func serve(t *testing.T, svc RelayService, stream *ActivityStream, claims auth.Claims) *fakeConn {
	t.Helper()
	conn := newFakeConn()
	go svc.ServeConnection(conn, ConnectionOptions{Claims: claims, Context: context.Background()})
	require.Eventually(t, func() bool {
		return stream.hub.members(claims.Role) > 0
	}, time.Second, 5*time.Millisecond)
	return conn
}

func TestRelayJobApplicationEndToEnd(t *testing.T) {
	svc, stream := newTestRelay(t, &fakeInsightService{})

	receiver := serve(t, svc, stream, auth.Claims{UserID: "recruiter-1", Role: auth.RoleEmployer, EmployerID: "emp-7"})
	defer receiver.Close()

	sender := serve(t, svc, stream, auth.Claims{UserID: "user-u", Role: auth.RoleStudent})
	defer sender.Close()

	sender.push(t, dto.EventUserAction, dto.UserActionRequest{
		Type:     "apply-job",
		TargetID: "job-42",
		Details:  map[string]interface{}{"employerId": "emp-7"},
	})

	frame := receiver.next(t)
	require.Equal(t, dto.EventJobApplication, frame.Event)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(frame.Data, &payload))
	require.Equal(t, "user-u", payload["userId"])
	require.Equal(t, "job-42", payload["jobId"])
	require.NotEmpty(t, payload["timestamp"])

	snapshot := stream.Snapshot()
	last := snapshot[len(snapshot)-1]
	require.Equal(t, "apply-job", last.Action)
	require.Equal(t, "job-42", last.TargetID)
	require.Equal(t, "user-u", last.UserID)
}

func TestRelayScopedNotificationIsolation(t *testing.T) {
	svc, stream := newTestRelay(t, &fakeInsightService{})

	empA := serve(t, svc, stream, auth.Claims{UserID: "a", Role: auth.RoleEmployer, EmployerID: "emp-a"})
	defer empA.Close()

	empB := serve(t, svc, stream, auth.Claims{UserID: "b", Role: auth.RoleEmployer, EmployerID: "emp-b"})
	defer empB.Close()

	require.Eventually(t, func() bool {
		return stream.hub.members("employer-emp-a") == 1 && stream.hub.members("employer-emp-b") == 1
	}, time.Second, 5*time.Millisecond)

	sender := serve(t, svc, stream, auth.Claims{UserID: "user-u", Role: auth.RoleStudent})
	defer sender.Close()

	sender.push(t, dto.EventUserAction, dto.UserActionRequest{
		Type:     "apply-job",
		TargetID: "job-1",
		Details:  map[string]interface{}{"employerId": "emp-a"},
	})

	frame := empA.next(t)
	require.Equal(t, dto.EventJobApplication, frame.Event)

	select {
	case frame := <-empB.out:
		t.Fatalf("employer B must not receive notifications scoped to employer A, got %s", frame.Event)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRelayRecommendationsRoundTrip(t *testing.T) {
	svc, stream := newTestRelay(t, &fakeInsightService{})

	conn := serve(t, svc, stream, auth.Claims{UserID: "user-u", Role: auth.RoleStudent})
	defer conn.Close()

	conn.push(t, dto.EventGetRecommendations, dto.RecommendationsRequest{Category: "course", Limit: 5})

	frame := conn.next(t)
	require.Equal(t, dto.EventRecommendations, frame.Event)

	var envelope dto.RecommendationsEnvelope
	require.NoError(t, json.Unmarshal(frame.Data, &envelope))
	require.Equal(t, "user-u", envelope.UserID)
	require.Len(t, envelope.Items, 1)
	require.Equal(t, "Backend Engineering Path", envelope.Items[0].Title)
}

func TestRelayUpstreamFailureKeepsConnectionAlive(t *testing.T) {
	svc, stream := newTestRelay(t, &fakeInsightService{recommendationsErr: errors.New("upstream unavailable")})

	conn := serve(t, svc, stream, auth.Claims{UserID: "user-u", Role: auth.RoleStudent})
	defer conn.Close()

	conn.push(t, dto.EventGetRecommendations, nil)

	frame := conn.next(t)
	require.Equal(t, dto.EventError, frame.Event)

	var envelope dto.ErrorEnvelope
	require.NoError(t, json.Unmarshal(frame.Data, &envelope))
	require.Equal(t, "failed to fetch recommendations", envelope.Error)
	require.Contains(t, envelope.Details, "upstream unavailable")

	// The connection survives the failure and can serve further requests.
	conn.push(t, dto.EventGetAnalytics, nil)
	next := conn.next(t)
	require.Equal(t, dto.EventAnalytics, next.Event)
}

func TestRelayUnknownEventReturnsError(t *testing.T) {
	svc, stream := newTestRelay(t, &fakeInsightService{})

	conn := serve(t, svc, stream, auth.Claims{UserID: "user-u", Role: auth.RoleStudent})
	defer conn.Close()

	conn.push(t, "subscribe-everything", nil)

	frame := conn.next(t)
	require.Equal(t, dto.EventError, frame.Event)

	var envelope dto.ErrorEnvelope
	require.NoError(t, json.Unmarshal(frame.Data, &envelope))
	require.Equal(t, "unknown event", envelope.Error)
}

func TestRelayDisconnectIsRecorded(t *testing.T) {
	svc, stream := newTestRelay(t, &fakeInsightService{})

	conn := serve(t, svc, stream, auth.Claims{UserID: "user-u", Role: auth.RoleStudent})
	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		snapshot := stream.Snapshot()
		if len(snapshot) == 0 {
			return false
		}
		last := snapshot[len(snapshot)-1]
		return last.Action == models.ActionUserDisconnected && last.UserID == "user-u"
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return stream.hub.members(auth.RoleStudent) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestRelayUserActionSanitizesStringDetails(t *testing.T) {
	svc, stream := newTestRelay(t, &fakeInsightService{})

	conn := serve(t, svc, stream, auth.Claims{UserID: "user-u", Role: auth.RoleStudent})
	defer conn.Close()

	conn.push(t, dto.EventUserAction, dto.UserActionRequest{
		Type:     "view-course",
		TargetID: "course-1",
		Details: map[string]interface{}{
			"universityId": "uni-1",
			"note":         "<script>alert(1)</script>interested",
		},
	})

	require.Eventually(t, func() bool {
		snapshot := stream.Snapshot()
		return len(snapshot) > 0 && snapshot[len(snapshot)-1].Action == "view-course"
	}, time.Second, 5*time.Millisecond)

	snapshot := stream.Snapshot()
	last := snapshot[len(snapshot)-1]
	require.Equal(t, "interested", last.Details["note"])
}
