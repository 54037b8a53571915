package service

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dimasfr/careerlink-api/internal/auth"
	"github.com/dimasfr/careerlink-api/internal/dto"
	"github.com/dimasfr/careerlink-api/internal/models"
)

func TestActivityStreamReplayThenLive(t *testing.T) {
	stream := NewActivityStream(NewActivityLog(100), testLogger())

	for i := 0; i < 5; i++ {
		stream.Record(models.ActivityEvent{UserID: "u1", Action: fmt.Sprintf("action-%d", i)})
	}

	admin := newTestClient(auth.Claims{UserID: "admin-1", Role: auth.RoleAdmin})
	stream.join(admin)

	// First frame is the private history replay with exactly the events
	// appended so far.
	replay := <-admin.send
	require.Equal(t, dto.EventActivityHistory, replay.Event)

	var history []models.ActivityEvent
	require.NoError(t, json.Unmarshal(replay.Data, &history))
	require.Len(t, history, 5)
	for i, event := range history {
		require.Equal(t, fmt.Sprintf("action-%d", i), event.Action)
	}

	// Events recorded after the join arrive exactly once, live.
	stream.Record(models.ActivityEvent{UserID: "u1", Action: "action-live"})

	live := <-admin.send
	require.Equal(t, dto.EventActivityUpdate, live.Event)

	var update models.ActivityEvent
	require.NoError(t, json.Unmarshal(live.Data, &update))
	require.Equal(t, "action-live", update.Action)

	require.Empty(t, admin.send, "no duplicate at the replay/live boundary")
}

func TestActivityStreamReplayOnlyForPrivileged(t *testing.T) {
	stream := NewActivityStream(NewActivityLog(100), testLogger())
	stream.Record(models.ActivityEvent{UserID: "u1", Action: "apply-job"})

	student := newTestClient(auth.Claims{UserID: "s1", Role: auth.RoleStudent})
	stream.join(student)
	require.Empty(t, student.send, "non-privileged connections receive no history replay")

	stream.Record(models.ActivityEvent{UserID: "u1", Action: "view-course"})
	require.Empty(t, student.send, "non-privileged connections receive no live activity updates")
}

func TestActivityStreamEmptyHistoryReplay(t *testing.T) {
	stream := NewActivityStream(NewActivityLog(100), testLogger())

	admin := newTestClient(auth.Claims{UserID: "admin-1", Role: auth.RoleAdmin})
	stream.join(admin)

	replay := <-admin.send
	require.Equal(t, dto.EventActivityHistory, replay.Event)

	var history []models.ActivityEvent
	require.NoError(t, json.Unmarshal(replay.Data, &history))
	require.Empty(t, history)
}

func TestActivityStreamRemoteFanOutDoesNotAppend(t *testing.T) {
	stream := NewActivityStream(NewActivityLog(100), testLogger())

	admin := newTestClient(auth.Claims{UserID: "admin-1", Role: auth.RoleAdmin})
	stream.join(admin)
	<-admin.send // history replay

	stream.fanOutRemote(models.ActivityEvent{ID: "remote-1", UserID: "u9", Action: "apply-job"})

	live := <-admin.send
	require.Equal(t, dto.EventActivityUpdate, live.Event)
	require.Zero(t, stream.log.Len(), "remote events are not re-appended locally")
}
