package service

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/dimasfr/careerlink-api/internal/auth"
	"github.com/dimasfr/careerlink-api/internal/dto"
	"github.com/dimasfr/careerlink-api/internal/models"
	"github.com/dimasfr/careerlink-api/internal/observability"
)

// ActivityRecorder is the append side of the activity stream, shared with
// every component that produces relay-visible events.
type ActivityRecorder interface {
	Record(event models.ActivityEvent) models.ActivityEvent
}

// ActivityStream couples the bounded activity log with the administrator
// broadcast group. Appends and admin joins are serialized by one mutex so a
// joining administrator sees the full history followed by every later event
// exactly once.
type ActivityStream struct {
	mu     sync.Mutex
	log    *ActivityLog
	hub    *relayHub
	logger zerolog.Logger

	// remote, when set, forwards each recorded event to peer relay nodes.
	remote func(models.ActivityEvent)
}

// NewActivityStream builds the stream around the given log.
func NewActivityStream(log *ActivityLog, logger zerolog.Logger) *ActivityStream {
	return &ActivityStream{
		log:    log,
		hub:    newRelayHub(logger),
		logger: logger.With().Str("component", "activity_stream").Logger(),
	}
}

// Record appends the event and streams it live to the administrator group.
// The append always logically precedes any fan-out of the stored event.
func (s *ActivityStream) Record(event models.ActivityEvent) models.ActivityEvent {
	s.mu.Lock()
	stored := s.log.Append(event)
	s.publishUpdateLocked(stored)
	s.mu.Unlock()

	observability.RelayEvents().WithLabelValues(stored.Action).Inc()

	if s.remote != nil {
		s.remote(stored)
	}

	return stored
}

// Snapshot exposes the current history copy.
func (s *ActivityStream) Snapshot() []models.ActivityEvent {
	return s.log.Snapshot()
}

// join registers the client and, for privileged connections, enqueues the
// private history replay before any live update can be delivered.
func (s *ActivityStream) join(client *relayClient) {
	if !client.claims.Privileged() {
		s.hub.register(client)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.hub.register(client)

	frame, err := dto.NewFrame(dto.EventActivityHistory, s.log.Snapshot())
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to encode activity history replay")
		return
	}

	select {
	case client.send <- frame:
	default:
		s.logger.Warn().Str("user_id", client.claims.UserID).Msg("dropping activity history replay for slow client")
	}
}

// fanOutRemote delivers an event recorded on a peer node to local
// subscribers without re-appending it.
func (s *ActivityStream) fanOutRemote(event models.ActivityEvent) {
	s.mu.Lock()
	s.publishUpdateLocked(event)
	s.mu.Unlock()
}

func (s *ActivityStream) publishUpdateLocked(event models.ActivityEvent) {
	frame, err := dto.NewFrame(dto.EventActivityUpdate, event)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to encode activity update")
		return
	}
	s.hub.publish(auth.RoleAdmin, frame)
}
