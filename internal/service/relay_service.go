package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dimasfr/careerlink-api/internal/auth"
	"github.com/dimasfr/careerlink-api/internal/dto"
	"github.com/dimasfr/careerlink-api/internal/models"
)

const relaySendBufferSize = 32

// relayConn is the transport surface the relay needs from a websocket
// connection. *websocket.Conn satisfies it; tests use an in-memory fake.
type relayConn interface {
	ReadJSON(v interface{}) error
	WriteJSON(v interface{}) error
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// ConnectionOptions wraps metadata extracted during the HTTP upgrade.
type ConnectionOptions struct {
	Claims        auth.Claims
	CorrelationID string
	Context       context.Context
}

// RelayService serves authenticated relay connections and dispatches the
// events they emit.
type RelayService interface {
	ServeConnection(conn relayConn, opts ConnectionOptions)
	Start(ctx context.Context)
}

type relayService struct {
	stream      *ActivityStream
	insight     InsightService
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	tracer      trace.Tracer
	redis       *redis.Client
	redisStream string
	nats        *nats.Conn
	natsSubject string
	nodeID      string
}

type relayClient struct {
	conn    relayConn
	send    chan dto.Frame
	claims  auth.Claims
	groups  []string
	service *relayService
	closed  chan struct{}
	once    sync.Once
	baseCtx context.Context
}

// peerEvent is the cross-node representation of a recorded activity event.
type peerEvent struct {
	Source string               `json:"source"`
	Event  models.ActivityEvent `json:"event"`
	SentAt time.Time            `json:"sent_at"`
}

// RelayOptions groups the dependencies of the relay service.
type RelayOptions struct {
	Stream      *ActivityStream
	Insight     InsightService
	Validator   *validator.Validate
	Logger      zerolog.Logger
	Redis       *redis.Client
	NATS        *nats.Conn
	ChannelBase string
}

// NewRelayService creates the relay event service.
func NewRelayService(opts RelayOptions) RelayService {
	stream := ""
	subject := ""
	if opts.ChannelBase != "" {
		stream = opts.ChannelBase + ":activity"
		subject = strings.ReplaceAll(opts.ChannelBase, ":", ".") + ".activity"
	}

	s := &relayService{
		stream:      opts.Stream,
		insight:     opts.Insight,
		validator:   opts.Validator,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      opts.Logger.With().Str("component", "relay_service").Logger(),
		tracer:      otel.Tracer("github.com/dimasfr/careerlink-api/internal/service/relay"),
		redis:       opts.Redis,
		redisStream: stream,
		nats:        opts.NATS,
		natsSubject: subject,
		nodeID:      uuid.NewString(),
	}

	if (s.redis != nil && s.redisStream != "") || (s.nats != nil && s.natsSubject != "") {
		opts.Stream.remote = s.publishPeer
	}

	return s
}

// Start launches the cross-node consumers when a broker is configured.
func (s *relayService) Start(ctx context.Context) {
	if s.redis != nil && s.redisStream != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

// ServeConnection joins the authenticated connection to its groups and runs
// its read loop until disconnect. The disconnect is recorded and streamed
// like any other relay-visible event.
func (s *relayService) ServeConnection(conn relayConn, opts ConnectionOptions) {
	baseCtx := opts.Context
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	client := &relayClient{
		conn:    conn,
		send:    make(chan dto.Frame, relaySendBufferSize),
		claims:  opts.Claims,
		service: s,
		closed:  make(chan struct{}),
		baseCtx: baseCtx,
	}

	s.stream.join(client)

	go client.writer()
	client.reader()
}

func (s *relayService) handleFrame(ctx context.Context, client *relayClient, frame dto.Frame) {
	ctx, span := s.tracer.Start(ctx, "relay.handle", trace.WithAttributes(
		attribute.String("relay.event", frame.Event),
		attribute.String("relay.user_id", client.claims.UserID),
	))
	defer span.End()

	switch frame.Event {
	case dto.EventGetRecommendations:
		s.handleGetRecommendations(ctx, client, frame.Data)
	case dto.EventGetAnalytics:
		s.handleGetAnalytics(ctx, client)
	case dto.EventUserAction:
		s.handleUserAction(client, frame.Data)
	default:
		client.reply(dto.EventError, dto.ErrorEnvelope{Error: "unknown event", Details: frame.Event})
	}
}

func (s *relayService) handleGetRecommendations(ctx context.Context, client *relayClient, data json.RawMessage) {
	var req dto.RecommendationsRequest
	if len(data) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			client.reply(dto.EventError, dto.ErrorEnvelope{Error: "invalid payload", Details: err.Error()})
			return
		}
	}

	envelope, err := s.insight.RecommendationsFor(ctx, client.claims.UserID, req)
	if err != nil {
		client.reply(dto.EventError, dto.ErrorEnvelope{Error: "failed to fetch recommendations", Details: err.Error()})
		return
	}

	client.reply(dto.EventRecommendations, envelope)
}

func (s *relayService) handleGetAnalytics(ctx context.Context, client *relayClient) {
	envelope, err := s.insight.AnalyticsFor(ctx, client.claims, client.claims.UserID)
	if err != nil {
		client.reply(dto.EventError, dto.ErrorEnvelope{Error: "failed to fetch analytics", Details: err.Error()})
		return
	}

	client.reply(dto.EventAnalytics, envelope)
}

func (s *relayService) handleUserAction(client *relayClient, data json.RawMessage) {
	var req dto.UserActionRequest
	if err := json.Unmarshal(data, &req); err != nil {
		client.reply(dto.EventError, dto.ErrorEnvelope{Error: "invalid payload", Details: err.Error()})
		return
	}

	if err := s.validator.Struct(req); err != nil {
		client.reply(dto.EventError, dto.ErrorEnvelope{Error: "invalid payload", Details: err.Error()})
		return
	}

	event := s.stream.Record(models.ActivityEvent{
		UserID:   client.claims.UserID,
		Action:   strings.TrimSpace(req.Type),
		TargetID: s.sanitizer.Sanitize(strings.TrimSpace(req.TargetID)),
		Details:  s.sanitizeDetails(req.Details),
	})

	s.routeNotification(event)
}

// routeNotification applies the fixed action-kind table to a recorded
// event. Unknown kinds and missing organization ids fan out nowhere.
func (s *relayService) routeNotification(event models.ActivityEvent) {
	route, ok := notificationRoutes[event.Action]
	if !ok {
		return
	}

	group := route.Group(event.Details)
	if group == "" {
		s.logger.Debug().Str("action", event.Action).Msg("derived notification skipped, no organization id in details")
		return
	}

	frame, err := dto.NewFrame(route.Event, route.Payload(event))
	if err != nil {
		s.logger.Error().Err(err).Str("action", event.Action).Msg("failed to encode derived notification")
		return
	}

	s.stream.hub.publish(group, frame)
}

// sanitizeDetails strips any markup from string detail values. Nested
// structures are handled by the deep copy on append; only top-level strings
// are user-visible in notifications.
func (s *relayService) sanitizeDetails(details map[string]interface{}) map[string]interface{} {
	for key, value := range details {
		if str, ok := value.(string); ok {
			details[key] = s.sanitizer.Sanitize(str)
		}
	}
	return details
}

func (s *relayService) publishPeer(event models.ActivityEvent) {
	payload, err := json.Marshal(peerEvent{Source: s.nodeID, Event: event, SentAt: time.Now().UTC()})
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to marshal peer activity event")
		return
	}

	if s.redis != nil && s.redisStream != "" {
		if err := s.redis.Publish(context.Background(), s.redisStream, payload).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish activity event to redis")
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish activity event to nats")
		}
	}
}

func (s *relayService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisStream)
	defer func() {
		_ = pubsub.Close()
	}()
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error().Err(err).Msg("activity redis subscription closed")
			return
		}
		s.handlePeerEvent([]byte(msg.Payload))
	}
}

func (s *relayService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.Subscribe(s.natsSubject, func(msg *nats.Msg) {
		s.handlePeerEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats activity subject")
		return
	}
	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain activity nats subscription")
		}
	}()
}

// handlePeerEvent fans a remote node's activity event out to local
// subscribers. Remote events are not re-appended; each node owns its own
// bounded history.
func (s *relayService) handlePeerEvent(data []byte) {
	var event peerEvent
	if err := json.Unmarshal(data, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid peer activity event")
		return
	}

	if event.Source == s.nodeID {
		return
	}

	s.stream.fanOutRemote(event.Event)
	s.routeNotification(event.Event)
}

func (c *relayClient) reader() {
	defer c.close()

	for {
		var frame dto.Frame
		if err := c.conn.ReadJSON(&frame); err != nil {
			c.service.logger.Debug().Err(err).Msg("relay read loop ended")
			return
		}

		c.service.handleFrame(c.baseCtx, c, frame)
	}
}

func (c *relayClient) writer() {
	defer c.close()

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(frame); err != nil {
				c.service.logger.Debug().Err(err).Msg("relay write loop terminated")
				return
			}
		case <-time.After(30 * time.Second):
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				c.service.logger.Debug().Err(err).Msg("relay ping failed")
				return
			}
		case <-c.closed:
			return
		}
	}
}

// reply sends a response frame on the channel that issued the request.
func (c *relayClient) reply(event string, payload interface{}) {
	frame, err := dto.NewFrame(event, payload)
	if err != nil {
		c.service.logger.Error().Err(err).Str("event", event).Msg("failed to encode reply frame")
		return
	}

	select {
	case c.send <- frame:
	case <-c.closed:
	}
}

func (c *relayClient) close() {
	c.once.Do(func() {
		close(c.closed)
		c.service.stream.hub.unregister(c)
		_ = c.conn.Close()

		c.service.stream.Record(models.ActivityEvent{
			UserID: c.claims.UserID,
			Action: models.ActionUserDisconnected,
			Details: map[string]interface{}{
				"role": c.claims.Role,
			},
		})
	})
}
