package service

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/dimasfr/careerlink-api/internal/auth"
	"github.com/dimasfr/careerlink-api/internal/dto"
	"github.com/dimasfr/careerlink-api/internal/observability"
)

// Group name prefixes for organization-scoped roles. Distinct prefixes keep
// university and employer identifiers in separate namespaces.
const (
	universityGroupPrefix = "university-"
	employerGroupPrefix   = "employer-"
)

// GroupsFor derives the broadcast groups a set of claims belongs to: always
// the role group, plus the scoped group when the role carries an
// organization id.
func GroupsFor(claims auth.Claims) []string {
	groups := []string{claims.Role}

	switch claims.Role {
	case auth.RoleUniversity:
		if claims.UniversityID != "" {
			groups = append(groups, universityGroupPrefix+claims.UniversityID)
		}
	case auth.RoleEmployer:
		if claims.EmployerID != "" {
			groups = append(groups, employerGroupPrefix+claims.EmployerID)
		}
	}

	return groups
}

// relayHub tracks active relay clients by group and fans frames out to them.
type relayHub struct {
	mu     sync.RWMutex
	groups map[string]map[*relayClient]struct{}
	log    zerolog.Logger
}

func newRelayHub(logger zerolog.Logger) *relayHub {
	return &relayHub{
		groups: make(map[string]map[*relayClient]struct{}),
		log:    logger.With().Str("component", "relay_hub").Logger(),
	}
}

// register joins the client to every group derived from its claims.
func (h *relayHub) register(client *relayClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client.groups = GroupsFor(client.claims)
	for _, group := range client.groups {
		if _, exists := h.groups[group]; !exists {
			h.groups[group] = make(map[*relayClient]struct{})
		}
		h.groups[group][client] = struct{}{}
	}

	observability.RelayConnections().Inc()
	h.log.Debug().Str("user_id", client.claims.UserID).Strs("groups", client.groups).Msg("relay client connected")
}

// unregister removes the client from all of its groups atomically.
func (h *relayHub) unregister(client *relayClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, group := range client.groups {
		if clients, ok := h.groups[group]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.groups, group)
			}
		}
	}

	observability.RelayConnections().Dec()
	h.log.Debug().Str("user_id", client.claims.UserID).Msg("relay client disconnected")
}

// publish delivers a frame to every member of the group. Delivery is
// fire-and-forget: slow consumers are dropped for this frame, disconnected
// members simply miss it.
func (h *relayHub) publish(group string, frame dto.Frame) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.groups[group] {
		select {
		case client.send <- frame:
			observability.RelayDeliveries().WithLabelValues(frame.Event).Inc()
		default:
			observability.RelayDrops().WithLabelValues(frame.Event).Inc()
			h.log.Warn().Str("group", group).Str("user_id", client.claims.UserID).Str("event", frame.Event).Msg("dropping frame for slow relay client")
		}
	}
}

// members reports the current size of a group, for tests and introspection.
func (h *relayHub) members(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}
