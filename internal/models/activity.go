package models

import "time"

// Well-known activity actions recorded by the relay. User actions carry an
// open action string; these constants cover the relay-generated kinds.
const (
	ActionRequestRecommendations = "request-recommendations"
	ActionRequestAnalytics       = "request-analytics"
	ActionUserDisconnected       = "user-disconnected"
)

// ActivityEvent is one immutable relay-visible occurrence. Details holds a
// defensively copied, JSON-safe payload; it is never aliased with client
// supplied data.
type ActivityEvent struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"user_id,omitempty"`
	Action    string                 `json:"action"`
	TargetID  string                 `json:"target_id,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}
