package dto

import "encoding/json"

// Frame is the envelope for every message exchanged over the relay socket.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client-originated socket events.
const (
	EventGetRecommendations = "get-recommendations"
	EventGetAnalytics       = "get-analytics"
	EventUserAction         = "user-action"
)

// Server-originated socket events.
const (
	EventRecommendations   = "recommendations"
	EventAnalytics         = "analytics"
	EventError             = "error"
	EventActivityHistory   = "activity-history"
	EventActivityUpdate    = "activity-update"
	EventUserViewedCourse  = "user-viewed-course"
	EventJobApplication    = "job-application"
	EventEventRegistration = "event-registration"
)

// NewFrame builds an outbound frame, marshalling the payload. Marshal
// failures are reported so the caller can fall back to an error frame.
func NewFrame(event string, payload interface{}) (Frame, error) {
	if payload == nil {
		return Frame{Event: event}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Event: event, Data: data}, nil
}

// UserActionRequest is the payload of a user-action event.
type UserActionRequest struct {
	Type     string                 `json:"type" validate:"required,min=1,max=64"`
	TargetID string                 `json:"targetId" validate:"omitempty,max=128"`
	Details  map[string]interface{} `json:"details"`
}

// ErrorEnvelope is the structured error payload returned on the channel
// that issued a failing request.
type ErrorEnvelope struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
