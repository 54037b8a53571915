package dto

import "time"

// RecommendationsRequest carries the optional filters for a recommendation
// pull. A zero limit lets the upstream service apply its own default.
type RecommendationsRequest struct {
	Category string `json:"category" validate:"omitempty,max=64"`
	Limit    int    `json:"limit" validate:"omitempty,min=1,max=50"`
}

// RecommendationItem is one ranked suggestion from the insight service.
type RecommendationItem struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Type       string   `json:"type"`
	MatchScore float64  `json:"matchScore"`
	Skills     []string `json:"skills"`
}

// RecommendationsEnvelope is the response returned for a recommendation pull.
type RecommendationsEnvelope struct {
	UserID      string               `json:"userId"`
	GeneratedAt time.Time            `json:"generatedAt"`
	Items       []RecommendationItem `json:"items"`
}

// SkillProficiency describes one skill level with its trend indicator.
type SkillProficiency struct {
	Skill string `json:"skill"`
	Level int    `json:"level"`
	Trend string `json:"trend"`
}

// ActivityCounters aggregates the subject's platform activity.
type ActivityCounters struct {
	CoursesCompleted int `json:"coursesCompleted"`
	EventsAttended   int `json:"eventsAttended"`
	ApplicationsSent int `json:"applicationsSent"`
}

// RoleMatch is one candidate role title with its match percentage.
type RoleMatch struct {
	Title        string  `json:"title"`
	MatchPercent float64 `json:"matchPercent"`
}

// MarketFit summarises how the subject's profile ranks against the market.
type MarketFit struct {
	Score float64     `json:"score"`
	Roles []RoleMatch `json:"roles"`
}

// AnalyticsEnvelope is the structured analytics snapshot for one identity.
type AnalyticsEnvelope struct {
	UserID      string             `json:"userId"`
	GeneratedAt time.Time          `json:"generatedAt"`
	Skills      []SkillProficiency `json:"skills"`
	Activity    ActivityCounters   `json:"activity"`
	MarketFit   MarketFit          `json:"marketFit"`
}
