package service

import (
	"github.com/dimasfr/careerlink-api/internal/models"
)

// notificationRoute maps one user-action kind onto its derived group
// notification. The mapping is static; new action kinds require a new
// table entry.
type notificationRoute struct {
	// Event is the frame name delivered to the target group.
	Event string

	// Group derives the target group name from the action details. An
	// empty result suppresses the notification (missing organization id).
	Group func(details map[string]interface{}) string

	// Payload builds the notification body from the recorded event.
	Payload func(event models.ActivityEvent) map[string]interface{}
}

// notificationRoutes is the fixed action-kind routing table. Actions not
// listed here are recorded but produce no derived notification.
var notificationRoutes = map[string]notificationRoute{
	"view-course": {
		Event: "user-viewed-course",
		Group: func(details map[string]interface{}) string {
			return scopedGroup(universityGroupPrefix, details, "universityId")
		},
		Payload: func(event models.ActivityEvent) map[string]interface{} {
			return map[string]interface{}{
				"userId":    event.UserID,
				"courseId":  event.TargetID,
				"timestamp": event.Timestamp,
			}
		},
	},
	"apply-job": {
		Event: "job-application",
		Group: func(details map[string]interface{}) string {
			return scopedGroup(employerGroupPrefix, details, "employerId")
		},
		Payload: func(event models.ActivityEvent) map[string]interface{} {
			return map[string]interface{}{
				"userId":    event.UserID,
				"jobId":     event.TargetID,
				"timestamp": event.Timestamp,
			}
		},
	},
	"register-event": {
		Event: "event-registration",
		Group: func(details map[string]interface{}) string {
			return scopedGroup(universityGroupPrefix, details, "organizerId")
		},
		Payload: func(event models.ActivityEvent) map[string]interface{} {
			return map[string]interface{}{
				"userId":    event.UserID,
				"eventId":   event.TargetID,
				"timestamp": event.Timestamp,
			}
		},
	},
}

func scopedGroup(prefix string, details map[string]interface{}, key string) string {
	if details == nil {
		return ""
	}
	if id, ok := details[key].(string); ok && id != "" {
		return prefix + id
	}
	return ""
}
