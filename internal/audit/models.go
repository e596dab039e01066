package audit

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event captures a structured audit record. Throttle denials and other
// moderation-relevant decisions are recorded through these so the
// moderation team can review abuse patterns after the fact.
type Event struct {
	ID        string            `json:"id"`
	Action    string            `json:"action"`
	Subject   string            `json:"subject,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// subjectKeys are the attribute names treated as the event subject, in
// priority order.
var subjectKeys = []string{"identifier", "scope_key", "address", "user_id"}

// NewEvent builds an Event from alternating key/value attributes, slog style.
// Non-string values are rendered with %v; odd trailing keys are dropped.
func NewEvent(action string, attrs ...any) Event {
	fields := make(map[string]string, len(attrs)/2)
	for i := 0; i+1 < len(attrs); i += 2 {
		key, ok := attrs[i].(string)
		if !ok {
			continue
		}
		fields[key] = fmt.Sprintf("%v", attrs[i+1])
	}

	subject := ""
	for _, key := range subjectKeys {
		if v := fields[key]; v != "" {
			subject = v
			break
		}
	}

	return Event{
		ID:        uuid.NewString(),
		Action:    action,
		Subject:   subject,
		Fields:    fields,
		Timestamp: time.Now(),
	}
}
