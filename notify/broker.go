// Package notify implements the room-based realtime fan-out used to push
// mutation events to connected clients. Delivery is fire-and-forget: there is
// no acknowledgment and no replay for subscribers that were offline when an
// event was published.
package notify

import (
	"context"
	"encoding/json"
)

// Well-known event names.
const (
	EventTaskCreated    = "task_created"
	EventTaskUpdated    = "task_updated"
	EventTaskDeleted    = "task_deleted"
	EventCommentAdded   = "comment_added"
	EventSubtaskAdded   = "subtask_added"
	EventSubtaskUpdated = "subtask_updated"
	EventSubtaskDeleted = "subtask_deleted"
	EventUserTyping     = "user_typing"
)

// Event is one realtime message delivered to a room.
type Event struct {
	Name    string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
	// Origin identifies the subscriber that triggered the event, so
	// gateways can avoid echoing a socket's own actions back to it.
	Origin string `json:"origin,omitempty"`
}

// NewEvent marshals payload into an Event. Marshal failures produce an event
// with an empty payload rather than an error: broadcasts are best-effort.
func NewEvent(name string, payload interface{}) Event {
	body, err := json.Marshal(payload)
	if err != nil {
		body = nil
	}
	return Event{Name: name, Payload: body}
}

// HandlerFunc receives events for rooms a subscriber joined.
type HandlerFunc func(room string, event Event)

// Broker is the pub/sub fan-out port. The task layer publishes through it
// without knowing whether delivery is in-process or crosses a network broker.
type Broker interface {
	Subscribe(room, subscriberID string, fn HandlerFunc)
	Unsubscribe(room, subscriberID string)
	Publish(ctx context.Context, room string, event Event) error
	Close() error
}

// Room key constructors. Keys are derived deterministically so publishers and
// subscribers agree without coordination.

func TeamRoom(teamID string) string { return "team_" + teamID }
func TaskRoom(taskID string) string { return "task_" + taskID }
func UserRoom(userID string) string { return "user_" + userID }
func OrgRoom(orgID string) string   { return "org_" + orgID }
