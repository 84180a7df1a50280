package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// EventType is the kind of mutation a ChangeEvent reports.
type EventType string

const (
	EventCreated EventType = "CREATED"
	EventUpdated EventType = "UPDATED"
	EventDeleted EventType = "DELETED"
)

// EntityType names the entity a ChangeEvent refers to.
type EntityType string

const (
	EntityProject EntityType = "PROJECT"
	EntityTask    EntityType = "TASK"
	EntityComment EntityType = "COMMENT"
)

func (t EventType) Valid() bool {
	switch t {
	case EventCreated, EventUpdated, EventDeleted:
		return true
	}
	return false
}

func (t EntityType) Valid() bool {
	switch t {
	case EntityProject, EntityTask, EntityComment:
		return true
	}
	return false
}

// ChangeEvent announces that an entity inside an organization was created,
// updated or deleted. It carries identifiers only; receivers refetch the data
// they care about. Events are values and are never persisted.
type ChangeEvent struct {
	EventType      EventType  `json:"eventType"`
	EntityType     EntityType `json:"entityType"`
	EntityID       uuid.UUID  `json:"entityId"`
	OrganizationID uuid.UUID  `json:"organizationId"`
}

// NewChangeEvent builds an event for a mutation of entityID within orgID.
func NewChangeEvent(eventType EventType, entityType EntityType, entityID, orgID uuid.UUID) ChangeEvent {
	return ChangeEvent{
		EventType:      eventType,
		EntityType:     entityType,
		EntityID:       entityID,
		OrganizationID: orgID,
	}
}

// String formats the event for logs.
func (e ChangeEvent) String() string {
	return fmt.Sprintf("%s/%s %s (org %s)", e.EventType, e.EntityType, e.EntityID, e.OrganizationID)
}
