package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Entity is a tenant-scoped maintenance record stored as a JSONB document.
// The internal code is a stable external identifier, unique within the
// tenant's records of one entity type, used to correlate rows across uploads.
type Entity struct {
	ID           uuid.UUID      `json:"id"`
	TenantID     uuid.UUID      `json:"tenant_id"`
	EntityType   EntityType     `json:"entity_type"`
	InternalCode string         `json:"internal_code"`
	Properties   map[string]any `json:"properties"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// NewEntity creates a new entity. When internalCode is empty a fresh code is
// generated so later uploads can target the record for updates.
func NewEntity(tenantID uuid.UUID, entityType EntityType, internalCode string, properties map[string]any) Entity {
	if internalCode == "" {
		internalCode = uuid.NewString()
	}
	now := time.Now()
	return Entity{
		ID:           uuid.New(),
		TenantID:     tenantID,
		EntityType:   entityType,
		InternalCode: internalCode,
		Properties:   copyProperties(properties),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// WithProperties returns a copy of the entity with replaced properties.
func (e Entity) WithProperties(properties map[string]any) Entity {
	updated := e
	updated.Properties = copyProperties(properties)
	updated.UpdatedAt = time.Now()
	return updated
}

// Property returns the named property as a string, or "" when absent.
func (e Entity) Property(key string) string {
	if value, ok := e.Properties[key].(string); ok {
		return value
	}
	return ""
}

// PropertiesJSON marshals the properties map for JSONB storage.
func (e *Entity) PropertiesJSON() (json.RawMessage, error) {
	if e.Properties == nil {
		e.Properties = make(map[string]any)
	}
	return json.Marshal(e.Properties)
}

// PropertiesFromJSON decodes a JSONB payload into a properties map.
func PropertiesFromJSON(raw json.RawMessage) (map[string]any, error) {
	var properties map[string]any
	err := json.Unmarshal(raw, &properties)
	return properties, err
}

func copyProperties(properties map[string]any) map[string]any {
	copied := make(map[string]any, len(properties))
	for k, v := range properties {
		copied[k] = v
	}
	return copied
}
