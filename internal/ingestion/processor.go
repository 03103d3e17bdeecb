package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jagjerez/maintenance-app-sub001/internal/domain"
	"github.com/jagjerez/maintenance-app-sub001/internal/repository"

	"github.com/google/uuid"
)

// Field names shared by every upload template.
const (
	fieldInternalCode = "internalCode"
	fieldName         = "name"
	fieldDescription  = "description"
	fieldProperties   = "properties"
)

// RowProcessor validates one input row and creates or updates the
// corresponding entity. Failures are row-scoped; the caller records them and
// moves on to the next row.
type RowProcessor interface {
	Process(ctx context.Context, tenantID uuid.UUID, row Row) error
}

// ProcessorSet maps each entity type to its row processor.
type ProcessorSet struct {
	processors map[domain.EntityType]RowProcessor
}

// NewProcessorSet builds the per-type processor table over the entity store.
func NewProcessorSet(entities repository.EntityRepository) *ProcessorSet {
	return &ProcessorSet{
		processors: map[domain.EntityType]RowProcessor{
			domain.EntityTypeLocations:         &locationProcessor{entities: entities},
			domain.EntityTypeMachineModels:     &machineModelProcessor{entities: entities},
			domain.EntityTypeMachines:          &machineProcessor{entities: entities},
			domain.EntityTypeMaintenanceRanges: &maintenanceRangeProcessor{entities: entities},
			domain.EntityTypeOperations:        &operationProcessor{entities: entities},
		},
	}
}

// For returns the processor registered for an entity type.
func (s *ProcessorSet) For(entityType domain.EntityType) (RowProcessor, bool) {
	processor, ok := s.processors[entityType]
	return processor, ok
}

// requireField fails with a ValidationError when the column is missing or blank.
func requireField(row Row, field string) (string, error) {
	value := row.Get(field)
	if value == "" {
		return "", &ValidationError{Field: field, Message: "required field is missing"}
	}
	return value, nil
}

// requireEnum additionally restricts the value to the declared literals.
func requireEnum(row Row, field string, allowed []string) (string, error) {
	value, err := requireField(row, field)
	if err != nil {
		return "", err
	}
	for _, candidate := range allowed {
		if value == candidate {
			return value, nil
		}
	}
	return "", &ValidationError{
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf("must be one of %v", allowed),
	}
}

// parseFreeProperties decodes the free-form properties column. It must be a
// JSON object when present.
func parseFreeProperties(row Row) (map[string]any, error) {
	raw := row.Get(fieldProperties)
	if raw == "" {
		return nil, nil
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, &ValidationError{
			Field:   fieldProperties,
			Value:   raw,
			Message: "must be a valid JSON object",
		}
	}
	return decoded, nil
}

// resolveReference looks up another entity by its internal code within the
// tenant's records.
func resolveReference(ctx context.Context, entities repository.EntityRepository, tenantID uuid.UUID, entityType domain.EntityType, field, code string) (domain.Entity, error) {
	entity, err := entities.GetByInternalCode(ctx, tenantID, entityType, code)
	if err != nil {
		if errors.Is(err, repository.ErrEntityNotFound) {
			return domain.Entity{}, &ReferenceNotFoundError{Field: field, Value: code}
		}
		return domain.Entity{}, fmt.Errorf("failed to resolve %s: %w", field, err)
	}
	return entity, nil
}

// upsertByInternalCode persists the row's properties. A row carrying a known
// internal code updates that record in place; a row without a code creates a
// new record with a generated code. When the supplied code matches nothing,
// backfill types create the record with that code while update-only types
// reject the row.
func upsertByInternalCode(ctx context.Context, entities repository.EntityRepository, tenantID uuid.UUID, entityType domain.EntityType, row Row, properties map[string]any, backfill bool) error {
	code := row.Get(fieldInternalCode)
	if code == "" {
		if _, err := entities.Create(ctx, domain.NewEntity(tenantID, entityType, "", properties)); err != nil {
			return fmt.Errorf("failed to create %s: %w", entityType, err)
		}
		return nil
	}

	existing, err := entities.GetByInternalCode(ctx, tenantID, entityType, code)
	if err == nil {
		if _, err := entities.Update(ctx, existing.WithProperties(properties)); err != nil {
			return fmt.Errorf("failed to update %s: %w", entityType, err)
		}
		return nil
	}
	if !errors.Is(err, repository.ErrEntityNotFound) {
		return fmt.Errorf("failed to look up %s: %w", entityType, err)
	}

	if !backfill {
		return &ValidationError{
			Field:   fieldInternalCode,
			Value:   code,
			Message: fmt.Sprintf("no existing %s with this code", entityType),
		}
	}

	if _, err := entities.Create(ctx, domain.NewEntity(tenantID, entityType, code, properties)); err != nil {
		return fmt.Errorf("failed to create %s: %w", entityType, err)
	}
	return nil
}

// mergeProperties nests the free-form blob under its own key so it can never
// shadow structured columns.
func mergeProperties(structured map[string]any, free map[string]any) map[string]any {
	if free != nil {
		structured[fieldProperties] = free
	}
	return structured
}
