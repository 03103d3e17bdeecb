package ingestion

import (
	"context"

	"github.com/jagjerez/maintenance-app-sub001/internal/domain"
	"github.com/jagjerez/maintenance-app-sub001/internal/repository"

	"github.com/google/uuid"
)

const (
	fieldValueType = "valueType"
	fieldRangeCode = "rangeCode"
)

var operationValueTypes = []string{"boolean", "numeric", "text"}

// operationProcessor ingests maintenance operation rows. Operations may
// attach to a maintenance range; an explicitly provided range code must
// resolve. Like ranges, an unknown supplied internal code rejects the row.
type operationProcessor struct {
	entities repository.EntityRepository
}

func (p *operationProcessor) Process(ctx context.Context, tenantID uuid.UUID, row Row) error {
	name, err := requireField(row, fieldName)
	if err != nil {
		return err
	}
	valueType, err := requireEnum(row, fieldValueType, operationValueTypes)
	if err != nil {
		return err
	}

	free, err := parseFreeProperties(row)
	if err != nil {
		return err
	}

	properties := map[string]any{
		fieldName:      name,
		fieldValueType: valueType,
	}
	if description := row.Get(fieldDescription); description != "" {
		properties[fieldDescription] = description
	}

	if rangeCode := row.Get(fieldRangeCode); rangeCode != "" {
		if _, err := resolveReference(ctx, p.entities, tenantID, domain.EntityTypeMaintenanceRanges, fieldRangeCode, rangeCode); err != nil {
			return err
		}
		properties[fieldRangeCode] = rangeCode
	}

	return upsertByInternalCode(ctx, p.entities, tenantID, domain.EntityTypeOperations, row, mergeProperties(properties, free), false)
}
