package ingestion

import (
	"context"

	"github.com/jagjerez/maintenance-app-sub001/internal/domain"
	"github.com/jagjerez/maintenance-app-sub001/internal/repository"

	"github.com/google/uuid"
)

const fieldBrand = "brand"

// machineModelProcessor ingests equipment model rows.
type machineModelProcessor struct {
	entities repository.EntityRepository
}

func (p *machineModelProcessor) Process(ctx context.Context, tenantID uuid.UUID, row Row) error {
	name, err := requireField(row, fieldName)
	if err != nil {
		return err
	}

	free, err := parseFreeProperties(row)
	if err != nil {
		return err
	}

	properties := map[string]any{fieldName: name}
	if brand := row.Get(fieldBrand); brand != "" {
		properties[fieldBrand] = brand
	}
	if description := row.Get(fieldDescription); description != "" {
		properties[fieldDescription] = description
	}

	return upsertByInternalCode(ctx, p.entities, tenantID, domain.EntityTypeMachineModels, row, mergeProperties(properties, free), true)
}
