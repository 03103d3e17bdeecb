package ingestion

import (
	"context"

	"github.com/jagjerez/maintenance-app-sub001/internal/domain"
	"github.com/jagjerez/maintenance-app-sub001/internal/repository"

	"github.com/google/uuid"
)

const fieldRangeType = "type"

var maintenanceRangeTypes = []string{"preventive", "corrective", "predictive"}

// maintenanceRangeProcessor ingests maintenance schedule rows. Unlike the
// equipment types, a supplied internal code that matches no existing range is
// rejected rather than backfilled.
type maintenanceRangeProcessor struct {
	entities repository.EntityRepository
}

func (p *maintenanceRangeProcessor) Process(ctx context.Context, tenantID uuid.UUID, row Row) error {
	name, err := requireField(row, fieldName)
	if err != nil {
		return err
	}
	rangeType, err := requireEnum(row, fieldRangeType, maintenanceRangeTypes)
	if err != nil {
		return err
	}

	free, err := parseFreeProperties(row)
	if err != nil {
		return err
	}

	properties := map[string]any{
		fieldName:      name,
		fieldRangeType: rangeType,
	}
	if description := row.Get(fieldDescription); description != "" {
		properties[fieldDescription] = description
	}

	return upsertByInternalCode(ctx, p.entities, tenantID, domain.EntityTypeMaintenanceRanges, row, mergeProperties(properties, free), false)
}
