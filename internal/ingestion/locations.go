package ingestion

import (
	"context"

	"github.com/jagjerez/maintenance-app-sub001/internal/domain"
	"github.com/jagjerez/maintenance-app-sub001/internal/repository"

	"github.com/google/uuid"
)

const fieldParentCode = "parentCode"

// locationProcessor ingests site/location rows. Locations form a hierarchy
// through an optional parent code; a row that omits the parent simply has
// none, but an explicitly provided code must resolve.
type locationProcessor struct {
	entities repository.EntityRepository
}

func (p *locationProcessor) Process(ctx context.Context, tenantID uuid.UUID, row Row) error {
	name, err := requireField(row, fieldName)
	if err != nil {
		return err
	}

	free, err := parseFreeProperties(row)
	if err != nil {
		return err
	}

	properties := map[string]any{fieldName: name}
	if description := row.Get(fieldDescription); description != "" {
		properties[fieldDescription] = description
	}

	if parentCode := row.Get(fieldParentCode); parentCode != "" {
		if _, err := resolveReference(ctx, p.entities, tenantID, domain.EntityTypeLocations, fieldParentCode, parentCode); err != nil {
			return err
		}
		properties[fieldParentCode] = parentCode
	}

	return upsertByInternalCode(ctx, p.entities, tenantID, domain.EntityTypeLocations, row, mergeProperties(properties, free), true)
}
