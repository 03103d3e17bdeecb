package ingestion

import (
	"context"

	"github.com/jagjerez/maintenance-app-sub001/internal/domain"
	"github.com/jagjerez/maintenance-app-sub001/internal/repository"

	"github.com/google/uuid"
)

const (
	fieldModelCode    = "modelCode"
	fieldLocationCode = "locationCode"
	fieldSerialNumber = "serialNumber"
)

// machineProcessor ingests equipment instance rows. Every machine must name
// an existing model and an existing location by internal code; an unresolved
// reference rejects the row without creating the machine.
type machineProcessor struct {
	entities repository.EntityRepository
}

func (p *machineProcessor) Process(ctx context.Context, tenantID uuid.UUID, row Row) error {
	modelCode, err := requireField(row, fieldModelCode)
	if err != nil {
		return err
	}
	locationCode, err := requireField(row, fieldLocationCode)
	if err != nil {
		return err
	}

	free, err := parseFreeProperties(row)
	if err != nil {
		return err
	}

	if _, err := resolveReference(ctx, p.entities, tenantID, domain.EntityTypeMachineModels, fieldModelCode, modelCode); err != nil {
		return err
	}
	if _, err := resolveReference(ctx, p.entities, tenantID, domain.EntityTypeLocations, fieldLocationCode, locationCode); err != nil {
		return err
	}

	properties := map[string]any{
		fieldModelCode:    modelCode,
		fieldLocationCode: locationCode,
	}
	if name := row.Get(fieldName); name != "" {
		properties[fieldName] = name
	}
	if serial := row.Get(fieldSerialNumber); serial != "" {
		properties[fieldSerialNumber] = serial
	}
	if description := row.Get(fieldDescription); description != "" {
		properties[fieldDescription] = description
	}

	return upsertByInternalCode(ctx, p.entities, tenantID, domain.EntityTypeMachines, row, mergeProperties(properties, free), true)
}
