package domain

import "fmt"

// EntityType identifies which maintenance record kind an ingestion job targets.
type EntityType string

const (
	EntityTypeLocations         EntityType = "locations"
	EntityTypeMachineModels     EntityType = "machine-models"
	EntityTypeMachines          EntityType = "machines"
	EntityTypeMaintenanceRanges EntityType = "maintenance-ranges"
	EntityTypeOperations        EntityType = "operations"
)

// EntityTypes lists every supported entity type in processing order.
var EntityTypes = []EntityType{
	EntityTypeLocations,
	EntityTypeMachineModels,
	EntityTypeMachines,
	EntityTypeMaintenanceRanges,
	EntityTypeOperations,
}

// ParseEntityType validates a raw string against the closed enum.
func ParseEntityType(raw string) (EntityType, error) {
	for _, et := range EntityTypes {
		if string(et) == raw {
			return et, nil
		}
	}
	return "", fmt.Errorf("unknown entity type %q", raw)
}
