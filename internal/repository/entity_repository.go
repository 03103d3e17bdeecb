package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jagjerez/maintenance-app-sub001/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type entityRepository struct {
	pool *pgxpool.Pool
}

// NewEntityRepository wires an entity repository backed by pgxpool.
func NewEntityRepository(pool *pgxpool.Pool) EntityRepository {
	return &entityRepository{pool: pool}
}

func (r *entityRepository) Create(ctx context.Context, entity domain.Entity) (domain.Entity, error) {
	propertiesJSON, err := entity.PropertiesJSON()
	if err != nil {
		return domain.Entity{}, fmt.Errorf("failed to marshal properties: %w", err)
	}

	row := r.pool.QueryRow(
		ctx,
		`INSERT INTO entities (id, tenant_id, entity_type, internal_code, properties)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, tenant_id, entity_type, internal_code, properties, created_at, updated_at`,
		entity.ID,
		entity.TenantID,
		string(entity.EntityType),
		entity.InternalCode,
		propertiesJSON,
	)

	created, err := scanEntity(row)
	if err != nil {
		return domain.Entity{}, fmt.Errorf("failed to create entity: %w", err)
	}
	return created, nil
}

func (r *entityRepository) Update(ctx context.Context, entity domain.Entity) (domain.Entity, error) {
	propertiesJSON, err := entity.PropertiesJSON()
	if err != nil {
		return domain.Entity{}, fmt.Errorf("failed to marshal properties: %w", err)
	}

	row := r.pool.QueryRow(
		ctx,
		`UPDATE entities
		 SET properties = $2, updated_at = now()
		 WHERE id = $1
		 RETURNING id, tenant_id, entity_type, internal_code, properties, created_at, updated_at`,
		entity.ID,
		propertiesJSON,
	)

	updated, err := scanEntity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Entity{}, ErrEntityNotFound
		}
		return domain.Entity{}, fmt.Errorf("failed to update entity: %w", err)
	}
	return updated, nil
}

func (r *entityRepository) GetByInternalCode(ctx context.Context, tenantID uuid.UUID, entityType domain.EntityType, internalCode string) (domain.Entity, error) {
	row := r.pool.QueryRow(
		ctx,
		`SELECT id, tenant_id, entity_type, internal_code, properties, created_at, updated_at
		 FROM entities
		 WHERE tenant_id = $1 AND entity_type = $2 AND internal_code = $3`,
		tenantID,
		string(entityType),
		internalCode,
	)

	entity, err := scanEntity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Entity{}, ErrEntityNotFound
		}
		return domain.Entity{}, fmt.Errorf("failed to get entity by internal code: %w", err)
	}
	return entity, nil
}

func (r *entityRepository) ListByType(ctx context.Context, tenantID uuid.UUID, entityType domain.EntityType) ([]domain.Entity, error) {
	rows, err := r.pool.Query(
		ctx,
		`SELECT id, tenant_id, entity_type, internal_code, properties, created_at, updated_at
		 FROM entities
		 WHERE tenant_id = $1 AND entity_type = $2
		 ORDER BY created_at ASC`,
		tenantID,
		string(entityType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities by type: %w", err)
	}
	defer rows.Close()

	entities := []domain.Entity{}
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		entities = append(entities, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entities: %w", err)
	}
	return entities, nil
}

func (r *entityRepository) CountByType(ctx context.Context, tenantID uuid.UUID, entityType domain.EntityType) (int64, error) {
	var count int64
	err := r.pool.QueryRow(
		ctx,
		`SELECT count(*) FROM entities WHERE tenant_id = $1 AND entity_type = $2`,
		tenantID,
		string(entityType),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count entities by type: %w", err)
	}
	return count, nil
}

func scanEntity(row pgx.Row) (domain.Entity, error) {
	var (
		entity         domain.Entity
		entityType     string
		propertiesJSON json.RawMessage
	)

	if err := row.Scan(
		&entity.ID,
		&entity.TenantID,
		&entityType,
		&entity.InternalCode,
		&propertiesJSON,
		&entity.CreatedAt,
		&entity.UpdatedAt,
	); err != nil {
		return domain.Entity{}, err
	}

	entity.EntityType = domain.EntityType(entityType)
	properties, err := domain.PropertiesFromJSON(propertiesJSON)
	if err != nil {
		return domain.Entity{}, fmt.Errorf("failed to decode properties for entity %s: %w", entity.ID, err)
	}
	entity.Properties = properties
	return entity, nil
}
