package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gymflow/gymflow-api/internal/models"
)

// ClassTypeRepository provides persistence for the class catalog.
type ClassTypeRepository struct {
	db *sqlx.DB
}

// NewClassTypeRepository creates a class type repository.
func NewClassTypeRepository(db *sqlx.DB) *ClassTypeRepository {
	return &ClassTypeRepository{db: db}
}

// ListActive returns all active class types ordered by name.
func (r *ClassTypeRepository) ListActive(ctx context.Context) ([]models.ClassType, error) {
	const query = `SELECT id, name, description, active, created_at, updated_at FROM class_types WHERE active = TRUE ORDER BY name ASC`
	var classTypes []models.ClassType
	if err := r.db.SelectContext(ctx, &classTypes, query); err != nil {
		return nil, fmt.Errorf("list class types: %w", err)
	}
	return classTypes, nil
}

// FindByID loads a class type by id.
func (r *ClassTypeRepository) FindByID(ctx context.Context, id string) (*models.ClassType, error) {
	const query = `SELECT id, name, description, active, created_at, updated_at FROM class_types WHERE id = $1`
	var classType models.ClassType
	if err := r.db.GetContext(ctx, &classType, query, id); err != nil {
		return nil, err
	}
	return &classType, nil
}

// Create stores a new class type.
func (r *ClassTypeRepository) Create(ctx context.Context, classType *models.ClassType) error {
	if classType.ID == "" {
		classType.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if classType.CreatedAt.IsZero() {
		classType.CreatedAt = now
	}
	classType.UpdatedAt = now

	const query = `INSERT INTO class_types (id, name, description, active, created_at, updated_at)
		VALUES (:id, :name, :description, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, classType); err != nil {
		return fmt.Errorf("create class type: %w", err)
	}
	return nil
}

// Update modifies a class type.
func (r *ClassTypeRepository) Update(ctx context.Context, classType *models.ClassType) error {
	classType.UpdatedAt = time.Now().UTC()
	const query = `UPDATE class_types SET name = :name, description = :description, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, classType); err != nil {
		return fmt.Errorf("update class type: %w", err)
	}
	return nil
}

// Delete removes a class type; templates and bookings cascade.
func (r *ClassTypeRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM class_types WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete class type: %w", err)
	}
	return nil
}
