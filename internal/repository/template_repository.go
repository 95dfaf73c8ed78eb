package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gymflow/gymflow-api/internal/models"
)

// TemplateRepository provides persistence for schedule templates.
type TemplateRepository struct {
	db *sqlx.DB
}

// NewTemplateRepository creates a new template repository.
func NewTemplateRepository(db *sqlx.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

const templateColumns = `id, class_type_id, day_of_week, start_time, duration_minutes, max_capacity, period_anchor, created_at, updated_at`

// List returns templates with optional filtering and pagination.
func (r *TemplateRepository) List(ctx context.Context, filter models.TemplateFilter) ([]models.ScheduleTemplate, int, error) {
	base := "FROM schedule_templates WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.ClassTypeID != "" {
		conditions = append(conditions, fmt.Sprintf("class_type_id = $%d", len(args)+1))
		args = append(args, filter.ClassTypeID)
	}
	if filter.DayOfWeek != nil {
		conditions = append(conditions, fmt.Sprintf("day_of_week = $%d", len(args)+1))
		args = append(args, *filter.DayOfWeek)
	}
	if filter.PeriodAnchor != nil {
		conditions = append(conditions, fmt.Sprintf("period_anchor = $%d", len(args)+1))
		args = append(args, *filter.PeriodAnchor)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY day_of_week ASC, start_time ASC LIMIT %d OFFSET %d", templateColumns, base, size, offset)
	var templates []models.ScheduleTemplate
	if err := r.db.SelectContext(ctx, &templates, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list templates: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count templates: %w", err)
	}

	return templates, total, nil
}

// FindByID loads a template by id.
func (r *TemplateRepository) FindByID(ctx context.Context, id string) (*models.ScheduleTemplate, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedule_templates WHERE id = $1`, templateColumns)
	var tpl models.ScheduleTemplate
	if err := r.db.GetContext(ctx, &tpl, query, id); err != nil {
		return nil, err
	}
	return &tpl, nil
}

// ListByClassType returns every template of a class type across all periods.
// The projector consumes all of them; historical templates still contribute
// instances while those fall inside the future window.
func (r *TemplateRepository) ListByClassType(ctx context.Context, classTypeID string) ([]models.ScheduleTemplate, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedule_templates WHERE class_type_id = $1 ORDER BY day_of_week ASC, start_time ASC`, templateColumns)
	var templates []models.ScheduleTemplate
	if err := r.db.SelectContext(ctx, &templates, query, classTypeID); err != nil {
		return nil, fmt.Errorf("list templates by class type: %w", err)
	}
	return templates, nil
}

// Create stores a new template record.
func (r *TemplateRepository) Create(ctx context.Context, tpl *models.ScheduleTemplate) error {
	if tpl.ID == "" {
		tpl.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if tpl.CreatedAt.IsZero() {
		tpl.CreatedAt = now
	}
	tpl.UpdatedAt = now

	const query = `INSERT INTO schedule_templates (id, class_type_id, day_of_week, start_time, duration_minutes, max_capacity, period_anchor, created_at, updated_at)
		VALUES (:id, :class_type_id, :day_of_week, :start_time, :duration_minutes, :max_capacity, :period_anchor, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, tpl); err != nil {
		return fmt.Errorf("create template: %w", err)
	}
	return nil
}

// Update modifies a template record.
func (r *TemplateRepository) Update(ctx context.Context, tpl *models.ScheduleTemplate) error {
	tpl.UpdatedAt = time.Now().UTC()
	const query = `UPDATE schedule_templates SET class_type_id = :class_type_id, day_of_week = :day_of_week, start_time = :start_time,
		duration_minutes = :duration_minutes, max_capacity = :max_capacity, period_anchor = :period_anchor, updated_at = :updated_at
		WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, tpl); err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	return nil
}

// Delete removes a template; dependent bookings cascade.
func (r *TemplateRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM schedule_templates WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	return nil
}

// DuplicateForPeriod copies every template anchored to currentPeriod into
// nextPeriod, skipping slots that already exist there. Running it twice in
// the same period is a no-op, which is what makes the roll-forward job safe
// to re-trigger.
func (r *TemplateRepository) DuplicateForPeriod(ctx context.Context, currentPeriod, nextPeriod time.Time) (int64, error) {
	const query = `INSERT INTO schedule_templates (id, class_type_id, day_of_week, start_time, duration_minutes, max_capacity, period_anchor, created_at, updated_at)
		SELECT gen_random_uuid(), src.class_type_id, src.day_of_week, src.start_time, src.duration_minutes, src.max_capacity, $2, NOW(), NOW()
		FROM schedule_templates src
		WHERE src.period_anchor = $1
		  AND NOT EXISTS (
			SELECT 1 FROM schedule_templates dst
			WHERE dst.class_type_id = src.class_type_id
			  AND dst.day_of_week = src.day_of_week
			  AND dst.start_time = src.start_time
			  AND dst.period_anchor = $2
		  )`
	result, err := r.db.ExecContext(ctx, query, currentPeriod, nextPeriod)
	if err != nil {
		return 0, fmt.Errorf("duplicate templates for next period: %w", err)
	}
	created, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("duplicated templates rows affected: %w", err)
	}
	return created, nil
}
