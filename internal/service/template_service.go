package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/gymflow/gymflow-api/internal/models"
	appErrors "github.com/gymflow/gymflow-api/pkg/errors"
)

type templateStore interface {
	List(ctx context.Context, filter models.TemplateFilter) ([]models.ScheduleTemplate, int, error)
	FindByID(ctx context.Context, id string) (*models.ScheduleTemplate, error)
	Create(ctx context.Context, tpl *models.ScheduleTemplate) error
	Update(ctx context.Context, tpl *models.ScheduleTemplate) error
	Delete(ctx context.Context, id string) error
}

type classTypeStore interface {
	ListActive(ctx context.Context) ([]models.ClassType, error)
	FindByID(ctx context.Context, id string) (*models.ClassType, error)
	Create(ctx context.Context, classType *models.ClassType) error
	Update(ctx context.Context, classType *models.ClassType) error
	Delete(ctx context.Context, id string) error
}

// TemplateService handles the administrative schedule catalog.
type TemplateService struct {
	templates   templateStore
	classTypes  classTypeStore
	projections instanceCacheInvalidator
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewTemplateService instantiates TemplateService.
func NewTemplateService(
	templates templateStore,
	classTypes classTypeStore,
	projections instanceCacheInvalidator,
	validate *validator.Validate,
	logger *zap.Logger,
) *TemplateService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TemplateService{
		templates:   templates,
		classTypes:  classTypes,
		projections: projections,
		validator:   validate,
		logger:      logger,
	}
}

// TemplateRequest is the admin payload for creating or updating a template.
// PeriodAnchor arrives as a date and is normalised to the first of its month.
type TemplateRequest struct {
	ClassTypeID     string `json:"class_type_id" validate:"required"`
	DayOfWeek       int    `json:"day_of_week" validate:"min=0,max=6"`
	StartTime       string `json:"start_time" validate:"required,datetime=15:04"`
	DurationMinutes int    `json:"duration_minutes" validate:"required,min=15,max=240"`
	MaxCapacity     int    `json:"max_capacity" validate:"required,min=1,max=200"`
	PeriodAnchor    string `json:"period_anchor" validate:"required"`
}

// ListClassTypes returns the active class catalog.
func (s *TemplateService) ListClassTypes(ctx context.Context) ([]models.ClassType, error) {
	classTypes, err := s.classTypes.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list class types")
	}
	return classTypes, nil
}

// ClassTypeRequest is the admin payload for creating or updating a class type.
type ClassTypeRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=120"`
	Description string `json:"description" validate:"max=500"`
	Active      bool   `json:"active"`
}

// CreateClassType adds a class type to the catalog.
func (s *TemplateService) CreateClassType(ctx context.Context, req ClassTypeRequest) (*models.ClassType, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class type payload")
	}
	classType := &models.ClassType{Name: req.Name, Description: req.Description, Active: req.Active}
	if err := s.classTypes.Create(ctx, classType); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class type")
	}
	s.logger.Info("class type created", zap.String("class_type_id", classType.ID), zap.String("name", classType.Name))
	return classType, nil
}

// UpdateClassType rewrites a class type. Deactivating one hides it from the
// catalog but leaves its templates and bookings in place.
func (s *TemplateService) UpdateClassType(ctx context.Context, id string, req ClassTypeRequest) (*models.ClassType, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class type payload")
	}
	existing, err := s.getClassType(ctx, id)
	if err != nil {
		return nil, err
	}
	existing.Name = req.Name
	existing.Description = req.Description
	existing.Active = req.Active
	if err := s.classTypes.Update(ctx, existing); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class type")
	}
	s.projections.InvalidateClassType(ctx, id)
	return existing, nil
}

// DeleteClassType removes a class type; its templates and bookings cascade.
func (s *TemplateService) DeleteClassType(ctx context.Context, id string) error {
	if _, err := s.getClassType(ctx, id); err != nil {
		return err
	}
	if err := s.classTypes.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete class type")
	}
	s.projections.InvalidateClassType(ctx, id)
	s.logger.Info("class type deleted", zap.String("class_type_id", id))
	return nil
}

func (s *TemplateService) getClassType(ctx context.Context, id string) (*models.ClassType, error) {
	classType, err := s.classTypes.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class type not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class type")
	}
	return classType, nil
}

// List returns templates matching the filter together with the total count.
func (s *TemplateService) List(ctx context.Context, filter models.TemplateFilter) ([]models.ScheduleTemplate, int, error) {
	templates, total, err := s.templates.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list templates")
	}
	return templates, total, nil
}

// Get loads a single template.
func (s *TemplateService) Get(ctx context.Context, id string) (*models.ScheduleTemplate, error) {
	tpl, err := s.templates.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "template not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load template")
	}
	return tpl, nil
}

// Create adds a weekly slot to the schedule.
func (s *TemplateService) Create(ctx context.Context, req TemplateRequest) (*models.ScheduleTemplate, error) {
	tpl, err := s.buildTemplate(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.templates.Create(ctx, tpl); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create template")
	}
	s.projections.InvalidateClassType(ctx, tpl.ClassTypeID)
	s.logger.Info("template created",
		zap.String("template_id", tpl.ID),
		zap.String("class_type_id", tpl.ClassTypeID),
		zap.Int("day_of_week", tpl.DayOfWeek))
	return tpl, nil
}

// Update rewrites an existing template. Bookings keep pointing at the same
// template id, so capacity changes take effect on the next projection.
func (s *TemplateService) Update(ctx context.Context, id string, req TemplateRequest) (*models.ScheduleTemplate, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	tpl, err := s.buildTemplate(ctx, req)
	if err != nil {
		return nil, err
	}
	tpl.ID = existing.ID
	tpl.CreatedAt = existing.CreatedAt

	if err := s.templates.Update(ctx, tpl); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update template")
	}
	s.projections.InvalidateClassType(ctx, existing.ClassTypeID)
	if tpl.ClassTypeID != existing.ClassTypeID {
		s.projections.InvalidateClassType(ctx, tpl.ClassTypeID)
	}
	return tpl, nil
}

// Delete removes a template; its bookings cascade away with it.
func (s *TemplateService) Delete(ctx context.Context, id string) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.templates.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete template")
	}
	s.projections.InvalidateClassType(ctx, existing.ClassTypeID)
	s.logger.Info("template deleted", zap.String("template_id", id))
	return nil
}

func (s *TemplateService) buildTemplate(ctx context.Context, req TemplateRequest) (*models.ScheduleTemplate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid template payload")
	}
	anchor, err := time.Parse(classDateLayout, req.PeriodAnchor)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "period_anchor must use the YYYY-MM-DD format")
	}

	if _, err := s.classTypes.FindByID(ctx, req.ClassTypeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class type not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class type")
	}

	return &models.ScheduleTemplate{
		ClassTypeID:     req.ClassTypeID,
		DayOfWeek:       req.DayOfWeek,
		StartTime:       req.StartTime,
		DurationMinutes: req.DurationMinutes,
		MaxCapacity:     req.MaxCapacity,
		PeriodAnchor:    models.PeriodStart(anchor),
	}, nil
}
