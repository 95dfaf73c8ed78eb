package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gymflow/gymflow-api/internal/models"
	appErrors "github.com/gymflow/gymflow-api/pkg/errors"
)

type stubTemplateCatalog struct {
	stubTemplates
	updated []*models.ScheduleTemplate
}

func (s *stubTemplateCatalog) List(context.Context, models.TemplateFilter) ([]models.ScheduleTemplate, int, error) {
	return nil, 0, nil
}

func (s *stubTemplateCatalog) Update(_ context.Context, tpl *models.ScheduleTemplate) error {
	s.updated = append(s.updated, tpl)
	return nil
}

type stubClassTypes struct {
	known map[string]bool
}

func (s *stubClassTypes) ListActive(context.Context) ([]models.ClassType, error) {
	return nil, nil
}

func (s *stubClassTypes) FindByID(_ context.Context, id string) (*models.ClassType, error) {
	if !s.known[id] {
		return nil, sql.ErrNoRows
	}
	return &models.ClassType{ID: id}, nil
}

func (s *stubClassTypes) Create(_ context.Context, classType *models.ClassType) error {
	classType.ID = "ct-1"
	s.known[classType.ID] = true
	return nil
}

func (s *stubClassTypes) Update(_ context.Context, classType *models.ClassType) error {
	if !s.known[classType.ID] {
		return sql.ErrNoRows
	}
	return nil
}

func (s *stubClassTypes) Delete(_ context.Context, id string) error {
	delete(s.known, id)
	return nil
}

func newTemplateFixture() (*TemplateService, *stubTemplateCatalog, *stubInvalidator) {
	catalog := &stubTemplateCatalog{stubTemplates: stubTemplates{templates: map[string]*models.ScheduleTemplate{}}}
	invalidator := &stubInvalidator{}
	svc := NewTemplateService(catalog, &stubClassTypes{known: map[string]bool{"yoga": true}}, invalidator, nil, nil)
	return svc, catalog, invalidator
}

func TestCreateTemplateNormalisesPeriodAnchor(t *testing.T) {
	svc, catalog, invalidator := newTemplateFixture()

	tpl, err := svc.Create(context.Background(), TemplateRequest{
		ClassTypeID:     "yoga",
		DayOfWeek:       1,
		StartTime:       "18:30",
		DurationMinutes: 60,
		MaxCapacity:     20,
		PeriodAnchor:    "2026-09-15",
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC), tpl.PeriodAnchor)
	require.Len(t, catalog.created, 1)
	assert.Equal(t, []string{"yoga"}, invalidator.classTypes)
}

func TestCreateTemplateRejectsUnknownClassType(t *testing.T) {
	svc, catalog, _ := newTemplateFixture()

	_, err := svc.Create(context.Background(), TemplateRequest{
		ClassTypeID:     "pilates",
		DayOfWeek:       1,
		StartTime:       "18:30",
		DurationMinutes: 60,
		MaxCapacity:     20,
		PeriodAnchor:    "2026-09-01",
	})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
	assert.Empty(t, catalog.created)
}

func TestCreateTemplateRejectsBadStartTime(t *testing.T) {
	svc, _, _ := newTemplateFixture()

	_, err := svc.Create(context.Background(), TemplateRequest{
		ClassTypeID:     "yoga",
		DayOfWeek:       1,
		StartTime:       "6pm",
		DurationMinutes: 60,
		MaxCapacity:     20,
		PeriodAnchor:    "2026-09-01",
	})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestDeleteTemplateInvalidatesProjection(t *testing.T) {
	svc, catalog, invalidator := newTemplateFixture()
	catalog.templates["tpl-1"] = &models.ScheduleTemplate{ID: "tpl-1", ClassTypeID: "yoga"}

	require.NoError(t, svc.Delete(context.Background(), "tpl-1"))
	assert.Equal(t, []string{"tpl-1"}, catalog.deleted)
	assert.Equal(t, []string{"yoga"}, invalidator.classTypes)
}

func TestDeleteMissingTemplate(t *testing.T) {
	svc, _, _ := newTemplateFixture()

	err := svc.Delete(context.Background(), "missing")
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestCreateClassTypeAssignsID(t *testing.T) {
	svc, _, _ := newTemplateFixture()

	classType, err := svc.CreateClassType(context.Background(), ClassTypeRequest{
		Name:   "Spinning",
		Active: true,
	})

	require.NoError(t, err)
	assert.Equal(t, "ct-1", classType.ID)
	assert.Equal(t, "Spinning", classType.Name)
}

func TestCreateClassTypeRejectsShortName(t *testing.T) {
	svc, _, _ := newTemplateFixture()

	_, err := svc.CreateClassType(context.Background(), ClassTypeRequest{Name: "x"})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestUpdateClassTypeInvalidatesProjection(t *testing.T) {
	svc, _, invalidator := newTemplateFixture()

	classType, err := svc.UpdateClassType(context.Background(), "yoga", ClassTypeRequest{
		Name:   "Yoga Flow",
		Active: false,
	})

	require.NoError(t, err)
	assert.Equal(t, "Yoga Flow", classType.Name)
	assert.False(t, classType.Active)
	assert.Equal(t, []string{"yoga"}, invalidator.classTypes)
}

func TestUpdateUnknownClassType(t *testing.T) {
	svc, _, _ := newTemplateFixture()

	_, err := svc.UpdateClassType(context.Background(), "ghost", ClassTypeRequest{Name: "Ghost Class"})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestDeleteClassTypeInvalidatesProjection(t *testing.T) {
	svc, _, invalidator := newTemplateFixture()

	require.NoError(t, svc.DeleteClassType(context.Background(), "yoga"))
	assert.Equal(t, []string{"yoga"}, invalidator.classTypes)
}
