package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/gymflow/gymflow-api/internal/models"
	appErrors "github.com/gymflow/gymflow-api/pkg/errors"
)

type projectorTemplateRepository interface {
	ListByClassType(ctx context.Context, classTypeID string) ([]models.ScheduleTemplate, error)
}

type projectorBookingRepository interface {
	CountsForTemplates(ctx context.Context, templateIDs []string, from time.Time) ([]models.InstanceCount, error)
}

// ProjectorService turns schedule templates into concrete bookable class
// instances. Instances are derived on every call and never persisted, so the
// templates stay the single source of truth.
type ProjectorService struct {
	templates    projectorTemplateRepository
	bookings     projectorBookingRepository
	cache        *CacheService
	horizonWeeks int
	cacheTTL     time.Duration
	logger       *zap.Logger
	now          func() time.Time
}

// NewProjectorService instantiates the projector.
func NewProjectorService(templates projectorTemplateRepository, bookings projectorBookingRepository, cache *CacheService, horizonWeeks int, cacheTTL time.Duration, logger *zap.Logger) *ProjectorService {
	if horizonWeeks <= 0 {
		horizonWeeks = 8
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProjectorService{
		templates:    templates,
		bookings:     bookings,
		cache:        cache,
		horizonWeeks: horizonWeeks,
		cacheTTL:     cacheTTL,
		logger:       logger,
		now:          time.Now,
	}
}

// Project computes the dated occurrences of a template inside the horizon.
// The first occurrence is the next date on or after horizonStart whose
// weekday matches the template; only instants strictly after now survive.
// Deterministic for identical inputs.
func Project(tpl models.ScheduleTemplate, horizonStart time.Time, weeks int, now time.Time) ([]models.ClassInstance, error) {
	if tpl.DayOfWeek < 0 || tpl.DayOfWeek > 6 {
		return nil, fmt.Errorf("template %s has invalid day of week %d", tpl.ID, tpl.DayOfWeek)
	}

	day := time.Date(horizonStart.Year(), horizonStart.Month(), horizonStart.Day(), 0, 0, 0, 0, horizonStart.Location())
	offset := (tpl.DayOfWeek - int(day.Weekday()) + 7) % 7
	first := day.AddDate(0, 0, offset)

	instances := make([]models.ClassInstance, 0, weeks)
	for week := 0; week < weeks; week++ {
		date := first.AddDate(0, 0, 7*week)
		startsAt, err := tpl.StartsOn(date)
		if err != nil {
			return nil, err
		}
		if !startsAt.After(now) {
			continue
		}
		instances = append(instances, models.ClassInstance{
			TemplateID:  tpl.ID,
			ClassTypeID: tpl.ClassTypeID,
			Date:        date,
			StartsAt:    startsAt,
			EndsAt:      startsAt.Add(time.Duration(tpl.DurationMinutes) * time.Minute),
			Capacity:    tpl.MaxCapacity,
		})
	}
	return instances, nil
}

// UpcomingForClassType projects every template of a class type — across all
// periods — over the configured horizon, decorated with live booking counts.
func (s *ProjectorService) UpcomingForClassType(ctx context.Context, classTypeID string) ([]models.ClassInstance, error) {
	cacheKey := fmt.Sprintf("instances:classtype:%s", classTypeID)
	var cached []models.ClassInstance
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return cached, nil
	}

	templates, err := s.templates.ListByClassType(ctx, classTypeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load templates")
	}

	now := s.now()
	var all []models.ClassInstance
	templateIDs := make([]string, 0, len(templates))
	for _, tpl := range templates {
		templateIDs = append(templateIDs, tpl.ID)
		instances, err := Project(tpl, now, s.horizonWeeks, now)
		if err != nil {
			s.logger.Warn("skipping unprojectable template", zap.String("template_id", tpl.ID), zap.Error(err))
			continue
		}
		all = append(all, instances...)
	}

	if err := s.decorateCounts(ctx, all, templateIDs, now); err != nil {
		return nil, err
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].StartsAt.Before(all[j].StartsAt)
	})

	_ = s.cache.Set(ctx, cacheKey, all, s.cacheTTL)
	return all, nil
}

// InvalidateClassType drops cached projections after template or booking
// writes.
func (s *ProjectorService) InvalidateClassType(ctx context.Context, classTypeID string) {
	s.cache.Invalidate(ctx, fmt.Sprintf("instances:classtype:%s", classTypeID))
}

func (s *ProjectorService) decorateCounts(ctx context.Context, instances []models.ClassInstance, templateIDs []string, from time.Time) error {
	if len(instances) == 0 {
		return nil
	}
	counts, err := s.bookings.CountsForTemplates(ctx, templateIDs, time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location()))
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking counts")
	}

	type instanceKey struct {
		templateID string
		date       string
	}
	confirmed := make(map[instanceKey]int)
	waitlisted := make(map[instanceKey]int)
	for _, c := range counts {
		key := instanceKey{c.TemplateID, c.ClassDate.Format("2006-01-02")}
		switch c.Status {
		case models.BookingConfirmed:
			confirmed[key] = c.Count
		case models.BookingWaitlist:
			waitlisted[key] = c.Count
		}
	}

	for i := range instances {
		key := instanceKey{instances[i].TemplateID, instances[i].Date.Format("2006-01-02")}
		instances[i].ConfirmedCount = confirmed[key]
		instances[i].WaitlistCount = waitlisted[key]
	}
	return nil
}
