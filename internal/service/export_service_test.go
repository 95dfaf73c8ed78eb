package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gymflow/gymflow-api/internal/models"
	appErrors "github.com/gymflow/gymflow-api/pkg/errors"
)

type stubRoster struct {
	entries []models.RosterEntry
}

func (s *stubRoster) Roster(context.Context, string, time.Time) ([]models.RosterEntry, error) {
	return s.entries, nil
}

func newExportFixture() (*ExportService, *stubRoster) {
	position := 1
	roster := &stubRoster{entries: []models.RosterEntry{
		{UserID: "u1", FullName: "Ana Diaz", Email: "ana@example.com", Status: models.BookingConfirmed},
		{UserID: "u2", FullName: "Ben Ortiz", Email: "ben@example.com", Status: models.BookingWaitlist, Position: &position},
	}}
	templates := &stubTemplates{templates: map[string]*models.ScheduleTemplate{
		"tpl-1": {ID: "tpl-1", ClassTypeID: "yoga", DayOfWeek: 1, StartTime: "18:30", MaxCapacity: 20},
	}}
	return NewExportService(roster, templates, nil), roster
}

func TestRosterCSVContainsAttendees(t *testing.T) {
	svc, _ := newExportFixture()

	date := time.Date(2026, time.September, 7, 0, 0, 0, 0, time.UTC)
	result, err := svc.Roster(context.Background(), "tpl-1", date, FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "roster_2026-09-07_18:30.csv", result.FileName)
	assert.Equal(t, "text/csv", result.ContentType)

	body := string(result.Data)
	assert.Contains(t, body, "Ana Diaz")
	assert.Contains(t, body, "ben@example.com")
	assert.Contains(t, body, "waitlist")
	// Header first, then one line per attendee.
	assert.Equal(t, 3, strings.Count(strings.TrimSpace(body), "\n")+1)
}

func TestRosterPDFRenders(t *testing.T) {
	svc, _ := newExportFixture()

	date := time.Date(2026, time.September, 7, 0, 0, 0, 0, time.UTC)
	result, err := svc.Roster(context.Background(), "tpl-1", date, FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.True(t, strings.HasPrefix(string(result.Data), "%PDF"))
}

func TestRosterRejectsUnknownFormat(t *testing.T) {
	svc, _ := newExportFixture()

	_, err := svc.Roster(context.Background(), "tpl-1", time.Now(), ExportFormat("xlsx"))
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestRosterUnknownTemplate(t *testing.T) {
	svc, _ := newExportFixture()

	_, err := svc.Roster(context.Background(), "missing", time.Now(), FormatCSV)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
