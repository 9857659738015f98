package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/noah-isme/study-replan-api/internal/dto"
	"github.com/noah-isme/study-replan-api/internal/models"
	appErrors "github.com/noah-isme/study-replan-api/pkg/errors"
	"github.com/noah-isme/study-replan-api/pkg/export"
)

const calendarProductID = "-//study-replan-api//replan runs//EN"

var runExportHeaders = []string{"session_id", "subject", "old_date", "new_date", "strategy"}

type runExporter struct {
	csv  *export.CSVExporter
	pdf  *export.PDFExporter
	xlsx *export.XLSXExporter
	ics  *export.ICSExporter
}

func newRunExporter() *runExporter {
	return &runExporter{
		csv:  export.NewCSVExporter(),
		pdf:  export.NewPDFExporter(),
		xlsx: export.NewXLSXExporter(),
		ics:  export.NewICSExporter(calendarProductID),
	}
}

// ListRuns returns the plan's run history, newest first.
func (s *ReplanService) ListRuns(ctx context.Context, req dto.ReplanRunListRequest) ([]models.ReplanRun, *models.Pagination, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid run history request")
	}
	if _, err := s.plans.FindByIDAndUser(ctx, req.PlanID, req.UserID); err != nil {
		return nil, nil, planLookupError(err)
	}

	page, size := req.Page, req.PageSize
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	runs, total, err := s.runs.ListByPlan(ctx, models.ReplanRunFilter{PlanID: req.PlanID, Page: page, PageSize: size})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list replan runs")
	}
	if runs == nil {
		runs = []models.ReplanRun{}
	}
	return runs, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// ExportRun renders the placements of a stored run.
func (s *ReplanService) ExportRun(ctx context.Context, req dto.ReplanRunExportRequest) (*dto.ExportFile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid run export request")
	}
	format, err := export.ParseFormat(req.Format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnsupported.Code, appErrors.ErrUnsupported.Status, err.Error())
	}
	if _, err := s.plans.FindByIDAndUser(ctx, req.PlanID, req.UserID); err != nil {
		return nil, planLookupError(err)
	}

	run, err := s.runs.FindByID(ctx, req.PlanID, req.RunID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "replan run not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load replan run")
	}

	var placements []models.RunPlacement
	if len(run.Distribution) > 0 {
		if err := json.Unmarshal(run.Distribution, &placements); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode run distribution")
		}
	}

	body, err := s.exporter.render(format, run, placements)
	if err != nil {
		return nil, err
	}
	return &dto.ExportFile{
		Filename:    fmt.Sprintf("replan-run-%s.%s", run.ID, format.Extension()),
		ContentType: format.ContentType(),
		Body:        body,
	}, nil
}

func (e *runExporter) render(format export.Format, run *models.ReplanRun, placements []models.RunPlacement) ([]byte, error) {
	var (
		body []byte
		err  error
	)
	switch format {
	case export.FormatICS:
		if len(placements) == 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "run has no rescheduled sessions to put on a calendar")
		}
		body, err = e.ics.Render(fmt.Sprintf("Replan %s", run.ExecutedAt.Format("2006-01-02")), runEvents(run, placements))
	case export.FormatPDF:
		body, err = e.pdf.Render(runDataset(run, placements), runSubtitle(run))
	case export.FormatXLSX:
		body, err = e.xlsx.Render(runDataset(run, placements), "Replan")
	default:
		body, err = e.csv.Render(runDataset(run, placements))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render run export")
	}
	return body, nil
}

func runDataset(run *models.ReplanRun, placements []models.RunPlacement) export.Dataset {
	rows := make([]map[string]string, 0, len(placements))
	for _, p := range placements {
		rows = append(rows, map[string]string{
			"session_id": strconv.FormatInt(p.SessionID, 10),
			"subject":    p.Subject,
			"old_date":   p.OldDate,
			"new_date":   p.NewDate,
			"strategy":   p.Strategy,
		})
	}
	return export.Dataset{
		Title:   fmt.Sprintf("Replan run %s", run.ID),
		Headers: runExportHeaders,
		Rows:    rows,
	}
}

func runSubtitle(run *models.ReplanRun) string {
	return fmt.Sprintf("Executed %s: %d of %d rescheduled, %d failed",
		run.ExecutedAt.UTC().Format(time.RFC3339), run.Rescheduled, run.Total, run.Failed)
}

func runEvents(run *models.ReplanRun, placements []models.RunPlacement) []export.CalendarEvent {
	events := make([]export.CalendarEvent, 0, len(placements))
	for _, p := range placements {
		date, err := time.Parse("2006-01-02", p.NewDate)
		if err != nil {
			continue
		}
		events = append(events, export.CalendarEvent{
			UID:         fmt.Sprintf("%s-%d@study-replan", run.ID, p.SessionID),
			Summary:     fmt.Sprintf("Study: %s", p.Subject),
			Description: fmt.Sprintf("Moved from %s", p.OldDate),
			Date:        date,
		})
	}
	return events
}
