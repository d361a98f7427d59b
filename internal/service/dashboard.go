package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spec-kit/helpdesk-triage/internal/domain"
	"github.com/spec-kit/helpdesk-triage/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-triage/pkg/util/errorutil"
)

const (
	filterAll      = "all"
	dateLayout     = "2006-01-02"
	csvTimeLayout  = "2006-01-02 15:04:05"
	trendWindows   = 6
	trendWindowLen = 30 * 24 * time.Hour
)

var csvHeader = []string{
	"ID", "Name", "Email", "Category", "Status", "Created At",
	"Resolved At", "Updated At", "Description", "AI Response", "Confidence Score",
}

var (
	ageBinUpperDays = []float64{1, 2, 3, 7, 14, 30, math.Inf(1)}
	ageBinLabels    = []string{"1 day", "2 days", "3 days", "1 week", "2 weeks", "1 month", "> 1 month"}
)

// DashboardQuery holds the raw dashboard query parameters. Empty or "all"
// disables a filter; dates use YYYY-MM-DD and the end date is inclusive.
type DashboardQuery struct {
	Status    string
	Category  string
	StartDate string
	EndDate   string
}

// DashboardMetrics summarises the filtered tickets.
type DashboardMetrics struct {
	TotalTickets    int
	ResolvedTickets int
	PendingTickets  int
}

// Dashboard is the filtered ticket list with its metrics.
type Dashboard struct {
	Tickets []domain.Ticket
	Metrics DashboardMetrics
}

// ChartSeries is one labelled chart.
type ChartSeries struct {
	Labels []string
	Values []float64
}

// ChartData feeds the dashboard charts.
type ChartData struct {
	AgeDistribution ChartSeries
	ResolutionTime  ChartSeries
}

// ParseDashboardQuery validates q and converts it to a repository filter.
func ParseDashboardQuery(q DashboardQuery) (repository.TicketFilter, error) {
	var filter repository.TicketFilter

	if status := strings.TrimSpace(q.Status); status != "" && status != filterAll {
		s := domain.TicketStatus(status)
		if !s.Valid() {
			return filter, apperrors.NewValidationError("invalid status", map[string]any{"status": status})
		}
		filter.Status = &s
	}
	if category := strings.TrimSpace(q.Category); category != "" && category != filterAll {
		c := domain.TicketCategory(category)
		if !c.Valid() {
			return filter, apperrors.NewValidationError("invalid category", map[string]any{"category": category})
		}
		filter.Category = &c
	}
	if start := strings.TrimSpace(q.StartDate); start != "" {
		t, err := time.Parse(dateLayout, start)
		if err != nil {
			return filter, apperrors.NewValidationError("invalid start_date", map[string]any{"start_date": start})
		}
		filter.CreatedFrom = &t
	}
	if end := strings.TrimSpace(q.EndDate); end != "" {
		t, err := time.Parse(dateLayout, end)
		if err != nil {
			return filter, apperrors.NewValidationError("invalid end_date", map[string]any{"end_date": end})
		}
		t = t.Add(23*time.Hour + 59*time.Minute + 59*time.Second)
		filter.CreatedTo = &t
	}
	return filter, nil
}

// Dashboard lists tickets newest first and counts them by status.
func (s *TicketService) Dashboard(ctx context.Context, q DashboardQuery) (*Dashboard, error) {
	filter, err := ParseDashboardQuery(q)
	if err != nil {
		return nil, err
	}
	tickets, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}

	metrics := DashboardMetrics{TotalTickets: len(tickets)}
	for _, t := range tickets {
		switch t.Status {
		case domain.TicketStatusResolved:
			metrics.ResolvedTickets++
		case domain.TicketStatusPendingReview:
			metrics.PendingTickets++
		}
	}
	return &Dashboard{Tickets: tickets, Metrics: metrics}, nil
}

// ExportFilename names a CSV export taken at now.
func ExportFilename(now time.Time) string {
	return "tickets_" + now.Format("20060102_150405") + ".csv"
}

// ExportCSV writes the dashboard selection as CSV to w.
func (s *TicketService) ExportCSV(ctx context.Context, q DashboardQuery, w io.Writer) error {
	dashboard, err := s.Dashboard(ctx, q)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for _, t := range dashboard.Tickets {
		resolvedAt := ""
		if t.ResolvedAt != nil {
			resolvedAt = t.ResolvedAt.Format(csvTimeLayout)
		}
		record := []string{
			strconv.FormatInt(t.ID, 10),
			t.Name,
			t.Email,
			string(t.Category),
			string(t.Status),
			t.CreatedAt.Format(csvTimeLayout),
			resolvedAt,
			t.UpdatedAt.Format(csvTimeLayout),
			t.Description,
			t.AIResponse,
			strconv.FormatFloat(t.ConfidenceScore, 'f', -1, 64),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ChartData computes the ticket age distribution and the resolution time
// trend over the last six 30-day windows.
func (s *TicketService) ChartData(ctx context.Context) (*ChartData, error) {
	tickets, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{})
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	now := s.now().UTC()
	return &ChartData{
		AgeDistribution: ageDistribution(tickets, now),
		ResolutionTime:  resolutionTrend(tickets, now),
	}, nil
}

func ageDistribution(tickets []domain.Ticket, now time.Time) ChartSeries {
	counts := make([]float64, len(ageBinLabels))
	for _, t := range tickets {
		end := now
		if t.ResolvedAt != nil {
			end = *t.ResolvedAt
		}
		age := end.Sub(t.CreatedAt).Hours() / 24
		for i, upper := range ageBinUpperDays {
			if age <= upper {
				counts[i]++
				break
			}
		}
	}
	return ChartSeries{Labels: append([]string(nil), ageBinLabels...), Values: counts}
}

func resolutionTrend(tickets []domain.Ticket, now time.Time) ChartSeries {
	series := ChartSeries{
		Labels: make([]string, 0, trendWindows),
		Values: make([]float64, 0, trendWindows),
	}
	for i := trendWindows - 1; i >= 0; i-- {
		start := now.Add(-time.Duration(i+1) * trendWindowLen)
		end := now.Add(-time.Duration(i) * trendWindowLen)

		var total float64
		var n int
		for _, t := range tickets {
			if t.ResolvedAt == nil || t.CreatedAt.Before(start) || !t.CreatedAt.Before(end) {
				continue
			}
			total += t.ResolvedAt.Sub(t.CreatedAt).Hours() / 24
			n++
		}
		avg := 0.0
		if n > 0 {
			avg = math.Round(total/float64(n)*10) / 10
		}
		series.Labels = append(series.Labels, start.Format("2006-01"))
		series.Values = append(series.Values, avg)
	}
	return series
}
