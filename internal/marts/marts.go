// Package marts builds the analysis tables the dashboard reads. Every mart
// is rebuilt from the latest version of each ad in the raw table.
package marts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/metrics"
	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/warehouse"
)

// Mart names.
const (
	OccupationDemand = "mart_occupation_demand"
	Employer         = "mart_employer"
	Urgency          = "mart_urgency"
	Geography        = "mart_geography"
	UrgencyGeography = "mart_urgency_geography"
	JobBrowser       = "mart_job_browser"
)

// Urgency categories, by days left until the application deadline.
const (
	UrgentSevenDays   = "urgent_7days"
	ClosingFortnight  = "closing_14days"
	ClosingThirtyDays = "closing_30days"
	NormalUrgency     = "normal"
)

// ErrUnknownMart is returned when a name is not in the registry.
var ErrUnknownMart = errors.New("unknown mart")

type definition struct {
	name  string
	build func(src, urgency string) string
}

var registry = []definition{
	{OccupationDemand, func(src, _ string) string {
		return `SELECT occupation_field, occupation_group, occupation,
			COUNT(*) AS total_job_ads,
			CAST(SUM(vacancies) AS BIGINT) AS total_vacancies
		FROM ` + src + `
		GROUP BY occupation_field, occupation_group, occupation
		ORDER BY total_vacancies DESC, occupation_field, occupation_group, occupation`
	}},
	{Employer, func(src, _ string) string {
		return `SELECT occupation_field, employer_name,
			COUNT(*) AS total_job_ads,
			CAST(SUM(vacancies) AS BIGINT) AS total_vacancies
		FROM ` + src + `
		GROUP BY occupation_field, employer_name
		ORDER BY total_vacancies DESC, occupation_field, employer_name`
	}},
	{Urgency, func(src, urgency string) string {
		return `SELECT occupation_field, urgency_category,
			COUNT(*) AS total_job_ads,
			CAST(SUM(vacancies) AS BIGINT) AS total_vacancies
		FROM (SELECT l.*, ` + urgency + ` AS urgency_category FROM ` + src + `) u
		GROUP BY occupation_field, urgency_category
		ORDER BY occupation_field, urgency_category`
	}},
	{Geography, func(src, _ string) string {
		return `SELECT occupation_field, region, municipality,
			COUNT(*) AS total_job_ads,
			CAST(SUM(vacancies) AS BIGINT) AS total_vacancies
		FROM ` + src + `
		GROUP BY occupation_field, region, municipality
		ORDER BY total_vacancies DESC, occupation_field, region, municipality`
	}},
	{UrgencyGeography, func(src, urgency string) string {
		byLevel := func(level, key, name string) string {
			return `SELECT occupation_field, urgency_category,
				'` + level + `' AS location_level,
				` + key + ` AS location_key,
				MAX(` + name + `) AS location_display_name,
				COUNT(*) AS total_job_ads,
				CAST(SUM(vacancies) AS BIGINT) AS total_vacancies
			FROM (SELECT l.*, ` + urgency + ` AS urgency_category FROM ` + src + `) u
			GROUP BY occupation_field, urgency_category, ` + key
		}
		return byLevel("region", "region_code", "region") +
			"\nUNION ALL\n" +
			byLevel("municipality", "municipality_code", "municipality")
	}},
	{JobBrowser, func(src, urgency string) string {
		return `SELECT id, headline, employer_name, occupation_field, occupation_group, occupation,
			region, municipality, vacancies, publication_date, application_deadline,
			` + urgency + ` AS urgency_category, webpage_url
		FROM ` + src + `
		ORDER BY publication_date DESC, id`
	}},
}

// Names lists every mart in build order.
func Names() []string {
	out := make([]string, len(registry))
	for i, d := range registry {
		out[i] = d.name
	}
	return out
}

// Known reports whether name is a registered mart.
func Known(name string) bool {
	for _, d := range registry {
		if d.name == name {
			return true
		}
	}
	return false
}

// Builder rebuilds and reads marts in a warehouse.
type Builder struct {
	wh     warehouse.Warehouse
	now    func() time.Time
	logger *slog.Logger
}

// NewBuilder returns a Builder using the wall clock in UTC.
func NewBuilder(wh warehouse.Warehouse) *Builder {
	return &Builder{
		wh:     wh,
		now:    func() time.Time { return time.Now().UTC() },
		logger: slog.Default().With("component", "marts"),
	}
}

// WithClock overrides the clock used to classify urgency.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Statements returns the DDL that rebuilds every mart.
func (b *Builder) Statements() []string {
	src := latestSource(b.wh.RawTable())
	urgency := urgencyExpr(b.now())

	stmts := make([]string, 0, 2*len(registry))
	for _, d := range registry {
		table := b.wh.MartTable(d.name)
		stmts = append(stmts,
			"DROP TABLE IF EXISTS "+table,
			"CREATE TABLE "+table+" AS\n"+d.build(src, urgency),
		)
	}
	return stmts
}

// Refresh rebuilds all marts in one transaction, so readers see either the
// old or the new set.
func (b *Builder) Refresh(ctx context.Context) error {
	start := time.Now()
	if err := b.wh.Exec(ctx, b.Statements()...); err != nil {
		return fmt.Errorf("refresh marts: %w", err)
	}
	elapsed := time.Since(start)
	metrics.MartRefreshDuration.Observe(elapsed.Seconds())
	b.logger.Info("marts refreshed", "marts", len(registry), "elapsed", elapsed)
	return nil
}

// Query returns every row of a mart.
func (b *Builder) Query(ctx context.Context, name string) (*warehouse.Table, error) {
	if !Known(name) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMart, name)
	}
	t, err := b.wh.Query(ctx, "SELECT * FROM "+b.wh.MartTable(name))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", name, err)
	}
	return t, nil
}

// latestSource keeps exactly one row per ad id: the one from the most recent
// load. Duplicates inside one load are collapsed too.
func latestSource(raw string) string {
	return `(SELECT v.* FROM (
			SELECT j.*, ROW_NUMBER() OVER (
				PARTITION BY j.id ORDER BY j._loaded_at DESC, j._load_id DESC
			) AS _version
			FROM ` + raw + ` j
		) v WHERE v._version = 1) l`
}

// urgencyExpr classifies application_deadline against today's date. Dates
// are compared as ISO text, which works on every backend.
func urgencyExpr(now time.Time) string {
	day := func(n int) string { return now.AddDate(0, 0, n).Format("2006-01-02") }
	var b strings.Builder
	b.WriteString("CASE")
	b.WriteString(" WHEN application_deadline IS NULL OR application_deadline = '' THEN '" + NormalUrgency + "'")
	b.WriteString(" WHEN substr(application_deadline, 1, 10) <= '" + day(7) + "' THEN '" + UrgentSevenDays + "'")
	b.WriteString(" WHEN substr(application_deadline, 1, 10) <= '" + day(14) + "' THEN '" + ClosingFortnight + "'")
	b.WriteString(" WHEN substr(application_deadline, 1, 10) <= '" + day(30) + "' THEN '" + ClosingThirtyDays + "'")
	b.WriteString(" ELSE '" + NormalUrgency + "' END")
	return b.String()
}
