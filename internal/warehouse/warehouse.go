// Package warehouse stores extracted job ads and load bookkeeping, and
// runs the SQL that builds and reads the marts.
package warehouse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/model"
	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/runlog"
)

// Disposition controls how a batch is written.
type Disposition string

const (
	// Append inserts every row; repeated loads keep every version of an ad.
	Append Disposition = "append"
	// Merge replaces earlier rows with the same id.
	Merge Disposition = "merge"
)

// ParseDisposition validates a WRITE_DISPOSITION value.
func ParseDisposition(s string) (Disposition, error) {
	switch d := Disposition(s); d {
	case Append, Merge:
		return d, nil
	}
	return "", fmt.Errorf("unknown write disposition %q", s)
}

// ErrUnknownTable is returned by Query for a table that does not exist.
var ErrUnknownTable = errors.New("unknown table")

// Warehouse is implemented by the Postgres and SQLite backends.
type Warehouse interface {
	// Migrate creates the raw table and the load log if missing.
	Migrate(ctx context.Context) error
	// Write stores rows under loadID in a single transaction.
	Write(ctx context.Context, loadID string, loadedAt time.Time, rows []Row, d Disposition) (int, error)
	// SaveRun upserts a load record.
	SaveRun(ctx context.Context, run *runlog.Run) error
	// Runs returns the most recent load records, newest first.
	Runs(ctx context.Context, limit int) ([]runlog.Run, error)
	// Exec runs statements in order inside one transaction.
	Exec(ctx context.Context, stmts ...string) error
	// Query runs a read-only statement and returns every row.
	Query(ctx context.Context, stmt string) (*Table, error)
	// RawTable is the qualified name of the job ads table.
	RawTable() string
	// MartTable qualifies a mart name.
	MartTable(name string) string
	Ping(ctx context.Context) error
	Close() error
}

// Table is a materialised query result.
type Table struct {
	Columns []string
	Rows    [][]any
}

// Column returns the index of name, or -1.
func (t *Table) Column(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Filter returns the rows whose column equals value.
func (t *Table) Filter(column, value string) *Table {
	idx := t.Column(column)
	out := &Table{Columns: t.Columns, Rows: [][]any{}}
	if idx < 0 {
		return out
	}
	for _, row := range t.Rows {
		if fmt.Sprint(row[idx]) == value {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// Records returns the rows as column-keyed maps.
func (t *Table) Records() []map[string]any {
	out := make([]map[string]any, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make(map[string]any, len(t.Columns))
		for i, c := range t.Columns {
			rec[c] = row[i]
		}
		out = append(out, rec)
	}
	return out
}

// Row is the flattened, column-per-field form of a job ad.
type Row struct {
	ID                  string
	Headline            string
	OccupationField     string
	OccupationFieldID   string
	OccupationGroup     string
	Occupation          string
	EmployerName        string
	Region              string
	RegionCode          string
	Municipality        string
	MunicipalityCode    string
	Vacancies           int
	PublicationDate     string
	ApplicationDeadline string
	WebpageURL          string
	Raw                 json.RawMessage
}

type labelled struct {
	ConceptID string `json:"concept_id"`
	Label     string `json:"label"`
}

type adDocument struct {
	Headline          string   `json:"headline"`
	NumberOfVacancies *int     `json:"number_of_vacancies"`
	PublicationDate   string   `json:"publication_date"`
	Deadline          string   `json:"application_deadline"`
	WebpageURL        string   `json:"webpage_url"`
	OccupationField   labelled `json:"occupation_field"`
	OccupationGroup   labelled `json:"occupation_group"`
	Occupation        labelled `json:"occupation"`
	Employer          struct {
		Name string `json:"name"`
	} `json:"employer"`
	WorkplaceAddress struct {
		Region           string `json:"region"`
		RegionCode       string `json:"region_code"`
		Municipality     string `json:"municipality"`
		MunicipalityCode string `json:"municipality_code"`
	} `json:"workplace_address"`
}

// RowFromAd flattens the fields the marts use. Fields of unexpected type are
// left empty rather than failing the load; Raw always keeps the API bytes.
func RowFromAd(ad model.JobAd) Row {
	row := Row{ID: ad.ID, Raw: ad.Raw, Vacancies: 1}
	var doc adDocument
	if err := json.Unmarshal(ad.Raw, &doc); err != nil {
		return row
	}
	row.Headline = doc.Headline
	row.OccupationField = doc.OccupationField.Label
	row.OccupationFieldID = doc.OccupationField.ConceptID
	row.OccupationGroup = doc.OccupationGroup.Label
	row.Occupation = doc.Occupation.Label
	row.EmployerName = doc.Employer.Name
	row.Region = doc.WorkplaceAddress.Region
	row.RegionCode = doc.WorkplaceAddress.RegionCode
	row.Municipality = doc.WorkplaceAddress.Municipality
	row.MunicipalityCode = doc.WorkplaceAddress.MunicipalityCode
	if doc.NumberOfVacancies != nil {
		row.Vacancies = *doc.NumberOfVacancies
	}
	row.PublicationDate = doc.PublicationDate
	row.ApplicationDeadline = doc.Deadline
	row.WebpageURL = doc.WebpageURL
	return row
}

// dedupeByID keeps the last row for every id, preserving first-seen order.
func dedupeByID(rows []Row) []Row {
	last := make(map[string]int, len(rows))
	order := make([]string, 0, len(rows))
	for i, r := range rows {
		if _, seen := last[r.ID]; !seen {
			order = append(order, r.ID)
		}
		last[r.ID] = i
	}
	out := make([]Row, 0, len(order))
	for _, id := range order {
		out = append(out, rows[last[id]])
	}
	return out
}

func ids(rows []Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}

var rawColumns = []string{
	"id", "headline", "occupation_field", "occupation_field_id", "occupation_group",
	"occupation", "employer_name", "region", "region_code", "municipality",
	"municipality_code", "vacancies", "publication_date", "application_deadline",
	"webpage_url", "raw", "_load_id", "_loaded_at",
}

func (r Row) values(loadID string, loadedAt any) []any {
	return []any{
		r.ID, r.Headline, r.OccupationField, r.OccupationFieldID, r.OccupationGroup,
		r.Occupation, r.EmployerName, r.Region, r.RegionCode, r.Municipality,
		r.MunicipalityCode, r.Vacancies, r.PublicationDate, r.ApplicationDeadline,
		r.WebpageURL, string(r.Raw), loadID, loadedAt,
	}
}
