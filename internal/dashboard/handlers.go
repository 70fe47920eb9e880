package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"

	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/marts"
	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/runlog"
	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/warehouse"
)

const (
	// FilterParam selects one occupation field; OptionAll disables it.
	FilterParam = "occupation_field"
	OptionAll   = "All"

	defaultTopEmployers = 20
	defaultPageSize     = 100
	maxPageSize         = 1000
)

var urgencyOrder = []string{marts.UrgentSevenDays, marts.ClosingFortnight, marts.ClosingThirtyDays, marts.NormalUrgency}

// RunLister lists recent loads for the home page.
type RunLister interface {
	Runs(ctx context.Context, limit int) ([]runlog.Run, error)
}

// Handlers renders every page from mart tables.
type Handlers struct {
	marts MartReader
	runs  RunLister
}

// NewHandlers returns page handlers. runs may be nil.
func NewHandlers(m MartReader, runs RunLister) *Handlers {
	return &Handlers{marts: m, runs: runs}
}

// ─── Pages ──────────────────────────────────────────────────────────────────

// Home lists the pages, the filter options and the latest loads.
func (h *Handlers) Home(routes Routes) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"title": "Jobsearch Dashboard",
			"pages": routes,
		}
		if opts, err := h.occupationFieldOptions(r.Context()); err == nil {
			resp["occupation_fields"] = opts
		} else {
			resp["occupation_fields"] = []string{OptionAll}
		}
		if h.runs != nil {
			runs, err := h.runs.Runs(r.Context(), 5)
			if err != nil {
				slog.Warn("list loads failed", "err", err)
			}
			resp["recent_loads"] = runs
		}
		jsonOK(w, resp)
	}
}

// OccupationFields returns the filter options, "All" first, then fields by
// total vacancies.
func (h *Handlers) OccupationFields(w http.ResponseWriter, r *http.Request) {
	opts, err := h.occupationFieldOptions(r.Context())
	if err != nil {
		martError(w, err)
		return
	}
	jsonOK(w, map[string]any{"options": opts})
}

// Demand handles GET /demand.
func (h *Handlers) Demand(w http.ResponseWriter, r *http.Request) {
	field := selectedField(r)
	t, err := h.filtered(r.Context(), marts.OccupationDemand, field)
	if err != nil {
		martError(w, err)
		return
	}
	ads, vacancies := totals(t)
	jsonOK(w, map[string]any{
		FilterParam:       field,
		"total_job_ads":   ads,
		"total_vacancies": vacancies,
		"rows":            t.Records(),
	})
}

// Employer handles GET /employer?top=N.
func (h *Handlers) Employer(w http.ResponseWriter, r *http.Request) {
	field := selectedField(r)
	top, err := intParam(r, "top", defaultTopEmployers, 1, maxPageSize)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	t, err := h.filtered(r.Context(), marts.Employer, field)
	if err != nil {
		martError(w, err)
		return
	}
	rows := groupSum(t, "employer_name")
	if len(rows) > top {
		rows = rows[:top]
	}
	jsonOK(w, map[string]any{FilterParam: field, "employers": rows})
}

// Urgency handles GET /urgency.
func (h *Handlers) Urgency(w http.ResponseWriter, r *http.Request) {
	field := selectedField(r)
	t, err := h.filtered(r.Context(), marts.Urgency, field)
	if err != nil {
		martError(w, err)
		return
	}
	byCat := map[string]group{}
	for _, g := range groupSum(t, "urgency_category") {
		byCat[g.Key] = g
	}
	out := make([]group, 0, len(urgencyOrder))
	for _, cat := range urgencyOrder {
		g := byCat[cat]
		g.Key = cat
		out = append(out, g)
	}
	jsonOK(w, map[string]any{FilterParam: field, "categories": out})
}

// Geography handles GET /geography?location_level=region|municipality&urgency_category=...
func (h *Handlers) Geography(w http.ResponseWriter, r *http.Request) {
	field := selectedField(r)
	level := r.URL.Query().Get("location_level")
	if level == "" {
		level = "region"
	}
	if level != "region" && level != "municipality" && level != OptionAll {
		jsonError(w, fmt.Sprintf("location_level must be region or municipality, got %q", level), http.StatusBadRequest)
		return
	}
	urgency := r.URL.Query().Get("urgency_category")
	if urgency == "" {
		urgency = OptionAll
	}

	t, err := h.filtered(r.Context(), marts.UrgencyGeography, field)
	if err != nil {
		martError(w, err)
		return
	}
	if level != OptionAll {
		t = t.Filter("location_level", level)
	}
	if urgency != OptionAll {
		t = t.Filter("urgency_category", urgency)
	}

	names := map[string]string{}
	if idx, key := t.Column("location_display_name"), t.Column("location_key"); idx >= 0 && key >= 0 {
		for _, row := range t.Rows {
			names[fmt.Sprint(row[key])] = fmt.Sprint(row[idx])
		}
	}
	locations := groupSum(t, "location_key")
	for i := range locations {
		locations[i].Label = names[locations[i].Key]
	}
	jsonOK(w, map[string]any{
		FilterParam:        field,
		"location_level":   level,
		"urgency_category": urgency,
		"locations":        locations,
	})
}

// Browser handles GET /browser?limit=&offset=.
func (h *Handlers) Browser(w http.ResponseWriter, r *http.Request) {
	field := selectedField(r)
	limit, err := intParam(r, "limit", defaultPageSize, 1, maxPageSize)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	offset, err := intParam(r, "offset", 0, 0, -1)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	t, err := h.filtered(r.Context(), marts.JobBrowser, field)
	if err != nil {
		martError(w, err)
		return
	}
	recs := t.Records()
	total := len(recs)
	if offset > total {
		offset = total
	}
	end := min(offset+limit, total)
	jsonOK(w, map[string]any{
		FilterParam: field,
		"total":     total,
		"offset":    offset,
		"limit":     limit,
		"rows":      recs[offset:end],
	})
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func (h *Handlers) filtered(ctx context.Context, mart, field string) (*warehouse.Table, error) {
	t, err := h.marts.Query(ctx, mart)
	if err != nil {
		return nil, err
	}
	if field == OptionAll {
		return t, nil
	}
	return t.Filter(FilterParam, field), nil
}

func (h *Handlers) occupationFieldOptions(ctx context.Context) ([]string, error) {
	t, err := h.marts.Query(ctx, marts.OccupationDemand)
	if err != nil {
		return nil, err
	}
	opts := []string{OptionAll}
	for _, g := range groupSum(t, FilterParam) {
		opts = append(opts, g.Key)
	}
	return opts, nil
}

func selectedField(r *http.Request) string {
	if v := r.URL.Query().Get(FilterParam); v != "" {
		return v
	}
	return OptionAll
}

type group struct {
	Key            string `json:"key"`
	Label          string `json:"label,omitempty"`
	TotalJobAds    int64  `json:"total_job_ads"`
	TotalVacancies int64  `json:"total_vacancies"`
}

// groupSum sums total_job_ads and total_vacancies per distinct value of
// column, largest vacancy count first.
func groupSum(t *warehouse.Table, column string) []group {
	key, ads, vac := t.Column(column), t.Column("total_job_ads"), t.Column("total_vacancies")
	if key < 0 {
		return nil
	}
	byKey := map[string]*group{}
	var order []string
	for _, row := range t.Rows {
		k := fmt.Sprint(row[key])
		g, ok := byKey[k]
		if !ok {
			g = &group{Key: k}
			byKey[k] = g
			order = append(order, k)
		}
		if ads >= 0 {
			g.TotalJobAds += toInt64(row[ads])
		}
		if vac >= 0 {
			g.TotalVacancies += toInt64(row[vac])
		}
	}
	out := make([]group, 0, len(order))
	for _, k := range order {
		out = append(out, *byKey[k])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalVacancies > out[j].TotalVacancies })
	return out
}

func totals(t *warehouse.Table) (ads, vacancies int64) {
	a, v := t.Column("total_job_ads"), t.Column("total_vacancies")
	for _, row := range t.Rows {
		if a >= 0 {
			ads += toInt64(row[a])
		}
		if v >= 0 {
			vacancies += toInt64(row[v])
		}
	}
	return ads, vacancies
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	}
	return 0
}

// intParam reads a query integer in [lo, hi]; hi < 0 means unbounded.
func intParam(r *http.Request, name string, def, lo, hi int) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < lo || (hi >= 0 && v > hi) {
		return 0, fmt.Errorf("invalid %s %q", name, s)
	}
	return v, nil
}

func martError(w http.ResponseWriter, err error) {
	if errors.Is(err, warehouse.ErrUnknownTable) {
		jsonError(w, "marts have not been built yet; run `jobsearch marts refresh`", http.StatusServiceUnavailable)
		return
	}
	slog.Error("mart query failed", "err", err)
	jsonError(w, "internal server error", http.StatusInternalServerError)
}

func jsonOK(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
