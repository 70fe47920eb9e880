package marts_test

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/marts"
	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/model"
	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/warehouse"
)

var today = time.Date(2026, 10, 16, 11, 25, 0, 0, time.UTC)

type ad struct {
	id, field, employer, region, regionCode, muni, muniCode, deadline string
	vacancies                                                        int
}

func (a ad) row() warehouse.Row {
	raw, _ := json.Marshal(map[string]any{
		"id":                   a.id,
		"headline":             "Job " + a.id,
		"number_of_vacancies":  a.vacancies,
		"application_deadline": a.deadline,
		"publication_date":     "2026-10-01T08:00:00",
		"employer":             map[string]string{"name": a.employer},
		"occupation_field":     map[string]string{"label": a.field},
		"occupation_group":     map[string]string{"label": a.field + " group"},
		"occupation":           map[string]string{"label": a.field + " occupation"},
		"workplace_address": map[string]string{
			"region": a.region, "region_code": a.regionCode,
			"municipality": a.muni, "municipality_code": a.muniCode,
		},
	})
	return warehouse.RowFromAd(model.JobAd{ID: a.id, Raw: raw})
}

func day(n int) string { return today.AddDate(0, 0, n).Format("2006-01-02") + "T23:59:59" }

func setup(t *testing.T) (*warehouse.SQLite, *marts.Builder) {
	t.Helper()
	ctx := context.Background()
	wh, err := warehouse.OpenSQLite(ctx, filepath.Join(t.TempDir(), "marts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { wh.Close() })
	require.NoError(t, wh.Migrate(ctx))

	first := []warehouse.Row{
		ad{"1", "Hälso- och sjukvård", "Region Stockholm", "Stockholms län", "01", "Solna", "0184", day(3), 2}.row(),
		ad{"2", "Hälso- och sjukvård", "Region Stockholm", "Stockholms län", "01", "Stockholm", "0180", day(10), 1}.row(),
		ad{"3", "Data/IT", "Spotify", "Stockholms län", "01", "Stockholm", "0180", day(20), 4}.row(),
		ad{"4", "Data/IT", "Volvo", "Västra Götalands län", "14", "Göteborg", "1480", day(90), 1}.row(),
	}
	_, err = wh.Write(ctx, "load-1", today.Add(-time.Hour), first, warehouse.Append)
	require.NoError(t, err)

	// A newer version of ad 4 supersedes the first one.
	second := []warehouse.Row{
		ad{"4", "Data/IT", "Volvo", "Västra Götalands län", "14", "Göteborg", "1480", "", 5}.row(),
	}
	_, err = wh.Write(ctx, "load-2", today, second, warehouse.Append)
	require.NoError(t, err)

	b := marts.NewBuilder(wh).WithClock(func() time.Time { return today })
	require.NoError(t, b.Refresh(ctx))
	return wh, b
}

func index(t *testing.T, tbl *warehouse.Table, cols ...string) map[string]map[string]any {
	t.Helper()
	out := map[string]map[string]any{}
	for _, rec := range tbl.Records() {
		key := ""
		for _, c := range cols {
			key += fmt.Sprint(rec[c]) + "|"
		}
		out[key] = rec
	}
	return out
}

func TestRefresh_BuildsEveryMart(t *testing.T) {
	_, b := setup(t)
	for _, name := range marts.Names() {
		tbl, err := b.Query(context.Background(), name)
		require.NoError(t, err, name)
		require.NotEmpty(t, tbl.Rows, name)
	}
}

func TestOccupationDemand_UsesLatestVersion(t *testing.T) {
	_, b := setup(t)
	tbl, err := b.Query(context.Background(), marts.OccupationDemand)
	require.NoError(t, err)

	byField := map[string]int64{}
	ads := map[string]int64{}
	for _, rec := range tbl.Records() {
		f := rec["occupation_field"].(string)
		byField[f] += rec["total_vacancies"].(int64)
		ads[f] += rec["total_job_ads"].(int64)
	}
	require.Equal(t, int64(3), byField["Hälso- och sjukvård"])
	require.Equal(t, int64(9), byField["Data/IT"], "ad 4 counts with its newest vacancy figure only")
	require.Equal(t, int64(2), ads["Data/IT"])

	// Ordered by vacancies, largest first.
	require.Equal(t, "Data/IT", tbl.Records()[0]["occupation_field"])
}

func TestRefresh_CollapsesDuplicatesWithinOneLoad(t *testing.T) {
	wh, b := setup(t)
	ctx := context.Background()

	dup := ad{"7", "Data/IT", "Klarna", "Stockholms län", "01", "Stockholm", "0180", day(60), 3}.row()
	_, err := wh.Write(ctx, "load-3", today.Add(time.Minute), []warehouse.Row{dup, dup}, warehouse.Append)
	require.NoError(t, err)
	require.NoError(t, b.Refresh(ctx))

	browser, err := b.Query(ctx, marts.JobBrowser)
	require.NoError(t, err)
	n := 0
	for _, rec := range browser.Records() {
		if rec["id"] == "7" {
			n++
		}
	}
	require.Equal(t, 1, n, "ad 7 appears once in the job browser")

	demand, err := b.Query(ctx, marts.OccupationDemand)
	require.NoError(t, err)
	var vacancies, jobAds int64
	for _, rec := range demand.Records() {
		if rec["occupation_field"] == "Data/IT" {
			vacancies += rec["total_vacancies"].(int64)
			jobAds += rec["total_job_ads"].(int64)
		}
	}
	require.Equal(t, int64(12), vacancies)
	require.Equal(t, int64(3), jobAds)
}

func TestUrgency_Categories(t *testing.T) {
	_, b := setup(t)
	tbl, err := b.Query(context.Background(), marts.JobBrowser)
	require.NoError(t, err)

	got := map[string]string{}
	for _, rec := range tbl.Records() {
		got[rec["id"].(string)] = rec["urgency_category"].(string)
	}
	require.Equal(t, map[string]string{
		"1": marts.UrgentSevenDays,
		"2": marts.ClosingFortnight,
		"3": marts.ClosingThirtyDays,
		"4": marts.NormalUrgency,
	}, got)
}

func TestUrgencyGeography_BothLevels(t *testing.T) {
	_, b := setup(t)
	tbl, err := b.Query(context.Background(), marts.UrgencyGeography)
	require.NoError(t, err)

	idx := index(t, tbl, "location_level", "location_key", "urgency_category")
	region := idx["region|01|"+marts.UrgentSevenDays+"|"]
	require.NotNil(t, region)
	require.Equal(t, "Stockholms län", region["location_display_name"])
	require.Equal(t, int64(2), region["total_vacancies"])

	muni := idx["municipality|0180|"+marts.ClosingThirtyDays+"|"]
	require.NotNil(t, muni)
	require.Equal(t, "Stockholm", muni["location_display_name"])
	require.Equal(t, int64(4), muni["total_vacancies"])
}

func TestEmployer_Totals(t *testing.T) {
	_, b := setup(t)
	tbl, err := b.Query(context.Background(), marts.Employer)
	require.NoError(t, err)

	idx := index(t, tbl, "employer_name")
	require.Equal(t, int64(2), idx["Region Stockholm|"]["total_job_ads"])
	require.Equal(t, int64(5), idx["Volvo|"]["total_vacancies"])
}

func TestRefresh_IsRepeatable(t *testing.T) {
	_, b := setup(t)
	require.NoError(t, b.Refresh(context.Background()))
	tbl, err := b.Query(context.Background(), marts.Geography)
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 4)
}

func TestQuery_UnknownMart(t *testing.T) {
	_, b := setup(t)
	_, err := b.Query(context.Background(), "job_ads; DROP TABLE job_ads")
	require.ErrorIs(t, err, marts.ErrUnknownMart)
}

func TestQuery_BeforeRefresh(t *testing.T) {
	ctx := context.Background()
	wh, err := warehouse.OpenSQLite(ctx, filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	defer wh.Close()

	_, err = marts.NewBuilder(wh).Query(ctx, marts.JobBrowser)
	require.ErrorIs(t, err, warehouse.ErrUnknownTable)
}
