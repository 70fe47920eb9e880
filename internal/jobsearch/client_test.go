package jobsearch_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/jobsearch"
	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/model"
)

func serveBody(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func fetch(t *testing.T, srv *httptest.Server) (model.Page, error) {
	t.Helper()
	return jobsearch.NewClient(srv.URL).FetchPage(context.Background(), model.PageRequest{Limit: 10})
}

func TestFetchPage_SendsQueryParameters(t *testing.T) {
	var got http.Header
	var query map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search", r.URL.Path)
		got = r.Header
		query = r.URL.Query()
		_, _ = w.Write([]byte(`{"hits":[]}`))
	}))
	defer srv.Close()

	_, err := jobsearch.NewClient(srv.URL+"/").FetchPage(context.Background(), model.PageRequest{
		Query:           "",
		OccupationField: "NYW6_mP6_vwf",
		Offset:          200,
		Limit:           100,
	})
	require.NoError(t, err)

	require.Equal(t, "application/json", got.Get("Accept"))
	require.Contains(t, query, "q", "empty query is still sent")
	require.Equal(t, []string{""}, query["q"])
	require.Equal(t, []string{"NYW6_mP6_vwf"}, query["occupation-field"])
	require.Equal(t, []string{"200"}, query["offset"])
	require.Equal(t, []string{"100"}, query["limit"])
}

func TestFetchPage_EmptyOccupationFieldIsSentEmpty(t *testing.T) {
	var query map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		_, _ = w.Write([]byte(`{"hits":[]}`))
	}))
	defer srv.Close()

	_, err := jobsearch.NewClient(srv.URL).FetchPage(context.Background(), model.PageRequest{Limit: 100})
	require.NoError(t, err)
	require.Equal(t, []string{""}, query["occupation-field"])
}

func TestFetchPage_HitsShapes(t *testing.T) {
	cases := []struct {
		name string
		body string
		want int
	}{
		{"two hits", `{"hits":[{"id":"1"},{"id":"2"}]}`, 2},
		{"missing hits", `{"total":{"value":3}}`, 0},
		{"null hits", `{"hits":null}`, 0},
		{"string hits", `{"hits":"nope"}`, 0},
		{"object hits", `{"hits":{"id":"1"}}`, 0},
		{"empty object", `{}`, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			page, err := fetch(t, serveBody(t, c.body))
			require.NoError(t, err)
			require.Len(t, page.Hits, c.want)
		})
	}
}

func TestFetchPage_Malformed(t *testing.T) {
	for _, body := range []string{`not json`, `[1,2,3]`, `null`, `{"hits":[1,2]}`, `{"hits":[{"id":"1"},"x"]}`} {
		t.Run(body, func(t *testing.T) {
			_, err := fetch(t, serveBody(t, body))
			require.ErrorIs(t, err, jobsearch.ErrMalformedResponse)
		})
	}
}

func TestFetchPage_NonSuccessStatus(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusTooManyRequests, http.StatusBadGateway} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"message":"no"}`))
		}))
		_, err := jobsearch.NewClient(srv.URL).FetchPage(context.Background(), model.PageRequest{Limit: 1})
		srv.Close()

		var te *jobsearch.TransportError
		require.ErrorAs(t, err, &te)
		require.Equal(t, status, te.StatusCode)
		require.Contains(t, te.Body, "no")
	}
}

func TestFetchPage_ErrorBodyKeepsWholeRunes(t *testing.T) {
	body := "x" + strings.Repeat("å", 200)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	_, err := jobsearch.NewClient(srv.URL).FetchPage(context.Background(), model.PageRequest{Limit: 1})
	var te *jobsearch.TransportError
	require.ErrorAs(t, err, &te)
	require.True(t, utf8.ValidString(te.Body), "body %q is not valid UTF-8", te.Body)
	require.True(t, strings.HasPrefix(body, strings.TrimSuffix(te.Body, "…")))
	require.Less(t, len(te.Body), len(body))
}

func TestFetchPage_PreservesRawBytesAndIDs(t *testing.T) {
	page, err := fetch(t, serveBody(t, `{"total":{"value":2},"hits":[{"id": "abc", "x":1.50},{"id":42},{"headline":"no id"}]}`))
	require.NoError(t, err)
	require.Len(t, page.Hits, 3)

	require.Equal(t, "abc", page.Hits[0].ID)
	require.Equal(t, `{"id": "abc", "x":1.50}`, string(page.Hits[0].Raw))
	require.Equal(t, "42", page.Hits[1].ID)
	require.Equal(t, "", page.Hits[2].ID)

	require.NotNil(t, page.Total)
	require.Equal(t, 2, *page.Total)
}

func TestCursor_Next(t *testing.T) {
	cases := []struct {
		name     string
		cur      jobsearch.Cursor
		hits     int
		wantMore bool
		wantOff  int
	}{
		{"full page advances", jobsearch.Cursor{Offset: 0, Limit: 100, MaxOffset: 1900}, 100, true, 100},
		{"short page stops", jobsearch.Cursor{Offset: 0, Limit: 100, MaxOffset: 1900}, 99, false, 0},
		{"empty page stops", jobsearch.Cursor{Offset: 300, Limit: 100, MaxOffset: 1900}, 0, false, 300},
		{"ceiling reached exactly", jobsearch.Cursor{Offset: 1800, Limit: 100, MaxOffset: 1900}, 100, true, 1900},
		{"ceiling passed", jobsearch.Cursor{Offset: 1900, Limit: 100, MaxOffset: 1900}, 100, false, 1900},
		{"oversized page advances", jobsearch.Cursor{Offset: 0, Limit: 10, MaxOffset: 100}, 12, true, 10},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			next, more := c.cur.Next(c.hits)
			if more != c.wantMore {
				t.Errorf("Next(%d) more = %v, want %v", c.hits, more, c.wantMore)
			}
			if next.Offset != c.wantOff {
				t.Errorf("Next(%d) offset = %d, want %d", c.hits, next.Offset, c.wantOff)
			}
		})
	}
}
