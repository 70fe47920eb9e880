package jobsearch_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/jobsearch"
)

func ExampleExtractor_Records() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("offset") == "0" {
			fmt.Fprint(w, `{"hits":[{"id":"a"},{"id":"b"}]}`)
			return
		}
		fmt.Fprint(w, `{"hits":[{"id":"c"}]}`)
	}))
	defer srv.Close()

	ex, err := jobsearch.NewExtractor(jobsearch.NewClient(srv.URL), jobsearch.Params{
		OccupationFields: []string{""},
		Limit:            2,
		MaxOffset:        1900,
	})
	if err != nil {
		panic(err)
	}
	for ad, err := range ex.Records(context.Background()) {
		if err != nil {
			panic(err)
		}
		fmt.Println(ad.ID)
	}
	// Output:
	// a
	// b
	// c
}
