// Package model holds the types shared by the extractor, the pipeline and
// the warehouse.
package model

import (
	"encoding/json"
	"strconv"
)

// PageRequest is one query against the search endpoint.
type PageRequest struct {
	Query           string
	OccupationField string // "" sends the parameter empty
	Offset          int
	Limit           int
}

// Page is the decoded body of one search response.
type Page struct {
	Hits  []JobAd
	Total *int // total.value when the API reports it; informational only
}

// JobAd is one job advertisement. Raw holds the exact bytes the API
// returned; only the top-level id is interpreted.
type JobAd struct {
	ID  string
	Raw json.RawMessage
}

// NewJobAd wraps a raw hit and extracts its id. The id may be a JSON string
// or number; anything else leaves ID empty.
func NewJobAd(raw json.RawMessage) (JobAd, error) {
	var head struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return JobAd{}, err
	}
	return JobAd{ID: idString(head.ID), Raw: raw}, nil
}

func idString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if _, err := strconv.ParseFloat(n.String(), 64); err == nil {
			return n.String()
		}
	}
	return ""
}
