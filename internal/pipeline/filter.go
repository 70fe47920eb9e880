package pipeline

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/metrics"
	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/model"
)

type searchableText struct {
	Headline string `json:"headline"`
	Employer struct {
		Name string `json:"name"`
	} `json:"employer"`
	Description struct {
		Text string `json:"text"`
	} `json:"description"`
}

// fields returns the lowercased text the exclusion list is matched against.
func (s searchableText) fields() []string {
	return []string{
		strings.ToLower(s.Headline),
		strings.ToLower(s.Employer.Name),
		strings.ToLower(s.Description.Text),
	}
}

// ExcludeTerms drops ads whose headline, employer name or description text
// mentions one of terms, ignoring case. Blank terms are ignored; with none
// left the stage passes everything through.
func ExcludeTerms(terms []string) Stage {
	var needles []string
	for _, t := range terms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			needles = append(needles, t)
		}
	}

	return StageFunc{
		StageName: "exclude-terms",
		Fn: func(_ context.Context, ad model.JobAd) (model.JobAd, bool, error) {
			if len(needles) == 0 {
				return ad, true, nil
			}
			var doc searchableText
			// Ads with fields of unexpected type are kept.
			_ = json.Unmarshal(ad.Raw, &doc)
			for _, text := range doc.fields() {
				for _, n := range needles {
					if strings.Contains(text, n) {
						metrics.RecordsFiltered.Inc()
						return ad, false, nil
					}
				}
			}
			return ad, true, nil
		},
	}
}
