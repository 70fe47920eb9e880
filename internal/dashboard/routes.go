// Package dashboard serves the analysis pages over the marts as JSON.
//
// Pages are declared in an explicit route table that is handed to the
// server at start-up.
package dashboard

import (
	"net/http"
)

// Page is one dashboard page.
type Page struct {
	Group   string           `json:"group"`
	Path    string           `json:"path"`
	Title   string           `json:"title"`
	Icon    string           `json:"icon"`
	Handler http.HandlerFunc `json:"-"`
}

// Routes is the ordered page table.
type Routes []Page

// DefaultRoutes is the standard page set: Home plus the analysis pages.
func DefaultRoutes(h *Handlers) Routes {
	routes := Routes{
		{Group: "Analysis", Path: "/demand", Title: "Demand Overview", Icon: "📈", Handler: h.Demand},
		{Group: "Analysis", Path: "/employer", Title: "Employer Overview", Icon: "🏢", Handler: h.Employer},
		{Group: "Analysis", Path: "/urgency", Title: "Application Urgency", Icon: "⏳", Handler: h.Urgency},
		{Group: "Analysis", Path: "/geography", Title: "Geography", Icon: "🌍", Handler: h.Geography},
		{Group: "Analysis", Path: "/browser", Title: "Job Browser", Icon: "🔎", Handler: h.Browser},
	}
	home := Page{Group: "Home", Path: "/", Title: "Home", Icon: "🏠"}
	all := append(Routes{home}, routes...)
	all[0].Handler = h.Home(all)
	return all
}
