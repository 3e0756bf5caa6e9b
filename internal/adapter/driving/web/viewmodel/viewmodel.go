// Package viewmodel defines presentation-ready structs for templ components.
// View models decouple template rendering from domain model types.
package viewmodel

// DashboardViewModel holds the tracked change list.
type DashboardViewModel struct {
	Changes      []ChangeRowViewModel
	CIConfigured bool
}

// ChangeRowViewModel holds presentation-ready data for one tracked change row.
type ChangeRowViewModel struct {
	Change     string
	Patchset   string
	Project    string
	ShortSHA   string
	CIStatus   string
	Tier       string
	LastSeen   string
	Polled     string // "never" until the first successful poll.
	DetailPath string
}

// ChangeDetailViewModel holds the stored snapshot of a tracked change.
type ChangeDetailViewModel struct {
	ChangeRowViewModel

	Runs        []RunViewModel
	RefreshPath string
	CSRFToken   string
	Flash       string
}

// RunViewModel holds presentation-ready data for one check run.
type RunViewModel struct {
	ExternalID        string
	CheckName         string
	Attempt           int
	IsLatest          bool
	Status            string
	StatusDescription string
	StatusLink        string
	CheckLink         string
	Started           string
	Duration          string
	Results           []ResultViewModel
}

// ResultViewModel holds presentation-ready data for one job result.
type ResultViewModel struct {
	Name        string
	Category    string
	SummaryHTML string // Sanitized markdown.
	Tags        []TagViewModel
	Link        string
}

// TagViewModel is a colored chip.
type TagViewModel struct {
	Name  string
	Color string // Lower-case CSS class suffix.
}
