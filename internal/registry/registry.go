// Package registry queries the Bolagsverket organisation lookup API:
// OAuth2 client-credentials token management, per-identifier lookups, and
// concurrent batch extraction into normalized records.
package registry

import "time"

// Status classifies the outcome of one organisation lookup after parsing.
type Status string

const (
	StatusSuccess    Status = "success"
	StatusNoData     Status = "no_data"
	StatusParseError Status = "parse_error"
	StatusError      Status = "error"     // non-2xx HTTP response
	StatusException  Status = "exception" // transport or timeout failure
)

// Options configures the registry API client components.
type Options struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	APIURL       string
	Scope        string
	UserAgent    string
	Timeout      time.Duration // per-request timeout
	TokenMargin  time.Duration // refresh this long before credential expiry
}

// OutcomeKind tags the variant of an Outcome.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeHTTPError
	OutcomeTransportError
)

// Outcome is the raw result of a single lookup request, consumed by Parse.
type Outcome struct {
	Kind       OutcomeKind
	Body       []byte // response payload when Kind == OutcomeSuccess
	StatusCode int    // HTTP status when Kind == OutcomeHTTPError
	Message    string // truncated error body or transport message
}

// Record is the flat, normalized shape of one organisation lookup.
// Status is always set; the remaining fields are populated only as far as
// the response allowed.
type Record struct {
	OrgNumber            string
	Status               Status
	Error                string
	Name                 string
	LegalFormCode        string
	LegalFormDescription string
	StreetAddress        string
	City                 string
	PostalCode           string
	Country              string
	SNICode              string
	SNIDescription       string
	RegistrationDate     string // raw date string; truncated to a calendar date at load
	IsActive             *bool
	IsDeregistered       *bool
	QueriedAt            time.Time
}

// truncate shortens s for error messages and status records.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
