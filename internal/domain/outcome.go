package domain

import "fmt"

// Strategy names one specific method of transporting a dataset to the
// content store.
type Strategy string

const (
	StrategyDirect         Strategy = "direct"
	StrategyCSV            Strategy = "csv"
	StrategyMinimal        Strategy = "minimal"
	StrategyTruncateAppend Strategy = "truncate_append"
	StrategyOverwrite      Strategy = "overwrite"
)

// SharingLevel is the visibility applied to a published item.
type SharingLevel string

const (
	SharingPrivate      SharingLevel = "private"
	SharingOrganization SharingLevel = "organization"
	SharingPublic       SharingLevel = "public"
)

// ParseSharingLevel normalizes a user-supplied sharing level. "org" is
// accepted as a synonym for organization.
func ParseSharingLevel(s string) (SharingLevel, error) {
	switch s {
	case "", string(SharingPrivate):
		return SharingPrivate, nil
	case "org", string(SharingOrganization):
		return SharingOrganization, nil
	case string(SharingPublic):
		return SharingPublic, nil
	default:
		return "", fmt.Errorf("invalid sharing level %q: must be private, organization, or public", s)
	}
}

// OutcomeKind tags the terminal pipeline result.
type OutcomeKind string

const (
	OutcomePublished OutcomeKind = "published"
	OutcomeUpdated   OutcomeKind = "updated"
	OutcomeFailed    OutcomeKind = "failed"
)

// PublicationOutcome is the terminal value of one pipeline run. Never
// mutated after creation.
type PublicationOutcome struct {
	Kind       OutcomeKind
	ItemID     string
	ServiceURL string
	LayerID    int
	Strategy   Strategy // the strategy that succeeded
	Err        error    // set only when Kind == OutcomeFailed
	Warnings   []string // non-fatal conditions, e.g. a sharing failure
}

// Report is the uniform success/failure record handed to the presentation
// layer. Pure data, no behavior.
type Report struct {
	Success      bool      `json:"success"`
	ItemID       string    `json:"itemId,omitempty"`
	ServiceURL   string    `json:"serviceUrl,omitempty"`
	LayerID      *int      `json:"layerId,omitempty"`
	StrategyUsed Strategy  `json:"strategyUsed,omitempty"`
	ErrorKind    ErrorKind `json:"errorKind,omitempty"`
	Detail       string    `json:"detail,omitempty"`
	Warnings     []string  `json:"warnings,omitempty"`
}
