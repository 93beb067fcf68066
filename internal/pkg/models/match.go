package models

const (
	// UnknownValue is stored in any Match field the source could not resolve.
	UnknownValue = "Unknown"
	// DefaultStatus is used when a source gives no status for a match.
	DefaultStatus = "Scheduled"

	// StartTimeLayout is the format of Match.StartTime for sources that give an epoch.
	StartTimeLayout = "2006-01-02 15:04:05"
)

// Match is one football fixture as returned to the operator.
// Every field is always populated: missing data is UnknownValue (DefaultStatus for Status).
type Match struct {
	URL        string `json:"url"`
	HomeTeam   string `json:"home_team"`
	AwayTeam   string `json:"away_team"`
	Tournament string `json:"tournament"`
	StartTime  string `json:"start_time"`
	Status     string `json:"status"`
}

// Title returns "home vs away".
func (m Match) Title() string {
	return m.HomeTeam + " vs " + m.AwayTeam
}
