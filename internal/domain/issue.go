package domain

import "time"

// IssueStatus enumerates the three valid issue states.
type IssueStatus string

const (
	IssueStatusOpen       IssueStatus = "Open"
	IssueStatusInProgress IssueStatus = "In Progress"
	IssueStatusResolved   IssueStatus = "Resolved"
)

// Valid reports whether the status is one of the known values. Any valid
// status may follow any other.
func (s IssueStatus) Valid() bool {
	switch s {
	case IssueStatusOpen, IssueStatusInProgress, IssueStatusResolved:
		return true
	}
	return false
}

// IssueStatuses lists statuses in display order.
var IssueStatuses = []IssueStatus{IssueStatusOpen, IssueStatusInProgress, IssueStatusResolved}

// Category labels offered by the report form.
const (
	CategoryMaintenance = "Maintenance"
	CategorySafety      = "Safety"
	CategoryIT          = "IT"
	CategorySupply      = "Supply"
)

// Categories is the fixed label set an issue may be filed under.
var Categories = []string{CategoryMaintenance, CategorySafety, CategoryIT, CategorySupply}

// ValidCategory reports whether label is one of Categories.
func ValidCategory(label string) bool {
	for _, c := range Categories {
		if c == label {
			return true
		}
	}
	return false
}

// Comment is an entry in an issue's append-only thread. ID keeps two
// otherwise identical comments distinct under array union.
type Comment struct {
	ID         string    `json:"id,omitempty"`
	Text       string    `json:"text"`
	Role       Role      `json:"role"`
	AuthorName string    `json:"authorName"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Issue is the document stored under issues/{id}.
type Issue struct {
	ID               string      `json:"id"`
	UserID           string      `json:"userId"`
	UserEmail        string      `json:"userEmail,omitempty"`
	Title            string      `json:"title,omitempty"`
	Description      string      `json:"description"`
	Category         string      `json:"category"`
	Severity         string      `json:"severity,omitempty"`
	Priority         string      `json:"priority,omitempty"`
	Impact           string      `json:"impact,omitempty"`
	Reproducibility  string      `json:"reproducibility,omitempty"`
	Location         string      `json:"location,omitempty"`
	AssetID          string      `json:"assetId,omitempty"`
	ContactPhone     string      `json:"contactPhone,omitempty"`
	BestTime         string      `json:"bestTime,omitempty"`
	StepsToReproduce string      `json:"stepsToReproduce,omitempty"`
	ExpectedResult   string      `json:"expectedResult,omitempty"`
	Status           IssueStatus `json:"status"`
	Comments         []Comment   `json:"comments"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        *time.Time  `json:"updatedAt,omitempty"`
}

// IssueInput is the caller supplied part of a new issue.
type IssueInput struct {
	UserID           string
	UserEmail        string
	Title            string
	Description      string
	Category         string
	Severity         string
	Priority         string
	Impact           string
	Reproducibility  string
	Location         string
	AssetID          string
	ContactPhone     string
	BestTime         string
	StepsToReproduce string
	ExpectedResult   string
}
