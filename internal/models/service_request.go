package models

import (
	"regexp"
	"slices"
	"strings"
	"time"
)

// Request statuses
const (
	StatusPending    = "Pending"
	StatusInProgress = "In Progress"
	StatusResolved   = "Resolved"
	StatusClosed     = "Closed"
)

// Request priorities
const (
	PriorityLow      = "Low"
	PriorityMedium   = "Medium"
	PriorityHigh     = "High"
	PriorityCritical = "Critical"
)

// Contact preferences
const (
	ContactEmail = "email"
	ContactPhone = "phone"
	ContactTeams = "teams"
)

// Column limits mirrored from the schema
const (
	MaxRequesterNameLen = 100
	MaxEmailLen         = 120
	MaxDepartmentLen    = 50
	MaxCategoryLen      = 50
	MaxAssigneeLen      = 100
)

var (
	// ValidStatuses is every status a stored request may hold.
	ValidStatuses = []string{StatusPending, StatusInProgress, StatusResolved, StatusClosed}

	// UpdatableStatuses are the targets accepted by a status update.
	// Closed is deliberately absent.
	UpdatableStatuses = []string{StatusPending, StatusInProgress, StatusResolved}

	Priorities         = []string{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}
	ContactPreferences = []string{ContactEmail, ContactPhone, ContactTeams}

	// Departments and Categories are the options offered to submitters.
	// Stored values are not restricted to them.
	Departments = []string{"IT", "HR", "Finance", "Marketing", "Operations", "Sales", "Executive"}
	Categories  = []string{
		"Password Reset", "Hardware Issue", "Software Installation",
		"Network Problem", "Printer Issue", "Email Problem",
		"Access Request", "Security Concern", "Other",
	}

	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

// ServiceRequest is a helpdesk ticket submitted by a member of staff.
type ServiceRequest struct {
	ID                int64      `json:"id"`
	RequesterName     string     `json:"requester_name"`
	Email             string     `json:"email"`
	Department        string     `json:"department"`
	Category          string     `json:"category"`
	Description       string     `json:"description"`
	Priority          string     `json:"priority"`
	ContactPreference string     `json:"contact_preference"`
	Status            string     `json:"status"`
	AssignedTo        *string    `json:"assigned_to"`
	Attachments       []string   `json:"attachments"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	ResolvedAt        *time.Time `json:"resolved_at"`
}

// RequestFields is the caller-supplied input for a new request.
// Status is accepted so callers can send it, but it is always ignored.
type RequestFields struct {
	RequesterName     string
	Email             string
	Department        string
	Category          string
	Description       string
	Priority          string
	ContactPreference string
	Status            string
}

// NewServiceRequest validates fields and builds a Pending request.
// It returns a *ValidationError listing every rejected field.
func NewServiceRequest(fields RequestFields) (*ServiceRequest, error) {
	verr := NewValidationError()

	req := &ServiceRequest{
		RequesterName:     strings.TrimSpace(fields.RequesterName),
		Email:             strings.TrimSpace(fields.Email),
		Department:        strings.TrimSpace(fields.Department),
		Category:          strings.TrimSpace(fields.Category),
		Description:       strings.TrimSpace(fields.Description),
		Priority:          NormalizePriority(fields.Priority),
		ContactPreference: NormalizeContactPreference(fields.ContactPreference),
		Status:            StatusPending,
		Attachments:       []string{},
	}

	requireText(verr, "requester_name", req.RequesterName, MaxRequesterNameLen)
	requireText(verr, "department", req.Department, MaxDepartmentLen)
	requireText(verr, "category", req.Category, MaxCategoryLen)
	requireText(verr, "description", req.Description, 0)

	if req.Email != "" {
		if len(req.Email) > MaxEmailLen || !IsValidEmail(req.Email) {
			verr.Add("email", "must be a valid email address")
		}
	}

	if !slices.Contains(Priorities, req.Priority) {
		verr.Add("priority", "must be one of: "+strings.Join(Priorities, ", "))
	}
	if !slices.Contains(ContactPreferences, req.ContactPreference) {
		verr.Add("contact_preference", "must be one of: "+strings.Join(ContactPreferences, ", "))
	}

	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	return req, nil
}

func requireText(verr *ValidationError, field, value string, maxLen int) {
	if value == "" {
		verr.Add(field, "this field is required")
		return
	}
	if maxLen > 0 && len(value) > maxLen {
		verr.Add(field, "is too long")
	}
}

// IsValidEmail reports whether email matches the accepted address pattern.
func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// NormalizePriority maps any casing of a known priority onto its canonical
// form. Empty input yields Medium; unknown input is returned trimmed.
func NormalizePriority(priority string) string {
	priority = strings.TrimSpace(priority)
	if priority == "" {
		return PriorityMedium
	}
	for _, p := range Priorities {
		if strings.EqualFold(p, priority) {
			return p
		}
	}
	return priority
}

// NormalizeContactPreference works like NormalizePriority, defaulting to email.
func NormalizeContactPreference(pref string) string {
	pref = strings.TrimSpace(pref)
	if pref == "" {
		return ContactEmail
	}
	for _, p := range ContactPreferences {
		if strings.EqualFold(p, pref) {
			return p
		}
	}
	return pref
}

// ApplyStatus moves the request to newStatus at time now.
// resolved_at is stamped only when entering Resolved from another status and
// is never cleared. A blank assignee keeps the current one.
func (r *ServiceRequest) ApplyStatus(newStatus, assignee string, now time.Time) error {
	if !slices.Contains(UpdatableStatuses, newStatus) {
		verr := NewValidationError()
		verr.Add("status", "must be one of: "+strings.Join(UpdatableStatuses, ", "))
		return verr
	}

	assignee = strings.TrimSpace(assignee)
	if len(assignee) > MaxAssigneeLen {
		verr := NewValidationError()
		verr.Add("assigned_to", "is too long")
		return verr
	}

	oldStatus := r.Status
	r.Status = newStatus
	if assignee != "" {
		r.AssignedTo = &assignee
	}

	if newStatus == StatusResolved && oldStatus != StatusResolved {
		resolvedAt := now
		r.ResolvedAt = &resolvedAt
	}

	r.UpdatedAt = now
	return nil
}

// HasAttachment reports whether filename is recorded on the request.
func (r *ServiceRequest) HasAttachment(filename string) bool {
	return slices.Contains(r.Attachments, filename)
}

// PriorityWeight orders priorities from Low (1) to Critical (4); unknown is 0.
func PriorityWeight(priority string) int {
	switch priority {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityCritical:
		return 4
	default:
		return 0
	}
}

// RequestFilter narrows a request listing. Empty fields are not applied.
type RequestFilter struct {
	Status     string
	Category   string
	Department string
	Priority   string
	SortBy     string // "created_at" (default) or "priority"
	Limit      int
	Offset     int
}

// Sort keys accepted by RequestFilter.SortBy
const (
	SortByCreatedAt = "created_at"
	SortByPriority  = "priority"
)
