package models

// RequestStats aggregates the request table at read time.
type RequestStats struct {
	TotalRequests           int64            `json:"total_requests"`
	PendingRequests         int64            `json:"pending_requests"`
	InProgressRequests      int64            `json:"in_progress_requests"`
	ResolvedRequests        int64            `json:"resolved_requests"`
	ClosedRequests          int64            `json:"closed_requests"`
	RequestsWithAttachments int64            `json:"requests_with_attachments"`
	Categories              map[string]int64 `json:"categories"`
	Departments             map[string]int64 `json:"departments"`
	Priorities              map[string]int64 `json:"priorities"`

	// AvgResolutionSeconds covers Resolved requests with a resolved_at; nil when there are none.
	AvgResolutionSeconds *float64 `json:"avg_resolution_seconds"`
}

// Dashboard is the admin landing view.
type Dashboard struct {
	Stats          *RequestStats     `json:"stats"`
	RecentRequests []*ServiceRequest `json:"recent_requests"`
}
