package constants

// Context keys used across middleware and handlers
const (
	ContextKeyUserID = "user_id"
)

// Pagination bounds
const (
	MinPageSize     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Auth
const (
	MinPasswordLength = 8
	SessionName       = "devsync_session"
)
