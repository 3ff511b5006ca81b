package authsdk

import "time"

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error            string `json:"error"                       example:"invalid_request"`
	ErrorDescription string `json:"error_description,omitempty" example:"password: must be at least 8 characters"`
}

// RegisterRequest creates an account. Role defaults to the server's
// configured default; "admin" requires an admin bearer token unless the
// server allows open role registration.
type RegisterRequest struct {
	Username string `json:"username"       example:"alice"`
	Password string `json:"password"       example:"s3cretpass"`
	Role     string `json:"role,omitempty" example:"user" enums:"user,admin"`
}

// UserResponse is the public view of an account. It never includes the
// password or its hash.
type UserResponse struct {
	ID       string `json:"id"       example:"01HQ7T3Z1MZ0JQ3M6MZQ1FQ3ZA"`
	Username string `json:"username" example:"alice"`
	Role     string `json:"role"     example:"user"`
}

// TokenRequest is the JSON form of a password login. The endpoint also
// accepts the same fields form-encoded.
type TokenRequest struct {
	GrantType string `json:"grant_type,omitempty" example:"password"`
	Username  string `json:"username"             example:"alice"`
	Password  string `json:"password"             example:"s3cretpass"`
}

// TokenResponse is returned by a successful login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type" example:"bearer"`
	ExpiresIn   int    `json:"expires_in" example:"1800"`
}

// BootstrapRequest names the first administrator.
type BootstrapRequest struct {
	Username string `json:"username" example:"root"`
	Password string `json:"password" example:"change-me-now"`
}

// HealthResponse represents the response structure for health check endpoints.
// Used by both /livez and /readyz endpoints (readyz includes additional Checks field).
type HealthResponse struct {
	// Status indicates the overall health status (e.g., "ok")
	Status string `json:"status"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	// Version is the service version string
	Version string `json:"version,omitempty"`

	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports each dependency as "ok", "disabled" or "error: ...".
type HealthChecks struct {
	Database    string `json:"database"`
	RateLimiter string `json:"rate_limiter,omitempty"`
}

type ChannelRequest struct {
	Name    string `json:"name"              example:"ABC"`
	Country string `json:"country,omitempty" example:"AU"`
}

type ChannelResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Country   string    `json:"country,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type ChannelListResponse struct {
	Channels []ChannelResponse `json:"channels"`
}

// ProgramRequest creates or fully replaces a program. EndTime must be
// after StartTime.
type ProgramRequest struct {
	ChannelID   string    `json:"channel_id"`
	Title       string    `json:"title"                 example:"Evening News"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
}

type ProgramResponse struct {
	ID          string    `json:"id"`
	ChannelID   string    `json:"channel_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ProgramListResponse struct {
	Programs []ProgramResponse `json:"programs"`
}
