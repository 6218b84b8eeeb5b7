package response

// SuccessResponse is the generic success payload.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty" example:"operation completed"`
}

// ErrorResponse carries a machine-readable code alongside the message.
type ErrorResponse struct {
	// Error code for programmatic handling
	// example: VALIDATION_ERROR
	Code string `json:"code"`

	// Human-readable error message
	// example: invalid request payload
	Message string `json:"message"`

	// Optional extra detail
	// example: field nis is required
	Details string `json:"details,omitempty"`
}

// TokenResponse carries the auth token pair.
type TokenResponse struct {
	// JWT for accessing protected endpoints
	// example: eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9...
	AccessToken string `json:"access_token"`

	// JWT for refreshing the access token
	// example: eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9...
	RefreshToken string `json:"refresh_token"`
}
