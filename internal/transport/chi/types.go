package chi

// ErrorResponseCode is the machine-readable error code in API error bodies.
type ErrorResponseCode string

// API error codes.
const (
	CodeBadRequest       ErrorResponseCode = "bad_request"
	CodeUnauthorized     ErrorResponseCode = "unauthorized"
	CodeValidationFailed ErrorResponseCode = "validation_failed"
	CodeInvalidPrompt    ErrorResponseCode = "invalid_prompt"
	CodePhotoNotFound    ErrorResponseCode = "photo_not_found"
	CodeNoMatch          ErrorResponseCode = "no_match"
	CodePayloadTooLarge  ErrorResponseCode = "payload_too_large"
	CodeProviderError    ErrorResponseCode = "completion_provider_error"
	CodeProviderTimeout  ErrorResponseCode = "completion_provider_timeout"
	CodeStorageError     ErrorResponseCode = "storage_error"
	CodeClientClosed     ErrorResponseCode = "client_closed_request"
	CodeInternalError    ErrorResponseCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Code    ErrorResponseCode `json:"code"`
	Message string            `json:"message"`
}

// PhotoResponse is one photo record.
type PhotoResponse struct {
	ID   string   `json:"id"`
	Tags []string `json:"tags"`
	Path string   `json:"path,omitempty"`
}

// PhotoListResponse is a list of photo records.
type PhotoListResponse struct {
	Items []PhotoResponse `json:"items"`
	Count int             `json:"count"`
}

// TagsRequest is the body of PUT /photos/{id} and POST /photos/{id}/tags.
type TagsRequest struct {
	Tags []string `json:"tags"`
}

// MatchRequest is the body of POST /match.
type MatchRequest struct {
	Query string `json:"query"`
}

// MatchResponse is the photo chosen for a description.
type MatchResponse struct {
	Photo  PhotoResponse `json:"photo"`
	Answer string        `json:"answer"`
}

// RebuildResponse reports the record count after a rebuild.
type RebuildResponse struct {
	Count int `json:"count"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
	Version string            `json:"version"`
}
