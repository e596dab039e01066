package models

// RateLimitExceededResponse is the JSON body returned with HTTP 429.
type RateLimitExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	Remaining  int    `json:"remaining"`
	RetryAfter int    `json:"retry_after"`
}

// StoreUnavailableResponse is the JSON body returned when the counter store
// is unreachable. The request fails closed rather than skipping the check.
type StoreUnavailableResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
