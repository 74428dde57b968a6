// Package transport defines request and response DTOs for the verification
// endpoints.
package transport

// VerifyCodeRequest carries the code a lead submits from the wizard.
type VerifyCodeRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

// StatusResponse acknowledges an issue or verify call. The code itself never
// appears in a response body.
type StatusResponse struct {
	Status string `json:"status"`
}
