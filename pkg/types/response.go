package types

// SuccessEnvelope wraps every 2xx JSON body: `{"data": ...}`.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public error shape. Details is populated only for codes
// whose metadata allows structured details to leave the process.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps every error JSON body: `{"error": {...}}`.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
