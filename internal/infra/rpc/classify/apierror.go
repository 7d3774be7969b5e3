package classify

import (
	"encoding/json"
	"fmt"
)

// APIError is an error reported by the Graph API, enriched with a
// remediation hint when the (type, code) pair is known.
type APIError struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      int    `json:"code"`
	Subcode   int    `json:"error_subcode,omitempty"`
	TraceID   string `json:"fbtrace_id"`
	UserTitle string `json:"error_user_title,omitempty"`
	UserMsg   string `json:"error_user_msg,omitempty"`
	Details   string `json:"-"`
	Solution  string `json:"-"`
}

func (e *APIError) Error() string {
	if e == nil {
		return "whatsapp api error"
	}
	return fmt.Sprintf("whatsapp api error: %s (type: %s, code: %d)", e.Message, e.Type, e.Code)
}

// HasSubcode reports whether the server sent an error_subcode.
func (e *APIError) HasSubcode() bool {
	return e != nil && e.Subcode != 0
}

// errorEnvelope mirrors the Graph API error schema. Field names are part of
// the wire contract.
type errorEnvelope struct {
	Error *struct {
		Message      string `json:"message"`
		Type         string `json:"type"`
		Code         int    `json:"code"`
		ErrorSubcode int    `json:"error_subcode"`
		FBTraceID    string `json:"fbtrace_id"`
		UserTitle    string `json:"error_user_title"`
		UserMsg      string `json:"error_user_msg"`
		ErrorData    *struct {
			Details string `json:"details"`
		} `json:"error_data"`
	} `json:"error"`
}

// ParseAPIError decodes a Graph API error body. It returns false when the
// body is not a recognisable error envelope.
func ParseAPIError(body []byte) (*APIError, bool) {
	if len(body) == 0 {
		return nil, false
	}

	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.Error == nil {
		return nil, false
	}
	raw := env.Error
	if raw.Message == "" && raw.Type == "" && raw.Code == 0 {
		return nil, false
	}

	apiErr := &APIError{
		Message:   raw.Message,
		Type:      raw.Type,
		Code:      raw.Code,
		Subcode:   raw.ErrorSubcode,
		TraceID:   raw.FBTraceID,
		UserTitle: raw.UserTitle,
		UserMsg:   raw.UserMsg,
	}
	if raw.ErrorData != nil {
		apiErr.Details = raw.ErrorData.Details
	}
	apiErr.Solution, _ = Solution(apiErr.Type, apiErr.Code)
	return apiErr, true
}
