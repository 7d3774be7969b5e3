package domain

// TemplateCategory classifies a message template.
type TemplateCategory string

const (
	CategoryAuthentication TemplateCategory = "AUTHENTICATION"
	CategoryMarketing      TemplateCategory = "MARKETING"
	CategoryUtility        TemplateCategory = "UTILITY"
)

// MessageTemplate is a template as listed by the business account.
type MessageTemplate struct {
	ID         string              `json:"id,omitempty"`
	Name       string              `json:"name"`
	Status     string              `json:"status,omitempty"`
	Category   TemplateCategory    `json:"category"`
	Language   string              `json:"language"`
	Components []TemplateComponent `json:"components,omitempty"`
}

// TemplateComponent describes one part of a template definition.
type TemplateComponent struct {
	Type    string           `json:"type"`             // HEADER, BODY, FOOTER, BUTTONS
	Format  string           `json:"format,omitempty"` // TEXT, IMAGE, VIDEO, DOCUMENT, LOCATION
	Text    string           `json:"text,omitempty"`
	Buttons []TemplateButton `json:"buttons,omitempty"`
	Example map[string]any   `json:"example,omitempty"`
}

type TemplateButton struct {
	Type        string `json:"type"` // QUICK_REPLY, URL, PHONE_NUMBER, COPY_CODE
	Text        string `json:"text"`
	URL         string `json:"url,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

// Paging is the Graph API cursor block.
type Paging struct {
	Cursors struct {
		Before string `json:"before"`
		After  string `json:"after"`
	} `json:"cursors"`
	Next     string `json:"next,omitempty"`
	Previous string `json:"previous,omitempty"`
}

// TemplateList is returned by GET /{waba-id}/message_templates.
type TemplateList struct {
	Data   []MessageTemplate `json:"data"`
	Paging *Paging           `json:"paging,omitempty"`
}

// CreateTemplateResponse is returned by POST /{waba-id}/message_templates.
type CreateTemplateResponse struct {
	ID       string           `json:"id"`
	Status   string           `json:"status"`
	Category TemplateCategory `json:"category"`
}
