package domain

// WebhookEvent is the payload POSTed to a webhook subscription.
type WebhookEvent struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

type WebhookEntry struct {
	ID      string          `json:"id"`
	Changes []WebhookChange `json:"changes"`
}

type WebhookChange struct {
	Field string       `json:"field"`
	Value WebhookValue `json:"value"`
}

type WebhookValue struct {
	MessagingProduct string           `json:"messaging_product"`
	Metadata         WebhookMetadata  `json:"metadata"`
	Contacts         []WebhookContact `json:"contacts,omitempty"`
	Messages         []WebhookMessage `json:"messages,omitempty"`
	Statuses         []WebhookStatus  `json:"statuses,omitempty"`
	Errors           []WebhookError   `json:"errors,omitempty"`
}

type WebhookMetadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type WebhookContact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

// WebhookMessage is an inbound message. Type selects the populated field.
type WebhookMessage struct {
	From      string          `json:"from"`
	ID        string          `json:"id"`
	Timestamp string          `json:"timestamp"`
	Type      string          `json:"type"`
	Context   *MessageContext `json:"context,omitempty"`

	Text        *Text               `json:"text,omitempty"`
	Image       *WebhookMedia       `json:"image,omitempty"`
	Audio       *WebhookMedia       `json:"audio,omitempty"`
	Video       *WebhookMedia       `json:"video,omitempty"`
	Document    *WebhookMedia       `json:"document,omitempty"`
	Sticker     *WebhookMedia       `json:"sticker,omitempty"`
	Location    *Location           `json:"location,omitempty"`
	Reaction    *Reaction           `json:"reaction,omitempty"`
	Interactive *WebhookInteractive `json:"interactive,omitempty"`
	Button      *WebhookButton      `json:"button,omitempty"`
	Errors      []WebhookError      `json:"errors,omitempty"`
}

type WebhookMedia struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	SHA256   string `json:"sha256,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type WebhookInteractive struct {
	Type        string       `json:"type"`
	ButtonReply *ButtonReply `json:"button_reply,omitempty"`
	ListReply   *struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		Description string `json:"description,omitempty"`
	} `json:"list_reply,omitempty"`
}

type WebhookButton struct {
	Text    string `json:"text"`
	Payload string `json:"payload"`
}

// WebhookStatus reports delivery progress of an outbound message.
type WebhookStatus struct {
	ID          string         `json:"id"`
	Status      string         `json:"status"` // sent, delivered, read, failed
	Timestamp   string         `json:"timestamp"`
	RecipientID string         `json:"recipient_id"`
	Errors      []WebhookError `json:"errors,omitempty"`
}

type WebhookError struct {
	Code    int    `json:"code"`
	Title   string `json:"title"`
	Message string `json:"message,omitempty"`
}

// Messages returns every inbound message across all entries.
func (e *WebhookEvent) Messages() []WebhookMessage {
	var out []WebhookMessage
	for _, entry := range e.Entry {
		for _, change := range entry.Changes {
			out = append(out, change.Value.Messages...)
		}
	}
	return out
}

// Statuses returns every status update across all entries.
func (e *WebhookEvent) Statuses() []WebhookStatus {
	var out []WebhookStatus
	for _, entry := range e.Entry {
		for _, change := range entry.Changes {
			out = append(out, change.Value.Statuses...)
		}
	}
	return out
}
