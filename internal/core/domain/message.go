package domain

// MessagingProduct is the fixed product value every Cloud API payload carries.
const MessagingProduct = "whatsapp"

// MessageType is the "type" field of an outbound message.
type MessageType string

const (
	MessageTypeText        MessageType = "text"
	MessageTypeImage       MessageType = "image"
	MessageTypeAudio       MessageType = "audio"
	MessageTypeVideo       MessageType = "video"
	MessageTypeDocument    MessageType = "document"
	MessageTypeSticker     MessageType = "sticker"
	MessageTypeLocation    MessageType = "location"
	MessageTypeTemplate    MessageType = "template"
	MessageTypeInteractive MessageType = "interactive"
	MessageTypeContacts    MessageType = "contacts"
	MessageTypeReaction    MessageType = "reaction"
)

// MediaType selects which media field a media message uses.
type MediaType string

const (
	MediaImage    MediaType = "image"
	MediaAudio    MediaType = "audio"
	MediaVideo    MediaType = "video"
	MediaDocument MediaType = "document"
	MediaSticker  MediaType = "sticker"
)

// Valid reports whether t is a known media type.
func (t MediaType) Valid() bool {
	switch t {
	case MediaImage, MediaAudio, MediaVideo, MediaDocument, MediaSticker:
		return true
	}
	return false
}

// Message is the body of POST /{phone-number-id}/messages.
type Message struct {
	MessagingProduct string          `json:"messaging_product"`
	RecipientType    string          `json:"recipient_type,omitempty"`
	To               string          `json:"to"`
	Type             MessageType     `json:"type"`
	Context          *MessageContext `json:"context,omitempty"`

	Text        *Text        `json:"text,omitempty"`
	Image       *Media       `json:"image,omitempty"`
	Audio       *Media       `json:"audio,omitempty"`
	Video       *Media       `json:"video,omitempty"`
	Document    *Media       `json:"document,omitempty"`
	Sticker     *Media       `json:"sticker,omitempty"`
	Location    *Location    `json:"location,omitempty"`
	Template    *Template    `json:"template,omitempty"`
	Interactive *Interactive `json:"interactive,omitempty"`
	Contacts    []Contact    `json:"contacts,omitempty"`
	Reaction    *Reaction    `json:"reaction,omitempty"`
}

// MessageContext replies to an earlier message.
type MessageContext struct {
	MessageID string `json:"message_id"`
}

type Text struct {
	Body       string `json:"body"`
	PreviewURL bool   `json:"preview_url,omitempty"`
}

// Media references uploaded media by ID or hosted media by Link.
type Media struct {
	ID       string `json:"id,omitempty"`
	Link     string `json:"link,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
}

type Reaction struct {
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
}

// Template sends an approved message template.
type Template struct {
	Name       string      `json:"name"`
	Language   Language    `json:"language"`
	Components []Component `json:"components,omitempty"`
}

type Language struct {
	Code string `json:"code"`
}

// Component fills the variables of one template component.
type Component struct {
	Type       string      `json:"type"` // header, body, button
	SubType    string      `json:"sub_type,omitempty"`
	Index      string      `json:"index,omitempty"`
	Parameters []Parameter `json:"parameters"`
}

// Parameter is one template variable. Type selects the populated field.
type Parameter struct {
	Type     string    `json:"type"` // text, currency, date_time, image, document, video, payload
	Text     string    `json:"text,omitempty"`
	Payload  string    `json:"payload,omitempty"`
	Currency *Currency `json:"currency,omitempty"`
	DateTime *DateTime `json:"date_time,omitempty"`
	Image    *Media    `json:"image,omitempty"`
	Document *Media    `json:"document,omitempty"`
	Video    *Media    `json:"video,omitempty"`
}

type Currency struct {
	FallbackValue string `json:"fallback_value"`
	Code          string `json:"code"`
	Amount1000    int64  `json:"amount_1000"`
}

type DateTime struct {
	FallbackValue string `json:"fallback_value"`
}

// InteractiveType is the kind of interactive message.
type InteractiveType string

const (
	InteractiveTypeButton          InteractiveType = "button"
	InteractiveTypeList            InteractiveType = "list"
	InteractiveTypeProduct         InteractiveType = "product"
	InteractiveTypeProductList     InteractiveType = "product_list"
	InteractiveTypeCTAURL          InteractiveType = "cta_url"
	InteractiveTypeFlow            InteractiveType = "flow"
	InteractiveTypeLocationRequest InteractiveType = "location_request_message"
)

type Interactive struct {
	Type   InteractiveType    `json:"type"`
	Header *InteractiveHeader `json:"header,omitempty"`
	Body   *InteractiveText   `json:"body,omitempty"`
	Footer *InteractiveText   `json:"footer,omitempty"`
	Action InteractiveAction  `json:"action"`
}

type InteractiveText struct {
	Text string `json:"text"`
}

// InteractiveHeader is a text or media header.
type InteractiveHeader struct {
	Type     string `json:"type"` // text, image, video, document
	Text     string `json:"text,omitempty"`
	Image    *Media `json:"image,omitempty"`
	Video    *Media `json:"video,omitempty"`
	Document *Media `json:"document,omitempty"`
}

// InteractiveAction covers reply buttons, lists, CTA URLs, flows and
// location requests. Only the fields relevant to the type are set.
type InteractiveAction struct {
	Button            string               `json:"button,omitempty"`
	Buttons           []InteractiveButton  `json:"buttons,omitempty"`
	Sections          []InteractiveSection `json:"sections,omitempty"`
	CatalogID         string               `json:"catalog_id,omitempty"`
	ProductRetailerID string               `json:"product_retailer_id,omitempty"`
	Name              string               `json:"name,omitempty"`
	Parameters        map[string]any       `json:"parameters,omitempty"`
}

type InteractiveButton struct {
	Type  string       `json:"type"` // reply
	Reply *ButtonReply `json:"reply,omitempty"`
}

type ButtonReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type InteractiveSection struct {
	Title        string           `json:"title,omitempty"`
	Rows         []InteractiveRow `json:"rows,omitempty"`
	ProductItems []ProductItem    `json:"product_items,omitempty"`
}

type InteractiveRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type ProductItem struct {
	ProductRetailerID string `json:"product_retailer_id"`
}

// Contact is a contact card.
type Contact struct {
	Addresses []ContactAddress `json:"addresses,omitempty"`
	Birthday  string           `json:"birthday,omitempty"`
	Emails    []ContactEmail   `json:"emails,omitempty"`
	Name      ContactName      `json:"name"`
	Org       *ContactOrg      `json:"org,omitempty"`
	Phones    []ContactPhone   `json:"phones,omitempty"`
	URLs      []ContactURL     `json:"urls,omitempty"`
}

type ContactAddress struct {
	Street      string `json:"street,omitempty"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	Zip         string `json:"zip,omitempty"`
	Country     string `json:"country,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
	Type        string `json:"type,omitempty"`
}

type ContactEmail struct {
	Email string `json:"email"`
	Type  string `json:"type,omitempty"`
}

type ContactName struct {
	FormattedName string `json:"formatted_name"`
	FirstName     string `json:"first_name,omitempty"`
	LastName      string `json:"last_name,omitempty"`
	MiddleName    string `json:"middle_name,omitempty"`
	Suffix        string `json:"suffix,omitempty"`
	Prefix        string `json:"prefix,omitempty"`
}

type ContactOrg struct {
	Company    string `json:"company,omitempty"`
	Department string `json:"department,omitempty"`
	Title      string `json:"title,omitempty"`
}

type ContactPhone struct {
	Phone string `json:"phone"`
	Type  string `json:"type,omitempty"`
	WaID  string `json:"wa_id,omitempty"`
}

type ContactURL struct {
	URL  string `json:"url"`
	Type string `json:"type,omitempty"`
}

// ReadReceipt marks an inbound message as read.
type ReadReceipt struct {
	MessagingProduct string `json:"messaging_product"`
	Status           string `json:"status"`
	MessageID        string `json:"message_id"`
}

// SendMessageResponse is returned by the messages endpoint.
type SendMessageResponse struct {
	MessagingProduct string `json:"messaging_product"`
	Contacts         []struct {
		Input string `json:"input"`
		WaID  string `json:"wa_id"`
	} `json:"contacts"`
	Messages []struct {
		ID            string `json:"id"`
		MessageStatus string `json:"message_status,omitempty"`
	} `json:"messages"`
}

// MessageID returns the ID of the first accepted message.
func (r *SendMessageResponse) MessageID() string {
	if r == nil || len(r.Messages) == 0 {
		return ""
	}
	return r.Messages[0].ID
}

// SuccessResponse is the {"success": true} shape returned by mutations.
type SuccessResponse struct {
	Success bool `json:"success"`
}
