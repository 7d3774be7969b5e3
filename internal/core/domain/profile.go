package domain

// BusinessProfile is the public profile of a phone number.
type BusinessProfile struct {
	MessagingProduct  string   `json:"messaging_product,omitempty"`
	About             string   `json:"about,omitempty"`
	Address           string   `json:"address,omitempty"`
	Description       string   `json:"description,omitempty"`
	Email             string   `json:"email,omitempty"`
	ProfilePictureURL string   `json:"profile_picture_url,omitempty"`
	Websites          []string `json:"websites,omitempty"`
	Vertical          string   `json:"vertical,omitempty"`
}

// BusinessProfileResponse wraps GET /{phone-number-id}/whatsapp_business_profile.
type BusinessProfileResponse struct {
	Data []BusinessProfile `json:"data"`
}

// PhoneNumber is a number registered to a business account.
type PhoneNumber struct {
	ID                     string `json:"id"`
	DisplayPhoneNumber     string `json:"display_phone_number"`
	VerifiedName           string `json:"verified_name"`
	QualityRating          string `json:"quality_rating,omitempty"`
	CodeVerificationStatus string `json:"code_verification_status,omitempty"`
	PlatformType           string `json:"platform_type,omitempty"`
}

// PhoneNumberList is returned by GET /{waba-id}/phone_numbers.
type PhoneNumberList struct {
	Data   []PhoneNumber `json:"data"`
	Paging *Paging       `json:"paging,omitempty"`
}

// RegisterPhoneRequest registers a number for Cloud API use.
type RegisterPhoneRequest struct {
	MessagingProduct string `json:"messaging_product"`
	Pin              string `json:"pin"`
}
