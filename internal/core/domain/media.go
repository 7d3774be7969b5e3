package domain

// UploadMediaResponse is returned by POST /{phone-number-id}/media.
type UploadMediaResponse struct {
	ID string `json:"id"`
}

// MediaURL is returned by GET /{media-id}. The URL expires after a few
// minutes and must be fetched with the same bearer token.
type MediaURL struct {
	MessagingProduct string `json:"messaging_product"`
	URL              string `json:"url"`
	MimeType         string `json:"mime_type"`
	SHA256           string `json:"sha256"`
	FileSize         int64  `json:"file_size"`
	ID               string `json:"id"`
}
