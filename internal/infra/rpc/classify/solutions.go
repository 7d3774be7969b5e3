package classify

import "strconv"

// solutions maps "{type}-{code}" or a bare "{code}" to a remediation hint.
// Extend the table, not the lookup.
var solutions = map[string]string{
	// Authentication and permissions
	"OAuthException-190": "Check that your access token is valid and has not expired. You may need to generate a new one.",
	"OAuthException-10":  "Ensure your app has the required permissions. Check your app settings in the Meta Developer Portal.",
	"OAuthException-200": "The app lacks a permission required for this call. Grant whatsapp_business_messaging or whatsapp_business_management.",

	// Throttling
	"OAuthException-80004": "Your application is making too many requests. Implement rate limiting or exponential backoff.",
	"4-30":                 "You have exceeded the rate at which you can send messages to this user. Wait and try again later.",
	"130429":               "Cloud API message throughput has been reached. Slow down and retry after a short wait.",
	"131056":               "Too many messages sent from this phone number to the same recipient in a short period. Wait before retrying.",

	// Parameters and messages
	"GraphMethodException-100": "One or more parameters in your request are invalid. Check the error details for specific fields to fix.",
	"131000":                   "The message failed to send. Check that the recipient is a valid WhatsApp user and try again.",
	"131005":                   "Your message contains content that is blocked by WhatsApp. Modify your message and try again.",
	"131014":                   "The template you are trying to use has not been approved. Check the status of your template in the Meta Business Manager.",
	"131026":                   "The message could not be delivered. The recipient may not have WhatsApp or may need to accept updated terms.",
	"131047":                   "More than 24 hours have passed since the recipient last replied. Send an approved template message instead.",

	// Media
	"131009": "The media upload failed. Ensure the file is a supported format and size (images < 5MB, videos < 16MB, documents < 100MB).",
	"131051": "The media file you are trying to send could not be found. Check the media ID or URL.",

	// Phone numbers
	"132000": "The phone number you are trying to use is not enabled for WhatsApp Business API. Verify the number in Meta Business Manager.",
	"132001": "The recipient phone number is not a verified WhatsApp user. Ensure the number is correct and the user has WhatsApp installed.",
	"133010": "The phone number is not registered with Cloud API. Register it before sending messages.",
}

// Solution returns the remediation hint for an error type and code. The
// typed key wins over the bare code.
func Solution(errorType string, code int) (string, bool) {
	c := strconv.Itoa(code)
	if hint, ok := solutions[errorType+"-"+c]; ok {
		return hint, true
	}
	if hint, ok := solutions[c]; ok {
		return hint, true
	}
	return "", false
}
