package client

import (
	"context"

	"github.com/vietddude/wacloud/internal/core/domain"
	"github.com/vietddude/wacloud/internal/infra/rpc/dispatch"
)

const (
	opSendMessage = "messages.send"
	opMarkAsRead  = "messages.read"
)

func (c *Client) messagesPath() string {
	return "/" + c.phoneNumberID + "/messages"
}

// SendMessage sends a fully built message. The messaging product is filled
// in when empty.
func (c *Client) SendMessage(ctx context.Context, msg *domain.Message) (*domain.SendMessageResponse, error) {
	if msg == nil {
		return nil, dispatch.Validation(opSendMessage, "message is nil")
	}
	if msg.To == "" {
		return nil, dispatch.Validation(opSendMessage, "recipient is required")
	}
	if msg.MessagingProduct == "" {
		msg.MessagingProduct = domain.MessagingProduct
	}
	if msg.RecipientType == "" {
		msg.RecipientType = "individual"
	}

	var out domain.SendMessageResponse
	if err := c.postJSON(ctx, opSendMessage, c.messagesPath(), msg, &out); err != nil {
		return nil, err
	}
	c.log.Debug("Message sent", "to", msg.To, "type", msg.Type, "id", out.MessageID())
	return &out, nil
}

// SendText sends a plain text message.
func (c *Client) SendText(ctx context.Context, to, body string, previewURL bool) (*domain.SendMessageResponse, error) {
	return c.SendMessage(ctx, &domain.Message{
		To:   to,
		Type: domain.MessageTypeText,
		Text: &domain.Text{Body: body, PreviewURL: previewURL},
	})
}

// SendMedia sends an image, audio, video, document or sticker. The media
// must carry either an uploaded ID or a link.
func (c *Client) SendMedia(ctx context.Context, to string, kind domain.MediaType, media domain.Media) (*domain.SendMessageResponse, error) {
	if !kind.Valid() {
		return nil, dispatch.Validation(opSendMessage, "unknown media type %q", kind)
	}
	if media.ID == "" && media.Link == "" {
		return nil, dispatch.Validation(opSendMessage, "media id or link is required")
	}

	msg := &domain.Message{To: to, Type: domain.MessageType(kind)}
	switch kind {
	case domain.MediaImage:
		msg.Image = &media
	case domain.MediaAudio:
		msg.Audio = &media
	case domain.MediaVideo:
		msg.Video = &media
	case domain.MediaDocument:
		msg.Document = &media
	case domain.MediaSticker:
		msg.Sticker = &media
	}
	return c.SendMessage(ctx, msg)
}

// SendLocation sends a location pin.
func (c *Client) SendLocation(ctx context.Context, to string, loc domain.Location) (*domain.SendMessageResponse, error) {
	return c.SendMessage(ctx, &domain.Message{
		To:       to,
		Type:     domain.MessageTypeLocation,
		Location: &loc,
	})
}

// SendTemplate sends an approved template in the given language.
func (c *Client) SendTemplate(ctx context.Context, to, name, language string, components []domain.Component) (*domain.SendMessageResponse, error) {
	if name == "" {
		return nil, dispatch.Validation(opSendMessage, "template name is required")
	}
	if language == "" {
		language = "en_US"
	}
	return c.SendMessage(ctx, &domain.Message{
		To:   to,
		Type: domain.MessageTypeTemplate,
		Template: &domain.Template{
			Name:       name,
			Language:   domain.Language{Code: language},
			Components: components,
		},
	})
}

// SendInteractive sends buttons, lists, CTA URLs and the other interactive
// kinds.
func (c *Client) SendInteractive(ctx context.Context, to string, interactive domain.Interactive) (*domain.SendMessageResponse, error) {
	if interactive.Type == "" {
		return nil, dispatch.Validation(opSendMessage, "interactive type is required")
	}
	return c.SendMessage(ctx, &domain.Message{
		To:          to,
		Type:        domain.MessageTypeInteractive,
		Interactive: &interactive,
	})
}

// SendContacts sends one or more contact cards.
func (c *Client) SendContacts(ctx context.Context, to string, contacts []domain.Contact) (*domain.SendMessageResponse, error) {
	if len(contacts) == 0 {
		return nil, dispatch.Validation(opSendMessage, "at least one contact is required")
	}
	return c.SendMessage(ctx, &domain.Message{
		To:       to,
		Type:     domain.MessageTypeContacts,
		Contacts: contacts,
	})
}

// SendReaction reacts to a message. An empty emoji removes the reaction.
func (c *Client) SendReaction(ctx context.Context, to, messageID, emoji string) (*domain.SendMessageResponse, error) {
	if messageID == "" {
		return nil, dispatch.Validation(opSendMessage, "message id is required")
	}
	return c.SendMessage(ctx, &domain.Message{
		To:       to,
		Type:     domain.MessageTypeReaction,
		Reaction: &domain.Reaction{MessageID: messageID, Emoji: emoji},
	})
}

// MarkAsRead marks an inbound message as read.
func (c *Client) MarkAsRead(ctx context.Context, messageID string) error {
	if messageID == "" {
		return dispatch.Validation(opMarkAsRead, "message id is required")
	}

	var out domain.SuccessResponse
	return c.postJSON(ctx, opMarkAsRead, c.messagesPath(), domain.ReadReceipt{
		MessagingProduct: domain.MessagingProduct,
		Status:           "read",
		MessageID:        messageID,
	}, &out)
}
