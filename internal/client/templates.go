package client

import (
	"context"
	"net/url"
	"strconv"

	"github.com/vietddude/wacloud/internal/core/domain"
	"github.com/vietddude/wacloud/internal/infra/rpc/dispatch"
)

const (
	opGetTemplates   = "templates.list"
	opCreateTemplate = "templates.create"
	opDeleteTemplate = "templates.delete"
)

func (c *Client) templatesPath() string {
	return "/" + c.businessAccountID + "/message_templates"
}

// TemplateQuery filters GetTemplates. Zero values are omitted.
type TemplateQuery struct {
	Name   string
	Status string
	Limit  int
	After  string
}

func (q TemplateQuery) values() url.Values {
	v := url.Values{}
	if q.Name != "" {
		v.Set("name", q.Name)
	}
	if q.Status != "" {
		v.Set("status", q.Status)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.After != "" {
		v.Set("after", q.After)
	}
	return v
}

// GetTemplates lists the message templates of the business account.
func (c *Client) GetTemplates(ctx context.Context, q TemplateQuery) (*domain.TemplateList, error) {
	if err := c.requireBusinessAccount(opGetTemplates); err != nil {
		return nil, err
	}

	var out domain.TemplateList
	if err := c.get(ctx, opGetTemplates, c.templatesPath(), q.values(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateTemplate submits a template for review.
func (c *Client) CreateTemplate(ctx context.Context, tmpl domain.MessageTemplate) (*domain.CreateTemplateResponse, error) {
	if err := c.requireBusinessAccount(opCreateTemplate); err != nil {
		return nil, err
	}
	if tmpl.Name == "" {
		return nil, dispatch.Validation(opCreateTemplate, "template name is required")
	}
	if tmpl.Language == "" {
		return nil, dispatch.Validation(opCreateTemplate, "template language is required")
	}

	var out domain.CreateTemplateResponse
	if err := c.postJSON(ctx, opCreateTemplate, c.templatesPath(), tmpl, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteTemplate deletes every language of the named template.
func (c *Client) DeleteTemplate(ctx context.Context, name string) error {
	if err := c.requireBusinessAccount(opDeleteTemplate); err != nil {
		return err
	}
	if name == "" {
		return dispatch.Validation(opDeleteTemplate, "template name is required")
	}

	query := url.Values{}
	query.Set("name", name)

	var out domain.SuccessResponse
	return c.delete(ctx, opDeleteTemplate, c.templatesPath(), query, &out)
}
