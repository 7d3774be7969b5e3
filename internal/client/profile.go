package client

import (
	"context"
	"net/url"
	"strings"

	"github.com/vietddude/wacloud/internal/core/domain"
	"github.com/vietddude/wacloud/internal/infra/rpc/dispatch"
)

const (
	opGetProfile      = "profile.get"
	opUpdateProfile   = "profile.update"
	opGetPhones       = "phone_numbers.list"
	opRegisterPhone   = "phone_numbers.register"
	opDeregisterPhone = "phone_numbers.deregister"
)

var profileFields = []string{
	"about", "address", "description", "email",
	"profile_picture_url", "websites", "vertical",
}

// GetBusinessProfile returns the profile of the sender phone number.
func (c *Client) GetBusinessProfile(ctx context.Context) (*domain.BusinessProfile, error) {
	query := url.Values{}
	query.Set("fields", strings.Join(profileFields, ","))

	var out domain.BusinessProfileResponse
	if err := c.get(ctx, opGetProfile, "/"+c.phoneNumberID+"/whatsapp_business_profile", query, &out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 {
		return &domain.BusinessProfile{}, nil
	}
	return &out.Data[0], nil
}

// UpdateBusinessProfile updates the non-empty fields of profile.
func (c *Client) UpdateBusinessProfile(ctx context.Context, profile domain.BusinessProfile) error {
	profile.MessagingProduct = domain.MessagingProduct

	var out domain.SuccessResponse
	return c.postJSON(ctx, opUpdateProfile, "/"+c.phoneNumberID+"/whatsapp_business_profile", profile, &out)
}

// GetPhoneNumbers lists the phone numbers of the business account.
func (c *Client) GetPhoneNumbers(ctx context.Context) (*domain.PhoneNumberList, error) {
	if err := c.requireBusinessAccount(opGetPhones); err != nil {
		return nil, err
	}

	var out domain.PhoneNumberList
	if err := c.get(ctx, opGetPhones, "/"+c.businessAccountID+"/phone_numbers", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RegisterPhone registers the sender number with a six-digit two-step PIN.
func (c *Client) RegisterPhone(ctx context.Context, pin string) error {
	if len(pin) != 6 {
		return dispatch.Validation(opRegisterPhone, "pin must have 6 digits")
	}

	var out domain.SuccessResponse
	return c.postJSON(ctx, opRegisterPhone, "/"+c.phoneNumberID+"/register", domain.RegisterPhoneRequest{
		MessagingProduct: domain.MessagingProduct,
		Pin:              pin,
	}, &out)
}

// DeregisterPhone removes the sender number from the Cloud API.
func (c *Client) DeregisterPhone(ctx context.Context) error {
	var out domain.SuccessResponse
	return c.postJSON(ctx, opDeregisterPhone, "/"+c.phoneNumberID+"/deregister", struct{}{}, &out)
}
