package domain

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestInteractiveButtonMessageJSON(t *testing.T) {
	msg := Interactive{
		Type: InteractiveTypeButton,
		Body: &InteractiveText{Text: "Pick one"},
		Action: InteractiveAction{
			Buttons: []InteractiveButton{
				{Type: "reply", Reply: &ButtonReply{ID: "yes", Title: "Yes"}},
			},
		},
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got := string(data)
	for _, want := range []string{
		`"type":"button"`,
		`"buttons":[{"type":"reply","reply":{"id":"yes","title":"Yes"}}]`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %s in %s", want, got)
		}
	}
}

func TestInteractiveTypeValues(t *testing.T) {
	tests := map[InteractiveType]string{
		InteractiveTypeButton:          "button",
		InteractiveTypeList:            "list",
		InteractiveTypeProduct:         "product",
		InteractiveTypeProductList:     "product_list",
		InteractiveTypeCTAURL:          "cta_url",
		InteractiveTypeFlow:            "flow",
		InteractiveTypeLocationRequest: "location_request_message",
	}
	for typ, want := range tests {
		if string(typ) != want {
			t.Errorf("got %q, want %q", typ, want)
		}
	}
}
