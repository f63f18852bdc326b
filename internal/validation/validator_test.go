// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package validation

import (
	"strings"
	"testing"
)

type rankBody struct {
	TravelerID string   `json:"traveler_id" validate:"required_without=Email,omitempty,identifier"`
	Email      string   `json:"email,omitempty" validate:"omitempty,email"`
	K          int      `json:"k" validate:"gte=0,lte=50"`
	Offers     []string `json:"offers" validate:"max=3"`
	Strategy   string   `koanf:"strategy" validate:"omitempty,oneof=knn classifier regressor"`
	Name       string   `validate:"omitempty,min=2"`
}

func TestGetValidator_Singleton(t *testing.T) {
	if GetValidator() != GetValidator() {
		t.Error("GetValidator() should return the same instance")
	}
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name      string
		input     rankBody
		wantField string
		wantMsg   string
	}{
		{"valid with id", rankBody{TravelerID: "trav-42", K: 3}, "", ""},
		{"valid with email", rankBody{Email: "ana@example.com"}, "", ""},
		{"missing traveler", rankBody{}, "traveler_id", "traveler_id is required when email is absent"},
		{"bad identifier", rankBody{TravelerID: "has space"}, "traveler_id", "traveler_id must be 1-128 characters"},
		{"bad email", rankBody{Email: "nope"}, "email", "email must be a valid email address"},
		{"k too large", rankBody{TravelerID: "t1", K: 51}, "k", "k must be less than or equal to 50"},
		{"too many offers", rankBody{TravelerID: "t1", Offers: []string{"a", "b", "c", "d"}}, "offers", "offers must be at most 3 items"},
		{"koanf name", rankBody{TravelerID: "t1", Strategy: "svm"}, "strategy", "strategy must be one of: knn classifier regressor"},
		{"go field name", rankBody{TravelerID: "t1", Name: "x"}, "Name", "Name must be at least 2 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.input)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("ValidateStruct() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("ValidateStruct() = nil, want error")
			}
			if len(err.Fields) != 1 {
				t.Fatalf("Fields = %+v, want one", err.Fields)
			}
			if err.Fields[0].Field != tt.wantField {
				t.Errorf("Field = %q, want %q", err.Fields[0].Field, tt.wantField)
			}
			if !strings.HasPrefix(err.Error(), tt.wantMsg) {
				t.Errorf("Error() = %q, want prefix %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestToAPIError(t *testing.T) {
	single := ValidateStruct(&rankBody{TravelerID: "t1", K: -1}).ToAPIError()
	if single.Code != ErrorCode || single.Details["field"] != "k" {
		t.Errorf("single ToAPIError() = %+v", single)
	}

	multi := ValidateStruct(&rankBody{Email: "bad", K: 99}).ToAPIError()
	fields, ok := multi.Details["fields"].([]FieldError)
	if !ok || len(fields) != 2 {
		t.Fatalf("multi details = %+v", multi.Details)
	}
	if !strings.Contains(multi.Message, "; ") {
		t.Errorf("Message = %q, want joined messages", multi.Message)
	}
}

func TestDisplayParam(t *testing.T) {
	tests := []struct{ tag, param, want string }{
		{"required_without", "Email", "email"},
		{"required_without", "TravelerID", "traveler_id"},
		{"oneof", "a b", "a b"},
	}
	for _, tt := range tests {
		if got := displayParam(tt.tag, tt.param); got != tt.want {
			t.Errorf("displayParam(%q, %q) = %q, want %q", tt.tag, tt.param, got, tt.want)
		}
	}
}
