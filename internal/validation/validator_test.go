// Open-Pair - Open House Host Recommendation Engine
// Copyright 2026 T. Logan Designs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tlogandesigns/open-pair

package validation

import (
	"strings"
	"testing"
)

type sampleRequest struct {
	Name     string  `validate:"required"`
	Email    string  `validate:"omitempty,email"`
	Years    int     `validate:"min=0,max=60"`
	Feedback float64 `validate:"min=0,max=5"`
}

func TestValidateStructOK(t *testing.T) {
	req := sampleRequest{Name: "Dana", Email: "dana@example.com", Years: 4, Feedback: 4.5}
	if verr := ValidateStruct(&req); verr != nil {
		t.Fatalf("unexpected failure: %v", verr)
	}
}

func TestValidateStructFieldErrors(t *testing.T) {
	req := sampleRequest{Email: "not-an-email", Years: -3, Feedback: 7}
	verr := ValidateStruct(&req)
	if verr == nil {
		t.Fatal("expected validation failure")
	}

	byField := make(map[string]FieldError)
	for _, fe := range verr.Errors() {
		byField[fe.Field] = fe
	}
	if len(byField) != 4 {
		t.Fatalf("failed fields = %d (%v), want 4", len(byField), verr)
	}
	if fe := byField["Name"]; fe.Tag != "required" || fe.Message != "Name is required" {
		t.Errorf("Name error = %+v", fe)
	}
	if fe := byField["Email"]; fe.Tag != "email" {
		t.Errorf("Email error = %+v", fe)
	}
	if fe := byField["Years"]; fe.Tag != "min" || fe.Param != "0" {
		t.Errorf("Years error = %+v", fe)
	}
	if fe := byField["Feedback"]; fe.Message != "Feedback must be at most 5" {
		t.Errorf("Feedback error = %+v", fe)
	}

	// The aggregate message carries every failure.
	msg := verr.Error()
	for _, want := range []string{"Name is required", "Feedback must be at most 5"} {
		if !strings.Contains(msg, want) {
			t.Errorf("aggregate %q missing %q", msg, want)
		}
	}
}

func TestValidatorSingleton(t *testing.T) {
	if GetValidator() != GetValidator() {
		t.Error("GetValidator must return one shared instance")
	}
}
