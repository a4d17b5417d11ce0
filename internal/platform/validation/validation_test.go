package validation

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bookingInput struct {
	StaffID string `json:"staffId" validate:"required"`
	Status  string `json:"status" validate:"omitempty,oneof=scheduled completed"`
	Minutes int    `json:"minutes" validate:"gte=0,lte=720"`
	Contact struct {
		Email string `json:"email" validate:"omitempty,email"`
	} `json:"contact"`
}

func TestValidator_Struct(t *testing.T) {
	v := New()
	in := bookingInput{Status: "lost", Minutes: 900}
	in.Contact.Email = "nope"

	errs := v.Struct(in)
	require.Len(t, errs, 4)
	assert.Equal(t, "is required", errs["staffId"])
	assert.Equal(t, "must be one of: scheduled, completed", errs["status"])
	assert.Equal(t, "must be less than or equal to 720", errs["minutes"])
	assert.Equal(t, "must be a valid email address", errs["contact.email"])
}

func TestValidator_ValidStruct(t *testing.T) {
	v := New()
	err := v.Validate(bookingInput{StaffID: "s-1", Minutes: 30})
	assert.NoError(t, err)
}

func TestErrors_As(t *testing.T) {
	errs := Errors{}
	errs.Add("title", "is required")
	errs.Add("title", "ignored")
	wrapped := fmt.Errorf("create schema: %w", errs.Err())

	got, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, "is required", got["title"])
	assert.Contains(t, wrapped.Error(), "title: is required")
}

func TestErrors_Merge(t *testing.T) {
	errs := Errors{}
	errs.Merge("elements[0].", Errors{"label": "is required"})
	assert.Equal(t, "is required", errs["elements[0].label"])
	assert.Nil(t, Errors{}.Err())
}

func TestVar(t *testing.T) {
	assert.True(t, Var("carer@example.com", "email"))
	assert.False(t, Var("not-an-email", "email"))
}
