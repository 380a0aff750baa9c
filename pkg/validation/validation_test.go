package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmail(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		err      error
	}{
		{name: "valid", input: "jane@example.com", expected: "jane@example.com"},
		{name: "normalised", input: "  Jane.Doe@Example.COM ", expected: "jane.doe@example.com"},
		{name: "plus addressing", input: "jane+news@example.co.uk", expected: "jane+news@example.co.uk"},
		{name: "empty", input: "", err: ErrEmailRequired},
		{name: "blank", input: "   ", err: ErrEmailRequired},
		{name: "too long", input: strings.Repeat("a", 250) + "@example.com", err: ErrEmailTooLong},
		{name: "missing at", input: "jane.example.com", err: ErrEmailInvalid},
		{name: "missing domain", input: "jane@", err: ErrEmailInvalid},
		{name: "space inside", input: "ja ne@example.com", err: ErrEmailInvalid},
		{name: "domain starts with hyphen", input: "jane@-example.com", err: ErrEmailInvalid},
		{name: "double dot in local part", input: "jane..doe@example.com", err: ErrEmailFormat},
		{name: "leading dot", input: ".jane@example.com", err: ErrEmailFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Email(tt.input)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestErrorMessagesAreUserFacing(t *testing.T) {
	assert.Equal(t, "Email is required", ErrEmailRequired.Error())
	assert.Equal(t, "Email address is too long", ErrEmailTooLong.Error())
	assert.Equal(t, "Please enter a valid email address", ErrEmailInvalid.Error())
	assert.Equal(t, "Invalid email format", ErrEmailFormat.Error())
	assert.Equal(t, "All fields are required", ErrContactFieldsRequired.Error())
}

func TestContact(t *testing.T) {
	valid := ContactForm{Name: " Jane ", Email: " JANE@example.com", InquiryType: "massage", Message: " Hello \n"}

	t.Run("sanitises", func(t *testing.T) {
		got, err := Contact(valid)
		require.NoError(t, err)
		assert.Equal(t, ContactForm{Name: "Jane", Email: "jane@example.com", InquiryType: "massage", Message: "Hello"}, got)
	})

	t.Run("missing fields", func(t *testing.T) {
		for _, mutate := range []func(*ContactForm){
			func(f *ContactForm) { f.Name = "" },
			func(f *ContactForm) { f.Email = " " },
			func(f *ContactForm) { f.InquiryType = "" },
			func(f *ContactForm) { f.Message = "\t" },
		} {
			form := valid
			mutate(&form)
			_, err := Contact(form)
			assert.ErrorIs(t, err, ErrContactFieldsRequired)
		}
	})

	t.Run("invalid email", func(t *testing.T) {
		form := valid
		form.Email = "not-an-email"
		_, err := Contact(form)
		assert.ErrorIs(t, err, ErrEmailInvalid)
	})

	t.Run("long message truncated", func(t *testing.T) {
		form := valid
		form.Message = strings.Repeat("é", MaxMessageLength+10)
		got, err := Contact(form)
		require.NoError(t, err)
		assert.Equal(t, MaxMessageLength, len([]rune(got.Message)))
	})
}
