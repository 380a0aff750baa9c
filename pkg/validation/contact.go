/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/


package validation

import (
	"errors"
	"strings"
)

// ErrContactFieldsRequired is returned when any contact form field is blank.
var ErrContactFieldsRequired = errors.New("All fields are required")

// MaxMessageLength caps stored inquiry messages.
const MaxMessageLength = 5000

// ContactForm is the contact form as submitted.
type ContactForm struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	InquiryType string `json:"inquiryType"`
	Message     string `json:"message"`
}

// Contact trims every field, normalises and validates the email and
// truncates overly long messages.
func Contact(form ContactForm) (ContactForm, error) {
	out := ContactForm{
		Name:        strings.TrimSpace(form.Name),
		InquiryType: strings.TrimSpace(form.InquiryType),
		Message:     strings.TrimSpace(form.Message),
	}
	if out.Name == "" || strings.TrimSpace(form.Email) == "" || out.InquiryType == "" || out.Message == "" {
		return ContactForm{}, ErrContactFieldsRequired
	}

	email, err := Email(form.Email)
	if err != nil {
		return ContactForm{}, err
	}
	out.Email = email

	if r := []rune(out.Message); len(r) > MaxMessageLength {
		out.Message = string(r[:MaxMessageLength])
	}
	return out, nil
}
