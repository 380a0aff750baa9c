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


package mail

import (
	"bytes"
	_ "embed"
	"html/template"
)

type InquiryMailParams struct {
	ID          string
	Name        string
	Email       string
	InquiryType string
	Message     string
	SubmittedAt string
	Source      string
	BrandName   string
}

var (
	inquiryTemplate = template.New("inquiry")

	//go:embed templates/inquiry.html
	inquiryTemplateRaw string
)

func init() {
	if _, err := inquiryTemplate.Parse(inquiryTemplateRaw); err != nil {
		panic(err)
	}
}

func render(t *template.Template, p any) (string, error) {
	b := bytes.Buffer{}
	err := t.Execute(&b, p)
	return b.String(), err
}

// RenderInquiry renders the owner notification for a contact inquiry.
// html/template escapes every field, so visitor input cannot inject markup.
func RenderInquiry(p InquiryMailParams) (string, error) {
	return render(inquiryTemplate, p)
}

// InquirySubject is the subject line for an inquiry notification.
func InquirySubject(p InquiryMailParams) string {
	return "New " + p.InquiryType + " inquiry from " + p.Name
}
