package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

const layoutTemplate = "templates/layout.html"

// Service handles email composition and sending
type Service struct {
	sender      Sender
	fromAddress string
	fromName    string
	// templates holds one layout clone per content template, keyed by file name.
	templates map[string]*template.Template
}

// NewService creates a new email service
func NewService(sender Sender, fromAddress, fromName string) (*Service, error) {
	layout, err := template.ParseFS(templateFS, layoutTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse email layout: %w", err)
	}

	names, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to list email templates: %w", err)
	}

	templates := make(map[string]*template.Template, len(names))
	for _, name := range names {
		if name == layoutTemplate {
			continue
		}
		t, err := layout.Clone()
		if err != nil {
			return nil, fmt.Errorf("failed to clone email layout: %w", err)
		}
		if _, err := t.ParseFS(templateFS, name); err != nil {
			return nil, fmt.Errorf("failed to parse email template %s: %w", name, err)
		}
		templates[strings.TrimPrefix(name, "templates/")] = t
	}

	return &Service{
		sender:      sender,
		fromAddress: fromAddress,
		fromName:    fromName,
		templates:   templates,
	}, nil
}

// Send renders data and hands the message to the sender.
func (s *Service) Send(ctx context.Context, data EmailTemplate, attachments ...Attachment) (string, error) {
	if data.Recipient() == "" {
		return "", ErrInvalidToAddress
	}

	htmlBody, textBody, err := s.Render(data)
	if err != nil {
		return "", err
	}

	email := &Email{
		To:          []string{data.Recipient()},
		From:        fmt.Sprintf("%s <%s>", s.fromName, s.fromAddress),
		Subject:     data.Subject(),
		HTMLBody:    htmlBody,
		TextBody:    textBody,
		Attachments: attachments,
		Headers:     map[string]string{NotificationHeader: strings.TrimSuffix(data.TemplateName(), ".html")},
	}

	id, err := s.sender.Send(ctx, email)
	if err != nil {
		return "", fmt.Errorf("failed to send %s email: %w", strings.TrimSuffix(data.TemplateName(), ".html"), err)
	}
	return id, nil
}

// Render returns the HTML body and its plain text version.
func (s *Service) Render(data EmailTemplate) (string, string, error) {
	tmpl, ok := s.templates[data.TemplateName()]
	if !ok {
		return "", "", ErrTemplateNotFound(data.TemplateName())
	}

	var htmlBuf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&htmlBuf, "email_layout", data); err != nil {
		return "", "", fmt.Errorf("failed to execute template %s: %w", data.TemplateName(), err)
	}

	htmlBody := htmlBuf.String()
	return htmlBody, generatePlainText(htmlBody), nil
}

// generatePlainText creates a simple plain text version from HTML
func generatePlainText(html string) string {
	text := html

	text = strings.ReplaceAll(text, "<br>", "\n")
	text = strings.ReplaceAll(text, "<br/>", "\n")
	text = strings.ReplaceAll(text, "<br />", "\n")
	text = strings.ReplaceAll(text, "</p>", "\n\n")
	text = strings.ReplaceAll(text, "</div>", "\n")
	text = strings.ReplaceAll(text, "</h1>", "\n\n")
	text = strings.ReplaceAll(text, "</h2>", "\n\n")
	text = strings.ReplaceAll(text, "</h3>", "\n\n")

	for strings.Contains(text, "<") && strings.Contains(text, ">") {
		start := strings.Index(text, "<")
		end := strings.Index(text, ">")
		if start >= 0 && end > start {
			text = text[:start] + text[end+1:]
		} else {
			break
		}
	}

	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = strings.ReplaceAll(text, "&quot;", "\"")

	lines := strings.Split(text, "\n")
	var cleaned []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}

	return strings.Join(cleaned, "\n")
}
