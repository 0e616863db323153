package email

import "github.com/dukerupert/verdandi/internal/domain"

var (
	ErrInvalidFromAddress = &domain.Error{Code: domain.EINVALID, Op: "email.send", Message: "Invalid from email address"}
	ErrInvalidToAddress   = &domain.Error{Code: domain.EINVALID, Op: "email.send", Message: "Invalid to email address"}
)

// ErrTemplateNotFound creates a template not found error.
func ErrTemplateNotFound(templateName string) error {
	return domain.NotFound("email.render", "email template", templateName)
}
