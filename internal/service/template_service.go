package service

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/outflowhq/outflow-backend/internal/models"
)

// PlaceholderUnsubscribe is the placeholder email campaigns must carry for
// anti-spam compliance.
const PlaceholderUnsubscribe = "unsubscribe_link"

// TemplateService handles template rendering and validation
type TemplateService interface {
	Render(template string, contact *models.Contact, unsubscribeURL string) string
	ValidateTemplate(template, channel string) error
	ExtractPlaceholders(template string) []string
}

type templateService struct {
	placeholderPattern *regexp.Regexp
}

// NewTemplateService creates a new template service
func NewTemplateService() TemplateService {
	return &templateService{
		placeholderPattern: regexp.MustCompile(`\{([a-z_]+)\}`),
	}
}

// Render replaces placeholders in the template with contact data. Missing
// fields render as empty strings; unsupported placeholders were already
// rejected at campaign creation.
func (s *templateService) Render(template string, contact *models.Contact, unsubscribeURL string) string {
	fieldMap := map[string]string{
		"name":                 contact.Name,
		"email":                contact.Email,
		"phone":                contact.Phone,
		PlaceholderUnsubscribe: unsubscribeURL,
	}

	return s.placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		fieldName := strings.Trim(match, "{}")
		return fieldMap[fieldName]
	})
}

// ValidateTemplate checks placeholders at campaign-creation time so bad
// templates never reach dispatch.
func (s *templateService) ValidateTemplate(template, channel string) error {
	if template == "" {
		return models.ErrInvalidInput("template cannot be empty")
	}

	validPlaceholders := map[string]bool{
		"name":                 true,
		"email":                true,
		"phone":                true,
		PlaceholderUnsubscribe: true,
	}

	var invalid []string
	hasUnsubscribe := false
	for _, placeholder := range s.ExtractPlaceholders(template) {
		if !validPlaceholders[placeholder] {
			invalid = append(invalid, placeholder)
		}
		if placeholder == PlaceholderUnsubscribe {
			hasUnsubscribe = true
		}
	}

	if len(invalid) > 0 {
		return models.ErrInvalidInput(
			fmt.Sprintf("invalid placeholders: %s. Valid placeholders are: name, email, phone, unsubscribe_link",
				strings.Join(invalid, ", ")),
		)
	}

	if channel == models.ChannelEmail && !hasUnsubscribe {
		return models.ErrInvalidInput("email templates must contain the {unsubscribe_link} placeholder")
	}

	return nil
}

// ExtractPlaceholders returns all placeholders found in template
func (s *templateService) ExtractPlaceholders(template string) []string {
	matches := s.placeholderPattern.FindAllStringSubmatch(template, -1)
	placeholders := make([]string, 0, len(matches))

	for _, match := range matches {
		if len(match) > 1 {
			placeholders = append(placeholders, match[1])
		}
	}

	return placeholders
}
