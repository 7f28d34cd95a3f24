package api

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/tome/internal/kbservice"
	"github.com/starford/tome/internal/models"
)

// notBlank rejects values made only of whitespace. Empty values pass, so pair
// it with Required or NilOrNotEmpty.
var notBlank = validation.Match(regexp.MustCompile(`\S`)).Error("must not be blank")

// KnowledgeItem is the item response type (aliased from the domain layer).
type KnowledgeItem = models.KnowledgeItem

// CreateItemRequest is the request body for creating an item.
type CreateItemRequest struct {
	Title    string   `json:"title" example:"Go channels" validate:"required"`
	Content  string   `json:"content" example:"Use select to multiplex." validate:"required"`
	Category string   `json:"category,omitempty" example:"Development"`
	Tags     []string `json:"tags,omitempty" example:"go,concurrency"`
	Summary  string   `json:"summary,omitempty"`
}

// Validate requires a non-blank title and content.
func (r CreateItemRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, notBlank),
		validation.Field(&r.Content, validation.Required, notBlank),
	)
}

// Input converts the request into store input.
func (r CreateItemRequest) Input() models.ItemInput {
	return models.ItemInput{
		Title:    r.Title,
		Content:  r.Content,
		Category: r.Category,
		Tags:     r.Tags,
		Summary:  r.Summary,
	}
}

// UpdateItemRequest is the request body for a partial update. Omitted fields
// are left unchanged.
type UpdateItemRequest struct {
	Title    *string   `json:"title,omitempty"`
	Content  *string   `json:"content,omitempty"`
	Category *string   `json:"category,omitempty"`
	Tags     *[]string `json:"tags,omitempty"`
	Summary  *string   `json:"summary,omitempty"`
}

// Validate rejects blanking out the title or content.
func (r UpdateItemRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.NilOrNotEmpty, notBlank),
		validation.Field(&r.Content, validation.NilOrNotEmpty, notBlank),
	)
}

// Patch converts the request into a store patch for id.
func (r UpdateItemRequest) Patch(id string) models.ItemPatch {
	return models.ItemPatch{
		ID:       id,
		Title:    r.Title,
		Content:  r.Content,
		Category: r.Category,
		Tags:     r.Tags,
		Summary:  r.Summary,
	}
}

// ItemListResponse wraps item listings.
type ItemListResponse struct {
	Items []KnowledgeItem `json:"items" validate:"required"`
	Total int             `json:"total" example:"42" validate:"required"`
}

// AskRequest is the request body for a question.
type AskRequest struct {
	Question string `json:"question" example:"What did I note about channels?" validate:"required"`
}

// Validate checks the question is present.
func (r AskRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Question, validation.Required),
	)
}

// AskResponse carries the generated answer.
type AskResponse struct {
	Question string `json:"question" validate:"required"`
	Answer   string `json:"answer" validate:"required"`
}

// ImportResponse is returned after a successful import.
type ImportResponse = kbservice.ImportResult

// AIStatusResponse reports AI availability.
type AIStatusResponse = kbservice.AIStatus
