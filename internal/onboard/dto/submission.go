// Содержит структуры данных (DTO) для представления заявок поставщиков, черновиков, замечаний проверки и вложений.
package dto

import (
	"time"

	"github.com/aisa-it/onboard/onboard.go/internal/onboard/types"
)

type SubmissionLight struct {
	ID               string                 `json:"id"`
	FormDefinitionId string                 `json:"form_definition_id"`
	OrganizationId   string                 `json:"organization_id"`
	Status           types.SubmissionStatus `json:"status"`
	Version          int                    `json:"version"`
	CurrentStep      int                    `json:"current_step"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
	SubmittedAt      *time.Time             `json:"submitted_at" extensions:"x-nullable"`
}

type Submission struct {
	SubmissionLight
	Data           types.FormData       `json:"data"`
	TouchedKeys    []string             `json:"touched_keys"`
	CompletedSteps []int                `json:"completed_steps"`
	FormDefinition *FormDefinitionLight `json:"form_definition_detail,omitempty" extensions:"x-nullable"`
	Comments       []*ReviewComment     `json:"comments,omitempty"`
	Attachments    []*Attachment        `json:"attachments,omitempty"`
}

// DraftSummary - облегченное представление черновика для списков, без данных полей.
type DraftSummary struct {
	ID               string     `json:"id"`
	FormDefinitionId string     `json:"form_definition_id"`
	Title            string     `json:"title"`
	CurrentStep      int        `json:"current_step"`
	Version          int        `json:"version"`
	UpdatedAt        time.Time  `json:"updated_at"`
	EndDate          *time.Time `json:"end_date" extensions:"x-nullable"`
}

type ReviewComment struct {
	ID              string    `json:"id"`
	SubmissionId    string    `json:"submission_id"`
	AuthorId        string    `json:"author_id"`
	Body            string    `json:"body"`
	FieldKeys       []string  `json:"field_keys"`
	SupplierVisible bool      `json:"supplier_visible"`
	Resolved        bool      `json:"resolved"`
	CreatedAt       time.Time `json:"created_at"`
}

type FileAsset struct {
	Id          string `json:"id"`
	Name        string `json:"name"`
	FileSize    int64  `json:"size"`
	ContentType string `json:"content_type"`
}

type Attachment struct {
	Id              string        `json:"id"`
	DocumentTypeKey string        `json:"document_type_key"`
	CreatedAt       time.Time     `json:"created_at"`
	Asset           *FileAsset    `json:"asset"`
	Url             types.JsonURL `json:"url,omitempty"`
}

type AuditRecord struct {
	Id        string    `json:"id"`
	TargetId  string    `json:"target_id"`
	ActorId   string    `json:"actor_id"`
	Action    string    `json:"action"`
	OldValue  *string   `json:"old_value" extensions:"x-nullable"`
	NewValue  *string   `json:"new_value" extensions:"x-nullable"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidationError - ошибка валидации одного поля анкеты.
type ValidationError struct {
	FieldKey string `json:"field_key"`
	Message  string `json:"message"`
}

type StepValidationResult struct {
	OK              bool              `json:"ok"`
	Step            int               `json:"step"`
	Errors          []ValidationError `json:"errors,omitempty"`
	FirstErrorField string            `json:"first_error_field,omitempty"`
}

type FormValidationResult struct {
	OK    bool                   `json:"ok"`
	Steps []StepValidationResult `json:"steps"`
}
