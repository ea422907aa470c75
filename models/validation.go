package models

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// User-visible validation messages.
const (
	MsgFillIn          = "Please fill in the title or content"
	MsgFillInContent   = "Please fill in the content"
	MsgTitleTooLong    = "Title too long. Maximum length = 100 characters."
	MsgContentTooLong  = "Content too long. Maximum length = 1000 characters"
	MsgTitleSeedTooBig = "Title too long to derive a note address. Maximum length = 32 bytes."
)

// ValidationError is a local check that failed before anything was submitted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NoteInput is the create form.
type NoteInput struct {
	Title   string `validate:"notblank,max=100"`
	Content string `validate:"notblank,max=1000"`
}

// ContentInput is the edit form.
type ContentInput struct {
	Content string `validate:"notblank,max=1000"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// failedRules maps each failing field to the first rule it broke.
func failedRules(err error) map[string]string {
	out := map[string]string{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			out[fe.Field()] = fe.Tag()
		}
	}
	return out
}

// Validate checks blanks first, then the title bound, then the content bound.
func (in NoteInput) Validate() error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	rules := failedRules(err)
	switch {
	case rules["Title"] == "notblank":
		return &ValidationError{Field: "Title", Message: MsgFillIn}
	case rules["Content"] == "notblank":
		return &ValidationError{Field: "Content", Message: MsgFillIn}
	case rules["Title"] == "max":
		return &ValidationError{Field: "Title", Message: MsgTitleTooLong}
	case rules["Content"] == "max":
		return &ValidationError{Field: "Content", Message: MsgContentTooLong}
	}
	return err
}

func (in ContentInput) Validate() error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	switch failedRules(err)["Content"] {
	case "notblank":
		return &ValidationError{Field: "Content", Message: MsgFillInContent}
	case "max":
		return &ValidationError{Field: "Content", Message: MsgContentTooLong}
	}
	return err
}
