// Package validation checks request payloads before they reach the services.
// Every validator is a pure function returning either nil or an Errors value
// listing each violated field.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	ozzo "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/dtroode/identity-server/internal/model"
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phonePattern = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)
)

// Violation describes one invalid field.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors is a list of violations. It matches model.ErrValidationFailed with errors.Is.
type Errors []Violation

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, v := range e {
		parts = append(parts, v.Field+": "+v.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is makes errors.Is(err, model.ErrValidationFailed) hold.
func (e Errors) Is(target error) bool {
	return target == model.ErrValidationFailed
}

// Registration validates a sign-up request.
func Registration(r model.Registration) error {
	return convert(ozzo.ValidateStruct(&r,
		ozzo.Field(&r.Name, ozzo.Required.Error("must not be empty"), ozzo.Length(0, 100)),
		ozzo.Field(&r.Email, ozzo.Required.Error("must not be empty"), ozzo.Match(emailPattern).Error("invalid email format")),
		ozzo.Field(&r.PhoneNumber, ozzo.Required.Error("must not be empty"), ozzo.Match(phonePattern).Error("invalid phone number format")),
		ozzo.Field(&r.Password, ozzo.Required.Error("must not be empty"), ozzo.Length(8, 72)),
		ozzo.Field(&r.ConfirmPassword, ozzo.Required.Error("must not be empty"), ozzo.By(matches(r.Password))),
	))
}

// Login validates a login request. The identifier format is not checked so that
// a malformed identifier fails the same way as a wrong password.
func Login(identifier, secret string) error {
	return convert(ozzo.Errors{
		"identifier": ozzo.Validate(strings.TrimSpace(identifier), ozzo.Required.Error("must not be empty")),
		"secret":     ozzo.Validate(secret, ozzo.Required.Error("must not be empty")),
	}.Filter())
}

// RefreshToken validates the presence of a refresh token.
func RefreshToken(token string) error {
	return convert(ozzo.Errors{
		"refreshToken": ozzo.Validate(strings.TrimSpace(token), ozzo.Required.Error("must not be empty")),
	}.Filter())
}

func matches(password string) ozzo.RuleFunc {
	return func(value interface{}) error {
		if s, _ := value.(string); s != password {
			return errors.New("passwords do not match")
		}
		return nil
	}
}

func convert(err error) error {
	if err == nil {
		return nil
	}

	var fieldErrs ozzo.Errors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("failed to validate: %w", err)
	}

	out := make(Errors, 0, len(fieldErrs))
	for field, fieldErr := range fieldErrs {
		out = append(out, Violation{Field: field, Message: fieldErr.Error()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })

	return out
}
