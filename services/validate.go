package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/lborres/pasok/core"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// bcrypt only reads the first 72 bytes; the struct tag counts runes.
const maxPasswordBytes = 72

const maxHintNameRunes = 100

// ValidateSignUp normalizes and validates a sign-up request.
func ValidateSignUp(req core.SignUpRequest) (core.SignUpRequest, error) {
	req.Email = core.NormalizeEmail(req.Email)
	req.DisplayName = trimOptional(req.DisplayName)
	if err := validate.Struct(req); err != nil {
		return req, translateValidation(err)
	}
	if len(req.Password) > maxPasswordBytes {
		return req, core.ErrPasswordTooLong
	}
	return req, nil
}

// ValidateSignIn normalizes and validates a sign-in request.
func ValidateSignIn(req core.SignInRequest) (core.SignInRequest, error) {
	req.Email = core.NormalizeEmail(req.Email)
	if err := validate.Struct(req); err != nil {
		return req, translateValidation(err)
	}
	if len(req.Password) > maxPasswordBytes {
		return req, core.ErrPasswordTooLong
	}
	return req, nil
}

// ValidateFederated normalizes and validates a federated assertion.
// Provider names are case-insensitive; subject ids are kept verbatim.
// Profile hints are best-effort and never reject the assertion.
func ValidateFederated(req core.FederatedSignInRequest) (core.FederatedSignInRequest, error) {
	req.Email = core.NormalizeEmail(req.Email)
	req.Provider = strings.ToLower(strings.TrimSpace(req.Provider))
	req.Profile = sanitizeHints(req.Profile)
	if req.Provider == core.ProviderCredential {
		return req, fmt.Errorf("%w: provider %q is reserved", core.ErrInvalidRequest, req.Provider)
	}
	if err := validate.Struct(req); err != nil {
		return req, translateValidation(err)
	}
	return req, nil
}

// ValidatePatch validates a profile patch. Empty strings clear a field.
func ValidatePatch(patch core.ProfilePatch) (core.ProfilePatch, error) {
	check := core.ProfilePatch{DisplayName: nonEmpty(patch.DisplayName), AvatarURL: nonEmpty(patch.AvatarURL)}
	if err := validate.Struct(check); err != nil {
		return patch, translateValidation(err)
	}
	return patch, nil
}

// sanitizeHints trims hints, truncates an overlong name and drops an
// avatar that is not a usable URL.
func sanitizeHints(h core.ProfileHints) core.ProfileHints {
	h.DisplayName = trimOptional(h.DisplayName)
	h.AvatarURL = trimOptional(h.AvatarURL)
	if h.DisplayName != nil {
		if r := []rune(*h.DisplayName); len(r) > maxHintNameRunes {
			name := strings.TrimSpace(string(r[:maxHintNameRunes]))
			h.DisplayName = &name
		}
	}
	if h.AvatarURL != nil && validate.Var(*h.AvatarURL, "url,max=2048") != nil {
		h.AvatarURL = nil
	}
	return h
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// translateValidation maps the first failing field to its input sentinel.
func translateValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", core.ErrInvalidRequest, err)
	}

	fe := verrs[0]
	switch fe.Field() {
	case "Email":
		if fe.Tag() == "required" {
			return core.ErrEmailRequired
		}
		return core.ErrInvalidEmail
	case "Password":
		switch fe.Tag() {
		case "required":
			return core.ErrPasswordRequired
		case "min":
			return core.ErrPasswordTooShort
		case "max":
			return core.ErrPasswordTooLong
		}
	case "Provider":
		if fe.Tag() == "required" {
			return core.ErrProviderRequired
		}
	case "ProviderSubjectID":
		if fe.Tag() == "required" {
			return core.ErrSubjectRequired
		}
	}
	return fmt.Errorf("%w: %s failed on %s", core.ErrInvalidRequest, fe.Namespace(), fe.Tag())
}
