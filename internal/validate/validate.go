// Package validate implements field-level validation for transactions,
// checkpoints, and contract payloads crossing the ingress boundary
// (SPEC_FULL.md §2 EXPANSION, Component 9 — Ambient stack). The teacher's
// go.mod already carries go-playground/validator/v10 plus its
// locales/universal-translator companions; this package is where they are
// actually exercised: a validator.Validate instance with English
// translations registered, wrapped so struct-tag violations come back as
// a flat list of human-readable field errors instead of the library's own
// FieldError type.
package validate

import (
	"fmt"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
)

// FieldError is one struct-tag violation, translated to English.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// FieldErrors is the translated violation list Check returns on failure.
// It implements error so callers that only want a single message can
// still use it as one.
type FieldErrors []FieldError

func (fe FieldErrors) Error() string {
	msgs := make([]string, len(fe))
	for i, f := range fe {
		msgs[i] = fmt.Sprintf("%s: %s", f.Field, f.Error)
	}
	return strings.Join(msgs, "; ")
}

// Validator wraps go-playground/validator/v10 with an English translator
// and this chain's custom field-level checks.
type Validator struct {
	v     *validator.Validate
	trans ut.Translator
}

// New constructs a Validator, registering the default English translations
// and the coordinate/address checks this chain's wire types need.
func New() (*Validator, error) {
	locale := en.New()
	uni := ut.New(locale, locale)
	trans, _ := uni.GetTranslator("en")

	v := validator.New(validator.WithRequiredStructEnabled())
	if err := entranslations.RegisterDefaultTranslations(v, trans); err != nil {
		return nil, fmt.Errorf("validate: register translations: %w", err)
	}

	val := &Validator{v: v, trans: trans}
	if err := val.registerCustom(); err != nil {
		return nil, err
	}
	return val, nil
}

// registerCustom wires the domain-specific checks spec §3's coordinate and
// addressing fields need beyond what "min"/"max" struct tags express.
func (val *Validator) registerCustom() error {
	if err := val.v.RegisterValidation("latitude", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return f >= -90 && f <= 90
	}); err != nil {
		return fmt.Errorf("validate: register latitude: %w", err)
	}
	if err := val.v.RegisterValidation("longitude", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return f >= -180 && f <= 180
	}); err != nil {
		return fmt.Errorf("validate: register longitude: %w", err)
	}

	if err := val.v.RegisterTranslation("latitude", val.trans,
		func(ut ut.Translator) error {
			return ut.Add("latitude", "{0} must be a valid latitude between -90 and 90", true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			t, _ := ut.T("latitude", fe.Field())
			return t
		},
	); err != nil {
		return fmt.Errorf("validate: translate latitude: %w", err)
	}
	if err := val.v.RegisterTranslation("longitude", val.trans,
		func(ut ut.Translator) error {
			return ut.Add("longitude", "{0} must be a valid longitude between -180 and 180", true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			t, _ := ut.T("longitude", fe.Field())
			return t
		},
	); err != nil {
		return fmt.Errorf("validate: translate longitude: %w", err)
	}
	return nil
}

// Check validates s against its struct tags, returning nil if s is valid,
// a FieldErrors if it violates its tags, or the bare error for anything
// else (e.g. a non-struct argument).
func (val *Validator) Check(s any) error {
	if err := val.v.Struct(s); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}

		fields := make(FieldErrors, len(verrs))
		for i, fe := range verrs {
			fields[i] = FieldError{
				Field: fe.Field(),
				Error: fe.Translate(val.trans),
			}
		}
		return fields
	}
	return nil
}
