// Package validation validates request structs using validator/v10 and converts
// failures into INVALID_REQUEST domain errors with per-field details.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	domainerrors "github.com/beatvault/beatvault-server/internal/errors"
)

// licenseIDPattern keeps caller-supplied license IDs safe to embed in file names.
var licenseIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]+$`)

// reservedLicenseIDs collide with static routes under /api/v1/licenses.
var reservedLicenseIDs = []string{"search"}

// Validator wraps go-playground/validator with domain error conversion.
type Validator struct {
	v *validator.Validate
}

// New creates a validator configured for our domain.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Use JSON tag names in error messages.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	// notblank rejects whitespace-only strings, which "required" lets through.
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(fmt.Sprintf("register notblank: %v", err))
	}

	if err := v.RegisterValidation("licenseid", func(fl validator.FieldLevel) bool {
		id := fl.Field().String()
		return licenseIDPattern.MatchString(id) && !slices.Contains(reservedLicenseIDs, id)
	}); err != nil {
		panic(fmt.Sprintf("register licenseid: %v", err))
	}

	// Whitespace is allowed; titles are collapsed before they reach a file name.
	if err := v.RegisterValidation("nocontrol", func(fl validator.FieldLevel) bool {
		return !strings.ContainsFunc(fl.Field().String(), func(r rune) bool {
			return unicode.IsControl(r) && !unicode.IsSpace(r)
		})
	}); err != nil {
		panic(fmt.Sprintf("register nocontrol: %v", err))
	}

	return &Validator{v: v}
}

// Validate validates a struct and returns an INVALID_REQUEST error listing every bad field.
func (v *Validator) Validate(s any) error {
	if err := v.v.Struct(s); err != nil {
		return v.formatError(err)
	}
	return nil
}

func (v *Validator) formatError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return domainerrors.Wrap(err, domainerrors.CodeInvalidRequest, "invalid request")
	}

	fieldErrors := make(map[string]string, len(validationErrs))
	fields := make([]string, 0, len(validationErrs))
	for _, e := range validationErrs {
		fieldErrors[e.Field()] = friendlyMessage(e)
		fields = append(fields, e.Field())
	}
	slices.Sort(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+" "+fieldErrors[f])
	}

	return domainerrors.InvalidRequestWithDetails("validation failed: "+strings.Join(parts, "; "), fieldErrors)
}

func friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required", "notblank":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "max":
		return fmt.Sprintf("must not exceed %s characters", e.Param())
	case "min":
		return fmt.Sprintf("must be at least %s characters", e.Param())
	case "licenseid":
		return "may only contain letters, digits, '.', '_', ':' and '-' and must not be a reserved word"
	case "nocontrol":
		return "must not contain control characters"
	case "oneof":
		return "must be one of: " + e.Param()
	default:
		return "is invalid"
	}
}
