package forms

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is the shared rule engine; validator.Validate is safe for
// concurrent use and caches parsed tags.
var validate = validator.New()

// splitRequired pulls the required rule out of a chain so the
// orchestrator can give it stop-on-failure semantics, leaving the rest
// for the rule engine.
func splitRequired(rules string) (required bool, remainder string) {
	if rules == "" {
		return false, ""
	}

	var rest []string
	for _, rule := range strings.Split(rules, ",") {
		if strings.TrimSpace(rule) == "required" {
			required = true
			continue
		}
		rest = append(rest, rule)
	}
	return required, strings.Join(rest, ",")
}

// runRules evaluates the field's rule chain against its value and
// appends a message per failed rule. Empty optional values are skipped,
// mirroring the usual optional-field semantics. A non-validation error
// from the engine (malformed tag) is a programming error and is
// returned as fatal.
func runRules(field *Field) error {
	if field.spec.rules == "" || field.Value == "" {
		return nil
	}

	err := validate.Var(field.Value, field.spec.rules)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("forms: field %q rules %q: %w", field.Name, field.spec.rules, err)
	}
	for _, verr := range verrs {
		field.Errors = append(field.Errors, field.message(verr.Tag()))
	}
	return nil
}

// defaultMessage maps a rule tag to its user-facing error text.
func defaultMessage(rule string) string {
	switch rule {
	case "required":
		return "This field is required."
	case "email":
		return "Invalid email address."
	case "url":
		return "Invalid URL."
	case "uuid", "uuid4":
		return "Invalid UUID."
	case "min":
		return "Value is too short."
	case "max":
		return "Value is too long."
	case "len":
		return "Value has the wrong length."
	case "numeric":
		return "Value must be numeric."
	case "alphanum":
		return "Value must be alphanumeric."
	default:
		return fmt.Sprintf("Invalid value (%s).", rule)
	}
}
