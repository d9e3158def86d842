package vm

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrBadPayload is returned when a payload does not decode or validate.
var ErrBadPayload = errors.New("bad payload")

var validate = validator.New()

// Decode unmarshals payload into v and checks its validate tags.
func Decode(payload json.RawMessage, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %s", ErrBadPayload, FormatValidationError(err))
	}
	return nil
}

// FormatValidationError renders validator errors as "field: reason" pairs
// sorted, without exposing Go struct names.
func FormatValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid payload"
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		field := strings.ToLower(e.Field())
		switch e.Tag() {
		case "required":
			msgs = append(msgs, field+": required")
		case "min", "gte":
			msgs = append(msgs, fmt.Sprintf("%s: must be at least %s", field, e.Param()))
		case "max", "lte":
			msgs = append(msgs, fmt.Sprintf("%s: must be at most %s", field, e.Param()))
		case "gt":
			msgs = append(msgs, fmt.Sprintf("%s: must be greater than %s", field, e.Param()))
		case "len":
			msgs = append(msgs, fmt.Sprintf("%s: must have length %s", field, e.Param()))
		case "hexadecimal", "alphanum":
			msgs = append(msgs, fmt.Sprintf("%s: must be %s", field, e.Tag()))
		default:
			msgs = append(msgs, field+": invalid value")
		}
	}
	sort.Strings(msgs)
	return strings.Join(msgs, "; ")
}
