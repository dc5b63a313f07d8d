// Package validation plugs go-playground/validator into echo and turns
// failures into per-field client messages.
//
// Request structs declare rules in the `validate` tag and the client
// message in the `msg` tag.  A msg tag holds a default message and optional
// per-rule overrides separated by ';':
//
//	Username string `json:"username" validate:"required,min=4,max=30,notemail" msg:"Username is required;notemail=Username cannot be an email."`
package validation

import (
	"errors"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldErrors maps a JSON field name to its client message.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Validator implements echo.Validator.
type Validator struct {
	v *validator.Validate
}

// New returns a Validator with the custom rules registered and field names
// reported by their json tag.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonName)
	_ = v.RegisterValidation("notemail", notEmail(v))
	return &Validator{v: v}
}

// Validate checks i and returns FieldErrors on failure.  Errors other than
// rule failures (for example a non-struct argument) are returned as is.
func (cv *Validator) Validate(i interface{}) error {
	err := cv.v.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := messages(i)
	out := make(FieldErrors, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		if _, seen := out[field]; seen {
			continue
		}
		out[field] = msgs.lookup(field, fe.Tag())
	}
	return out
}

func jsonName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

// notEmail rejects values that are themselves valid email addresses.
func notEmail(v *validator.Validate) validator.Func {
	return func(fl validator.FieldLevel) bool {
		s := strings.TrimSpace(fl.Field().String())
		if s == "" {
			return true
		}
		return v.Var(s, "email") != nil
	}
}

type fieldMessages map[string]map[string]string

// messages parses the msg tags of the struct behind i.
func messages(i interface{}) fieldMessages {
	t := reflect.TypeOf(i)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	out := fieldMessages{}
	if t == nil || t.Kind() != reflect.Struct {
		return out
	}
	for n := 0; n < t.NumField(); n++ {
		f := t.Field(n)
		tag, ok := f.Tag.Lookup("msg")
		if !ok {
			continue
		}
		byRule := map[string]string{}
		for _, part := range strings.Split(tag, ";") {
			if rule, msg, found := strings.Cut(part, "="); found && !strings.Contains(rule, " ") {
				byRule[rule] = msg
				continue
			}
			byRule[""] = part
		}
		out[jsonName(f)] = byRule
	}
	return out
}

func (m fieldMessages) lookup(field, rule string) string {
	if byRule, ok := m[field]; ok {
		if msg, ok := byRule[rule]; ok {
			return msg
		}
		if msg, ok := byRule[""]; ok {
			return msg
		}
	}
	return field + " is invalid"
}
