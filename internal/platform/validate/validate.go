// Package validate wraps go-playground/validator with english messages and project errors
package validate

import (
	"errors"
	"reflect"
	"strings"
	"sync"
	"time"

	perr "tariffsync/internal/platform/errors"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// Svc holds the validator and its translator
type Svc struct {
	Validator  *validator.Validate
	Translator ut.Translator
}

var (
	once sync.Once
	svc  *Svc
)

// DateLayouts are the accepted spellings of a calendar date on the wire
var DateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05"}

// Get returns the process validator, building it on first use
func Get() *Svc {
	once.Do(func() {
		enLoc := en.New()
		uni := ut.New(enLoc, enLoc)
		trans, _ := uni.GetTranslator("en")

		v := validator.New(validator.WithRequiredStructEnabled())

		// messages use json (or yaml) names, matching what operators see in payloads and files
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, key := range []string{"json", "yaml", "env"} {
				tag := fld.Tag.Get(key)
				if tag == "" || tag == "-" {
					continue
				}
				if idx := strings.Index(tag, ","); idx >= 0 {
					tag = tag[:idx]
				}
				return tag
			}
			return fld.Name
		})

		_ = en_translations.RegisterDefaultTranslations(v, trans)

		_ = v.RegisterValidation("tariff_date", func(fl validator.FieldLevel) bool {
			_, err := ParseDate(fl.Field().String())
			return err == nil
		})
		translate(v, trans, "tariff_date", "{0} must be a date like 2024-06-01")
		translate(v, trans, "min", "{0} must be at least {1}")
		translate(v, trans, "max", "{0} must be at most {1}")

		svc = &Svc{Validator: v, Translator: trans}
	})
	return svc
}

// ParseDate accepts any of DateLayouts and returns the calendar date at UTC midnight
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range DateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, perr.Validationf("unrecognised date %q", s)
}

// Struct validates v and maps the first failure to a validation error carrying the field
func Struct(v any) error {
	err := Get().Validator.Struct(v)
	if err == nil {
		return nil
	}
	var inv *validator.InvalidValidationError
	if errors.As(err, &inv) {
		return perr.Wrap(err, perr.ErrorCodeUnknown, "validator misuse")
	}
	field, msg := FieldAndMessage(err)
	return perr.WithField(perr.Newf(perr.ErrorCodeValidation, "%s", msg), field)
}

// FieldAndMessage returns the first failing field namespace and its translated message
func FieldAndMessage(err error) (field, message string) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fe.Namespace(), fe.Translate(Get().Translator)
	}
	if err == nil {
		return "", ""
	}
	return "", err.Error()
}

func translate(v *validator.Validate, trans ut.Translator, tag, text string) {
	_ = v.RegisterTranslation(tag, trans,
		func(t ut.Translator) error { return t.Add(tag, text, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			msg, _ := t.T(tag, fe.Field(), fe.Param())
			return msg
		},
	)
}
