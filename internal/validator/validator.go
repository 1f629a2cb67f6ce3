package validator

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/civica/membership-backend/internal/model"
)

var (
	// trans is the singleton English translator for validation errors.
	trans     ut.Translator
	setupOnce sync.Once
)

// customTags are the domain rules registered next to the built-in ones.
var customTags = []struct {
	tag     string
	fn      govalidator.Func
	message string
}{
	{"mandate_role", validMandateRole, "{0} must be a known role"},
	{"assignable_role", assignableRole, "{0} cannot be assigned through this form"},
	{"iso_date", isoDate, "{0} must be a date in YYYY-MM-DD format"},
}

// Setup registers the validator with English translations on Gin's binding engine.
// Repeated calls are no-ops.
func Setup() {
	setupOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*govalidator.Validate)
		if !ok {
			return
		}
		if err := Register(v); err != nil {
			panic(err)
		}
	})
}

// Register wires JSON field names, English messages and the custom tags into v.
func Register(v *govalidator.Validate) error {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ = uni.GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(v, trans); err != nil {
		return err
	}

	for _, ct := range customTags {
		if err := v.RegisterValidation(ct.tag, ct.fn); err != nil {
			return err
		}
		msg := ct.message
		tag := ct.tag
		err := v.RegisterTranslation(tag, trans,
			func(u ut.Translator) error { return u.Add(tag, msg, true) },
			func(u ut.Translator, fe govalidator.FieldError) string {
				t, _ := u.T(tag, fe.Field())
				return t
			},
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func roleOf(fl govalidator.FieldLevel) model.MandateRole {
	return model.MandateRole(fl.Field().String())
}

func validMandateRole(fl govalidator.FieldLevel) bool {
	return roleOf(fl).Valid()
}

func assignableRole(fl govalidator.FieldLevel) bool {
	return roleOf(fl).Assignable()
}

func isoDate(fl govalidator.FieldLevel) bool {
	_, err := model.ParseDate(fl.Field().String())
	return err == nil
}

// TranslateErrors takes a binding/validation error and returns a map of
// field name → human-readable error message. If the error is not a
// validation error, it returns a single-key map with "detail".
func TranslateErrors(err error) map[string]string {
	fields := make(map[string]string)

	var ve govalidator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			fields[fe.Field()] = fe.Translate(trans)
		}
		return fields
	}

	// Not a validation error (e.g., JSON syntax error).
	fields["detail"] = err.Error()
	return fields
}

// Bind binds and validates the request body into dst.
// Returns nil on success or a translated field error map on failure.
func Bind(c *gin.Context, dst interface{}) map[string]string {
	if err := c.ShouldBindJSON(dst); err != nil {
		return TranslateErrors(err)
	}
	return nil
}
