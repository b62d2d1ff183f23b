package domain

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	chatRecipientPattern = regexp.MustCompile(`^(\+[1-9]\d{1,14}|@[A-Za-z][A-Za-z0-9_]{4,31})$`)
	clockPattern         = regexp.MustCompile(`^([01]?\d|2[0-3]):[0-5]\d$`)
)

// DefaultAPIMethods is the set of HTTP methods an api action may use unless
// an ActionValidator is built with WithAPIMethods.
var DefaultAPIMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH"}

func newStructValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("chat_recipient", func(fl validator.FieldLevel) bool {
		return chatRecipientPattern.MatchString(fl.Field().String())
	})
	return v
}

// fieldError converts the first validator failure into a ValidationError
// whose Field is prefixed with prefix.
func fieldError(kind error, err error, prefix string) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return invalid(kind, strings.TrimSuffix(prefix, "."), err.Error())
	}
	fe := verrs[0]
	reason := fe.Tag()
	if fe.Param() != "" {
		reason += "=" + fe.Param()
	}
	return invalid(kind, prefix+fe.Field(), "failed "+reason)
}
