package services

import (
	"errors"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/gophblog/internal/common"
	"github.com/go-playground/validator/v10"
)

const maxTitleLen = 255

var usernameRe = regexp.MustCompile(`^[A-Za-z0-9_-]{3,32}$`)

// newValidator reports fields by their json names and knows the "username" tag.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernameRe.MatchString(fl.Field().String())
	})
	return v
}

// validatePost checks the provided (non-nil) fields. Values must already be trimmed.
func (s *BlogService) validatePost(title, content *string) error {
	if title != nil {
		if err := s.validate.Var(*title, "required,max="+strconv.Itoa(maxTitleLen)); err != nil {
			return fieldError("title", err)
		}
	}
	if content != nil {
		if err := s.validate.Var(*content, "required"); err != nil {
			return fieldError("content", err)
		}
	}
	return nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fieldError(verrs[0].Field(), err)
	}
	return common.Wrap(common.KindValidation, err, "invalid input")
}

func fieldError(field string, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return common.Wrap(common.KindValidation, err, field+" is invalid")
	}
	return common.Wrap(common.KindValidation, err, field+" "+describe(verrs[0]))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must not be empty"
	case "username":
		return "must be 3-32 characters of letters, digits, '_' or '-'"
	case "email":
		return "must be a valid email"
	case "min":
		return "must be at least " + fe.Param() + " characters long"
	case "max":
		return "must be at most " + fe.Param() + " characters long"
	default:
		return "is invalid"
	}
}
