package http

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate = newValidator()

// newValidator reports fields by their JSON names so errors match the request body.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})
	return v
}

// ReadAndValidateRequest binds the body into req, applies `default` tags and
// validates it. A nil result means req is ready to use.
func ReadAndValidateRequest(c echo.Context, req interface{}) []ValidationError {
	if err := c.Bind(req); err != nil {
		return toValidationErrors(err)
	}
	if err := defaults.Set(req); err != nil {
		return toValidationErrors(err)
	}
	if err := validate.StructCtx(c.Request().Context(), req); err != nil {
		return toValidationErrors(err)
	}
	return nil
}

func toValidationErrors(err error) []ValidationError {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		out := make([]ValidationError, len(fieldErrs))
		for i, fe := range fieldErrs {
			out[i] = fieldError(fe)
		}
		return out
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		return []ValidationError{{Code: "ERR_BIND", Message: fmt.Sprint(he.Message)}}
	}
	return []ValidationError{{Code: "ERR_UNKNOWN", Message: err.Error()}}
}

// bound describes the comparison tags: phrase for the message, param key for clients.
var bound = map[string]struct{ phrase, param string }{
	"min": {"at least", "min"},
	"gte": {"greater than or equal to", "min"},
	"max": {"at most", "max"},
	"lte": {"less than or equal to", "max"},
	"gt":  {"greater than", "value"},
	"lt":  {"less than", "value"},
}

func fieldError(fe validator.FieldError) ValidationError {
	ve := ValidationError{
		Code:   "ERR_" + strings.ToUpper(fe.Tag()),
		Field:  fe.Field(),
		Params: map[string]interface{}{},
	}

	switch tag := fe.Tag(); {
	case tag == "required":
		ve.Message = ve.Field + " is required"
	case tag == "oneof":
		opts := strings.Fields(fe.Param())
		ve.Message = fmt.Sprintf("%s must be one of: %s", ve.Field, strings.Join(opts, ", "))
		ve.Params["options"] = opts
	case bound[tag].phrase != "":
		b := bound[tag]
		ve.Params[b.param] = fe.Param()
		unit := ""
		if (tag == "min" || tag == "max") && fe.Kind() == reflect.String {
			unit = " characters"
		}
		ve.Message = fmt.Sprintf("%s must be %s %s%s", ve.Field, b.phrase, fe.Param(), unit)
	default:
		ve.Message = fmt.Sprintf("%s failed validation: %s", ve.Field, tag)
	}
	return ve
}
