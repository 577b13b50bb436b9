package editor

import (
	"fmt"
	"math"
	"reflect"
	"strings"

	"pagebuilder/internal/pagedata"

	"github.com/go-playground/validator"
)

// ValidationError rejects an intent before anything is changed.
type ValidationError struct {
	Intent IntentType            `json:"intent"`
	Fields []pagedata.FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Error()
	}
	return fmt.Sprintf("invalid %s: %s", e.Intent, strings.Join(msgs, "; "))
}

func invalid(t IntentType, fields ...pagedata.FieldError) *ValidationError {
	return &ValidationError{Intent: t, Fields: fields}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("finite", finiteValidator); err != nil {
		panic(err)
	}
	return v
}

func finiteValidator(fl validator.FieldLevel) bool {
	f := fl.Field()
	switch f.Kind() {
	case reflect.Float32, reflect.Float64:
		return !math.IsNaN(f.Float()) && !math.IsInf(f.Float(), 0)
	}
	return true
}

// checkPayload runs the struct tags of p and converts failures to field
// errors.
func checkPayload(t IntentType, p any) error {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil
	}
	fields := make([]pagedata.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, pagedata.FieldError{Field: fe.Field(), Msg: tagMessage(fe)})
	}
	return invalid(t, fields...)
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "min":
		return "must have at least " + fe.Param() + " item(s)"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "oneof":
		return "must be one of " + fe.Param()
	case "finite":
		return "must be a finite number"
	}
	return "failed " + fe.Tag()
}

// checkElement validates an element supplied by the client, children
// included.
func checkElement(t IntentType, el *pagedata.Element) error {
	var fields []pagedata.FieldError
	el.Walk(func(e *pagedata.Element) {
		prefix := "element"
		if e.ID != "" {
			prefix = "element(" + e.ID + ")"
		}
		if !e.Type.Valid() {
			fields = append(fields, pagedata.FieldError{Field: prefix + ".type", Msg: fmt.Sprintf("unknown element type %q", e.Type)})
		}
		for bp, s := range e.Size {
			if !bp.Valid() {
				fields = append(fields, pagedata.FieldError{Field: prefix + ".size", Msg: fmt.Sprintf("unknown breakpoint %q", bp)})
				continue
			}
			if badLength(s.Width) || badLength(s.Height) {
				fields = append(fields, pagedata.FieldError{Field: fmt.Sprintf("%s.size.%s", prefix, bp), Msg: "must be finite and not negative"})
			}
		}
		for bp, p := range e.Position {
			if !bp.Valid() {
				fields = append(fields, pagedata.FieldError{Field: prefix + ".position", Msg: fmt.Sprintf("unknown breakpoint %q", bp)})
				continue
			}
			if badNumber(p.X) || badNumber(p.Y) {
				fields = append(fields, pagedata.FieldError{Field: fmt.Sprintf("%s.position.%s", prefix, bp), Msg: "must be a finite number"})
			}
		}
		for _, fe := range pagedata.ValidateComponentData(e.Type, e.ComponentData) {
			fe.Field = prefix + "." + fe.Field
			fields = append(fields, fe)
		}
	})
	if len(fields) > 0 {
		return invalid(t, fields...)
	}
	return nil
}

func badNumber(f float64) bool { return math.IsNaN(f) || math.IsInf(f, 0) }

func badLength(f float64) bool { return badNumber(f) || f < 0 }
