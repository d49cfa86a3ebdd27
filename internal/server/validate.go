package server

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sells-group/lead-intake/internal/model"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("lead_status", func(fl validator.FieldLevel) bool {
		return model.LeadStatus(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("pipeline_stage", func(fl validator.FieldLevel) bool {
		return model.ValidPipelineStage(fl.Field().String())
	})
	return v
}

// invalidFields lists the json names of the fields that failed validation.
func invalidFields(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	names := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		names = append(names, fe.Field())
	}
	return strings.Join(names, ", ")
}
