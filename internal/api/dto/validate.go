package dto

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/civicdesk/grievance-service/internal/domain"
	apperrors "github.com/civicdesk/grievance-service/pkg/util/errorutil"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("complaint_status", func(fl validator.FieldLevel) bool {
		return domain.ComplaintStatus(fl.Field().String()).Valid()
	})
	_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

// Validate checks struct tags on a request and reports failures as a
// validation error keyed by json field name.
func Validate(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	details := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		details[jsonName(fe.Field())] = fe.Tag()
	}
	return apperrors.NewValidationError("request validation failed", details)
}

func jsonName(field string) string {
	var b strings.Builder
	for i, r := range field {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
