package lead

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/admissions/core"
)

var (
	statusTag  = "leadstatus"
	statusText = "invalid lead status"

	sourceTag  = "leadsource"
	sourceText = "invalid lead source"
)

// RegisterValidators registers the lead validation tags and their translations.
func RegisterValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(statusTag, statusValidation)
	core.RegisterCustomTranslation(validate, translator, statusTag, statusText)

	_ = validate.RegisterValidation(sourceTag, sourceValidation)
	core.RegisterCustomTranslation(validate, translator, sourceTag, sourceText)
}

func statusValidation(fl validator.FieldLevel) bool {
	return Status(fl.Field().String()).Valid()
}

func sourceValidation(fl validator.FieldLevel) bool {
	return Source(fl.Field().String()).Valid()
}
