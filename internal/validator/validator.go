// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"derroche/internal/models"
)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("record_status", validateRecordStatus)
	}
}

func validateRecordStatus(fl validator.FieldLevel) bool {
	return models.RecordStatus(fl.Field().String()).Valid()
}
