package validator

import (
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Init registers custom validations on gin's binding engine. Call once at
// startup before routes are served.
func Init() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterValidation("timeofday", timeOfDay)
}

// timeOfDay accepts "HH:MM" in 24-hour format.
func timeOfDay(fl validator.FieldLevel) bool {
	_, err := time.Parse("15:04", fl.Field().String())
	return err == nil
}
