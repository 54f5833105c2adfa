package httpapi

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/oggyb/pulse/internal/service/dates"
	"github.com/oggyb/pulse/internal/service/wishes"
)

var registerOnce sync.Once

// RegisterValidators adds the domain tags used in binding structs to gin's validator.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("calendar_date", func(fl validator.FieldLevel) bool {
			_, err := time.Parse(time.DateOnly, fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("date_category", func(fl validator.FieldLevel) bool {
			return dates.ValidCategory(fl.Field().String())
		})
		_ = v.RegisterValidation("wish_category", func(fl validator.FieldLevel) bool {
			return wishes.ValidCategory(fl.Field().String())
		})
	})
}
