package handler

import (
	"errors"
	"net/http"
	"reflect"

	"github.com/S1njack/price-tracker-demo/internal/apierror"
	"github.com/S1njack/price-tracker-demo/internal/search"
	"github.com/S1njack/price-tracker-demo/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// min=0, gt=0, required work without panicking ("Bad field type decimal.Decimal").
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails —
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Invalid JSON: "+err.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		fields := make(map[string]string)
		for _, fe := range err.(validator.ValidationErrors) {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// writeServiceError maps domain errors onto HTTP status codes.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, apierror.New("Not found"))
	case errors.Is(err, search.ErrInvalidQuery):
		c.JSON(http.StatusBadRequest, apierror.New("Invalid search query"))
	case errors.Is(err, service.ErrInvalidCategory):
		c.JSON(http.StatusBadRequest, apierror.New("Invalid category"))
	case errors.Is(err, service.ErrTooManyProducts):
		c.JSON(http.StatusBadRequest, apierror.New("Tracked product limit reached"))
	case errors.Is(err, search.ErrAggregatorUnavailable):
		c.JSON(http.StatusServiceUnavailable, apierror.New("Price aggregator unavailable"))
	default:
		c.JSON(http.StatusInternalServerError, apierror.New("Internal server error"))
	}
}
