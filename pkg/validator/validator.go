package validator

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"storefront/internal/models"
)

// ValidationError carries one message per offending field, keyed by the
// field's JSON name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, e.Fields[name])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

type CustomValidator struct {
	validator *validator.Validate
}

func NewValidator() *CustomValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	return &CustomValidator{validator: v}
}

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return cv.wrap(err)
	}
	return nil
}

// ValidateInput checks a new product before it leaves the client or enters the store.
func (cv *CustomValidator) ValidateInput(in models.ProductInput) error {
	return cv.Validate(in)
}

// ValidatePatch checks only the fields a patch sets. Quantity may drop to zero
// on update, unlike on create.
func (cv *CustomValidator) ValidatePatch(p models.ProductPatch) error {
	fields := map[string]string{}
	check := func(name string, value interface{}, tag string) {
		if err := cv.validator.Var(value, tag); err != nil {
			if verrs, ok := err.(validator.ValidationErrors); ok {
				for _, e := range verrs {
					fields[name] = message(name, e.Tag(), e.Param())
				}
				return
			}
			fields[name] = name + " is invalid"
		}
	}

	if p.Name != nil {
		check("nombre", *p.Name, "required,max=200")
	}
	if p.PublicPrice != nil {
		check("precioPublico", *p.PublicPrice, "gt=0")
	}
	if p.PurchasePrice != nil {
		check("precioCompra", *p.PurchasePrice, "gt=0")
	}
	if p.Description != nil {
		check("descripcion", *p.Description, "required,max=2000")
	}
	if p.Barcode != nil {
		check("codigoBarra", *p.Barcode, "required,max=64")
	}
	if p.Quantity != nil {
		check("cantidad", *p.Quantity, "gte=0")
	}
	if p.ImageURL != nil && *p.ImageURL != "" {
		check("imagen", *p.ImageURL, "url")
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func (cv *CustomValidator) wrap(err error) error {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	fields := make(map[string]string, len(validationErrors))
	for _, e := range validationErrors {
		fields[e.Field()] = message(e.Field(), e.Tag(), e.Param())
	}
	return &ValidationError{Fields: fields}
}

func message(field, tag, param string) string {
	switch tag {
	case "required":
		return field + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, param)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, param)
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, param)
	case "url":
		return field + " must be a valid URL"
	default:
		return field + " is invalid"
	}
}
