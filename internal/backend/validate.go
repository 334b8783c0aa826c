package backend

import (
	"errors"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/smartgistics/fleetmate-sub000/internal/model"
)

type validatorSvc struct {
	v     *validator.Validate
	trans ut.Translator
}

var (
	vOnce sync.Once
	vSvc  *validatorSvc
)

// validation returns the shared validator. Messages use json tag names.
func validation() *validatorSvc {
	vOnce.Do(func() {
		enLoc := en.New()
		uni := ut.New(enLoc, enLoc)
		trans, _ := uni.GetTranslator("en")

		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("json")
			if tag == "-" || tag == "" {
				return fld.Name
			}
			if idx := strings.Index(tag, ","); idx >= 0 {
				tag = tag[:idx]
			}
			return tag
		})
		_ = en_translations.RegisterDefaultTranslations(v, trans)

		vSvc = &validatorSvc{v: v, trans: trans}
	})
	return vSvc
}

// Validate checks a create payload for entity e. Records are checked
// against the entity's required and known fields; typed records are
// checked against their validate tags.
func Validate(e model.Entity, payload any) error {
	if rec, ok := payload.(model.Record); ok {
		return validateRecord(e, rec)
	}
	if rv := reflect.ValueOf(payload); !rv.IsValid() || (rv.Kind() == reflect.Pointer && rv.IsNil()) {
		return &ValidationError{Message: "empty " + e.Name + " payload"}
	}

	svc := validation()
	err := svc.v.Struct(payload)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{Message: "invalid " + e.Name + " payload: " + err.Error()}
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Translate(svc.trans)
	}
	return &ValidationError{Message: "invalid " + e.Name + " payload", Fields: fields}
}

func validateRecord(e model.Entity, rec model.Record) error {
	fields := map[string]string{}
	for name := range rec {
		if !e.HasField(name) {
			fields[name] = name + " is not a field of " + e.Name
		}
	}

	required := e.RequiredFields()
	rules := make(map[string]any, len(required))
	for _, name := range required {
		rules[name] = "required"
	}
	data := make(map[string]any, len(required))
	for _, name := range required {
		if v, ok := rec[name]; ok && v != nil {
			data[name] = v
		} else {
			data[name] = ""
		}
	}
	for name := range validation().v.ValidateMap(data, rules) {
		fields[name] = name + " is a required field"
	}

	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Message: "invalid " + e.Name + " payload", Fields: fields}
}

// FieldNames returns the offending field names of err sorted, or nil when
// err is not a *ValidationError.
func FieldNames(err error) []string {
	var verr *ValidationError
	if !errors.As(err, &verr) {
		return nil
	}
	names := make([]string, 0, len(verr.Fields))
	for name := range verr.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
