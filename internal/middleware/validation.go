package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	apierrors "registrydash/internal/errors"
)

// Query parameter names
const (
	ParamLabels = "labels"
	ParamFormat = "format"
	ParamScope  = "scope"
)

// Export scopes
const (
	ScopeFiltered = "filtered"
	ScopeFull     = "full"
)

// ViewQuery is the decoded request for one dashboard view.
type ViewQuery struct {
	View   string   `json:"view" validate:"required,oneof=overview creation modification services executive"`
	Labels []string `json:"labels" validate:"max=100,dive,max=2000,label"`
	// ExplicitLabels is set when the labels parameter was present at all,
	// even with an empty value.
	ExplicitLabels bool `json:"-"`
}

// ChartQuery addresses a single chart of a view.
type ChartQuery struct {
	ViewQuery
	Chart string `json:"chart" validate:"required,chart_id"`
}

// ExportQuery selects the table and the file format of an export.
type ExportQuery struct {
	Format         string   `json:"format" validate:"required,oneof=csv xlsx"`
	Scope          string   `json:"scope" validate:"required,oneof=filtered full"`
	Labels         []string `json:"labels" validate:"max=100,dive,max=2000,label"`
	ExplicitLabels bool     `json:"-"`
}

// OperationsQuery selects which table the operations dump returns.
type OperationsQuery struct {
	Scope          string   `json:"scope" validate:"required,oneof=filtered full"`
	Labels         []string `json:"labels" validate:"max=100,dive,max=2000,label"`
	ExplicitLabels bool     `json:"-"`
}

// DecodeViewQuery reads the view name and the label selection.
func DecodeViewQuery(r *http.Request, view string) ViewQuery {
	labels, explicit := queryLabels(r)
	return ViewQuery{View: view, Labels: labels, ExplicitLabels: explicit}
}

// DecodeExportQuery reads an export request; format defaults to csv and
// scope to filtered.
func DecodeExportQuery(r *http.Request) ExportQuery {
	q := r.URL.Query()
	labels, explicit := queryLabels(r)
	return ExportQuery{
		Format:         defaultString(strings.ToLower(q.Get(ParamFormat)), "csv"),
		Scope:          defaultString(strings.ToLower(q.Get(ParamScope)), ScopeFiltered),
		Labels:         labels,
		ExplicitLabels: explicit,
	}
}

// DecodeOperationsQuery reads the operations dump request; scope defaults
// to filtered.
func DecodeOperationsQuery(r *http.Request) OperationsQuery {
	labels, explicit := queryLabels(r)
	return OperationsQuery{
		Scope:          defaultString(strings.ToLower(r.URL.Query().Get(ParamScope)), ScopeFiltered),
		Labels:         labels,
		ExplicitLabels: explicit,
	}
}

// queryLabels returns the raw labels values. Empty values are dropped but
// still mark the selection explicit.
func queryLabels(r *http.Request) ([]string, bool) {
	values, explicit := r.URL.Query()[ParamLabels]
	labels := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			labels = append(labels, v)
		}
	}
	return labels, explicit
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// ValidationMiddleware validates decoded request structs
type ValidationMiddleware struct {
	validator    *validator.Validate
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewValidationMiddleware creates a new validation middleware
func NewValidationMiddleware(logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ValidationMiddleware {
	if logger == nil {
		logger = slog.Default()
	}

	v := validator.New()
	v.RegisterValidation("label", isValidLabel)
	v.RegisterValidation("chart_id", isValidChartID)

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &ValidationMiddleware{
		validator:    v,
		logger:       logger.With(slog.String("component", "validation_middleware")),
		errorHandler: errorHandler,
	}
}

// ValidateStruct validates a struct and returns validation errors
func (m *ValidationMiddleware) ValidateStruct(v interface{}) error {
	err := m.validator.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apierrors.NewValidationError(err.Error())
	}

	validationErrors := make([]apierrors.ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		validationErrors = append(validationErrors, apierrors.ValidationError{
			Field:   fe.Field(),
			Message: m.formatValidationError(fe),
		})
	}
	return apierrors.NewValidationErrors(validationErrors)
}

// Validate validates v and writes a 400 problem on failure. It reports
// whether the request may proceed.
func (m *ValidationMiddleware) Validate(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := m.ValidateStruct(v); err != nil {
		m.logger.WarnContext(r.Context(), "request validation failed",
			slog.String("path", r.URL.Path),
			slog.String("request_id", GetReqID(r.Context())),
			slog.String("error", err.Error()),
		)
		m.errorHandler.HandleError(w, r, err)
		return false
	}
	return true
}

// formatValidationError formats validation error messages
func (m *ValidationMiddleware) formatValidationError(err validator.FieldError) string {
	field := err.Field()
	param := err.Param()

	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		if err.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must have at most %s entries", field, param)
		}
		return fmt.Sprintf("%s must be at most %s characters", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	case "label":
		return fmt.Sprintf("%s must not contain control characters", field)
	case "chart_id":
		return fmt.Sprintf("%s must contain only lowercase letters, digits and underscores", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, err.Tag())
	}
}

// isValidLabel rejects control characters; the label text itself is free
// form Arabic.
func isValidLabel(fl validator.FieldLevel) bool {
	for _, ch := range fl.Field().String() {
		if unicode.IsControl(ch) {
			return false
		}
	}
	return true
}

// isValidChartID accepts the snake_case ids the view builders emit.
func isValidChartID(fl validator.FieldLevel) bool {
	id := fl.Field().String()
	if id == "" || len(id) > 64 {
		return false
	}
	for _, ch := range id {
		if !((ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9') || ch == '_') {
			return false
		}
	}
	return true
}
