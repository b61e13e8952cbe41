package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/example/helpdesk/internal/apperr"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

// respondError renders err as {"error": message}. Unclassified errors are 500s
// that keep the underlying message for diagnostics.
func (s *Server) respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	if e, ok := apperr.As(err); ok {
		if e.Status() >= http.StatusInternalServerError {
			s.log.Error("request failed", "path", c.Request.URL.Path, "kind", e.Kind, "error", err)
		}
		c.AbortWithStatusJSON(e.Status(), gin.H{"error": e.Message})
		return
	}
	s.log.Error("request failed", "path", c.Request.URL.Path, "error", fmt.Sprintf("%+v", err))
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// bindJSON decodes the body into dst and turns binding failures into
// validation errors with field names as they appear on the wire.
func bindJSON(c *gin.Context, dst any) error {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fieldMessage(fe))
		}
		return apperr.Validation("%s", strings.Join(msgs, "; "))
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, io.EOF):
		return apperr.Validation("request body is required")
	case errors.As(err, &syntaxErr):
		return apperr.Validation("malformed JSON at offset %d", syntaxErr.Offset)
	case errors.As(err, &typeErr):
		return apperr.Validation("%s must be %s", typeErr.Field, typeErr.Type)
	}
	return apperr.Validation("%s", err.Error())
}

// fieldMessage names the field by its namespace without the root struct, so
// nested slice elements read as tickets[0].title.
func fieldMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at least %s item(s)", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s characters long", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", field, fe.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "uuid":
		return fmt.Sprintf("%s must be a valid UUID", field)
	default:
		return fmt.Sprintf("%s failed validation for '%s'", field, fe.Tag())
	}
}
