package pkg

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/simp-lee/sitekit/internal/domain"
)

// Response is the JSON envelope of every /api response. Errors is only set
// on validation failures and maps json field names to the failed rule.
type Response struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Data    any               `json:"data"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func respond(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Response{Code: status, Message: message, Data: data})
}

// Success sends data with 200.
func Success(c *gin.Context, data any) {
	respond(c, http.StatusOK, "success", data)
}

// Created sends data with 201.
func Created(c *gin.Context, data any) {
	respond(c, http.StatusCreated, "success", data)
}

// List sends one page of a listing, usually a *domain.ListResult.
func List(c *gin.Context, result any) {
	respond(c, http.StatusOK, "success", result)
}

// Error sends err with the status of its domain code. Errors without a code
// become a 500 whose message does not leak the cause.
func Error(c *gin.Context, err error) {
	respond(c, domain.HTTPStatus(err), domain.PublicMessage(err), nil)
}

var jsonFieldNames sync.Once

// useJSONFieldNames makes gin's validator report fields by their json tag.
func useJSONFieldNames() {
	jsonFieldNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

// BindAndValidate binds the request into obj. On failure it has already
// answered 400 and returns false:
//
//	if !pkg.BindAndValidate(c, &req) { return }
func BindAndValidate(c *gin.Context, obj any) bool {
	useJSONFieldNames()
	if err := c.ShouldBind(obj); err != nil {
		ValidationError(c, err)
		return false
	}
	return true
}

// ValidationError answers 400. Field errors are listed by name; any other
// binding error, such as malformed JSON, is reported as the message.
func ValidationError(c *gin.Context, err error) {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		respond(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		fields[fe.Field()] = rule
	}
	c.JSON(http.StatusBadRequest, Response{
		Code:    http.StatusBadRequest,
		Message: "validation error",
		Errors:  fields,
	})
}
