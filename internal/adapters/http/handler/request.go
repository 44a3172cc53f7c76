package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/esperancehsu/Gestion-Presence/internal/core/presence"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	dateLayout     = "2006-01-02"
	maxRequestBody = 1 << 20
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// requestError はリクエストの形式不正を表します。
type requestError struct {
	msg    string
	fields []fieldError
}

func (e *requestError) Error() string {
	return e.msg
}

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

// decodeBody は JSON ボディを読み込み、validate タグで検証します。
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxRequestBody)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("request body is required")
		}
		return badRequest("invalid request body: %v", err)
	}
	if dec.More() {
		return badRequest("request body must contain a single JSON object")
	}
	return validateStruct(dst)
}

func validateStruct(dst any) error {
	err := validate.Struct(dst)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return badRequest("invalid request: %v", err)
	}
	fields := make([]fieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fieldError{Field: fe.Field(), Message: describe(fe)})
	}
	return &requestError{msg: "validation failed", fields: fields}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "uuid":
		return "must be a UUID"
	case "email":
		return "must be a valid email address"
	case "datetime":
		return "must use the format " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "failed the " + fe.Tag() + " check"
	}
}

// optional は PATCH で「未指定」と「null」を区別するための値です。
type optional[T any] struct {
	Set   bool
	Value *T
}

func (o *optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

func pathID(r *http.Request) (string, error) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		return "", badRequest("id must be a UUID")
	}
	return id, nil
}

func queryUUID(r *http.Request, name string) (string, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return "", nil
	}
	if _, err := uuid.Parse(raw); err != nil {
		return "", badRequest("%s must be a UUID", name)
	}
	return raw, nil
}

func queryDate(r *http.Request, name string) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	d, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, badRequest("%s must use the format YYYY-MM-DD", name)
	}
	return &d, nil
}

// pageParams は page_size と page_token を読み取ります。page_size の上限はサービス側で検証します。
func pageParams(r *http.Request) (int, string, error) {
	q := r.URL.Query()
	size := 0
	if raw := strings.TrimSpace(q.Get("page_size")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return 0, "", badRequest("page_size must be a non-negative integer")
		}
		size = n
	}
	return size, q.Get("page_token"), nil
}

func parseDate(raw string) (time.Time, error) {
	return time.Parse(dateLayout, strings.TrimSpace(raw))
}

func parseTimeOfDayPtr(field string, raw *string) (*presence.TimeOfDay, error) {
	if raw == nil {
		return nil, nil
	}
	t, err := presence.ParseTimeOfDay(*raw)
	if err != nil {
		return nil, badRequest("%s must use the format HH:MM:SS", field)
	}
	return &t, nil
}

func formatTimeOfDay(t *presence.TimeOfDay) *string {
	if t == nil {
		return nil
	}
	s := t.String()
	return &s
}
