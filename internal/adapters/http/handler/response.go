package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/esperancehsu/Gestion-Presence/internal/core/access"
	"github.com/esperancehsu/Gestion-Presence/internal/core/employee"
	"github.com/esperancehsu/Gestion-Presence/internal/core/presence"
	"github.com/esperancehsu/Gestion-Presence/internal/core/report"
	"github.com/rs/zerolog/hlog"
)

// Observer はハンドラが記録するメトリクスの抽象です。
type Observer interface {
	ObserveDenial(kind, code string)
	ObserveTransition(transition string)
}

type noopObserver struct{}

func (noopObserver) ObserveDenial(string, string) {}
func (noopObserver) ObserveTransition(string)     {}

// problem は RFC 7807 形式のエラーレスポンスです。
type problem struct {
	Title  string       `json:"title"`
	Status int          `json:"status"`
	Detail string       `json:"detail,omitempty"`
	Code   string       `json:"code,omitempty"`
	Errors []fieldError `json:"errors,omitempty"`
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeProblem(w http.ResponseWriter, p problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// responder はドメインエラーを HTTP レスポンスに変換します。
type responder struct {
	observer Observer
}

func newResponder(observer Observer) responder {
	if observer == nil {
		observer = noopObserver{}
	}
	return responder{observer: observer}
}

func (rs responder) error(w http.ResponseWriter, r *http.Request, err error) {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		writeProblem(w, problem{
			Title:  http.StatusText(http.StatusBadRequest),
			Status: http.StatusBadRequest,
			Detail: reqErr.msg,
			Errors: reqErr.fields,
		})
		return
	}

	var denial *access.Denial
	if errors.As(err, &denial) {
		rs.observer.ObserveDenial(string(denial.Kind), string(denial.Code))
		hlog.FromRequest(r).Info().
			Str("kind", string(denial.Kind)).
			Str("code", string(denial.Code)).
			Msg("access denied")
		writeProblem(w, problem{
			Title:  http.StatusText(http.StatusForbidden),
			Status: http.StatusForbidden,
			Detail: denial.Reason,
			Code:   string(denial.Code),
		})
		return
	}

	status := statusOf(err)
	if status == http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
		writeProblem(w, problem{
			Title:  http.StatusText(status),
			Status: status,
			Detail: "an unexpected error occurred",
		})
		return
	}

	writeProblem(w, problem{
		Title:  http.StatusText(status),
		Status: status,
		Detail: err.Error(),
	})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, access.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, access.ErrPermissionDenied),
		errors.Is(err, access.ErrObjectAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, presence.ErrDuplicatePresence),
		errors.Is(err, presence.ErrAlreadyRecorded),
		errors.Is(err, employee.ErrEmployeeAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, presence.ErrPresenceNotFound),
		errors.Is(err, presence.ErrEmployeeNotFound),
		errors.Is(err, employee.ErrEmployeeNotFound),
		errors.Is(err, employee.ErrUserNotFound),
		errors.Is(err, report.ErrReportNotFound),
		errors.Is(err, report.ErrEmployeeNotFound):
		return http.StatusNotFound
	case errors.Is(err, presence.ErrInvalidID),
		errors.Is(err, presence.ErrInvalidEmployeeID),
		errors.Is(err, presence.ErrInvalidStatus),
		errors.Is(err, presence.ErrInvalidPageSize),
		errors.Is(err, presence.ErrInvalidPageToken),
		errors.Is(err, presence.ErrInvalidDateRange),
		errors.Is(err, presence.ErrInvalidTimeOrder),
		errors.Is(err, presence.ErrStatusMismatch),
		errors.Is(err, presence.ErrArrivalMissing),
		errors.Is(err, employee.ErrInvalidID),
		errors.Is(err, employee.ErrInvalidUserID),
		errors.Is(err, employee.ErrInvalidName),
		errors.Is(err, employee.ErrInvalidPosition),
		errors.Is(err, employee.ErrInvalidEmail),
		errors.Is(err, employee.ErrInvalidPhone),
		errors.Is(err, employee.ErrInvalidPageSize),
		errors.Is(err, employee.ErrInvalidPageToken),
		errors.Is(err, report.ErrInvalidID),
		errors.Is(err, report.ErrInvalidType),
		errors.Is(err, report.ErrInvalidDateRange),
		errors.Is(err, report.ErrInvalidContent),
		errors.Is(err, report.ErrInvalidPageSize),
		errors.Is(err, report.ErrInvalidPageToken):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
