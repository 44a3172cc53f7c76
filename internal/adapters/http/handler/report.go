package handler

import (
	"net/http"
	"time"

	"github.com/esperancehsu/Gestion-Presence/internal/core/report"
	"github.com/go-chi/chi/v5"
)

// ReportHandler はレポート API の HTTP 実装です。
type ReportHandler struct {
	svc report.UseCase
	res responder
}

// NewReportHandler は ReportHandler を生成します。
func NewReportHandler(svc report.UseCase, observer Observer) *ReportHandler {
	return &ReportHandler{svc: svc, res: newResponder(observer)}
}

// Routes は /api/reports 配下のルートを登録します。
func (h *ReportHandler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

type createReportRequest struct {
	EmployeeID string `json:"employee_id" validate:"omitempty,uuid"`
	Type       string `json:"type" validate:"required,oneof=daily weekly monthly annual custom"`
	StartDate  string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate    string `json:"end_date" validate:"required,datetime=2006-01-02"`
	Content    string `json:"content"`
}

type updateReportRequest struct {
	Type      *string `json:"type" validate:"omitempty,oneof=daily weekly monthly annual custom"`
	StartDate *string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate   *string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	Content   *string `json:"content"`
}

type reportResponse struct {
	ID           string    `json:"id"`
	EmployeeID   string    `json:"employee_id"`
	EmployeeName string    `json:"employee_name,omitempty"`
	Type         string    `json:"type"`
	StartDate    string    `json:"start_date"`
	EndDate      string    `json:"end_date"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type listReportsResponse struct {
	Reports       []reportResponse `json:"reports"`
	NextPageToken string           `json:"next_page_token,omitempty"`
}

func (h *ReportHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createReportRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.res.error(w, r, err)
		return
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		h.res.error(w, r, badRequest("start_date must use the format YYYY-MM-DD"))
		return
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		h.res.error(w, r, badRequest("end_date must use the format YYYY-MM-DD"))
		return
	}

	created, err := h.svc.CreateReport(r.Context(), report.CreateReportInput{
		EmployeeID: req.EmployeeID,
		Type:       report.Type(req.Type),
		StartDate:  start,
		EndDate:    end,
		Content:    req.Content,
	})
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toReportResponse(created))
}

func (h *ReportHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.res.error(w, r, err)
		return
	}

	found, err := h.svc.GetReport(r.Context(), report.GetReportInput{ID: id})
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReportResponse(found))
}

func (h *ReportHandler) list(w http.ResponseWriter, r *http.Request) {
	var in report.ListReportsInput
	var err error
	if in.PageSize, in.PageToken, err = pageParams(r); err != nil {
		h.res.error(w, r, err)
		return
	}
	if in.EmployeeID, err = queryUUID(r, "employee_id"); err != nil {
		h.res.error(w, r, err)
		return
	}
	if raw := r.URL.Query().Get("type"); raw != "" {
		if err := validate.Var(raw, "oneof=daily weekly monthly annual custom"); err != nil {
			h.res.error(w, r, badRequest("type must be one of: daily weekly monthly annual custom"))
			return
		}
		typ := report.Type(raw)
		in.Type = &typ
	}

	result, err := h.svc.ListReports(r.Context(), in)
	if err != nil {
		h.res.error(w, r, err)
		return
	}

	resp := listReportsResponse{
		Reports:       make([]reportResponse, 0, len(result.Reports)),
		NextPageToken: result.NextPageToken,
	}
	for _, rep := range result.Reports {
		resp.Reports = append(resp.Reports, toReportResponse(rep))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ReportHandler) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	var req updateReportRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.res.error(w, r, err)
		return
	}

	in := report.UpdateReportInput{ID: id, Content: req.Content}
	if req.Type != nil {
		typ := report.Type(*req.Type)
		in.Type = &typ
	}
	if req.StartDate != nil {
		d, err := parseDate(*req.StartDate)
		if err != nil {
			h.res.error(w, r, badRequest("start_date must use the format YYYY-MM-DD"))
			return
		}
		in.StartDate = &d
	}
	if req.EndDate != nil {
		d, err := parseDate(*req.EndDate)
		if err != nil {
			h.res.error(w, r, badRequest("end_date must use the format YYYY-MM-DD"))
			return
		}
		in.EndDate = &d
	}

	updated, err := h.svc.UpdateReport(r.Context(), in)
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReportResponse(updated))
}

func (h *ReportHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	if err := h.svc.DeleteReport(r.Context(), report.DeleteReportInput{ID: id}); err != nil {
		h.res.error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toReportResponse(rep *report.Report) reportResponse {
	resp := reportResponse{
		ID:         rep.ID,
		EmployeeID: rep.EmployeeID,
		Type:       string(rep.Type),
		StartDate:  rep.StartDate.Format(dateLayout),
		EndDate:    rep.EndDate.Format(dateLayout),
		Content:    rep.Content,
		CreatedAt:  rep.CreatedAt,
		UpdatedAt:  rep.UpdatedAt,
	}
	if rep.Employee != nil {
		resp.EmployeeName = rep.Employee.Name
	}
	return resp
}
