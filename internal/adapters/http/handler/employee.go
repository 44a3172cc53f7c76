package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/esperancehsu/Gestion-Presence/internal/core/employee"
	"github.com/go-chi/chi/v5"
)

// EmployeeHandler は社員 API の HTTP 実装です。
type EmployeeHandler struct {
	svc employee.UseCase
	res responder
}

// NewEmployeeHandler は EmployeeHandler を生成します。
func NewEmployeeHandler(svc employee.UseCase, observer Observer) *EmployeeHandler {
	return &EmployeeHandler{svc: svc, res: newResponder(observer)}
}

// Routes は /api/employees 配下のルートを登録します。
func (h *EmployeeHandler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

type createEmployeeRequest struct {
	UserID   string  `json:"user_id" validate:"omitempty,uuid"`
	Name     string  `json:"name" validate:"required,max=255"`
	Position string  `json:"position" validate:"required,max=255"`
	Phone    *string `json:"phone" validate:"omitempty,max=20"`
	Email    *string `json:"email" validate:"omitempty,email"`
}

type updateEmployeeRequest struct {
	UserID   *string          `json:"user_id" validate:"omitempty,uuid"`
	Name     *string          `json:"name" validate:"omitempty,max=255"`
	Position *string          `json:"position" validate:"omitempty,max=255"`
	Phone    optional[string] `json:"phone"`
	Email    optional[string] `json:"email"`
}

type employeeUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

type employeeResponse struct {
	ID        string        `json:"id"`
	UserID    string        `json:"user_id"`
	Name      string        `json:"name"`
	Position  string        `json:"position"`
	Phone     *string       `json:"phone"`
	Email     *string       `json:"email"`
	User      *employeeUser `json:"user,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type listEmployeesResponse struct {
	Employees     []employeeResponse `json:"employees"`
	NextPageToken string             `json:"next_page_token,omitempty"`
}

func (h *EmployeeHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createEmployeeRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.res.error(w, r, err)
		return
	}

	created, err := h.svc.CreateEmployee(r.Context(), employee.CreateEmployeeInput{
		UserID:   req.UserID,
		Name:     req.Name,
		Position: req.Position,
		Phone:    req.Phone,
		Email:    req.Email,
	})
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeResponse(created))
}

func (h *EmployeeHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.res.error(w, r, err)
		return
	}

	found, err := h.svc.GetEmployee(r.Context(), employee.GetEmployeeInput{ID: id})
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeResponse(found))
}

func (h *EmployeeHandler) list(w http.ResponseWriter, r *http.Request) {
	size, token, err := pageParams(r)
	if err != nil {
		h.res.error(w, r, err)
		return
	}

	result, err := h.svc.ListEmployees(r.Context(), employee.ListEmployeesInput{
		Search:    strings.TrimSpace(r.URL.Query().Get("search")),
		PageSize:  size,
		PageToken: token,
	})
	if err != nil {
		h.res.error(w, r, err)
		return
	}

	resp := listEmployeesResponse{
		Employees:     make([]employeeResponse, 0, len(result.Employees)),
		NextPageToken: result.NextPageToken,
	}
	for _, e := range result.Employees {
		resp.Employees = append(resp.Employees, toEmployeeResponse(e))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *EmployeeHandler) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	var req updateEmployeeRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.res.error(w, r, err)
		return
	}
	if req.Email.Value != nil {
		if err := validate.Var(*req.Email.Value, "email"); err != nil {
			h.res.error(w, r, badRequest("email must be a valid email address"))
			return
		}
	}

	updated, err := h.svc.UpdateEmployee(r.Context(), employee.UpdateEmployeeInput{
		ID:       id,
		UserID:   req.UserID,
		Name:     req.Name,
		Position: req.Position,
		Phone:    req.Phone.Value,
		PhoneSet: req.Phone.Set,
		Email:    req.Email.Value,
		EmailSet: req.Email.Set,
	})
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeResponse(updated))
}

func (h *EmployeeHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	if err := h.svc.DeleteEmployee(r.Context(), employee.DeleteEmployeeInput{ID: id}); err != nil {
		h.res.error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toEmployeeResponse(e *employee.Employee) employeeResponse {
	resp := employeeResponse{
		ID:        e.ID,
		UserID:    e.UserID,
		Name:      e.Name,
		Position:  e.Position,
		Phone:     e.Phone,
		Email:     e.Email,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
	if e.User != nil {
		resp.User = &employeeUser{
			ID:       e.User.ID,
			Username: e.User.Username,
			Email:    e.User.Email,
			Role:     e.User.Role,
		}
	}
	return resp
}
