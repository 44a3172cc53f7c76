package handler

import (
	"net/http"
	"time"

	"github.com/esperancehsu/Gestion-Presence/internal/core/presence"
	"github.com/go-chi/chi/v5"
)

const (
	transitionArrival   = "arrival"
	transitionDeparture = "departure"
)

// PresenceHandler は出勤記録 API の HTTP 実装です。
type PresenceHandler struct {
	svc      presence.UseCase
	res      responder
	observer Observer
}

// NewPresenceHandler は PresenceHandler を生成します。
func NewPresenceHandler(svc presence.UseCase, observer Observer) *PresenceHandler {
	res := newResponder(observer)
	return &PresenceHandler{svc: svc, res: res, observer: res.observer}
}

// Routes は /api/presences 配下のルートを登録します。
func (h *PresenceHandler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/board", h.board)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Post("/{id}/arrival", h.arrival)
	r.Post("/{id}/departure", h.departure)
}

// SelfRoutes は /api/me/presence 配下のルートを登録します。
func (h *PresenceHandler) SelfRoutes(r chi.Router) {
	r.Get("/", h.today)
	r.Post("/arrival", h.checkIn)
	r.Post("/departure", h.checkOut)
	r.Get("/stats", h.stats)
}

type createPresenceRequest struct {
	EmployeeID    string  `json:"employee_id" validate:"omitempty,uuid"`
	Date          *string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	ArrivalTime   *string `json:"arrival_time"`
	DepartureTime *string `json:"departure_time"`
	Note          *string `json:"note" validate:"omitempty,max=2000"`
}

type updatePresenceRequest struct {
	Date          *string          `json:"date" validate:"omitempty,datetime=2006-01-02"`
	ArrivalTime   optional[string] `json:"arrival_time"`
	DepartureTime optional[string] `json:"departure_time"`
	Note          optional[string] `json:"note"`
}

type presenceResponse struct {
	ID            string    `json:"id"`
	EmployeeID    string    `json:"employee_id"`
	EmployeeName  string    `json:"employee_name,omitempty"`
	Date          string    `json:"date"`
	ArrivalTime   *string   `json:"arrival_time"`
	DepartureTime *string   `json:"departure_time"`
	Status        string    `json:"status"`
	Note          *string   `json:"note"`
	WorkState     string    `json:"work_state"`
	WorkedMinutes *int64    `json:"worked_minutes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type listPresencesResponse struct {
	Presences     []presenceResponse `json:"presences"`
	NextPageToken string             `json:"next_page_token,omitempty"`
}

type statsResponse struct {
	EmployeeID           string `json:"employee_id"`
	From                 string `json:"from"`
	To                   string `json:"to"`
	DaysRecorded         int    `json:"days_recorded"`
	DaysArrived          int    `json:"days_arrived"`
	DaysCompleted        int    `json:"days_completed"`
	TotalWorkedMinutes   int64  `json:"total_worked_minutes"`
	AverageWorkedMinutes int64  `json:"average_worked_minutes"`
}

type boardResponse struct {
	Date      string             `json:"date"`
	Absent    int                `json:"absent"`
	Arrived   int                `json:"arrived"`
	Departed  int                `json:"departed"`
	Presences []presenceResponse `json:"presences"`
}

func (h *PresenceHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createPresenceRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.res.error(w, r, err)
		return
	}

	in := presence.CreatePresenceInput{EmployeeID: req.EmployeeID, Note: req.Note}
	if req.Date != nil {
		d, err := parseDate(*req.Date)
		if err != nil {
			h.res.error(w, r, badRequest("date must use the format YYYY-MM-DD"))
			return
		}
		in.Date = &d
	}
	var err error
	if in.ArrivalTime, err = parseTimeOfDayPtr("arrival_time", req.ArrivalTime); err != nil {
		h.res.error(w, r, err)
		return
	}
	if in.DepartureTime, err = parseTimeOfDayPtr("departure_time", req.DepartureTime); err != nil {
		h.res.error(w, r, err)
		return
	}

	created, err := h.svc.CreatePresence(r.Context(), in)
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPresenceResponse(created))
}

func (h *PresenceHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.res.error(w, r, err)
		return
	}

	found, err := h.svc.GetPresence(r.Context(), presence.GetPresenceInput{ID: id})
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPresenceResponse(found))
}

func (h *PresenceHandler) list(w http.ResponseWriter, r *http.Request) {
	in, err := listPresencesInput(r)
	if err != nil {
		h.res.error(w, r, err)
		return
	}

	result, err := h.svc.ListPresences(r.Context(), in)
	if err != nil {
		h.res.error(w, r, err)
		return
	}

	resp := listPresencesResponse{
		Presences:     toPresenceResponses(result.Presences),
		NextPageToken: result.NextPageToken,
	}
	writeJSON(w, http.StatusOK, resp)
}

func listPresencesInput(r *http.Request) (presence.ListPresencesInput, error) {
	var in presence.ListPresencesInput
	var err error
	if in.PageSize, in.PageToken, err = pageParams(r); err != nil {
		return in, err
	}
	if in.EmployeeID, err = queryUUID(r, "employee_id"); err != nil {
		return in, err
	}
	if in.From, err = queryDate(r, "from"); err != nil {
		return in, err
	}
	if in.To, err = queryDate(r, "to"); err != nil {
		return in, err
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		if err := validate.Var(raw, "oneof=absent arrived departed"); err != nil {
			return in, badRequest("status must be one of: absent arrived departed")
		}
		status := presence.Status(raw)
		in.Status = &status
	}
	return in, nil
}

func (h *PresenceHandler) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	var req updatePresenceRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.res.error(w, r, err)
		return
	}

	in := presence.UpdatePresenceInput{
		ID:               id,
		ArrivalTimeSet:   req.ArrivalTime.Set,
		DepartureTimeSet: req.DepartureTime.Set,
		Note:             req.Note.Value,
		NoteSet:          req.Note.Set,
	}
	if req.Date != nil {
		d, err := parseDate(*req.Date)
		if err != nil {
			h.res.error(w, r, badRequest("date must use the format YYYY-MM-DD"))
			return
		}
		in.Date = &d
	}
	if in.ArrivalTime, err = parseTimeOfDayPtr("arrival_time", req.ArrivalTime.Value); err != nil {
		h.res.error(w, r, err)
		return
	}
	if in.DepartureTime, err = parseTimeOfDayPtr("departure_time", req.DepartureTime.Value); err != nil {
		h.res.error(w, r, err)
		return
	}

	updated, err := h.svc.UpdatePresence(r.Context(), in)
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPresenceResponse(updated))
}

func (h *PresenceHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	if err := h.svc.DeletePresence(r.Context(), presence.DeletePresenceInput{ID: id}); err != nil {
		h.res.error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PresenceHandler) arrival(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	p, err := h.svc.RecordArrival(r.Context(), presence.RecordArrivalInput{ID: id})
	h.transitioned(w, r, transitionArrival, p, err)
}

func (h *PresenceHandler) departure(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	p, err := h.svc.RecordDeparture(r.Context(), presence.RecordDepartureInput{ID: id})
	h.transitioned(w, r, transitionDeparture, p, err)
}

func (h *PresenceHandler) checkIn(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.CheckIn(r.Context())
	h.transitioned(w, r, transitionArrival, p, err)
}

func (h *PresenceHandler) checkOut(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.CheckOut(r.Context())
	h.transitioned(w, r, transitionDeparture, p, err)
}

func (h *PresenceHandler) transitioned(w http.ResponseWriter, r *http.Request, transition string, p *presence.Presence, err error) {
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	h.observer.ObserveTransition(transition)
	writeJSON(w, http.StatusOK, toPresenceResponse(p))
}

func (h *PresenceHandler) today(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Today(r.Context())
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPresenceResponse(p))
}

func (h *PresenceHandler) stats(w http.ResponseWriter, r *http.Request) {
	var in presence.StatsInput
	var err error
	if in.EmployeeID, err = queryUUID(r, "employee_id"); err != nil {
		h.res.error(w, r, err)
		return
	}
	if in.From, err = queryDate(r, "from"); err != nil {
		h.res.error(w, r, err)
		return
	}
	if in.To, err = queryDate(r, "to"); err != nil {
		h.res.error(w, r, err)
		return
	}

	stats, err := h.svc.Stats(r.Context(), in)
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		EmployeeID:           stats.EmployeeID,
		From:                 stats.From.Format(dateLayout),
		To:                   stats.To.Format(dateLayout),
		DaysRecorded:         stats.DaysRecorded,
		DaysArrived:          stats.DaysArrived,
		DaysCompleted:        stats.DaysCompleted,
		TotalWorkedMinutes:   int64(stats.TotalWorked / time.Minute),
		AverageWorkedMinutes: int64(stats.AverageWorked / time.Minute),
	})
}

func (h *PresenceHandler) board(w http.ResponseWriter, r *http.Request) {
	date, err := queryDate(r, "date")
	if err != nil {
		h.res.error(w, r, err)
		return
	}

	board, err := h.svc.Board(r.Context(), presence.BoardInput{Date: date})
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, boardResponse{
		Date:      board.Date.Format(dateLayout),
		Absent:    board.Absent,
		Arrived:   board.Arrived,
		Departed:  board.Departed,
		Presences: toPresenceResponses(board.Presences),
	})
}

func toPresenceResponses(items []*presence.Presence) []presenceResponse {
	out := make([]presenceResponse, 0, len(items))
	for _, p := range items {
		out = append(out, toPresenceResponse(p))
	}
	return out
}

func toPresenceResponse(p *presence.Presence) presenceResponse {
	worked, state := p.WorkedDuration()
	resp := presenceResponse{
		ID:            p.ID,
		EmployeeID:    p.EmployeeID,
		Date:          p.Date.Format(dateLayout),
		ArrivalTime:   formatTimeOfDay(p.ArrivalTime),
		DepartureTime: formatTimeOfDay(p.DepartureTime),
		Status:        string(p.Status),
		Note:          p.Note,
		WorkState:     state.String(),
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
	if p.Employee != nil {
		resp.EmployeeName = p.Employee.Name
	}
	if state == presence.WorkComplete {
		minutes := int64(worked / time.Minute)
		resp.WorkedMinutes = &minutes
	}
	return resp
}
