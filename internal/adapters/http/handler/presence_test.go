package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/esperancehsu/Gestion-Presence/internal/core/access"
	"github.com/esperancehsu/Gestion-Presence/internal/core/presence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func todPtr(d time.Duration) *presence.TimeOfDay {
	t := presence.TimeOfDay(d)
	return &t
}

func samplePresence() *presence.Presence {
	return &presence.Presence{
		ID:            presenceID,
		EmployeeID:    staffEmpID,
		Date:          time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		ArrivalTime:   todPtr(9 * time.Hour),
		DepartureTime: todPtr(17*time.Hour + 30*time.Minute),
		Status:        presence.StatusDeparted,
		Employee:      &presence.EmployeeSnapshot{ID: staffEmpID, UserID: staffUserID, Name: "Awa"},
	}
}

func TestPresenceHandler_Create(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ts.presences.create = func(_ context.Context, in presence.CreatePresenceInput) (*presence.Presence, error) {
		assert.Equal(t, otherEmpID, in.EmployeeID)
		require.NotNil(t, in.Date)
		assert.Equal(t, "2024-03-04", in.Date.Format(dateLayout))
		require.NotNil(t, in.ArrivalTime)
		assert.Equal(t, 8*time.Hour+15*time.Minute, in.ArrivalTime.Duration())
		assert.Nil(t, in.DepartureTime)
		p := samplePresence()
		p.DepartureTime = nil
		p.Status = presence.StatusArrived
		return p, nil
	}

	rec := ts.do(t, http.MethodPost, "/api/presences", fmt.Sprintf(`{"employee_id":%q,"date":"2024-03-04","arrival_time":"08:15"}`, otherEmpID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var body presenceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "arrived", body.Status)
	assert.Equal(t, "in_progress", body.WorkState)
	assert.Nil(t, body.WorkedMinutes)
	require.NotNil(t, body.ArrivalTime)
	assert.Equal(t, "09:00:00", *body.ArrivalTime)
}

func TestPresenceHandler_Create_Validation(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "bad employee id", body: `{"employee_id":"emp-1"}`, want: "employee_id"},
		{name: "bad date", body: `{"date":"04/03/2024"}`, want: "date"},
		{name: "bad time", body: `{"arrival_time":"8h"}`, want: "arrival_time"},
		{name: "unknown field", body: `{"status":"departed"}`, want: "unknown field"},
		{name: "empty body", body: ``, want: "request body is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/presences", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}
}

func TestPresenceHandler_ErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "duplicate", err: presence.ErrDuplicatePresence, status: http.StatusConflict},
		{name: "invisible", err: presence.ErrPresenceNotFound, status: http.StatusNotFound},
		{name: "time order", err: presence.ErrInvalidTimeOrder, status: http.StatusBadRequest},
		{name: "not today", err: access.DenyObject(access.CodeNotToday, "only today's presence can be modified"), status: http.StatusForbidden, code: "not_today"},
		{name: "storage failure", err: errors.New("connection reset"), status: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.presences.get = func(context.Context, presence.GetPresenceInput) (*presence.Presence, error) {
				return nil, tt.err
			}

			rec := ts.do(t, http.MethodGet, "/api/presences/"+presenceID, "")
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

			var body problem
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Code)
			assert.NotContains(t, body.Detail, "connection reset")
		})
	}
}

func TestPresenceHandler_DenialIsCounted(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ts.presences.update = func(context.Context, presence.UpdatePresenceInput) (*presence.Presence, error) {
		return nil, access.DenyObject(access.CodeFieldRestricted, "only the note can be changed")
	}

	rec := ts.do(t, http.MethodPatch, "/api/presences/"+presenceID, `{"arrival_time":"07:00:00"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, ts.scrape(t), `gestion_presence_access_denials_total{code="field_restricted",kind="object_access_denied"} 1`)
}

func TestPresenceHandler_Update_PatchSemantics(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ts.presences.update = func(_ context.Context, in presence.UpdatePresenceInput) (*presence.Presence, error) {
		assert.Equal(t, presenceID, in.ID)
		assert.False(t, in.ArrivalTimeSet)
		assert.True(t, in.DepartureTimeSet)
		assert.Nil(t, in.DepartureTime)
		assert.True(t, in.NoteSet)
		require.NotNil(t, in.Note)
		assert.Equal(t, "doctor", *in.Note)
		return samplePresence(), nil
	}

	rec := ts.do(t, http.MethodPatch, "/api/presences/"+presenceID, `{"departure_time":null,"note":"doctor"}`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestPresenceHandler_InvalidPathID(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/api/presences/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "id must be a UUID")
}

func TestPresenceHandler_List(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ts.presences.list = func(_ context.Context, in presence.ListPresencesInput) (*presence.ListPresencesResult, error) {
		assert.Equal(t, 10, in.PageSize)
		assert.Equal(t, "20", in.PageToken)
		assert.Equal(t, staffEmpID, in.EmployeeID)
		require.NotNil(t, in.From)
		require.NotNil(t, in.Status)
		assert.Equal(t, presence.StatusDeparted, *in.Status)
		return &presence.ListPresencesResult{Presences: []*presence.Presence{samplePresence()}, NextPageToken: "30"}, nil
	}

	rec := ts.do(t, http.MethodGet, "/api/presences?page_size=10&page_token=20&employee_id="+staffEmpID+"&from=2024-03-01&status=departed", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body listPresencesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Presences, 1)
	assert.Equal(t, "30", body.NextPageToken)
	require.NotNil(t, body.Presences[0].WorkedMinutes)
	assert.Equal(t, int64(510), *body.Presences[0].WorkedMinutes)
	assert.Equal(t, "complete", body.Presences[0].WorkState)
	assert.Equal(t, "Awa", body.Presences[0].EmployeeName)

	rec = ts.do(t, http.MethodGet, "/api/presences?status=late", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = ts.do(t, http.MethodGet, "/api/presences?page_size=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPresenceHandler_Transitions(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ts.presences.arrival = func(_ context.Context, in presence.RecordArrivalInput) (*presence.Presence, error) {
		assert.Equal(t, presenceID, in.ID)
		return samplePresence(), nil
	}
	ts.presences.checkIn = func(context.Context) (*presence.Presence, error) {
		return samplePresence(), nil
	}
	ts.presences.checkOut = func(context.Context) (*presence.Presence, error) {
		return nil, presence.ErrAlreadyRecorded
	}

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/presences/"+presenceID+"/arrival", "").Code)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/me/presence/arrival", "").Code)
	assert.Equal(t, http.StatusConflict, ts.do(t, http.MethodPost, "/api/me/presence/departure", "").Code)

	scraped := ts.scrape(t)
	assert.Contains(t, scraped, `gestion_presence_presence_transitions_total{transition="arrival"} 2`)
	assert.NotContains(t, scraped, `transition="departure"`)
}

func TestPresenceHandler_StatsAndBoard(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ts.presences.stats = func(_ context.Context, in presence.StatsInput) (*presence.Stats, error) {
		assert.Empty(t, in.EmployeeID)
		require.NotNil(t, in.To)
		return &presence.Stats{
			EmployeeID:    staffEmpID,
			From:          time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			To:            time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
			DaysRecorded:  3,
			DaysArrived:   3,
			DaysCompleted: 2,
			TotalWorked:   17 * time.Hour,
			AverageWorked: 8*time.Hour + 30*time.Minute,
		}, nil
	}
	ts.presences.board = func(context.Context, presence.BoardInput) (*presence.Board, error) {
		return nil, access.Deny(access.CodeGroupRequired, "group membership required")
	}

	rec := ts.do(t, http.MethodGet, "/api/me/presence/stats?to=2024-03-31", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{
		"employee_id": "`+staffEmpID+`",
		"from": "2024-03-01",
		"to": "2024-03-31",
		"days_recorded": 3,
		"days_arrived": 3,
		"days_completed": 2,
		"total_worked_minutes": 1020,
		"average_worked_minutes": 510
	}`, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/presences/board", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "group_required")
}
