package presence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/esperancehsu/Gestion-Presence/internal/core/access"
)

type stubClock struct {
	mu  sync.Mutex
	now time.Time
}

func (s *stubClock) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *stubClock) set(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

type fakePresenceRepo struct {
	mu        sync.Mutex
	presences map[string]*Presence
	employees map[string]*EmployeeSnapshot
	sequence  int
}

func newFakePresenceRepo() *fakePresenceRepo {
	return &fakePresenceRepo{
		presences: make(map[string]*Presence),
		employees: map[string]*EmployeeSnapshot{
			"e1": {ID: "e1", UserID: "u1", Name: "Awa"},
			"e2": {ID: "e2", UserID: "u2", Name: "Kossi"},
		},
	}
}

func (r *fakePresenceRepo) Create(_ context.Context, p *Presence) (*Presence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	emp, ok := r.employees[p.EmployeeID]
	if !ok {
		return nil, ErrEmployeeNotFound
	}
	for _, existing := range r.presences {
		if existing.EmployeeID == p.EmployeeID && existing.Date.Equal(p.Date) {
			return nil, ErrDuplicatePresence
		}
	}

	r.sequence++
	clone := clonePresence(p)
	clone.ID = fmt.Sprintf("p-%d", r.sequence)
	snapshot := *emp
	clone.Employee = &snapshot
	r.presences[clone.ID] = clone
	return clonePresence(clone), nil
}

func (r *fakePresenceRepo) Update(_ context.Context, p *Presence) (*Presence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.presences[p.ID]; !ok {
		return nil, ErrPresenceNotFound
	}
	for _, existing := range r.presences {
		if existing.ID != p.ID && existing.EmployeeID == p.EmployeeID && existing.Date.Equal(p.Date) {
			return nil, ErrDuplicatePresence
		}
	}
	r.presences[p.ID] = clonePresence(p)
	return clonePresence(p), nil
}

func (r *fakePresenceRepo) SaveArrival(ctx context.Context, p *Presence) (*Presence, error) {
	return r.Update(ctx, p)
}

func (r *fakePresenceRepo) SaveDeparture(ctx context.Context, p *Presence) (*Presence, error) {
	return r.Update(ctx, p)
}

func (r *fakePresenceRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.presences[id]; !ok {
		return ErrPresenceNotFound
	}
	delete(r.presences, id)
	return nil
}

func (r *fakePresenceRepo) FindByID(_ context.Context, id string, scope access.Scope) (*Presence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.presences[id]
	if !ok || !inScope(p, scope) {
		return nil, ErrPresenceNotFound
	}
	return clonePresence(p), nil
}

func (r *fakePresenceRepo) FindByEmployeeAndDate(_ context.Context, employeeID string, date time.Time) (*Presence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.presences {
		if p.EmployeeID == employeeID && p.Date.Equal(date) {
			return clonePresence(p), nil
		}
	}
	return nil, ErrPresenceNotFound
}

func (r *fakePresenceRepo) List(_ context.Context, filter ListFilter) ([]*Presence, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*Presence
	for _, p := range r.sorted() {
		if !inScope(p, filter.Scope) {
			continue
		}
		if filter.EmployeeID != "" && p.EmployeeID != filter.EmployeeID {
			continue
		}
		if filter.From != nil && p.Date.Before(*filter.From) {
			continue
		}
		if filter.To != nil && p.Date.After(*filter.To) {
			continue
		}
		if filter.Status != nil && p.Status != *filter.Status {
			continue
		}
		matched = append(matched, clonePresence(p))
	}

	if filter.Offset >= len(matched) {
		return []*Presence{}, "", nil
	}
	end := filter.Offset + filter.Limit
	next := ""
	if end < len(matched) {
		next = strconv.Itoa(end)
	} else {
		end = len(matched)
	}
	return matched[filter.Offset:end], next, nil
}

func (r *fakePresenceRepo) ListRange(_ context.Context, filter RangeFilter) ([]*Presence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Presence
	for _, p := range r.sorted() {
		if !inScope(p, filter.Scope) {
			continue
		}
		if filter.EmployeeID != "" && p.EmployeeID != filter.EmployeeID {
			continue
		}
		if p.Date.Before(filter.From) || p.Date.After(filter.To) {
			continue
		}
		out = append(out, clonePresence(p))
	}
	return out, nil
}

func (r *fakePresenceRepo) FindEmployee(_ context.Context, id string) (*EmployeeSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	emp, ok := r.employees[id]
	if !ok {
		return nil, ErrEmployeeNotFound
	}
	snapshot := *emp
	return &snapshot, nil
}

func (r *fakePresenceRepo) sorted() []*Presence {
	out := make([]*Presence, 0, len(r.presences))
	for _, p := range r.presences {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *fakePresenceRepo) seed(employeeID string, date time.Time, arrival, departure *TimeOfDay) *Presence {
	p, err := r.Create(context.Background(), &Presence{
		EmployeeID:    employeeID,
		Date:          date,
		ArrivalTime:   arrival,
		DepartureTime: departure,
		Status:        DeriveStatus(arrival, departure),
	})
	if err != nil {
		panic(err)
	}
	return p
}

func inScope(p *Presence, scope access.Scope) bool {
	if scope.Unrestricted {
		return true
	}
	return scope.OwnerID != "" && p.Employee != nil && p.Employee.UserID == scope.OwnerID
}

func clonePresence(p *Presence) *Presence {
	if p == nil {
		return nil
	}
	clone := *p
	if p.ArrivalTime != nil {
		v := *p.ArrivalTime
		clone.ArrivalTime = &v
	}
	if p.DepartureTime != nil {
		v := *p.DepartureTime
		clone.DepartureTime = &v
	}
	if p.Note != nil {
		v := *p.Note
		clone.Note = &v
	}
	if p.Employee != nil {
		v := *p.Employee
		clone.Employee = &v
	}
	return &clone
}

func tod(hour, minute int) *TimeOfDay {
	v := TimeOfDay(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
	return &v
}

var (
	staffActor   = &access.Actor{ID: "u1", Role: access.RoleStaff, EmployeeID: "e1", Groups: []string{"Staff"}}
	managerActor = &access.Actor{ID: "m1", Role: access.RoleManager, Groups: []string{"Managers"}}
	adminActor   = &access.Actor{ID: "a1", Role: access.RoleAdmin, Groups: []string{"Admin"}}
	today        = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
)

func newTestService(now time.Time) (*Service, *fakePresenceRepo, *stubClock) {
	repo := newFakePresenceRepo()
	clock := &stubClock{now: now}
	return NewService(repo, access.NewPolicy(access.DefaultRoleRules()), clock, nil), repo, clock
}

func as(actor *access.Actor) context.Context {
	return access.WithActor(context.Background(), actor)
}

func TestService_CreatePresence_StaffBoundToSelf(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(today.Add(8 * time.Hour))
	note := "  on site  "

	p, err := svc.CreatePresence(as(staffActor), CreatePresenceInput{Note: &note})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.EmployeeID != "e1" {
		t.Fatalf("expected employee e1, got %s", p.EmployeeID)
	}
	if !p.Date.Equal(today) {
		t.Fatalf("expected today, got %s", p.Date)
	}
	if p.Status != StatusAbsent {
		t.Fatalf("expected absent, got %s", p.Status)
	}
	if p.Note == nil || *p.Note != "on site" {
		t.Fatalf("expected trimmed note, got %v", p.Note)
	}

	arrived, err := svc.RecordArrival(as(staffActor), RecordArrivalInput{ID: p.ID})
	if err != nil {
		t.Fatalf("unexpected arrival error: %v", err)
	}
	if arrived.Status != StatusArrived {
		t.Fatalf("expected arrived, got %s", arrived.Status)
	}
}

func TestService_CreatePresence_Denials(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(today.Add(8 * time.Hour))
	yesterday := today.AddDate(0, 0, -1)

	tests := []struct {
		name  string
		actor *access.Actor
		in    CreatePresenceInput
		code  access.ReasonCode
	}{
		{name: "foreign employee", actor: staffActor, in: CreatePresenceInput{EmployeeID: "e2"}, code: access.CodeOnBehalf},
		{name: "past date", actor: staffActor, in: CreatePresenceInput{Date: &yesterday}, code: access.CodeNotToday},
		{name: "times", actor: staffActor, in: CreatePresenceInput{ArrivalTime: tod(9, 0)}, code: access.CodeFieldRestricted},
		{name: "no linked employee", actor: &access.Actor{ID: "u9", Role: access.RoleStaff}, in: CreatePresenceInput{}, code: access.CodeNoLinkedEmployee},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := svc.CreatePresence(as(tt.actor), tt.in)
			var denial *access.Denial
			if !errors.As(err, &denial) {
				t.Fatalf("expected denial, got %v", err)
			}
			if denial.Code != tt.code {
				t.Fatalf("expected %s, got %s", tt.code, denial.Code)
			}
		})
	}
}

func TestService_CreatePresence_Unauthenticated(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(today)
	if _, err := svc.CreatePresence(context.Background(), CreatePresenceInput{}); !errors.Is(err, access.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestService_CreatePresence_ManagerWithTimes(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(today.Add(8 * time.Hour))
	yesterday := today.AddDate(0, 0, -1)

	p, err := svc.CreatePresence(as(managerActor), CreatePresenceInput{
		EmployeeID:    "e2",
		Date:          &yesterday,
		ArrivalTime:   tod(9, 0),
		DepartureTime: tod(17, 0),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Status != StatusDeparted {
		t.Fatalf("expected status derived as departed, got %s", p.Status)
	}

	if _, err := svc.CreatePresence(as(managerActor), CreatePresenceInput{EmployeeID: "e2", ArrivalTime: tod(10, 0), DepartureTime: tod(9, 0)}); !errors.Is(err, ErrInvalidTimeOrder) {
		t.Fatalf("expected ErrInvalidTimeOrder, got %v", err)
	}
	if _, err := svc.CreatePresence(as(managerActor), CreatePresenceInput{EmployeeID: "e404"}); !errors.Is(err, ErrEmployeeNotFound) {
		t.Fatalf("expected ErrEmployeeNotFound, got %v", err)
	}
}

func TestService_CreatePresence_Duplicate(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(today.Add(8 * time.Hour))
	if _, err := svc.CreatePresence(as(staffActor), CreatePresenceInput{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.CreatePresence(as(staffActor), CreatePresenceInput{}); !errors.Is(err, ErrDuplicatePresence) {
		t.Fatalf("expected ErrDuplicatePresence, got %v", err)
	}
}

func TestService_CreatePresence_ConcurrentDuplicate(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(today.Add(8 * time.Hour))

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		failures  []error
	)
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.CreatePresence(as(staffActor), CreatePresenceInput{})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
				return
			}
			failures = append(failures, err)
		}()
	}
	close(start)
	wg.Wait()

	if succeeded != 1 {
		t.Fatalf("expected exactly one creation, got %d", succeeded)
	}
	for _, err := range failures {
		if !errors.Is(err, ErrDuplicatePresence) {
			t.Fatalf("expected ErrDuplicatePresence, got %v", err)
		}
	}
}

func TestService_GetPresence_Scope(t *testing.T) {
	t.Parallel()

	svc, repo, _ := newTestService(today.Add(8 * time.Hour))
	own := repo.seed("e1", today, nil, nil)
	foreign := repo.seed("e2", today, nil, nil)

	if _, err := svc.GetPresence(as(staffActor), GetPresenceInput{ID: own.ID}); err != nil {
		t.Fatalf("expected own record, got %v", err)
	}
	if _, err := svc.GetPresence(as(staffActor), GetPresenceInput{ID: foreign.ID}); !errors.Is(err, ErrPresenceNotFound) {
		t.Fatalf("expected foreign record hidden, got %v", err)
	}
	if _, err := svc.GetPresence(as(managerActor), GetPresenceInput{ID: foreign.ID}); err != nil {
		t.Fatalf("expected manager to read, got %v", err)
	}
	if _, err := svc.GetPresence(as(staffActor), GetPresenceInput{ID: " "}); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}

	visitor := &access.Actor{ID: "u1", Role: "visitor", EmployeeID: "e1"}
	if _, err := svc.GetPresence(as(visitor), GetPresenceInput{ID: own.ID}); !errors.Is(err, access.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestService_ListPresences(t *testing.T) {
	t.Parallel()

	svc, repo, _ := newTestService(today.Add(8 * time.Hour))
	repo.seed("e1", today, nil, nil)
	repo.seed("e1", today.AddDate(0, 0, -1), tod(9, 0), tod(17, 0))
	repo.seed("e2", today, nil, nil)

	res, err := svc.ListPresences(as(staffActor), ListPresencesInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Presences) != 2 {
		t.Fatalf("expected 2 own presences, got %d", len(res.Presences))
	}
	for _, p := range res.Presences {
		if p.EmployeeID != "e1" {
			t.Fatalf("unexpected foreign presence %s", p.ID)
		}
	}

	res, err = svc.ListPresences(as(adminActor), ListPresencesInput{PageSize: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Presences) != 2 || res.NextPageToken != "2" {
		t.Fatalf("expected first page of 2, got %d (%q)", len(res.Presences), res.NextPageToken)
	}

	departed := StatusDeparted
	res, err = svc.ListPresences(as(adminActor), ListPresencesInput{Status: &departed})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Presences) != 1 {
		t.Fatalf("expected 1 departed presence, got %d", len(res.Presences))
	}

	from, to := today, today.AddDate(0, 0, -1)
	if _, err := svc.ListPresences(as(adminActor), ListPresencesInput{From: &from, To: &to}); !errors.Is(err, ErrInvalidDateRange) {
		t.Fatalf("expected ErrInvalidDateRange, got %v", err)
	}
	if _, err := svc.ListPresences(as(adminActor), ListPresencesInput{PageSize: maxListPageSize + 1}); !errors.Is(err, ErrInvalidPageSize) {
		t.Fatalf("expected ErrInvalidPageSize, got %v", err)
	}
	if _, err := svc.ListPresences(as(adminActor), ListPresencesInput{PageToken: "abc"}); !errors.Is(err, ErrInvalidPageToken) {
		t.Fatalf("expected ErrInvalidPageToken, got %v", err)
	}
}

func TestService_UpdatePresence_SelfService(t *testing.T) {
	t.Parallel()

	svc, repo, _ := newTestService(today.Add(10 * time.Hour))
	current := repo.seed("e1", today, tod(9, 0), nil)
	past := repo.seed("e1", today.AddDate(0, 0, -1), tod(9, 0), nil)
	note := "late bus"

	updated, err := svc.UpdatePresence(as(staffActor), UpdatePresenceInput{ID: current.ID, Note: &note, NoteSet: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Note == nil || *updated.Note != note {
		t.Fatalf("expected note saved, got %v", updated.Note)
	}

	_, err = svc.UpdatePresence(as(staffActor), UpdatePresenceInput{ID: past.ID, Note: &note, NoteSet: true})
	if denial := asDenial(t, err); denial.Code != access.CodeNotToday {
		t.Fatalf("expected %s, got %s", access.CodeNotToday, denial.Code)
	}

	_, err = svc.UpdatePresence(as(staffActor), UpdatePresenceInput{ID: current.ID, DepartureTime: tod(18, 0), DepartureTimeSet: true})
	if denial := asDenial(t, err); denial.Code != access.CodeFieldRestricted {
		t.Fatalf("expected %s, got %s", access.CodeFieldRestricted, denial.Code)
	}

	stored, _ := repo.FindByID(context.Background(), current.ID, access.All())
	if stored.DepartureTime != nil {
		t.Fatal("expected rejected update to leave the record untouched")
	}
}

func TestService_UpdatePresence_Elevated(t *testing.T) {
	t.Parallel()

	svc, repo, _ := newTestService(today.Add(10 * time.Hour))
	p := repo.seed("e2", today.AddDate(0, 0, -2), tod(9, 0), nil)
	repo.seed("e2", today.AddDate(0, 0, -1), nil, nil)

	updated, err := svc.UpdatePresence(as(managerActor), UpdatePresenceInput{ID: p.ID, DepartureTime: tod(17, 30), DepartureTimeSet: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != StatusDeparted {
		t.Fatalf("expected status re-derived, got %s", updated.Status)
	}

	_, err = svc.UpdatePresence(as(managerActor), UpdatePresenceInput{ID: p.ID, DepartureTime: tod(8, 0), DepartureTimeSet: true})
	if !errors.Is(err, ErrInvalidTimeOrder) {
		t.Fatalf("expected ErrInvalidTimeOrder, got %v", err)
	}

	clash := today.AddDate(0, 0, -1)
	if _, err := svc.UpdatePresence(as(managerActor), UpdatePresenceInput{ID: p.ID, Date: &clash}); !errors.Is(err, ErrDuplicatePresence) {
		t.Fatalf("expected ErrDuplicatePresence, got %v", err)
	}

	stored, _ := repo.FindByID(context.Background(), p.ID, access.All())
	if stored.DepartureTime == nil || stored.DepartureTime.String() != "17:30:00" {
		t.Fatalf("expected departure kept at 17:30, got %v", stored.DepartureTime)
	}
}

func TestService_DeletePresence(t *testing.T) {
	t.Parallel()

	svc, repo, _ := newTestService(today.Add(10 * time.Hour))
	own := repo.seed("e1", today, nil, nil)
	foreign := repo.seed("e2", today, nil, nil)

	if denial := asDenial(t, svc.DeletePresence(as(staffActor), DeletePresenceInput{ID: own.ID})); denial.Code != access.CodeAdminOnly {
		t.Fatalf("expected %s, got %s", access.CodeAdminOnly, denial.Code)
	}
	if err := svc.DeletePresence(as(staffActor), DeletePresenceInput{ID: foreign.ID}); !errors.Is(err, ErrPresenceNotFound) {
		t.Fatalf("expected foreign record hidden, got %v", err)
	}
	if err := svc.DeletePresence(as(managerActor), DeletePresenceInput{ID: foreign.ID}); !errors.Is(err, access.ErrObjectAccessDenied) {
		t.Fatalf("expected ErrObjectAccessDenied, got %v", err)
	}
	if err := svc.DeletePresence(as(adminActor), DeletePresenceInput{ID: foreign.ID}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := repo.FindByID(context.Background(), foreign.ID, access.All()); !errors.Is(err, ErrPresenceNotFound) {
		t.Fatalf("expected record deleted, got %v", err)
	}
}

func TestService_RecordTransitions(t *testing.T) {
	t.Parallel()

	svc, repo, clock := newTestService(today.Add(9 * time.Hour))
	p := repo.seed("e1", today, nil, nil)

	if _, err := svc.RecordDeparture(as(staffActor), RecordDepartureInput{ID: p.ID}); !errors.Is(err, ErrArrivalMissing) {
		t.Fatalf("expected ErrArrivalMissing, got %v", err)
	}
	if _, err := svc.RecordArrival(as(staffActor), RecordArrivalInput{ID: p.ID}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.RecordArrival(as(staffActor), RecordArrivalInput{ID: p.ID}); !errors.Is(err, ErrAlreadyRecorded) {
		t.Fatalf("expected ErrAlreadyRecorded, got %v", err)
	}

	clock.set(today.Add(17*time.Hour + 30*time.Minute))
	done, err := svc.RecordDeparture(as(staffActor), RecordDepartureInput{ID: p.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	worked, state := done.WorkedDuration()
	if state != WorkComplete || worked != 8*time.Hour+30*time.Minute {
		t.Fatalf("expected 8h30m complete, got %s (%s)", worked, state)
	}

	foreign := repo.seed("e2", today, nil, nil)
	if _, err := svc.RecordArrival(as(staffActor), RecordArrivalInput{ID: foreign.ID}); !errors.Is(err, ErrPresenceNotFound) {
		t.Fatalf("expected foreign record hidden, got %v", err)
	}
	if _, err := svc.RecordArrival(as(managerActor), RecordArrivalInput{ID: foreign.ID}); err != nil {
		t.Fatalf("expected manager to record arrival, got %v", err)
	}
}

func TestService_CheckInAndOut(t *testing.T) {
	t.Parallel()

	svc, _, clock := newTestService(today.Add(9 * time.Hour))

	if _, err := svc.Today(as(staffActor)); !errors.Is(err, ErrPresenceNotFound) {
		t.Fatalf("expected no record yet, got %v", err)
	}
	if _, err := svc.CheckOut(as(staffActor)); !errors.Is(err, ErrPresenceNotFound) {
		t.Fatalf("expected ErrPresenceNotFound, got %v", err)
	}

	p, err := svc.CheckIn(as(staffActor))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.EmployeeID != "e1" || p.Status != StatusArrived || p.ArrivalTime.String() != "09:00:00" {
		t.Fatalf("unexpected check-in result %+v", p)
	}
	if _, err := svc.CheckIn(as(staffActor)); !errors.Is(err, ErrAlreadyRecorded) {
		t.Fatalf("expected ErrAlreadyRecorded, got %v", err)
	}

	clock.set(today.Add(17 * time.Hour))
	p, err = svc.CheckOut(as(staffActor))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Status != StatusDeparted {
		t.Fatalf("expected departed, got %s", p.Status)
	}

	current, err := svc.Today(as(staffActor))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if current.ID != p.ID {
		t.Fatalf("expected today's record %s, got %s", p.ID, current.ID)
	}

	if _, err := svc.CheckIn(as(managerActor)); !errors.Is(err, access.ErrPermissionDenied) {
		t.Fatalf("expected manager without employee to be refused, got %v", err)
	}
}

func TestService_CheckIn_ExistingAbsentRecord(t *testing.T) {
	t.Parallel()

	svc, repo, _ := newTestService(today.Add(9 * time.Hour))
	seeded := repo.seed("e1", today, nil, nil)

	p, err := svc.CheckIn(as(staffActor))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != seeded.ID {
		t.Fatalf("expected existing record reused, got %s", p.ID)
	}
}

func TestService_Stats(t *testing.T) {
	t.Parallel()

	svc, repo, _ := newTestService(today.Add(12 * time.Hour))
	repo.seed("e1", today.AddDate(0, 0, -3), tod(9, 0), tod(17, 0))
	repo.seed("e1", today.AddDate(0, 0, -2), tod(8, 0), tod(18, 0))
	repo.seed("e1", today.AddDate(0, 0, -1), nil, nil)
	repo.seed("e1", today, tod(9, 0), nil)
	repo.seed("e1", today.AddDate(0, -1, 0), tod(9, 0), tod(10, 0))
	repo.seed("e2", today, tod(9, 0), tod(10, 0))

	stats, err := svc.Stats(as(staffActor), StatsInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.DaysRecorded != 4 || stats.DaysArrived != 3 || stats.DaysCompleted != 2 {
		t.Fatalf("unexpected counts %+v", stats)
	}
	if stats.TotalWorked != 18*time.Hour || stats.AverageWorked != 9*time.Hour {
		t.Fatalf("unexpected durations total=%s avg=%s", stats.TotalWorked, stats.AverageWorked)
	}
	if !stats.From.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) || !stats.To.Equal(time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected current month range, got %s..%s", stats.From, stats.To)
	}

	if _, err := svc.Stats(as(staffActor), StatsInput{EmployeeID: "e2"}); !errors.Is(err, access.ErrPermissionDenied) {
		t.Fatalf("expected staff refused foreign stats, got %v", err)
	}

	stats, err = svc.Stats(as(managerActor), StatsInput{EmployeeID: "e2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.DaysCompleted != 1 || stats.TotalWorked != time.Hour {
		t.Fatalf("unexpected manager stats %+v", stats)
	}

	from, to := today, today.AddDate(0, 0, -1)
	if _, err := svc.Stats(as(staffActor), StatsInput{From: &from, To: &to}); !errors.Is(err, ErrInvalidDateRange) {
		t.Fatalf("expected ErrInvalidDateRange, got %v", err)
	}
	if _, err := svc.Stats(as(managerActor), StatsInput{EmployeeID: "e404"}); !errors.Is(err, ErrEmployeeNotFound) {
		t.Fatalf("expected ErrEmployeeNotFound, got %v", err)
	}
}

func TestService_Board(t *testing.T) {
	t.Parallel()

	svc, repo, _ := newTestService(today.Add(12 * time.Hour))
	repo.seed("e1", today, tod(9, 0), nil)
	repo.seed("e2", today, tod(9, 0), tod(11, 0))
	repo.seed("e2", today.AddDate(0, 0, -1), nil, nil)

	board, err := svc.Board(as(managerActor), BoardInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(board.Presences) != 2 || board.Arrived != 1 || board.Departed != 1 || board.Absent != 0 {
		t.Fatalf("unexpected board %+v", board)
	}

	if _, err := svc.Board(as(staffActor), BoardInput{}); !errors.Is(err, access.ErrPermissionDenied) {
		t.Fatalf("expected staff refused, got %v", err)
	}

	root := &access.Actor{ID: "root", Role: access.RoleAdmin, Superuser: true}
	if _, err := svc.Board(as(root), BoardInput{}); !errors.Is(err, access.ErrPermissionDenied) {
		t.Fatalf("expected superuser outside groups refused, got %v", err)
	}
}

func asDenial(t *testing.T, err error) *access.Denial {
	t.Helper()
	var denial *access.Denial
	if !errors.As(err, &denial) {
		t.Fatalf("expected denial, got %v", err)
	}
	return denial
}
