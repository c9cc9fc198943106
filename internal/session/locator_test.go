package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/claude/studiotv/internal/models"
	"github.com/claude/studiotv/internal/notify"
	"github.com/claude/studiotv/internal/storage"
	"github.com/google/uuid"
)

// fakeStore is an in-memory Store with per-method error injection.
type fakeStore struct {
	mu sync.Mutex

	candidates    []models.CalendarCandidate
	candidatesErr error

	metas     map[uuid.UUID]*models.Workout
	details   map[uuid.UUID][]models.Exercise
	detailErr map[uuid.UUID]error

	prepared map[uuid.UUID]uuid.UUID // trainee id → workout id
	active   map[uuid.UUID]uuid.UUID
	today    map[uuid.UUID]uuid.UUID

	newestID      uuid.UUID
	newestTrainee *models.Trainee
	newestErr     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		metas:     map[uuid.UUID]*models.Workout{},
		details:   map[uuid.UUID][]models.Exercise{},
		detailErr: map[uuid.UUID]error{},
		prepared:  map[uuid.UUID]uuid.UUID{},
		active:    map[uuid.UUID]uuid.UUID{},
		today:     map[uuid.UUID]uuid.UUID{},
		newestErr: storage.ErrNotFound,
	}
}

func (f *fakeStore) CalendarCandidates(ctx context.Context, trainerID uuid.UUID, now time.Time, limit int) ([]models.CalendarCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.candidatesErr != nil {
		return nil, f.candidatesErr
	}
	return f.candidates, nil
}

func (f *fakeStore) WorkoutMeta(ctx context.Context, workoutID uuid.UUID) (*models.Workout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.metas[workoutID]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, storage.ErrNotFound
}

func (f *fakeStore) WorkoutDetail(ctx context.Context, workoutID uuid.UUID) ([]models.Exercise, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.detailErr[workoutID]; err != nil {
		return nil, err
	}
	return f.details[workoutID], nil
}

func (f *fakeStore) FindPreparedWorkoutToday(ctx context.Context, trainerID, traineeID uuid.UUID, now time.Time) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.prepared[traineeID]; ok {
		return id, nil
	}
	return uuid.Nil, storage.ErrNotFound
}

func (f *fakeStore) FindActiveWorkout(ctx context.Context, trainerID, traineeID uuid.UUID) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.active[traineeID]; ok {
		return id, nil
	}
	return uuid.Nil, storage.ErrNotFound
}

func (f *fakeStore) FindTodayWorkout(ctx context.Context, trainerID, traineeID uuid.UUID, now time.Time) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.today[traineeID]; ok {
		return id, nil
	}
	return uuid.Nil, storage.ErrNotFound
}

func (f *fakeStore) NewestActiveWorkout(ctx context.Context, trainerID uuid.UUID) (uuid.UUID, *models.Trainee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.newestErr != nil {
		return uuid.Nil, nil, f.newestErr
	}
	return f.newestID, f.newestTrainee, nil
}

// fakeNotifier records subscription open/close per workout id.
type fakeNotifier struct {
	mu   sync.Mutex
	subs []*fakeSub
}

type fakeSub struct {
	workoutID uuid.UUID
	events    chan struct{}
	closed    bool
	once      sync.Once
	owner     *fakeNotifier
}

func (n *fakeNotifier) Subscribe(ctx context.Context, workoutID uuid.UUID) notify.Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()
	s := &fakeSub{workoutID: workoutID, events: make(chan struct{}, 1), owner: n}
	n.subs = append(n.subs, s)
	return s
}

func (s *fakeSub) Events() <-chan struct{} { return s.events }

func (s *fakeSub) Close() {
	s.once.Do(func() {
		s.owner.mu.Lock()
		s.closed = true
		s.owner.mu.Unlock()
		close(s.events)
	})
}

func (n *fakeNotifier) open() []*fakeSub {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []*fakeSub
	for _, s := range n.subs {
		if !s.closed {
			out = append(out, s)
		}
	}
	return out
}

var testNow = time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)

func candidate(trainee models.Trainee, start time.Time, end *time.Time, workoutID *uuid.UUID) models.CalendarCandidate {
	return models.CalendarCandidate{
		ID:        uuid.New(),
		TraineeID: trainee.ID,
		WorkoutID: workoutID,
		StartTime: start,
		EndTime:   end,
		Trainee:   trainee,
	}
}

func loggedSet(weight float64, reps int) models.Set {
	return models.Set{ID: uuid.New(), SetNumber: 1, Weight: &weight, Reps: &reps}
}

func addWorkout(store *fakeStore, date time.Time, exercises ...models.Exercise) uuid.UUID {
	id := uuid.New()
	store.metas[id] = &models.Workout{ID: id, WorkoutDate: date}
	store.details[id] = exercises
	return id
}

func newTestLocator(store *fakeStore, n notify.Notifier) *Locator {
	l := NewLocator(store, n, uuid.New(), time.Minute, 10, slog.Default())
	l.clock = func() time.Time { return testNow }
	return l
}

func logContains(l *Locator, substr string) bool {
	for _, e := range l.StatusLog().Entries() {
		if strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

// TestResolvePicksRunningCandidate verifies that the first candidate still
// running at now wins over a newer candidate that already ended.
func TestResolvePicksRunningCandidate(t *testing.T) {
	store := newFakeStore()
	ended := models.Trainee{ID: uuid.New(), FullName: "Ended Earlier"}
	running := models.Trainee{ID: uuid.New(), FullName: "Still Running"}

	endedAt := testNow.Add(-10 * time.Minute)
	runningEnd := testNow.Add(20 * time.Minute)
	endedWorkout := addWorkout(store, testNow)
	runningWorkout := addWorkout(store, testNow)

	// Newest first, as the query returns them.
	store.candidates = []models.CalendarCandidate{
		candidate(ended, testNow.Add(-time.Hour), &endedAt, &endedWorkout),
		candidate(running, testNow.Add(-90*time.Minute), &runningEnd, &runningWorkout),
	}

	l := newTestLocator(store, nil)
	l.Resolve(context.Background(), testNow)

	s := l.Session()
	if s == nil {
		t.Fatal("session = nil, want resolved")
	}
	if s.Trainee.FullName != "Still Running" {
		t.Errorf("trainee = %q, want the running candidate", s.Trainee.FullName)
	}
	if s.Workout.ID != runningWorkout {
		t.Errorf("workout = %v, want %v", s.Workout.ID, runningWorkout)
	}
	if s.CalendarEvent == nil {
		t.Error("calendar event should be attached")
	}
}

// TestResolveFallsBackToNewestCandidate verifies that with no running event
// the newest candidate is selected.
func TestResolveFallsBackToNewestCandidate(t *testing.T) {
	store := newFakeStore()
	newest := models.Trainee{ID: uuid.New(), FullName: "Newest"}
	older := models.Trainee{ID: uuid.New(), FullName: "Older"}

	w1 := addWorkout(store, testNow)
	w2 := addWorkout(store, testNow)
	e1 := testNow.Add(-time.Hour)
	e2 := testNow.Add(-3 * time.Hour)
	store.candidates = []models.CalendarCandidate{
		candidate(newest, testNow.Add(-2*time.Hour), &e1, &w1),
		candidate(older, testNow.Add(-4*time.Hour), &e2, &w2),
	}

	l := newTestLocator(store, nil)
	l.Resolve(context.Background(), testNow)

	if s := l.Session(); s == nil || s.Trainee.FullName != "Newest" {
		t.Fatalf("session trainee = %v, want Newest", s)
	}
}

// TestPreparedWorkoutPreference verifies that a workout the trainer prepared
// today replaces whatever the calendar event links.
func TestPreparedWorkoutPreference(t *testing.T) {
	store := newFakeStore()
	trainee := models.Trainee{ID: uuid.New(), FullName: "Dana Levi"}
	linked := addWorkout(store, testNow)
	prepared := addWorkout(store, testNow)
	store.prepared[trainee.ID] = prepared

	end := testNow.Add(30 * time.Minute)
	store.candidates = []models.CalendarCandidate{
		candidate(trainee, testNow.Add(-30*time.Minute), &end, &linked),
	}

	l := newTestLocator(store, nil)
	l.Resolve(context.Background(), testNow)

	s := l.Session()
	if s == nil || s.Workout.ID != prepared {
		t.Fatalf("workout = %v, want the prepared workout %v", s.WorkoutID(), prepared)
	}
	if !logContains(l, "prepared workout") {
		t.Error("status log should mention the prepared workout preference")
	}
}

// TestFallbackWorkoutChain verifies the unlinked-event fallback: newest
// active workout first, today's workout second.
func TestFallbackWorkoutChain(t *testing.T) {
	store := newFakeStore()
	trainee := models.Trainee{ID: uuid.New(), FullName: "Dana Levi"}
	end := testNow.Add(30 * time.Minute)
	store.candidates = []models.CalendarCandidate{
		candidate(trainee, testNow.Add(-30*time.Minute), &end, nil),
	}

	todayWorkout := addWorkout(store, testNow)
	store.today[trainee.ID] = todayWorkout

	l := newTestLocator(store, nil)
	l.Resolve(context.Background(), testNow)

	if s := l.Session(); s == nil || s.Workout.ID != todayWorkout {
		t.Fatalf("workout = %v, want today's workout %v", s.WorkoutID(), todayWorkout)
	}

	// An active workout beats today's workout.
	activeWorkout := addWorkout(store, testNow)
	store.active[trainee.ID] = activeWorkout
	l.Resolve(context.Background(), testNow)

	if s := l.Session(); s.Workout.ID != activeWorkout {
		t.Errorf("workout = %v, want the active workout %v", s.Workout.ID, activeWorkout)
	}
}

// TestResolveNoWorkoutKeepsSession verifies that an event with no attachable
// workout retains the previously resolved session.
func TestResolveNoWorkoutKeepsSession(t *testing.T) {
	store := newFakeStore()
	trainee := models.Trainee{ID: uuid.New(), FullName: "Dana Levi"}
	workout := addWorkout(store, testNow)
	end := testNow.Add(30 * time.Minute)
	store.candidates = []models.CalendarCandidate{
		candidate(trainee, testNow.Add(-30*time.Minute), &end, &workout),
	}

	l := newTestLocator(store, nil)
	l.Resolve(context.Background(), testNow)
	if l.Session() == nil {
		t.Fatal("expected a session after first resolve")
	}

	// The linked workout vanishes and no fallback exists.
	store.mu.Lock()
	store.candidates[0].WorkoutID = nil
	delete(store.metas, workout)
	delete(store.details, workout)
	store.mu.Unlock()

	l.Resolve(context.Background(), testNow)
	if s := l.Session(); s == nil || s.Workout.ID != workout {
		t.Errorf("session = %v, want the previous session kept", s)
	}
}

// TestCandidateErrorRetainsSession verifies that a failing calendar query
// never discards an established session and surfaces an error only when no
// session exists yet.
func TestCandidateErrorRetainsSession(t *testing.T) {
	store := newFakeStore()
	trainee := models.Trainee{ID: uuid.New(), FullName: "Dana Levi"}
	workout := addWorkout(store, testNow)
	end := testNow.Add(30 * time.Minute)
	store.candidates = []models.CalendarCandidate{
		candidate(trainee, testNow.Add(-30*time.Minute), &end, &workout),
	}

	l := newTestLocator(store, nil)
	l.Resolve(context.Background(), testNow)

	store.mu.Lock()
	store.candidatesErr = context.DeadlineExceeded
	store.mu.Unlock()

	l.Resolve(context.Background(), testNow)
	st := l.State()
	if st.Session == nil {
		t.Fatal("session dropped on transient query failure")
	}
	if st.Error != "" {
		t.Errorf("error = %q, want empty while a session is shown", st.Error)
	}

	// Without an established session, the same failure is user-visible.
	fresh := newTestLocator(store, nil)
	fresh.Resolve(context.Background(), testNow)
	if st := fresh.State(); st.Error == "" {
		t.Error("expected a visible error when no session was ever resolved")
	}
}

// TestEmptyCandidatesTrainerWideFallback verifies that with no calendar
// candidates the newest active workout across all trainees is shown.
func TestEmptyCandidatesTrainerWideFallback(t *testing.T) {
	store := newFakeStore()
	trainee := models.Trainee{ID: uuid.New(), FullName: "Walk-in"}
	workout := addWorkout(store, testNow)
	store.newestID = workout
	store.newestTrainee = &trainee
	store.newestErr = nil

	l := newTestLocator(store, nil)
	l.Resolve(context.Background(), testNow)

	s := l.Session()
	if s == nil || s.Workout.ID != workout {
		t.Fatalf("session = %v, want the trainer-wide active workout", s)
	}
	if s.CalendarEvent != nil {
		t.Error("calendar event should be nil for a calendar-less session")
	}
}

// TestEmptyCandidatesClearsSession verifies that nothing scheduled and
// nothing active clears the display as a normal, non-error state.
func TestEmptyCandidatesClearsSession(t *testing.T) {
	store := newFakeStore()
	trainee := models.Trainee{ID: uuid.New(), FullName: "Dana Levi"}
	workout := addWorkout(store, testNow)
	end := testNow.Add(30 * time.Minute)
	store.candidates = []models.CalendarCandidate{
		candidate(trainee, testNow.Add(-30*time.Minute), &end, &workout),
	}

	l := newTestLocator(store, nil)
	l.Resolve(context.Background(), testNow)
	if l.Session() == nil {
		t.Fatal("expected a session after first resolve")
	}

	store.mu.Lock()
	store.candidates = nil
	store.mu.Unlock()

	l.Resolve(context.Background(), testNow)
	st := l.State()
	if st.Session != nil {
		t.Error("session should clear when nothing is scheduled or active")
	}
	if st.Error != "" {
		t.Errorf("error = %q, want empty: an idle studio is not an error", st.Error)
	}
	if !logContains(l, "no synced calendar events") {
		t.Error("status log should record the idle state")
	}
}

// TestDetailFailureKeepsCurrentWorkout verifies that a failing detail load
// degrades to the previously loaded workout rather than flashing it away.
func TestDetailFailureKeepsCurrentWorkout(t *testing.T) {
	store := newFakeStore()
	trainee := models.Trainee{ID: uuid.New(), FullName: "Dana Levi"}
	workout := addWorkout(store, testNow, models.Exercise{ID: uuid.New(), Name: "Squat", Sets: []models.Set{loggedSet(100, 5)}})
	end := testNow.Add(30 * time.Minute)
	store.candidates = []models.CalendarCandidate{
		candidate(trainee, testNow.Add(-30*time.Minute), &end, &workout),
	}

	l := newTestLocator(store, nil)
	l.Resolve(context.Background(), testNow)

	store.mu.Lock()
	store.detailErr[workout] = context.DeadlineExceeded
	store.mu.Unlock()

	l.Resolve(context.Background(), testNow)
	s := l.Session()
	if s == nil || s.Workout.ID != workout {
		t.Fatal("session should keep the current workout through a detail failure")
	}
	if len(s.Workout.Exercises) != 1 {
		t.Errorf("exercises = %d, want the previously loaded detail kept", len(s.Workout.Exercises))
	}
}

// TestEmptyDetailKeepsPreviousExercises verifies that an empty (but
// successful) detail read for the same workout keeps the previously seen
// exercises instead of blanking the screen.
func TestEmptyDetailKeepsPreviousExercises(t *testing.T) {
	store := newFakeStore()
	trainee := models.Trainee{ID: uuid.New(), FullName: "Dana Levi"}
	workout := addWorkout(store, testNow, models.Exercise{ID: uuid.New(), Name: "Squat"})
	end := testNow.Add(30 * time.Minute)
	store.candidates = []models.CalendarCandidate{
		candidate(trainee, testNow.Add(-30*time.Minute), &end, &workout),
	}

	l := newTestLocator(store, nil)
	l.Resolve(context.Background(), testNow)

	store.mu.Lock()
	store.details[workout] = nil
	store.mu.Unlock()

	l.Resolve(context.Background(), testNow)
	if s := l.Session(); len(s.Workout.Exercises) != 1 {
		t.Errorf("exercises = %d, want previous detail retained", len(s.Workout.Exercises))
	}
}

// TestReloadExercisesPartial verifies the push path replaces only the
// workout's exercises and leaves identity untouched.
func TestReloadExercisesPartial(t *testing.T) {
	store := newFakeStore()
	trainee := models.Trainee{ID: uuid.New(), FullName: "Dana Levi"}
	workout := addWorkout(store, testNow, models.Exercise{ID: uuid.New(), Name: "Squat"})
	end := testNow.Add(30 * time.Minute)
	store.candidates = []models.CalendarCandidate{
		candidate(trainee, testNow.Add(-30*time.Minute), &end, &workout),
	}

	l := newTestLocator(store, nil)
	l.Resolve(context.Background(), testNow)

	before := l.Session()
	store.mu.Lock()
	store.details[workout] = []models.Exercise{
		{ID: uuid.New(), Name: "Squat", Sets: []models.Set{loggedSet(100, 5)}},
		{ID: uuid.New(), Name: "Bench Press"},
	}
	store.mu.Unlock()

	l.ReloadExercises(context.Background())

	after := l.Session()
	if after == before {
		t.Fatal("snapshot should be replaced, not mutated")
	}
	if after.Trainee != before.Trainee || after.CalendarEvent != before.CalendarEvent {
		t.Error("identity fields must be untouched by a partial reload")
	}
	if len(after.Workout.Exercises) != 2 {
		t.Errorf("exercises = %d, want 2", len(after.Workout.Exercises))
	}
	if !after.Workout.WorkoutDate.Equal(before.Workout.WorkoutDate) {
		t.Error("workout header fields must survive a partial reload")
	}
}

// TestReloadExercisesWithoutSession verifies the push path is a no-op with
// nothing live.
func TestReloadExercisesWithoutSession(t *testing.T) {
	l := newTestLocator(newFakeStore(), nil)
	l.ReloadExercises(context.Background())
	if l.Session() != nil {
		t.Error("session should stay nil")
	}
}

// TestPollIntervalClamp verifies that a configured interval below the floor
// is clamped up.
func TestPollIntervalClamp(t *testing.T) {
	l := NewLocator(newFakeStore(), nil, uuid.New(), 5*time.Second, 10, slog.Default())
	if l.pollInterval != MinPollInterval {
		t.Errorf("pollInterval = %v, want clamped to %v", l.pollInterval, MinPollInterval)
	}

	l = NewLocator(newFakeStore(), nil, uuid.New(), 2*time.Minute, 10, slog.Default())
	if l.pollInterval != 2*time.Minute {
		t.Errorf("pollInterval = %v, want the configured 2m", l.pollInterval)
	}
}

// TestUpdatesSignalled verifies each registered consumer is signalled on a
// snapshot change.
func TestUpdatesSignalled(t *testing.T) {
	store := newFakeStore()
	trainee := models.Trainee{ID: uuid.New(), FullName: "Dana Levi"}
	workout := addWorkout(store, testNow)
	end := testNow.Add(30 * time.Minute)
	store.candidates = []models.CalendarCandidate{
		candidate(trainee, testNow.Add(-30*time.Minute), &end, &workout),
	}

	l := newTestLocator(store, nil)
	a := l.Updates()
	b := l.Updates()

	l.Resolve(context.Background(), testNow)

	for name, ch := range map[string]<-chan struct{}{"a": a, "b": b} {
		select {
		case <-ch:
		default:
			t.Errorf("consumer %s not signalled", name)
		}
	}
}

// TestSubscriptionFollowsWorkout verifies teardown-then-open on workout id
// changes: at most one subscription is open, always for the live workout.
func TestSubscriptionFollowsWorkout(t *testing.T) {
	store := newFakeStore()
	n := &fakeNotifier{}
	trainee := models.Trainee{ID: uuid.New(), FullName: "Dana Levi"}
	first := addWorkout(store, testNow)
	end := testNow.Add(30 * time.Minute)
	store.candidates = []models.CalendarCandidate{
		candidate(trainee, testNow.Add(-30*time.Minute), &end, &first),
	}

	l := newTestLocator(store, n)
	l.Resolve(context.Background(), testNow)

	open := n.open()
	if len(open) != 1 || open[0].workoutID != first {
		t.Fatalf("open subs = %v, want one for %v", open, first)
	}

	second := addWorkout(store, testNow)
	store.mu.Lock()
	store.candidates[0].WorkoutID = &second
	store.mu.Unlock()

	l.Resolve(context.Background(), testNow)

	open = n.open()
	if len(open) != 1 || open[0].workoutID != second {
		t.Fatalf("open subs after switch = %v, want one for %v", open, second)
	}

	// Session gone → subscription gone.
	store.mu.Lock()
	store.candidates = nil
	store.mu.Unlock()
	l.Resolve(context.Background(), testNow)

	if open = n.open(); len(open) != 0 {
		t.Errorf("open subs with no session = %d, want 0", len(open))
	}
}

// TestResolveIdempotent verifies that re-resolving unchanged inputs keeps an
// equivalent session and does not flap state.
func TestResolveIdempotent(t *testing.T) {
	store := newFakeStore()
	trainee := models.Trainee{ID: uuid.New(), FullName: "Dana Levi"}
	workout := addWorkout(store, testNow, models.Exercise{ID: uuid.New(), Name: "Squat"})
	end := testNow.Add(30 * time.Minute)
	store.candidates = []models.CalendarCandidate{
		candidate(trainee, testNow.Add(-30*time.Minute), &end, &workout),
	}

	l := newTestLocator(store, nil)
	l.Resolve(context.Background(), testNow)
	first := l.Session()
	l.Resolve(context.Background(), testNow)
	second := l.Session()

	if second.Trainee.ID != first.Trainee.ID || second.Workout.ID != first.Workout.ID {
		t.Error("re-resolve with unchanged inputs changed session identity")
	}
	if st := l.State(); st.Loading || st.Error != "" {
		t.Errorf("state after resolves = loading=%v error=%q, want settled", st.Loading, st.Error)
	}
}
