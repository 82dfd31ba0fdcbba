package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/arbor-coach/arbor/server/internal/model"
	"github.com/arbor-coach/arbor/server/internal/store"
)

// Run exercises a compliance suite against a store.Store implementation.
// Implementations should provide a clean, isolated store from makeStore.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	s := makeStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// Unique test identifiers
	userID := "u-" + uuid.New().String()
	email := userID + "@example.test"

	// Users
	u := &model.User{UserID: userID, Email: email, TimeZone: "UTC"}
	if _, err := s.Users().Create(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if got, err := s.Users().Get(ctx, userID); err != nil || got == nil || got.UserID != userID {
		t.Fatalf("GetUser: got=%v err=%v", got, err)
	}
	if err := s.Users().TouchLastActive(ctx, userID, now); err != nil {
		t.Fatalf("TouchLastActive: %v", err)
	}
	if got, err := s.Users().Get(ctx, userID); err != nil || got.LastActiveTime == nil {
		t.Fatalf("GetUser after touch: got=%v err=%v", got, err)
	}
	if lst, err := s.Users().ListActive(ctx); err != nil || len(lst) == 0 {
		t.Fatalf("ListActive: n=%d err=%v", len(lst), err)
	}

	// Projects
	p, err := s.Projects().Create(ctx, &model.Project{UserID: userID, Name: "garden"})
	if err != nil || p.ProjectID == "" {
		t.Fatalf("CreateProject: p=%v err=%v", p, err)
	}
	if lst, err := s.Projects().List(ctx, userID); err != nil || len(lst) != 1 {
		t.Fatalf("ListProjects: n=%d err=%v", len(lst), err)
	}

	// Tasks
	due := now.Add(2 * time.Hour)
	t1, err := s.Tasks().Create(ctx, &model.Task{UserID: userID, Domain: "health", Title: "run 5k", DueTime: &due})
	if err != nil {
		t.Fatalf("CreateTask t1: %v", err)
	}
	cadence := 2
	t2, err := s.Tasks().Create(ctx, &model.Task{UserID: userID, Domain: "health", Title: "stretch", CadenceDays: &cadence})
	if err != nil {
		t.Fatalf("CreateTask t2: %v", err)
	}
	if lst, err := s.Tasks().List(ctx, userID, 0); err != nil || len(lst) != 2 {
		t.Fatalf("ListTasks: n=%d err=%v", len(lst), err)
	}
	if lst, err := s.Tasks().ListDue(ctx, userID, now.Add(24*time.Hour)); err != nil || len(lst) != 1 || lst[0].TaskID != t1.TaskID {
		t.Fatalf("ListDue: n=%d err=%v", len(lst), err)
	}
	if err := s.Tasks().UpdateStatus(ctx, userID, t1.TaskID, model.TaskInProgress, now); err != nil {
		t.Fatalf("UpdateStatus in_progress: %v", err)
	}
	if err := s.Tasks().UpdateStatus(ctx, userID, t2.TaskID, model.TaskDone, now); err != nil {
		t.Fatalf("UpdateStatus done: %v", err)
	}
	if err := s.Tasks().UpdateStatus(ctx, userID, "missing-task", model.TaskDone, now); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("UpdateStatus missing: err=%v", err)
	}

	// Status filtering happens in the query: the newest task is todo, yet a
	// filtered list with limit 1 still finds the older in-progress one.
	t3, err := s.Tasks().Create(ctx, &model.Task{UserID: userID, Domain: "home", Title: "fix the gate"})
	if err != nil {
		t.Fatalf("CreateTask t3: %v", err)
	}
	if lst, err := s.Tasks().ListByStatus(ctx, userID, model.TaskInProgress, 1); err != nil || len(lst) != 1 || lst[0].TaskID != t1.TaskID {
		t.Fatalf("ListByStatus in_progress: n=%d err=%v", len(lst), err)
	}
	if lst, err := s.Tasks().ListByStatus(ctx, userID, model.TaskDone, 0); err != nil || len(lst) != 1 || lst[0].TaskID != t2.TaskID {
		t.Fatalf("ListByStatus done: n=%d err=%v", len(lst), err)
	}
	if lst, err := s.Tasks().ListByStatus(ctx, userID, model.TaskTodo, 0); err != nil || len(lst) != 1 || lst[0].TaskID != t3.TaskID {
		t.Fatalf("ListByStatus todo: n=%d err=%v", len(lst), err)
	}

	stats, err := s.Tasks().DomainStats(ctx, userID, now.Add(time.Minute))
	if err != nil || len(stats) == 0 {
		t.Fatalf("DomainStats: n=%d err=%v", len(stats), err)
	}
	if stats[0].Domain != "health" || stats[0].Completions7d != 1 {
		t.Fatalf("DomainStats content: %+v", stats[0])
	}

	rec, err := s.Tasks().RecurringStats(ctx, userID, now.Add(time.Minute))
	if err != nil || len(rec) != 1 || rec[0].TaskID != t2.TaskID || rec[0].DoneCount != 1 {
		t.Fatalf("RecurringStats: %+v err=%v", rec, err)
	}

	// Notes
	if _, err := s.Notes().Create(ctx, &model.Note{UserID: userID, Title: "meal plan", Content: "more vegetables"}); err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
	if lst, err := s.Notes().ListRecent(ctx, userID, 10); err != nil || len(lst) != 1 {
		t.Fatalf("ListRecent: n=%d err=%v", len(lst), err)
	}
	if lst, err := s.Notes().Search(ctx, userID, "vegetable", 10); err != nil || len(lst) != 1 {
		t.Fatalf("SearchNotes: n=%d err=%v", len(lst), err)
	}
	if lst, err := s.Notes().Search(ctx, userID, "zeppelin", 10); err != nil || len(lst) != 0 {
		t.Fatalf("SearchNotes miss: n=%d err=%v", len(lst), err)
	}

	// Profiles
	if _, err := s.Profiles().Get(ctx, userID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("GetProfile before put: err=%v", err)
	}
	if _, err := s.Profiles().Put(ctx, &model.Profile{UserID: userID, Summary: "training for a race", Goals: []string{"run 10k"}}); err != nil {
		t.Fatalf("PutProfile: %v", err)
	}
	if got, err := s.Profiles().Get(ctx, userID); err != nil || got.Summary == "" || len(got.Goals) != 1 {
		t.Fatalf("GetProfile: got=%v err=%v", got, err)
	}

	// Conversations are created lazily and are stable per scope.
	c1, err := s.Conversations().GetOrCreate(ctx, userID, model.ScopeGlobal, nil)
	if err != nil || c1.ConversationID == "" {
		t.Fatalf("GetOrCreate: c=%v err=%v", c1, err)
	}
	c2, err := s.Conversations().GetOrCreate(ctx, userID, model.ScopeGlobal, nil)
	if err != nil || c2.ConversationID != c1.ConversationID {
		t.Fatalf("GetOrCreate second: c=%v err=%v", c2, err)
	}
	cp, err := s.Conversations().GetOrCreate(ctx, userID, model.ScopeProject, &p.ProjectID)
	if err != nil || cp.ConversationID == c1.ConversationID {
		t.Fatalf("GetOrCreate project scope: c=%v err=%v", cp, err)
	}

	// Concurrent first use of a fresh scope must converge on one conversation;
	// losers of the insert race pick up the winner's row instead of erroring.
	raceIDs := make(chan string, 8)
	raceErrs := make(chan error, 8)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := s.Conversations().GetOrCreate(ctx, userID, model.ScopeTasks, nil)
			if err != nil {
				raceErrs <- err
				return
			}
			raceIDs <- c.ConversationID
		}()
	}
	wg.Wait()
	close(raceIDs)
	close(raceErrs)
	for err := range raceErrs {
		t.Fatalf("GetOrCreate concurrent: %v", err)
	}
	distinct := map[string]bool{}
	for id := range raceIDs {
		distinct[id] = true
	}
	if len(distinct) != 1 {
		t.Fatalf("GetOrCreate concurrent: %d distinct conversations", len(distinct))
	}

	// Messages: append-only, ordered, count maintained.
	var lastID string
	for i, content := range []string{"hello", "hi there", "how are my tasks?"} {
		role := model.RoleUser
		if i == 1 {
			role = model.RoleAssistant
		}
		m, err := s.Messages().Append(ctx, &model.Message{ConversationID: c1.ConversationID, Role: role, Content: content})
		if err != nil {
			t.Fatalf("AppendMessage %d: %v", i, err)
		}
		lastID = m.MessageID
	}
	if got, err := s.Conversations().GetByID(ctx, c1.ConversationID); err != nil || got.MessageCount != 3 {
		t.Fatalf("MessageCount: got=%v err=%v", got, err)
	}
	msgs, err := s.Messages().List(ctx, model.ListMessagesRequest{ConversationID: c1.ConversationID})
	if err != nil || len(msgs) != 3 || msgs[0].Content != "hello" || msgs[2].MessageID != lastID {
		t.Fatalf("ListMessages: n=%d err=%v", len(msgs), err)
	}

	if err := s.Conversations().UpdateSummary(ctx, c1.ConversationID, "greeted each other", msgs[1].MessageID, now); err != nil {
		t.Fatalf("UpdateSummary: %v", err)
	}
	pruned, err := s.Messages().DeleteThrough(ctx, c1.ConversationID, msgs[1].MessageID)
	if err != nil || pruned != 2 {
		t.Fatalf("DeleteThrough: pruned=%d err=%v", pruned, err)
	}
	if got, err := s.Conversations().GetByID(ctx, c1.ConversationID); err != nil || got.MessageCount != 1 || got.Summary == nil {
		t.Fatalf("after prune: got=%v err=%v", got, err)
	}

	// Observations: dedup on (user, type, evidence key) for live rows.
	o1, err := s.Observations().Insert(ctx, &model.Observation{
		UserID: userID, Type: model.ObsStuck, Content: "3 tasks stuck",
		EvidenceKey: "t1,t2,t3", Priority: model.PriorityHigh,
		DataSummary: map[string]interface{}{"count": 3},
	})
	if err != nil {
		t.Fatalf("InsertObservation: %v", err)
	}
	if _, err := s.Observations().Insert(ctx, &model.Observation{
		UserID: userID, Type: model.ObsStuck, Content: "3 tasks stuck again",
		EvidenceKey: "t1,t2,t3", Priority: model.PriorityHigh,
	}); !errors.Is(err, model.ErrDuplicate) {
		t.Fatalf("InsertObservation dup: err=%v", err)
	}
	if _, err := s.Observations().Insert(ctx, &model.Observation{
		UserID: userID, Type: model.ObsWin, Content: "health is up",
		EvidenceKey: "health", Priority: model.PriorityLow,
	}); err != nil {
		t.Fatalf("InsertObservation win: %v", err)
	}

	uns, err := s.Observations().ListUnsurfaced(ctx, userID, 3)
	if err != nil || len(uns) != 2 || uns[0].Priority != model.PriorityHigh {
		t.Fatalf("ListUnsurfaced: n=%d err=%v", len(uns), err)
	}

	if err := s.Observations().MarkSurfaced(ctx, userID, o1.ObservationID, now); err != nil {
		t.Fatalf("MarkSurfaced: %v", err)
	}
	// surfacing again must not move the timestamp
	if err := s.Observations().MarkSurfaced(ctx, userID, o1.ObservationID, now.Add(time.Hour)); err != nil {
		t.Fatalf("MarkSurfaced twice: %v", err)
	}
	all, err := s.Observations().List(ctx, userID, true)
	if err != nil {
		t.Fatalf("ListObservations: %v", err)
	}
	for _, o := range all {
		if o.ObservationID == o1.ObservationID {
			if o.SurfacedTime == nil {
				t.Fatalf("observation not surfaced: %+v", o)
			}
			if d := o.SurfacedTime.Sub(now); d < -time.Second || d > time.Second {
				t.Fatalf("surfaced time moved: %v vs %v", o.SurfacedTime, now)
			}
		}
	}
	// With o1 surfaced, the same evidence may be re-detected.
	if _, err := s.Observations().Insert(ctx, &model.Observation{
		UserID: userID, Type: model.ObsStuck, Content: "still stuck",
		EvidenceKey: "t1,t2,t3", Priority: model.PriorityHigh,
	}); err != nil {
		t.Fatalf("InsertObservation after surface: %v", err)
	}

	uns, err = s.Observations().ListUnsurfaced(ctx, userID, 0)
	if err != nil || len(uns) != 2 {
		t.Fatalf("ListUnsurfaced after surface: n=%d err=%v", len(uns), err)
	}
	if err := s.Observations().Dismiss(ctx, userID, uns[1].ObservationID); err != nil {
		t.Fatalf("Dismiss: %v", err)
	}
	if err := s.Observations().Dismiss(ctx, userID, "missing-obs"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("Dismiss missing: err=%v", err)
	}

	// Notification marks: first writer wins, rerun is a no-op.
	ok, err := s.Notifications().MarkSent(ctx, userID, model.NotifyCheckIn, "2026-08-31", now)
	if err != nil || !ok {
		t.Fatalf("MarkSent: ok=%v err=%v", ok, err)
	}
	ok, err = s.Notifications().MarkSent(ctx, userID, model.NotifyCheckIn, "2026-08-31", now)
	if err != nil || ok {
		t.Fatalf("MarkSent dup: ok=%v err=%v", ok, err)
	}
	sent, err := s.Notifications().SentSince(ctx, userID, model.NotifyCheckIn, now.AddDate(0, 0, -7))
	if err != nil || !sent {
		t.Fatalf("SentSince: sent=%v err=%v", sent, err)
	}
	sent, err = s.Notifications().SentSince(ctx, userID, model.NotifyObservation, now.AddDate(0, 0, -7))
	if err != nil || sent {
		t.Fatalf("SentSince other type: sent=%v err=%v", sent, err)
	}
}
