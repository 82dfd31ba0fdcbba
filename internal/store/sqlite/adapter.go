package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/arbor-coach/arbor/server/internal/model"
	"github.com/arbor-coach/arbor/server/internal/store"
)

// New constructs a SQLite-backed store at the given path.
func New(path string) (store.Store, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	return NewWithDB(db), nil
}

// NewWithDB allows wiring with an existing connection (used by tests).
func NewWithDB(db *sql.DB) store.Store { return &sqliteStore{db: db} }

type sqliteStore struct{ db *sql.DB }

func (s *sqliteStore) Users() store.Users                 { return &users{db: s.db} }
func (s *sqliteStore) Tasks() store.Tasks                 { return &tasks{db: s.db} }
func (s *sqliteStore) Notes() store.Notes                 { return &notes{db: s.db} }
func (s *sqliteStore) Projects() store.Projects           { return &projects{db: s.db} }
func (s *sqliteStore) Profiles() store.Profiles           { return &profiles{db: s.db} }
func (s *sqliteStore) Conversations() store.Conversations { return &conversations{db: s.db} }
func (s *sqliteStore) Messages() store.Messages           { return &messages{db: s.db} }
func (s *sqliteStore) Observations() store.Observations   { return &observations{db: s.db} }
func (s *sqliteStore) Notifications() store.Notifications { return &notifications{db: s.db} }

// HealthPing implements health.HealthPinger.
func (s *sqliteStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrNotFound
	}
	return err
}

// --- Users ---

type users struct{ db *sql.DB }

func (u *users) Create(ctx context.Context, m *model.User) (*model.User, error) {
	now := time.Now().UTC()
	_, err := u.db.ExecContext(ctx, `
        INSERT INTO users (user_id, email, display_name, time_zone, status, creation_time)
        VALUES (?,?,?,?,'ACTIVE',?)`,
		m.UserID, m.Email, m.DisplayName, m.TimeZone, now)
	if err != nil {
		return nil, err
	}
	out := *m
	out.Status = "ACTIVE"
	out.CreationTime = now
	return &out, nil
}

func (u *users) Get(ctx context.Context, userID string) (*model.User, error) {
	row := u.db.QueryRowContext(ctx, `
        SELECT user_id, email, display_name, time_zone, status, creation_time, last_active_time
        FROM users WHERE user_id = ?`, userID)
	var out model.User
	if err := row.Scan(&out.UserID, &out.Email, &out.DisplayName, &out.TimeZone, &out.Status, &out.CreationTime, &out.LastActiveTime); err != nil {
		return nil, notFound(err)
	}
	return &out, nil
}

func (u *users) ListActive(ctx context.Context) ([]*model.User, error) {
	rows, err := u.db.QueryContext(ctx, `
        SELECT user_id, email, display_name, time_zone, status, creation_time, last_active_time
        FROM users WHERE status = 'ACTIVE' ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.User
	for rows.Next() {
		var m model.User
		if err := rows.Scan(&m.UserID, &m.Email, &m.DisplayName, &m.TimeZone, &m.Status, &m.CreationTime, &m.LastActiveTime); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (u *users) TouchLastActive(ctx context.Context, userID string, at time.Time) error {
	_, err := u.db.ExecContext(ctx,
		`UPDATE users SET last_active_time = ? WHERE user_id = ?`, at.UTC(), userID)
	return err
}

// --- Tasks ---

type tasks struct{ db *sql.DB }

const taskColumns = `task_id, user_id, project_id, domain, title, status, due_time, creation_time, started_time, done_time, cadence_days`

func scanTask(sc interface{ Scan(...interface{}) error }) (*model.Task, error) {
	var t model.Task
	if err := sc.Scan(&t.TaskID, &t.UserID, &t.ProjectID, &t.Domain, &t.Title, &t.Status,
		&t.DueTime, &t.CreationTime, &t.StartedTime, &t.DoneTime, &t.CadenceDays); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *tasks) Create(ctx context.Context, t *model.Task) (*model.Task, error) {
	id := t.TaskID
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()
	domain := t.Domain
	if domain == "" {
		domain = "general"
	}
	status := t.Status
	if status == "" {
		status = model.TaskTodo
	}
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO tasks (task_id, user_id, project_id, domain, title, status, due_time, creation_time, started_time, cadence_days)
        VALUES (?,?,?,?,?,?,?,?,?,?)`,
		id, t.UserID, t.ProjectID, domain, t.Title, status, t.DueTime, now, t.StartedTime, t.CadenceDays)
	if err != nil {
		return nil, err
	}
	out := *t
	out.TaskID = id
	out.Domain = domain
	out.Status = status
	out.CreationTime = now
	return &out, nil
}

func (r *tasks) List(ctx context.Context, userID string, limit int) ([]*model.Task, error) {
	q := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = ? ORDER BY creation_time DESC`
	args := []interface{}{userID}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *tasks) ListByStatus(ctx context.Context, userID string, status model.TaskStatus, limit int) ([]*model.Task, error) {
	q := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = ? AND status = ? ORDER BY creation_time DESC`
	args := []interface{}{userID, status}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *tasks) ListDue(ctx context.Context, userID string, by time.Time) ([]*model.Task, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT `+taskColumns+` FROM tasks
        WHERE user_id = ? AND status IN ('todo','in_progress') AND due_time IS NOT NULL AND due_time <= ?
        ORDER BY due_time ASC`, userID, by.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *tasks) UpdateStatus(ctx context.Context, userID, taskID string, status model.TaskStatus, at time.Time) error {
	at = at.UTC()
	var res sql.Result
	var err error
	switch status {
	case model.TaskInProgress:
		res, err = r.db.ExecContext(ctx,
			`UPDATE tasks SET status = ?, started_time = COALESCE(started_time, ?) WHERE user_id = ? AND task_id = ?`,
			status, at, userID, taskID)
	case model.TaskDone:
		res, err = r.db.ExecContext(ctx,
			`UPDATE tasks SET status = ?, done_time = ? WHERE user_id = ? AND task_id = ?`,
			status, at, userID, taskID)
	default:
		res, err = r.db.ExecContext(ctx,
			`UPDATE tasks SET status = ? WHERE user_id = ? AND task_id = ?`,
			status, userID, taskID)
	}
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	if status == model.TaskDone {
		// Recurring tasks accumulate completions; the adherence stats read them.
		_, err = r.db.ExecContext(ctx, `
            INSERT INTO task_completions (task_id, user_id, done_time)
            SELECT task_id, user_id, ? FROM tasks WHERE task_id = ? AND cadence_days IS NOT NULL`,
			at, taskID)
	}
	return err
}

func (r *tasks) DomainStats(ctx context.Context, userID string, now time.Time) ([]model.DomainStats, error) {
	now = now.UTC()
	d7 := now.AddDate(0, 0, -7)
	d30 := now.AddDate(0, 0, -30)
	rows, err := r.db.QueryContext(ctx, `
        SELECT domain,
               SUM(CASE WHEN status = 'done' AND done_time > ? THEN 1 ELSE 0 END),
               SUM(CASE WHEN status = 'done' AND done_time > ? THEN 1 ELSE 0 END),
               SUM(CASE WHEN status IN ('todo','in_progress','abandoned') AND creation_time <= ? THEN 1 ELSE 0 END)
        FROM tasks WHERE user_id = ?
        GROUP BY domain ORDER BY domain`, d7, d30, d7, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.DomainStats
	for rows.Next() {
		var s model.DomainStats
		if err := rows.Scan(&s.Domain, &s.Completions7d, &s.Completions30d, &s.StaleTasks); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *tasks) RecurringStats(ctx context.Context, userID string, now time.Time) ([]model.RecurringStats, error) {
	now = now.UTC()
	window := now.AddDate(0, 0, -30)
	rows, err := r.db.QueryContext(ctx, `
        SELECT t.task_id, t.title, t.cadence_days, t.creation_time,
               (SELECT COUNT(*) FROM task_completions c
                WHERE c.task_id = t.task_id AND c.done_time > ?)
        FROM tasks t
        WHERE t.user_id = ? AND t.cadence_days IS NOT NULL AND t.status != 'abandoned'
        ORDER BY t.task_id`, window, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.RecurringStats
	for rows.Next() {
		var (
			s       model.RecurringStats
			cadence int
			created time.Time
		)
		if err := rows.Scan(&s.TaskID, &s.Title, &cadence, &created, &s.DoneCount); err != nil {
			return nil, err
		}
		s.ExpectedCount = expectedCompletions(created, now, cadence)
		out = append(out, s)
	}
	return out, rows.Err()
}

// expectedCompletions computes how many completions the cadence predicts over
// the trailing 30 days, clipped to the task's lifetime.
func expectedCompletions(created, now time.Time, cadenceDays int) int {
	if cadenceDays <= 0 {
		return 0
	}
	days := int(now.Sub(created).Hours() / 24)
	if days > 30 {
		days = 30
	}
	if days < 0 {
		days = 0
	}
	return days / cadenceDays
}

// --- Notes ---

type notes struct{ db *sql.DB }

func (r *notes) Create(ctx context.Context, n *model.Note) (*model.Note, error) {
	id := n.NoteID
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO notes (note_id, user_id, title, content, creation_time, update_time)
        VALUES (?,?,?,?,?,?)`, id, n.UserID, n.Title, n.Content, now, now)
	if err != nil {
		return nil, err
	}
	out := *n
	out.NoteID = id
	out.CreationTime = now
	out.UpdateTime = now
	return &out, nil
}

func (r *notes) ListRecent(ctx context.Context, userID string, limit int) ([]*model.Note, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
        SELECT note_id, user_id, title, content, creation_time, update_time
        FROM notes WHERE user_id = ? ORDER BY update_time DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNotes(rows)
}

func (r *notes) Search(ctx context.Context, userID, query string, limit int) ([]*model.Note, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + query + "%"
	rows, err := r.db.QueryContext(ctx, `
        SELECT note_id, user_id, title, content, creation_time, update_time
        FROM notes WHERE user_id = ? AND (title LIKE ? OR content LIKE ?)
        ORDER BY update_time DESC LIMIT ?`, userID, pattern, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNotes(rows)
}

func collectNotes(rows *sql.Rows) ([]*model.Note, error) {
	var out []*model.Note
	for rows.Next() {
		var n model.Note
		if err := rows.Scan(&n.NoteID, &n.UserID, &n.Title, &n.Content, &n.CreationTime, &n.UpdateTime); err != nil {
			return nil, err
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

// --- Projects ---

type projects struct{ db *sql.DB }

func (r *projects) Create(ctx context.Context, p *model.Project) (*model.Project, error) {
	id := p.ProjectID
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()
	status := p.Status
	if status == "" {
		status = "active"
	}
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO projects (project_id, user_id, name, status, creation_time)
        VALUES (?,?,?,?,?)`, id, p.UserID, p.Name, status, now)
	if err != nil {
		return nil, err
	}
	out := *p
	out.ProjectID = id
	out.Status = status
	out.CreationTime = now
	return &out, nil
}

func (r *projects) List(ctx context.Context, userID string) ([]*model.Project, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT project_id, user_id, name, status, creation_time
        FROM projects WHERE user_id = ? ORDER BY creation_time DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Project
	for rows.Next() {
		var p model.Project
		if err := rows.Scan(&p.ProjectID, &p.UserID, &p.Name, &p.Status, &p.CreationTime); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// --- Profiles ---

type profiles struct{ db *sql.DB }

func (r *profiles) Get(ctx context.Context, userID string) (*model.Profile, error) {
	row := r.db.QueryRowContext(ctx, `
        SELECT user_id, summary, goals, update_time FROM profiles WHERE user_id = ?`, userID)
	var (
		p    model.Profile
		gRaw string
	)
	if err := row.Scan(&p.UserID, &p.Summary, &gRaw, &p.UpdateTime); err != nil {
		return nil, notFound(err)
	}
	if err := json.Unmarshal([]byte(gRaw), &p.Goals); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *profiles) Put(ctx context.Context, p *model.Profile) (*model.Profile, error) {
	goals := p.Goals
	if goals == nil {
		goals = []string{}
	}
	gRaw, err := json.Marshal(goals)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	_, err = r.db.ExecContext(ctx, `
        INSERT INTO profiles (user_id, summary, goals, update_time) VALUES (?,?,?,?)
        ON CONFLICT(user_id) DO UPDATE SET summary = excluded.summary, goals = excluded.goals, update_time = excluded.update_time`,
		p.UserID, p.Summary, string(gRaw), now)
	if err != nil {
		return nil, err
	}
	out := *p
	out.UpdateTime = now
	return &out, nil
}

// --- Conversations ---

type conversations struct{ db *sql.DB }

const convColumns = `conversation_id, user_id, scope, project_id, message_count, summary, compacted_through, last_summarized_at, creation_time`

func scanConversation(sc interface{ Scan(...interface{}) error }) (*model.Conversation, error) {
	var c model.Conversation
	if err := sc.Scan(&c.ConversationID, &c.UserID, &c.Scope, &c.ProjectID, &c.MessageCount,
		&c.Summary, &c.CompactedThrough, &c.LastSummarizedAt, &c.CreationTime); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *conversations) GetOrCreate(ctx context.Context, userID string, scope model.ConversationScope, projectID *string) (*model.Conversation, error) {
	for {
		row := r.db.QueryRowContext(ctx, `
        SELECT `+convColumns+` FROM conversations
        WHERE user_id = ? AND scope = ? AND ifnull(project_id,'') = ifnull(?,'')`,
			userID, scope, projectID)
		c, err := scanConversation(row)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		id := uuid.New().String()
		now := time.Now().UTC()
		res, err := r.db.ExecContext(ctx, `
        INSERT INTO conversations (conversation_id, user_id, scope, project_id, creation_time)
        VALUES (?,?,?,?,?) ON CONFLICT DO NOTHING`, id, userID, scope, projectID, now)
		if err != nil {
			return nil, err
		}
		if n, err := res.RowsAffected(); err != nil {
			return nil, err
		} else if n == 0 {
			// lost the creation race; pick up the winner's row
			continue
		}
		return &model.Conversation{
			ConversationID: id,
			UserID:         userID,
			Scope:          scope,
			ProjectID:      projectID,
			CreationTime:   now,
		}, nil
	}
}

func (r *conversations) GetByID(ctx context.Context, conversationID string) (*model.Conversation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+convColumns+` FROM conversations WHERE conversation_id = ?`, conversationID)
	c, err := scanConversation(row)
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

func (r *conversations) UpdateSummary(ctx context.Context, conversationID, summary, watermark string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
        UPDATE conversations
        SET summary = ?, compacted_through = ?, last_summarized_at = ?
        WHERE conversation_id = ?`, summary, watermark, at.UTC(), conversationID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// --- Messages ---

type messages struct{ db *sql.DB }

func (r *messages) Append(ctx context.Context, m *model.Message) (*model.Message, error) {
	id := m.MessageID
	if id == "" {
		id = uuid.New().String()
	}
	var metaRaw *string
	if m.Metadata != nil {
		b, err := json.Marshal(m.Metadata)
		if err != nil {
			return nil, err
		}
		s := string(b)
		metaRaw = &s
	}
	now := time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
        INSERT INTO messages (message_id, conversation_id, role, content, metadata, creation_time)
        VALUES (?,?,?,?,?,?)`, id, m.ConversationID, m.Role, m.Content, metaRaw, now); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations SET message_count = message_count + 1 WHERE conversation_id = ?`,
		m.ConversationID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	out := *m
	out.MessageID = id
	out.CreationTime = now
	return &out, nil
}

func (r *messages) List(ctx context.Context, req model.ListMessagesRequest) ([]*model.Message, error) {
	q := `SELECT message_id, conversation_id, role, content, metadata, creation_time
          FROM messages WHERE conversation_id = ?`
	args := []interface{}{req.ConversationID}
	if req.Before != nil {
		q += ` AND creation_time < ?`
		args = append(args, req.Before.UTC())
	}
	if req.After != nil {
		q += ` AND creation_time > ?`
		args = append(args, req.After.UTC())
	}
	q += ` ORDER BY seq ASC`
	if req.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, req.Limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Message
	for rows.Next() {
		var (
			m       model.Message
			metaRaw *string
		)
		if err := rows.Scan(&m.MessageID, &m.ConversationID, &m.Role, &m.Content, &metaRaw, &m.CreationTime); err != nil {
			return nil, err
		}
		if metaRaw != nil {
			if err := json.Unmarshal([]byte(*metaRaw), &m.Metadata); err != nil {
				return nil, err
			}
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (r *messages) DeleteThrough(ctx context.Context, conversationID, messageID string) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var cutoff int64
	if err := tx.QueryRowContext(ctx,
		`SELECT seq FROM messages WHERE conversation_id = ? AND message_id = ?`,
		conversationID, messageID).Scan(&cutoff); err != nil {
		return 0, notFound(err)
	}
	res, err := tx.ExecContext(ctx,
		`DELETE FROM messages WHERE conversation_id = ? AND seq <= ?`, conversationID, cutoff)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations SET message_count = message_count - ? WHERE conversation_id = ?`,
		n, conversationID); err != nil {
		return 0, err
	}
	return int(n), tx.Commit()
}

// --- Observations ---

type observations struct{ db *sql.DB }

const obsColumns = `observation_id, user_id, type, content, data_summary, evidence_key, priority, creation_time, surfaced_time, dismissed`

func scanObservation(sc interface{ Scan(...interface{}) error }) (*model.Observation, error) {
	var (
		o       model.Observation
		dataRaw *string
	)
	if err := sc.Scan(&o.ObservationID, &o.UserID, &o.Type, &o.Content, &dataRaw, &o.EvidenceKey,
		&o.Priority, &o.CreationTime, &o.SurfacedTime, &o.Dismissed); err != nil {
		return nil, err
	}
	if dataRaw != nil {
		if err := json.Unmarshal([]byte(*dataRaw), &o.DataSummary); err != nil {
			return nil, err
		}
	}
	return &o, nil
}

func (r *observations) Insert(ctx context.Context, o *model.Observation) (*model.Observation, error) {
	id := o.ObservationID
	if id == "" {
		id = uuid.New().String()
	}
	var dataRaw *string
	if o.DataSummary != nil {
		b, err := json.Marshal(o.DataSummary)
		if err != nil {
			return nil, err
		}
		s := string(b)
		dataRaw = &s
	}
	now := time.Now().UTC()
	// The partial unique index on (user_id, type, evidence_key) for live
	// rows turns duplicate detection into a conflict no-op.
	res, err := r.db.ExecContext(ctx, `
        INSERT INTO observations (observation_id, user_id, type, content, data_summary, evidence_key, priority, creation_time)
        VALUES (?,?,?,?,?,?,?,?)
        ON CONFLICT DO NOTHING`,
		id, o.UserID, o.Type, o.Content, dataRaw, o.EvidenceKey, o.Priority, now)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, model.ErrDuplicate
	}
	out := *o
	out.ObservationID = id
	out.CreationTime = now
	return &out, nil
}

func (r *observations) ListUnsurfaced(ctx context.Context, userID string, limit int) ([]*model.Observation, error) {
	q := `SELECT ` + obsColumns + ` FROM observations
          WHERE user_id = ? AND surfaced_time IS NULL AND dismissed = 0
          ORDER BY CASE priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END, creation_time ASC`
	args := []interface{}{userID}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectObservations(rows)
}

func (r *observations) List(ctx context.Context, userID string, includeDismissed bool) ([]*model.Observation, error) {
	q := `SELECT ` + obsColumns + ` FROM observations WHERE user_id = ?`
	if !includeDismissed {
		q += ` AND dismissed = 0`
	}
	q += ` ORDER BY creation_time DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectObservations(rows)
}

func collectObservations(rows *sql.Rows) ([]*model.Observation, error) {
	var out []*model.Observation
	for rows.Next() {
		o, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *observations) MarkSurfaced(ctx context.Context, userID, observationID string, at time.Time) error {
	// surfaced_time is written at most once; re-surfacing is a no-op.
	_, err := r.db.ExecContext(ctx, `
        UPDATE observations SET surfaced_time = ?
        WHERE user_id = ? AND observation_id = ? AND surfaced_time IS NULL`,
		at.UTC(), userID, observationID)
	return err
}

func (r *observations) Dismiss(ctx context.Context, userID, observationID string) error {
	res, err := r.db.ExecContext(ctx, `
        UPDATE observations SET dismissed = 1 WHERE user_id = ? AND observation_id = ?`,
		userID, observationID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// --- Notifications ---

type notifications struct{ db *sql.DB }

func (r *notifications) MarkSent(ctx context.Context, userID string, typ model.NotificationType, bucket string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
        INSERT INTO notification_marks (user_id, type, bucket, sent_time) VALUES (?,?,?,?)
        ON CONFLICT DO NOTHING`, userID, typ, bucket, at.UTC())
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *notifications) SentSince(ctx context.Context, userID string, typ model.NotificationType, since time.Time) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
        SELECT COUNT(*) FROM notification_marks
        WHERE user_id = ? AND type = ? AND sent_time > ?`, userID, typ, since.UTC()).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
