package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/arbor-coach/arbor/server/internal/model"
	"github.com/arbor-coach/arbor/server/internal/store"
)

// Open opens a PostgreSQL connection using the pgx stdlib driver and verifies connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Bootstrap applies the schema. Safe to call repeatedly; every statement is
// IF NOT EXISTS.
func Bootstrap(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, Schema)
	return err
}

// NewWithDB constructs a native Postgres store backed directly by database/sql.
func NewWithDB(db *sql.DB) store.Store { return &pgStore{db: db} }

type pgStore struct{ db *sql.DB }

func (s *pgStore) Users() store.Users                 { return &users{db: s.db} }
func (s *pgStore) Tasks() store.Tasks                 { return &tasks{db: s.db} }
func (s *pgStore) Notes() store.Notes                 { return &notes{db: s.db} }
func (s *pgStore) Projects() store.Projects           { return &projects{db: s.db} }
func (s *pgStore) Profiles() store.Profiles           { return &profiles{db: s.db} }
func (s *pgStore) Conversations() store.Conversations { return &conversations{db: s.db} }
func (s *pgStore) Messages() store.Messages           { return &messages{db: s.db} }
func (s *pgStore) Observations() store.Observations   { return &observations{db: s.db} }
func (s *pgStore) Notifications() store.Notifications { return &notifications{db: s.db} }

// HealthPing implements health.HealthPinger for the Postgres-backed store.
func (s *pgStore) HealthPing(ctx context.Context) error {
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
	var created time.Time
	row := u.db.QueryRowContext(ctx, `
        INSERT INTO users (user_id, email, display_name, time_zone, status)
        VALUES ($1,$2,$3,$4,'ACTIVE')
        RETURNING creation_time`, m.UserID, m.Email, m.DisplayName, m.TimeZone)
	if err := row.Scan(&created); err != nil {
		return nil, err
	}
	out := *m
	out.Status = "ACTIVE"
	out.CreationTime = created
	return &out, nil
}

func (u *users) Get(ctx context.Context, userID string) (*model.User, error) {
	var out model.User
	row := u.db.QueryRowContext(ctx, `
        SELECT user_id, email, display_name, time_zone, status, creation_time, last_active_time
        FROM users WHERE user_id=$1`, userID)
	if err := row.Scan(&out.UserID, &out.Email, &out.DisplayName, &out.TimeZone, &out.Status, &out.CreationTime, &out.LastActiveTime); err != nil {
		return nil, notFound(err)
	}
	return &out, nil
}

func (u *users) ListActive(ctx context.Context) ([]*model.User, error) {
	rows, err := u.db.QueryContext(ctx, `
        SELECT user_id, email, display_name, time_zone, status, creation_time, last_active_time
        FROM users WHERE status='ACTIVE' ORDER BY user_id`)
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
		`UPDATE users SET last_active_time=$1 WHERE user_id=$2`, at.UTC(), userID)
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
	domain := t.Domain
	if domain == "" {
		domain = "general"
	}
	status := t.Status
	if status == "" {
		status = model.TaskTodo
	}
	var created time.Time
	row := r.db.QueryRowContext(ctx, `
        INSERT INTO tasks (task_id, user_id, project_id, domain, title, status, due_time, started_time, cadence_days)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING creation_time`,
		id, t.UserID, t.ProjectID, domain, t.Title, status, t.DueTime, t.StartedTime, t.CadenceDays)
	if err := row.Scan(&created); err != nil {
		return nil, err
	}
	out := *t
	out.TaskID = id
	out.Domain = domain
	out.Status = status
	out.CreationTime = created
	return &out, nil
}

func (r *tasks) List(ctx context.Context, userID string, limit int) ([]*model.Task, error) {
	q := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id=$1 ORDER BY creation_time DESC`
	args := []interface{}{userID}
	if limit > 0 {
		q += ` LIMIT $2`
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
	q := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id=$1 AND status=$2 ORDER BY creation_time DESC`
	args := []interface{}{userID, status}
	if limit > 0 {
		q += ` LIMIT $3`
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
        WHERE user_id=$1 AND status IN ('todo','in_progress') AND due_time IS NOT NULL AND due_time <= $2
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
			`UPDATE tasks SET status=$1, started_time=COALESCE(started_time,$2) WHERE user_id=$3 AND task_id=$4`,
			status, at, userID, taskID)
	case model.TaskDone:
		res, err = r.db.ExecContext(ctx,
			`UPDATE tasks SET status=$1, done_time=$2 WHERE user_id=$3 AND task_id=$4`,
			status, at, userID, taskID)
	default:
		res, err = r.db.ExecContext(ctx,
			`UPDATE tasks SET status=$1 WHERE user_id=$2 AND task_id=$3`,
			status, userID, taskID)
	}
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	if status == model.TaskDone {
		_, err = r.db.ExecContext(ctx, `
            INSERT INTO task_completions (task_id, user_id, done_time)
            SELECT task_id, user_id, $1 FROM tasks WHERE task_id=$2 AND cadence_days IS NOT NULL`,
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
               COUNT(*) FILTER (WHERE status='done' AND done_time > $1),
               COUNT(*) FILTER (WHERE status='done' AND done_time > $2),
               COUNT(*) FILTER (WHERE status IN ('todo','in_progress','abandoned') AND creation_time <= $1)
        FROM tasks WHERE user_id=$3
        GROUP BY domain ORDER BY domain`, d7, d30, userID)
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
                WHERE c.task_id = t.task_id AND c.done_time > $1)
        FROM tasks t
        WHERE t.user_id=$2 AND t.cadence_days IS NOT NULL AND t.status != 'abandoned'
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
	var created, updated time.Time
	row := r.db.QueryRowContext(ctx, `
        INSERT INTO notes (note_id, user_id, title, content)
        VALUES ($1,$2,$3,$4)
        RETURNING creation_time, update_time`, id, n.UserID, n.Title, n.Content)
	if err := row.Scan(&created, &updated); err != nil {
		return nil, err
	}
	out := *n
	out.NoteID = id
	out.CreationTime = created
	out.UpdateTime = updated
	return &out, nil
}

func (r *notes) ListRecent(ctx context.Context, userID string, limit int) ([]*model.Note, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
        SELECT note_id, user_id, title, content, creation_time, update_time
        FROM notes WHERE user_id=$1 ORDER BY update_time DESC LIMIT $2`, userID, limit)
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
        FROM notes WHERE user_id=$1 AND (title ILIKE $2 OR content ILIKE $2)
        ORDER BY update_time DESC LIMIT $3`, userID, pattern, limit)
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
	status := p.Status
	if status == "" {
		status = "active"
	}
	var created time.Time
	row := r.db.QueryRowContext(ctx, `
        INSERT INTO projects (project_id, user_id, name, status)
        VALUES ($1,$2,$3,$4)
        RETURNING creation_time`, id, p.UserID, p.Name, status)
	if err := row.Scan(&created); err != nil {
		return nil, err
	}
	out := *p
	out.ProjectID = id
	out.Status = status
	out.CreationTime = created
	return &out, nil
}

func (r *projects) List(ctx context.Context, userID string) ([]*model.Project, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT project_id, user_id, name, status, creation_time
        FROM projects WHERE user_id=$1 ORDER BY creation_time DESC`, userID)
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
	var (
		p    model.Profile
		gRaw []byte
	)
	row := r.db.QueryRowContext(ctx, `
        SELECT user_id, summary, goals, update_time FROM profiles WHERE user_id=$1`, userID)
	if err := row.Scan(&p.UserID, &p.Summary, &gRaw, &p.UpdateTime); err != nil {
		return nil, notFound(err)
	}
	if err := json.Unmarshal(gRaw, &p.Goals); err != nil {
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
	var updated time.Time
	row := r.db.QueryRowContext(ctx, `
        INSERT INTO profiles (user_id, summary, goals, update_time) VALUES ($1,$2,$3,now())
        ON CONFLICT (user_id) DO UPDATE SET summary=excluded.summary, goals=excluded.goals, update_time=now()
        RETURNING update_time`, p.UserID, p.Summary, gRaw)
	if err := row.Scan(&updated); err != nil {
		return nil, err
	}
	out := *p
	out.UpdateTime = updated
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
        WHERE user_id=$1 AND scope=$2 AND coalesce(project_id,'')=coalesce($3,'')`,
			userID, scope, projectID)
		c, err := scanConversation(row)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		id := uuid.New().String()
		var created time.Time
		row = r.db.QueryRowContext(ctx, `
        INSERT INTO conversations (conversation_id, user_id, scope, project_id)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT DO NOTHING
        RETURNING creation_time`, id, userID, scope, projectID)
		err = row.Scan(&created)
		if errors.Is(err, sql.ErrNoRows) {
			// lost the creation race; pick up the winner's row
			continue
		}
		if err != nil {
			return nil, err
		}
		return &model.Conversation{
			ConversationID: id,
			UserID:         userID,
			Scope:          scope,
			ProjectID:      projectID,
			CreationTime:   created,
		}, nil
	}
}

func (r *conversations) GetByID(ctx context.Context, conversationID string) (*model.Conversation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+convColumns+` FROM conversations WHERE conversation_id=$1`, conversationID)
	c, err := scanConversation(row)
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

func (r *conversations) UpdateSummary(ctx context.Context, conversationID, summary, watermark string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
        UPDATE conversations
        SET summary=$1, compacted_through=$2, last_summarized_at=$3
        WHERE conversation_id=$4`, summary, watermark, at.UTC(), conversationID)
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
	var metaRaw []byte
	if m.Metadata != nil {
		b, err := json.Marshal(m.Metadata)
		if err != nil {
			return nil, err
		}
		metaRaw = b
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var created time.Time
	row := tx.QueryRowContext(ctx, `
        INSERT INTO messages (message_id, conversation_id, role, content, metadata)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING creation_time`, id, m.ConversationID, m.Role, m.Content, metaRaw)
	if err := row.Scan(&created); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations SET message_count = message_count + 1 WHERE conversation_id=$1`,
		m.ConversationID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	out := *m
	out.MessageID = id
	out.CreationTime = created
	return &out, nil
}

func (r *messages) List(ctx context.Context, req model.ListMessagesRequest) ([]*model.Message, error) {
	q := `SELECT message_id, conversation_id, role, content, metadata, creation_time
          FROM messages WHERE conversation_id=$1`
	args := []interface{}{req.ConversationID}
	if req.Before != nil {
		args = append(args, req.Before.UTC())
		q += fmt.Sprintf(` AND creation_time < $%d`, len(args))
	}
	if req.After != nil {
		args = append(args, req.After.UTC())
		q += fmt.Sprintf(` AND creation_time > $%d`, len(args))
	}
	q += ` ORDER BY seq ASC`
	if req.Limit > 0 {
		args = append(args, req.Limit)
		q += fmt.Sprintf(` LIMIT $%d`, len(args))
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
			metaRaw []byte
		)
		if err := rows.Scan(&m.MessageID, &m.ConversationID, &m.Role, &m.Content, &metaRaw, &m.CreationTime); err != nil {
			return nil, err
		}
		if len(metaRaw) > 0 {
			if err := json.Unmarshal(metaRaw, &m.Metadata); err != nil {
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
		`SELECT seq FROM messages WHERE conversation_id=$1 AND message_id=$2`,
		conversationID, messageID).Scan(&cutoff); err != nil {
		return 0, notFound(err)
	}
	res, err := tx.ExecContext(ctx,
		`DELETE FROM messages WHERE conversation_id=$1 AND seq <= $2`, conversationID, cutoff)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations SET message_count = message_count - $1 WHERE conversation_id=$2`,
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
		dataRaw []byte
	)
	if err := sc.Scan(&o.ObservationID, &o.UserID, &o.Type, &o.Content, &dataRaw, &o.EvidenceKey,
		&o.Priority, &o.CreationTime, &o.SurfacedTime, &o.Dismissed); err != nil {
		return nil, err
	}
	if len(dataRaw) > 0 {
		if err := json.Unmarshal(dataRaw, &o.DataSummary); err != nil {
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
	var dataRaw []byte
	if o.DataSummary != nil {
		b, err := json.Marshal(o.DataSummary)
		if err != nil {
			return nil, err
		}
		dataRaw = b
	}
	// The partial unique index on live (user, type, evidence_key) rows makes
	// the duplicate insert a conflict no-op; losing the race is benign.
	res, err := r.db.ExecContext(ctx, `
        INSERT INTO observations (observation_id, user_id, type, content, data_summary, evidence_key, priority)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT DO NOTHING`,
		id, o.UserID, o.Type, o.Content, dataRaw, o.EvidenceKey, o.Priority)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, model.ErrDuplicate
	}
	row := r.db.QueryRowContext(ctx,
		`SELECT `+obsColumns+` FROM observations WHERE observation_id=$1`, id)
	return scanObservation(row)
}

func (r *observations) ListUnsurfaced(ctx context.Context, userID string, limit int) ([]*model.Observation, error) {
	q := `SELECT ` + obsColumns + ` FROM observations
          WHERE user_id=$1 AND surfaced_time IS NULL AND NOT dismissed
          ORDER BY CASE priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END, creation_time ASC`
	args := []interface{}{userID}
	if limit > 0 {
		args = append(args, limit)
		q += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectObservations(rows)
}

func (r *observations) List(ctx context.Context, userID string, includeDismissed bool) ([]*model.Observation, error) {
	q := `SELECT ` + obsColumns + ` FROM observations WHERE user_id=$1`
	if !includeDismissed {
		q += ` AND NOT dismissed`
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
	_, err := r.db.ExecContext(ctx, `
        UPDATE observations SET surfaced_time=$1
        WHERE user_id=$2 AND observation_id=$3 AND surfaced_time IS NULL`,
		at.UTC(), userID, observationID)
	return err
}

func (r *observations) Dismiss(ctx context.Context, userID, observationID string) error {
	res, err := r.db.ExecContext(ctx, `
        UPDATE observations SET dismissed=true WHERE user_id=$1 AND observation_id=$2`,
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
        INSERT INTO notification_marks (user_id, type, bucket, sent_time) VALUES ($1,$2,$3,$4)
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
        WHERE user_id=$1 AND type=$2 AND sent_time > $3`, userID, typ, since.UTC()).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
