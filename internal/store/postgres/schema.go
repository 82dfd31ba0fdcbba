package postgres

// Schema holds the DDL for the coaching store. Deployments apply it through
// migrations; the integration test applies it directly to a fresh container.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
    user_id          TEXT PRIMARY KEY,
    email            TEXT NOT NULL UNIQUE,
    display_name     TEXT,
    time_zone        TEXT NOT NULL DEFAULT 'UTC',
    status           TEXT NOT NULL DEFAULT 'ACTIVE',
    creation_time    TIMESTAMPTZ NOT NULL DEFAULT now(),
    last_active_time TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS projects (
    project_id    TEXT PRIMARY KEY,
    user_id       TEXT NOT NULL REFERENCES users(user_id),
    name          TEXT NOT NULL,
    status        TEXT NOT NULL DEFAULT 'active',
    creation_time TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS tasks (
    task_id       TEXT PRIMARY KEY,
    user_id       TEXT NOT NULL REFERENCES users(user_id),
    project_id    TEXT REFERENCES projects(project_id),
    domain        TEXT NOT NULL DEFAULT 'general',
    title         TEXT NOT NULL,
    status        TEXT NOT NULL DEFAULT 'todo',
    due_time      TIMESTAMPTZ,
    creation_time TIMESTAMPTZ NOT NULL DEFAULT now(),
    started_time  TIMESTAMPTZ,
    done_time     TIMESTAMPTZ,
    cadence_days  INTEGER
);
CREATE INDEX IF NOT EXISTS idx_tasks_user_status ON tasks(user_id, status);

CREATE TABLE IF NOT EXISTS task_completions (
    task_id   TEXT NOT NULL REFERENCES tasks(task_id),
    user_id   TEXT NOT NULL,
    done_time TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_completions_user ON task_completions(user_id, done_time);

CREATE TABLE IF NOT EXISTS notes (
    note_id       TEXT PRIMARY KEY,
    user_id       TEXT NOT NULL REFERENCES users(user_id),
    title         TEXT NOT NULL,
    content       TEXT NOT NULL DEFAULT '',
    creation_time TIMESTAMPTZ NOT NULL DEFAULT now(),
    update_time   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS profiles (
    user_id     TEXT PRIMARY KEY REFERENCES users(user_id),
    summary     TEXT NOT NULL DEFAULT '',
    goals       JSONB NOT NULL DEFAULT '[]',
    update_time TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS conversations (
    conversation_id    TEXT PRIMARY KEY,
    user_id            TEXT NOT NULL REFERENCES users(user_id),
    scope              TEXT NOT NULL,
    project_id         TEXT,
    message_count      INTEGER NOT NULL DEFAULT 0,
    summary            TEXT,
    compacted_through  TEXT,
    last_summarized_at TIMESTAMPTZ,
    creation_time      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_conversations_scope
    ON conversations(user_id, scope, coalesce(project_id, ''));

CREATE TABLE IF NOT EXISTS messages (
    seq             BIGSERIAL PRIMARY KEY,
    message_id      TEXT NOT NULL UNIQUE,
    conversation_id TEXT NOT NULL REFERENCES conversations(conversation_id),
    role            TEXT NOT NULL,
    content         TEXT NOT NULL,
    metadata        JSONB,
    creation_time   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, seq);

CREATE TABLE IF NOT EXISTS observations (
    observation_id TEXT PRIMARY KEY,
    user_id        TEXT NOT NULL REFERENCES users(user_id),
    type           TEXT NOT NULL,
    content        TEXT NOT NULL,
    data_summary   JSONB,
    evidence_key   TEXT NOT NULL,
    priority       TEXT NOT NULL,
    creation_time  TIMESTAMPTZ NOT NULL DEFAULT now(),
    surfaced_time  TIMESTAMPTZ,
    dismissed      BOOLEAN NOT NULL DEFAULT false
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_observations_dedup
    ON observations(user_id, type, evidence_key)
    WHERE surfaced_time IS NULL AND NOT dismissed;

CREATE TABLE IF NOT EXISTS notification_marks (
    user_id   TEXT NOT NULL,
    type      TEXT NOT NULL,
    bucket    TEXT NOT NULL,
    sent_time TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (user_id, type, bucket)
);
`
