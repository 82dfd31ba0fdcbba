package model

import "time"

// User represents an account in the system.
type User struct {
	UserID         string     `json:"userId"`
	Email          string     `json:"email"`
	DisplayName    *string    `json:"displayName,omitempty"`
	TimeZone       string     `json:"timeZone"`
	Status         string     `json:"status"`
	CreationTime   time.Time  `json:"creationTime"`
	LastActiveTime *time.Time `json:"lastActiveTime,omitempty"`
}

// TaskStatus enumerates the lifecycle states of a task.
type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
	TaskAbandoned  TaskStatus = "abandoned"
)

// Valid reports whether s is one of the known task statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskTodo, TaskInProgress, TaskDone, TaskAbandoned:
		return true
	}
	return false
}

// Task is a unit of work tracked for a user, optionally scoped to a project
// and tagged with a life domain (health, work, finance, ...).
type Task struct {
	TaskID       string     `json:"taskId"`
	UserID       string     `json:"userId"`
	ProjectID    *string    `json:"projectId,omitempty"`
	Domain       string     `json:"domain"`
	Title        string     `json:"title"`
	Status       TaskStatus `json:"status"`
	DueTime      *time.Time `json:"dueTime,omitempty"`
	CreationTime time.Time  `json:"creationTime"`
	StartedTime  *time.Time `json:"startedTime,omitempty"`
	DoneTime     *time.Time `json:"doneTime,omitempty"`
	// CadenceDays is set for recurring tasks: the task is expected to be
	// completed once every CadenceDays days.
	CadenceDays *int `json:"cadenceDays,omitempty"`
}

// Note is a free-form text record owned by a user.
type Note struct {
	NoteID       string    `json:"noteId"`
	UserID       string    `json:"userId"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	CreationTime time.Time `json:"creationTime"`
	UpdateTime   time.Time `json:"updateTime"`
}

// Project groups tasks under a user.
type Project struct {
	ProjectID    string    `json:"projectId"`
	UserID       string    `json:"userId"`
	Name         string    `json:"name"`
	Status       string    `json:"status"`
	CreationTime time.Time `json:"creationTime"`
}

// Profile is the coaching profile computed for a user. It may not exist yet.
type Profile struct {
	UserID     string    `json:"userId"`
	Summary    string    `json:"summary"`
	Goals      []string  `json:"goals,omitempty"`
	UpdateTime time.Time `json:"updateTime"`
}

// ConversationScope selects which slice of the workspace a conversation is about.
type ConversationScope string

const (
	ScopeGlobal  ConversationScope = "global"
	ScopeTasks   ConversationScope = "tasks"
	ScopeNotes   ConversationScope = "notes"
	ScopeProject ConversationScope = "project"
)

// Conversation is an append-only message log with a compaction watermark.
// Everything at or before CompactedThrough has been folded into Summary and
// may be pruned; everything after is live.
type Conversation struct {
	ConversationID   string            `json:"conversationId"`
	UserID           string            `json:"userId"`
	Scope            ConversationScope `json:"scope"`
	ProjectID        *string           `json:"projectId,omitempty"`
	MessageCount     int               `json:"messageCount"`
	Summary          *string           `json:"summary,omitempty"`
	CompactedThrough *string           `json:"compactedThrough,omitempty"`
	LastSummarizedAt *time.Time        `json:"lastSummarizedAt,omitempty"`
	CreationTime     time.Time         `json:"creationTime"`
}

// Role of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message belongs to exactly one conversation, ordered by creation time.
// Metadata carries tool calls and tool results when present.
type Message struct {
	MessageID      string                 `json:"messageId"`
	ConversationID string                 `json:"conversationId"`
	Role           Role                   `json:"role"`
	Content        string                 `json:"content"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	CreationTime   time.Time              `json:"creationTime"`
}

// ToolCall is a structured request emitted by the model within one turn.
// It is transient and persisted only inside Message.Metadata.
type ToolCall struct {
	ID    string                 `json:"id"`
	Name  string                 `json:"name"`
	Input map[string]interface{} `json:"input"`
}

// ToolResult pairs with exactly one ToolCall.
type ToolResult struct {
	CallID  string `json:"callId"`
	Content string `json:"content"`
	IsError bool   `json:"isError"`
}

// ObservationType classifies a detected behavioral pattern.
type ObservationType string

const (
	ObsPattern     ObservationType = "pattern"
	ObsConcern     ObservationType = "concern"
	ObsWin         ObservationType = "win"
	ObsCorrelation ObservationType = "correlation"
	ObsStuck       ObservationType = "stuck"
)

// Priority of an observation.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Observation is a synthesized coaching statement about a detected pattern.
// SurfacedTime is set exactly once, the first time the orchestrator uses it.
// EvidenceKey is derived from the primary evidence ids (sorted task ids,
// domain name, or recurring task id) and participates in deduplication.
type Observation struct {
	ObservationID string                 `json:"observationId"`
	UserID        string                 `json:"userId"`
	Type          ObservationType        `json:"type"`
	Content       string                 `json:"content"`
	DataSummary   map[string]interface{} `json:"dataSummary,omitempty"`
	EvidenceKey   string                 `json:"evidenceKey"`
	Priority      Priority               `json:"priority"`
	CreationTime  time.Time              `json:"creationTime"`
	SurfacedTime  *time.Time             `json:"surfacedTime,omitempty"`
	Dismissed     bool                   `json:"dismissed"`
}

// NotificationType classifies an outbound notification.
type NotificationType string

const (
	NotifyTaskReminder NotificationType = "task_reminder"
	NotifyObservation  NotificationType = "observation"
	NotifyCheckIn      NotificationType = "check_in"
)

// NotificationPayload is the ephemeral message handed to the dispatch
// boundary. Delivery is outside the core; only a dedup marker is persisted.
type NotificationPayload struct {
	UserID  string                 `json:"userId"`
	Type    NotificationType       `json:"type"`
	Title   string                 `json:"title"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// DomainStats aggregates task activity for one life domain.
type DomainStats struct {
	Domain         string `json:"domain"`
	Completions7d  int    `json:"completions7d"`
	Completions30d int    `json:"completions30d"`
	StaleTasks     int    `json:"staleTasks"`
}

// RecurringStats reports adherence of one recurring task against its cadence.
type RecurringStats struct {
	TaskID        string `json:"taskId"`
	Title         string `json:"title"`
	ExpectedCount int    `json:"expectedCount"`
	DoneCount     int    `json:"doneCount"`
}

// ListMessagesRequest captures filters used when listing conversation messages.
type ListMessagesRequest struct {
	ConversationID string
	Limit          int
	Before         *time.Time
	After          *time.Time
}
