package store

import (
	"context"
	"time"

	"github.com/arbor-coach/arbor/server/internal/model"
)

// Store exposes persistence operations required by the coaching core.
// Implementations live under internal/store/<driver>/ (postgres, sqlite).
type Store interface {
	Users() Users
	Tasks() Tasks
	Notes() Notes
	Projects() Projects
	Profiles() Profiles
	Conversations() Conversations
	Messages() Messages
	Observations() Observations
	Notifications() Notifications
}

type Users interface {
	Create(ctx context.Context, u *model.User) (*model.User, error)
	Get(ctx context.Context, userID string) (*model.User, error)
	ListActive(ctx context.Context) ([]*model.User, error)
	TouchLastActive(ctx context.Context, userID string, at time.Time) error
}

type Tasks interface {
	Create(ctx context.Context, t *model.Task) (*model.Task, error)
	List(ctx context.Context, userID string, limit int) ([]*model.Task, error)
	// ListByStatus filters on status in the query itself, so the limit
	// applies to matching rows rather than to the newest rows overall.
	ListByStatus(ctx context.Context, userID string, status model.TaskStatus, limit int) ([]*model.Task, error)
	ListDue(ctx context.Context, userID string, by time.Time) ([]*model.Task, error)
	UpdateStatus(ctx context.Context, userID, taskID string, status model.TaskStatus, at time.Time) error
	// DomainStats aggregates per-domain completions over the trailing 7 and
	// 30 days plus the count of stale (untouched in-progress/todo) tasks.
	DomainStats(ctx context.Context, userID string, now time.Time) ([]model.DomainStats, error)
	// RecurringStats reports expected versus completed counts for each
	// recurring task, measured against its cadence.
	RecurringStats(ctx context.Context, userID string, now time.Time) ([]model.RecurringStats, error)
}

type Notes interface {
	Create(ctx context.Context, n *model.Note) (*model.Note, error)
	ListRecent(ctx context.Context, userID string, limit int) ([]*model.Note, error)
	Search(ctx context.Context, userID, query string, limit int) ([]*model.Note, error)
}

type Projects interface {
	Create(ctx context.Context, p *model.Project) (*model.Project, error)
	List(ctx context.Context, userID string) ([]*model.Project, error)
}

type Profiles interface {
	// Get returns model.ErrNotFound when no profile has been computed yet.
	Get(ctx context.Context, userID string) (*model.Profile, error)
	Put(ctx context.Context, p *model.Profile) (*model.Profile, error)
}

type Conversations interface {
	// GetOrCreate returns the conversation for (user, scope, project),
	// creating it lazily on first use.
	GetOrCreate(ctx context.Context, userID string, scope model.ConversationScope, projectID *string) (*model.Conversation, error)
	GetByID(ctx context.Context, conversationID string) (*model.Conversation, error)
	// UpdateSummary advances the compaction watermark. It never moves the
	// watermark backwards.
	UpdateSummary(ctx context.Context, conversationID, summary, watermark string, at time.Time) error
}

type Messages interface {
	// Append adds a message and increments the conversation's message count.
	Append(ctx context.Context, m *model.Message) (*model.Message, error)
	List(ctx context.Context, req model.ListMessagesRequest) ([]*model.Message, error)
	// DeleteThrough removes all messages up to and including messageID and
	// decrements the conversation's message count accordingly. Used only
	// after the removed prefix has been folded into the summary.
	DeleteThrough(ctx context.Context, conversationID, messageID string) (int, error)
}

type Observations interface {
	// Insert persists a new observation unless an unsurfaced, undismissed
	// observation with the same (user, type, evidence key) already exists,
	// in which case it returns model.ErrDuplicate.
	Insert(ctx context.Context, o *model.Observation) (*model.Observation, error)
	ListUnsurfaced(ctx context.Context, userID string, limit int) ([]*model.Observation, error)
	List(ctx context.Context, userID string, includeDismissed bool) ([]*model.Observation, error)
	// MarkSurfaced sets the surfaced timestamp exactly once; surfacing an
	// already-surfaced observation is a no-op.
	MarkSurfaced(ctx context.Context, userID, observationID string, at time.Time) error
	Dismiss(ctx context.Context, userID, observationID string) error
}

type Notifications interface {
	// MarkSent atomically records a dedup marker for (user, type, bucket).
	// It returns false when the marker already exists, meaning another
	// scheduler run already sent this notification.
	MarkSent(ctx context.Context, userID string, typ model.NotificationType, bucket string, at time.Time) (bool, error)
	// SentSince reports whether a notification of the given type has been
	// recorded for the user after the given instant.
	SentSince(ctx context.Context, userID string, typ model.NotificationType, since time.Time) (bool, error)
}
