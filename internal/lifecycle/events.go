package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Типы событий жизненного цикла.
const (
	EventProposalSubmitted      = "proposal.submitted"
	EventProposalAccepted       = "proposal.accepted"
	EventProposalRejected       = "proposal.rejected"
	EventProposalShortlisted    = "proposal.shortlisted"
	EventProposalWithdrawn      = "proposal.withdrawn"
	EventProjectStatusChanged   = "project.status_changed"
	EventMilestoneStatusChanged = "milestone.status_changed"
)

// Event описывает свершившийся переход для внешней подсистемы уведомлений.
type Event struct {
	Type        string     `json:"type"`
	ProjectID   uuid.UUID  `json:"project_id"`
	ProposalID  *uuid.UUID `json:"proposal_id,omitempty"`
	MilestoneID *uuid.UUID `json:"milestone_id,omitempty"`
	ActorID     uuid.UUID  `json:"actor_id"`
	// Recipients — участники, которых нужно уведомить о переходе.
	Recipients []uuid.UUID `json:"recipients,omitempty"`
	FromStatus string      `json:"from_status,omitempty"`
	ToStatus   string      `json:"to_status,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// EventSink принимает события переходов. Движок никогда не блокируется
// на доставке: публикация выполняется асинхронно, ошибки только логируются.
type EventSink interface {
	Publish(ctx context.Context, event Event) error
}
