package lifecycle

import (
	"fmt"

	"github.com/workhub/backend/internal/domain/valueobject"
	"github.com/workhub/backend/internal/models"
)

// EntityKind различает сущности, для которых проверяются переходы статусов.
type EntityKind string

const (
	KindProject   EntityKind = "project"
	KindProposal  EntityKind = "proposal"
	KindMilestone EntityKind = "milestone"
)

// Relation описывает отношение актора к сущности.
type Relation string

const (
	RelationOwner    Relation = "owner"    // клиент-владелец проекта
	RelationAssigned Relation = "assigned" // выбранный исполнитель
	RelationProposer Relation = "proposer" // автор предложения
	RelationNone     Relation = "none"
)

// Reason — машинная причина отказа.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonInvalidTransition Reason = "invalid_transition"
	ReasonForbidden         Reason = "forbidden"
	ReasonUnknownEntity     Reason = "unknown_entity"
)

// Decision — результат проверки перехода.
type Decision struct {
	Allowed bool
	Reason  Reason
	Detail  string
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason Reason, detail string) Decision {
	return Decision{Allowed: false, Reason: reason, Detail: detail}
}

// roleGates задаёт, какие отношения к сущности дают право запросить целевой статус.
// Проверяется после табличной проверки перехода. Роль admin обходит эту матрицу,
// но не таблицу переходов.
var projectRoleGates = map[valueobject.ProjectStatus][]Relation{
	valueobject.ProjectStatusOpen:       {RelationOwner},
	valueobject.ProjectStatusInProgress: {RelationOwner},
	valueobject.ProjectStatusInReview:   {RelationAssigned},
	valueobject.ProjectStatusCompleted:  {RelationOwner},
	valueobject.ProjectStatusCancelled:  {RelationOwner},
	valueobject.ProjectStatusDisputed:   {RelationOwner, RelationAssigned},
}

var proposalRoleGates = map[valueobject.ProposalStatus][]Relation{
	valueobject.ProposalStatusShortlisted: {RelationOwner},
	valueobject.ProposalStatusAccepted:    {RelationOwner},
	valueobject.ProposalStatusRejected:    {RelationOwner},
	valueobject.ProposalStatusWithdrawn:   {RelationProposer},
}

var milestoneRoleGates = map[valueobject.MilestoneStatus][]Relation{
	valueobject.MilestoneStatusInProgress: {RelationOwner, RelationAssigned},
	valueobject.MilestoneStatusCompleted:  {RelationAssigned},
	valueobject.MilestoneStatusApproved:   {RelationOwner},
	valueobject.MilestoneStatusDisputed:   {RelationOwner, RelationAssigned},
}

// CanTransition проверяет допустимость перехода статуса без какого-либо I/O.
// Сначала табличная проверка (current → requested), затем матрица ролей.
func CanTransition(kind EntityKind, current, requested, actorRole string, relation Relation) Decision {
	switch kind {
	case KindProject:
		cur, err := valueobject.NewProjectStatus(current)
		if err != nil {
			return deny(ReasonInvalidTransition, fmt.Sprintf("неизвестный статус проекта %q", current))
		}
		req, err := valueobject.NewProjectStatus(requested)
		if err != nil {
			return deny(ReasonInvalidTransition, fmt.Sprintf("неизвестный статус проекта %q", requested))
		}
		if !cur.CanTransitionTo(req) {
			return deny(ReasonInvalidTransition, transitionDetail(current, requested))
		}
		return checkGate(projectRoleGates[req], actorRole, relation)

	case KindProposal:
		cur, err := valueobject.NewProposalStatus(current)
		if err != nil {
			return deny(ReasonInvalidTransition, fmt.Sprintf("неизвестный статус предложения %q", current))
		}
		req, err := valueobject.NewProposalStatus(requested)
		if err != nil {
			return deny(ReasonInvalidTransition, fmt.Sprintf("неизвестный статус предложения %q", requested))
		}
		if !cur.CanTransitionTo(req) {
			return deny(ReasonInvalidTransition, transitionDetail(current, requested))
		}
		return checkGate(proposalRoleGates[req], actorRole, relation)

	case KindMilestone:
		cur, err := valueobject.NewMilestoneStatus(current)
		if err != nil {
			return deny(ReasonInvalidTransition, fmt.Sprintf("неизвестный статус этапа %q", current))
		}
		req, err := valueobject.NewMilestoneStatus(requested)
		if err != nil {
			return deny(ReasonInvalidTransition, fmt.Sprintf("неизвестный статус этапа %q", requested))
		}
		if !cur.CanTransitionTo(req) {
			return deny(ReasonInvalidTransition, transitionDetail(current, requested))
		}
		return checkGate(milestoneRoleGates[req], actorRole, relation)
	}

	return deny(ReasonUnknownEntity, fmt.Sprintf("неизвестный тип сущности %q", kind))
}

func checkGate(allowed []Relation, actorRole string, relation Relation) Decision {
	// Администратор обходит матрицу ролей, но не таблицу переходов.
	if actorRole == models.RoleAdmin {
		return allow()
	}
	for _, rel := range allowed {
		if rel == relation {
			return allow()
		}
	}
	return deny(ReasonForbidden, "действие недоступно для вашей роли в проекте")
}

func transitionDetail(current, requested string) string {
	return fmt.Sprintf("переход из статуса %q в статус %q недопустим", current, requested)
}
