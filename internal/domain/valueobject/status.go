package valueobject

import "github.com/workhub/backend/internal/pkg/apperror"

type ProjectStatus string

const (
	ProjectStatusDraft      ProjectStatus = "draft"
	ProjectStatusOpen       ProjectStatus = "open"
	ProjectStatusInProgress ProjectStatus = "in_progress"
	ProjectStatusInReview   ProjectStatus = "in_review"
	ProjectStatusCompleted  ProjectStatus = "completed"
	ProjectStatusCancelled  ProjectStatus = "cancelled"
	ProjectStatusDisputed   ProjectStatus = "disputed"
)

// projectTransitions задаёт таблицу допустимых переходов статуса проекта.
// Статусы с пустым списком — терминальные.
var projectTransitions = map[ProjectStatus][]ProjectStatus{
	ProjectStatusDraft:      {ProjectStatusOpen, ProjectStatusCancelled},
	ProjectStatusOpen:       {ProjectStatusInProgress, ProjectStatusCancelled},
	ProjectStatusInProgress: {ProjectStatusInReview, ProjectStatusCompleted, ProjectStatusCancelled, ProjectStatusDisputed},
	ProjectStatusInReview:   {ProjectStatusCompleted, ProjectStatusDisputed},
	ProjectStatusCompleted:  {},
	ProjectStatusCancelled:  {},
	ProjectStatusDisputed:   {},
}

func (s ProjectStatus) IsValid() bool {
	_, ok := projectTransitions[s]
	return ok
}

func (s ProjectStatus) IsTerminal() bool {
	return len(projectTransitions[s]) == 0
}

func (s ProjectStatus) CanTransitionTo(newStatus ProjectStatus) bool {
	for _, status := range projectTransitions[s] {
		if status == newStatus {
			return true
		}
	}
	return false
}

func NewProjectStatus(status string) (ProjectStatus, error) {
	s := ProjectStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус проекта")
	}
	return s, nil
}

type ProposalStatus string

const (
	ProposalStatusPending     ProposalStatus = "pending"
	ProposalStatusShortlisted ProposalStatus = "shortlisted"
	ProposalStatusAccepted    ProposalStatus = "accepted"
	ProposalStatusRejected    ProposalStatus = "rejected"
	ProposalStatusWithdrawn   ProposalStatus = "withdrawn"
)

// proposalTransitions: accepted, rejected и withdrawn — терминальные.
var proposalTransitions = map[ProposalStatus][]ProposalStatus{
	ProposalStatusPending:     {ProposalStatusShortlisted, ProposalStatusAccepted, ProposalStatusRejected, ProposalStatusWithdrawn},
	ProposalStatusShortlisted: {ProposalStatusAccepted, ProposalStatusRejected, ProposalStatusWithdrawn},
	ProposalStatusAccepted:    {},
	ProposalStatusRejected:    {},
	ProposalStatusWithdrawn:   {},
}

func (s ProposalStatus) IsValid() bool {
	_, ok := proposalTransitions[s]
	return ok
}

func (s ProposalStatus) IsTerminal() bool {
	return len(proposalTransitions[s]) == 0
}

func (s ProposalStatus) CanTransitionTo(newStatus ProposalStatus) bool {
	for _, status := range proposalTransitions[s] {
		if status == newStatus {
			return true
		}
	}
	return false
}

func NewProposalStatus(status string) (ProposalStatus, error) {
	s := ProposalStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус предложения")
	}
	return s, nil
}

type MilestoneStatus string

const (
	MilestoneStatusPending    MilestoneStatus = "pending"
	MilestoneStatusInProgress MilestoneStatus = "in_progress"
	MilestoneStatusCompleted  MilestoneStatus = "completed"
	MilestoneStatusApproved   MilestoneStatus = "approved"
	MilestoneStatusDisputed   MilestoneStatus = "disputed"
)

// milestoneTransitions: клиент может вернуть сданный этап в работу.
var milestoneTransitions = map[MilestoneStatus][]MilestoneStatus{
	MilestoneStatusPending:    {MilestoneStatusInProgress},
	MilestoneStatusInProgress: {MilestoneStatusCompleted, MilestoneStatusDisputed},
	MilestoneStatusCompleted:  {MilestoneStatusApproved, MilestoneStatusInProgress, MilestoneStatusDisputed},
	MilestoneStatusApproved:   {},
	MilestoneStatusDisputed:   {},
}

func (s MilestoneStatus) IsValid() bool {
	_, ok := milestoneTransitions[s]
	return ok
}

func (s MilestoneStatus) IsTerminal() bool {
	return len(milestoneTransitions[s]) == 0
}

func (s MilestoneStatus) CanTransitionTo(newStatus MilestoneStatus) bool {
	for _, status := range milestoneTransitions[s] {
		if status == newStatus {
			return true
		}
	}
	return false
}

func NewMilestoneStatus(status string) (MilestoneStatus, error) {
	s := MilestoneStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус этапа")
	}
	return s, nil
}
