package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/workhub/backend/internal/models"
)

func TestCanTransition_ProjectTable(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		allowed bool
	}{
		{"черновик публикуется", models.ProjectStatusDraft, models.ProjectStatusOpen, true},
		{"черновик отменяется", models.ProjectStatusDraft, models.ProjectStatusCancelled, true},
		{"открытый в работу", models.ProjectStatusOpen, models.ProjectStatusInProgress, true},
		{"открытый отменяется", models.ProjectStatusOpen, models.ProjectStatusCancelled, true},
		{"в работе на проверку", models.ProjectStatusInProgress, models.ProjectStatusInReview, true},
		{"в работе в спор", models.ProjectStatusInProgress, models.ProjectStatusDisputed, true},
		{"с проверки завершается", models.ProjectStatusInReview, models.ProjectStatusCompleted, true},
		{"с проверки в спор", models.ProjectStatusInReview, models.ProjectStatusDisputed, true},

		{"с проверки обратно в работу", models.ProjectStatusInReview, models.ProjectStatusInProgress, false},
		{"спор терминален", models.ProjectStatusDisputed, models.ProjectStatusCompleted, false},
		{"спор не отменяется", models.ProjectStatusDisputed, models.ProjectStatusCancelled, false},
		{"открытый сразу завершён", models.ProjectStatusOpen, models.ProjectStatusCompleted, false},
		{"завершённый повторно открыт", models.ProjectStatusCompleted, models.ProjectStatusOpen, false},
		{"отменённый в работу", models.ProjectStatusCancelled, models.ProjectStatusInProgress, false},
		{"в работе назад в открытый", models.ProjectStatusInProgress, models.ProjectStatusOpen, false},
		{"неизвестный статус", "archived", models.ProjectStatusOpen, false},
		{"переход в самого себя", models.ProjectStatusOpen, models.ProjectStatusOpen, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := CanTransition(KindProject, tt.from, tt.to, models.RoleAdmin, RelationNone)
			assert.Equal(t, tt.allowed, d.Allowed)
			if !tt.allowed {
				assert.Equal(t, ReasonInvalidTransition, d.Reason)
			}
		})
	}
}

func TestCanTransition_ProposalTable(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		allowed bool
	}{
		{"ожидающее принимается", models.ProposalStatusPending, models.ProposalStatusAccepted, true},
		{"ожидающее отклоняется", models.ProposalStatusPending, models.ProposalStatusRejected, true},
		{"ожидающее в шортлист", models.ProposalStatusPending, models.ProposalStatusShortlisted, true},
		{"ожидающее отзывается", models.ProposalStatusPending, models.ProposalStatusWithdrawn, true},
		{"из шортлиста принимается", models.ProposalStatusShortlisted, models.ProposalStatusAccepted, true},
		{"из шортлиста отклоняется", models.ProposalStatusShortlisted, models.ProposalStatusRejected, true},

		{"отклонённое принимается", models.ProposalStatusRejected, models.ProposalStatusAccepted, false},
		{"принятое отзывается", models.ProposalStatusAccepted, models.ProposalStatusWithdrawn, false},
		{"отозванное отклоняется", models.ProposalStatusWithdrawn, models.ProposalStatusRejected, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := CanTransition(KindProposal, tt.from, tt.to, models.RoleAdmin, RelationNone)
			assert.Equal(t, tt.allowed, d.Allowed)
		})
	}
}

func TestCanTransition_MilestoneTable(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		allowed bool
	}{
		{"этап начинается", models.MilestoneStatusPending, models.MilestoneStatusInProgress, true},
		{"этап сдаётся", models.MilestoneStatusInProgress, models.MilestoneStatusCompleted, true},
		{"этап подтверждается", models.MilestoneStatusCompleted, models.MilestoneStatusApproved, true},
		{"этап возвращается в работу", models.MilestoneStatusCompleted, models.MilestoneStatusInProgress, true},
		{"этап оспаривается", models.MilestoneStatusCompleted, models.MilestoneStatusDisputed, true},

		{"ожидающий сразу подтверждён", models.MilestoneStatusPending, models.MilestoneStatusApproved, false},
		{"подтверждённый возвращается", models.MilestoneStatusApproved, models.MilestoneStatusInProgress, false},
		{"спорный сдаётся", models.MilestoneStatusDisputed, models.MilestoneStatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := CanTransition(KindMilestone, tt.from, tt.to, models.RoleAdmin, RelationNone)
			assert.Equal(t, tt.allowed, d.Allowed)
		})
	}
}

func TestCanTransition_RoleGates(t *testing.T) {
	// Принятие предложения — прерогатива владельца проекта.
	d := CanTransition(KindProposal, models.ProposalStatusPending, models.ProposalStatusAccepted, models.RoleFreelancer, RelationProposer)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonForbidden, d.Reason)

	d = CanTransition(KindProposal, models.ProposalStatusPending, models.ProposalStatusAccepted, models.RoleClient, RelationOwner)
	assert.True(t, d.Allowed)

	// Отозвать предложение может только его автор.
	d = CanTransition(KindProposal, models.ProposalStatusPending, models.ProposalStatusWithdrawn, models.RoleClient, RelationOwner)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonForbidden, d.Reason)

	d = CanTransition(KindProposal, models.ProposalStatusPending, models.ProposalStatusWithdrawn, models.RoleFreelancer, RelationProposer)
	assert.True(t, d.Allowed)

	// Сдаёт этап назначенный исполнитель, подтверждает — владелец.
	d = CanTransition(KindMilestone, models.MilestoneStatusInProgress, models.MilestoneStatusCompleted, models.RoleClient, RelationOwner)
	assert.False(t, d.Allowed)

	d = CanTransition(KindMilestone, models.MilestoneStatusInProgress, models.MilestoneStatusCompleted, models.RoleFreelancer, RelationAssigned)
	assert.True(t, d.Allowed)

	d = CanTransition(KindMilestone, models.MilestoneStatusCompleted, models.MilestoneStatusApproved, models.RoleFreelancer, RelationAssigned)
	assert.False(t, d.Allowed)

	d = CanTransition(KindMilestone, models.MilestoneStatusCompleted, models.MilestoneStatusApproved, models.RoleClient, RelationOwner)
	assert.True(t, d.Allowed)
}

func TestCanTransition_AdminBypassesGateNotTable(t *testing.T) {
	// Администратор не обязан быть участником проекта.
	d := CanTransition(KindProject, models.ProjectStatusInProgress, models.ProjectStatusDisputed, models.RoleAdmin, RelationNone)
	assert.True(t, d.Allowed)

	// Но таблица переходов обязательна и для него.
	d = CanTransition(KindProject, models.ProjectStatusCompleted, models.ProjectStatusOpen, models.RoleAdmin, RelationNone)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonInvalidTransition, d.Reason)
}

func TestCanTransition_UnknownEntity(t *testing.T) {
	d := CanTransition(EntityKind("invoice"), "draft", "sent", models.RoleAdmin, RelationNone)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonUnknownEntity, d.Reason)
}
