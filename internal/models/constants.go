package models

// ProjectStatus константы статусов проектов
const (
	ProjectStatusDraft      = "draft"
	ProjectStatusOpen       = "open"
	ProjectStatusInProgress = "in_progress"
	ProjectStatusInReview   = "in_review"
	ProjectStatusCompleted  = "completed"
	ProjectStatusCancelled  = "cancelled"
	ProjectStatusDisputed   = "disputed"
)

// ProposalStatus константы статусов предложений
const (
	ProposalStatusPending     = "pending"
	ProposalStatusShortlisted = "shortlisted"
	ProposalStatusAccepted    = "accepted"
	ProposalStatusRejected    = "rejected"
	ProposalStatusWithdrawn   = "withdrawn"
)

// MilestoneStatus константы статусов этапов
const (
	MilestoneStatusPending    = "pending"
	MilestoneStatusInProgress = "in_progress"
	MilestoneStatusCompleted  = "completed"
	MilestoneStatusApproved   = "approved"
	MilestoneStatusDisputed   = "disputed"
)

// Роли пользователей
const (
	RoleClient     = "client"
	RoleFreelancer = "freelancer"
	RoleAdmin      = "admin"
)

// Типы бюджета
const (
	BudgetTypeFixed  = "fixed"
	BudgetTypeHourly = "hourly"
)

// ExperienceLevel константы уровней опыта
const (
	ExperienceLevelJunior = "junior"
	ExperienceLevelMiddle = "middle"
	ExperienceLevelSenior = "senior"
)

// SkillPriority константы приоритетов требуемых навыков
const (
	SkillPriorityRequired = "required"
	SkillPriorityDesired  = "desired"
)

// ValidProjectStatuses список валидных статусов проектов
var ValidProjectStatuses = map[string]struct{}{
	ProjectStatusDraft:      {},
	ProjectStatusOpen:       {},
	ProjectStatusInProgress: {},
	ProjectStatusInReview:   {},
	ProjectStatusCompleted:  {},
	ProjectStatusCancelled:  {},
	ProjectStatusDisputed:   {},
}

// ValidProposalStatuses список валидных статусов предложений
var ValidProposalStatuses = map[string]struct{}{
	ProposalStatusPending:     {},
	ProposalStatusShortlisted: {},
	ProposalStatusAccepted:    {},
	ProposalStatusRejected:    {},
	ProposalStatusWithdrawn:   {},
}

// ValidMilestoneStatuses список валидных статусов этапов
var ValidMilestoneStatuses = map[string]struct{}{
	MilestoneStatusPending:    {},
	MilestoneStatusInProgress: {},
	MilestoneStatusCompleted:  {},
	MilestoneStatusApproved:   {},
	MilestoneStatusDisputed:   {},
}

// ValidRoles список валидных ролей
var ValidRoles = map[string]struct{}{
	RoleClient:     {},
	RoleFreelancer: {},
	RoleAdmin:      {},
}

// ValidBudgetTypes список валидных типов бюджета
var ValidBudgetTypes = map[string]struct{}{
	BudgetTypeFixed:  {},
	BudgetTypeHourly: {},
}

// ValidExperienceLevels список валидных уровней опыта
var ValidExperienceLevels = map[string]struct{}{
	ExperienceLevelJunior: {},
	ExperienceLevelMiddle: {},
	ExperienceLevelSenior: {},
}
