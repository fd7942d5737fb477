package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/workhub/backend/internal/dto"
	"github.com/workhub/backend/internal/http/handlers/common"
	"github.com/workhub/backend/internal/lifecycle"
	"github.com/workhub/backend/internal/repository"
	"github.com/workhub/backend/internal/service"
)

// ProjectHandler обслуживает маршруты проектов, предложений и этапов.
type ProjectHandler struct {
	projects *service.ProjectService
}

// NewProjectHandler создаёт хэндлер.
func NewProjectHandler(projects *service.ProjectService) *ProjectHandler {
	return &ProjectHandler{projects: projects}
}

func currentActor(c *gin.Context) (lifecycle.Actor, error) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		return lifecycle.Actor{}, err
	}
	role, err := common.CurrentUserRole(c)
	if err != nil {
		return lifecycle.Actor{}, err
	}
	return lifecycle.Actor{ID: userID, Role: role}, nil
}

// CreateProject POST /projects
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	deadline, err := req.ParseDeadline()
	if err != nil {
		common.RespondBadRequest(c, "срок должен быть в формате RFC3339")
		return
	}

	project, err := h.projects.CreateProject(c.Request.Context(), userID, service.ProjectInput{
		Title:       req.Title,
		Description: req.Description,
		BudgetType:  req.BudgetType,
		Currency:    req.Currency,
		BudgetMin:   req.BudgetMin,
		BudgetMax:   req.BudgetMax,
		DeadlineAt:  deadline,
		Skills:      req.RequiredSkills(),
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, project)
}

// GetProject GET /projects/:id
func (h *ProjectHandler) GetProject(c *gin.Context) {
	actor, err := currentActor(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	project, err := h.projects.GetProject(c.Request.Context(), id, actor)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, project)
}

// UpdateProject PUT /projects/:id
func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	actor, err := currentActor(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	deadline, err := req.ParseDeadline()
	if err != nil {
		common.RespondBadRequest(c, "срок должен быть в формате RFC3339")
		return
	}

	project, err := h.projects.UpdateProject(c.Request.Context(), id, actor, service.ProjectInput{
		Title:       req.Title,
		Description: req.Description,
		BudgetType:  req.BudgetType,
		Currency:    req.Currency,
		BudgetMin:   req.BudgetMin,
		BudgetMax:   req.BudgetMax,
		DeadlineAt:  deadline,
		Skills:      req.RequiredSkills(),
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, project)
}

// DeleteProject DELETE /projects/:id
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	actor, err := currentActor(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.projects.DeleteProject(c.Request.Context(), id, actor); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "черновик удалён"})
}

// ListProjects GET /projects — каталог открытых проектов.
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	limit, offset := common.GetPagination(c)

	var skills []string
	if raw := c.Query("skills"); raw != "" {
		skills = strings.Split(raw, ",")
	}

	params := repository.ListFilterParams{
		Status:    c.Query("status"),
		Search:    c.Query("search"),
		Skills:    skills,
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
		Limit:     limit,
		Offset:    offset,
	}
	params.BudgetMin = common.ParseFloatQuery(c, "budget_min")
	params.BudgetMax = common.ParseFloatQuery(c, "budget_max")

	result, err := h.projects.ListProjects(c.Request.Context(), params)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.PaginatedProjectsResponse{
		Projects: result.Projects,
		Pagination: dto.Pagination{
			Total:   result.Total,
			Limit:   result.Limit,
			Offset:  result.Offset,
			HasMore: result.HasMore,
		},
	})
}

// ListMyProjects GET /projects/my — проекты клиента.
func (h *ProjectHandler) ListMyProjects(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	projects, err := h.projects.ListMyProjects(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

// ListAssignedProjects GET /projects/assigned — проекты исполнителя.
func (h *ProjectHandler) ListAssignedProjects(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	projects, err := h.projects.ListAssignedProjects(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

// PublishProject POST /projects/:id/publish — черновик становится открытым.
func (h *ProjectHandler) PublishProject(c *gin.Context) {
	actor, err := currentActor(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	project, err := h.projects.PublishProject(c.Request.Context(), id, actor)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, project)
}

// ChangeStatus PATCH /projects/:id/status
func (h *ProjectHandler) ChangeStatus(c *gin.Context) {
	actor, err := currentActor(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "статус обязателен")
		return
	}

	project, err := h.projects.ChangeStatus(c.Request.Context(), id, req.Status, actor)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, project)
}

// SubmitProposal POST /projects/:id/proposals
func (h *ProjectHandler) SubmitProposal(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	projectID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.SubmitProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	proposal, err := h.projects.SubmitProposal(c.Request.Context(), projectID, userID, req.Amount, req.CoverLetter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, proposal)
}

// DecideProposal PATCH /projects/:id/proposals/:proposalId
func (h *ProjectHandler) DecideProposal(c *gin.Context) {
	actor, err := currentActor(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	projectID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	proposalID, err := common.ParseUUIDParam(c, "proposalId")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.DecideProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "решение обязательно")
		return
	}

	project, err := h.projects.DecideProposal(c.Request.Context(), projectID, proposalID, req.Decision, actor)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, project)
}

// WithdrawProposal DELETE /projects/:id/proposals/:proposalId — фрилансер отзывает своё предложение.
func (h *ProjectHandler) WithdrawProposal(c *gin.Context) {
	actor, err := currentActor(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	projectID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	proposalID, err := common.ParseUUIDParam(c, "proposalId")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	project, err := h.projects.WithdrawProposal(c.Request.Context(), projectID, proposalID, actor)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, project)
}

// ListMyProposals GET /proposals/my
func (h *ProjectHandler) ListMyProposals(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	proposals, err := h.projects.ListMyProposals(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"proposals": proposals})
}

// CreateMilestone POST /projects/:id/milestones
func (h *ProjectHandler) CreateMilestone(c *gin.Context) {
	actor, err := currentActor(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	projectID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.CreateMilestoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	dueDate, err := req.ParseDueDate()
	if err != nil {
		common.RespondBadRequest(c, "срок этапа должен быть в формате RFC3339")
		return
	}

	milestone, err := h.projects.CreateMilestone(c.Request.Context(), projectID, actor, service.MilestoneInput{
		Title:   req.Title,
		Amount:  req.Amount,
		DueDate: dueDate,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, milestone)
}

// ListMilestones GET /projects/:id/milestones
func (h *ProjectHandler) ListMilestones(c *gin.Context) {
	projectID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	milestones, err := h.projects.ListMilestones(c.Request.Context(), projectID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"milestones": milestones})
}

// ChangeMilestoneStatus PATCH /projects/:id/milestones/:milestoneId/status
func (h *ProjectHandler) ChangeMilestoneStatus(c *gin.Context) {
	actor, err := currentActor(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	projectID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	milestoneID, err := common.ParseUUIDParam(c, "milestoneId")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "статус обязателен")
		return
	}

	milestone, progress, err := h.projects.ChangeMilestoneStatus(c.Request.Context(), projectID, milestoneID, req.Status, actor)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.MilestoneStatusResponse{
		Milestone: milestone,
		Progress:  progress,
	})
}
