package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gdg-garage/sputnik-ledger/internal/achievements"
	"github.com/gdg-garage/sputnik-ledger/internal/models"
	"github.com/gdg-garage/sputnik-ledger/internal/pagination"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AchievementHandler struct {
	svc *achievements.Service
	log *zap.Logger
}

func NewAchievementHandler(svc *achievements.Service, log *zap.Logger) *AchievementHandler {
	return &AchievementHandler{svc: svc, log: log.With(zap.String("handler", "achievements"))}
}

type CatalogEntryResponse struct {
	models.Achievement
	Unlocked   bool       `json:"unlocked"`
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
}

type ListAchievementsOutput struct {
	Body []CatalogEntryResponse
}

func (h *AchievementHandler) HandleList(ctx context.Context, input *struct{}) (*ListAchievementsOutput, error) {
	actor, err := currentActor(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := h.svc.AchievementsForUser(ctx, actor.ID)
	if err != nil {
		return nil, httpError(h.log, err)
	}
	return catalogOutput(entries), nil
}

func catalogOutput(entries []achievements.CatalogEntry) *ListAchievementsOutput {
	out := &ListAchievementsOutput{Body: make([]CatalogEntryResponse, len(entries))}
	for i, e := range entries {
		out.Body[i] = CatalogEntryResponse{Achievement: e.Achievement, Unlocked: e.Unlocked, UnlockedAt: e.UnlockedAt}
	}
	return out
}

type CreateAchievementRequest struct {
	Body struct {
		Name               string                     `json:"name" doc:"Name of the achievement" required:"true" minLength:"1"`
		Type               models.AchievementType     `json:"type" enum:"regular,event,secret" required:"true"`
		Category           models.AchievementCategory `json:"category" enum:"study,science,sport,social,creative" required:"true"`
		Rarity             models.AchievementRarity   `json:"rarity" enum:"common,rare,epic,legendary" required:"true"`
		Reward             int64                      `json:"reward" doc:"Points credited to the student" minimum:"0"`
		HiddenIconPath     string                     `json:"hidden_icon_path,omitempty"`
		OpenedIconPath     string                     `json:"opened_icon_path,omitempty"`
		SputnikRequirement string                     `json:"sputnik_requirement,omitempty"`
		StudentRequirement string                     `json:"student_requirement,omitempty"`
		Hint               *string                    `json:"hint,omitempty"`
		RoflDescription    *string                    `json:"rofl_description,omitempty"`
	}
}

// HandleStudentCatalog is HandleList as seen by the given student. Staff only.
func (h *AchievementHandler) HandleStudentCatalog(ctx context.Context, input *StudentUnlockedInput) (*ListAchievementsOutput, error) {
	actor, err := currentActor(ctx)
	if err != nil {
		return nil, err
	}
	if !actor.Role.IsStaff() {
		return nil, huma.Error403Forbidden("Only staff can view other students' achievements")
	}
	studentID, err := uuid.Parse(input.ID)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity("Invalid student id")
	}
	entries, err := h.svc.StudentCatalog(ctx, studentID)
	if err != nil {
		return nil, httpError(h.log, err)
	}
	return catalogOutput(entries), nil
}

type AchievementOutput struct {
	Body *models.Achievement
}

func (h *AchievementHandler) HandleCreate(ctx context.Context, input *CreateAchievementRequest) (*AchievementOutput, error) {
	actor, err := currentActor(ctx)
	if err != nil {
		return nil, err
	}
	b := input.Body
	a, err := h.svc.CreateAchievement(ctx, actor, achievements.CreateAchievementInput{
		Name:               b.Name,
		Type:               b.Type,
		Category:           b.Category,
		Rarity:             b.Rarity,
		Reward:             b.Reward,
		HiddenIconPath:     b.HiddenIconPath,
		OpenedIconPath:     b.OpenedIconPath,
		SputnikRequirement: b.SputnikRequirement,
		StudentRequirement: b.StudentRequirement,
		Hint:               b.Hint,
		RoflDescription:    b.RoflDescription,
	})
	if err != nil {
		return nil, httpError(h.log, err)
	}
	return &AchievementOutput{Body: a}, nil
}

type AwardsOutput struct {
	Body []models.IssuedAchievement
}

func (h *AchievementHandler) HandleMyUnlocked(ctx context.Context, input *struct{}) (*AwardsOutput, error) {
	actor, err := currentActor(ctx)
	if err != nil {
		return nil, err
	}
	awards, err := h.svc.UnlockedAwards(ctx, actor.ID)
	if err != nil {
		return nil, httpError(h.log, err)
	}
	return &AwardsOutput{Body: awards}, nil
}

type StudentUnlockedInput struct {
	ID string `path:"id" format:"uuid"`
}

func (h *AchievementHandler) HandleStudentUnlocked(ctx context.Context, input *StudentUnlockedInput) (*AwardsOutput, error) {
	actor, err := currentActor(ctx)
	if err != nil {
		return nil, err
	}
	if !actor.Role.IsStaff() {
		return nil, huma.Error403Forbidden("Only staff can view other students' achievements")
	}
	studentID, err := uuid.Parse(input.ID)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity("Invalid student id")
	}
	awards, err := h.svc.UnlockedAwards(ctx, studentID)
	if err != nil {
		return nil, httpError(h.log, err)
	}
	return &AwardsOutput{Body: awards}, nil
}

type IssueRequest struct {
	Body struct {
		StudentID     uuid.UUID `json:"student_id" required:"true"`
		AchievementID uuid.UUID `json:"achievement_id" required:"true"`
	}
}

type AwardOutput struct {
	Body *models.IssuedAchievement
}

func (h *AchievementHandler) HandleIssue(ctx context.Context, input *IssueRequest) (*AwardOutput, error) {
	actor, err := currentActor(ctx)
	if err != nil {
		return nil, err
	}
	award, err := h.svc.Issue(ctx, actor, input.Body.StudentID, input.Body.AchievementID)
	if err != nil {
		return nil, httpError(h.log, err)
	}
	return &AwardOutput{Body: award}, nil
}

type CancelRequest struct {
	Body struct {
		IssuedAchievementID uuid.UUID `json:"issued_achievement_id" required:"true"`
		Reason              string    `json:"reason" doc:"Why the award is revoked" required:"true" minLength:"1" maxLength:"255"`
	}
}

func (h *AchievementHandler) HandleCancel(ctx context.Context, input *CancelRequest) (*AwardOutput, error) {
	actor, err := currentActor(ctx)
	if err != nil {
		return nil, err
	}
	award, err := h.svc.Cancel(ctx, actor, input.Body.IssuedAchievementID, input.Body.Reason)
	if err != nil {
		return nil, httpError(h.log, err)
	}
	return &AwardOutput{Body: award}, nil
}

func (h *AchievementHandler) HandleUnseen(ctx context.Context, input *struct{}) (*AwardsOutput, error) {
	actor, err := currentActor(ctx)
	if err != nil {
		return nil, err
	}
	awards, err := h.svc.ListUnseen(ctx, actor.ID)
	if err != nil {
		return nil, httpError(h.log, err)
	}
	return &AwardsOutput{Body: awards}, nil
}

type MarkSeenRequest struct {
	Body struct {
		IDs []uuid.UUID `json:"ids" doc:"Issued achievement ids to acknowledge" required:"true"`
	}
}

type MarkSeenOutput struct {
	Body struct {
		Marked int64 `json:"marked"`
	}
}

func (h *AchievementHandler) HandleMarkSeen(ctx context.Context, input *MarkSeenRequest) (*MarkSeenOutput, error) {
	actor, err := currentActor(ctx)
	if err != nil {
		return nil, err
	}
	n, err := h.svc.MarkSeen(ctx, actor.ID, input.Body.IDs)
	if err != nil {
		return nil, httpError(h.log, err)
	}
	out := &MarkSeenOutput{}
	out.Body.Marked = n
	return out, nil
}

type OperationsInput struct {
	PageParams
	Type      string `query:"type" doc:"Filter by operation type"`
	ActorID   string `query:"actor_id" doc:"Filter by actor"`
	StudentID string `query:"student_id" doc:"Filter by student"`
}

type OperationsOutput struct {
	Body *pagination.Page[models.AchievementOperation]
}

func (h *AchievementHandler) HandleOperations(ctx context.Context, input *OperationsInput) (*OperationsOutput, error) {
	actor, err := currentActor(ctx)
	if err != nil {
		return nil, err
	}
	q, err := input.query()
	if err != nil {
		return nil, httpError(h.log, err)
	}
	q.Filter = filters(map[string]string{
		"type":       input.Type,
		"actor_id":   input.ActorID,
		"student_id": input.StudentID,
	})
	page, err := h.svc.Operations(ctx, actor, q)
	if err != nil {
		return nil, httpError(h.log, err)
	}
	return &OperationsOutput{Body: page}, nil
}
