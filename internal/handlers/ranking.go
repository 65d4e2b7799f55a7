package handlers

import (
	"context"

	"github.com/gdg-garage/sputnik-ledger/internal/pagination"
	"github.com/gdg-garage/sputnik-ledger/internal/ranking"
	"go.uber.org/zap"
)

type RankingHandler struct {
	engine *ranking.Engine
	log    *zap.Logger
}

func NewRankingHandler(engine *ranking.Engine, log *zap.Logger) *RankingHandler {
	return &RankingHandler{engine: engine, log: log.With(zap.String("handler", "ranking"))}
}

type RanksOutput struct {
	Body *ranking.Ranks
}

func (h *RankingHandler) HandleMyRanks(ctx context.Context, input *struct{}) (*RanksOutput, error) {
	actor, err := currentActor(ctx)
	if err != nil {
		return nil, err
	}
	ranks, err := h.engine.AllRanks(ctx, actor.ID)
	if err != nil {
		return nil, httpError(h.log, err)
	}
	return &RanksOutput{Body: ranks}, nil
}

type ScopeInput struct {
	Scope string `path:"scope" enum:"group,institute,university"`
}

type RankOutput struct {
	Body *ranking.Position
}

func (h *RankingHandler) HandleMyRank(ctx context.Context, input *ScopeInput) (*RankOutput, error) {
	actor, err := currentActor(ctx)
	if err != nil {
		return nil, err
	}
	scope, err := ranking.ParseScope(input.Scope)
	if err != nil {
		return nil, httpError(h.log, err)
	}
	p, err := h.engine.Rank(ctx, actor.ID, scope)
	if err != nil {
		return nil, httpError(h.log, err)
	}
	return &RankOutput{Body: p}, nil
}

type LeaderboardInput struct {
	Scope   string `path:"scope" enum:"group,institute,university"`
	ScopeID uint   `query:"scope_id" doc:"Group or institute id; staff only, students always see their own"`
	Page    int    `query:"page" minimum:"1" default:"1"`
	Limit   int    `query:"limit" minimum:"1" default:"20"`
}

type LeaderboardOutput struct {
	Body *pagination.Page[ranking.LeaderboardRow]
}

func (h *RankingHandler) HandleLeaderboard(ctx context.Context, input *LeaderboardInput) (*LeaderboardOutput, error) {
	actor, err := currentActor(ctx)
	if err != nil {
		return nil, err
	}
	scope, err := ranking.ParseScope(input.Scope)
	if err != nil {
		return nil, httpError(h.log, err)
	}
	var scopeID *uint
	if input.ScopeID != 0 {
		scopeID = &input.ScopeID
	}
	page, err := h.engine.TopStudents(ctx, actor, scope, scopeID, pagination.Query{Page: input.Page, Limit: input.Limit})
	if err != nil {
		return nil, httpError(h.log, err)
	}
	return &LeaderboardOutput{Body: page}, nil
}
