package service

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"github.com/go-playground/validator/v10"

	"github.com/kkkkikiki/portal/internal/model"
	"github.com/kkkkikiki/portal/internal/reward"
)

const (
	// RewardServiceName is the fully-qualified name of the reward service
	RewardServiceName = "portal.v1.RewardService"

	GrantProcedure         = "/" + RewardServiceName + "/Grant"
	SubmitAttemptProcedure = "/" + RewardServiceName + "/SubmitAttempt"
	RedemptionProcedure    = "/" + RewardServiceName + "/Redemption"
)

// RewardServer implements the reward service
type RewardServer struct {
	engine   *reward.Engine
	validate *validator.Validate
}

// NewRewardServer creates a new RewardServer instance
func NewRewardServer(engine *reward.Engine) *RewardServer {
	return &RewardServer{engine: engine, validate: newValidator()}
}

// NewRewardServiceHandler builds an HTTP handler serving every reward procedure
func NewRewardServiceHandler(s *RewardServer, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{JSONCodec()}, opts...)
	mux := http.NewServeMux()
	mux.Handle(GrantProcedure, connect.NewUnaryHandler(GrantProcedure, s.Grant, opts...))
	mux.Handle(SubmitAttemptProcedure, connect.NewUnaryHandler(SubmitAttemptProcedure, s.SubmitAttempt, opts...))
	mux.Handle(RedemptionProcedure, connect.NewUnaryHandler(RedemptionProcedure, s.Redemption, opts...))
	return "/" + RewardServiceName + "/", mux
}

// Grant issues codes for every reward rule the score satisfies
func (s *RewardServer) Grant(
	ctx context.Context,
	req *connect.Request[GrantRequest],
) (*connect.Response[GrantResponse], error) {
	if err := s.validate.Struct(req.Msg); err != nil {
		return nil, validationError("grant", err)
	}

	grants, err := s.engine.Grant(ctx, req.Msg.QuizID, *req.Msg.Score, req.Msg.RecipientName)
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&GrantResponse{Grants: grants}), nil
}

// SubmitAttempt records a finished quiz attempt and grants its rewards
func (s *RewardServer) SubmitAttempt(
	ctx context.Context,
	req *connect.Request[SubmitAttemptRequest],
) (*connect.Response[SubmitAttemptResponse], error) {
	if err := s.validate.Struct(req.Msg); err != nil {
		return nil, validationError("submit attempt", err)
	}

	attempt := &model.QuizAttempt{
		QuizID:          req.Msg.QuizID,
		ParticipantName: req.Msg.ParticipantName,
		Score:           *req.Msg.Score,
		MaxScore:        req.Msg.MaxScore,
		StartedAt:       req.Msg.StartedAt,
		FinishedAt:      req.Msg.FinishedAt,
		Answers:         string(req.Msg.Answers),
	}
	grants, err := s.engine.SubmitAttempt(ctx, attempt)
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&SubmitAttemptResponse{AttemptID: attempt.ID, Grants: grants}), nil
}

// Redemption verifies or consumes a code depending on the requested action
func (s *RewardServer) Redemption(
	ctx context.Context,
	req *connect.Request[RedemptionRequest],
) (*connect.Response[RedemptionResponse], error) {
	if err := s.validate.Struct(req.Msg); err != nil {
		return nil, validationError("redemption", err)
	}

	var (
		detail *model.RedemptionDetail
		err    error
	)
	switch req.Msg.Action {
	case ActionVerify:
		detail, err = s.engine.Verify(ctx, req.Msg.Code)
	case ActionUse:
		detail, err = s.engine.Redeem(ctx, req.Msg.Code)
	}
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&RedemptionResponse{
		Valid:  true,
		Action: req.Msg.Action,
		Grant:  detail,
	}), nil
}
