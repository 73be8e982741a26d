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
	// AdminServiceName is the fully-qualified name of the admin service
	AdminServiceName = "portal.v1.AdminService"

	CreateOrganizationProcedure = "/" + AdminServiceName + "/CreateOrganization"
	CreateRuleProcedure         = "/" + AdminServiceName + "/CreateRule"
	ListRulesProcedure          = "/" + AdminServiceName + "/ListRules"
)

// AdminServer configures organizations and reward rules
type AdminServer struct {
	engine   *reward.Engine
	validate *validator.Validate
}

// NewAdminServer creates a new AdminServer instance
func NewAdminServer(engine *reward.Engine) *AdminServer {
	return &AdminServer{engine: engine, validate: newValidator()}
}

// NewAdminServiceHandler builds an HTTP handler serving every admin procedure
func NewAdminServiceHandler(s *AdminServer, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{JSONCodec()}, opts...)
	mux := http.NewServeMux()
	mux.Handle(CreateOrganizationProcedure, connect.NewUnaryHandler(CreateOrganizationProcedure, s.CreateOrganization, opts...))
	mux.Handle(CreateRuleProcedure, connect.NewUnaryHandler(CreateRuleProcedure, s.CreateRule, opts...))
	mux.Handle(ListRulesProcedure, connect.NewUnaryHandler(ListRulesProcedure, s.ListRules, opts...))
	return "/" + AdminServiceName + "/", mux
}

// CreateOrganization registers an organization
func (s *AdminServer) CreateOrganization(
	ctx context.Context,
	req *connect.Request[CreateOrganizationRequest],
) (*connect.Response[OrganizationResponse], error) {
	if err := s.validate.Struct(req.Msg); err != nil {
		return nil, validationError("create organization", err)
	}

	org := &model.Organization{
		Name:         req.Msg.Name,
		Prefecture:   req.Msg.Prefecture,
		Municipality: req.Msg.Municipality,
		Contact:      req.Msg.Contact,
	}
	if err := s.engine.CreateOrganization(ctx, org); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&OrganizationResponse{Organization: org}), nil
}

// CreateRule creates a reward rule
func (s *AdminServer) CreateRule(
	ctx context.Context,
	req *connect.Request[CreateRuleRequest],
) (*connect.Response[RuleResponse], error) {
	if err := s.validate.Struct(req.Msg); err != nil {
		return nil, validationError("create rule", err)
	}

	rule := &model.RewardRule{
		OrganizationID: req.Msg.OrganizationID,
		Name:           req.Msg.Name,
		Description:    req.Msg.Description,
		RewardKind:     req.Msg.RewardKind,
		StartsAt:       req.Msg.StartsAt,
		EndsAt:         req.Msg.EndsAt,
		Stock:          req.Msg.Stock,
		Condition: model.Condition{
			MinimumScore: req.Msg.MinimumScore,
			QuizIDs:      req.Msg.QuizIDs,
		},
	}
	if err := s.engine.CreateRule(ctx, rule); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&RuleResponse{Rule: rule}), nil
}

// ListRules lists reward rules, optionally for one organization
func (s *AdminServer) ListRules(
	ctx context.Context,
	req *connect.Request[ListRulesRequest],
) (*connect.Response[ListRulesResponse], error) {
	rules, err := s.engine.ListRules(ctx, req.Msg.OrganizationID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ListRulesResponse{Rules: rules}), nil
}
