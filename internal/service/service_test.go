package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kkkkikiki/portal/internal/assistant"
	"github.com/kkkkikiki/portal/internal/database/dbtest"
	"github.com/kkkkikiki/portal/internal/model"
	"github.com/kkkkikiki/portal/internal/reward"
)

type emptySource struct{}

func (emptySource) Load(context.Context) (*model.ContentSnapshot, error) {
	return &model.ContentSnapshot{}, nil
}

type clients struct {
	grant      *connect.Client[GrantRequest, GrantResponse]
	submit     *connect.Client[SubmitAttemptRequest, SubmitAttemptResponse]
	redemption *connect.Client[RedemptionRequest, RedemptionResponse]
	createOrg  *connect.Client[CreateOrganizationRequest, OrganizationResponse]
	createRule *connect.Client[CreateRuleRequest, RuleResponse]
	listRules  *connect.Client[ListRulesRequest, ListRulesResponse]
	respond    *connect.Client[RespondRequest, RespondResponse]
}

func newTestServer(t *testing.T) clients {
	t.Helper()

	engine := reward.NewEngine(dbtest.Open(t))
	responder := assistant.NewResponder(emptySource{}, nil, assistant.Config{})

	mux := http.NewServeMux()
	mux.Handle(NewRewardServiceHandler(NewRewardServer(engine)))
	mux.Handle(NewAdminServiceHandler(NewAdminServer(engine)))
	mux.Handle(NewAssistantServiceHandler(NewAssistantServer(responder)))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	hc := srv.Client()
	url := srv.URL
	return clients{
		grant:      connect.NewClient[GrantRequest, GrantResponse](hc, url+GrantProcedure, JSONCodec()),
		submit:     connect.NewClient[SubmitAttemptRequest, SubmitAttemptResponse](hc, url+SubmitAttemptProcedure, JSONCodec()),
		redemption: connect.NewClient[RedemptionRequest, RedemptionResponse](hc, url+RedemptionProcedure, JSONCodec()),
		createOrg:  connect.NewClient[CreateOrganizationRequest, OrganizationResponse](hc, url+CreateOrganizationProcedure, JSONCodec()),
		createRule: connect.NewClient[CreateRuleRequest, RuleResponse](hc, url+CreateRuleProcedure, JSONCodec()),
		listRules:  connect.NewClient[ListRulesRequest, ListRulesResponse](hc, url+ListRulesProcedure, JSONCodec()),
		respond:    connect.NewClient[RespondRequest, RespondResponse](hc, url+RespondProcedure, JSONCodec()),
	}
}

func ptr[T any](v T) *T { return &v }

func setupRule(t *testing.T, c clients, stock *int64) *model.RewardRule {
	t.Helper()
	ctx := context.Background()

	org, err := c.createOrg.CallUnary(ctx, connect.NewRequest(&CreateOrganizationRequest{
		Name: "Sample Town Shopping Street", Prefecture: "Nagano",
	}))
	require.NoError(t, err)

	rule, err := c.createRule.CallUnary(ctx, connect.NewRequest(&CreateRuleRequest{
		OrganizationID: org.Msg.Organization.ID,
		Name:           "Cafe drink ticket",
		RewardKind:     model.RewardKindCoupon,
		Stock:          stock,
		MinimumScore:   80,
		QuizIDs:        []string{"q1"},
	}))
	require.NoError(t, err)
	return rule.Msg.Rule
}

func TestRewardService_GrantVerifyUse(t *testing.T) {
	c := newTestServer(t)
	ctx := context.Background()
	rule := setupRule(t, c, ptr[int64](1))

	granted, err := c.grant.CallUnary(ctx, connect.NewRequest(&GrantRequest{QuizID: "q1", Score: ptr(85.0), RecipientName: "Alice"}))
	require.NoError(t, err)
	require.Len(t, granted.Msg.Grants, 1)
	code := granted.Msg.Grants[0].Code
	assert.Equal(t, rule.ID, granted.Msg.Grants[0].RuleID)

	// stock exhausted
	empty, err := c.grant.CallUnary(ctx, connect.NewRequest(&GrantRequest{QuizID: "q1", Score: ptr(90.0), RecipientName: "Bob"}))
	require.NoError(t, err)
	assert.Empty(t, empty.Msg.Grants)

	verified, err := c.redemption.CallUnary(ctx, connect.NewRequest(&RedemptionRequest{Code: code, Action: ActionVerify}))
	require.NoError(t, err)
	assert.True(t, verified.Msg.Valid)
	assert.Equal(t, ActionVerify, verified.Msg.Action)
	assert.False(t, verified.Msg.Grant.Used)
	assert.Equal(t, "Sample Town Shopping Street", verified.Msg.Grant.OrganizationName)

	used, err := c.redemption.CallUnary(ctx, connect.NewRequest(&RedemptionRequest{Code: code, Action: ActionUse}))
	require.NoError(t, err)
	assert.True(t, used.Msg.Grant.Used)
	require.NotNil(t, used.Msg.Grant.UsedAt)

	_, err = c.redemption.CallUnary(ctx, connect.NewRequest(&RedemptionRequest{Code: code, Action: ActionUse}))
	require.Error(t, err)
	assert.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err))

	var cerr *connect.Error
	require.True(t, errors.As(err, &cerr))
	usedAt, perr := time.Parse(time.RFC3339Nano, cerr.Meta().Get(UsedAtHeader))
	require.NoError(t, perr)
	assert.WithinDuration(t, *used.Msg.Grant.UsedAt, usedAt, time.Millisecond)
}

func TestRewardService_ErrorCodes(t *testing.T) {
	c := newTestServer(t)
	ctx := context.Background()

	_, err := c.redemption.CallUnary(ctx, connect.NewRequest(&RedemptionRequest{Code: "NOPE1234", Action: ActionVerify}))
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))

	_, err = c.redemption.CallUnary(ctx, connect.NewRequest(&RedemptionRequest{Code: "NOPE1234", Action: "burn"}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
	assert.Contains(t, err.Error(), "action")

	_, err = c.grant.CallUnary(ctx, connect.NewRequest(&GrantRequest{QuizID: "q1"}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
	assert.Contains(t, err.Error(), "score")

	_, err = c.createRule.CallUnary(ctx, connect.NewRequest(&CreateRuleRequest{
		OrganizationID: "missing", Name: "x", RewardKind: model.RewardKindStamp,
	}))
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))

	_, err = c.createRule.CallUnary(ctx, connect.NewRequest(&CreateRuleRequest{
		OrganizationID: "missing", Name: "x", RewardKind: model.RewardKindStamp, Stock: ptr[int64](-1),
	}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestRewardService_SubmitAttempt(t *testing.T) {
	c := newTestServer(t)
	ctx := context.Background()
	setupRule(t, c, nil)

	res, err := c.submit.CallUnary(ctx, connect.NewRequest(&SubmitAttemptRequest{
		QuizID:          "q1",
		ParticipantName: "Alice",
		Score:           ptr(80.0),
		MaxScore:        100,
		Answers:         []byte(`{"1":"b"}`),
	}))
	require.NoError(t, err)
	assert.NotEmpty(t, res.Msg.AttemptID)
	assert.Len(t, res.Msg.Grants, 1)
}

func TestAdminService_ListRules(t *testing.T) {
	c := newTestServer(t)
	ctx := context.Background()
	rule := setupRule(t, c, nil)

	res, err := c.listRules.CallUnary(ctx, connect.NewRequest(&ListRulesRequest{OrganizationID: rule.OrganizationID}))
	require.NoError(t, err)
	require.Len(t, res.Msg.Rules, 1)
	assert.Nil(t, res.Msg.Rules[0].Stock)
	assert.Equal(t, []string{"q1"}, res.Msg.Rules[0].Condition.QuizIDs)
}

func TestAssistantService_Respond(t *testing.T) {
	c := newTestServer(t)
	ctx := context.Background()

	res, err := c.respond.CallUnary(ctx, connect.NewRequest(&RespondRequest{Message: ptr("")}))
	require.NoError(t, err)
	assert.NotEmpty(t, res.Msg.ResponseText)

	res, err = c.respond.CallUnary(ctx, connect.NewRequest(&RespondRequest{Message: ptr("hello")}))
	require.NoError(t, err)
	assert.NotEmpty(t, res.Msg.ResponseText)

	_, err = c.respond.CallUnary(ctx, connect.NewRequest(&RespondRequest{}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
	assert.Contains(t, err.Error(), "message")
}
