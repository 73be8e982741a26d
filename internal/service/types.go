package service

import (
	"encoding/json"
	"time"

	"github.com/kkkkikiki/portal/internal/model"
	"github.com/kkkkikiki/portal/internal/reward"
)

// Redemption actions
const (
	ActionVerify = "verify"
	ActionUse    = "use"
)

type GrantRequest struct {
	QuizID        string   `json:"quizId" validate:"required"`
	Score         *float64 `json:"score" validate:"required"`
	RecipientName string   `json:"recipientName" validate:"max=200"`
}

type GrantResponse struct {
	Grants []reward.Granted `json:"grants"`
}

type SubmitAttemptRequest struct {
	QuizID          string          `json:"quizId" validate:"required"`
	ParticipantName string          `json:"participantName" validate:"max=200"`
	Score           *float64        `json:"score" validate:"required"`
	MaxScore        float64         `json:"maxScore"`
	StartedAt       *time.Time      `json:"startedAt"`
	FinishedAt      *time.Time      `json:"finishedAt"`
	Answers         json.RawMessage `json:"answers"`
}

type SubmitAttemptResponse struct {
	AttemptID string           `json:"attemptId"`
	Grants    []reward.Granted `json:"grants"`
}

type RedemptionRequest struct {
	Code   string `json:"code" validate:"required"`
	Action string `json:"action" validate:"required,oneof=verify use"`
}

type RedemptionResponse struct {
	Valid  bool                    `json:"valid"`
	Action string                  `json:"action"`
	Grant  *model.RedemptionDetail `json:"grant"`
}

type CreateOrganizationRequest struct {
	Name         string `json:"name" validate:"required,max=200"`
	Prefecture   string `json:"prefecture"`
	Municipality string `json:"municipality"`
	Contact      string `json:"contact"`
}

type OrganizationResponse struct {
	Organization *model.Organization `json:"organization"`
}

type CreateRuleRequest struct {
	OrganizationID string     `json:"organizationId" validate:"required"`
	Name           string     `json:"name" validate:"required,max=200"`
	Description    string     `json:"description"`
	RewardKind     string     `json:"rewardKind" validate:"required,oneof=coupon stamp badge"`
	StartsAt       *time.Time `json:"startsAt"`
	EndsAt         *time.Time `json:"endsAt"`
	Stock          *int64     `json:"stock" validate:"omitempty,min=0"`
	MinimumScore   float64    `json:"minimumScore"`
	QuizIDs        []string   `json:"quizIds"`
}

type RuleResponse struct {
	Rule *model.RewardRule `json:"rule"`
}

type ListRulesRequest struct {
	OrganizationID string `json:"organizationId"`
}

type ListRulesResponse struct {
	Rules []model.RewardRule `json:"rules"`
}

type RespondRequest struct {
	// Message must be present but may be empty.
	Message *string `json:"message" validate:"required"`
}

type RespondResponse struct {
	ResponseText string `json:"responseText"`
}
