package reward

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/kkkkikiki/portal/internal/apperr"
	"github.com/kkkkikiki/portal/internal/model"
	"github.com/kkkkikiki/portal/internal/repository"
)

// SubmitAttempt stores a finished quiz attempt and grants every reward it earns
func (e *Engine) SubmitAttempt(ctx context.Context, attempt *model.QuizAttempt) ([]Granted, error) {
	const op = "submit attempt"

	if strings.TrimSpace(attempt.QuizID) == "" {
		return nil, apperr.Validation(op, "quizId is required")
	}
	if math.IsNaN(attempt.Score) || math.IsInf(attempt.Score, 0) {
		return nil, apperr.Validation(op, "score must be a finite number")
	}
	if attempt.StartedAt != nil && attempt.FinishedAt != nil && attempt.FinishedAt.Before(*attempt.StartedAt) {
		return nil, apperr.Validation(op, "finishedAt is before startedAt")
	}

	if err := e.attempts.CreateAttempt(ctx, e.db, attempt); err != nil {
		return nil, apperr.Unavailable(op, err)
	}

	return e.Grant(ctx, attempt.QuizID, attempt.Score, attempt.ParticipantName)
}

// CreateOrganization registers an organization that can own reward rules
func (e *Engine) CreateOrganization(ctx context.Context, org *model.Organization) error {
	const op = "create organization"

	if strings.TrimSpace(org.Name) == "" {
		return apperr.Validation(op, "name is required")
	}
	if err := e.orgs.CreateOrganization(ctx, e.db, org); err != nil {
		return apperr.Unavailable(op, err)
	}
	return nil
}

// CreateRule validates and stores a reward rule
func (e *Engine) CreateRule(ctx context.Context, rule *model.RewardRule) error {
	const op = "create rule"

	switch {
	case strings.TrimSpace(rule.Name) == "":
		return apperr.Validation(op, "name is required")
	case rule.OrganizationID == "":
		return apperr.Validation(op, "organizationId is required")
	case !model.ValidRewardKind(rule.RewardKind):
		return apperr.Validation(op, "rewardKind %q is not one of coupon, stamp, badge", rule.RewardKind)
	case rule.Stock != nil && *rule.Stock < 0:
		return apperr.Validation(op, "stock must not be negative")
	case rule.StartsAt != nil && rule.EndsAt != nil && rule.EndsAt.Before(*rule.StartsAt):
		return apperr.Validation(op, "endsAt is before startsAt")
	case math.IsNaN(rule.Condition.MinimumScore) || math.IsInf(rule.Condition.MinimumScore, 0):
		return apperr.Validation(op, "minimum score must be a finite number")
	}

	if _, err := e.orgs.GetOrganization(ctx, e.db, rule.OrganizationID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound(op, err)
		}
		return apperr.Unavailable(op, err)
	}

	rule.CreatedAt = e.now()
	if err := e.rules.CreateRule(ctx, e.db, rule); err != nil {
		return apperr.Unavailable(op, err)
	}
	e.log.Info("Created reward rule", "rule_id", rule.ID, "organization_id", rule.OrganizationID, "reward_kind", rule.RewardKind)
	return nil
}

// ListRules lists the rules of an organization, or all rules when organizationID is empty
func (e *Engine) ListRules(ctx context.Context, organizationID string) ([]model.RewardRule, error) {
	rules, err := e.rules.ListRules(ctx, e.db, organizationID)
	if err != nil {
		return nil, apperr.Unavailable("list rules", err)
	}
	return rules, nil
}
