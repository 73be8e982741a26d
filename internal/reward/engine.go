// Package reward turns finished quiz attempts into single-use redemption codes
// and adjudicates their redemption.
package reward

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/kkkkikiki/portal/internal/apperr"
	"github.com/kkkkikiki/portal/internal/logger"
	"github.com/kkkkikiki/portal/internal/metrics"
	"github.com/kkkkikiki/portal/internal/model"
	"github.com/kkkkikiki/portal/internal/repository"
)

// Granted describes one code issued by Grant
type Granted struct {
	GrantID     string `json:"grantId"`
	RuleID      string `json:"ruleId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Code        string `json:"code"`
	RewardKind  string `json:"rewardKind"`
}

// Engine evaluates reward rules and manages redemption grants
type Engine struct {
	db       *sqlx.DB
	orgs     *repository.OrganizationRepository
	rules    *repository.RuleRepository
	grants   *repository.GrantRepository
	attempts *repository.AttemptRepository

	log     *logger.Logger
	now     func() time.Time
	newCode func() (string, error)
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger
func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// WithClock sets the time source used for activation windows and timestamps
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithCodeGenerator replaces GenerateCode
func WithCodeGenerator(gen func() (string, error)) Option {
	return func(e *Engine) {
		e.newCode = gen
	}
}

// NewEngine creates a new Engine backed by db
func NewEngine(db *sqlx.DB, opts ...Option) *Engine {
	e := &Engine{
		db:       db,
		orgs:     repository.NewOrganizationRepository(),
		rules:    repository.NewRuleRepository(),
		grants:   repository.NewGrantRepository(),
		attempts: repository.NewAttemptRepository(),
		log:      logger.Nop(),
		now:      func() time.Time { return time.Now().UTC() },
		newCode:  GenerateCode,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Grant issues a code for every rule the attempt satisfies. Rules are evaluated
// independently: a rule that fails to persist is logged and skipped, and an
// empty result is not an error.
func (e *Engine) Grant(ctx context.Context, quizID string, score float64, recipientName string) ([]Granted, error) {
	const op = "grant"

	start := time.Now()
	status := "failure"
	defer func() {
		metrics.RecordGrantDuration(status, time.Since(start).Seconds())
	}()

	if strings.TrimSpace(quizID) == "" {
		return nil, apperr.Validation(op, "quizId is required")
	}
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return nil, apperr.Validation(op, "score must be a finite number")
	}

	candidates, err := e.rules.ListGrantableRules(ctx, e.db)
	if err != nil {
		return nil, apperr.Unavailable(op, err)
	}

	now := e.now()
	log := e.log.With("quiz_id", quizID)
	granted := []Granted{}
	failed := 0

	for i := range candidates {
		rule := &candidates[i]
		if !eligible(rule, quizID, score, now) {
			continue
		}

		g, err := e.grantOne(ctx, rule, recipientName, now)
		if errors.Is(err, repository.ErrOutOfStock) {
			log.Debug("Rule ran out of stock during grant", "rule_id", rule.ID)
			continue
		}
		if err != nil {
			failed++
			log.Error("Failed to grant reward", "rule_id", rule.ID, "error", err)
			continue
		}

		metrics.RecordGrantIssued(rule.RewardKind)
		granted = append(granted, *g)
	}

	status = "success"
	if failed > 0 {
		status = "partial"
	}
	log.Info("Evaluated reward rules", "candidates", len(candidates), "granted", len(granted), "failed", failed)

	return granted, nil
}

// eligible applies the quiz, score, window and stock conditions of a rule
func eligible(rule *model.RewardRule, quizID string, score float64, now time.Time) bool {
	return rule.Condition.AppliesTo(quizID) &&
		score >= rule.Condition.MinimumScore &&
		rule.ActiveAt(now) &&
		rule.InStock()
}

// grantOne decrements finite stock and stores the grant in one transaction
func (e *Engine) grantOne(ctx context.Context, rule *model.RewardRule, recipientName string, now time.Time) (*Granted, error) {
	code, err := e.newCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate code: %w", err)
	}

	tx, err := e.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if rule.Stock != nil {
		if err := e.rules.DecrementStock(ctx, tx, rule.ID); err != nil {
			return nil, err
		}
	}

	grant := &model.RedemptionGrant{
		RuleID:        rule.ID,
		Code:          code,
		RecipientName: recipientName,
		GrantedAt:     now,
	}
	if err := e.grants.CreateGrant(ctx, tx, grant); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &Granted{
		GrantID:     grant.ID,
		RuleID:      rule.ID,
		Name:        rule.Name,
		Description: rule.Description,
		Code:        code,
		RewardKind:  rule.RewardKind,
	}, nil
}

// Verify reports whether code is redeemable without consuming it
func (e *Engine) Verify(ctx context.Context, code string) (*model.RedemptionDetail, error) {
	detail, err := e.lookup(ctx, "verify", code)
	metrics.RecordRedemption("verify", outcome(err))
	return detail, err
}

// Redeem consumes code. Exactly one of any number of concurrent calls for the
// same code succeeds; the rest fail with an already-used error.
func (e *Engine) Redeem(ctx context.Context, code string) (*model.RedemptionDetail, error) {
	detail, err := e.redeem(ctx, code)
	metrics.RecordRedemption("use", outcome(err))
	return detail, err
}

func (e *Engine) redeem(ctx context.Context, code string) (*model.RedemptionDetail, error) {
	const op = "redeem"

	detail, err := e.lookup(ctx, op, code)
	if err != nil {
		return nil, err
	}

	usedAt := e.now()
	err = e.grants.MarkUsed(ctx, e.db, detail.ID, usedAt)
	if errors.Is(err, repository.ErrAlreadyUsed) {
		// Lost the race to a concurrent redemption.
		current, gerr := e.grants.GetGrant(ctx, e.db, detail.ID)
		if gerr != nil {
			return nil, apperr.Unavailable(op, gerr)
		}
		return nil, alreadyUsed(op, current.UsedAt)
	}
	if err != nil {
		return nil, apperr.Unavailable(op, err)
	}

	e.log.Info("Redeemed code", "grant_id", detail.ID, "rule_id", detail.RuleID, "organization_id", detail.OrganizationID)

	detail.Used = true
	detail.UsedAt = &usedAt
	return detail, nil
}

// lookup finds the grant for code and rejects consumed ones
func (e *Engine) lookup(ctx context.Context, op, code string) (*model.RedemptionDetail, error) {
	if code == "" {
		return nil, apperr.Validation(op, "code is required")
	}

	detail, err := e.grants.GetDetailByCode(ctx, e.db, code)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound(op, fmt.Errorf("no grant for code"))
	}
	if err != nil {
		return nil, apperr.Unavailable(op, err)
	}
	if detail.Used {
		return nil, alreadyUsed(op, detail.UsedAt)
	}
	return detail, nil
}

func alreadyUsed(op string, usedAt *time.Time) error {
	if usedAt == nil {
		return &apperr.Error{Kind: apperr.KindAlreadyUsed, Op: op}
	}
	return apperr.AlreadyUsed(op, *usedAt)
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	switch k := apperr.KindOf(err); k {
	case apperr.KindNotFound, apperr.KindAlreadyUsed, apperr.KindValidation:
		return string(k)
	default:
		return "error"
	}
}
