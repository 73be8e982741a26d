package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// Reward kinds a rule can hand out
const (
	RewardKindCoupon = "coupon"
	RewardKindStamp  = "stamp"
	RewardKindBadge  = "badge"
)

// ValidRewardKind reports whether kind is one of the supported reward kinds
func ValidRewardKind(kind string) bool {
	switch kind {
	case RewardKindCoupon, RewardKindStamp, RewardKindBadge:
		return true
	}
	return false
}

// Organization is the municipality or merchant that owns reward rules
type Organization struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Prefecture   string    `db:"prefecture" json:"prefecture"`
	Municipality string    `db:"municipality" json:"municipality"`
	Contact      string    `db:"contact" json:"contact"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Condition is the eligibility condition set of a reward rule, stored as JSON
type Condition struct {
	MinimumScore float64  `json:"min_score"`
	QuizIDs      []string `json:"quiz_ids,omitempty"`
}

// AppliesTo reports whether the condition covers quizID. An empty list covers every quiz.
func (c Condition) AppliesTo(quizID string) bool {
	return len(c.QuizIDs) == 0 || slices.Contains(c.QuizIDs, quizID)
}

// Value implements driver.Valuer
func (c Condition) Value() (driver.Value, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (c *Condition) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*c = Condition{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported condition type %T", src)
	}
	if len(raw) == 0 {
		*c = Condition{}
		return nil
	}
	return json.Unmarshal(raw, c)
}

// RewardRule represents a configured reward ("coupon") in the database
type RewardRule struct {
	ID             string     `db:"id" json:"id"`
	OrganizationID string     `db:"organization_id" json:"organization_id"`
	Name           string     `db:"name" json:"name"`
	Description    string     `db:"description" json:"description"`
	RewardKind     string     `db:"reward_kind" json:"reward_kind"`
	StartsAt       *time.Time `db:"starts_at" json:"starts_at,omitempty"`
	EndsAt         *time.Time `db:"ends_at" json:"ends_at,omitempty"`
	Stock          *int64     `db:"stock" json:"stock,omitempty"` // nil means unlimited
	Condition      Condition  `db:"conditions" json:"conditions"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// ActiveAt reports whether now falls inside the rule's activation window
func (r *RewardRule) ActiveAt(now time.Time) bool {
	if r.StartsAt != nil && now.Before(*r.StartsAt) {
		return false
	}
	if r.EndsAt != nil && now.After(*r.EndsAt) {
		return false
	}
	return true
}

// InStock reports whether the rule has unlimited stock or at least one unit left
func (r *RewardRule) InStock() bool {
	return r.Stock == nil || *r.Stock > 0
}

// RedemptionGrant represents one issued single-use code in the database
type RedemptionGrant struct {
	ID            string     `db:"id" json:"id"`
	RuleID        string     `db:"rule_id" json:"rule_id"`
	Code          string     `db:"code" json:"code"`
	RecipientName string     `db:"recipient_name" json:"recipient_name"`
	GrantedAt     time.Time  `db:"granted_at" json:"granted_at"`
	Used          bool       `db:"used" json:"used"`
	UsedAt        *time.Time `db:"used_at" json:"used_at,omitempty"`
}

// RedemptionDetail is a grant joined with its rule and owning organization
type RedemptionDetail struct {
	RedemptionGrant
	RuleName         string `db:"rule_name" json:"rule_name"`
	RuleDescription  string `db:"rule_description" json:"rule_description"`
	RewardKind       string `db:"reward_kind" json:"reward_kind"`
	OrganizationID   string `db:"organization_id" json:"organization_id"`
	OrganizationName string `db:"organization_name" json:"organization_name"`
	Prefecture       string `db:"prefecture" json:"prefecture"`
	Municipality     string `db:"municipality" json:"municipality"`
	Contact          string `db:"contact" json:"contact"`
}
