package group

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// MemberRole represents the role of a group member
type MemberRole string

const (
	MemberRoleAdmin  MemberRole = "ADMIN"
	MemberRoleMember MemberRole = "MEMBER"
)

// Group represents a group in the system
type Group struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Description     *string   `json:"description,omitempty"`
	InviteCode      string    `json:"-"`
	CreatedByUserID int64     `json:"created_by_user_id"`
	CreatedAt       time.Time `json:"created_at"`
}

// GroupMember represents a user's membership in a group
type GroupMember struct {
	GroupID  int64      `json:"group_id"`
	UserID   int64      `json:"user_id"`
	Role     MemberRole `json:"role"`
	JoinedAt time.Time  `json:"joined_at"`

	// Populated from JOIN
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// PeriodUnit is the settlement cadence unit: hours, days, weeks or months
type PeriodUnit byte

const (
	UnitHour  PeriodUnit = 'h'
	UnitDay   PeriodUnit = 'd'
	UnitWeek  PeriodUnit = 'w'
	UnitMonth PeriodUnit = 'm'
)

// ErrInvalidPeriod is returned for a cadence string that cannot be parsed
var ErrInvalidPeriod = errors.New("invalid settlement period")

// Period is a group's auto-finalization cadence
type Period struct {
	Value int        `json:"value"`
	Unit  PeriodUnit `json:"unit"`
}

// SettlementPeriod is the stored per-group scheduling state
type SettlementPeriod struct {
	GroupID         int64      `json:"group_id"`
	Period          Period     `json:"period"`
	LastFinalizedAt *time.Time `json:"last_finalized_at,omitempty"`
	NextFinalizeAt  *time.Time `json:"next_finalize_at,omitempty"`
}

// ParsePeriod parses a cadence string such as "1h", "6h", "12h", "1d", "1w"
// or "1m" into a Period.
func ParsePeriod(s string) (Period, error) {
	if len(s) < 2 {
		return Period{}, ErrInvalidPeriod
	}

	unit := PeriodUnit(s[len(s)-1])
	switch unit {
	case UnitHour, UnitDay, UnitWeek, UnitMonth:
	default:
		return Period{}, ErrInvalidPeriod
	}

	value, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || value <= 0 {
		return Period{}, ErrInvalidPeriod
	}

	return Period{Value: value, Unit: unit}, nil
}

// String renders the period in its wire form, e.g. "1d".
func (p Period) String() string {
	return fmt.Sprintf("%d%c", p.Value, p.Unit)
}

// NextAfter returns the next finalization instant following t.
func (p Period) NextAfter(t time.Time) time.Time {
	switch p.Unit {
	case UnitHour:
		return t.Add(time.Duration(p.Value) * time.Hour)
	case UnitDay:
		return t.AddDate(0, 0, p.Value)
	case UnitWeek:
		return t.AddDate(0, 0, 7*p.Value)
	case UnitMonth:
		return t.AddDate(0, p.Value, 0)
	default:
		return t
	}
}
