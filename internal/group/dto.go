package group

// CreateGroupRequest represents the request body for creating a group
type CreateGroupRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=100"`
	Description *string `json:"description,omitempty"`
}

// SetPeriodRequest represents the request body for configuring the
// settlement period. Either a shorthand string ("1d") or value+unit.
type SetPeriodRequest struct {
	Period string `json:"period,omitempty"`
	Value  int    `json:"value,omitempty"`
	Unit   string `json:"unit,omitempty"`
}

// GroupResponse represents the response for a single group
type GroupResponse struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	Description *string           `json:"description,omitempty"`
	CreatedBy   int64             `json:"created_by_user_id"`
	CreatedAt   string            `json:"created_at"`
	Members     []*MemberResponse `json:"members,omitempty"`
}

// MemberResponse represents a member within a group response
type MemberResponse struct {
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

// InviteCodeResponse carries a group's invite code
type InviteCodeResponse struct {
	GroupID    int64  `json:"group_id"`
	InviteCode string `json:"invite_code"`
}

// PeriodResponse represents the stored settlement period
type PeriodResponse struct {
	GroupID         int64  `json:"group_id"`
	Period          string `json:"period"`
	LastFinalizedAt string `json:"last_finalized_at,omitempty"`
	NextFinalizeAt  string `json:"next_finalize_at,omitempty"`
}

// ToResponse converts a Group model to a GroupResponse DTO
func (g *Group) ToResponse(members []*GroupMember) *GroupResponse {
	resp := &GroupResponse{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		CreatedBy:   g.CreatedByUserID,
		CreatedAt:   g.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
	for _, m := range members {
		resp.Members = append(resp.Members, &MemberResponse{
			UserID: m.UserID,
			Name:   m.Name,
			Role:   string(m.Role),
		})
	}
	return resp
}

// ToResponse converts a SettlementPeriod to its DTO
func (sp *SettlementPeriod) ToResponse() *PeriodResponse {
	resp := &PeriodResponse{
		GroupID: sp.GroupID,
		Period:  sp.Period.String(),
	}
	if sp.LastFinalizedAt != nil {
		resp.LastFinalizedAt = sp.LastFinalizedAt.Format("2006-01-02T15:04:05Z")
	}
	if sp.NextFinalizeAt != nil {
		resp.NextFinalizeAt = sp.NextFinalizeAt.Format("2006-01-02T15:04:05Z")
	}
	return resp
}
