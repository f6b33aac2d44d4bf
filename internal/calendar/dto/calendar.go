package dto

type CreateCalendarRequest struct {
	Name    string `json:"name" binding:"required"`
	FeedURL string `json:"feed_url" binding:"required,url"`
	Color   string `json:"color"`
}

type AddMemberRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

type KeepSupplementalRequest struct {
	Keep bool `json:"keep"`
}

// AssignRequest mutates event ownership. Exactly one of assignee_id and
// skip should be set; both empty clears the owner. expected_version nil
// requests an unconditional write.
type AssignRequest struct {
	AssigneeID      *string `json:"assignee_id"`
	Skip            bool    `json:"skip"`
	ExpectedVersion *int    `json:"expected_version"`
}

type ConflictCheckRequest struct {
	CandidateID string `json:"candidate_id" binding:"required"`
}
