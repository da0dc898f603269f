// Package innovation defines the resources of the innovation-management client
// (challenges and the ideas submitted to them) and wires them to CRUD services.
package innovation

import (
	"strings"
	"time"
)

// Challenge statuses.
const (
	ChallengeDraft  = "DRAFT"
	ChallengeOpen   = "OPEN"
	ChallengeClosed = "CLOSED"
)

// Idea statuses.
const (
	IdeaSubmitted   = "SUBMITTED"
	IdeaUnderReview = "UNDER_REVIEW"
	IdeaAccepted    = "ACCEPTED"
	IdeaRejected    = "REJECTED"
)

// Challenge is a problem statement ideas are submitted against.
type Challenge struct {
	Deadline    time.Time `json:"deadline"`
	CreatedAt   time.Time `json:"createdAt"`
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Status      string    `json:"status"`
	Tags        []string  `json:"tags,omitempty"`
}

// GetID implements crudclient.Identifiable.
func (c Challenge) GetID() string { return c.ID }

// Idea is a submission to a challenge.
type Idea struct {
	CreatedAt   time.Time `json:"createdAt"`
	ID          string    `json:"id"`
	ChallengeID string    `json:"challengeId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Author      string    `json:"author"`
	Status      string    `json:"status"`
	Votes       int       `json:"votes"`
}

// GetID implements crudclient.Identifiable.
func (i Idea) GetID() string { return i.ID }

// IdeaCriteria is the search body accepted by the ideas search endpoint.
type IdeaCriteria struct {
	ChallengeID string `json:"challengeId,omitempty"`
	Status      string `json:"status,omitempty"`
	Query       string `json:"query,omitempty"`
}

// Matches reports whether idea satisfies every non-empty criterion.
// Query is matched case-insensitively against title and description.
func (c IdeaCriteria) Matches(idea Idea) bool {
	if c.ChallengeID != "" && idea.ChallengeID != c.ChallengeID {
		return false
	}
	if c.Status != "" && !strings.EqualFold(idea.Status, c.Status) {
		return false
	}
	if c.Query != "" {
		q := strings.ToLower(c.Query)
		if !strings.Contains(strings.ToLower(idea.Title), q) &&
			!strings.Contains(strings.ToLower(idea.Description), q) {
			return false
		}
	}
	return true
}
