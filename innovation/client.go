package innovation

import (
	"context"
	"fmt"

	crudclient "github.com/JohnPlummer/jp-go-crudclient"
)

// Collection paths of the innovation API.
const (
	ChallengesPath = "/api/challenges"
	IdeasPath      = "/api/ideas"
)

// Client groups the CRUD services of the innovation resources.
type Client struct {
	Challenges crudclient.Service[Challenge]
	Ideas      crudclient.Service[Idea]
}

type options struct {
	challenges []Challenge
	ideas      []Idea
	retryCount int
}

// Option configures a Client.
type Option func(*options)

// WithSeedData uses the bundled seed datasets as fallback data.
func WithSeedData() Option {
	return func(o *options) {
		o.challenges = SeedChallenges()
		o.ideas = SeedIdeas()
	}
}

// WithChallengeFallback sets the fallback challenges.
func WithChallengeFallback(items []Challenge) Option {
	return func(o *options) {
		o.challenges = items
	}
}

// WithIdeaFallback sets the fallback ideas.
func WithIdeaFallback(items []Idea) Option {
	return func(o *options) {
		o.ideas = items
	}
}

// WithRetryCount sets the retry count used by both services.
func WithRetryCount(n int) Option {
	return func(o *options) {
		o.retryCount = n
	}
}

// New builds the innovation client on top of exec.
//
// Idea searches filter the fallback dataset by IdeaCriteria; challenge searches page
// through the unfiltered dataset.
func New(exec *crudclient.Executor, opts ...Option) *Client {
	o := options{retryCount: crudclient.DefaultRetryCount}
	for _, opt := range opts {
		opt(&o)
	}

	return &Client{
		Challenges: crudclient.NewCRUDService(
			exec,
			crudclient.RESTEndpoints(ChallengesPath),
			crudclient.WithFallbackData(o.challenges),
			crudclient.WithRetryCount[Challenge](o.retryCount),
		),
		Ideas: crudclient.NewCRUDService(
			exec,
			crudclient.RESTEndpoints(IdeasPath),
			crudclient.WithFallbackData(o.ideas),
			crudclient.WithRetryCount[Idea](o.retryCount),
			crudclient.WithFallbackFilter(matchIdea),
		),
	}
}

func matchIdea(idea Idea, criteria any) bool {
	switch c := criteria.(type) {
	case IdeaCriteria:
		return c.Matches(idea)
	case *IdeaCriteria:
		return c == nil || c.Matches(idea)
	default:
		return true
	}
}

// Dashboard is the landing page summary.
type Dashboard struct {
	RecentChallenges []Challenge `json:"recentChallenges"`
	PendingIdeas     []Idea      `json:"pendingIdeas"`
	TotalChallenges  int         `json:"totalChallenges"`
	TotalPending     int         `json:"totalPending"`
}

// DashboardSize is the number of items listed per dashboard panel.
const DashboardSize = 5

// Dashboard loads the newest challenges and the ideas awaiting review.
func (c *Client) Dashboard(ctx context.Context) (Dashboard, error) {
	challenges, err := c.Challenges.GetAll(ctx, crudclient.PaginationParams{
		Page: 0,
		Size: DashboardSize,
		Sort: []crudclient.SortDirective{{Field: "createdAt", Direction: crudclient.Descending}},
	})
	if err != nil {
		return Dashboard{}, fmt.Errorf("load challenges: %w", err)
	}

	pending, err := c.Ideas.SearchAndFilter(ctx, IdeaCriteria{Status: IdeaSubmitted}, crudclient.PaginationParams{
		Page: 0,
		Size: DashboardSize,
		Sort: []crudclient.SortDirective{{Field: "createdAt", Direction: crudclient.Descending}},
	})
	if err != nil {
		return Dashboard{}, fmt.Errorf("load pending ideas: %w", err)
	}

	return Dashboard{
		RecentChallenges: challenges.Content,
		PendingIdeas:     pending.Content,
		TotalChallenges:  challenges.TotalElements,
		TotalPending:     pending.TotalElements,
	}, nil
}
