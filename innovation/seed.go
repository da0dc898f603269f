package innovation

import "time"

var seedEpoch = time.Date(2026, time.January, 12, 9, 0, 0, 0, time.UTC)

// SeedChallenges returns the bundled challenge dataset. Each call returns a fresh slice.
func SeedChallenges() []Challenge {
	return []Challenge{
		{
			ID:          "CH-1",
			Title:       "Reduce onboarding time",
			Description: "Cut the time a new hire needs to ship their first change.",
			Category:    "People",
			Status:      ChallengeOpen,
			Tags:        []string{"onboarding", "tooling"},
			CreatedAt:   seedEpoch,
			Deadline:    seedEpoch.AddDate(0, 2, 0),
		},
		{
			ID:          "CH-2",
			Title:       "Greener offices",
			Description: "Lower energy use across our sites without hurting comfort.",
			Category:    "Sustainability",
			Status:      ChallengeOpen,
			Tags:        []string{"energy"},
			CreatedAt:   seedEpoch.AddDate(0, 0, 7),
			Deadline:    seedEpoch.AddDate(0, 3, 0),
		},
		{
			ID:          "CH-3",
			Title:       "Self-service reporting",
			Description: "Let every team build the reports they need without a ticket.",
			Category:    "Data",
			Status:      ChallengeClosed,
			CreatedAt:   seedEpoch.AddDate(0, 0, -30),
			Deadline:    seedEpoch.AddDate(0, 0, -1),
		},
	}
}

// SeedIdeas returns the bundled idea dataset. Each call returns a fresh slice.
func SeedIdeas() []Idea {
	return []Idea{
		{ID: "ID-1", ChallengeID: "CH-1", Title: "Buddy program", Description: "Pair each new hire with a volunteer for a month.", Author: "amara", Status: IdeaAccepted, Votes: 42, CreatedAt: seedEpoch.Add(24 * time.Hour)},
		{ID: "ID-2", ChallengeID: "CH-1", Title: "One-command dev setup", Description: "A script that provisions a working laptop.", Author: "jonas", Status: IdeaUnderReview, Votes: 31, CreatedAt: seedEpoch.Add(48 * time.Hour)},
		{ID: "ID-3", ChallengeID: "CH-2", Title: "Motion-sensor lighting", Description: "Switch meeting room lights off when empty.", Author: "li", Status: IdeaSubmitted, Votes: 12, CreatedAt: seedEpoch.AddDate(0, 0, 8)},
		{ID: "ID-4", ChallengeID: "CH-2", Title: "Shared desk days", Description: "Close one floor on low-attendance days.", Author: "sam", Status: IdeaSubmitted, Votes: 7, CreatedAt: seedEpoch.AddDate(0, 0, 9)},
		{ID: "ID-5", ChallengeID: "CH-3", Title: "Reporting templates", Description: "Curated dashboard templates per department.", Author: "noor", Status: IdeaRejected, Votes: 3, CreatedAt: seedEpoch.AddDate(0, 0, -20)},
		{ID: "ID-6", ChallengeID: "CH-2", Title: "Heat pump pilot", Description: "Trial heat pumps in the smallest office.", Author: "amara", Status: IdeaSubmitted, Votes: 19, CreatedAt: seedEpoch.AddDate(0, 0, 10)},
	}
}
