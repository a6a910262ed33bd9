package main

import (
	"context"
	"fmt"
	"time"

	"github.com/trezcool/elimu/core/catalog"
)

// seedCatalog creates a demo "General Studies" category with one published
// module per level, ready for local enrollment testing.
func (cli *commandLine) seedCatalog() error {
	ctx := context.Background()
	now := time.Now().UTC()

	cat, err := cli.catRepo.CreateCategory(ctx, catalog.Category{
		Name:      "General Studies",
		Access:    catalog.AccessFree,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return err
	}

	for _, level := range catalog.Levels {
		mod := catalog.Module{
			Title:       fmt.Sprintf("General Studies (%s)", level),
			Description: "Demo module seeded by the admin CLI.",
			CategoryID:  cat.ID,
			Level:       level,
			Status:      catalog.StatusPublished,
			Lessons: []catalog.Lesson{
				{Title: "Introduction", Content: "Welcome!"},
				{
					Title:   "Fundamentals",
					Content: "The basics.",
					Assessment: &catalog.Assessment{
						PassingScore: 50,
						Questions: []catalog.Question{
							{Kind: catalog.TrueFalse, Prompt: "This lesson has a quiz.", Answer: "true", Points: 1},
						},
					},
				},
			},
			Final: &catalog.Assessment{
				PassingScore: 70,
				MaxAttempts:  2,
				Questions: []catalog.Question{
					{Kind: catalog.MultipleChoice, Prompt: "Pick B.", Choices: []string{"A", "B", "C"}, Answer: "B", Points: 2},
					{Kind: catalog.TrueFalse, Prompt: "The sky is blue.", Answer: "true", Points: 1},
				},
			},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if _, err = cli.catRepo.CreateModule(ctx, mod); err != nil {
			return err
		}
	}

	logger.Printf("seeded category %d with %d modules", cat.ID, len(catalog.Levels))
	return nil
}
