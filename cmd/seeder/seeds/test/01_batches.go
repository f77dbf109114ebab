package test

import (
	"context"

	"minerva/internal/testsupport/seeds"
)

// SeedBatches creates the minimal fixtures end-to-end test suites expect:
// a handful of pending batches with no agent activity yet.
func SeedBatches(ctx context.Context, s *seeds.Seeder) error {
	for _, ticker := range []string{"AAPL", "MSFT"} {
		if _, err := s.Batch(ticker).Insert(ctx); err != nil {
			return err
		}
	}
	return nil
}
