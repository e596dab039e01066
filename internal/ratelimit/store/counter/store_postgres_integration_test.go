//go:build integration

package counter_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"singluten/internal/ratelimit/models"
	"singluten/internal/ratelimit/store/counter"
	"singluten/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *counter.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())

	var err error
	s.store, err = counter.NewPostgres(s.postgres.DB, counter.CollectionAddress)
	s.Require().NoError(err)
	s.Require().NoError(s.store.EnsureSchema(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), counter.CollectionAddress)
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestIncrementCreatesAndGrows() {
	ctx := context.Background()
	window := time.Date(2024, time.March, 6, 0, 0, 0, 0, time.UTC)

	count, err := s.store.Increment(ctx, "1.2.3.4", models.BucketStats, window)
	s.Require().NoError(err)
	s.Equal(int64(1), count)

	count, err = s.store.Increment(ctx, "1.2.3.4", models.BucketStats, window)
	s.Require().NoError(err)
	s.Equal(int64(2), count)

	got, err := s.store.Count(ctx, "1.2.3.4", models.BucketStats, window)
	s.Require().NoError(err)
	s.Equal(int64(2), got)
}

func (s *PostgresStoreSuite) TestCountMissingRowIsZero() {
	ctx := context.Background()
	window := time.Date(2024, time.March, 6, 0, 0, 0, 0, time.UTC)

	count, err := s.store.Count(ctx, "absent", models.BucketStats, window)
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *PostgresStoreSuite) TestKeyTripleIsolation() {
	ctx := context.Background()
	window := time.Date(2024, time.March, 6, 0, 0, 0, 0, time.UTC)

	_, err := s.store.Increment(ctx, "1.2.3.4", models.BucketStats, window)
	s.Require().NoError(err)

	count, err := s.store.Increment(ctx, "1.2.3.4", models.BucketContactIP, window)
	s.Require().NoError(err)
	s.Equal(int64(1), count)

	count, err = s.store.Increment(ctx, "1.2.3.4", models.BucketStats, window.Add(15*time.Minute))
	s.Require().NoError(err)
	s.Equal(int64(1), count)
}

// TestConcurrentIncrements verifies the atomic find-or-create-and-increment
// contract: every concurrent caller observes a distinct post-increment count.
func (s *PostgresStoreSuite) TestConcurrentIncrements() {
	ctx := context.Background()
	window := time.Date(2024, time.March, 6, 0, 0, 0, 0, time.UTC)
	const goroutines = 50

	var wg sync.WaitGroup
	var overCeiling atomic.Int32
	const ceiling = 10

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			count, err := s.store.Increment(ctx, "conc", models.BucketStats, window)
			s.Require().NoError(err)
			if count > ceiling {
				overCeiling.Add(1)
			}
		}()
	}
	wg.Wait()

	// Exactly goroutines-ceiling callers must land above the ceiling.
	s.Equal(int32(goroutines-ceiling), overCeiling.Load())

	count, err := s.store.Count(ctx, "conc", models.BucketStats, window)
	s.Require().NoError(err)
	s.Equal(int64(goroutines), count)
}

func (s *PostgresStoreSuite) TestPurgeRespectsCutoff() {
	ctx := context.Background()
	old := time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2024, time.March, 6, 0, 0, 0, 0, time.UTC)

	_, err := s.store.Increment(ctx, "old", models.BucketStats, old)
	s.Require().NoError(err)
	_, err = s.store.Increment(ctx, "recent", models.BucketStats, recent)
	s.Require().NoError(err)

	removed, err := s.store.Purge(ctx, recent)
	s.Require().NoError(err)
	s.Equal(int64(1), removed)

	count, err := s.store.Count(ctx, "recent", models.BucketStats, recent)
	s.Require().NoError(err)
	s.Equal(int64(1), count)
}
