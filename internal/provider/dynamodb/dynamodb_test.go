//go:build integration

package dynamodb

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/factcorpus/internal/provider"
	"github.com/dwsmith1983/factcorpus/pkg/types"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	tableName := fmt.Sprintf("factcorpus-test-%d", time.Now().UnixNano())
	cfg := &types.DynamoDBConfig{
		TableName:   tableName,
		Region:      "us-east-1",
		Endpoint:    "http://localhost:8000",
		CreateTable: true,
	}
	s, err := New(ctx, cfg, nil)
	if err != nil {
		t.Skipf("DynamoDB Local not available: %v", err)
	}
	if err := s.Start(ctx); err != nil {
		t.Skipf("DynamoDB Local not available: %v", err)
	}
	t.Cleanup(func() {
		_, _ = s.client.DeleteTable(context.Background(), &dynamodb.DeleteTableInput{
			TableName: &tableName,
		})
	})
	return s
}

func TestJobLifecycle(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	entry := types.CorpusEntry{ID: "serde-1.0.0", Name: "serde", Version: "1.0.0"}

	first := types.BuildJob{ID: ulid.Make().String(), RunID: "run-a", Entry: entry, Attempt: 1, Outcome: types.OutcomeTimeout}
	second := types.BuildJob{ID: ulid.Make().String(), RunID: "run-b", Entry: entry, Attempt: 2, Outcome: types.OutcomeSuccess}
	require.NoError(t, s.PutJob(ctx, first))
	require.NoError(t, s.PutJob(ctx, second))

	err := s.PutJob(ctx, first)
	assert.ErrorIs(t, err, provider.ErrJobExists)

	got, err := s.GetJob(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeSuccess, got.Outcome)

	// GSIs are eventually consistent.
	require.Eventually(t, func() bool {
		jobs, err := s.ListJobs(ctx, entry.ID)
		return err == nil && len(jobs) == 2
	}, 5*time.Second, 100*time.Millisecond)

	jobs, err := s.ListJobs(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, jobs[0].ID)

	run, err := s.ListRun(ctx, "run-b")
	require.NoError(t, err)
	require.Len(t, run, 1)
	assert.Equal(t, second.ID, run[0].ID)

	_, err = s.GetJob(ctx, "missing")
	assert.ErrorIs(t, err, provider.ErrJobNotFound)
}
