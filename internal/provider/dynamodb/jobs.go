package dynamodb

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/dwsmith1983/factcorpus/internal/provider"
	"github.com/dwsmith1983/factcorpus/pkg/types"
)

// PutJob stores a job record. The write is conditional on the id being
// new, keeping records insert-only.
func (s *Store) PutJob(ctx context.Context, job types.BuildJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshaling job: %w", err)
	}

	item := map[string]ddbtypes.AttributeValue{
		"PK":      &ddbtypes.AttributeValueMemberS{Value: jobPK(job.ID)},
		"SK":      &ddbtypes.AttributeValueMemberS{Value: recordSK()},
		"GSI1PK":  &ddbtypes.AttributeValueMemberS{Value: entryPK(job.Entry.ID)},
		"GSI1SK":  &ddbtypes.AttributeValueMemberS{Value: jobSK(job.ID)},
		"GSI2PK":  &ddbtypes.AttributeValueMemberS{Value: runPK(job.RunID)},
		"GSI2SK":  &ddbtypes.AttributeValueMemberS{Value: jobSK(job.ID)},
		"outcome": &ddbtypes.AttributeValueMemberS{Value: string(job.Outcome)},
		"data":    &ddbtypes.AttributeValueMemberS{Value: string(data)},
	}
	if s.retentionTTL > 0 {
		item["ttl"] = &ddbtypes.AttributeValueMemberN{Value: strconv.FormatInt(ttlEpoch(s.retentionTTL), 10)}
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if isConditionalCheckFailed(err) {
		return fmt.Errorf("%w: %s", provider.ErrJobExists, job.ID)
	}
	if err != nil {
		return fmt.Errorf("putting job %s: %w", job.ID, err)
	}
	return nil
}

// GetJob retrieves a job by id.
func (s *Store) GetJob(ctx context.Context, id string) (*types.BuildJob, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]ddbtypes.AttributeValue{
			"PK": &ddbtypes.AttributeValueMemberS{Value: jobPK(id)},
			"SK": &ddbtypes.AttributeValueMemberS{Value: recordSK()},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("getting job %s: %w", id, err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("%w: %s", provider.ErrJobNotFound, id)
	}
	if ttl, _ := attributeInt(out.Item, "ttl"); isExpired(ttl) {
		return nil, fmt.Errorf("%w: %s", provider.ErrJobNotFound, id)
	}

	data, err := attributeStr(out.Item, "data")
	if err != nil {
		return nil, err
	}
	var job types.BuildJob
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, fmt.Errorf("decoding job %s: %w", id, err)
	}
	return &job, nil
}

// ListJobs returns every attempt on a corpus entry via GSI1, oldest first.
func (s *Store) ListJobs(ctx context.Context, entryID string) ([]types.BuildJob, error) {
	return s.queryIndex(ctx, indexEntry, "GSI1PK", entryPK(entryID))
}

// ListRun returns the jobs of one run via GSI2, oldest first.
func (s *Store) ListRun(ctx context.Context, runID string) ([]types.BuildJob, error) {
	return s.queryIndex(ctx, indexRun, "GSI2PK", runPK(runID))
}

func (s *Store) queryIndex(ctx context.Context, index, attr, key string) ([]types.BuildJob, error) {
	var (
		jobs  []types.BuildJob
		start map[string]ddbtypes.AttributeValue
	)
	for {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              &s.tableName,
			IndexName:              aws.String(index),
			KeyConditionExpression: aws.String(attr + " = :pk"),
			ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
				":pk": &ddbtypes.AttributeValueMemberS{Value: key},
			},
			ScanIndexForward:  aws.Bool(true),
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, fmt.Errorf("querying %s: %w", index, err)
		}
		for _, item := range out.Items {
			if ttl, _ := attributeInt(item, "ttl"); isExpired(ttl) {
				continue
			}
			data, err := attributeStr(item, "data")
			if err != nil {
				s.logger.Warn("skipping corrupt job entry", "error", err)
				continue
			}
			var job types.BuildJob
			if err := json.Unmarshal([]byte(data), &job); err != nil {
				s.logger.Warn("skipping corrupt job data", "error", err)
				continue
			}
			jobs = append(jobs, job)
		}
		if len(out.LastEvaluatedKey) == 0 {
			return jobs, nil
		}
		start = out.LastEvaluatedKey
	}
}

// attributeStr extracts a string attribute from a DynamoDB item.
func attributeStr(item map[string]ddbtypes.AttributeValue, key string) (string, error) {
	av, ok := item[key]
	if !ok {
		return "", fmt.Errorf("missing attribute %q", key)
	}
	var s string
	if err := attributevalue.Unmarshal(av, &s); err != nil {
		return "", fmt.Errorf("unmarshaling %q: %w", key, err)
	}
	return s, nil
}

// attributeInt extracts an integer attribute from a DynamoDB item.
func attributeInt(item map[string]ddbtypes.AttributeValue, key string) (int64, error) {
	av, ok := item[key]
	if !ok {
		return 0, nil
	}
	var n int64
	if err := attributevalue.Unmarshal(av, &n); err != nil {
		return 0, fmt.Errorf("unmarshaling %q: %w", key, err)
	}
	return n, nil
}
