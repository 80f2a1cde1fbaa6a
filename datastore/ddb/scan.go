/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/suparena/entitymap/datastore"
)

// ScanProgress is reported after every page of a scan.
type ScanProgress struct {
	ItemsProcessed int64
	PagesProcessed int
	Retries        int
	StartTime      time.Time
}

// ScanOptions tune paging and retries of table scans.
type ScanOptions struct {
	PageSize        int32
	MaxRetries      int
	RetryBackoff    time.Duration
	ProgressHandler func(ScanProgress)
}

// ScanOption configures a Store.
type ScanOption func(*ScanOptions)

// DefaultScanOptions returns the options a Store starts with.
func DefaultScanOptions() ScanOptions {
	return ScanOptions{
		PageSize:     100,
		MaxRetries:   3,
		RetryBackoff: 100 * time.Millisecond,
	}
}

func WithPageSize(n int32) ScanOption {
	return func(o *ScanOptions) { o.PageSize = n }
}

func WithMaxRetries(n int) ScanOption {
	return func(o *ScanOptions) { o.MaxRetries = n }
}

func WithRetryBackoff(d time.Duration) ScanOption {
	return func(o *ScanOptions) { o.RetryBackoff = d }
}

// WithProgressHandler registers a callback invoked after each page.
func WithProgressHandler(h func(ScanProgress)) ScanOption {
	return func(o *ScanOptions) { o.ProgressHandler = h }
}

// Scan reads every row of the table, in insertion order.
func (s *Store) Scan(ctx context.Context, t *datastore.Table) ([]datastore.Row, error) {
	items, err := s.scanItems(ctx, t.Name)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool { return stampOf(items[i]) < stampOf(items[j]) })

	rows := make([]datastore.Row, 0, len(items))
	for _, item := range items {
		row, err := fromItem(t, item)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// scanItems pages through the items whose EntityType is table.
func (s *Store) scanItems(ctx context.Context, table string) ([]map[string]types.AttributeValue, error) {
	input := &sdk.ScanInput{
		TableName:                 &s.tableName,
		FilterExpression:          aws.String("#et = :et"),
		ExpressionAttributeNames:  map[string]string{"#et": AttrEntityType},
		ExpressionAttributeValues: map[string]types.AttributeValue{":et": &types.AttributeValueMemberS{Value: table}},
		Limit:                     aws.Int32(s.options.PageSize),
		ConsistentRead:            aws.Bool(true),
	}

	progress := ScanProgress{StartTime: time.Now()}
	var items []map[string]types.AttributeValue
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		out, retries, err := s.scanWithRetry(ctx, input)
		progress.Retries += retries
		if err != nil {
			return nil, err
		}
		progress.PagesProcessed++
		progress.ItemsProcessed += int64(len(out.Items))
		items = append(items, out.Items...)
		if s.options.ProgressHandler != nil {
			s.options.ProgressHandler(progress)
		}

		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
	s.logger.Debug().Str("entity_table", table).Int("pages", progress.PagesProcessed).Int64("items", progress.ItemsProcessed).Msg("scan")
	return items, nil
}

// scanWithRetry executes one page with linear backoff on retryable errors.
func (s *Store) scanWithRetry(ctx context.Context, input *sdk.ScanInput) (*sdk.ScanOutput, int, error) {
	var lastErr error

	for attempt := 0; attempt <= s.options.MaxRetries; attempt++ {
		out, err := s.client.Scan(ctx, input)
		if err == nil {
			return out, attempt, nil
		}
		lastErr = err

		if !isRetryableError(err) {
			return nil, attempt, fmt.Errorf("scan failed: %w", err)
		}

		// Don't sleep after last attempt
		if attempt < s.options.MaxRetries {
			backoff := time.Duration(attempt+1) * s.options.RetryBackoff
			select {
			case <-ctx.Done():
				return nil, attempt, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return nil, s.options.MaxRetries, fmt.Errorf("scan failed after %d retries: %w", s.options.MaxRetries, lastErr)
}

// isRetryableError determines if a DynamoDB error is retryable
func isRetryableError(err error) bool {
	var (
		throughput *types.ProvisionedThroughputExceededException
		limit      *types.RequestLimitExceeded
		internal   *types.InternalServerError
	)
	if stderrors.As(err, &throughput) || stderrors.As(err, &limit) || stderrors.As(err, &internal) {
		return true
	}

	// Check for AWS SDK retryable errors
	var retryable interface{ IsRetryable() bool }
	if stderrors.As(err, &retryable) {
		return retryable.IsRetryable()
	}

	return false
}
