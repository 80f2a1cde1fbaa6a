/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/suparena/entitymap/datastore"
	"github.com/suparena/entitymap/errors"
	"github.com/suparena/entitymap/scalar"
)

// MaxTransactItems is the DynamoDB limit on writes per transaction.
const MaxTransactItems = 100

// pending is the net effect of a transaction on one item.
type pending struct {
	table   *datastore.Table
	key     datastore.Key
	row     datastore.Row // nil once deleted
	existed bool
	order   types.AttributeValue
}

// Tx buffers writes and sends them in a single TransactWriteItems call on
// Commit. Reads see the transaction's own writes. Sequence values are drawn
// outside the transaction and are not returned on rollback.
type Tx struct {
	s       *Store
	mu      sync.Mutex
	writes  map[string]*pending
	ordered []string
	done    bool
}

// Begin starts a buffered transaction.
func (s *Store) Begin(context.Context) (datastore.Tx, error) {
	return &Tx{s: s, writes: make(map[string]*pending)}, nil
}

func pendingKey(t *datastore.Table, key datastore.Key) string {
	return t.Name + "#" + key.String()
}

func (tx *Tx) check(op string) error {
	if tx.done {
		return errors.NewConditionFailedError(op, "transaction already finished")
	}
	return nil
}

// lookup returns the row as the transaction sees it and whether it existed
// before the transaction started.
func (tx *Tx) lookup(ctx context.Context, t *datastore.Table, key datastore.Key) (*pending, error) {
	if p, ok := tx.writes[pendingKey(t, key)]; ok {
		return p, nil
	}
	out, err := tx.s.client.GetItem(ctx, &sdk.GetItemInput{
		TableName:      &tx.s.tableName,
		Key:            rowKey(t, key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("GetItem error: %w", err)
	}
	p := &pending{table: t, key: key}
	if out.Item != nil {
		if p.row, err = fromItem(t, out.Item); err != nil {
			return nil, err
		}
		p.existed = true
		p.order = out.Item[AttrOrder]
	}
	return p, nil
}

func (tx *Tx) record(p *pending) {
	k := pendingKey(p.table, p.key)
	if _, seen := tx.writes[k]; !seen {
		tx.ordered = append(tx.ordered, k)
	}
	tx.writes[k] = p
}

func (tx *Tx) Get(ctx context.Context, t *datastore.Table, key datastore.Key) (datastore.Row, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.check("get"); err != nil {
		return nil, err
	}
	p, err := tx.lookup(ctx, t, key)
	if err != nil {
		return nil, err
	}
	if p.row == nil {
		return nil, errors.NewNotFoundError(t.Name, key.String())
	}
	return p.row.Clone(), nil
}

// Scan merges the transaction's writes into the committed rows.
func (tx *Tx) Scan(ctx context.Context, t *datastore.Table) ([]datastore.Row, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.check("scan"); err != nil {
		return nil, err
	}
	rows, err := tx.s.Scan(ctx, t)
	if err != nil {
		return nil, err
	}
	out := make([]datastore.Row, 0, len(rows))
	seen := make(map[string]bool)
	for _, row := range rows {
		k := pendingKey(t, t.KeyOf(row))
		seen[k] = true
		if p, ok := tx.writes[k]; ok {
			if p.row != nil {
				out = append(out, p.row.Clone())
			}
			continue
		}
		out = append(out, row)
	}
	for _, k := range tx.ordered {
		p := tx.writes[k]
		if p.table.Name == t.Name && !seen[k] && p.row != nil {
			out = append(out, p.row.Clone())
		}
	}
	return out, nil
}

func (tx *Tx) Insert(ctx context.Context, t *datastore.Table, row datastore.Row) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.check("insert"); err != nil {
		return err
	}
	if err := datastore.CheckRow(t, row); err != nil {
		return err
	}
	if _, err := toItem(t, row); err != nil {
		return err
	}
	key := t.KeyOf(row)
	p, err := tx.lookup(ctx, t, key)
	if err != nil {
		return err
	}
	if p.row != nil {
		return errors.NewAlreadyExistsError(t.Name, key.String())
	}
	stored := make(datastore.Row, len(t.Columns))
	for _, c := range t.Columns {
		stored[c.Name] = row[c.Name]
	}
	p.row = stored
	tx.record(p)
	return nil
}

func (tx *Tx) Update(ctx context.Context, t *datastore.Table, key datastore.Key, values datastore.Row) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.check("update"); err != nil {
		return err
	}
	p, err := tx.lookup(ctx, t, key)
	if err != nil {
		return err
	}
	if p.row == nil {
		return errors.NewNotFoundError(t.Name, key.String())
	}
	merged := p.row.Clone()
	for name, v := range values {
		c, ok := t.Column(name)
		if !ok {
			return errors.NewConstraintError(t.Name, name, "unknown column")
		}
		if c.Key && !scalar.Equal(merged[name], v) {
			return errors.NewConstraintError(t.Name, name, "key columns cannot change")
		}
		merged[name] = v
	}
	if err := datastore.CheckRow(t, merged); err != nil {
		return err
	}
	p.row = merged
	tx.record(p)
	return nil
}

func (tx *Tx) Delete(ctx context.Context, t *datastore.Table, key datastore.Key) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.check("delete"); err != nil {
		return err
	}
	p, err := tx.lookup(ctx, t, key)
	if err != nil {
		return err
	}
	if p.row == nil {
		return errors.NewNotFoundError(t.Name, key.String())
	}
	p.row = nil
	tx.record(p)
	return nil
}

func (tx *Tx) NextSequence(ctx context.Context, t *datastore.Table, column string) (int64, error) {
	if err := tx.check("sequence"); err != nil {
		return 0, err
	}
	return tx.s.NextSequence(ctx, t, column)
}

// Commit sends the buffered writes atomically. A transaction touching more
// than MaxTransactItems items fails without writing anything.
func (tx *Tx) Commit(ctx context.Context) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.check("commit"); err != nil {
		return err
	}
	tx.done = true

	var items []types.TransactWriteItem
	for _, k := range tx.ordered {
		p := tx.writes[k]
		switch {
		case p.row == nil && p.existed:
			items = append(items, types.TransactWriteItem{Delete: &types.Delete{
				TableName:           &tx.s.tableName,
				Key:                 rowKey(p.table, p.key),
				ConditionExpression: aws.String("attribute_exists(PK)"),
			}})
		case p.row != nil:
			condition := "attribute_not_exists(PK)"
			if p.existed {
				condition = "attribute_exists(PK)"
			}
			put, err := tx.s.putInput(p.table, p.row, p.order, condition)
			if err != nil {
				return err
			}
			items = append(items, types.TransactWriteItem{Put: &types.Put{
				TableName:           put.TableName,
				Item:                put.Item,
				ConditionExpression: put.ConditionExpression,
			}})
		}
	}
	if len(items) == 0 {
		return nil
	}
	if len(items) > MaxTransactItems {
		return errors.NewConditionFailedError("commit",
			fmt.Sprintf("%d writes exceed the limit of %d", len(items), MaxTransactItems))
	}

	if _, err := tx.s.client.TransactWriteItems(ctx, &sdk.TransactWriteItemsInput{TransactItems: items}); err != nil {
		var canceled *types.TransactionCanceledException
		if stderrors.As(err, &canceled) {
			return errors.NewConditionFailedError("commit", canceled.ErrorMessage())
		}
		return fmt.Errorf("TransactWriteItems failed: %w", err)
	}
	tx.s.logger.Debug().Int("items", len(items)).Msg("commit")
	return nil
}

// Rollback discards the buffered writes.
func (tx *Tx) Rollback(context.Context) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.check("rollback"); err != nil {
		return err
	}
	tx.done = true
	tx.writes = nil
	tx.ordered = nil
	return nil
}
