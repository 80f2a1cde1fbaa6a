/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog"

	"github.com/suparena/entitymap/datastore"
	"github.com/suparena/entitymap/errors"
	"github.com/suparena/entitymap/scalar"
)

// Attribute names of the single-table layout.
const (
	AttrPK         = "PK"
	AttrSK         = "SK"
	AttrEntityType = "EntityType"
	AttrOrder      = "InsertedAt"
	attrValue      = "Value"

	tablePrefix    = "__table#"
	sequencePrefix = "__seq#"
)

// Client is the subset of the DynamoDB API the store uses. *dynamodb.Client
// satisfies it.
type Client interface {
	GetItem(ctx context.Context, in *sdk.GetItemInput, optFns ...func(*sdk.Options)) (*sdk.GetItemOutput, error)
	PutItem(ctx context.Context, in *sdk.PutItemInput, optFns ...func(*sdk.Options)) (*sdk.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *sdk.DeleteItemInput, optFns ...func(*sdk.Options)) (*sdk.DeleteItemOutput, error)
	UpdateItem(ctx context.Context, in *sdk.UpdateItemInput, optFns ...func(*sdk.Options)) (*sdk.UpdateItemOutput, error)
	Scan(ctx context.Context, in *sdk.ScanInput, optFns ...func(*sdk.Options)) (*sdk.ScanOutput, error)
	TransactWriteItems(ctx context.Context, in *sdk.TransactWriteItemsInput, optFns ...func(*sdk.Options)) (*sdk.TransactWriteItemsOutput, error)
}

// Store implements datastore.Backend on one DynamoDB table. Every entity
// table becomes a partition of items sharing SK=<table>, keyed by
// PK=<table>#<escaped key columns>.
type Store struct {
	client    Client
	tableName string
	options   ScanOptions
	logger    zerolog.Logger
}

var _ datastore.Backend = (*Store)(nil)

// NewDynamoDBClient initializes a DynamoDB client. Static credentials are
// used when an access key is given, the default chain otherwise. A non-empty
// endpoint points the client at DynamoDB Local or another compatible service.
func NewDynamoDBClient(ctx context.Context, awsAccessKey, awsSecretKey, awsRegion, endpoint string) (*sdk.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(awsRegion)}
	if awsAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(awsAccessKey, awsSecretKey, ""),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return sdk.NewFromConfig(cfg, func(o *sdk.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

// New creates a store over an existing DynamoDB table with a string
// partition key PK and a string sort key SK.
func New(client Client, tableName string, opts ...ScanOption) *Store {
	s := &Store{
		client:    client,
		tableName: tableName,
		options:   DefaultScanOptions(),
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&s.options)
	}
	return s
}

// WithLogger sets the logger used for request tracing.
func (s *Store) WithLogger(l zerolog.Logger) *Store {
	s.logger = l.With().Str("backend", s.Name()).Str("table", s.tableName).Logger()
	return s
}

func (s *Store) Name() string { return "dynamodb" }

// Supports accepts every kind with a string form.
func (s *Store) Supports(k scalar.Kind) bool { return k.Representable() }

func itemKey(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		AttrPK: &types.AttributeValueMemberS{Value: pk},
		AttrSK: &types.AttributeValueMemberS{Value: sk},
	}
}

func rowKey(t *datastore.Table, key datastore.Key) map[string]types.AttributeValue {
	return itemKey(t.Name+"#"+key.String(), t.Name)
}

func markerKey(table string) map[string]types.AttributeValue {
	return itemKey(tablePrefix+table, tablePrefix)
}

func isConditionFailed(err error) bool {
	var cfe *types.ConditionalCheckFailedException
	return stderrors.As(err, &cfe)
}

func (s *Store) TableExists(ctx context.Context, table string) (bool, error) {
	out, err := s.client.GetItem(ctx, &sdk.GetItemInput{
		TableName:      &s.tableName,
		Key:            markerKey(table),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, fmt.Errorf("GetItem error: %w", err)
	}
	return out.Item != nil, nil
}

// DropTable deletes every item of the table and its marker.
func (s *Store) DropTable(ctx context.Context, table string) error {
	items, err := s.scanItems(ctx, table)
	if err != nil {
		return err
	}
	for _, item := range items {
		_, err := s.client.DeleteItem(ctx, &sdk.DeleteItemInput{
			TableName: &s.tableName,
			Key:       map[string]types.AttributeValue{AttrPK: item[AttrPK], AttrSK: item[AttrSK]},
		})
		if err != nil {
			return fmt.Errorf("failed to delete item in DynamoDB: %w", err)
		}
	}
	if _, err := s.client.DeleteItem(ctx, &sdk.DeleteItemInput{TableName: &s.tableName, Key: markerKey(table)}); err != nil {
		return fmt.Errorf("failed to delete table marker: %w", err)
	}
	s.logger.Debug().Str("entity_table", table).Int("items", len(items)).Msg("drop table")
	return nil
}

// CreateTable records the table marker. Go type columns cannot be stored and
// neither can columns named like the layout attributes.
func (s *Store) CreateTable(ctx context.Context, t *datastore.Table) error {
	for _, c := range t.Columns {
		if !s.Supports(c.Kind) {
			return errors.NewUnsupportedTypeForBackendError(t.Type.Name(), s.Name(),
				errors.NewConstraintError(t.Name, c.Name, "unsupported column kind "+c.Kind.String()))
		}
		switch c.Name {
		case AttrPK, AttrSK, AttrEntityType, AttrOrder:
			return errors.NewUnsupportedTypeForBackendError(t.Type.Name(), s.Name(),
				errors.NewConstraintError(t.Name, c.Name, "column name is reserved"))
		}
	}

	item := markerKey(t.Name)
	item[AttrEntityType] = &types.AttributeValueMemberS{Value: tablePrefix}
	item["Columns"] = &types.AttributeValueMemberN{Value: strconv.Itoa(len(t.Columns))}
	_, err := s.client.PutItem(ctx, &sdk.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return errors.NewAlreadyExistsError("table", t.Name)
		}
		return fmt.Errorf("PutItem failed: %w", err)
	}
	s.logger.Debug().Str("entity_table", t.Name).Msg("create table")
	return nil
}

// CreateIndexes is a no-op: secondary indexes are not materialised in the
// single-table layout.
func (s *Store) CreateIndexes(_ context.Context, t *datastore.Table) error {
	if len(t.Indexes) > 0 {
		s.logger.Debug().Str("entity_table", t.Name).Int("indexes", len(t.Indexes)).Msg("indexes not materialised")
	}
	return nil
}

// CreateForeignKeys is a no-op: DynamoDB has no referential constraints.
func (s *Store) CreateForeignKeys(_ context.Context, t *datastore.Table) error {
	if len(t.ForeignKeys) > 0 {
		s.logger.Debug().Str("entity_table", t.Name).Int("foreign_keys", len(t.ForeignKeys)).Msg("foreign keys not enforced")
	}
	return nil
}

func (s *Store) Get(ctx context.Context, t *datastore.Table, key datastore.Key) (datastore.Row, error) {
	out, err := s.client.GetItem(ctx, &sdk.GetItemInput{
		TableName:      &s.tableName,
		Key:            rowKey(t, key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("GetItem error: %w", err)
	}
	if out.Item == nil {
		return nil, errors.NewNotFoundError(t.Name, key.String())
	}
	return fromItem(t, out.Item)
}

func (s *Store) Insert(ctx context.Context, t *datastore.Table, row datastore.Row) error {
	put, err := s.putInput(t, row, nil, "attribute_not_exists(PK)")
	if err != nil {
		return err
	}
	if _, err := s.client.PutItem(ctx, put); err != nil {
		if isConditionFailed(err) {
			return errors.NewAlreadyExistsError(t.Name, t.KeyOf(row).String())
		}
		return fmt.Errorf("PutItem failed: %w", err)
	}
	s.logger.Debug().Str("entity_table", t.Name).Str("key", t.KeyOf(row).String()).Msg("insert")
	return nil
}

// putInput builds the conditional put of a whole row. order keeps the
// original insertion stamp when a row is rewritten.
func (s *Store) putInput(t *datastore.Table, row datastore.Row, order types.AttributeValue, condition string) (*sdk.PutItemInput, error) {
	if err := datastore.CheckRow(t, row); err != nil {
		return nil, err
	}
	item, err := toItem(t, row)
	if err != nil {
		return nil, err
	}
	for k, v := range rowKey(t, t.KeyOf(row)) {
		item[k] = v
	}
	item[AttrEntityType] = &types.AttributeValueMemberS{Value: t.Name}
	if order == nil {
		order = nowStamp()
	}
	item[AttrOrder] = order
	return &sdk.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: aws.String(condition),
	}, nil
}

func (s *Store) Update(ctx context.Context, t *datastore.Table, key datastore.Key, values datastore.Row) error {
	current, err := s.Get(ctx, t, key)
	if err != nil {
		return err
	}
	merged := current.Clone()
	for name, v := range values {
		c, ok := t.Column(name)
		if !ok {
			return errors.NewConstraintError(t.Name, name, "unknown column")
		}
		if c.Key && !scalar.Equal(current[name], v) {
			return errors.NewConstraintError(t.Name, name, "key columns cannot change")
		}
		merged[name] = v
	}
	if err := datastore.CheckRow(t, merged); err != nil {
		return err
	}

	updates := make(datastore.Row, len(values))
	for name, v := range values {
		if c, _ := t.Column(name); !c.Key {
			updates[name] = v
		}
	}
	if len(updates) == 0 {
		return nil
	}
	updateExpr, exprAttrNames, exprAttrValues, err := buildUpdateExpression(t, updates)
	if err != nil {
		return fmt.Errorf("failed to build update expression: %w", err)
	}

	input := &sdk.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       rowKey(t, key),
		UpdateExpression:          &updateExpr,
		ExpressionAttributeNames:  exprAttrNames,
		ExpressionAttributeValues: exprAttrValues,
		ConditionExpression:       aws.String("attribute_exists(PK)"),
	}
	if _, err := s.client.UpdateItem(ctx, input); err != nil {
		if isConditionFailed(err) {
			return errors.NewNotFoundError(t.Name, key.String())
		}
		return fmt.Errorf("UpdateItem failed: %w", err)
	}
	s.logger.Debug().Str("entity_table", t.Name).Str("key", key.String()).Int("columns", len(updates)).Msg("update")
	return nil
}

func (s *Store) Delete(ctx context.Context, t *datastore.Table, key datastore.Key) error {
	_, err := s.client.DeleteItem(ctx, &sdk.DeleteItemInput{
		TableName:           &s.tableName,
		Key:                 rowKey(t, key),
		ConditionExpression: aws.String("attribute_exists(PK)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return errors.NewNotFoundError(t.Name, key.String())
		}
		return fmt.Errorf("failed to delete item in DynamoDB: %w", err)
	}
	s.logger.Debug().Str("entity_table", t.Name).Str("key", key.String()).Msg("delete")
	return nil
}

// NextSequence increments a counter item with an atomic ADD.
func (s *Store) NextSequence(ctx context.Context, t *datastore.Table, column string) (int64, error) {
	if _, ok := t.Column(column); !ok {
		return 0, errors.NewConstraintError(t.Name, column, "unknown column")
	}
	out, err := s.client.UpdateItem(ctx, &sdk.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       itemKey(sequencePrefix+t.Name, column),
		UpdateExpression:          aws.String("ADD #v :one"),
		ExpressionAttributeNames:  map[string]string{"#v": attrValue},
		ExpressionAttributeValues: map[string]types.AttributeValue{":one": &types.AttributeValueMemberN{Value: "1"}},
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, fmt.Errorf("sequence update failed: %w", err)
	}
	n, ok := out.Attributes[attrValue].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("sequence update returned no value")
	}
	return strconv.ParseInt(n.Value, 10, 64)
}

// buildUpdateExpression transforms a map of column->value into:
//   - an "update expression" (e.g., "SET #f0 = :v0 REMOVE #f1"), nil values
//     removing the attribute
//   - a corresponding map of expression attribute names
//   - a corresponding map of expression attribute values
func buildUpdateExpression(t *datastore.Table, updates datastore.Row) (string,
	map[string]string,
	map[string]types.AttributeValue,
	error) {

	if len(updates) == 0 {
		return "", nil, nil, stderrors.New("no updates provided")
	}

	fields := make([]string, 0, len(updates))
	for field := range updates {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var setClauses, removeClauses []string
	exprAttrNames := make(map[string]string)
	exprAttrValues := make(map[string]types.AttributeValue)

	for i, field := range fields {
		placeholderName := fmt.Sprintf("#f%d", i)
		exprAttrNames[placeholderName] = field

		val := updates[field]
		if val == nil {
			removeClauses = append(removeClauses, placeholderName)
			continue
		}
		c, ok := t.Column(field)
		if !ok {
			return "", nil, nil, fmt.Errorf("unknown column '%s'", field)
		}
		av, err := encode(c.Kind, val)
		if err != nil {
			return "", nil, nil, fmt.Errorf("unhandled update value type for field '%s': %w", field, err)
		}
		placeholderValue := fmt.Sprintf(":v%d", i)
		setClauses = append(setClauses, fmt.Sprintf("%s = %s", placeholderName, placeholderValue))
		exprAttrValues[placeholderValue] = av
	}

	var parts []string
	if len(setClauses) > 0 {
		parts = append(parts, "SET "+strings.Join(setClauses, ", "))
	}
	if len(removeClauses) > 0 {
		parts = append(parts, "REMOVE "+strings.Join(removeClauses, ", "))
	}
	if len(exprAttrValues) == 0 {
		exprAttrValues = nil
	}
	return strings.Join(parts, " "), exprAttrNames, exprAttrValues, nil
}
