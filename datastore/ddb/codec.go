/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/suparena/entitymap/datastore"
	"github.com/suparena/entitymap/scalar"
)

// encode converts a canonical value of kind k. Numbers and booleans keep
// their DynamoDB types; date-times and UUIDs are stored as strings.
func encode(k scalar.Kind, v any) (types.AttributeValue, error) {
	if v == nil {
		return &types.AttributeValueMemberNULL{Value: true}, nil
	}
	switch k {
	case scalar.String, scalar.Int, scalar.Int64, scalar.Float, scalar.Bool:
		return attributevalue.Marshal(v)
	case scalar.DateTime, scalar.UUID:
		s, err := scalar.Format(v)
		if err != nil {
			return nil, err
		}
		return &types.AttributeValueMemberS{Value: s}, nil
	}
	return nil, fmt.Errorf("kind %s cannot be stored", k)
}

// decode is the inverse of encode.
func decode(k scalar.Kind, av types.AttributeValue) (any, error) {
	if _, null := av.(*types.AttributeValueMemberNULL); null || av == nil {
		return nil, nil
	}
	var (
		v   any
		err error
	)
	switch k {
	case scalar.String:
		var s string
		err = attributevalue.Unmarshal(av, &s)
		v = s
	case scalar.Int:
		var n int
		err = attributevalue.Unmarshal(av, &n)
		v = n
	case scalar.Int64:
		var n int64
		err = attributevalue.Unmarshal(av, &n)
		v = n
	case scalar.Float:
		var f float64
		err = attributevalue.Unmarshal(av, &f)
		v = f
	case scalar.Bool:
		var b bool
		err = attributevalue.Unmarshal(av, &b)
		v = b
	case scalar.DateTime, scalar.UUID:
		var s string
		if err = attributevalue.Unmarshal(av, &s); err == nil {
			v, err = scalar.Parse(k, s)
		}
	default:
		return nil, fmt.Errorf("kind %s cannot be stored", k)
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func toItem(t *datastore.Table, row datastore.Row) (map[string]types.AttributeValue, error) {
	item := make(map[string]types.AttributeValue, len(t.Columns)+4)
	for name := range row {
		if _, ok := t.Column(name); !ok {
			return nil, fmt.Errorf("unknown column %s.%s", t.Name, name)
		}
	}
	for _, c := range t.Columns {
		v := row[c.Name]
		if v == nil {
			continue
		}
		av, err := encode(c.Kind, v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal column %s: %w", c.Name, err)
		}
		item[c.Name] = av
	}
	return item, nil
}

func fromItem(t *datastore.Table, item map[string]types.AttributeValue) (datastore.Row, error) {
	row := make(datastore.Row, len(t.Columns))
	for _, c := range t.Columns {
		av, ok := item[c.Name]
		if !ok {
			row[c.Name] = nil
			continue
		}
		v, err := decode(c.Kind, av)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal column %s: %w", c.Name, err)
		}
		row[c.Name] = v
	}
	return row, nil
}

var lastStamp atomic.Int64

// nowStamp returns a strictly increasing insertion stamp.
func nowStamp() types.AttributeValue {
	for {
		prev := lastStamp.Load()
		next := time.Now().UnixNano()
		if next <= prev {
			next = prev + 1
		}
		if lastStamp.CompareAndSwap(prev, next) {
			return &types.AttributeValueMemberN{Value: strconv.FormatInt(next, 10)}
		}
	}
}

func stampOf(item map[string]types.AttributeValue) int64 {
	n, ok := item[AttrOrder].(*types.AttributeValueMemberN)
	if !ok {
		return 0
	}
	v, _ := strconv.ParseInt(n.Value, 10, 64)
	return v
}
