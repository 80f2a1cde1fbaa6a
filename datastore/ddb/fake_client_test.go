/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeClient is an in-memory stand-in for DynamoDB understanding the
// expressions the store sends.
type fakeClient struct {
	mu           sync.Mutex
	items        map[string]map[string]types.AttributeValue
	scanCalls    int
	scanFailures []error
	transacts    int
}

func newFakeClient() *fakeClient {
	return &fakeClient{items: make(map[string]map[string]types.AttributeValue)}
}

func attrString(av types.AttributeValue) string {
	if s, ok := av.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func fakeKey(key map[string]types.AttributeValue) string {
	return attrString(key[AttrPK]) + "|" + attrString(key[AttrSK])
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

func conditionHolds(condition *string, exists bool) bool {
	switch aws.ToString(condition) {
	case "attribute_not_exists(PK)":
		return !exists
	case "attribute_exists(PK)":
		return exists
	}
	return true
}

func conditionFailed() error {
	return &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
}

func (f *fakeClient) GetItem(_ context.Context, in *sdk.GetItemInput, _ ...func(*sdk.Options)) (*sdk.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[fakeKey(in.Key)]
	if !ok {
		return &sdk.GetItemOutput{}, nil
	}
	return &sdk.GetItemOutput{Item: copyItem(item)}, nil
}

func (f *fakeClient) PutItem(_ context.Context, in *sdk.PutItemInput, _ ...func(*sdk.Options)) (*sdk.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := fakeKey(in.Item)
	if _, exists := f.items[k]; !conditionHolds(in.ConditionExpression, exists) {
		return nil, conditionFailed()
	}
	f.items[k] = copyItem(in.Item)
	return &sdk.PutItemOutput{}, nil
}

func (f *fakeClient) DeleteItem(_ context.Context, in *sdk.DeleteItemInput, _ ...func(*sdk.Options)) (*sdk.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := fakeKey(in.Key)
	if _, exists := f.items[k]; !conditionHolds(in.ConditionExpression, exists) {
		return nil, conditionFailed()
	}
	delete(f.items, k)
	return &sdk.DeleteItemOutput{}, nil
}

func (f *fakeClient) UpdateItem(_ context.Context, in *sdk.UpdateItemInput, _ ...func(*sdk.Options)) (*sdk.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := fakeKey(in.Key)
	item, exists := f.items[k]
	if !conditionHolds(in.ConditionExpression, exists) {
		return nil, conditionFailed()
	}
	if !exists {
		item = copyItem(in.Key)
	} else {
		item = copyItem(item)
	}

	expr := aws.ToString(in.UpdateExpression)
	updated := map[string]types.AttributeValue{}
	if strings.HasPrefix(expr, "ADD ") {
		parts := strings.Fields(strings.TrimPrefix(expr, "ADD "))
		attr := in.ExpressionAttributeNames[parts[0]]
		inc, _ := strconv.ParseInt(in.ExpressionAttributeValues[parts[1]].(*types.AttributeValueMemberN).Value, 10, 64)
		var cur int64
		if n, ok := item[attr].(*types.AttributeValueMemberN); ok {
			cur, _ = strconv.ParseInt(n.Value, 10, 64)
		}
		item[attr] = &types.AttributeValueMemberN{Value: strconv.FormatInt(cur+inc, 10)}
		updated[attr] = item[attr]
	} else {
		var setPart, removePart string
		rest := expr
		if i := strings.Index(rest, "REMOVE "); i >= 0 {
			removePart = rest[i+len("REMOVE "):]
			rest = rest[:i]
		}
		setPart = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(rest), "SET "))
		if setPart != "" {
			for _, clause := range strings.Split(setPart, ", ") {
				kv := strings.Split(clause, " = ")
				attr := in.ExpressionAttributeNames[kv[0]]
				item[attr] = in.ExpressionAttributeValues[kv[1]]
				updated[attr] = item[attr]
			}
		}
		if removePart != "" {
			for _, r := range strings.Split(removePart, ", ") {
				delete(item, in.ExpressionAttributeNames[strings.TrimSpace(r)])
			}
		}
	}
	f.items[k] = item
	return &sdk.UpdateItemOutput{Attributes: updated}, nil
}

func (f *fakeClient) Scan(_ context.Context, in *sdk.ScanInput, _ ...func(*sdk.Options)) (*sdk.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scanCalls++
	if len(f.scanFailures) > 0 {
		err := f.scanFailures[0]
		f.scanFailures = f.scanFailures[1:]
		return nil, err
	}

	want := attrString(in.ExpressionAttributeValues[":et"])
	var keys []string
	for k, item := range f.items {
		if want == "" || attrString(item[AttrEntityType]) == want {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	if in.ExclusiveStartKey != nil {
		start := fakeKey(in.ExclusiveStartKey)
		n := sort.SearchStrings(keys, start)
		if n < len(keys) && keys[n] == start {
			n++
		}
		keys = keys[n:]
	}

	out := &sdk.ScanOutput{}
	limit := int(aws.ToInt32(in.Limit))
	for i, k := range keys {
		if limit > 0 && i == limit {
			last := f.items[keys[i-1]]
			out.LastEvaluatedKey = map[string]types.AttributeValue{AttrPK: last[AttrPK], AttrSK: last[AttrSK]}
			break
		}
		out.Items = append(out.Items, copyItem(f.items[k]))
	}
	return out, nil
}

func (f *fakeClient) TransactWriteItems(_ context.Context, in *sdk.TransactWriteItemsInput, _ ...func(*sdk.Options)) (*sdk.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transacts++
	if len(in.TransactItems) > MaxTransactItems {
		return nil, fmt.Errorf("too many items")
	}
	for _, ti := range in.TransactItems {
		var key string
		var condition *string
		switch {
		case ti.Put != nil:
			key, condition = fakeKey(ti.Put.Item), ti.Put.ConditionExpression
		case ti.Delete != nil:
			key, condition = fakeKey(ti.Delete.Key), ti.Delete.ConditionExpression
		}
		if _, exists := f.items[key]; !conditionHolds(condition, exists) {
			return nil, &types.TransactionCanceledException{Message: aws.String("Transaction cancelled [ConditionalCheckFailed]")}
		}
	}
	for _, ti := range in.TransactItems {
		switch {
		case ti.Put != nil:
			f.items[fakeKey(ti.Put.Item)] = copyItem(ti.Put.Item)
		case ti.Delete != nil:
			delete(f.items, fakeKey(ti.Delete.Key))
		}
	}
	return &sdk.TransactWriteItemsOutput{}, nil
}

// put stores an item directly, bypassing the store.
func (f *fakeClient) put(item map[string]types.AttributeValue) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[fakeKey(item)] = copyItem(item)
}
