/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package entity

import (
	"context"

	"github.com/suparena/entitymap/metadata"
)

// Operation identifies a persistence operation.
type Operation int

const (
	OpNone Operation = iota
	OpSelect
	OpSelectGroup
	OpInsert
	OpUpdate
	OpDelete
	OpBegin
	OpCommit
	OpRollback
	OpSetup
)

var operationNames = map[Operation]string{
	OpNone:        "none",
	OpSelect:      "select",
	OpSelectGroup: "select group",
	OpInsert:      "insert",
	OpUpdate:      "update",
	OpDelete:      "delete",
	OpBegin:       "begin",
	OpCommit:      "commit",
	OpRollback:    "rollback",
	OpSetup:       "setup",
}

func (o Operation) String() string {
	return operationNames[o]
}

// IsWrite reports whether the operation changes stored rows.
func (o Operation) IsWrite() bool {
	return o == OpInsert || o == OpUpdate || o == OpDelete || o == OpCommit || o == OpSetup
}

// Phase is the side of an operation a hook runs on.
type Phase int

const (
	Before Phase = iota
	After
)

func (p Phase) String() string {
	if p == After {
		return "after"
	}
	return "before"
}

// Event is passed to every hook bracketing an operation. Before hooks may set
// Cancel to skip the operation; for reads they may also fill Result, which is
// then returned in place of a storage read.
type Event struct {
	Operation Operation
	Phase     Phase
	// Type is the entity type the operation targets, nil for transaction events.
	Type     *metadata.EntityType
	Instance *Instance
	// Query carries the read request for select operations.
	Query any
	// Members restricts an update to a subset of members.
	Members []*metadata.ValueMember
	// Types lists the entity types written in a committed or rolled back
	// transaction, or the types whose tables a setup recreates.
	Types []*metadata.EntityType

	Cancel bool
	Result []*Instance

	values map[string]any
}

// SetValue stores hook-private state that travels from the Before to the
// After phase of the same operation.
func (e *Event) SetValue(key string, v any) {
	if e.values == nil {
		e.values = make(map[string]any)
	}
	e.values[key] = v
}

// Value returns state stored with SetValue.
func (e *Event) Value(key string) any {
	return e.values[key]
}

// Hook observes or intercepts an operation. A non-nil error aborts it.
type Hook func(ctx context.Context, ev *Event) error

// Subscribe adds an instance-scope hook, run after engine and type hooks.
func (i *Instance) Subscribe(h Hook) {
	i.hooks = append(i.hooks, h)
}

// Hooks returns the instance-scope hooks in subscription order.
func (i *Instance) Hooks() []Hook {
	return i.hooks
}
