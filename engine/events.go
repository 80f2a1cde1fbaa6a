/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package engine

import (
	"context"

	"github.com/suparena/entitymap/entity"
	"github.com/suparena/entitymap/errors"
)

// Keys of values the engine attaches to every event.
const (
	// ValueTransaction is true while the session has an explicit transaction open.
	ValueTransaction = "entitymap.transaction"
	// ValueShowDeleted carries the session's logical-delete visibility.
	ValueShowDeleted = "entitymap.show_deleted"
)

// scope is one subscriber level of an event.
type scope struct {
	name  string
	hooks []entity.Hook
}

// scopes lists the subscriber levels of ev in dispatch order: the engine,
// the type and each of its ancestors most-derived first, then the instance.
func (s *Session) scopes(ev *entity.Event) []scope {
	out := []scope{{name: "engine", hooks: s.engine.engineHooks()}}
	if ev.Type != nil {
		for _, t := range ev.Type.Chain() {
			hooks, _ := s.engine.typeHooks.Load(t)
			out = append(out, scope{name: t.Name(), hooks: hooks})
		}
	}
	if ev.Instance != nil {
		hooks := ev.Instance.Hooks()
		if ev.Phase == entity.Before && ev.Operation.IsWrite() {
			hooks = append([]entity.Hook{validateHook}, hooks...)
		}
		out = append(out, scope{name: "instance", hooks: hooks})
	}
	return out
}

// validateHook rejects writes of instances breaking their rules.
func validateHook(_ context.Context, ev *entity.Event) error {
	violations := ev.Instance.Validate(ev.Operation)
	if len(violations) == 0 {
		return nil
	}
	return errors.NewValidationFailure(ev.Instance.Type().Name(), ev.Operation.String(), violations, ev.Instance)
}

func (s *Session) newEvent(op entity.Operation, inst *entity.Instance) *entity.Event {
	ev := &entity.Event{Operation: op, Instance: inst}
	if inst != nil {
		ev.Type = inst.Type()
	}
	ev.SetValue(ValueTransaction, s.tx != nil)
	ev.SetValue(ValueShowDeleted, s.ShowDeleted)
	return ev
}

// fire runs the hooks of ev for phase. Dispatch stops at the first error or,
// before an operation, at the first hook that cancels it.
func (s *Session) fire(ctx context.Context, ev *entity.Event, phase entity.Phase) error {
	ev.Phase = phase
	for _, sc := range s.scopes(ev) {
		for _, h := range sc.hooks {
			if err := h(ctx, ev); err != nil {
				return err
			}
			if phase == entity.Before && ev.Cancel {
				s.engine.logger.Debug().Str("operation", ev.Operation.String()).Str("scope", sc.name).Msg("canceled by hook")
				return nil
			}
		}
	}
	return nil
}
