/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/suparena/entitymap/entity"
	"github.com/suparena/entitymap/errors"
	"github.com/suparena/entitymap/metadata"
	"github.com/suparena/entitymap/predicate"
	"github.com/suparena/entitymap/scalar"
)

// ValueGroups carries the result of a grouped select on its event. A Before
// hook canceling the select may set it to supply the result.
const ValueGroups = "entitymap.groups"

// AggregateFunc is an aggregate over one member.
type AggregateFunc int

const (
	Count AggregateFunc = iota
	Sum
	Avg
	Min
	Max
)

var aggregateNames = [...]string{"count", "sum", "avg", "min", "max"}

func (f AggregateFunc) String() string {
	if f >= 0 && int(f) < len(aggregateNames) {
		return aggregateNames[f]
	}
	return fmt.Sprintf("aggregate(%d)", int(f))
}

// Aggregate computes Func over Member within each group. A Count without a
// member counts rows; otherwise nil values are skipped.
type Aggregate struct {
	Func   AggregateFunc
	Member string
	// As names the result; it defaults to "<func>_<member>", or "count".
	As string
}

// Name is the key of the aggregate in a Group.
func (a Aggregate) Name() string {
	switch {
	case a.As != "":
		return a.As
	case a.Member == "":
		return a.Func.String()
	}
	return a.Func.String() + "_" + a.Member
}

// GroupQuery is a grouped select request.
type GroupQuery struct {
	Aggregates []Aggregate
	GroupBy    []string
	Filter     predicate.Predicate
	// OrderBy names group-by members or aggregate names.
	OrderBy []Sort
}

// Group is one result row: the group-by member values and the aggregates,
// keyed by member and aggregate name.
type Group map[string]any

// SelectGroup aggregates the visible instances of t matching q, one Group
// per distinct combination of group-by values, in order of first occurrence
// unless q orders them.
func (s *Session) SelectGroup(ctx context.Context, t *metadata.EntityType, q GroupQuery) ([]Group, error) {
	by, err := t.ValuesNamed(q.GroupBy...)
	if err != nil {
		return nil, err
	}
	if err := predicate.Check(q.Filter, t); err != nil {
		return nil, err
	}
	targets := make([]*metadata.ValueMember, len(q.Aggregates))
	names := map[string]bool{}
	for _, m := range by {
		names[m.Name()] = true
	}
	for n, a := range q.Aggregates {
		names[a.Name()] = true
		if a.Func < Count || a.Func > Max {
			return nil, fmt.Errorf("unknown %s", a.Func)
		}
		if a.Member == "" {
			if a.Func != Count {
				return nil, fmt.Errorf("%s needs a member", a.Func)
			}
			continue
		}
		m, err := t.Value(a.Member)
		if err != nil {
			return nil, err
		}
		if (a.Func == Sum || a.Func == Avg) && (m.IsReference() || !m.Scalar().IsNumeric()) {
			return nil, fmt.Errorf("%s over non-numeric member %s", a.Func, m)
		}
		targets[n] = m
	}
	for _, srt := range q.OrderBy {
		if !names[srt.Member] {
			return nil, errors.NewMemberNotFoundError(t.Name(), srt.Member)
		}
	}

	ev := s.newEvent(entity.OpSelectGroup, nil)
	ev.Type = t
	ev.Query = q
	if err := s.fire(ctx, ev, entity.Before); err != nil {
		return nil, err
	}
	if ev.Cancel {
		groups, _ := ev.Value(ValueGroups).([]Group)
		return groups, nil
	}

	insts, err := s.read(ctx, s.rows(), t, q.Filter, s.ShowDeleted)
	if err != nil {
		return nil, err
	}

	var order []string
	members := map[string][]*entity.Instance{}
	for _, inst := range insts {
		parts := make([]string, len(by))
		for n, m := range by {
			if v := sortKey(inst, m); v != nil {
				parts[n] = "=" + scalar.MustFormat(v)
			}
		}
		k := strings.Join(parts, "\x1f")
		if _, seen := members[k]; !seen {
			order = append(order, k)
		}
		members[k] = append(members[k], inst)
	}

	groups := make([]Group, 0, len(order))
	for _, k := range order {
		rows := members[k]
		g := Group{}
		for _, m := range by {
			g[m.Name()] = rows[0].Get(m)
		}
		for n, a := range q.Aggregates {
			g[a.Name()] = aggregate(a.Func, targets[n], rows)
		}
		groups = append(groups, g)
	}
	sortGroups(groups, q.OrderBy)
	s.engine.logger.Debug().Str("entity_type", t.Name()).Int("groups", len(groups)).Msg("select group")

	ev.SetValue(ValueGroups, groups)
	if err := s.fire(ctx, ev, entity.After); err != nil {
		return nil, err
	}
	groups, _ = ev.Value(ValueGroups).([]Group)
	return groups, nil
}

func aggregate(f AggregateFunc, m *metadata.ValueMember, rows []*entity.Instance) any {
	if m == nil {
		return int64(len(rows))
	}
	var values []any
	for _, inst := range rows {
		if v := sortKey(inst, m); v != nil {
			values = append(values, v)
		}
	}

	switch f {
	case Count:
		return int64(len(values))
	case Sum, Avg:
		var isum int64
		var fsum float64
		for _, v := range values {
			switch n := v.(type) {
			case int:
				isum += int64(n)
			case int64:
				isum += n
			case float64:
				fsum += n
			}
		}
		if f == Avg {
			if len(values) == 0 {
				return nil
			}
			return (float64(isum) + fsum) / float64(len(values))
		}
		if m.Scalar() == scalar.Float {
			return fsum
		}
		return isum
	case Min, Max:
		var best any
		for _, v := range values {
			c := compareValues(v, best)
			if best == nil || (f == Min && c < 0) || (f == Max && c > 0) {
				best = v
			}
		}
		return best
	}
	return nil
}

func sortGroups(groups []Group, sorts []Sort) {
	if len(sorts) == 0 {
		return
	}
	sort.SliceStable(groups, func(i, j int) bool {
		for _, srt := range sorts {
			a, b := groups[i][srt.Member], groups[j][srt.Member]
			if ra, ok := a.(*entity.Instance); ok {
				a = ra.CompactKey()
			}
			if rb, ok := b.(*entity.Instance); ok {
				b = rb.CompactKey()
			}
			c := compareValues(a, b)
			if c == 0 {
				continue
			}
			if srt.Descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}
