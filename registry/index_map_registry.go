/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package registry

import (
	"strings"

	"github.com/suparena/entitymap/metadata"
)

// Index declares a secondary index over member names. The index name
// defaults to "ix_<members joined by _>".
func (d *Descriptor) Index(members ...string) *Descriptor {
	return d.addIndex("", false, members)
}

// UniqueIndex declares a unique secondary index over member names.
func (d *Descriptor) UniqueIndex(members ...string) *Descriptor {
	return d.addIndex("", true, members)
}

// NamedIndex declares a secondary index with an explicit name.
func (d *Descriptor) NamedIndex(name string, unique bool, members ...string) *Descriptor {
	return d.addIndex(name, unique, members)
}

func (d *Descriptor) addIndex(name string, unique bool, members []string) *Descriptor {
	if name == "" {
		prefix := "ix_"
		if unique {
			prefix = "ux_"
		}
		name = prefix + strings.Join(members, "_")
	}
	d.indexes = append(d.indexes, metadata.Index{
		Name:    name,
		Members: append([]string(nil), members...),
		Unique:  unique,
	})
	return d
}
