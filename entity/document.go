/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package entity

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/suparena/entitymap/errors"
	"github.com/suparena/entitymap/metadata"
	"github.com/suparena/entitymap/scalar"
)

const (
	typeAttr         = "type"
	persistedElement = "IsPersisted"
	// ListElement wraps the instances of a list document.
	ListElement = "EntityList"
)

// MarshalDocument renders the instance as a structured document: a root
// element named for the type, one child per atomized value (absent values
// omitted) and a trailing persisted flag.
func (i *Instance) MarshalDocument() ([]byte, error) {
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	if err := i.encode(enc); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalList renders instances, possibly of different concrete types, inside
// a single wrapper element.
func MarshalList(insts []*Instance) ([]byte, error) {
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	start := xml.StartElement{Name: xml.Name{Local: ListElement}}
	if err := enc.EncodeToken(start); err != nil {
		return nil, err
	}
	for _, inst := range insts {
		if err := inst.encode(enc); err != nil {
			return nil, err
		}
	}
	if err := enc.EncodeToken(start.End()); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (i *Instance) encode(enc *xml.Encoder) error {
	start := xml.StartElement{
		Name: xml.Name{Local: i.typ.Name()},
		Attr: []xml.Attr{{Name: xml.Name{Local: typeAttr}, Value: i.typ.ID()}},
	}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	for _, a := range i.ValueAtoms() {
		if a.Value == nil || !a.Member.Scalar().Representable() {
			continue
		}
		s, err := scalar.Format(a.Value)
		if err != nil {
			return err
		}
		if err := enc.EncodeElement(s, xml.StartElement{Name: xml.Name{Local: a.Name}}); err != nil {
			return err
		}
	}
	if err := enc.EncodeElement(strconv.FormatBool(i.persisted), xml.StartElement{Name: xml.Name{Local: persistedElement}}); err != nil {
		return err
	}
	return enc.EncodeToken(start.End())
}

// UnmarshalDocument reads a single-instance document into i. The document's
// type attribute must name i's type.
func (i *Instance) UnmarshalDocument(data []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	start, err := nextStart(dec)
	if err != nil {
		return err
	}
	if id := attr(start, typeAttr); id != i.typ.ID() {
		return errors.NewTypeMismatchError(i.typ.ID(), id)
	}
	return i.decodeBody(dec, start)
}

// UnmarshalDocument reads a single-instance document, resolving its type
// through the catalog.
func UnmarshalDocument(cat *metadata.Catalog, data []byte) (*Instance, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	start, err := nextStart(dec)
	if err != nil {
		return nil, err
	}
	return decodeInstance(cat, dec, start, nil)
}

// UnmarshalList reads a list document. When expected is not nil every item
// must be of expected or a type derived from it.
func UnmarshalList(cat *metadata.Catalog, expected *metadata.EntityType, data []byte) ([]*Instance, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	wrapper, err := nextStart(dec)
	if err != nil {
		return nil, err
	}
	if wrapper.Name.Local != ListElement {
		return nil, errors.NewFormatError(wrapper.Name.Local, "expected "+ListElement+" element")
	}

	var out []*Instance
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, errors.NewFormatError(ListElement, err.Error())
		}
		switch t := tok.(type) {
		case xml.StartElement:
			inst, err := decodeInstance(cat, dec, t, expected)
			if err != nil {
				return nil, err
			}
			out = append(out, inst)
		case xml.EndElement:
			return out, nil
		}
	}
}

func decodeInstance(cat *metadata.Catalog, dec *xml.Decoder, start xml.StartElement, expected *metadata.EntityType) (*Instance, error) {
	id := attr(start, typeAttr)
	t, ok := cat.ByID(id)
	if !ok {
		return nil, errors.NewInvalidStructuralTypeError(id, "unknown type identifier")
	}
	if expected != nil && !expected.IsAssignableFrom(t) {
		return nil, errors.NewTypeMismatchError(expected.ID(), id)
	}
	inst := New(t)
	if err := inst.decodeBody(dec, start); err != nil {
		return nil, err
	}
	return inst, nil
}

// decodeBody consumes the children of start up to its end element.
func (i *Instance) decodeBody(dec *xml.Decoder, start xml.StartElement) error {
	atoms := map[string]metadata.Atom{}
	for _, a := range i.typ.ValueAtoms() {
		atoms[a.Name] = a
	}
	values := map[string]any{}

	for {
		tok, err := dec.Token()
		if err != nil {
			return errors.NewFormatError(start.Name.Local, err.Error())
		}
		switch t := tok.(type) {
		case xml.StartElement:
			var text string
			if err := dec.DecodeElement(&text, &t); err != nil {
				return errors.NewFormatError(t.Name.Local, err.Error())
			}
			if t.Name.Local == persistedElement {
				p, err := strconv.ParseBool(strings.TrimSpace(text))
				if err != nil {
					return errors.NewFormatError(text, "invalid "+persistedElement)
				}
				i.persisted = p
				i.loaded = p
				continue
			}
			a, ok := atoms[t.Name.Local]
			if !ok {
				return errors.NewMemberNotFoundError(i.typ.Name(), t.Name.Local)
			}
			v, err := scalar.Parse(a.Member.Scalar(), text)
			if err != nil {
				return errors.NewFormatError(text, fmt.Sprintf("element %s: %v", a.Name, err))
			}
			values[a.Name] = v
		case xml.EndElement:
			return i.SetAtomized(i.typ.ValueAtoms(), values)
		}
	}
}

func nextStart(dec *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return xml.StartElement{}, errors.NewFormatError("", "empty document")
		}
		if err != nil {
			return xml.StartElement{}, errors.NewFormatError("", err.Error())
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start, nil
		}
	}
}

func attr(start xml.StartElement, name string) string {
	for _, a := range start.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}
