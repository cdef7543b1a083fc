package ogm

import (
	"fmt"
	"reflect"
	"slices"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/vanshika/graphrepo/internal/graph"
)

var timeHook mapstructure.DecodeHookFuncType = func(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != timeType || data == nil {
		return data, nil
	}
	if ts := graph.ToTimePtr(data); ts != nil {
		return *ts, nil
	}
	return nil, fmt.Errorf("cannot read %T as a time", data)
}

func decode(input any, out reflect.Value) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     out.Addr().Interface(),
		TagName:    "graph",
		DecodeHook: timeHook,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

// Encode returns the node properties of an entity value. Times are written as
// RFC3339 strings, nil pointers are skipped and omitempty fields are skipped
// when zero.
func Encode(meta *Entity, v reflect.Value) map[string]any {
	v = reflect.Indirect(v)
	props := make(map[string]any)
	for _, p := range meta.Persistent() {
		field := v.FieldByIndex(p.Index)
		if field.Kind() == reflect.Pointer {
			if field.IsNil() {
				continue
			}
			field = field.Elem()
		}
		if p.OmitEmpty && field.IsZero() {
			continue
		}
		if t, ok := field.Interface().(time.Time); ok {
			if t.IsZero() {
				continue
			}
			props[p.Name] = formatTime(t)
			continue
		}
		props[p.Name] = field.Interface()
	}
	return props
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// decodeNode fills out (an addressable entity struct) from a node, including
// its element id.
func decodeNode(meta *Entity, node neo4j.Node, out reflect.Value) error {
	input := make(map[string]any, len(node.Props)+1)
	for k, v := range node.Props {
		input[k] = v
	}
	input[meta.IDProperty().Name] = node.ElementId
	return decode(input, out)
}

// decodeRecord maps one record onto out. For entities the returned key is the
// element id of the decoded node and is used to collapse duplicate rows.
func decodeRecord(rec graph.Record, columns []string, out reflect.Value) (string, error) {
	if out.Kind() == reflect.Map {
		return "", decode(map[string]any(rec), out)
	}

	if out.Kind() == reflect.Struct && out.Type() != timeType {
		if meta, err := MetadataOf(out.Type()); err == nil {
			if node, ok := entityNode(meta, rec, columns); ok {
				return node.ElementId, decodeNode(meta, node, out)
			}
		}
		if len(rec) == 1 {
			for _, v := range rec {
				if m, ok := v.(map[string]any); ok {
					return "", decode(m, out)
				}
			}
		}
		return "", decode(map[string]any(rec), out)
	}

	value, ok := graph.Result{Columns: columns, Records: []graph.Record{rec}}.FirstValue()
	if !ok || value == nil {
		return "", nil
	}
	return "", decode(value, out)
}

// entityNode picks the node carrying the entity's primary label, falling back
// to the first node in column order.
func entityNode(meta *Entity, rec graph.Record, columns []string) (neo4j.Node, bool) {
	var fallback *neo4j.Node
	for _, col := range orderedColumns(rec, columns) {
		node, ok := rec[col].(neo4j.Node)
		if !ok {
			continue
		}
		if slices.Contains(node.Labels, meta.PrimaryLabel()) {
			return node, true
		}
		if fallback == nil {
			fallback = &node
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return neo4j.Node{}, false
}

func orderedColumns(rec graph.Record, columns []string) []string {
	if len(columns) > 0 {
		return columns
	}
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// decodeRelated fills a relationship field from a list of related nodes.
func decodeRelated(prop Property, field reflect.Value, values []any) error {
	meta, err := MetadataOf(prop.Rel.Target)
	if err != nil {
		return err
	}

	elemType := prop.Type
	if prop.Rel.Many {
		elemType = prop.Type.Elem()
	}

	items := reflect.MakeSlice(reflect.SliceOf(elemType), 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		node, ok := v.(neo4j.Node)
		if !ok || seen[node.ElementId] {
			continue
		}
		seen[node.ElementId] = true
		target := reflect.New(prop.Rel.Target).Elem()
		if err := decodeNode(meta, node, target); err != nil {
			return err
		}
		if elemType.Kind() == reflect.Pointer {
			items = reflect.Append(items, target.Addr())
		} else {
			items = reflect.Append(items, target)
		}
	}

	if prop.Rel.Many {
		field.Set(items)
		return nil
	}
	if items.Len() > 0 {
		field.Set(items.Index(0))
	}
	return nil
}
