package ogm

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/vanshika/graphrepo/internal/dataaccess"
)

// Direction of a relationship field relative to the owning entity.
type Direction string

const (
	Outgoing   Direction = "OUTGOING"
	Incoming   Direction = "INCOMING"
	Undirected Direction = "UNDIRECTED"
)

// Pattern joins two node patterns with a relationship pattern, e.g.
// Outgoing.Pattern("(a)", "r:KNOWS", "(b)") is (a)-[r:KNOWS]->(b).
func (d Direction) Pattern(from, rel, to string) string {
	switch d {
	case Incoming:
		return from + "<-[" + rel + "]-" + to
	case Undirected:
		return from + "-[" + rel + "]-" + to
	default:
		return from + "-[" + rel + "]->" + to
	}
}

// Labeler lets an entity declare its node labels. The first label is the
// primary one.
type Labeler interface {
	Labels() []string
}

// Relationship describes a field that points at other entities.
type Relationship struct {
	Type      string
	Direction Direction
	// Target is the related entity type with pointers and slices removed.
	Target reflect.Type
	// Many is true for slice fields.
	Many bool
}

// Property describes one mapped struct field.
type Property struct {
	// Name is the graph property name.
	Name      string
	Field     string
	Index     []int
	Type      reflect.Type
	ID        bool
	OmitEmpty bool
	Rel       *Relationship
}

// IsRelationship reports whether the field maps a relationship.
func (p Property) IsRelationship() bool {
	return p.Rel != nil
}

// Entity is the mapping metadata of a struct type.
type Entity struct {
	Type       reflect.Type
	Labels     []string
	Properties []Property
	id         int
}

// Name is the Go type name.
func (e *Entity) Name() string {
	return e.Type.Name()
}

// PrimaryLabel is the first label.
func (e *Entity) PrimaryLabel() string {
	return e.Labels[0]
}

// LabelExpr renders the labels as a node pattern suffix, e.g. ":User:Person".
func (e *Entity) LabelExpr() string {
	return ":" + strings.Join(e.Labels, ":")
}

// IDProperty returns the identifier field.
func (e *Entity) IDProperty() Property {
	return e.Properties[e.id]
}

// Property finds a field by graph name or Go field name, ignoring case.
func (e *Entity) Property(name string) (Property, bool) {
	for _, p := range e.Properties {
		if strings.EqualFold(p.Name, name) || strings.EqualFold(p.Field, name) {
			return p, true
		}
	}
	return Property{}, false
}

// Relationships returns the relationship fields in declaration order.
func (e *Entity) Relationships() []Property {
	var out []Property
	for _, p := range e.Properties {
		if p.IsRelationship() {
			out = append(out, p)
		}
	}
	return out
}

// Persistent returns the fields written as node properties.
func (e *Entity) Persistent() []Property {
	var out []Property
	for _, p := range e.Properties {
		if !p.ID && !p.IsRelationship() {
			out = append(out, p)
		}
	}
	return out
}

var (
	metadataCache sync.Map
	identifier    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	timeType      = reflect.TypeOf(time.Time{})
)

// MetadataFor returns the metadata of T.
func MetadataFor[T any]() (*Entity, error) {
	return MetadataOf(reflect.TypeFor[T]())
}

// MetadataOf inspects t, which may be a struct or a pointer to one. Results are
// cached per type.
func MetadataOf(t reflect.Type) (*Entity, error) {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, dataaccess.Newf(dataaccess.KindInvalidUsage, "entity metadata", "%v is not a struct", t)
	}
	if cached, ok := metadataCache.Load(t); ok {
		return cached.(*Entity), nil
	}

	meta, err := inspect(t)
	if err != nil {
		return nil, err
	}
	actual, _ := metadataCache.LoadOrStore(t, meta)
	return actual.(*Entity), nil
}

func inspect(t reflect.Type) (*Entity, error) {
	meta := &Entity{Type: t, id: -1}

	if labeler, ok := reflect.New(t).Interface().(Labeler); ok {
		meta.Labels = labeler.Labels()
	}
	if len(meta.Labels) == 0 {
		meta.Labels = []string{t.Name()}
	}
	for _, l := range meta.Labels {
		if !identifier.MatchString(l) {
			return nil, dataaccess.Newf(dataaccess.KindInvalidUsage, "entity metadata", "invalid label %q on %s", l, t.Name())
		}
	}

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		prop, ok, err := fieldProperty(f)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", t.Name(), f.Name, err)
		}
		if !ok {
			continue
		}
		if prop.ID {
			if meta.id >= 0 {
				return nil, dataaccess.Newf(dataaccess.KindInvalidUsage, "entity metadata", "%s declares more than one id field", t.Name())
			}
			meta.id = len(meta.Properties)
		}
		meta.Properties = append(meta.Properties, prop)
	}

	if meta.id < 0 {
		return nil, dataaccess.Newf(dataaccess.KindInvalidUsage, "entity metadata", "%s has no id field", t.Name())
	}
	if meta.Properties[meta.id].Type.Kind() != reflect.String {
		return nil, dataaccess.Newf(dataaccess.KindInvalidUsage, "entity metadata", "%s id field must be a string", t.Name())
	}
	return meta, nil
}

func fieldProperty(f reflect.StructField) (Property, bool, error) {
	tag, hasTag := f.Tag.Lookup("graph")
	if tag == "-" {
		return Property{}, false, nil
	}

	prop := Property{Field: f.Name, Index: f.Index, Type: f.Type}
	parts := strings.Split(tag, ",")
	prop.Name = parts[0]
	if prop.Name == "" {
		prop.Name = lowerCamel(f.Name)
	}

	var relType string
	direction := Outgoing
	for _, opt := range parts[1:] {
		key, value, _ := strings.Cut(strings.TrimSpace(opt), "=")
		switch key {
		case "id":
			prop.ID = true
		case "omitempty":
			prop.OmitEmpty = true
		case "rel":
			relType = value
		case "dir":
			switch Direction(strings.ToUpper(value)) {
			case Outgoing, Incoming, Undirected:
				direction = Direction(strings.ToUpper(value))
			default:
				return Property{}, false, fmt.Errorf("unknown relationship direction %q", value)
			}
		}
	}
	if !hasTag && f.Name == "ID" {
		prop.ID = true
	}

	if relType != "" {
		if !identifier.MatchString(relType) {
			return Property{}, false, fmt.Errorf("invalid relationship type %q", relType)
		}
		target, many := relationshipTarget(f.Type)
		if target.Kind() != reflect.Struct {
			return Property{}, false, fmt.Errorf("relationship field must reference a struct, got %v", f.Type)
		}
		prop.Rel = &Relationship{Type: relType, Direction: direction, Target: target, Many: many}
		return prop, true, nil
	}

	base := f.Type
	for base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	if base.Kind() == reflect.Struct && base != timeType {
		// nested value objects are not node properties
		return Property{}, false, nil
	}
	if !identifier.MatchString(prop.Name) {
		return Property{}, false, fmt.Errorf("invalid property name %q", prop.Name)
	}
	return prop, true, nil
}

func relationshipTarget(t reflect.Type) (reflect.Type, bool) {
	many := false
	if t.Kind() == reflect.Slice {
		many = true
		t = t.Elem()
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t, many
}

// lowerCamel turns a Go field name into a property name: EmailAddress becomes
// emailAddress and URLPath becomes urlPath.
func lowerCamel(s string) string {
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		if !unicode.IsUpper(runes[i]) {
			break
		}
		if i > 0 && i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
			break
		}
		runes[i] = unicode.ToLower(runes[i])
	}
	return string(runes)
}
