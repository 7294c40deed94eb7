// Package snapshot serializes a class registry to canonical CBOR and back.
//
// A snapshot carries the structure of the class graph: names, declared
// ancestors, scalar member values, hook names and whether a class defined
// an initializer. Function values cannot travel; they are recorded as
// kind-only markers and hosts re-register them after a restore. Canonical
// encoding keeps snapshots byte-stable, so content digests are meaningful.
package snapshot

import (
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/valence/object"
)

// Version is the current snapshot format version.
const Version = 1

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("snapshot: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Snapshot is a serializable view of a whole registry. Classes appear in
// creation order, so every ancestor precedes its descendants.
type Snapshot struct {
	Version int           `cbor:"1,keyasint"`
	Classes []ClassRecord `cbor:"2,keyasint,omitempty"`
}

// ClassRecord is the serializable form of one class.
type ClassRecord struct {
	Name      string                  `cbor:"1,keyasint"`
	Ancestors []string                `cbor:"2,keyasint,omitempty"` // direct ancestors, declaration order
	Members   map[string]MemberRecord `cbor:"3,keyasint,omitempty"` // own members only
	Hooks     []string                `cbor:"4,keyasint,omitempty"` // defined hook names, slot order
	HasInit   bool                    `cbor:"5,keyasint,omitempty"`
}

// MemberRecord carries one member value. Exactly one value field is
// meaningful, selected by Kind; function and opaque members carry no value.
type MemberRecord struct {
	Kind  string  `cbor:"1,keyasint"`
	Bool  bool    `cbor:"2,keyasint,omitempty"`
	Int   int64   `cbor:"3,keyasint,omitempty"`
	Float float64 `cbor:"4,keyasint,omitempty"`
	Str   string  `cbor:"5,keyasint,omitempty"`
}

// ---------------------------------------------------------------------------
// Capture
// ---------------------------------------------------------------------------

// Capture builds a snapshot of every class in the registry.
func Capture(reg *object.Registry) *Snapshot {
	classes := reg.All()
	s := &Snapshot{
		Version: Version,
		Classes: make([]ClassRecord, 0, len(classes)),
	}
	for _, c := range classes {
		s.Classes = append(s.Classes, recordFor(c))
	}
	return s
}

// recordFor converts one live class to its serializable form.
func recordFor(c *object.Class) ClassRecord {
	rec := ClassRecord{
		Name:    c.Name(),
		HasInit: c.Initializer() != nil,
	}
	for _, d := range c.DirectAncestors() {
		rec.Ancestors = append(rec.Ancestors, d.Name())
	}
	members := c.Members()
	if len(members) > 0 {
		rec.Members = make(map[string]MemberRecord, len(members))
		for name, v := range members {
			rec.Members[name] = encodeMember(v)
		}
	}
	for _, h := range c.Hooks() {
		rec.Hooks = append(rec.Hooks, h.String())
	}
	return rec
}

// encodeMember maps a member value to its record. Non-scalar values keep
// their kind but lose their value.
func encodeMember(v any) MemberRecord {
	switch x := v.(type) {
	case bool:
		return MemberRecord{Kind: object.KindBool, Bool: x}
	case int:
		return MemberRecord{Kind: object.KindInt, Int: int64(x)}
	case int8:
		return MemberRecord{Kind: object.KindInt, Int: int64(x)}
	case int16:
		return MemberRecord{Kind: object.KindInt, Int: int64(x)}
	case int32:
		return MemberRecord{Kind: object.KindInt, Int: int64(x)}
	case int64:
		return MemberRecord{Kind: object.KindInt, Int: x}
	case uint:
		return MemberRecord{Kind: object.KindInt, Int: int64(x)}
	case uint8:
		return MemberRecord{Kind: object.KindInt, Int: int64(x)}
	case uint16:
		return MemberRecord{Kind: object.KindInt, Int: int64(x)}
	case uint32:
		return MemberRecord{Kind: object.KindInt, Int: int64(x)}
	case uint64:
		return MemberRecord{Kind: object.KindInt, Int: int64(x)}
	case float32:
		return MemberRecord{Kind: object.KindFloat, Float: float64(x)}
	case float64:
		return MemberRecord{Kind: object.KindFloat, Float: x}
	case string:
		return MemberRecord{Kind: object.KindString, Str: x}
	}
	return MemberRecord{Kind: object.KindOf(v)}
}

// decodeMember returns the restorable value for a record. Records without
// a value report false.
func decodeMember(rec MemberRecord) (any, bool) {
	switch rec.Kind {
	case object.KindBool:
		return rec.Bool, true
	case object.KindInt:
		return rec.Int, true
	case object.KindFloat:
		return rec.Float, true
	case object.KindString:
		return rec.Str, true
	}
	return nil, false
}

// ---------------------------------------------------------------------------
// Restore
// ---------------------------------------------------------------------------

// Restore recreates the snapshot's classes inside a registry. Records are
// applied in order; ancestors must already exist, either from an earlier
// record or from classes the registry held beforehand. Records whose name
// is already registered are skipped untouched. Scalar members are restored
// (integers come back as int64); function members, hooks and initializers
// are structure only and must be re-registered by the host.
func Restore(reg *object.Registry, s *Snapshot) error {
	if s.Version != Version {
		return fmt.Errorf("snapshot: unsupported version %d", s.Version)
	}

	for _, rec := range s.Classes {
		if reg.Has(rec.Name) {
			continue
		}
		ancestors := make([]*object.Class, len(rec.Ancestors))
		for i, name := range rec.Ancestors {
			a := reg.Lookup(name)
			if a == nil {
				return fmt.Errorf("snapshot: class %s: unknown ancestor %s", rec.Name, name)
			}
			ancestors[i] = a
		}
		c, err := reg.NewClass(rec.Name, ancestors...)
		if err != nil {
			return fmt.Errorf("snapshot: class %s: %w", rec.Name, err)
		}
		for name, mrec := range rec.Members {
			v, ok := decodeMember(mrec)
			if !ok {
				continue
			}
			if err := c.Set(name, v); err != nil {
				return fmt.Errorf("snapshot: class %s: member %s: %w", rec.Name, name, err)
			}
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Wire format
// ---------------------------------------------------------------------------

// Marshal serializes a snapshot to canonical CBOR bytes.
func Marshal(s *Snapshot) ([]byte, error) {
	return cborEncMode.Marshal(s)
}

// Unmarshal deserializes a snapshot from CBOR bytes.
func Unmarshal(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("snapshot: unmarshal snapshot: %w", err)
	}
	return &s, nil
}

// Write serializes a snapshot to a file.
func Write(path string, s *Snapshot) error {
	data, err := Marshal(s)
	if err != nil {
		return fmt.Errorf("snapshot: marshal for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("snapshot: write %s: %w", path, err)
	}
	return nil
}

// Read loads a snapshot from a file.
func Read(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: read %s: %w", path, err)
	}
	return Unmarshal(data)
}
