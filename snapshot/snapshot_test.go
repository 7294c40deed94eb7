package snapshot

import (
	"path/filepath"
	"testing"

	"github.com/chazu/valence/object"
)

// buildRegistry creates the registry used across snapshot tests.
func buildRegistry(t *testing.T) *object.Registry {
	t.Helper()
	reg := object.NewRegistry()

	shape, err := reg.NewClass("Shape")
	if err != nil {
		t.Fatalf("NewClass(Shape) failed: %v", err)
	}
	_ = shape.Set("sides", 0)
	_ = shape.Set("label", "shape")

	poly, err := reg.NewClass("Polygon", shape)
	if err != nil {
		t.Fatalf("NewClass(Polygon) failed: %v", err)
	}
	_ = poly.Set("closed", true)
	_ = poly.Set("__str__", object.Func(func(recv *object.Object, args ...any) (any, error) {
		return "polygon", nil
	}))
	_ = poly.Set(object.InitializerName, object.Func(func(recv *object.Object, args ...any) (any, error) {
		return nil, nil
	}))

	if _, err := reg.NewClass("Quad", poly, shape); err != nil {
		t.Fatalf("NewClass(Quad) failed: %v", err)
	}
	return reg
}

// ---------------------------------------------------------------------------
// Capture and restore tests
// ---------------------------------------------------------------------------

func TestCaptureStructure(t *testing.T) {
	reg := buildRegistry(t)
	s := Capture(reg)

	if s.Version != Version {
		t.Errorf("Version = %d, want %d", s.Version, Version)
	}
	if len(s.Classes) != 3 {
		t.Fatalf("captured %d classes, want 3", len(s.Classes))
	}

	poly := s.Classes[1]
	if poly.Name != "Polygon" {
		t.Fatalf("Classes[1].Name = %q, want Polygon", poly.Name)
	}
	if len(poly.Ancestors) != 1 || poly.Ancestors[0] != "Shape" {
		t.Errorf("Polygon ancestors = %v, want [Shape]", poly.Ancestors)
	}
	if !poly.HasInit {
		t.Error("Polygon should record its initializer")
	}
	if len(poly.Hooks) != 1 || poly.Hooks[0] != "__str__" {
		t.Errorf("Polygon hooks = %v, want [__str__]", poly.Hooks)
	}
	if rec := poly.Members["closed"]; rec.Kind != object.KindBool || !rec.Bool {
		t.Errorf("member closed = %+v, want bool true", rec)
	}

	quad := s.Classes[2]
	if len(quad.Ancestors) != 2 || quad.Ancestors[0] != "Polygon" || quad.Ancestors[1] != "Shape" {
		t.Errorf("Quad ancestors = %v, want [Polygon Shape] in declaration order", quad.Ancestors)
	}
}

func TestRoundTrip(t *testing.T) {
	reg := buildRegistry(t)
	data, err := Marshal(Capture(reg))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	s, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	fresh := object.NewRegistry()
	if err := Restore(fresh, s); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	if fresh.Len() != 3 {
		t.Fatalf("restored %d classes, want 3", fresh.Len())
	}

	quad := fresh.Lookup("Quad")
	shape := fresh.Lookup("Shape")
	if quad == nil || shape == nil {
		t.Fatal("restored registry is missing classes")
	}
	if d, ok := quad.DistanceTo(shape); !ok || d != 1 {
		t.Errorf("Quad.DistanceTo(Shape) = %d, %v, want 1, true", d, ok)
	}

	// Scalars restore; integers come back as int64.
	if v, ok := quad.Lookup("sides"); !ok || v != int64(0) {
		t.Errorf("Lookup(sides) = %v, %v, want int64(0), true", v, ok)
	}
	if v, _ := quad.Lookup("label"); v != "shape" {
		t.Errorf("Lookup(label) = %v, want shape", v)
	}
	if v, _ := quad.Lookup("closed"); v != true {
		t.Errorf("Lookup(closed) = %v, want true", v)
	}

	// Function-valued state is structure only.
	poly := fresh.Lookup("Polygon")
	if poly.Initializer() != nil {
		t.Error("initializers must not restore as callables")
	}
	if _, ok := poly.Hook(object.HookStr); ok {
		t.Error("hooks must not restore as callables")
	}
}

func TestRestoreSkipsExistingClasses(t *testing.T) {
	reg := buildRegistry(t)
	s := Capture(reg)

	target := object.NewRegistry()
	pre, _ := target.NewClass("Shape")
	_ = pre.Set("sides", 99)

	if err := Restore(target, s); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	// The pre-existing Shape kept its state; descendants attached to it.
	if v, _ := target.Lookup("Shape").Lookup("sides"); v != 99 {
		t.Errorf("Lookup(sides) = %v, want 99", v)
	}
	if target.Lookup("Quad") == nil {
		t.Error("new classes should restore around the existing one")
	}
}

func TestRestoreUnknownAncestor(t *testing.T) {
	s := &Snapshot{
		Version: Version,
		Classes: []ClassRecord{
			{Name: "Orphan", Ancestors: []string{"Missing"}},
		},
	}
	if err := Restore(object.NewRegistry(), s); err == nil {
		t.Error("Restore with an unknown ancestor should fail")
	}
}

func TestRestoreVersionCheck(t *testing.T) {
	s := &Snapshot{Version: 99}
	if err := Restore(object.NewRegistry(), s); err == nil {
		t.Error("Restore of an unsupported version should fail")
	}
}

// ---------------------------------------------------------------------------
// Digest tests
// ---------------------------------------------------------------------------

func TestDigestDeterministic(t *testing.T) {
	r1 := buildRegistry(t)
	r2 := buildRegistry(t)

	d1, err := DigestSnapshot(Capture(r1))
	if err != nil {
		t.Fatalf("DigestSnapshot failed: %v", err)
	}
	d2, err := DigestSnapshot(Capture(r2))
	if err != nil {
		t.Fatalf("DigestSnapshot failed: %v", err)
	}
	if d1 != d2 {
		t.Error("identical registries should digest identically")
	}
}

func TestDigestTracksContent(t *testing.T) {
	reg := buildRegistry(t)
	shape := reg.Lookup("Shape")

	before, err := DigestClass(shape)
	if err != nil {
		t.Fatalf("DigestClass failed: %v", err)
	}
	_ = shape.Set("sides", 1)
	after, err := DigestClass(shape)
	if err != nil {
		t.Fatalf("DigestClass failed: %v", err)
	}
	if before == after {
		t.Error("changing a member should change the class digest")
	}
}

func TestDigestIgnoresInheritedState(t *testing.T) {
	reg := buildRegistry(t)
	quad := reg.Lookup("Quad")

	before, _ := DigestClass(quad)
	// A mutation on an ancestor flows into Quad's flattened table but not
	// into Quad's own record.
	_ = reg.Lookup("Shape").Set("label", "changed")
	after, _ := DigestClass(quad)
	if before != after {
		t.Error("ancestor mutations must not change a descendant's digest")
	}
}

// ---------------------------------------------------------------------------
// File round trip
// ---------------------------------------------------------------------------

func TestWriteAndRead(t *testing.T) {
	reg := buildRegistry(t)
	path := filepath.Join(t.TempDir(), "classes.vsnap")

	if err := Write(path, Capture(reg)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	s, err := Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(s.Classes) != 3 {
		t.Errorf("read %d classes, want 3", len(s.Classes))
	}

	if _, err := Read(filepath.Join(t.TempDir(), "missing.vsnap")); err == nil {
		t.Error("Read of a missing file should fail")
	}
}
