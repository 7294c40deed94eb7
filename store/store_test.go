package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/chazu/valence/object"
)

func testRegistry(t *testing.T) *object.Registry {
	t.Helper()
	reg := object.NewRegistry()
	animal, err := reg.NewClass("Animal")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := reg.NewClass("Dog", animal); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.NewClass("Cat", animal); err != nil {
		t.Fatal(err)
	}
	return reg
}

func openStore(t *testing.T, path string, reg *object.Registry) *Store {
	t.Helper()
	s, err := Open(path, reg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// ---------------------------------------------------------------------------
// Round trips
// ---------------------------------------------------------------------------

func TestSaveAndLoad(t *testing.T) {
	reg := testRegistry(t)
	path := filepath.Join(t.TempDir(), "objects.db")

	s1 := openStore(t, path, reg)
	dog, err := reg.Lookup("Dog").New()
	if err != nil {
		t.Fatal(err)
	}
	dog.Set("name", "rex")
	dog.Set("age", 3)
	dog.Set("good", true)
	dog.Set("weight", 12.5)
	dog.Set("toys", []any{"ball", 2})
	if err := s1.Save(dog); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	s1.Close()

	// A fresh store has an empty cache, so this exercises the database.
	s2 := openStore(t, path, reg)
	got, err := s2.Load(dog.ID())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got.ID() != dog.ID() {
		t.Errorf("ID = %q, want %q", got.ID(), dog.ID())
	}
	if got.Class() != reg.Lookup("Dog") {
		t.Errorf("Class = %v, want Dog", got.Class())
	}
	if v, _ := got.Get("name"); v != "rex" {
		t.Errorf("name = %v, want rex", v)
	}
	// Integers come back as int64.
	if v, _ := got.Get("age"); v != int64(3) {
		t.Errorf("age = %v (%T), want int64(3)", v, v)
	}
	if v, _ := got.Get("good"); v != true {
		t.Errorf("good = %v, want true", v)
	}
	if v, _ := got.Get("weight"); v != 12.5 {
		t.Errorf("weight = %v, want 12.5", v)
	}
	toys, _ := got.Get("toys")
	list, ok := toys.([]any)
	if !ok || len(list) != 2 || list[0] != "ball" || list[1] != int64(2) {
		t.Errorf("toys = %#v, want [ball int64(2)]", toys)
	}
}

func TestLoadIdentity(t *testing.T) {
	reg := testRegistry(t)
	s := openStore(t, filepath.Join(t.TempDir(), "objects.db"), reg)

	dog, _ := reg.Lookup("Dog").New()
	if err := s.Save(dog); err != nil {
		t.Fatal(err)
	}

	// A saved object loads back as itself, and repeated loads agree.
	got1, err := s.Load(dog.ID())
	if err != nil {
		t.Fatal(err)
	}
	got2, err := s.Load(dog.ID())
	if err != nil {
		t.Fatal(err)
	}
	if got1 != dog || got2 != dog {
		t.Error("Load should return the cached object")
	}
}

func TestLoadNotFound(t *testing.T) {
	reg := testRegistry(t)
	s := openStore(t, filepath.Join(t.TempDir(), "objects.db"), reg)

	_, err := s.Load("dog_missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Load of missing id: err = %v, want ErrNotFound", err)
	}
}

func TestLoadDoesNotRunInitializer(t *testing.T) {
	reg := object.NewRegistry()
	class, _ := reg.NewClass("Counter")
	runs := 0
	_ = class.Set(object.InitializerName, object.Func(func(recv *object.Object, args ...any) (any, error) {
		runs++
		return nil, nil
	}))

	path := filepath.Join(t.TempDir(), "objects.db")
	s1 := openStore(t, path, reg)
	o, err := class.New()
	if err != nil {
		t.Fatal(err)
	}
	if err := s1.Save(o); err != nil {
		t.Fatal(err)
	}
	s1.Close()

	s2 := openStore(t, path, reg)
	if _, err := s2.Load(o.ID()); err != nil {
		t.Fatal(err)
	}
	if runs != 1 {
		t.Errorf("initializer ran %d times, want 1 (construction only)", runs)
	}
}

func TestLoadUnregisteredClass(t *testing.T) {
	reg := testRegistry(t)
	path := filepath.Join(t.TempDir(), "objects.db")

	s1 := openStore(t, path, reg)
	dog, _ := reg.Lookup("Dog").New()
	if err := s1.Save(dog); err != nil {
		t.Fatal(err)
	}
	s1.Close()

	// A registry without Dog cannot rehydrate the row.
	s2 := openStore(t, path, object.NewRegistry())
	if _, err := s2.Load(dog.ID()); !errors.Is(err, object.ErrInvalidClass) {
		t.Errorf("Load with unregistered class: err = %v, want ErrInvalidClass", err)
	}
}

// ---------------------------------------------------------------------------
// References
// ---------------------------------------------------------------------------

func TestObjectReferences(t *testing.T) {
	reg := testRegistry(t)
	path := filepath.Join(t.TempDir(), "objects.db")

	s1 := openStore(t, path, reg)
	pet, _ := reg.Lookup("Cat").New()
	pet.Set("name", "mia")
	owner, _ := reg.Lookup("Animal").New()
	owner.Set("pet", pet)
	if err := s1.Save(pet); err != nil {
		t.Fatal(err)
	}
	if err := s1.Save(owner); err != nil {
		t.Fatal(err)
	}
	s1.Close()

	s2 := openStore(t, path, reg)
	got, err := s2.Load(owner.ID())
	if err != nil {
		t.Fatal(err)
	}

	ref, _ := got.Get("pet")
	gotPet, ok := ref.(*object.Object)
	if !ok {
		t.Fatalf("pet = %#v, want *object.Object", ref)
	}
	if gotPet.ID() != pet.ID() {
		t.Errorf("pet id = %q, want %q", gotPet.ID(), pet.ID())
	}
	if v, _ := gotPet.Get("name"); v != "mia" {
		t.Errorf("pet name = %v, want mia", v)
	}
}

func TestReferenceCycle(t *testing.T) {
	reg := testRegistry(t)
	path := filepath.Join(t.TempDir(), "objects.db")

	s1 := openStore(t, path, reg)
	a, _ := reg.Lookup("Dog").New()
	b, _ := reg.Lookup("Cat").New()
	a.Set("partner", b)
	b.Set("partner", a)
	if err := s1.Save(a); err != nil {
		t.Fatal(err)
	}
	if err := s1.Save(b); err != nil {
		t.Fatal(err)
	}
	s1.Close()

	s2 := openStore(t, path, reg)
	gotA, err := s2.Load(a.ID())
	if err != nil {
		t.Fatal(err)
	}

	ref, _ := gotA.Get("partner")
	gotB, ok := ref.(*object.Object)
	if !ok {
		t.Fatalf("partner = %#v, want *object.Object", ref)
	}
	back, _ := gotB.Get("partner")
	if back != gotA {
		t.Error("cyclic references should resolve to the same loaded object")
	}
}

func TestUnresolvedReferenceKeepsID(t *testing.T) {
	reg := testRegistry(t)
	path := filepath.Join(t.TempDir(), "objects.db")

	s1 := openStore(t, path, reg)
	ghost, _ := reg.Lookup("Cat").New()
	owner, _ := reg.Lookup("Animal").New()
	owner.Set("pet", ghost)
	// Only the owner is saved; the reference dangles.
	if err := s1.Save(owner); err != nil {
		t.Fatal(err)
	}
	s1.Close()

	s2 := openStore(t, path, reg)
	got, err := s2.Load(owner.ID())
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := got.Get("pet"); v != ghost.ID() {
		t.Errorf("dangling reference = %v, want the raw id %q", v, ghost.ID())
	}
}

func TestClassReference(t *testing.T) {
	reg := testRegistry(t)
	path := filepath.Join(t.TempDir(), "objects.db")

	s1 := openStore(t, path, reg)
	o, _ := reg.Lookup("Animal").New()
	o.Set("favorite", reg.Lookup("Dog"))
	if err := s1.Save(o); err != nil {
		t.Fatal(err)
	}
	s1.Close()

	s2 := openStore(t, path, reg)
	got, err := s2.Load(o.ID())
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := got.Get("favorite"); v != reg.Lookup("Dog") {
		t.Errorf("favorite = %v, want the Dog class handle", v)
	}
}

func TestFunctionFieldsSkipped(t *testing.T) {
	reg := testRegistry(t)
	path := filepath.Join(t.TempDir(), "objects.db")

	s1 := openStore(t, path, reg)
	o, _ := reg.Lookup("Dog").New()
	o.Set("name", "rex")
	o.Set("bark", object.Func(func(recv *object.Object, args ...any) (any, error) {
		return "woof", nil
	}))
	if err := s1.Save(o); err != nil {
		t.Fatal(err)
	}
	s1.Close()

	s2 := openStore(t, path, reg)
	got, err := s2.Load(o.ID())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := got.Get("bark"); ok {
		t.Error("function fields should not persist")
	}
	if v, _ := got.Get("name"); v != "rex" {
		t.Errorf("name = %v, want rex", v)
	}
}

// ---------------------------------------------------------------------------
// Deletion, queries, bulk operations
// ---------------------------------------------------------------------------

func TestDelete(t *testing.T) {
	reg := testRegistry(t)
	s := openStore(t, filepath.Join(t.TempDir(), "objects.db"), reg)

	dog, _ := reg.Lookup("Dog").New()
	if err := s.Save(dog); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(dog.ID()); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	// Gone from both the table and the cache.
	if _, err := s.Load(dog.ID()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load after Delete: err = %v, want ErrNotFound", err)
	}
}

func TestFindByClass(t *testing.T) {
	reg := testRegistry(t)
	s := openStore(t, filepath.Join(t.TempDir(), "objects.db"), reg)

	d1, _ := reg.Lookup("Dog").New()
	d2, _ := reg.Lookup("Dog").New()
	c1, _ := reg.Lookup("Cat").New()
	for _, o := range []*object.Object{d1, d2, c1} {
		if err := s.Save(o); err != nil {
			t.Fatal(err)
		}
	}

	ids, err := s.FindByClass("Dog")
	if err != nil {
		t.Fatalf("FindByClass failed: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("FindByClass(Dog) = %v, want 2 ids", ids)
	}
	// Exact class only: descendants are not included.
	ids, err = s.FindByClass("Animal")
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Errorf("FindByClass(Animal) = %v, want none", ids)
	}
}

func TestSaveAll(t *testing.T) {
	reg := testRegistry(t)
	path := filepath.Join(t.TempDir(), "objects.db")

	s1 := openStore(t, path, reg)
	dog, _ := reg.Lookup("Dog").New()
	dog.Set("age", 1)
	if err := s1.Save(dog); err != nil {
		t.Fatal(err)
	}
	// Mutate after the first save; SaveAll flushes tracked objects.
	dog.Set("age", 2)
	if err := s1.SaveAll(); err != nil {
		t.Fatalf("SaveAll failed: %v", err)
	}
	s1.Close()

	s2 := openStore(t, path, reg)
	got, err := s2.Load(dog.ID())
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := got.Get("age"); v != int64(2) {
		t.Errorf("age = %v, want int64(2)", v)
	}
}

func TestLoadAll(t *testing.T) {
	reg := testRegistry(t)
	path := filepath.Join(t.TempDir(), "objects.db")

	s1 := openStore(t, path, reg)
	d, _ := reg.Lookup("Dog").New()
	c, _ := reg.Lookup("Cat").New()
	if err := s1.Save(d); err != nil {
		t.Fatal(err)
	}
	if err := s1.Save(c); err != nil {
		t.Fatal(err)
	}
	// A row whose class no one registered loads with a warning, not an error.
	if _, err := s1.db.Exec(
		"INSERT INTO objects (id, class, fields) VALUES (?, ?, json(?))",
		"mys_1", "Mystery", "{}",
	); err != nil {
		t.Fatal(err)
	}
	s1.Close()

	s2 := openStore(t, path, reg)
	objects, err := s2.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(objects) != 2 {
		t.Errorf("LoadAll returned %d objects, want 2", len(objects))
	}
}
