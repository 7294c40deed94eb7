// Package store handles SQLite persistence for objects.
//
// Each object is one row: its id, its owning class name, and a JSON
// document of its fields. Object-valued fields persist as references
// and resolve through the store's load cache, so a graph of objects
// round-trips with identity intact.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/valence/object"
)

// ErrNotFound indicates the requested object doesn't exist
var ErrNotFound = errors.New("object not found")

var log = commonlog.GetLogger("valence.store")

// Store handles SQLite storage for objects
type Store struct {
	db     *sql.DB
	reg    *object.Registry
	mu     sync.Mutex
	loaded map[string]*object.Object
}

// Open opens (creating if needed) the object database at path. Classes are
// resolved against reg when objects load.
func Open(path string, reg *object.Registry) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS objects (
		id TEXT PRIMARY KEY,
		class TEXT NOT NULL,
		fields JSON NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}
	if _, err := db.Exec("CREATE INDEX IF NOT EXISTS objects_class ON objects (class)"); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating index: %w", err)
	}

	return &Store{
		db:     db,
		reg:    reg,
		loaded: make(map[string]*object.Object),
	}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// ---------------------------------------------------------------------------
// Saving
// ---------------------------------------------------------------------------

// Save persists an object to the database. Function-valued fields are
// skipped with a warning; they cannot round-trip through storage.
func (s *Store) Save(o *object.Object) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(o)
}

func (s *Store) saveLocked(o *object.Object) error {
	doc := make(map[string]any)
	for name, v := range o.Fields() {
		if object.KindOf(v) == object.KindFunc {
			log.Warningf("skipping field %s of %s: functions do not persist", name, o.ID())
			continue
		}
		doc[name] = encodeValue(v)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding fields of %s: %w", o.ID(), err)
	}

	_, err = s.db.Exec(
		"INSERT OR REPLACE INTO objects (id, class, fields) VALUES (?, ?, json(?))",
		o.ID(), o.Class().Name(), string(data),
	)
	if err != nil {
		return fmt.Errorf("saving object %s: %w", o.ID(), err)
	}

	s.loaded[o.ID()] = o
	return nil
}

// SaveAll persists every object the store currently tracks.
func (s *Store) SaveAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range s.loaded {
		if err := s.saveLocked(o); err != nil {
			return err
		}
	}
	return nil
}

// encodeValue maps a field value to its JSON form. Objects and class
// handles become references; containers are encoded element-wise with
// function values turning into nulls.
func encodeValue(v any) any {
	switch x := v.(type) {
	case *object.Object:
		return map[string]any{"$object": x.ID()}
	case *object.Class:
		return map[string]any{"$class": x.Name()}
	case object.Func:
		return nil
	case []any:
		out := make([]any, len(x))
		for i, elem := range x {
			out[i] = encodeValue(elem)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, elem := range x {
			out[k] = encodeValue(elem)
		}
		return out
	default:
		if object.KindOf(v) == object.KindFunc {
			return nil
		}
		return v
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load retrieves an object from the database. A previously loaded or saved
// object comes back as the same *Object; reference fields resolve through
// the same cache, so cyclic object graphs terminate.
func (s *Store) Load(id string) (*object.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(id)
}

func (s *Store) loadLocked(id string) (*object.Object, error) {
	if o, ok := s.loaded[id]; ok {
		return o, nil
	}

	var className, data string
	err := s.db.QueryRow("SELECT class, fields FROM objects WHERE id = ?", id).Scan(&className, &data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("object %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("querying object %s: %w", id, err)
	}

	class := s.reg.Lookup(className)
	if class == nil {
		return nil, fmt.Errorf("object %s has unregistered class %q: %w", id, className, object.ErrInvalidClass)
	}

	o, err := class.Restore(id)
	if err != nil {
		return nil, fmt.Errorf("restoring object %s: %w", id, err)
	}

	// Cache before decoding fields so reference cycles resolve to this
	// object instead of recursing forever.
	s.loaded[id] = o

	var raw map[string]any
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		delete(s.loaded, id)
		return nil, fmt.Errorf("parsing fields of %s: %w", id, err)
	}
	for name, v := range raw {
		o.Set(name, s.decodeValue(v))
	}
	return o, nil
}

// decodeValue maps a JSON-parsed value back to a field value.
func (s *Store) decodeValue(v any) any {
	switch x := v.(type) {
	case float64:
		// Round-tripped integers come back as int64.
		if x == float64(int64(x)) {
			return int64(x)
		}
		return x
	case []any:
		out := make([]any, len(x))
		for i, elem := range x {
			out[i] = s.decodeValue(elem)
		}
		return out
	case map[string]any:
		if id, ok := x["$object"].(string); ok {
			ref, err := s.loadLocked(id)
			if err != nil {
				// Keep the id for later resolution.
				log.Warningf("unresolved object reference %s: %s", id, err.Error())
				return id
			}
			return ref
		}
		if name, ok := x["$class"].(string); ok {
			if class := s.reg.Lookup(name); class != nil {
				return class
			}
			log.Warningf("unresolved class reference %s", name)
			return name
		}
		out := make(map[string]any, len(x))
		for k, elem := range x {
			out[k] = s.decodeValue(elem)
		}
		return out
	default:
		return v
	}
}

// LoadAll loads every stored object. Rows that fail to load are skipped
// with a warning.
func (s *Store) LoadAll() ([]*object.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query("SELECT id FROM objects")
	if err != nil {
		return nil, fmt.Errorf("querying all objects: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var objects []*object.Object
	for _, id := range ids {
		o, err := s.loadLocked(id)
		if err != nil {
			log.Warningf("failed to load object %s: %s", id, err.Error())
			continue
		}
		objects = append(objects, o)
	}
	return objects, nil
}

// ---------------------------------------------------------------------------
// Deleting and querying
// ---------------------------------------------------------------------------

// Delete removes an object from the database and the load cache.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM objects WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting object %s: %w", id, err)
	}
	delete(s.loaded, id)
	return nil
}

// FindByClass returns the ids of all stored objects whose owning class has
// the given name. Only the exact class matches; descendants do not.
func (s *Store) FindByClass(className string) ([]string, error) {
	rows, err := s.db.Query("SELECT id FROM objects WHERE class = ? ORDER BY id", className)
	if err != nil {
		return nil, fmt.Errorf("querying by class: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
