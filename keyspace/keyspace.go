// Package keyspace holds the per-database key tables.
package keyspace

import "github.com/vx-labs/lazyfree/object"

// Table maps keys to the objects they own.
type Table struct {
	entries map[string]*object.Object
}

func NewTable() *Table {
	return &Table{entries: map[string]*object.Object{}}
}

func (t *Table) Len() int {
	return len(t.entries)
}

func (t *Table) Get(key string) (*object.Object, bool) {
	o, ok := t.entries[key]
	return o, ok
}

// Set stores obj under key and hands the replaced object, if any, back to
// the caller.
func (t *Table) Set(key string, obj *object.Object) (*object.Object, bool) {
	old, ok := t.entries[key]
	t.entries[key] = obj
	return old, ok
}

// Delete unlinks key and hands its object back to the caller.
func (t *Table) Delete(key string) (*object.Object, bool) {
	o, ok := t.entries[key]
	if ok {
		delete(t.entries, key)
	}
	return o, ok
}

// Release drops the table reference on every object.
func (t *Table) Release() {
	for k, o := range t.entries {
		o.DecrRef()
		delete(t.entries, k)
	}
	t.entries = nil
}

// Expires maps volatile keys to their deadline, in unix milliseconds.
type Expires struct {
	deadlines map[string]int64
}

func NewExpires() *Expires {
	return &Expires{deadlines: map[string]int64{}}
}

func (e *Expires) Len() int {
	return len(e.deadlines)
}
func (e *Expires) Set(key string, deadline int64) {
	e.deadlines[key] = deadline
}
func (e *Expires) Get(key string) (int64, bool) {
	d, ok := e.deadlines[key]
	return d, ok
}
func (e *Expires) Delete(key string) bool {
	_, ok := e.deadlines[key]
	delete(e.deadlines, key)
	return ok
}

// Expired returns keys whose deadline is at or before now.
func (e *Expires) Expired(now int64) []string {
	var out []string
	for k, d := range e.deadlines {
		if d <= now {
			out = append(out, k)
		}
	}
	return out
}

func (e *Expires) Release() {
	for k := range e.deadlines {
		delete(e.deadlines, k)
	}
	e.deadlines = nil
}

// DB is one numbered database: a key table and its expiry index.
type DB struct {
	id      int
	main    *Table
	expires *Expires
}

func NewDB(id int) *DB {
	return &DB{
		id:      id,
		main:    NewTable(),
		expires: NewExpires(),
	}
}

func (db *DB) ID() int           { return db.id }
func (db *DB) Main() *Table      { return db.main }
func (db *DB) Expires() *Expires { return db.expires }
func (db *DB) Size() int         { return db.main.Len() }

// Swap installs fresh empty tables and returns the previous pair. The caller
// owns the returned tables.
func (db *DB) Swap() (*Table, *Expires) {
	main, expires := db.main, db.expires
	db.main = NewTable()
	db.expires = NewExpires()
	return main, expires
}

// Delete unlinks key from both tables and returns its object.
func (db *DB) Delete(key string) (*object.Object, bool) {
	o, ok := db.main.Delete(key)
	if ok {
		db.expires.Delete(key)
	}
	return o, ok
}
