// Package tracking keeps the table of keys clients asked to be notified
// about when they change.
package tracking

import (
	"sort"

	iradix "github.com/hashicorp/go-immutable-radix"
)

type trackedKey struct {
	clients map[string]struct{}
}

// Table is a radix tree from tracked keys to the clients tracking them.
type Table struct {
	tree *iradix.Tree
}

func NewTable() *Table {
	return &Table{tree: iradix.New()}
}

// Len returns the number of tracked keys.
func (t *Table) Len() int {
	return t.tree.Len()
}

// Track records that client cached key.
func (t *Table) Track(key string, client string) {
	v, ok := t.tree.Get([]byte(key))
	if !ok {
		v = &trackedKey{clients: map[string]struct{}{}}
		t.tree, _, _ = t.tree.Insert([]byte(key), v)
	}
	v.(*trackedKey).clients[client] = struct{}{}
}

// Clients returns the clients tracking key, sorted.
func (t *Table) Clients(key string) []string {
	v, ok := t.tree.Get([]byte(key))
	if !ok {
		return nil
	}
	out := make([]string, 0, len(v.(*trackedKey).clients))
	for c := range v.(*trackedKey).clients {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// AllClients returns every client tracking at least one key, sorted.
func (t *Table) AllClients() []string {
	seen := map[string]struct{}{}
	t.tree.Root().Walk(func(_ []byte, v interface{}) bool {
		for c := range v.(*trackedKey).clients {
			seen[c] = struct{}{}
		}
		return false
	})
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Invalidate forgets key and returns the clients that must be notified.
func (t *Table) Invalidate(key string) []string {
	clients := t.Clients(key)
	t.tree, _, _ = t.tree.Delete([]byte(key))
	return clients
}

// Release drops every tracked key.
func (t *Table) Release() {
	t.tree.Root().Walk(func(_ []byte, v interface{}) bool {
		entry := v.(*trackedKey)
		for c := range entry.clients {
			delete(entry.clients, c)
		}
		return false
	})
	t.tree = nil
}
