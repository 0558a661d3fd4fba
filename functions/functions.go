// Package functions holds the registry of loaded function libraries.
package functions

import (
	memdb "github.com/hashicorp/go-memdb"
	"github.com/pkg/errors"
)

var (
	ErrLibraryExists    = errors.New("library already exists")
	ErrFunctionExists   = errors.New("function already exists")
	ErrLibraryNotFound  = errors.New("library not found")
	ErrInvalidLibrary   = errors.New("invalid library")
	ErrReleased         = errors.New("library context was released")
	errInvalidTypeFetch = errors.New("invalid type fetched")
)

const (
	librariesTable = "libraries"
	functionsTable = "functions"
)

type Function struct {
	Name        string
	Library     string
	Description string
	Flags       []string
}

type Library struct {
	Name      string
	Engine    string
	Code      string
	Functions []*Function
}

var schema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		librariesTable: {
			Name: librariesTable,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "Name"},
				},
			},
		},
		functionsTable: {
			Name: functionsTable,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "Name"},
				},
				"library": {
					Name:    "library",
					Unique:  false,
					Indexer: &memdb.StringFieldIndex{Field: "Library"},
				},
			},
		},
	},
}

// LibraryContext indexes libraries and the functions they register.
type LibraryContext struct {
	db        *memdb.MemDB
	functions int
	libraries int
}

func NewLibraryContext() *LibraryContext {
	db, err := memdb.NewMemDB(schema)
	if err != nil {
		panic(errors.Wrap(err, "functions: invalid schema"))
	}
	return &LibraryContext{db: db}
}

// FunctionCount returns the number of registered functions.
func (c *LibraryContext) FunctionCount() int {
	return c.functions
}

func (c *LibraryContext) LibraryCount() int {
	return c.libraries
}

func (c *LibraryContext) do(write bool, f func(*memdb.Txn) error) error {
	if c.db == nil {
		return ErrReleased
	}
	tx := c.db.Txn(write)
	defer tx.Abort()
	return f(tx)
}

// Load registers lib and its functions. With replace set, an existing
// library of the same name is dropped first.
func (c *LibraryContext) Load(lib *Library, replace bool) error {
	if lib == nil || lib.Name == "" {
		return errors.Wrap(ErrInvalidLibrary, "library name is required")
	}
	return c.do(true, func(tx *memdb.Txn) error {
		existing, err := tx.First(librariesTable, "id", lib.Name)
		if err != nil {
			return err
		}
		removed := 0
		if existing != nil {
			if !replace {
				return errors.Wrap(ErrLibraryExists, lib.Name)
			}
			if removed, err = c.deleteLibrary(tx, lib.Name); err != nil {
				return err
			}
		}
		for _, fn := range lib.Functions {
			if fn.Name == "" {
				return errors.Wrapf(ErrInvalidLibrary, "library %s declares an unnamed function", lib.Name)
			}
			other, err := tx.First(functionsTable, "id", fn.Name)
			if err != nil {
				return err
			}
			if other != nil {
				return errors.Wrap(ErrFunctionExists, fn.Name)
			}
			fn.Library = lib.Name
			if err := tx.Insert(functionsTable, fn); err != nil {
				return errors.Wrap(err, "failed to insert function")
			}
		}
		if err := tx.Insert(librariesTable, lib); err != nil {
			return errors.Wrap(err, "failed to insert library")
		}
		tx.Commit()
		c.functions += len(lib.Functions) - removed
		if existing == nil {
			c.libraries++
		}
		return nil
	})
}

// Delete drops a library and its functions.
func (c *LibraryContext) Delete(name string) error {
	return c.do(true, func(tx *memdb.Txn) error {
		existing, err := tx.First(librariesTable, "id", name)
		if err != nil {
			return err
		}
		if existing == nil {
			return errors.Wrap(ErrLibraryNotFound, name)
		}
		removed, err := c.deleteLibrary(tx, name)
		if err != nil {
			return err
		}
		tx.Commit()
		c.functions -= removed
		c.libraries--
		return nil
	})
}

func (c *LibraryContext) deleteLibrary(tx *memdb.Txn, name string) (int, error) {
	removed, err := tx.DeleteAll(functionsTable, "library", name)
	if err != nil {
		return 0, errors.Wrap(err, "failed to delete functions")
	}
	if _, err := tx.DeleteAll(librariesTable, "id", name); err != nil {
		return 0, errors.Wrap(err, "failed to delete library")
	}
	return removed, nil
}

// Function looks a function up by name.
func (c *LibraryContext) Function(name string) (*Function, bool) {
	var res *Function
	err := c.do(false, func(tx *memdb.Txn) error {
		data, err := tx.First(functionsTable, "id", name)
		if err != nil || data == nil {
			return err
		}
		fn, ok := data.(*Function)
		if !ok {
			return errInvalidTypeFetch
		}
		res = fn
		return nil
	})
	return res, err == nil && res != nil
}

// Library returns the functions registered by library name.
func (c *LibraryContext) Library(name string) ([]*Function, error) {
	var res []*Function
	err := c.do(false, func(tx *memdb.Txn) error {
		iterator, err := tx.Get(functionsTable, "library", name)
		if err != nil {
			return err
		}
		for data := iterator.Next(); data != nil; data = iterator.Next() {
			fn, ok := data.(*Function)
			if !ok {
				return errInvalidTypeFetch
			}
			res = append(res, fn)
		}
		return nil
	})
	return res, err
}

// Release drops every library and function.
func (c *LibraryContext) Release() {
	err := c.do(true, func(tx *memdb.Txn) error {
		if _, err := tx.DeleteAll(functionsTable, "id_prefix", ""); err != nil {
			return err
		}
		if _, err := tx.DeleteAll(librariesTable, "id_prefix", ""); err != nil {
			return err
		}
		tx.Commit()
		return nil
	})
	if err != nil {
		panic(errors.Wrap(err, "functions: failed to release library context"))
	}
	c.db = nil
	c.functions = 0
	c.libraries = 0
}
