package functions

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func library(name string, functions ...string) *Library {
	lib := &Library{Name: name, Engine: "LUA"}
	for _, fn := range functions {
		lib.Functions = append(lib.Functions, &Function{Name: fn})
	}
	return lib
}

func TestLoad(t *testing.T) {
	ctx := NewLibraryContext()
	require.NoError(t, ctx.Load(library("lib1", "f1", "f2"), false))
	require.NoError(t, ctx.Load(library("lib2", "f3"), false))
	require.Equal(t, 3, ctx.FunctionCount())
	require.Equal(t, 2, ctx.LibraryCount())

	fn, ok := ctx.Function("f2")
	require.True(t, ok)
	require.Equal(t, "lib1", fn.Library)

	fns, err := ctx.Library("lib1")
	require.NoError(t, err)
	require.Len(t, fns, 2)
}

func TestLoadConflicts(t *testing.T) {
	ctx := NewLibraryContext()
	require.NoError(t, ctx.Load(library("lib1", "f1"), false))

	err := ctx.Load(library("lib1", "f9"), false)
	require.Equal(t, ErrLibraryExists, errors.Cause(err))

	err = ctx.Load(library("lib2", "f1"), false)
	require.Equal(t, ErrFunctionExists, errors.Cause(err))

	err = ctx.Load(library("lib3", "g", "g"), false)
	require.Equal(t, ErrFunctionExists, errors.Cause(err))

	require.Equal(t, 1, ctx.FunctionCount())
	require.Equal(t, 1, ctx.LibraryCount())
}

func TestLoadReplace(t *testing.T) {
	ctx := NewLibraryContext()
	require.NoError(t, ctx.Load(library("lib1", "f1", "f2"), false))
	require.NoError(t, ctx.Load(library("lib1", "f3"), true))
	require.Equal(t, 1, ctx.FunctionCount())
	_, ok := ctx.Function("f1")
	require.False(t, ok)
}

func TestDelete(t *testing.T) {
	ctx := NewLibraryContext()
	require.NoError(t, ctx.Load(library("lib1", "f1", "f2"), false))
	require.NoError(t, ctx.Delete("lib1"))
	require.Equal(t, 0, ctx.FunctionCount())
	require.Equal(t, ErrLibraryNotFound, errors.Cause(ctx.Delete("lib1")))
}

func TestRelease(t *testing.T) {
	ctx := NewLibraryContext()
	for i := 0; i < 10; i++ {
		require.NoError(t, ctx.Load(library(fmt.Sprintf("lib%d", i), fmt.Sprintf("f%d", i)), false))
	}
	ctx.Release()
	require.Equal(t, 0, ctx.FunctionCount())
}

func TestReleasedContext(t *testing.T) {
	ctx := NewLibraryContext()
	require.NoError(t, ctx.Load(library("lib1", "f1"), false))
	ctx.Release()

	require.Equal(t, ErrReleased, errors.Cause(ctx.Load(library("lib2", "f2"), false)))
	_, ok := ctx.Function("f1")
	require.False(t, ok)
	require.Panics(t, ctx.Release)
}
