package main

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/vx-labs/lazyfree/object"
)

func TestBuildValue(t *testing.T) {
	for _, kind := range []string{"string", "list", "set", "hash", "zset", "stream"} {
		t.Run(kind, func(t *testing.T) {
			v, err := buildValue(kind, 500)
			require.NoError(t, err)
			require.Equal(t, kind, v.Type().String())
		})
	}
	_, err := buildValue("bitmap", 1)
	require.Equal(t, ErrUnknownKind, errors.Cause(err))
}

func TestBuildValueEffort(t *testing.T) {
	v, err := buildValue("stream", 1000)
	require.NoError(t, err)
	// 10 macro nodes, one group with 500 pending entries.
	require.Equal(t, uint64(10+1*(1+500)), object.New(v).FreeEffort("k", 0))
}
