// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package container_test

import (
	"testing"

	"github.com/edgebench/sigbench/internal/container"
	"github.com/stretchr/testify/require"
)

func TestRingEviction(t *testing.T) {
	r := container.NewRing[int](3)
	require.Empty(t, r.Snapshot())

	r.Push(1)
	r.Push(2)
	require.Equal(t, []int{1, 2}, r.Snapshot())

	r.Push(3)
	r.Push(4)
	r.Push(5)
	require.Equal(t, []int{3, 4, 5}, r.Snapshot())
	require.Equal(t, 3, r.Len())
	require.Equal(t, 3, r.Cap())
}

func TestRingZeroCapacity(t *testing.T) {
	r := container.NewRing[string](0)
	r.Push("dropped")
	require.Empty(t, r.Snapshot())
	require.Equal(t, 0, r.Len())
}

func TestSyncMapInsert(t *testing.T) {
	m := container.NewSyncMap[string, int]()
	require.True(t, m.Insert("a", 1))
	require.False(t, m.Insert("a", 2))

	v, ok := m.Load("a")
	require.True(t, ok)
	require.Equal(t, 1, v)

	m.Delete("a")
	_, ok = m.Load("a")
	require.False(t, ok)
	require.Equal(t, 0, m.Len())
}
