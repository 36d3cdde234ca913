package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortPairsInt(t *testing.T) {
	pairs := []Pair[int, int]{
		{V1: 3, V2: 10},
		{V1: 1, V2: 20},
		{V1: 1, V2: 5},
		{V1: 2, V2: 15},
	}
	SortPairs(pairs)
	assert.Equal(t, []Pair[int, int]{
		{V1: 1, V2: 5},
		{V1: 1, V2: 20},
		{V1: 2, V2: 15},
		{V1: 3, V2: 10},
	}, pairs)
}

func TestMakeSortedPair(t *testing.T) {
	assert.Equal(t, Pair[NodeId, NodeId]{"a", "b"}, MakeSortedPair[NodeId]("b", "a"))
	assert.Equal(t, Pair[NodeId, NodeId]{"a", "b"}, MakeSortedPair[NodeId]("a", "b"))
}
