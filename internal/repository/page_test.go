package repository

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPage(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	require.Equal(t, []int{1, 2}, Page(items, 0, 2))
	require.Equal(t, []int{4, 5}, Page(items, 3, 10))
	require.Equal(t, []int{1, 2, 3, 4, 5}, Page(items, -1, 0))
	require.Empty(t, Page(items, 5, 2))
}
