package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSQLite(t *testing.T) {
	conn, err := New("sqlite", ":memory:", 1, 1, "1m")
	require.NoError(t, err)
	defer conn.Close()

	var n int
	require.NoError(t, conn.Get(&n, conn.Rebind("SELECT ? + 1"), 41))
	assert.Equal(t, 42, n)
}

func TestNewRejectsBadIdleTime(t *testing.T) {
	_, err := New("sqlite", ":memory:", 1, 1, "soon")
	assert.Error(t, err)
}
