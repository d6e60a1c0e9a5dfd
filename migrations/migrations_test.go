package migrations

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUpDown(t *testing.T) {
	t.Parallel()

	up, err := Up()
	require.NoError(t, err)
	require.Len(t, up, 2)
	require.Contains(t, up[0], "CREATE TABLE IF NOT EXISTS content_records")
	require.Contains(t, up[1], "ADD COLUMN IF NOT EXISTS version")

	down, err := Down()
	require.NoError(t, err)
	require.Len(t, down, 2)
	require.Contains(t, down[0], "DROP COLUMN IF EXISTS version")
	require.Contains(t, down[1], "DROP TABLE IF EXISTS content_records")
}
