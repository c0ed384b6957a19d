package outbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchUnpublishedQuery(t *testing.T) {
	query, args, err := fetchUnpublishedQuery(20, 10, false)
	require.NoError(t, err)

	assert.Contains(t, query, "WHERE published_at IS NULL AND attempts < $1 ORDER BY created_at ASC LIMIT 20")
	assert.NotContains(t, query, "SKIP LOCKED")
	assert.Equal(t, []interface{}{10}, args)

	query, _, err = fetchUnpublishedQuery(20, 10, true)
	require.NoError(t, err)
	assert.Contains(t, query, "LIMIT 20 FOR UPDATE SKIP LOCKED")
}
