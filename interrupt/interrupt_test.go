package interrupt

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelText(t *testing.T) {
	assert.Equal(t, "released", Released.String())
	assert.Equal(t, "asserted", Asserted.String())

	data, err := json.Marshal(map[string]Level{"line": Asserted})
	require.NoError(t, err)
	assert.JSONEq(t, `{"line":"asserted"}`, string(data))
}
