package codec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBSONRoundTrip(t *testing.T) {
	c := NewBSON()
	in := map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  "echo",
		"params":  []interface{}{"Hello!"},
		"id":      "id-1",
	}

	b, err := c.Encode(in)
	require.NoError(t, err)
	require.True(t, len(b) >= 5)

	out, err := c.Decode(b)
	require.NoError(t, err)
	require.Equal(t, "echo", out["method"])
	require.Equal(t, "id-1", out["id"])
}

func TestJSONRoundTrip(t *testing.T) {
	c := NewJSON(nil)
	in := map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  "echo",
		"params":  []interface{}{"Hello!"},
	}

	b, err := c.Encode(in)
	require.NoError(t, err)

	out, err := c.Decode(b)
	require.NoError(t, err)
	require.Equal(t, "echo", out["method"])
}

func TestJSONKeyFn(t *testing.T) {
	c := NewJSON(func(s string) string { return strings.ToUpper(s) })

	out, err := c.Decode([]byte(`{"jsonrpc":"2.0","method":"echo","nested":{"a":1}}`))
	require.NoError(t, err)

	require.Contains(t, out, "METHOD")
	nested, ok := out["NESTED"].(map[string]interface{})
	require.True(t, ok)
	require.Contains(t, nested, "A")
}
