package browser

import (
	"testing"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoxCenter(t *testing.T) {
	x, y := Box{X: 10, Y: 20, Width: 100, Height: 50}.Center()
	assert.Equal(t, 60.0, x)
	assert.Equal(t, 45.0, y)
}

func TestEndpointURL(t *testing.T) {
	assert.Equal(t, "http://127.0.0.1:9222", EndpointURL("", 9222))
	assert.Equal(t, "http://localhost:9333", EndpointURL("localhost", 9333))
}

func TestBoxDecodesFromDOMRect(t *testing.T) {
	var b Box
	require.NoError(t, json.Unmarshal([]byte(`{"x":1.5,"y":2,"width":30,"height":40,"top":2}`), &b))
	assert.Equal(t, Box{X: 1.5, Y: 2, Width: 30, Height: 40}, b)
}
