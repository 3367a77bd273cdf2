package script

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCall(t *testing.T) {
	expr, err := Call(Attached(), RefArg{Generation: "g1", ID: 4})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(expr, "((ref) =>"))
	assert.True(t, strings.HasSuffix(expr, `)({"generation":"g1","id":4})`))

	expr, err = Call("() => 1", nil)
	require.NoError(t, err)
	assert.Equal(t, "(() => 1)()", expr)

	_, err = Call("(x) => x", make(chan int))
	assert.Error(t, err)
}

func TestElementPath(t *testing.T) {
	assert.Equal(t, "window.__browserAgentDOM.elements[12]", ElementPath(12))
}

func TestScriptsShareRegistry(t *testing.T) {
	for name, src := range map[string]string{
		"snapshot": Snapshot(),
		"resolve":  Resolve(),
		"attached": Attached(),
	} {
		assert.Contains(t, src, "window."+Registry, name)
	}
}
