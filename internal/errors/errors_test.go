package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReloadErrorWrapsCause(t *testing.T) {
	cause := fmt.Errorf("permission denied")
	err := NewReloadError("parse", "/work/Lib/Lib.csproj", cause)

	assert.Contains(t, err.Error(), "parse")
	assert.Contains(t, err.Error(), "/work/Lib/Lib.csproj")
	assert.ErrorIs(t, err, cause)

	var re *ReloadError
	require.ErrorAs(t, error(err), &re)
	assert.Equal(t, "/work/Lib/Lib.csproj", re.DescriptorPath)
}

func TestUnitErrorWrapsCause(t *testing.T) {
	cause := errors.New("short read")
	err := NewUnitError("read", "/work/Lib/Foo.cs", cause)

	assert.Contains(t, err.Error(), "/work/Lib/Foo.cs")
	assert.ErrorIs(t, err, cause)
}

func TestConfigError(t *testing.T) {
	cause := errors.New("must be positive")
	err := NewConfigError("watch.debounce_ms", "-5", cause)

	assert.Contains(t, err.Error(), "watch.debounce_ms")
	assert.ErrorIs(t, err, cause)
}
