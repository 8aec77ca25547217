package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	pretty, err := NewLogger(true)
	require.NoError(t, err)
	require.NotNil(t, pretty)

	prod, err := NewLogger(false)
	require.NoError(t, err)
	require.NotNil(t, prod)
}
