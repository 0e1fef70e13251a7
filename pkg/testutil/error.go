package testutil

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertErrorIs verifies that err is non-nil and matches target anywhere in
// its chain.
func AssertErrorIs(t *testing.T, err error, target error) {
	require.Error(t, err)
	assert.True(t, errors.Is(err, target), "expected %v in chain of %v", target, err)
}
