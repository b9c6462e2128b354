package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	s := String()
	assert.True(t, strings.HasPrefix(s, "sitepipe "+Version))
	assert.Contains(t, s, GitCommit)
	assert.Contains(t, s, BuildTime)
}
