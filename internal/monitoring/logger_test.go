package monitoring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetLogger(t *testing.T) {
	orig := Logf
	defer func() { Logf = orig }()

	var got []string
	SetLogger(func(format string, v ...interface{}) {
		got = append(got, fmt.Sprintf(format, v...))
	})
	Logf("marker %s failed", "evt-1")
	assert.Equal(t, []string{"marker evt-1 failed"}, got)

	SetLogger(nil)
	Logf("dropped")
	assert.Len(t, got, 1)
}
