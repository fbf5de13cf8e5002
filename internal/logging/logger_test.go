package logging

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNew_Level(t *testing.T) {
	tests := []struct {
		name     string
		env      string
		verbose  bool
		expected logrus.Level
	}{
		{name: "default", env: "", expected: logrus.InfoLevel},
		{name: "from env", env: "warn", expected: logrus.WarnLevel},
		{name: "invalid env", env: "loud", expected: logrus.InfoLevel},
		{name: "verbose wins", env: "error", verbose: true, expected: logrus.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvLevel, tt.env)
			log := New(&bytes.Buffer{}, tt.verbose)
			assert.Equal(t, tt.expected, log.GetLevel())
		})
	}
}

func TestOrDiscard(t *testing.T) {
	assert.NotNil(t, OrDiscard(nil))

	var buf bytes.Buffer
	log := New(&buf, false)
	assert.Same(t, log, OrDiscard(log))
}
