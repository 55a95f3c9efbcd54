package logger

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNewParsesLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, New("debug").GetLevel())
	assert.Equal(t, logrus.InfoLevel, New("nonsense").GetLevel())
}

func TestComponentField(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithOutput("info", &buf)
	l.SetFormatter(&logrus.JSONFormatter{})

	Component(l, "store").Info("hello")

	assert.Contains(t, buf.String(), `"component":"store"`)
}
