package app

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger("warn", "json", &buf)
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "v", entry["k"])
	assert.Equal(t, "stagecheck", entry["app"])

	buf.Reset()
	logger, err = newLogger("DEBUG", "text", &buf)
	require.NoError(t, err)
	logger.Debug("visible")
	assert.Contains(t, buf.String(), "app=stagecheck")
}

func TestNewLogger_RejectsUnknownSettings(t *testing.T) {
	_, err := newLogger("bogus", "text", &bytes.Buffer{})
	assert.ErrorContains(t, err, "invalid log level 'bogus'")

	_, err = newLogger("info", "xml", &bytes.Buffer{})
	assert.ErrorContains(t, err, "invalid log format 'xml'")
}
