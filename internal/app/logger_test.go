package app

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerJSONIncludesEnv(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{AppEnv: "staging", LogFormat: "json"}, &buf)

	logger.Debug("movement recorded", "product_id", 7)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "movement recorded", line["msg"])
	assert.Equal(t, "staging", line["env"])
	assert.EqualValues(t, 7, line["product_id"])
	assert.Contains(t, line, "source")
}

func TestNewLoggerProductionDropsDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{AppEnv: "production", LogFormat: "json"}, &buf)

	logger.Debug("noise")
	assert.Zero(t, buf.Len())

	logger.Info("order created")
	assert.Contains(t, buf.String(), "order created")
}

func TestNewLoggerTextByDefault(t *testing.T) {
	var buf bytes.Buffer
	newLogger(nil, &buf).Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}
