package logging_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/loan-ledger/config"
	"github.com/warp/loan-ledger/logging"
)

func TestNew_JSONWithFields(t *testing.T) {
	var buf bytes.Buffer
	log := logging.NewWithOutput(config.LogConfig{Level: "debug", Format: "json"}, &buf)

	log.WithField("loan_id", "loan-1").Debug("payment recorded")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "payment recorded", entry["msg"])
	assert.Equal(t, "loan-1", entry["loan_id"])
	assert.Equal(t, "debug", entry["level"])
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	log := logging.NewWithOutput(config.LogConfig{Level: "chatty"}, &bytes.Buffer{})
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	log := logging.NewWithOutput(config.LogConfig{Level: "info", Format: "text"}, &buf)
	log.Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}
