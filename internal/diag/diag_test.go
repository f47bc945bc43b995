package diag

import (
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestMaskedEnvironment(t *testing.T) {
	env := []string{
		"REMOVEBG_API_KEY=abc123",
		"HOME=/root",
		"DB_PASSWORD=hunter2",
		"EMPTY=",
		"FRYER_SERVER__PORT=8080",
	}

	assert.Equal(t, []string{
		"DB_PASSWORD=********",
		"EMPTY=",
		"FRYER_SERVER__PORT=8080",
		"HOME=/root",
		"REMOVEBG_API_KEY=********",
	}, MaskedEnvironment(env))
}

func TestConfigureLogging(t *testing.T) {
	defer log.SetLevel(log.InfoLevel)
	defer log.SetFormatter(&log.TextFormatter{})

	assert.NoError(t, ConfigureLogging("debug", "json"))
	assert.Equal(t, log.DebugLevel, log.GetLevel())
	assert.IsType(t, &log.JSONFormatter{}, log.StandardLogger().Formatter)

	assert.Error(t, ConfigureLogging("loud", "text"))
	assert.Error(t, ConfigureLogging("info", "xml"))
}
