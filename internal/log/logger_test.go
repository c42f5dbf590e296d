package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWithWriter_JSONOutsideDev(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("prod", &buf)
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.DebugLevel) })

	log.Info().Str("room_id", "r1").Msg("room created")
	log.Debug().Msg("dropped")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "room created", entry["message"])
	assert.Equal(t, "r1", entry["room_id"])
	assert.Equal(t, "info", entry["level"])
	assert.Contains(t, entry, "time")
}

func TestInitWithWriter_ConsoleInDev(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("dev", &buf)

	log.Debug().Msg("visible")
	assert.Contains(t, buf.String(), "visible")
}
