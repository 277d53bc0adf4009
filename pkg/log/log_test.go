package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initJSON(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	Init(Config{Level: DebugLevel, JSONOutput: true, Output: &buf})
	t.Cleanup(func() { Init(Config{Level: InfoLevel, JSONOutput: true, Output: &bytes.Buffer{}}) })
	return &buf
}

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestWithComponentTagsEveryLine(t *testing.T) {
	buf := initJSON(t)

	l := WithComponent("consensus")
	l.Info().Msg("proposal registered")

	entry := lastLine(t, buf)
	assert.Equal(t, "consensus", entry["component"])
	assert.Equal(t, "proposal registered", entry["message"])
	assert.Contains(t, entry, "time")
}

func TestScopedCarriesAllThreeDimensions(t *testing.T) {
	buf := initJSON(t)

	l := Scoped("swarm-1", "agent-7", "task-42")
	l.Debug().Msg("task assigned")

	entry := lastLine(t, buf)
	assert.Equal(t, "swarm-1", entry["swarm_id"])
	assert.Equal(t, "agent-7", entry["agent_id"])
	assert.Equal(t, "task-42", entry["task_id"])
}

func TestScopedOmitsEmptyIDs(t *testing.T) {
	buf := initJSON(t)

	l := Scoped("swarm-1", "", "")
	l.Warn().Msg("leader election forced")

	entry := lastLine(t, buf)
	assert.Equal(t, "swarm-1", entry["swarm_id"])
	assert.NotContains(t, entry, "agent_id")
	assert.NotContains(t, entry, "task_id")
}

func TestLevelParsingFallsBackToInfo(t *testing.T) {
	cases := []struct {
		in   Level
		want zerolog.Level
	}{
		{DebugLevel, zerolog.DebugLevel},
		{InfoLevel, zerolog.InfoLevel},
		{WarnLevel, zerolog.WarnLevel},
		{ErrorLevel, zerolog.ErrorLevel},
		{Level("verbose"), zerolog.InfoLevel},
		{Level(""), zerolog.InfoLevel},
	}
	for _, tc := range cases {
		assert.Equalf(t, tc.want, tc.in.zerologLevel(), "level %q", tc.in)
	}
}

func TestInitLevelSuppressesQuieterLines(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: WarnLevel, JSONOutput: true, Output: &buf})
	t.Cleanup(func() { Init(Config{Level: InfoLevel, JSONOutput: true, Output: &bytes.Buffer{}}) })

	l := WithComponent("bus")
	l.Debug().Msg("dropped")
	l.Warn().Msg("kept")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
}
