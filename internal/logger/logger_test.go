package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"bogus", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			lg, err := New(Config{Level: tt.level, Console: true})
			require.NoError(t, err)
			defer lg.Close()
			assert.Equal(t, tt.want, lg.Zerolog().GetLevel())
		})
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "gatekit.log")

	lg, err := New(Config{Level: "info", File: path})
	require.NoError(t, err)

	zl := lg.Zerolog()
	zl.Info().Str("component", "test").Msg("hello")
	require.NoError(t, lg.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"hello"`)
	assert.Contains(t, string(raw), `"component":"test"`)
}
