package logtrace

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"ERROR", zerolog.ErrorLevel},
		{" warn ", zerolog.WarnLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestInitLoggerWithWriter(t *testing.T) {
	saved := log.Logger
	t.Cleanup(func() { log.Logger = saved })

	var buf bytes.Buffer
	InitLoggerWithWriter(&buf, "warn")
	log.Info().Msg("dropped")
	log.Warn().Msg("kept")
	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
}

func TestRequestID(t *testing.T) {
	assert.Empty(t, RequestIdFromContext(context.Background()))
	assert.Empty(t, RequestIdFromContext(nil))

	ctx := WithRequestID(context.Background(), "abc")
	assert.Equal(t, "abc", RequestIdFromContext(ctx))

	ctx = WithRequestID(context.Background(), "")
	id, err := uuid.Parse(RequestIdFromContext(ctx))
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
}
