package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewAcceptsKnownLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "WARN", " error "} {
		log, err := New(level)
		require.NoError(t, err, level)
		require.NotNil(t, log)
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New("chatty")
	require.Error(t, err)
	require.Contains(t, err.Error(), `invalid log level "chatty"`)

	_, err = NewConsole("chatty")
	require.Error(t, err)
}
