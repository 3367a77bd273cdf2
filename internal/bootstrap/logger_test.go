package bootstrap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"browser-agent/internal/config"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		app       config.AppConfig
		wantLevel zapcore.Level
		wantErr   bool
	}{
		{name: "production info", app: config.AppConfig{LogLevel: "info"}, wantLevel: zapcore.InfoLevel},
		{name: "debug flag", app: config.AppConfig{Debug: true, LogLevel: "debug"}, wantLevel: zapcore.DebugLevel},
		{name: "warn", app: config.AppConfig{LogLevel: "warn"}, wantLevel: zapcore.WarnLevel},
		{name: "unknown level", app: config.AppConfig{LogLevel: "loud"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := tt.app
			logger, err := newLogger(&config.Config{AppConfig: &app})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.wantLevel))
			assert.False(t, logger.Core().Enabled(tt.wantLevel-1))
		})
	}
}
