package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rememberme/rememberme/internal/config"
)

func TestSetupWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TelemetryConfig{ServiceName: "rememberme"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
