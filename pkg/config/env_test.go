package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEnvironment(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", EnvDevelopment},
		{"dev", EnvDevelopment},
		{"Development", EnvDevelopment},
		{"ci", EnvTest},
		{" STAGE ", EnvStaging},
		{"staging", EnvStaging},
		{"prod", EnvProduction},
		{"Production", EnvProduction},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeEnvironment(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := NormalizeEnvironment("qa-eu")
	assert.ErrorContains(t, err, `unknown environment "qa-eu"`)
}

func TestIsProductionLike(t *testing.T) {
	assert.True(t, IsProductionLike(EnvProduction))
	assert.True(t, IsProductionLike(EnvStaging))
	assert.False(t, IsProductionLike(EnvDevelopment))
	assert.False(t, IsProductionLike(EnvTest))
	assert.False(t, IsProductionLike("prod"), "expects a normalized name")
}

func TestLoad_RejectsUnknownEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("PHARMACY_SERVER_ENVIRONMENT", "sandbox")

	_, err := Load("order-service")
	assert.ErrorContains(t, err, "unknown environment")
}

func TestLoad_NormalizesAlias(t *testing.T) {
	clearEnv(t)
	t.Setenv("PHARMACY_SERVER_ENVIRONMENT", "PROD")

	cfg, err := Load("order-service")
	require.NoError(t, err)
	assert.Equal(t, EnvProduction, cfg.Server.Environment)
}
