package config

import (
	"fmt"
	"strings"
)

// Environment constants
const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

var environmentAliases = map[string]string{
	"":            EnvDevelopment,
	"dev":         EnvDevelopment,
	"local":       EnvDevelopment,
	"development": EnvDevelopment,
	"test":        EnvTest,
	"testing":     EnvTest,
	"ci":          EnvTest,
	"stage":       EnvStaging,
	"staging":     EnvStaging,
	"prod":        EnvProduction,
	"production":  EnvProduction,
}

// NormalizeEnvironment maps an environment name or common alias to one of
// the Env constants. An empty value means development.
func NormalizeEnvironment(env string) (string, error) {
	if canonical, ok := environmentAliases[strings.ToLower(strings.TrimSpace(env))]; ok {
		return canonical, nil
	}
	return "", fmt.Errorf("unknown environment %q", env)
}

// IsProductionLike reports whether env requires explicit, non-default
// secrets and remote infrastructure.
func IsProductionLike(env string) bool {
	return env == EnvStaging || env == EnvProduction
}
