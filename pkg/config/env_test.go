package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEnvironment(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"development", EnvDevelopment},
		{"STAGING", EnvStaging},
		{" Production ", EnvProduction},
		{"", EnvDevelopment},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeEnvironment(tt.in), "input %q", tt.in)
	}
}

func TestIsProductionLike(t *testing.T) {
	assert.True(t, IsProductionLike("production"))
	assert.True(t, IsProductionLike("Staging"))
	assert.False(t, IsProductionLike("development"))
	assert.False(t, IsProductionLike(""))
}
