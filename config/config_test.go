package config

import (
	"errors"
	"testing"
)

func TestValidateRequiresJWTSecretInProduction(t *testing.T) {
	saved := AppConfig
	t.Cleanup(func() { AppConfig = saved })

	tests := []struct {
		env, secret string
		want        error
	}{
		{"production", "", ErrMissingJWTSecret},
		{"production", "s3cret", nil},
		{"development", "", nil},
	}
	for _, tt := range tests {
		AppConfig = Config{Env: tt.env, JWTSecret: tt.secret}
		if err := Validate(); !errors.Is(err, tt.want) {
			t.Errorf("env=%s secret=%q: Validate() = %v, want %v", tt.env, tt.secret, err, tt.want)
		}
	}
}
