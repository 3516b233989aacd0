package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	accessKey  = "0123456789abcdef0123456789abcdef"
	refreshKey = "fedcba9876543210fedcba9876543210"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_KEY", accessKey)
	t.Setenv("REFRESH_TOKEN_KEY", refreshKey)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.True(t, cfg.Server.IsDevelopment())
	assert.Equal(t, TokenFormatPaseto, cfg.Auth.TokenFormat)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.AccessTokenDuration)
	assert.Equal(t, 30*24*time.Hour, cfg.Auth.RefreshTokenDuration)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.Server.TrustedOrigins)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Equal(t, "localhost:6379", cfg.Redis.Address())
	assert.False(t, cfg.Server.TrustProxyHeaders)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_KEY", accessKey)
	t.Setenv("REFRESH_TOKEN_KEY", refreshKey)
	t.Setenv("ACCESS_TOKEN_DURATION", "900")
	t.Setenv("REFRESH_TOKEN_DURATION", "48h")
	t.Setenv("CORS_ORIGIN", "https://a.example, https://b.example ,")
	t.Setenv("APP_ENV", "prod")
	t.Setenv("DB_AUTO_MIGRATE", "false")
	t.Setenv("TRUST_PROXY_HEADERS", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenDuration)
	assert.Equal(t, 48*time.Hour, cfg.Auth.RefreshTokenDuration)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.TrustedOrigins)
	assert.False(t, cfg.Server.IsDevelopment())
	assert.False(t, cfg.Database.AutoMigrate)
	assert.True(t, cfg.Server.TrustProxyHeaders)
}

func TestAuthConfigValidate(t *testing.T) {
	long := strings.Repeat("k", 48)

	tests := []struct {
		name    string
		cfg     AuthConfig
		wantErr string
	}{
		{
			name: "paseto ok",
			cfg:  AuthConfig{TokenFormat: TokenFormatPaseto, AccessTokenKey: []byte(accessKey), RefreshTokenKey: []byte(refreshKey), AccessTokenDuration: time.Hour, RefreshTokenDuration: time.Hour},
		},
		{
			name:    "paseto short key",
			cfg:     AuthConfig{TokenFormat: TokenFormatPaseto, AccessTokenKey: []byte("short"), RefreshTokenKey: []byte(refreshKey), AccessTokenDuration: time.Hour, RefreshTokenDuration: time.Hour},
			wantErr: "ACCESS_TOKEN_KEY",
		},
		{
			name:    "same keys",
			cfg:     AuthConfig{TokenFormat: TokenFormatPaseto, AccessTokenKey: []byte(accessKey), RefreshTokenKey: []byte(accessKey), AccessTokenDuration: time.Hour, RefreshTokenDuration: time.Hour},
			wantErr: "must differ",
		},
		{
			name: "jwt long keys",
			cfg:  AuthConfig{TokenFormat: TokenFormatJWT, AccessTokenKey: []byte(long), RefreshTokenKey: []byte(long + "x"), AccessTokenDuration: time.Hour, RefreshTokenDuration: time.Hour},
		},
		{
			name:    "jwt short refresh key",
			cfg:     AuthConfig{TokenFormat: TokenFormatJWT, AccessTokenKey: []byte(long), RefreshTokenKey: []byte("x"), AccessTokenDuration: time.Hour, RefreshTokenDuration: time.Hour},
			wantErr: "REFRESH_TOKEN_KEY",
		},
		{
			name:    "unknown format",
			cfg:     AuthConfig{TokenFormat: "saml"},
			wantErr: "unsupported",
		},
		{
			name:    "zero duration",
			cfg:     AuthConfig{TokenFormat: TokenFormatPaseto, AccessTokenKey: []byte(accessKey), RefreshTokenKey: []byte(refreshKey)},
			wantErr: "positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseConnectionString(t *testing.T) {
	c := DatabaseConfig{Host: "h", Port: "1", User: "u", Password: "p", DBName: "d", SSLMode: "disable"}
	assert.Equal(t, "host=h port=1 user=u password=p dbname=d sslmode=disable", c.ConnectionString())

	c.ChannelBinding = "require"
	assert.True(t, strings.HasSuffix(c.ConnectionString(), " channel_binding=require"))
}
