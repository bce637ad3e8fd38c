package config

import (
	"context"
	"fmt"

	"github.com/viant/scy/cred/secret"
)

// ResolveRedisDSN resolves cfg.Redis.DSNResource through viant/scy's secret
// service, so a Redis connection string never needs to sit in plaintext
// TOML. DSNResource names a secret resource (e.g. a URL understood by
// scy's resource locators); the decrypted payload is used verbatim as the
// go-redis DSN.
func ResolveRedisDSN(ctx context.Context, cfg *RedisConfig) (string, error) {
	if cfg.DSNResource == "" {
		return "", fmt.Errorf("redis.dsn_resource is empty")
	}
	service := secret.New()
	generic, err := service.GetCredentials(ctx, cfg.DSNResource)
	if err != nil {
		return "", fmt.Errorf("resolve redis dsn resource %q: %w", cfg.DSNResource, err)
	}
	if generic.Generic == nil || generic.Generic.Data == "" {
		return "", fmt.Errorf("redis dsn resource %q did not resolve to a generic secret", cfg.DSNResource)
	}
	return generic.Generic.Data, nil
}
