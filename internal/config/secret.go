package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"
)

// Secret-bearing settings accept two reference forms besides literal values:
//
//	${NAME}                 expands an environment variable; unset is an error
//	secretref:env:NAME      the whole value is read from NAME
//	secretref:file:/path    the whole value is read from a file, trimmed
//
// "$$" escapes a literal dollar sign.
const secretRefPrefix = "secretref:"

var (
	errSecretRef = errors.New("config: bad secret reference")

	envRefPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)
)

func (c *Config) resolveSecrets() error {
	fields := []struct {
		key string
		val *string
	}{
		{"auth.jwt.secret", &c.Auth.JWT.Secret},
		{"dependencies.redis.password", &c.Dependencies.Redis.Password},
		{"dependencies.postgres.dsn", &c.Dependencies.Postgres.DSN},
		{"dependencies.elasticsearch.api_key", &c.Dependencies.Elasticsearch.APIKey},
	}
	for _, f := range fields {
		resolved, err := resolveSecret(*f.val)
		if err != nil {
			return fmt.Errorf("%s: %w", f.key, err)
		}
		*f.val = resolved
	}

	for i := range c.Auth.APIKeys {
		resolved, err := resolveSecret(c.Auth.APIKeys[i].Key)
		if err != nil {
			return fmt.Errorf("auth.api_keys[%d]: %w", i, err)
		}
		c.Auth.APIKeys[i].Key = resolved
	}
	return nil
}

func resolveSecret(value string) (string, error) {
	expanded, err := expandEnvStrict(value)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(expanded, secretRefPrefix) {
		return expanded, nil
	}

	provider, ref, ok := strings.Cut(strings.TrimPrefix(expanded, secretRefPrefix), ":")
	if !ok || ref == "" {
		return "", fmt.Errorf("%w: want secretref:<env|file>:<ref>", errSecretRef)
	}
	switch provider {
	case "env":
		v, ok := os.LookupEnv(ref)
		if !ok {
			return "", fmt.Errorf("%w: environment variable %s is not set", errSecretRef, ref)
		}
		return v, nil
	case "file":
		data, err := os.ReadFile(ref)
		if err != nil {
			return "", fmt.Errorf("%w: %w", errSecretRef, err)
		}
		return strings.TrimSpace(string(data)), nil
	default:
		return "", fmt.Errorf("%w: unknown provider %q", errSecretRef, provider)
	}
}

func expandEnvStrict(s string) (string, error) {
	const dollar = "\x00dollar\x00"
	s = strings.ReplaceAll(s, "$$", dollar)

	var missing []string
	for _, m := range envRefPattern.FindAllStringSubmatch(s, -1) {
		if _, ok := os.LookupEnv(m[1]); !ok && !slices.Contains(missing, m[1]) {
			missing = append(missing, m[1])
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return "", fmt.Errorf("%w: missing environment variables %s", errSecretRef, strings.Join(missing, ", "))
	}

	return strings.ReplaceAll(os.ExpandEnv(s), dollar, "$"), nil
}
