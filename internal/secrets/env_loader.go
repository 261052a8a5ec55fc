package secrets

import "os"

// EnvLoader returns a Loader that reads the specified environment variables.
// Missing variables are silently omitted from the result map.
func EnvLoader(keys ...string) Loader {
	return func() (map[string]string, error) {
		vals := make(map[string]string, len(keys))
		for _, k := range keys {
			if v := os.Getenv(k); v != "" {
				vals[k] = v
			}
		}
		return vals, nil
	}
}

// CoreSecretKeys lists the environment variable names this module treats as
// secrets: the LLM/embedding provider API keys, the LiteLLM proxy master
// key, and the Postgres DSN. NewCoreVault loads exactly these.
var CoreSecretKeys = []string{
	"LLM_API_KEY",
	"EMBEDDING_API_KEY",
	"LITELLM_MASTER_KEY",
	"PG_DSN",
}

// NewCoreVault creates a Vault preloaded from CoreSecretKeys, the set of
// secret-bearing environment variables this module recognizes. Reload()
// picks up rotated values without a process restart.
func NewCoreVault() (*Vault, error) {
	return NewVault(EnvLoader(CoreSecretKeys...))
}
