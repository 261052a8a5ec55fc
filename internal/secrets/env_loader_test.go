package secrets_test

import (
	"testing"

	"github.com/cognee-core/engine/internal/secrets"
)

func TestEnvLoaderOmitsUnsetKeys(t *testing.T) {
	t.Setenv("SECRETS_TEST_KEY_A", "value-a")

	loader := secrets.EnvLoader("SECRETS_TEST_KEY_A", "SECRETS_TEST_KEY_B_UNSET")
	vals, err := loader()
	if err != nil {
		t.Fatal(err)
	}
	if vals["SECRETS_TEST_KEY_A"] != "value-a" {
		t.Fatalf("expected value-a, got %q", vals["SECRETS_TEST_KEY_A"])
	}
	if _, ok := vals["SECRETS_TEST_KEY_B_UNSET"]; ok {
		t.Fatal("expected unset key to be omitted")
	}
}

func TestNewCoreVaultLoadsRecognizedKeys(t *testing.T) {
	t.Setenv("LLM_API_KEY", "sk-core-test-key")

	v, err := secrets.NewCoreVault()
	if err != nil {
		t.Fatal(err)
	}
	if got := v.Get("LLM_API_KEY"); got != "sk-core-test-key" {
		t.Fatalf("expected sk-core-test-key, got %q", got)
	}
	if got := v.Get("EMBEDDING_API_KEY"); got != "" {
		t.Fatalf("expected empty for unset embedding key, got %q", got)
	}
}
