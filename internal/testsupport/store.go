package testsupport

import (
	"context"
	"testing"

	"papercast/internal/config"
	"papercast/internal/metadata"
)

// MustOpenMetadata opens the configured metadata store and registers cleanup.
func MustOpenMetadata(t testing.TB, cfg *config.Config) *metadata.Store {
	t.Helper()

	store, err := metadata.OpenFromConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("metadata.OpenFromConfig: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
