package testutil

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/jbweber/homelab/roster/internal/datastore"
)

// SetupTestDatastore opens a migrated in-memory datastore named after the
// test. It is closed when the test ends.
func SetupTestDatastore(t *testing.T) *datastore.Datastore {
	t.Helper()

	ds, err := datastore.New(datastore.Options{
		Driver: "sqlite",
		DSN:    NewTestDSN(t.Name()),
		Logger: TestLogger(t),
	})
	if err != nil {
		t.Fatalf("Failed to open test datastore: %v", err)
	}

	t.Cleanup(func() {
		if err := ds.Close(); err != nil {
			t.Logf("Warning: failed to close test datastore: %v", err)
		}
	})

	return ds
}

// TestLogger returns a logger writing through t, at warn level and above.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t, zaptest.Level(zap.WarnLevel))
}
