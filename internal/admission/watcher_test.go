package admission

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingReloader struct{ n atomic.Int32 }

func (c *countingReloader) Reload(context.Context) error {
	c.n.Add(1)
	return nil
}

func TestWatcher_ReloadsOnPolicyChange(t *testing.T) {
	dir := t.TempDir()
	target := &countingReloader{}
	reloaded := make(chan error, 4)

	w, err := NewWatcher(dir, target, func(err error) { reloaded <- err })
	require.NoError(t, err)
	w.delay = 20 * time.Millisecond
	w.Start(context.Background())
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "limits.rego"), []byte(capabilityLimitPolicy), 0644))

	select {
	case err := <-reloaded:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("policy change did not trigger a reload")
	}
	assert.GreaterOrEqual(t, target.n.Load(), int32(1))
}

func TestWatcher_MissingDirectory(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "absent"), &countingReloader{}, nil)
	assert.Error(t, err)
}

func TestIsPolicyFile(t *testing.T) {
	assert.True(t, isPolicyFile("/p/limits.rego"))
	assert.False(t, isPolicyFile("/p/limits_test.rego"))
	assert.False(t, isPolicyFile("/p/README.md"))
}
