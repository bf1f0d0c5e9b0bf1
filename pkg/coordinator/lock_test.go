//go:build unix

package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wuxler/chanidx/pkg/errdefs"
)

func TestAcquireChannelLockRoundtrip(t *testing.T) {
	dir := t.TempDir()
	lock, err := acquireChannelLock(context.Background(), dir, time.Second)
	require.NoError(t, err)
	require.NoError(t, lock.Release())
}

func TestAcquireChannelLockTimesOutWhenHeld(t *testing.T) {
	dir := t.TempDir()
	holder, err := acquireChannelLock(context.Background(), dir, time.Second)
	require.NoError(t, err)
	defer holder.Release() //nolint:errcheck

	_, err = acquireChannelLock(context.Background(), dir, 300*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, errdefs.ErrChannelBusy)
}

func TestAcquireChannelLockRespectsContextCancellation(t *testing.T) {
	dir := t.TempDir()
	holder, err := acquireChannelLock(context.Background(), dir, time.Second)
	require.NoError(t, err)
	defer holder.Release() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = acquireChannelLock(ctx, dir, 5*time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}
