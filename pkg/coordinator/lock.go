//go:build unix

package coordinator

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/wuxler/chanidx/pkg/errdefs"
)

const lockFileName = ".lock"

// channelLock is a named advisory lock per channel, acquired with a
// 900-second timeout as spec.md requires (note: intentionally 900s, not
// the considerably longer timeout the original implementation used).
type channelLock struct {
	f *os.File
}

// acquireChannelLock creates (or reuses) {channelRoot}/.lock and takes an
// exclusive advisory flock on it, polling until acquired or ctx/timeout
// elapses.
func acquireChannelLock(ctx context.Context, channelRoot string, timeout time.Duration) (*channelLock, error) {
	path := fmtLockPath(channelRoot)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file %q: %w", path, err)
	}

	deadline := time.Now().Add(timeout)
	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return &channelLock{f: f}, nil
		}
		if time.Now().After(deadline) {
			f.Close()
			return nil, errdefs.NewE(errdefs.ErrChannelBusy, fmt.Errorf("could not acquire %q within %s", path, timeout))
		}
		select {
		case <-ctx.Done():
			f.Close()
			return nil, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}

func (l *channelLock) Release() error {
	defer l.f.Close()
	return unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
}

func fmtLockPath(channelRoot string) string {
	return channelRoot + "/" + lockFileName
}
