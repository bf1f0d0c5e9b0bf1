package coordinator

import (
	"path/filepath"
	"runtime"
	"time"
)

// windowsWorkerCap is the maximum extractor pool size on the Windows
// family, per spec.md's §5 concurrency model.
const windowsWorkerCap = 48

// lockTimeout is the channel-lock acquisition timeout. spec.md fixes this
// at 900 seconds, deliberately shorter than the 3-hour constant the
// original implementation used.
const lockTimeout = 900 * time.Second

// Config mirrors the coordinator's configuration surface (§6): channel
// root, requested subdirs, feature toggles and resource limits.
type Config struct {
	ChannelRoot string
	ChannelName string
	Subdirs     []string

	SaveFSState      bool
	WriteCurrent     bool
	WriteShards      bool
	WriteRunExports  bool
	WriteSummary     bool
	WriteSyndication bool

	CacheDir    string
	WorkerCap   int
	LockTimeout time.Duration
	PinsByName  map[string][]string
	PatchScript string
	BaseURL     string
}

// NewConfig returns a Config with the documented defaults applied.
func NewConfig(channelRoot string) Config {
	return Config{
		ChannelRoot:  channelRoot,
		ChannelName:  filepath.Base(channelRoot),
		SaveFSState:  true,
		WriteCurrent: true,
		WorkerCap:    workerCap(),
		LockTimeout:  lockTimeout,
	}
}

// workerCap returns min(cpu_count, cap), capping at windowsWorkerCap on
// the Windows family.
func workerCap() int {
	n := runtime.NumCPU()
	if runtime.GOOS == "windows" && n > windowsWorkerCap {
		return windowsWorkerCap
	}
	return n
}
