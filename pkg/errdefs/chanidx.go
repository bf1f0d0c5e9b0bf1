package errdefs

import "errors"

// Error kinds surfaced while reading archives, maintaining the metadata
// cache and emitting channel documents.
var (
	// ErrCorruptArchive signals that an archive's framing could not be
	// parsed (bad magic, truncated header, bad member layout).
	ErrCorruptArchive = errors.New("corrupt archive")

	// ErrTruncated signals that a stream ended before every wanted member
	// was read.
	ErrTruncated = errors.New("truncated stream")

	// ErrMalformedJSON signals that a JSON member could not be decoded.
	ErrMalformedJSON = errors.New("malformed json")

	// ErrMalformedYAML signals that a recipe YAML document could not be
	// decoded.
	ErrMalformedYAML = errors.New("malformed yaml")

	// ErrMissingMember signals that a required archive member was absent.
	ErrMissingMember = errors.New("missing member")

	// ErrStoreConflict signals that a cache upsert raced with another
	// writer for the same key.
	ErrStoreConflict = errors.New("cache store conflict")

	// ErrIncompatiblePatchVersion signals that a patch_instructions.json
	// document declares a version this implementation cannot apply.
	ErrIncompatiblePatchVersion = errors.New("incompatible patch instructions version")

	// ErrChannelBusy signals that the channel lock could not be acquired
	// before its timeout elapsed.
	ErrChannelBusy = errors.New("channel busy")

	// ErrBadSubdirArgument signals that a caller-supplied subdir name is
	// not one of the configured subdirectories.
	ErrBadSubdirArgument = errors.New("bad subdir argument")

	// ErrUnknownAlgorithm signals that a digest algorithm name is not
	// supported.
	ErrUnknownAlgorithm = errors.New("unknown digest algorithm")

	// ErrIO signals a plain I/O failure (open/read/seek) unrelated to
	// archive framing.
	ErrIO = errors.New("io error")
)
