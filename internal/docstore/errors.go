package docstore

import (
	"errors"
	"io/fs"
	"syscall"
)

var (
	// ErrNoRoot is returned by New when no root directory is supplied.
	ErrNoRoot = errors.New("docstore: root directory is required")

	// ErrOutsideRoot is returned when a relative path resolves outside the store root.
	ErrOutsideRoot = errors.New("docstore: path escapes store root")

	// ErrRootTarget is returned when RemoveTree is pointed at the store root
	// itself, whatever spelling of the path resolved there.
	ErrRootTarget = errors.New("docstore: refusing to remove store root")

	// ErrPathTooDeep is returned when provisioning or removal exceeds the configured depth.
	ErrPathTooDeep = errors.New("docstore: path too deep")

	// ErrUnsupportedValue is returned when a value cannot be encoded for the
	// target path: a raw document given something other than []byte or
	// string, or a value its codec rejects.
	ErrUnsupportedValue = errors.New("docstore: unsupported value")
)

// Kind classifies an error returned by the store. Filesystem errors are never
// rewrapped into a separate taxonomy; Kind only inspects them.
type Kind int

const (
	KindOther Kind = iota
	KindNotFound
	KindAlreadyExists
	KindNotADirectory
	KindIsADirectory
	KindNotEmpty
	KindOutsideRoot
	KindPathTooDeep
	KindInvalidValue
	KindRootTarget
)

var kindNames = map[Kind]string{
	KindOther:         "other",
	KindNotFound:      "not_found",
	KindAlreadyExists: "already_exists",
	KindNotADirectory: "not_a_directory",
	KindIsADirectory:  "is_a_directory",
	KindNotEmpty:      "not_empty",
	KindOutsideRoot:   "outside_root",
	KindPathTooDeep:   "path_too_deep",
	KindInvalidValue:  "invalid_value",
	KindRootTarget:    "root_target",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// KindOf reports the Kind of err. A nil error is KindOther.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindOther
	case errors.Is(err, ErrOutsideRoot):
		return KindOutsideRoot
	case errors.Is(err, ErrRootTarget):
		return KindRootTarget
	case errors.Is(err, ErrPathTooDeep):
		return KindPathTooDeep
	case errors.Is(err, ErrUnsupportedValue):
		return KindInvalidValue
	case errors.Is(err, fs.ErrNotExist):
		return KindNotFound
	case errors.Is(err, syscall.ENOTEMPTY):
		return KindNotEmpty
	case errors.Is(err, fs.ErrExist):
		return KindAlreadyExists
	case errors.Is(err, syscall.ENOTDIR):
		return KindNotADirectory
	case errors.Is(err, syscall.EISDIR):
		return KindIsADirectory
	}
	return KindOther
}

// IsNotFound reports whether err means the path does not exist.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}
