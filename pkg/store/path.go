package store

import (
	"strings"

	"github.com/ajitpratap0/hdfmast/pkg/errors"
)

// Separator joins path segments.
const Separator = "/"

// JoinPath builds a table path from its segments.
func JoinPath(segments ...string) string {
	return strings.Join(segments, Separator)
}

// SplitPath validates a path and returns its segments. A single leading
// separator is accepted, so "/1/accts/v1" and "1/accts/v1" name the same node.
func SplitPath(path string) ([]string, error) {
	trimmed := strings.TrimPrefix(path, Separator)
	if trimmed == "" {
		return nil, errors.Wrap(ErrInvalidPath, errors.ErrorTypeValidation, "empty path").
			WithDetail("path", path)
	}
	segments := strings.Split(trimmed, Separator)
	for _, seg := range segments {
		if err := validateSegment(seg); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeValidation, "invalid path").
				WithDetail("path", path)
		}
	}
	return segments, nil
}

// CleanPath validates path and returns its canonical form, without a leading
// separator.
func CleanPath(path string) (string, error) {
	segments, err := SplitPath(path)
	if err != nil {
		return "", err
	}
	return JoinPath(segments...), nil
}

func validateSegment(seg string) error {
	if seg == "" {
		return errors.Wrap(ErrInvalidPath, errors.ErrorTypeValidation, "empty path segment")
	}
	if strings.IndexByte(seg, 0) >= 0 {
		return errors.Wrap(ErrInvalidPath, errors.ErrorTypeValidation, "path segment contains NUL").
			WithDetail("segment", seg)
	}
	return nil
}
