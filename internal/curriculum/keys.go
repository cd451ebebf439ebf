package curriculum

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"skillsphere/course-studio/internal/domain"
)

// ErrMalformedKey is returned for strings that are not positional upload keys.
var ErrMalformedKey = errors.New("malformed upload key")

// ThumbnailPart is the multipart part name of a replacement course thumbnail.
const ThumbnailPart = "thumbnail"

var keyPattern = regexp.MustCompile(`^m(\d+)-w(\d+)-l(\d+)-(video|doc)$`)

// PositionalKey is the part name the backend correlates a lesson's temp_*_key with.
// The indices are zero-based positions at the moment of submission.
func PositionalKey(m, w, l int, slot domain.Slot) string {
	return fmt.Sprintf("m%d-w%d-l%d-%s", m, w, l, slot)
}

// ParsePositionalKey splits a key produced by PositionalKey.
func ParsePositionalKey(key string) (m, w, l int, slot domain.Slot, err error) {
	parts := keyPattern.FindStringSubmatch(key)
	if parts == nil {
		return 0, 0, 0, "", fmt.Errorf("%w: %q", ErrMalformedKey, key)
	}
	m, _ = strconv.Atoi(parts[1])
	w, _ = strconv.Atoi(parts[2])
	l, _ = strconv.Atoi(parts[3])
	return m, w, l, domain.Slot(parts[4]), nil
}
