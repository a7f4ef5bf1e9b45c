package storage

import (
	"strconv"
	"strings"
	"unicode"
)

// maxBucketName is the S3 bucket name length limit.
const maxBucketName = 63

// BucketName returns the bucket holding a trip's files:
// "{prefix}-{tripID}-{slug(tripName)}". The trip id is never truncated, so
// distinct trips always get distinct buckets even when their names collide.
// When the name slugs to nothing the trailing "-{slug}" is omitted.
func BucketName(prefix string, tripID int64, tripName string) string {
	base := prefix + "-" + strconv.FormatInt(tripID, 10)
	slug := Slugify(tripName)
	if slug == "" {
		return base
	}
	if room := maxBucketName - len(base) - 1; len(slug) > room {
		if room <= 0 {
			return base
		}
		slug = strings.TrimRight(slug[:room], "-")
		if slug == "" {
			return base
		}
	}
	return base + "-" + slug
}

// Slugify lower-cases s, collapses each whitespace run into a single "-" and
// drops everything that is not an ASCII letter, digit or "-". Leading and
// trailing separators are trimmed.
func Slugify(s string) string {
	var b strings.Builder
	inSpace := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsSpace(r):
			if !inSpace {
				b.WriteByte('-')
			}
			inSpace = true
			continue
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		}
		inSpace = false
	}
	return strings.Trim(b.String(), "-")
}

// ObjectKey is the storage key of a file: its decimal metadata id.
func ObjectKey(fileID int64) string {
	return strconv.FormatInt(fileID, 10)
}
