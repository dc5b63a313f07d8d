// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrForbidden indicates that the current user is not
// authorized to perform an operation on a resource owned by
// someone else, while ErrImageLimit signals that a parent already
// carries the maximum number of images.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrImageLimit is returned when a spot or review already has
// model.MaxImagesPerResource images.
var ErrImageLimit = errors.New("maximum number of images reached")

// ErrBookingConflict is returned when the requested dates overlap an
// existing booking of the same spot.
var ErrBookingConflict = errors.New("booking dates conflict")

// Not-found sentinels, one per resource so handlers can pick the message.
var (
	ErrUserNotFound        = errors.New("user not found")
	ErrSpotNotFound        = errors.New("spot not found")
	ErrReviewNotFound      = errors.New("review not found")
	ErrBookingNotFound     = errors.New("booking not found")
	ErrSpotImageNotFound   = errors.New("spot image not found")
	ErrReviewImageNotFound = errors.New("review image not found")
)

// mysqlDuplicateEntry is the server error number for unique key violations.
const mysqlDuplicateEntry = 1062

// duplicateKey reports whether err is a unique key violation and, if so,
// the name of the violated key as found in the server message.
func duplicateKey(err error) (string, bool) {
	var me *mysql.MySQLError
	if !errors.As(err, &me) || me.Number != mysqlDuplicateEntry {
		return "", false
	}
	msg := me.Message
	if i := strings.LastIndex(msg, "key '"); i >= 0 {
		key := strings.TrimSuffix(msg[i+len("key '"):], "'")
		if j := strings.LastIndex(key, "."); j >= 0 {
			key = key[j+1:]
		}
		return key, true
	}
	return "", true
}
