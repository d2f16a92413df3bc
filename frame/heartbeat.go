package frame

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ErrInvalidHeartBeat is returned for a malformed heart-beat header value.
var ErrInvalidHeartBeat = errors.New("invalid heart-beat header")

// ParseHeartBeat parses a heart-beat header value ("sx,sy" milliseconds)
// into the send and receive intervals it declares.
func ParseHeartBeat(value string) (tx, rx time.Duration, err error) {
	parts := strings.Split(value, ",")
	if len(parts) != 2 {
		return 0, 0, errors.Wrapf(ErrInvalidHeartBeat, "%q", value)
	}

	millis := make([]int64, 2)
	for i, p := range parts {
		millis[i], err = strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil || millis[i] < 0 {
			return 0, 0, errors.Wrapf(ErrInvalidHeartBeat, "%q", value)
		}
	}

	return time.Duration(millis[0]) * time.Millisecond,
		time.Duration(millis[1]) * time.Millisecond, nil
}

// FormatHeartBeat renders two intervals as a heart-beat header value.
// Durations are truncated to milliseconds.
func FormatHeartBeat(tx, rx time.Duration) string {
	return fmt.Sprintf("%d,%d", tx.Milliseconds(), rx.Milliseconds())
}
