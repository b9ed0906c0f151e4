package fetcher

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedScheme = errors.New("unsupported url scheme")
	ErrTooLarge          = errors.New("image exceeds maximum size")
	ErrInvalidURL        = errors.New("invalid image url")
)

// StatusError is returned when the remote answers with a non-200 status.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status: %d", e.URL, e.Code)
}
