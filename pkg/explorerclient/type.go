package explorerclient

import (
	"fmt"
	"time"
)

type DialOptions struct {
	MaxRetries     int
	BaseRetryDelay time.Duration
	MaxRetryDelay  time.Duration
	// Applies to the handshake and to each response
	Timeout time.Duration
}

func DefaultDialOptions() DialOptions {
	return DialOptions{
		MaxRetries:     10,
		BaseRetryDelay: 2 * time.Second,
		MaxRetryDelay:  60 * time.Second,
		Timeout:        10 * time.Second,
	}
}

// RemoteError is a failure reported by the API rather than by the connection.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("explorer api: %d: %s", e.Status, e.Message)
	}
	return "explorer api: " + e.Message
}
