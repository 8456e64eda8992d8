package gateway

import (
	"errors"
	"fmt"
)

// ErrNoEndpoint is returned when no API endpoint is configured.
var ErrNoEndpoint = errors.New("api endpoint is not configured")

// MsgCommunicationFailed is shown for transport and protocol failures.
const MsgCommunicationFailed = "Communication failed. Please try again."

// NetworkError is a transport failure: the request never produced a response body.
type NetworkError struct {
	Path string
	Err  error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error calling %s: %v", e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ProtocolError is a response that is not a valid JSON envelope.
// Snippet holds the leading part of the raw body.
type ProtocolError struct {
	Path    string
	Snippet string
	Err     error
}

func (e *ProtocolError) Error() string {
	if e.Snippet == "" {
		return fmt.Sprintf("invalid response from %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("invalid response from %s: %v: %s", e.Path, e.Err, e.Snippet)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// ApplicationError is an {ok:false, message} answer from the backend.
type ApplicationError struct {
	Path    string
	Message string
}

func (e *ApplicationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s rejected the request", e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// UserMessage converts any call error into the single message shown on a screen.
// fallback is used when the backend rejected the request without a message.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var appErr *ApplicationError
	if errors.As(err, &appErr) {
		if appErr.Message != "" {
			return appErr.Message
		}
		return fallback
	}
	var netErr *NetworkError
	var protoErr *ProtocolError
	if errors.As(err, &netErr) || errors.As(err, &protoErr) {
		return MsgCommunicationFailed
	}
	return err.Error()
}

// IsRemote reports whether err came from a call to the backend.
func IsRemote(err error) bool {
	var appErr *ApplicationError
	var netErr *NetworkError
	var protoErr *ProtocolError
	return errors.As(err, &appErr) || errors.As(err, &netErr) || errors.As(err, &protoErr)
}
