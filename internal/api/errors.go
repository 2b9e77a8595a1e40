package api

import (
	"errors"
	"fmt"
)

// Kind classifies a failed request. Classification happens once, here at the
// gateway boundary; callers branch on the kind instead of re-inspecting
// transport details.
type Kind int

const (
	// KindConnectivity: no response at all (refused, DNS, timeout).
	KindConnectivity Kind = iota
	// KindAuth: the backend rejected our credentials on an authenticated
	// request. The local session has already been purged when this is seen.
	KindAuth
	// KindValidation: structured 4xx error tied to the request (bad
	// credentials on login, duplicate username, missing field).
	KindValidation
	// KindServer: the backend answered with a 5xx.
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindConnectivity:
		return "connectivity"
	case KindAuth:
		return "auth"
	case KindValidation:
		return "validation"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind    Kind
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("api: %s (%d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("api: %s: %s", e.Kind, e.Message)
}

// UserMessage is the text shown to the user for this failure.
func (e *Error) UserMessage() string {
	return e.Message
}

func IsAuth(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == KindAuth
}

func IsConnectivity(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == KindConnectivity
}

// FailureText maps any send/load error to the line folded into the
// transcript. Connectivity failures must say the backend may be down.
func FailureText(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		switch apiErr.Kind {
		case KindConnectivity:
			return apiErr.Message
		case KindAuth:
			return "Your session has expired. Please sign in again."
		default:
			if apiErr.Message != "" {
				return apiErr.Message
			}
		}
	}
	return "Failed to send the message."
}
