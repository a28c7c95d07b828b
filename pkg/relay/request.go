package relay

import "fmt"

// Platform selects the push network a request is routed to.
type Platform int

const (
	PlatformIOS Platform = iota
	PlatformAndroid
)

// PlatformFromFlag maps the legacy isAndroid query flag to a Platform.
func PlatformFromFlag(isAndroid bool) Platform {
	if isAndroid {
		return PlatformAndroid
	}
	return PlatformIOS
}

func (p Platform) String() string {
	switch p {
	case PlatformAndroid:
		return "android"
	case PlatformIOS:
		return "ios"
	default:
		return fmt.Sprintf("platform(%d)", int(p))
	}
}

// MarshalText lets Platform render as its name in JSON and log output.
func (p Platform) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// NotificationRequest is one decoded relay call. It lives for the duration
// of the HTTP request and is never stored.
type NotificationRequest struct {
	Platform         Platform
	UseSound         bool
	DeviceToken      string
	EncryptedMessage string
}
