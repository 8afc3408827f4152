package probe

import (
	"context"
	"errors"
	"net"
	"net/url"
)

const (
	ReasonStatus   = "status"   // response arrived but was not 200
	ReasonTimeout  = "timeout"  // deadline exceeded
	ReasonDNS      = "dns"      // name did not resolve
	ReasonConnect  = "connect"  // dial/refused/reset
	ReasonProtocol = "protocol" // TLS or malformed response
	ReasonRequest  = "request"  // request could not be built
)

// Classify maps a transport error from http.Client.Do onto a failure class.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}

	var de *net.DNSError
	if errors.As(err, &de) {
		if de.IsTimeout {
			return ReasonTimeout
		}
		return ReasonDNS
	}

	var ue *url.Error
	if errors.As(err, &ue) && ue.Timeout() {
		return ReasonTimeout
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() {
			return ReasonTimeout
		}
		return ReasonConnect
	}

	// TLS failures, malformed responses, too many redirects
	return ReasonProtocol
}
