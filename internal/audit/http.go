package audit

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP resolves the originating address of a request for audit entries.
// Proxy headers win over the socket address since the service normally sits
// behind the lab gateway.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	for _, header := range []string{"X-Forwarded-For", "X-Real-IP"} {
		value := r.Header.Get(header)
		if value == "" {
			continue
		}
		// X-Forwarded-For carries a hop chain; the first entry is the client.
		if idx := strings.IndexByte(value, ','); idx >= 0 {
			value = value[:idx]
		}
		return strings.TrimSpace(value)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
