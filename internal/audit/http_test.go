package audit

import (
	"net/http"
	"testing"
)

func TestClientIP(t *testing.T) {
	cases := []struct {
		name       string
		forwarded  string
		realIP     string
		remoteAddr string
		want       string
	}{
		{name: "forwarded chain", forwarded: "10.1.2.3, 172.16.0.1", remoteAddr: "127.0.0.1:5000", want: "10.1.2.3"},
		{name: "real ip", realIP: " 10.9.8.7 ", remoteAddr: "127.0.0.1:5000", want: "10.9.8.7"},
		{name: "socket address", remoteAddr: "192.168.4.2:61234", want: "192.168.4.2"},
		{name: "bare remote addr", remoteAddr: "192.168.4.2", want: "192.168.4.2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, _ := http.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tc.remoteAddr
			if tc.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tc.forwarded)
			}
			if tc.realIP != "" {
				r.Header.Set("X-Real-IP", tc.realIP)
			}
			if got := ClientIP(r); got != tc.want {
				t.Fatalf("ClientIP = %q, want %q", got, tc.want)
			}
		})
	}
}
