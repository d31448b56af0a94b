// Package netx derives externally visible URLs from request headers set by
// the reverse proxy in front of the service.
package netx

import (
	"net/http"
	"strings"

	"github.com/dmitrijs2005/dekinai/internal/common"
)

// BaseURL composes the public base URL for links handed back to clients.
//
//   - scheme: X-Forwarded-Proto, default "http"
//   - host: request Host, default "localhost"; when the host is exactly
//     "localhost" and localPort is set, ":localPort" is appended
//   - path: X-Forwarded-Path, appended verbatim
//
// The result always ends with "/".
func BaseURL(r *http.Request, localPort string) string {
	var b strings.Builder
	b.Grow(128)

	proto := r.Header.Get(common.ForwardedProtoHeaderName)
	if proto == "" {
		proto = "http"
	}
	b.WriteString(proto)
	b.WriteString("://")

	host := r.Host
	if host == "" {
		host = "localhost"
	}
	b.WriteString(host)

	if host == "localhost" && localPort != "" {
		b.WriteByte(':')
		b.WriteString(localPort)
	}

	b.WriteString(r.Header.Get(common.ForwardedPathHeaderName))

	base := b.String()
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	return base
}
