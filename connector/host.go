package connector

import "strings"

// normalizeHost brings the host into a comparable form: the www. prefix and default ports are
// trimmed. Non-default ports are kept, so example.com:8080 differs from example.com.
func normalizeHost(host string) string {
	host = strings.TrimPrefix(host, "www.")

	for i := len(host) - 1; i >= 0; i-- {
		if host[i] == '.' || host[i] == ']' {
			break
		} else if host[i] == ':' {
			switch port := host[i+1:]; port {
			case "80", "443":
				host = host[:i]
			}

			break
		}
	}

	return host
}
