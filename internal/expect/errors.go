package expect

import (
	"fmt"
	"strings"
)

// Failure categories used in load reports
const (
	CategoryCancelled   = "cancelled"
	CategoryTimeout     = "timeout"
	CategoryProxy       = "proxy"
	CategoryDNS         = "dns"
	CategoryRefused     = "connection_refused"
	CategoryReset       = "connection_reset"
	CategoryUnreachable = "network_unreachable"
	CategoryTLS         = "tls"
	CategoryRedirect    = "redirect"
	CategoryInvalidURL  = "invalid_url"
	CategoryClosed      = "connection_closed"
	CategoryProtocol    = "protocol"
	CategoryNetwork     = "network"
	CategoryValidation  = "validation"
)

// Categorize maps a transport error string to a short category and a
// readable message
func Categorize(errStr string) (category string, message string) {
	if errStr == "" {
		return "", ""
	}

	errLower := strings.ToLower(errStr)

	// Context cancellation (user cancelled or timeout)
	if strings.Contains(errLower, "context canceled") ||
		strings.Contains(errLower, "context cancelled") {
		return CategoryCancelled, "Request cancelled"
	}

	if strings.Contains(errLower, "context deadline exceeded") ||
		strings.Contains(errLower, "deadline exceeded") ||
		strings.Contains(errLower, "client.timeout exceeded") {
		return CategoryTimeout, "Request timeout - the service did not answer in time, try increasing CHATBENCH_TIMEOUT"
	}

	// Proxy errors often contain "connection refused" too
	if strings.Contains(errLower, "proxy") {
		return CategoryProxy, "Proxy connection failed - verify HTTP(S)_PROXY settings"
	}

	if strings.Contains(errLower, "no such host") ||
		strings.Contains(errLower, "dial tcp: lookup") ||
		strings.Contains(errLower, "dns") {
		return CategoryDNS, "DNS resolution failed - verify MISTRAL_BASE_URL and network access"
	}

	if strings.Contains(errLower, "connection refused") {
		return CategoryRefused, "Connection refused - check the base URL and port"
	}

	if strings.Contains(errLower, "connection reset") {
		return CategoryReset, "Connection reset by server"
	}

	if strings.Contains(errLower, "network is unreachable") ||
		strings.Contains(errLower, "no route to host") {
		return CategoryUnreachable, "Network unreachable - check network connection and firewall settings"
	}

	if strings.Contains(errLower, "tls") ||
		strings.Contains(errLower, "x509") ||
		strings.Contains(errLower, "certificate") {
		return CategoryTLS, tlsMessage(errLower, errStr)
	}

	if strings.Contains(errLower, "stopped after") && strings.Contains(errLower, "redirect") {
		return CategoryRedirect, "Too many redirects"
	}

	if strings.Contains(errLower, "invalid url") ||
		strings.Contains(errLower, "unsupported protocol") {
		return CategoryInvalidURL, "Invalid URL - verify the base URL format and protocol (http/https)"
	}

	if strings.Contains(errLower, "eof") {
		return CategoryClosed, "Connection closed unexpectedly by the server"
	}

	if strings.Contains(errLower, "timeout") ||
		strings.Contains(errLower, "timed out") {
		return CategoryTimeout, "Connection timeout - the service took too long to respond"
	}

	if strings.Contains(errLower, "malformed http") {
		return CategoryProtocol, "Malformed HTTP response"
	}

	return CategoryNetwork, "Request failed: " + errStr
}

func tlsMessage(errLower, errStr string) string {
	switch {
	case strings.Contains(errLower, "unknown authority") ||
		strings.Contains(errLower, "not trusted"):
		return "TLS certificate is not trusted - set CHATBENCH_CA_FILE or CHATBENCH_INSECURE_SKIP_VERIFY"
	case strings.Contains(errLower, "expired"):
		return "TLS certificate has expired"
	case strings.Contains(errLower, "certificate is valid for") ||
		strings.Contains(errLower, "doesn't match"):
		return "TLS hostname mismatch - certificate doesn't match the requested hostname"
	case strings.Contains(errLower, "handshake"):
		return "TLS handshake failed"
	case strings.Contains(errLower, "certificate required") ||
		strings.Contains(errLower, "bad certificate"):
		return "TLS client certificate rejected - check CHATBENCH_CERT_FILE and CHATBENCH_KEY_FILE"
	}
	return "TLS error: " + errStr
}

// StatusCategory is the failure category of a response with an unexpected status
func StatusCategory(status int) string {
	return fmt.Sprintf("http_%d", status)
}
