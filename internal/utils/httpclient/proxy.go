package httpclient

import (
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// UserAgent is sent on every outbound request made through these clients
const UserAgent = "mcp-code-research"

// ProxyEnvironmentVariables defines the order of preference for proxy environment variables
var ProxyEnvironmentVariables = []string{
	"HTTPS_PROXY",
	"https_proxy",
	"HTTP_PROXY",
	"http_proxy",
}

type userAgentTransport struct {
	base http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", UserAgent)
	}
	return t.base.RoundTrip(req)
}

// NewHTTPClient creates an HTTP client for registry and API calls.
// A proxy is configured only when one of ProxyEnvironmentVariables is set.
func NewHTTPClient(timeout time.Duration, logger *logrus.Logger) *http.Client {
	var transport *http.Transport
	if base, ok := http.DefaultTransport.(*http.Transport); ok {
		transport = base.Clone()
	} else {
		transport = &http.Transport{Proxy: http.ProxyFromEnvironment}
	}

	if proxyURL := getProxyURL(); proxyURL != "" {
		if parsedProxy, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(parsedProxy)
			if logger != nil {
				logger.WithField("proxy_url", redactProxyCredentials(proxyURL)).Debug("HTTP client configured with proxy")
			}
		} else if logger != nil {
			logger.WithError(err).WithField("proxy_url", redactProxyCredentials(proxyURL)).Warn("Failed to parse proxy URL, using direct connection")
		}
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: &userAgentTransport{base: transport},
	}
}

// getProxyURL returns the first valid proxy URL from environment variables
func getProxyURL() string {
	for _, envVar := range ProxyEnvironmentVariables {
		if proxyURL := os.Getenv(envVar); proxyURL != "" {
			// Skip placeholder values that some tools use
			if proxyURL != "$HTTPS_PROXY" && proxyURL != "$HTTP_PROXY" {
				return proxyURL
			}
		}
	}
	return ""
}

// redactProxyCredentials removes credentials from proxy URL for safe logging
func redactProxyCredentials(proxyURL string) string {
	if parsed, err := url.Parse(proxyURL); err == nil {
		if parsed.User != nil {
			parsed.User = url.UserPassword("***", "***")
		}
		return parsed.String()
	}
	return "[invalid-url]"
}
