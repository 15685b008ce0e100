package lib

import (
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/publicsuffix"
)

const (
	Timeout = time.Duration(60 * time.Second)

	// ClientRequestIDHeader is echoed by Azure AD in its sign-in logs.
	ClientRequestIDHeader = "client-request-id"
)

// requestIDTransport tags every request with a fresh client-request-id.
type requestIDTransport struct {
	base http.RoundTripper
}

func (t *requestIDTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	id := uuid.New().String()
	req.Header.Set(ClientRequestIDHeader, id)
	req.Header.Set("return-client-request-id", "true")
	log.Debugf("%s %s (%s: %s)", req.Method, req.URL.Redacted(), ClientRequestIDHeader, id)

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	log.Debugf("%s %s -> %d", req.Method, req.URL.Redacted(), resp.StatusCode)
	return resp, nil
}

// NewHTTPClient returns the client used for identity provider calls.
func NewHTTPClient(base http.RoundTripper) (*http.Client, error) {
	if base == nil {
		base = http.DefaultTransport
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	return &http.Client{
		Transport: &requestIDTransport{base: base},
		Jar:       jar,
		Timeout:   Timeout,
	}, nil
}
