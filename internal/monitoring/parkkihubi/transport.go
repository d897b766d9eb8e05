package parkkihubi

import (
	"net/http"
	"net/http/httputil"

	"github.com/rs/zerolog"
)

// newTransport assembles the default transport stack: an optional token
// layer and an optional debug layer over http.DefaultTransport. No timeout
// is set; callers control deadlines through the request context.
func newTransport(cfg ClientConfig) http.RoundTripper {
	rt := http.DefaultTransport
	if cfg.Debug {
		rt = &debugTransport{next: rt, logger: cfg.Logger}
	}
	if cfg.APIToken != "" {
		rt = &tokenTransport{token: cfg.APIToken, next: rt}
	}
	return rt
}

// tokenTransport attaches the monitoring API token to every outgoing
// request, so no request-building code handles credentials itself.
type tokenTransport struct {
	token string
	next  http.RoundTripper
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Token "+t.token)
	return t.next.RoundTrip(clone)
}

// debugTransport dumps requests and responses at trace level. Response
// bodies are not dumped; downloads need them intact.
type debugTransport struct {
	next   http.RoundTripper
	logger zerolog.Logger
}

func (t *debugTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if dump, err := httputil.DumpRequestOut(req, true); err == nil {
		t.logger.Trace().Str("dump", string(dump)).Msg("http request")
	}

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if dump, derr := httputil.DumpResponse(resp, false); derr == nil {
		t.logger.Trace().Str("dump", string(dump)).Msg("http response")
	}
	return resp, nil
}
