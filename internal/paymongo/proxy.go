package paymongo

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

var proxyRoutes = []struct {
	method string
	path   *regexp.Regexp
}{
	{http.MethodPost, regexp.MustCompile(`^/payment_intents$`)},
	{http.MethodGet, regexp.MustCompile(`^/payment_intents/[A-Za-z0-9_]+$`)},
	{http.MethodPost, regexp.MustCompile(`^/payment_intents/[A-Za-z0-9_]+/attach$`)},
	{http.MethodPost, regexp.MustCompile(`^/payment_methods$`)},
}

func proxyAllowed(method, path string) bool {
	for _, r := range proxyRoutes {
		if r.method == method && r.path.MatchString(path) {
			return true
		}
	}
	return false
}

// Proxy forwards requests under prefix to PayMongo, replacing any client
// credentials with the server secret key.
func (c *Client) Proxy(prefix string, logger *zerolog.Logger) (http.Handler, error) {
	target, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}

	rp := &httputil.ReverseProxy{
		Rewrite: func(r *httputil.ProxyRequest) {
			path := strings.TrimPrefix(r.In.URL.Path, prefix)
			r.SetURL(target)
			r.Out.URL.Path = strings.TrimRight(target.Path, "/") + path
			r.Out.URL.RawPath = ""
			r.Out.Host = target.Host
			r.Out.Header.Del("Cookie")
			r.Out.Header.Set("Authorization", c.AuthorizationHeader())
			r.Out.Header.Set("Accept", "application/json")
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Error().Err(err).Str("path", r.URL.Path).Msg("PayMongo proxy error")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"errors":[{"code":"proxy_error","detail":"upstream unavailable"}]}`))
		},
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, prefix)
		if !proxyAllowed(r.Method, path) {
			http.NotFound(w, r)
			return
		}
		rp.ServeHTTP(w, r)
	}), nil
}
