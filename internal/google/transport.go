package google

import "net/http"

// bearerTransport adds the bearer token and custom headers to requests.
type bearerTransport struct {
	Token     string
	Transport http.RoundTripper
}

// RoundTrip adds required headers and authentication to each request.
func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.Token)
	req.Header.Set("User-Agent", "quickcal/1.0")

	base := t.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}
