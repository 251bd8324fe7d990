package session

import (
	"net/http"
	"strings"
	"time"
)

// interceptor schedules a logout when a request that carried a bearer token
// comes back 401.
type interceptor struct {
	next   http.RoundTripper
	client *Client
}

func (t *interceptor) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return resp, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		if tok, ok := bearer(req.Header.Get("Authorization")); ok {
			t.client.scheduleLogout(tok)
		}
	}
	return resp, nil
}

func bearer(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return header[len(prefix):], true
}

// scheduleLogout logs out after the configured delay unless the session
// token has been replaced by then.
func (c *Client) scheduleLogout(tok string) {
	time.AfterFunc(c.logoutDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.token != tok {
			return
		}
		c.log.Info().Msg("token rejected by server, signing out")
		c.clearLocked()
	})
}
