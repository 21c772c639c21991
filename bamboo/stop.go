package bamboo

import (
	"context"
	"net/http"
)

// StopBuild stops a running plan build. The endpoint is not part of the
// official REST API; depending on the server version it answers 200 or 302 on
// success. The content of a successful envelope is the raw *Response.
func (c *Client) StopBuild(ctx context.Context, serverURL, planBuildKey string) (Envelope, error) {
	s := c.snapshot()
	serverURL = firstNonEmpty(serverURL, s.serverURL)

	if env, ok := s.validate("StopBuild", serverURL, requirement{"plan build key", planBuildKey}); !ok {
		return env, nil
	}

	url := stopURL(serverURL, planBuildKey)
	c.traceURL(s, "URL used to stop plan", url)

	resp, err := c.post(ctx, s, url, RequestOptions{})
	if err != nil {
		return Envelope{}, err
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusFound:
		return Pack(
			Success(true),
			StatusCode(resp.StatusCode),
			Content(resp),
			URL(url),
		), nil
	default:
		return packFailure(resp), nil
	}
}
