package bamboo

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"
)

// QueryPlan returns the build results of a plan. The decoded JSON document is
// the envelope content.
func (c *Client) QueryPlan(ctx context.Context, serverURL, planKey string) (Envelope, error) {
	s := c.snapshot()
	serverURL = firstNonEmpty(serverURL, s.serverURL)
	planKey = firstNonEmpty(planKey, s.planKey)

	if env, ok := s.validate("QueryPlan", serverURL, requirement{"plan key", planKey}); !ok {
		return env, nil
	}

	url := planResultsURL(serverURL, planKey)
	c.traceURL(s, "URL used in query", url)

	resp, err := c.get(ctx, s, url, RequestOptions{})
	if err != nil {
		return Envelope{}, err
	}
	return packJSON(resp)
}

// QueryPlanDetails returns the definition of a plan.
func (c *Client) QueryPlanDetails(ctx context.Context, serverURL, planKey string) (Envelope, error) {
	s := c.snapshot()
	serverURL = firstNonEmpty(serverURL, s.serverURL)
	planKey = firstNonEmpty(planKey, s.planKey)

	if env, ok := s.validate("QueryPlanDetails", serverURL, requirement{"plan key", planKey}); !ok {
		return env, nil
	}

	url := planURL(serverURL, planKey)
	c.traceURL(s, "URL used to query plan details", url)

	resp, err := c.get(ctx, s, url, RequestOptions{})
	if err != nil {
		return Envelope{}, err
	}
	return packJSON(resp)
}

// QueryQueue returns the builds currently waiting in the server's queue.
func (c *Client) QueryQueue(ctx context.Context, serverURL string) (Envelope, error) {
	s := c.snapshot()
	serverURL = firstNonEmpty(serverURL, s.serverURL)

	if env, ok := s.validate("QueryQueue", serverURL); !ok {
		return env, nil
	}

	url := queueURL(serverURL)
	c.traceURL(s, "URL used to query the build queue", url)

	resp, err := c.get(ctx, s, url, RequestOptions{})
	if err != nil {
		return Envelope{}, err
	}
	return packJSON(resp)
}

// packJSON packs a 200 response with its decoded JSON body, which must hold
// exactly one JSON value. Any other status
// is packed as a failure with the raw body and is never decoded.
func packJSON(resp *Response) (Envelope, error) {
	if resp.StatusCode != http.StatusOK {
		return packFailure(resp), nil
	}

	var content any
	dec := json.NewDecoder(bytes.NewReader(resp.Body))
	dec.UseNumber()
	if err := dec.Decode(&content); err != nil {
		return Envelope{}, &DecodeError{URL: resp.URL, Err: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		if err == nil {
			err = errors.New("unexpected data after JSON value")
		}
		return Envelope{}, &DecodeError{URL: resp.URL, Err: err}
	}

	return Pack(
		Success(true),
		StatusCode(resp.StatusCode),
		Content(content),
		URL(resp.URL),
	), nil
}

func packFailure(resp *Response) Envelope {
	return Pack(
		Success(false),
		StatusCode(resp.StatusCode),
		Content(resp.Text()),
		URL(resp.URL),
	)
}
