package bamboo

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	defaultGetTimeout  = 60 * time.Second
	defaultPostTimeout = 30 * time.Second

	retryMax     = 3
	retryWaitMin = 1 * time.Second
	retryWaitMax = 8 * time.Second
	maxRedirects = 10
)

// RequestOptions tune a single request. Zero values fall back to the client
// headers, the per-method default timeout and no redirects.
type RequestOptions struct {
	Headers        map[string]string
	Body           []byte
	Timeout        time.Duration
	AllowRedirects bool
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	URL        string
}

// Text returns the body as a string.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	return string(r.Body)
}

type redirectKey struct{}

func newTransport(logger zerolog.Logger) *retryablehttp.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = retryMax
	rc.RetryWaitMin = retryWaitMin
	rc.RetryWaitMax = retryWaitMax
	rc.CheckRetry = checkRetry
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = retryLogger{logger}
	rc.HTTPClient.CheckRedirect = checkRedirect
	return rc
}

// checkRetry retries transport errors and the statuses 429, 500, 502, 503 and 504.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	switch resp.StatusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true, nil
	}
	return false, nil
}

func checkRedirect(req *http.Request, via []*http.Request) error {
	if allow, _ := req.Context().Value(redirectKey{}).(bool); !allow {
		return http.ErrUseLastResponse
	}
	if len(via) >= maxRedirects {
		return errors.Errorf("stopped after %d redirects", maxRedirects)
	}
	return nil
}

func (c *Client) get(ctx context.Context, s settings, url string, opts RequestOptions) (*Response, error) {
	if opts.Timeout == 0 {
		opts.Timeout = defaultGetTimeout
	}
	return c.do(ctx, s, http.MethodGet, url, opts)
}

func (c *Client) post(ctx context.Context, s settings, url string, opts RequestOptions) (*Response, error) {
	if opts.Timeout == 0 {
		opts.Timeout = defaultPostTimeout
	}
	return c.do(ctx, s, http.MethodPost, url, opts)
}

func (c *Client) do(ctx context.Context, s settings, method, url string, opts RequestOptions) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	ctx = context.WithValue(ctx, redirectKey{}, opts.AllowRedirects)

	var body interface{}
	if len(opts.Body) > 0 {
		body = opts.Body
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, &RequestError{URL: url, Err: errors.WithMessage(err, "creating request")}
	}

	headers := opts.Headers
	if len(headers) == 0 {
		headers = s.headers
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if s.authEnabled {
		req.SetBasicAuth(s.credentials.Username, s.credentials.Password)
	}

	res, err := c.http.Do(req)
	if err != nil {
		if res != nil {
			res.Body.Close()
		}
		return nil, &RequestError{URL: url, Err: err}
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &RequestError{URL: url, Err: errors.WithMessage(err, "reading body")}
		}
		return nil, &UnknownError{URL: url, Err: errors.WithMessage(err, "reading body")}
	}

	decoded, err := decodeBody(res.Header.Get("Content-Encoding"), raw)
	if err != nil {
		return nil, &UnknownError{URL: url, Err: err}
	}

	c.log.Debug().Str("method", method).Str("url", url).Int("status", res.StatusCode).Msg("Received response from Bamboo")

	return &Response{
		StatusCode: res.StatusCode,
		Header:     res.Header,
		Body:       decoded,
		URL:        url,
	}, nil
}

// decodeBody undoes the content encodings offered in the Accept-Encoding
// header. The transport only does this itself when it set that header.
func decodeBody(encoding string, raw []byte) ([]byte, error) {
	var r io.Reader
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return raw, nil
	case "gzip":
		gz, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, errors.WithMessage(err, "decoding gzip body")
		}
		defer gz.Close()
		r = gz
	case "deflate":
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, errors.WithMessage(err, "decoding deflate body")
		}
		defer zr.Close()
		r = zr
	case "br":
		r = brotli.NewReader(bytes.NewReader(raw))
	default:
		return nil, errors.Errorf("unsupported content encoding %q", encoding)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.WithMessagef(err, "decoding %s body", encoding)
	}
	return out, nil
}

// retryLogger routes go-retryablehttp messages into zerolog.
type retryLogger struct {
	zerolog.Logger
}

func (l retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.Logger.Error().Fields(keysAndValues).Msg(msg)
}

func (l retryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.Logger.Info().Fields(keysAndValues).Msg(msg)
}

func (l retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.Logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.Logger.Warn().Fields(keysAndValues).Msg(msg)
}
