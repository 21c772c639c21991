package bamboo

import (
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Option configures a Client.
type Option func(*Client)

// WithCredentials overrides the username and/or password loaded from the
// environment. Empty values keep the environment value.
func WithCredentials(username, password string) Option {
	return func(c *Client) {
		if username != "" {
			c.credentials.Username = username
		}
		if password != "" {
			c.credentials.Password = password
		}
	}
}

// WithServerURL sets the default Bamboo server URL.
func WithServerURL(serverURL string) Option {
	return func(c *Client) { c.serverURL = serverURL }
}

// WithPlanKey sets the default plan key.
func WithPlanKey(planKey string) Option {
	return func(c *Client) { c.planKey = planKey }
}

// WithVerbose logs every resolved URL at info level instead of debug.
func WithVerbose(verbose bool) Option {
	return func(c *Client) { c.verbose = verbose }
}

// WithAuthDisabled sends requests without credentials. Useful against mock
// servers or instances that allow anonymous access.
func WithAuthDisabled() Option {
	return func(c *Client) { c.authEnabled = false }
}

// WithHeaders replaces the headers sent with every request.
func WithHeaders(headers map[string]string) Option {
	return func(c *Client) { c.headers = copyHeaders(headers) }
}

// WithLogger sets the logger used by the client and its transport.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.log = logger }
}

// WithHTTPClient replaces the retrying transport.
func WithHTTPClient(hc *retryablehttp.Client) Option {
	return func(c *Client) { c.http = hc }
}

// NewClient creates a Client with credentials taken from the environment,
// authentication enabled and the default header set.
func NewClient(opts ...Option) *Client {
	c := &Client{
		credentials: LoadCredentials(),
		authEnabled: true,
		headers:     DefaultHeaders(),
		log:         log.Logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = newTransport(c.log)
	}

	if c.authEnabled && !c.credentials.Complete() {
		c.log.Warn().Msg("No credentials found while initializing the Bamboo client, set them explicitly or disable authentication")
	}
	return c
}

// DefaultHeaders returns the header set sent with every request unless
// overridden.
func DefaultHeaders() map[string]string {
	return map[string]string{
		"Connection":      "Keep-Alive",
		"Content-Type":    "application/json;charset=UTF-8",
		"Accept":          "application/json, text/plain, */*",
		"Accept-Encoding": "gzip, deflate, br",
		"Accept-Language": "en-US,en;q=0.9",
		"DNT":             "1",
		"User-Agent":      "Garbage browser: 5.6",
	}
}

// SetServerURL changes the default Bamboo server URL.
func (c *Client) SetServerURL(serverURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.serverURL = serverURL
}

// ServerURL returns the default Bamboo server URL.
func (c *Client) ServerURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverURL
}

// SetPlanKey changes the default plan key.
func (c *Client) SetPlanKey(planKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.planKey = planKey
}

// PlanKey returns the default plan key.
func (c *Client) PlanKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.planKey
}

// SetAuthEnabled turns basic authentication on or off.
func (c *Client) SetAuthEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authEnabled = enabled
}

// AuthEnabled reports whether requests carry basic authentication.
func (c *Client) AuthEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authEnabled
}

// SetVerbose toggles logging of resolved URLs at info level.
func (c *Client) SetVerbose(verbose bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.verbose = verbose
}

// Verbose reports whether verbose URL logging is on.
func (c *Client) Verbose() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.verbose
}

// SetHeaders replaces the headers sent with every request.
func (c *Client) SetHeaders(headers map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headers = copyHeaders(headers)
}

// Headers returns a copy of the headers sent with every request.
func (c *Client) Headers() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyHeaders(c.headers)
}

func (c *Client) snapshot() settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return settings{
		credentials: c.credentials,
		serverURL:   c.serverURL,
		planKey:     c.planKey,
		authEnabled: c.authEnabled,
		verbose:     c.verbose,
		headers:     copyHeaders(c.headers),
	}
}

func (c *Client) traceURL(s settings, msg, url string) {
	ev := c.log.Debug()
	if s.verbose {
		ev = c.log.Info()
	}
	ev.Str("url", url).Msg(msg)
}

func copyHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		out[k] = v
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
