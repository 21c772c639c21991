package bamboo

import (
	"sync"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

// Client talks to the REST and HTML interface of a Bamboo server. The server
// URL and plan key stored on it are defaults; every operation accepts explicit
// values which take precedence.
type Client struct {
	mu          sync.RWMutex
	credentials Credentials
	serverURL   string
	planKey     string
	authEnabled bool
	verbose     bool
	headers     map[string]string

	http *retryablehttp.Client
	log  zerolog.Logger
}

// TriggerOptions control which stages run and which plan variables are passed
// when queueing a build. A nil *TriggerOptions executes all stages without
// variables.
type TriggerOptions struct {
	ExecuteAllStages bool
	// Variables are sent as bamboo.<key>. The key custom.revision (any case)
	// selects the revision to build instead.
	Variables map[string]string
}

// ArtifactQuery selects the artifact pages of one job in a plan build.
type ArtifactQuery struct {
	ServerURL     string
	PlanBuildKey  string
	JobName       string
	ArtifactNames []string
}

// settings is a consistent copy of the mutable client fields taken at the
// start of an operation.
type settings struct {
	credentials Credentials
	serverURL   string
	planKey     string
	authEnabled bool
	verbose     bool
	headers     map[string]string
}
