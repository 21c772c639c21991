package bamboo

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"
	nats "github.com/nats-io/go-nats"
	"github.com/pkg/errors"
	"github.com/retgits/bamboo-bridge/common"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"gopkg.in/go-playground/webhooks.v5/github"
)

const agentRequestTimeout = 5 * time.Minute

// AgentConfig represents how the agent connects to Bamboo and which NATS
// channel it listens on. Credentials come from BAMBOO_USER and BAMBOO_PASS.
type AgentConfig struct {
	ServerURL   string `required:"true" envconfig:"BAMBOO_SERVER_URL"`
	PlanConfig  string `required:"true" envconfig:"BAMBOO_PLAN_CONFIG"`
	Branch      string `default:"master" envconfig:"BAMBOO_BRANCH"`
	AuthEnabled bool   `default:"true" envconfig:"BAMBOO_AUTH_ENABLED"`
	NatsChannel string `required:"true"`
}

type publisher interface {
	Publish(subject string, data []byte) error
}

// Agent listens for build commands and push events on NATS and turns them
// into Bamboo API calls.
type Agent struct {
	cfg    AgentConfig
	client *Client
	routes *PlanRoutes
	conn   *nats.Conn
	pub    publisher
	log    zerolog.Logger
}

// Register is the function that creates a new instance of the Bamboo agent.
func Register() (*Agent, error) {
	var cfg AgentConfig
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}

	routes, err := LoadPlanRoutes(cfg.PlanConfig, log.Logger)
	if err != nil {
		return nil, err
	}

	opts := []Option{WithServerURL(cfg.ServerURL)}
	if !cfg.AuthEnabled {
		opts = append(opts, WithAuthDisabled())
	}

	conn, err := common.NatsConnect()
	if err != nil {
		return nil, err
	}

	return NewAgent(cfg, NewClient(opts...), routes, conn), nil
}

// NewAgent wires an agent from its parts.
func NewAgent(cfg AgentConfig, client *Client, routes *PlanRoutes, conn *nats.Conn) *Agent {
	a := &Agent{
		cfg:    cfg,
		client: client,
		routes: routes,
		conn:   conn,
		log:    log.Logger,
	}
	if conn != nil {
		a.pub = conn
	}
	return a
}

// Start is the function that takes care of starting the agent and makes sure a file is creating to perform healthchecks
// in case the agent runs in a Docker container. The returned channel stays open until the agent is stopped.
func (a *Agent) Start() chan bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		runfile, err := os.Create(".running")
		if err != nil {
			log.Error().Msgf("Error while creating .runningfile: %s\nthis means the container is unhealthy but the server will work...", err.Error())
		} else {
			log.Info().Msgf("Created .running file: %v", runfile.Name())
			runfile.Close()
		}
	}

	a.routes.Watch()

	done := make(chan bool)
	_, err := a.conn.Subscribe(a.cfg.NatsChannel, func(msg *nats.Msg) {
		a.handleMessage(msg)
	})
	if err != nil {
		log.Error().Err(err).Str("channel", a.cfg.NatsChannel).Msg("Error while subscribing to NATS")
	}
	return done
}

// Stop takes care of the actions that need to be performed when gracefully shutting down the agent
func (a *Agent) Stop() {
	log.Info().Msg("Closing connection to NATS")
	common.NatsStop(a.conn)
}

// handleMessage handles all regular messages that are coming through.
func (a *Agent) handleMessage(msg *nats.Msg) {
	logger := a.log.With().Str("id", uuid.NewString()).Str("subject", msg.Subject).Logger()
	ctx, cancel := context.WithTimeout(context.Background(), agentRequestTimeout)
	defer cancel()

	payload := string(msg.Data)
	switch {
	case gjson.Get(payload, "command").Exists():
		env, err := a.handleCommand(ctx, payload)
		if err != nil {
			logger.Error().Err(err).Msg("Error while handling command")
		}
		a.reply(logger, msg, env, err)
	case gjson.Get(payload, "ref").Exists():
		env, handled, err := a.handlePush(ctx, logger, msg.Data)
		if err != nil {
			logger.Error().Err(err).Msg("Error while handling push event")
		}
		if handled || err != nil {
			a.reply(logger, msg, env, err)
		}
	default:
		logger.Info().Msgf("Handling an invalid message:\n%s", payload)
	}
}

// handleCommand executes an explicit request like
// {"command": "trigger", "plan_key": "PROJ-PLAN", "variables": {"driver": "xyz"}}.
func (a *Agent) handleCommand(ctx context.Context, payload string) (Envelope, error) {
	command := gjson.Get(payload, "command").String()
	serverURL := gjson.Get(payload, "server_url").String()

	switch strings.ToLower(command) {
	case "trigger":
		return a.client.TriggerPlanBuild(ctx, serverURL, gjson.Get(payload, "plan_key").String(), commandTriggerOptions(payload))
	case "stop":
		return a.client.StopBuild(ctx, serverURL, gjson.Get(payload, "plan_build_key").String())
	case "query":
		return a.client.QueryPlan(ctx, serverURL, gjson.Get(payload, "plan_key").String())
	case "artifacts":
		var names []string
		for _, name := range gjson.Get(payload, "artifact_names").Array() {
			names = append(names, name.String())
		}
		return a.client.QueryJobForArtifacts(ctx, ArtifactQuery{
			ServerURL:     serverURL,
			PlanBuildKey:  gjson.Get(payload, "plan_build_key").String(),
			JobName:       gjson.Get(payload, "job_name").String(),
			ArtifactNames: names,
		})
	default:
		return Envelope{}, errors.Errorf("unknown command %q", command)
	}
}

func commandTriggerOptions(payload string) *TriggerOptions {
	stages := gjson.Get(payload, "execute_all_stages")
	vars := gjson.Get(payload, "variables")
	if !stages.Exists() && !vars.Exists() {
		return nil
	}

	opts := &TriggerOptions{
		ExecuteAllStages: !stages.Exists() || stages.Bool(),
		Variables:        map[string]string{},
	}
	vars.ForEach(func(key, value gjson.Result) bool {
		opts.Variables[key.String()] = value.String()
		return true
	})
	return opts
}

// handlePush triggers the plan mapped to the pushed repository when the push
// is for the configured branch. The pushed head becomes the custom revision.
func (a *Agent) handlePush(ctx context.Context, logger zerolog.Logger, data []byte) (Envelope, bool, error) {
	var push github.PushPayload
	if err := json.Unmarshal(data, &push); err != nil {
		return Envelope{}, false, errors.WithMessage(err, "decoding push payload")
	}

	repo := push.Repository.Name
	branch := strings.TrimPrefix(push.Ref, "refs/heads/")
	if branch != a.cfg.Branch {
		logger.Info().Str("repository", repo).Str("branch", branch).Msgf("Push event was not for %s branch, so ignoring event", a.cfg.Branch)
		return Envelope{}, false, nil
	}

	planKey, ok := a.routes.PlanKey(repo)
	if !ok {
		logger.Info().Str("repository", repo).Msg("No plan configured for repository, so ignoring event")
		return Envelope{}, false, nil
	}

	logger.Info().Str("repository", repo).Str("plan", planKey).Str("revision", push.After).Msg("Received Push event, triggering plan")

	opts := &TriggerOptions{ExecuteAllStages: true}
	if push.After != "" {
		opts.Variables = map[string]string{customRevisionKey: push.After}
	}
	env, err := a.client.TriggerPlanBuild(ctx, "", planKey, opts)
	return env, true, err
}

// reply publishes the outcome to the reply subject of the message, if any.
func (a *Agent) reply(logger zerolog.Logger, msg *nats.Msg, env Envelope, err error) {
	if msg.Reply == "" || a.pub == nil {
		return
	}
	if err != nil {
		env = Pack(Success(false), Content(err.Error()))
	}

	data, err := json.Marshal(env)
	if err != nil {
		logger.Error().Err(err).Msg("Error while marshalling envelope to JSON")
		return
	}
	if err := a.pub.Publish(msg.Reply, data); err != nil {
		logger.Error().Err(err).Str("reply", msg.Reply).Msg("Error while publishing reply to NATS")
	}
}
