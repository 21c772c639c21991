package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/alexflint/go-arg"
	"github.com/pkg/errors"
	"github.com/retgits/bamboo-bridge/bamboo"
	"github.com/retgits/bamboo-bridge/common"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// TriggerCmd queues a plan build.
type TriggerCmd struct {
	PlanKey    string   `arg:"positional" help:"plan key, defaults to bamboo.plankey from the config file"`
	SkipStages bool     `arg:"--manual-stages" help:"do not execute all stages"`
	Variables  []string `arg:"--var,separate" help:"plan variable as key=value, may be repeated"`
	Revision   string   `arg:"--revision" help:"custom revision to build"`
}

// StopCmd stops a running plan build.
type StopCmd struct {
	PlanBuildKey string `arg:"positional" help:"plan build key, e.g. PROJ-PLAN-42"`
}

// QueryCmd names the plan for the query and plan subcommands.
type QueryCmd struct {
	PlanKey string `arg:"positional" help:"plan key, defaults to bamboo.plankey from the config file"`
}

// QueueCmd shows the build queue.
type QueueCmd struct{}

// ArtifactsCmd lists the artifacts a job published.
type ArtifactsCmd struct {
	PlanBuildKey  string   `arg:"positional" help:"plan build key"`
	JobName       string   `arg:"positional" help:"job name"`
	ArtifactNames []string `arg:"positional" help:"artifact names"`
}

// DownloadCmd saves one artifact to a local file.
type DownloadCmd struct {
	URL         string `arg:"positional" help:"artifact URL"`
	Destination string `arg:"positional" help:"destination file"`
}

// Args are the global flags and the subcommands of the CLI.
type Args struct {
	Config   string `arg:"--config" help:"config file, by default config.{yaml,json,toml} in /etc/bamboo, $HOME/.bamboo or ."`
	Server   string `arg:"--server,env:BAMBOO_SERVER_URL" help:"Bamboo server URL"`
	Username string `arg:"--username" help:"overrides BAMBOO_USER"`
	Password string `arg:"--password" help:"overrides BAMBOO_PASS"`
	NoAuth   bool   `arg:"--no-auth" help:"send requests without credentials"`
	Verbose  bool   `arg:"-v,--verbose" help:"log every URL used"`
	LogLevel string `arg:"--log-level" help:"zerolog level"`

	Trigger   *TriggerCmd   `arg:"subcommand:trigger" help:"queue a plan build"`
	Stop      *StopCmd      `arg:"subcommand:stop" help:"stop a running plan build"`
	Query     *QueryCmd     `arg:"subcommand:query" help:"list the build results of a plan"`
	Plan      *QueryCmd     `arg:"subcommand:plan" help:"show a plan definition"`
	Queue     *QueueCmd     `arg:"subcommand:queue" help:"show the build queue"`
	Artifacts *ArtifactsCmd `arg:"subcommand:artifacts" help:"list the artifacts of a job"`
	Download  *DownloadCmd  `arg:"subcommand:download" help:"download an artifact"`
}

func main() {
	var args Args
	p := arg.MustParse(&args)
	if p.Subcommand() == nil {
		p.Fail("missing subcommand")
	}

	// Get configuration parameters from config
	v, err := loadConfig(args.Config)
	if err != nil {
		panic(fmt.Errorf("fatal error reading config file: %s", err))
	}

	level := args.LogLevel
	if level == "" {
		level = v.GetString("loglevel")
	}
	if err := common.ConfigureLogger(common.Config{LogLevel: level}); err != nil {
		panic(fmt.Errorf("fatal error reading log level: %s", err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	env, err := run(ctx, newClient(args, v), args)
	if err != nil {
		log.Error().Err(err).Msg("Bamboo request failed")
		os.Exit(1)
	}

	out, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("Error while marshalling result")
	}
	fmt.Println(string(out))

	if !env.Success {
		os.Exit(1)
	}
}

func loadConfig(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault("loglevel", "info")
	v.SetDefault("bamboo.auth", true)

	if path != "" {
		v.SetConfigFile(path)
		return v, v.ReadInConfig()
	}

	v.SetConfigName("config")
	v.AddConfigPath("/etc/bamboo/")
	v.AddConfigPath("$HOME/.bamboo")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return v, nil
		}
		return nil, err
	}
	return v, nil
}

// newClient merges flags over config file values. Credentials given neither
// way fall back to the environment.
func newClient(args Args, v *viper.Viper) *bamboo.Client {
	opts := []bamboo.Option{
		bamboo.WithServerURL(firstNonEmpty(args.Server, v.GetString("bamboo.serverurl"))),
		bamboo.WithPlanKey(v.GetString("bamboo.plankey")),
		bamboo.WithCredentials(
			firstNonEmpty(args.Username, v.GetString("bamboo.username")),
			firstNonEmpty(args.Password, v.GetString("bamboo.password")),
		),
		bamboo.WithVerbose(args.Verbose || v.GetBool("verbose")),
		bamboo.WithLogger(log.Logger),
	}
	if args.NoAuth || !v.GetBool("bamboo.auth") {
		opts = append(opts, bamboo.WithAuthDisabled())
	}
	return bamboo.NewClient(opts...)
}

func run(ctx context.Context, client *bamboo.Client, args Args) (bamboo.Envelope, error) {
	switch {
	case args.Trigger != nil:
		opts, err := triggerOptions(args.Trigger)
		if err != nil {
			return bamboo.Envelope{}, err
		}
		return client.TriggerPlanBuild(ctx, "", args.Trigger.PlanKey, opts)
	case args.Stop != nil:
		return client.StopBuild(ctx, "", args.Stop.PlanBuildKey)
	case args.Query != nil:
		return client.QueryPlan(ctx, "", args.Query.PlanKey)
	case args.Plan != nil:
		return client.QueryPlanDetails(ctx, "", args.Plan.PlanKey)
	case args.Queue != nil:
		return client.QueryQueue(ctx, "")
	case args.Artifacts != nil:
		return client.QueryJobForArtifacts(ctx, bamboo.ArtifactQuery{
			PlanBuildKey:  args.Artifacts.PlanBuildKey,
			JobName:       args.Artifacts.JobName,
			ArtifactNames: args.Artifacts.ArtifactNames,
		})
	case args.Download != nil:
		return client.GetArtifact(ctx, args.Download.URL, args.Download.Destination)
	}
	return bamboo.Envelope{}, errors.New("no subcommand given")
}

// triggerOptions returns nil, meaning all stages without variables, unless a
// flag changed the defaults.
func triggerOptions(cmd *TriggerCmd) (*bamboo.TriggerOptions, error) {
	if !cmd.SkipStages && len(cmd.Variables) == 0 && cmd.Revision == "" {
		return nil, nil
	}

	vars := make(map[string]string, len(cmd.Variables)+1)
	for _, kv := range cmd.Variables {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, errors.Errorf("invalid variable %q, expected key=value", kv)
		}
		vars[key] = value
	}
	if cmd.Revision != "" {
		vars["custom.revision"] = cmd.Revision
	}

	return &bamboo.TriggerOptions{
		ExecuteAllStages: !cmd.SkipStages,
		Variables:        vars,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
