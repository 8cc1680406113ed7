package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"llmhost/internal/chat"
	"llmhost/internal/config"
	"llmhost/internal/deploy"
	"llmhost/internal/hosting"
	"llmhost/internal/httpapi"
	"llmhost/internal/serving"
)

// Version is set at build time with -ldflags "-X llmhost/internal/cli.Version=...".
var Version = "dev"

// buildRootCmdWith constructs the command tree wired to cfg.
func buildRootCmdWith(cfg *Config) *cobra.Command {
	var log zerolog.Logger
	root := &cobra.Command{
		Use:           "llmhost",
		Short:         "Derive serving limits for compiled LLM artifacts and deploy them to a hosting service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&cfg.ConfigPath, "config", "c", cfg.ConfigPath, "Deployment file (.yaml, .yml, .json, .toml)")
	root.PersistentFlags().StringVar(&cfg.EnvFile, "env-file", cfg.EnvFile, "File with LLMHOST_* session variables (defaults LLMHOST_ENV_FILE or .env)")
	root.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug|info|warn|error (defaults LLMHOST_LOG_LEVEL or info)")
	root.PersistentFlags().StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: console|json")
	root.PersistentFlags().StringVar(&cfg.ArtifactsDir, "artifacts-dir", cfg.ArtifactsDir, "Directory of compiled artifacts with compile manifests")
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		log = setupLogging(cfg.LogLevel, cfg.LogFormat, cfg.Stderr)
	}

	root.AddCommand(
		newDeriveCmd(cfg),
		newPlanCmd(cfg, &log),
		newDeployCmd(cfg, &log),
		newPredictCmd(cfg, &log),
		newTeardownCmd(cfg, &log),
		newRunCmd(cfg, &log),
		newServeCmd(cfg, &log),
		&cobra.Command{Use: "version", Short: "Print the version", RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), Version)
			return err
		}},
	)

	completionCmd := &cobra.Command{Use: "completion", Short: "Generate the autocompletion script for the specified shell"}
	completionCmd.AddCommand(&cobra.Command{Use: "bash", Short: "Bash completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenBashCompletion(cmd.OutOrStdout()) }})
	completionCmd.AddCommand(&cobra.Command{Use: "zsh", Short: "Zsh completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenZshCompletion(cmd.OutOrStdout()) }})
	completionCmd.AddCommand(&cobra.Command{Use: "fish", Short: "Fish completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenFishCompletion(cmd.OutOrStdout(), true) }})
	root.AddCommand(completionCmd)

	return root
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func newDeriveCmd(cfg *Config) *cobra.Command {
	var (
		p      serving.Params
		format string
	)
	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Compute the serving configuration and container environment",
		Example: "  llmhost derive --model-id aws-neuron/zephyr-7b --batch-size 4 --sequence-length 2048 --max-input-length 1512\n" +
			"  llmhost derive -c deploy.yaml --format env",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.ConfigPath != "" {
				dep, err := config.Load(cfg.ConfigPath)
				if err != nil {
					return err
				}
				fromFile := dep.Params()
				f := cmd.Flags()
				if !f.Changed("model-id") {
					p.ModelID = fromFile.ModelID
				}
				if !f.Changed("batch-size") {
					p.BatchSize = fromFile.BatchSize
				}
				if !f.Changed("sequence-length") {
					p.SequenceLength = fromFile.SequenceLength
				}
				if !f.Changed("max-input-length") {
					p.MaxInputLength = fromFile.MaxInputLength
				}
				if !f.Changed("input-margin") {
					p.InputMargin = fromFile.InputMargin
				}
			}
			sc, err := serving.Derive(p)
			if err != nil {
				return err
			}
			env, err := hosting.EnvFromConfig(sc, nil)
			if err != nil {
				return err
			}
			switch format {
			case "env":
				_, err = fmt.Fprint(cmd.OutOrStdout(), hosting.FormatEnv(env))
				return err
			case "json", "":
				view := httpapi.ServingConfigView(sc)
				view.Env = env
				return printJSON(cmd.OutOrStdout(), view)
			default:
				return usageError{msg: "unknown --format " + format + " (want json or env)"}
			}
		},
	}
	cmd.Flags().StringVar(&p.ModelID, "model-id", "", "Model identifier of the compiled artifact")
	cmd.Flags().IntVar(&p.BatchSize, "batch-size", 0, "Batch size the artifact was compiled with")
	cmd.Flags().IntVar(&p.SequenceLength, "sequence-length", 0, "Sequence length the artifact was compiled with")
	cmd.Flags().IntVar(&p.MaxInputLength, "max-input-length", 0, "Maximum prompt length (default sequence length minus input margin)")
	cmd.Flags().IntVar(&p.InputMargin, "input-margin", 0, fmt.Sprintf("Tokens reserved for generation when --max-input-length is unset (default %d)", serving.DefaultInputMargin))
	cmd.Flags().StringVar(&format, "format", "json", "Output format: json|env")
	return cmd
}

// planView is the printable form of a deploy.Plan.
type planView struct {
	Name                      string            `json:"name"`
	Image                     string            `json:"image"`
	ArtifactURI               string            `json:"artifact_uri,omitempty"`
	InstanceType              string            `json:"instance_type"`
	InstanceCount             int               `json:"instance_count"`
	HealthCheckTimeoutSeconds int               `json:"health_check_timeout_seconds"`
	Serving                   any               `json:"serving"`
	Env                       map[string]string `json:"env"`
}

func newPlanCmd(cfg *Config, log *zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Resolve a deployment without calling the control plane",
		RunE: func(cmd *cobra.Command, args []string) error {
			dep, err := loadDeployment(cfg)
			if err != nil {
				return err
			}
			e, err := newEnv(cfg, dep, *log)
			if err != nil {
				return err
			}
			p, err := e.deployer.Plan(cmd.Context(), dep)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), planView{
				Name:                      p.Name,
				Image:                     p.Image,
				ArtifactURI:               p.Artifact.URI,
				InstanceType:              p.InstanceType,
				InstanceCount:             p.InstanceCount,
				HealthCheckTimeoutSeconds: int(p.HealthCheckTimeout / time.Second),
				Serving:                   httpapi.ServingConfigView(p.Serving),
				Env:                       p.Env,
			})
		},
	}
}

func newDeployCmd(cfg *Config, log *zerolog.Logger) *cobra.Command {
	var cleanup bool
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Provision an endpoint and wait until it is in service",
		RunE: func(cmd *cobra.Command, args []string) error {
			dep, err := loadDeployment(cfg)
			if err != nil {
				return err
			}
			if err := dep.Validate(); err != nil {
				return err
			}
			e, err := newEnv(cfg, dep, *log)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd)
			defer cancel()
			ep, err := e.deployer.Deploy(ctx, dep)
			if err != nil {
				created := ep.Name != "" || ep.ConfigName != "" || ep.ModelName != ""
				if created && cleanup {
					tctx, tcancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Minute)
					defer tcancel()
					if terr := e.deployer.Teardown(tctx, ep); terr != nil {
						log.Error().Err(terr).Msg("cleanup after failed deploy")
					}
				}
				return err
			}
			return printJSON(cmd.OutOrStdout(), httpapi.EndpointView(ep))
		},
	}
	cmd.Flags().BoolVar(&cleanup, "cleanup-on-failure", envBool("LLMHOST_CLEANUP_ON_FAILURE", true), "Delete created objects when provisioning fails")
	return cmd
}

func newPredictCmd(cfg *Config, log *zerolog.Logger) *cobra.Command {
	var (
		prompt, system, user, template string
		params                         hosting.Parameters
	)
	cmd := &cobra.Command{
		Use:   "predict <endpoint>",
		Short: "Send a generation request to a live endpoint",
		Example: "  llmhost predict zephyr-7b-4f2a9c --prompt 'What is deep learning?'\n" +
			"  llmhost predict zephyr-7b-4f2a9c --system 'You are terse.' --user 'What is deep learning?' --template zephyr",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var dep config.Deployment
			if cfg.ConfigPath != "" {
				var err error
				if dep, err = config.Load(cfg.ConfigPath); err != nil {
					return err
				}
			}
			p := deploy.Prompt{Text: prompt, Template: template, Parameters: deploy.ParametersFromGeneration(dep.Generation)}
			mergeParameters(cmd, &p.Parameters, params)
			if prompt == "" {
				if user == "" {
					return usageError{msg: "--prompt or --user is required"}
				}
				if system != "" {
					p.Messages = append(p.Messages, chat.Message{Role: chat.RoleSystem, Content: system})
				}
				p.Messages = append(p.Messages, chat.Message{Role: chat.RoleUser, Content: user})
			}
			e, err := newEnv(cfg, dep, *log)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd)
			defer cancel()
			ep, err := e.client.Describe(ctx, args[0])
			if err != nil {
				return err
			}
			if ep.Status != hosting.StatusInService {
				return fmt.Errorf("endpoint %s is %s", ep.Name, ep.Status)
			}
			res, err := e.deployer.Generate(ctx, ep, p)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]string{
				"endpoint":       res.Endpoint,
				"prompt":         res.Prompt,
				"generated_text": res.Text,
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&prompt, "prompt", "", "Raw prompt, sent as-is")
	f.StringVar(&system, "system", "", "System message (chat mode)")
	f.StringVar(&user, "user", "", "User message (chat mode)")
	f.StringVar(&template, "template", "", "Chat template: llama-2|llama-3|chatml|zephyr|mistral")
	f.IntVar(&params.MaxNewTokens, "max-new-tokens", 0, "Maximum tokens to generate")
	f.BoolVar(&params.DoSample, "do-sample", false, "Sample instead of greedy decoding")
	f.Float64Var(&params.Temperature, "temperature", 0, "Sampling temperature")
	f.IntVar(&params.TopK, "top-k", 0, "Top-k sampling")
	f.Float64Var(&params.TopP, "top-p", 0, "Nucleus sampling")
	return cmd
}

// mergeParameters overrides dst with the generation flags the user set.
func mergeParameters(cmd *cobra.Command, dst *hosting.Parameters, flags hosting.Parameters) {
	f := cmd.Flags()
	if f.Changed("max-new-tokens") {
		dst.MaxNewTokens = flags.MaxNewTokens
	}
	if f.Changed("do-sample") {
		dst.DoSample = flags.DoSample
	}
	if f.Changed("temperature") {
		dst.Temperature = flags.Temperature
	}
	if f.Changed("top-k") {
		dst.TopK = flags.TopK
	}
	if f.Changed("top-p") {
		dst.TopP = flags.TopP
	}
}

func newTeardownCmd(cfg *Config, log *zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "teardown <endpoint>",
		Short: "Delete an endpoint with its configuration and model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cfg, config.Deployment{}, *log)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd)
			defer cancel()
			ep, err := e.client.Describe(ctx, args[0])
			if err != nil {
				return err
			}
			return e.deployer.Teardown(ctx, ep)
		},
	}
}

// reportView is the printable form of a deploy.Report.
type reportView struct {
	Endpoint any                 `json:"endpoint"`
	Results  []map[string]string `json:"results"`
	TornDown bool                `json:"torn_down"`
}

func newRunCmd(cfg *Config, log *zerolog.Logger) *cobra.Command {
	var keep bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Deploy, send the sample requests, then tear down",
		RunE: func(cmd *cobra.Command, args []string) error {
			dep, err := loadDeployment(cfg)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("keep-endpoint") {
				dep.KeepEndpoint = keep
			}
			e, err := newEnv(cfg, dep, *log)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd)
			defer cancel()
			rep, runErr := e.deployer.Run(ctx, dep)
			view := reportView{Endpoint: httpapi.EndpointView(rep.Endpoint), TornDown: rep.TornDown}
			for _, r := range rep.Results {
				view.Results = append(view.Results, map[string]string{"prompt": r.Prompt, "generated_text": r.Text})
			}
			if rep.Endpoint.Name != "" || len(rep.Results) > 0 {
				if err := printJSON(cmd.OutOrStdout(), view); err != nil {
					return err
				}
			}
			return runErr
		},
	}
	cmd.Flags().BoolVar(&keep, "keep-endpoint", false, "Leave the endpoint running after the samples")
	return cmd
}

func newServeCmd(cfg *Config, log *zerolog.Logger) *cobra.Command {
	opts := serveOptions{
		Addr:            envStr("LLMHOST_ADDR", ":8080"),
		MaxBodyBytes:    1 << 20,
		ShutdownTimeout: 10 * time.Second,
		CORSMethods:     "GET,POST,DELETE,OPTIONS",
		CORSHeaders:     "Content-Type,Authorization",
	}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			var dep config.Deployment
			if cfg.ConfigPath != "" {
				var err error
				if dep, err = config.Load(cfg.ConfigPath); err != nil {
					return err
				}
			}
			e, err := newEnv(cfg, dep, *log)
			if err != nil {
				return err
			}
			ln, err := net.Listen("tcp", opts.Addr)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd)
			defer cancel()
			return serve(ctx, opts, e.deployer, ln, *log)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.Addr, "addr", opts.Addr, "HTTP listen address (defaults LLMHOST_ADDR or :8080)")
	f.Int64Var(&opts.MaxBodyBytes, "max-body-bytes", opts.MaxBodyBytes, "Maximum JSON request body size")
	f.DurationVar(&opts.GenerateTimeout, "generate-timeout", 0, "Timeout for generate requests (0 disables)")
	f.DurationVar(&opts.ShutdownTimeout, "shutdown-timeout", opts.ShutdownTimeout, "Graceful shutdown timeout")
	f.BoolVar(&opts.CORSEnabled, "cors", envBool("LLMHOST_CORS_ENABLED", false), "Enable CORS")
	f.StringVar(&opts.CORSOrigins, "cors-origins", envStr("LLMHOST_CORS_ORIGINS", "*"), "Comma-separated allowed origins")
	f.StringVar(&opts.CORSMethods, "cors-methods", opts.CORSMethods, "Comma-separated allowed methods")
	f.StringVar(&opts.CORSHeaders, "cors-headers", opts.CORSHeaders, "Comma-separated allowed headers")
	f.IntVar(&cfg.MaxQueueDepth, "max-queue-depth", 0, "Generation requests queued per endpoint (0 means twice its concurrency)")
	f.DurationVar(&cfg.MaxWait, "max-wait", 30*time.Second, "How long a generation request waits for admission before 429")
	return cmd
}
