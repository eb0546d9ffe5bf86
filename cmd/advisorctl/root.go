package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"plant-advisor/internal/common/config"
	"plant-advisor/internal/common/logger"
	"plant-advisor/internal/conversation"
	"plant-advisor/internal/knowledge"
	"plant-advisor/internal/recommend"
)

// app holds the engines every subcommand shares.
type app struct {
	cfg  *config.Config
	log  logger.Logger
	kb   *knowledge.StaticProvider
	rec  *recommend.Engine
	conv *conversation.Engine
}

type options struct {
	v       *viper.Viper
	cfgFile string
}

func newRootCmd() *cobra.Command {
	opts := &options{v: viper.New()}

	root := &cobra.Command{
		Use:   "advisorctl",
		Short: "Houseplant care advisor",
		Long: `advisorctl runs the guided plant care conversation and the care, diagnosis
and fertilizer predictors locally, without a workflow engine.`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.cfgFile, "config", "", "config file (default: built-in defaults)")
	flags.String("log-level", "warn", "log level: debug, info, warn, error")
	flags.Int("trees", 0, "trees per forest (overrides recommend.trees)")
	flags.Uint64("seed", 0, "training seed (overrides recommend.seed)")

	_ = opts.v.BindPFlag("logging.level", flags.Lookup("log-level"))
	_ = opts.v.BindPFlag("recommend.trees", flags.Lookup("trees"))
	_ = opts.v.BindPFlag("recommend.seed", flags.Lookup("seed"))

	root.AddCommand(
		newChatCmd(opts),
		newPredictCmd(opts),
		newTrainCmd(opts),
		newFeedbackCmd(opts),
		newCatalogCmd(),
		newKnowledgeCmd(opts),
	)
	return root
}

func (o *options) loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if o.cfgFile != "" {
		loaded, err := config.LoadFromFile(o.cfgFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	// an explicit --log-level wins over the file; without a file the flag default applies
	if o.v.IsSet("logging.level") || o.cfgFile == "" {
		cfg.Logging.Level = o.v.GetString("logging.level")
	}
	if trees := o.v.GetInt("recommend.trees"); trees > 0 {
		cfg.Recommend.Trees = trees
	}
	if seed := o.v.GetUint64("recommend.seed"); seed > 0 {
		cfg.Recommend.Seed = seed
	}
	return cfg, nil
}

// newApp trains the models on the seed corpus and wires an in-memory
// conversation engine.
func (o *options) newApp(ctx context.Context) (*app, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	log := logger.NewStructured(cfg.Logging.Level, "console")

	kb, err := knowledge.NewStaticProvider()
	if err != nil {
		return nil, err
	}

	rec := recommend.New(cfg.Recommend, log)
	if err := rec.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("train models: %w", err)
	}

	ttl := cfg.Conversation.TTL()
	if ttl <= 0 {
		ttl = time.Hour
	}
	conv := conversation.NewEngine(conversation.NewMemoryStore(ttl), rec, kb, log)

	return &app{cfg: cfg, log: log, kb: kb, rec: rec, conv: conv}, nil
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
