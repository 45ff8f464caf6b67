package tutor

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/rhazera/lingora/pkg/configutil"
	"github.com/rhazera/lingora/pkg/device"
	"github.com/rhazera/lingora/pkg/gen"
	"github.com/rhazera/lingora/pkg/live"
	"github.com/rhazera/lingora/pkg/logging"
	"github.com/rhazera/lingora/pkg/metrics"
	"github.com/rhazera/lingora/pkg/session"
)

type liveSettings struct {
	URL                 string `mapstructure:"url"`
	APIKey              string `mapstructure:"api_key"`
	Model               string `mapstructure:"model"`
	InputTranscription  *bool  `mapstructure:"input_transcription"`
	OutputTranscription *bool  `mapstructure:"output_transcription"`
}

type genSettings struct {
	BaseURL   string `mapstructure:"base_url"`
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	TimeoutMS *int   `mapstructure:"timeout_ms"`
	Retries   *int   `mapstructure:"retries"`
	BackoffMS *int   `mapstructure:"backoff_ms"`
}

// Engine wires configuration into running practice sessions and the
// one-shot tutoring services.
type Engine struct {
	cfg    Config
	obs    metrics.Observer
	closer func() error
	logger *slog.Logger
}

func NewEngine(cfg Config) (*Engine, error) {
	base := logging.InitLoggerTo(os.Stdout, logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)
	// Components derive their loggers from the default, so the configured
	// level and format only take effect once installed process-wide.
	slog.SetDefault(base)
	e := &Engine{
		cfg:    cfg,
		obs:    metrics.NoopObserver{},
		logger: logging.NewComponentLogger(base, "tutor.engine"),
	}
	if cfg.Observability.Metrics && cfg.Observability.ArtifactsDir != "" {
		f, err := os.OpenFile(
			filepath.Join(cfg.Observability.ArtifactsDir, "metrics.jsonl"),
			os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("metrics sink: %w", err)
		}
		async := metrics.NewAsyncObserver(metrics.NewJSONLObserver(f), 256)
		e.obs = async
		e.closer = func() error {
			async.Close()
			return f.Close()
		}
	}
	return e, nil
}

func (e *Engine) Config() Config { return e.cfg }

// NewPracticeSession builds a conversation session against the configured
// live endpoint using the given capture and playback devices.
func (e *Engine) NewPracticeSession(src device.Source, out device.Output, cb session.Callbacks) (*session.Session, error) {
	var ls liveSettings
	if err := configutil.DecodeSettings(e.cfg.Live.Settings, &ls); err != nil {
		return nil, fmt.Errorf("live settings: %w", err)
	}
	if err := configutil.RequireString(ls.URL, "live.settings.url"); err != nil {
		return nil, err
	}
	if err := configutil.RequireString(ls.APIKey, "live.settings.api_key"); err != nil {
		return nil, err
	}

	client := live.NewClient(live.Config{
		URL:                 ls.URL,
		APIKey:              ls.APIKey,
		Model:               ls.Model,
		SystemPrompt:        e.cfg.SystemPrompt(),
		Voice:               e.cfg.Language.Voice,
		InputTranscription:  configutil.BoolValue(ls.InputTranscription, true),
		OutputTranscription: configutil.BoolValue(ls.OutputTranscription, true),
	})

	sess := session.New(client, src, out, session.Config{
		OutputChannels:    e.cfg.Audio.OutputChannels,
		ReplicateChannels: e.cfg.Audio.ReplicateChannels,
		BargeInThreshold:  time.Duration(e.cfg.Turn.BargeInThresholdMS) * time.Millisecond,
		SpeechGate:        e.cfg.Turn.SpeechGate,
	}, cb)
	sess.SetObserver(e.obs)
	e.logger.Info("practice_session_built",
		slog.String("session_id", sess.ID()),
		slog.String("language", e.cfg.Language.Target),
		slog.String("level", e.cfg.Language.Level))
	return sess, nil
}

func (e *Engine) genClient() (*gen.Client, error) {
	var gs genSettings
	if err := configutil.DecodeSettings(e.cfg.Gen.Settings, &gs); err != nil {
		return nil, fmt.Errorf("gen settings: %w", err)
	}
	if err := configutil.RequireString(gs.BaseURL, "gen.settings.base_url"); err != nil {
		return nil, err
	}
	return gen.NewClient(gen.Config{
		BaseURL:   gs.BaseURL,
		APIKey:    gs.APIKey,
		Model:     gs.Model,
		Timeout:   time.Duration(configutil.IntValue(gs.TimeoutMS, 30000)) * time.Millisecond,
		Retries:   configutil.IntValue(gs.Retries, 2),
		BackoffMS: configutil.IntValue(gs.BackoffMS, 200),
	}), nil
}

// Exercises builds the listening-exercise service.
func (e *Engine) Exercises() (*ExerciseService, error) {
	client, err := e.genClient()
	if err != nil {
		return nil, err
	}
	return NewExerciseService(client, e.cfg.Language), nil
}

// Writing builds the writing-review service.
func (e *Engine) Writing() (*WritingService, error) {
	client, err := e.genClient()
	if err != nil {
		return nil, err
	}
	return NewWritingService(client, e.cfg.Language), nil
}

// Close flushes and releases the metrics sink.
func (e *Engine) Close() error {
	if e.closer != nil {
		return e.closer()
	}
	return nil
}
