// Command recoadapter runs the recognition-engine adapter against a
// websocket-based speech service, using a stdout-logging demo site so the
// wiring can be exercised without a real host application.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"github.com/northwing/recoadapter/pkg/adapter"
	"github.com/northwing/recoadapter/pkg/configutil"
	"github.com/northwing/recoadapter/pkg/logging"
	"github.com/northwing/recoadapter/pkg/resolver"
	"github.com/northwing/recoadapter/pkg/runner"
	"github.com/northwing/recoadapter/pkg/site"
	"github.com/northwing/recoadapter/pkg/transport"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML/JSON/TOML config file (optional)")
	flag.Parse()

	v := viper.New()
	v.SetEnvPrefix("recoadapter")
	v.AutomaticEnv()
	if *configPath != "" {
		v.SetConfigFile(*configPath)
		if err := v.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "recoadapter: reading config: %v\n", err)
			os.Exit(1)
		}
	}

	cfg, err := configutil.Load(v.AllSettings())
	if err != nil {
		fmt.Fprintf(os.Stderr, "recoadapter: invalid config: %v\n", err)
		os.Exit(1)
	}

	log := logging.InitLogger(parseLevel(cfg.Log.Level))

	dialer := transport.NewDialer(transport.Config{
		DefaultBaseURL: cfg.Transport.DefaultBaseURL,
		HandshakeWait:  cfg.Transport.HandshakeWait,
		SendQueueSize:  cfg.Transport.SendQueueSize,
	}, log)

	demoSite := site.Site{
		Properties: resolver.NewViperProperties(v),
		ListenFor:  demoListenFor{},
		Intent:     demoIntentInfo{},
		Results:    demoResultFactory{},
		Callbacks:  &demoCallbackSink{log: log},
	}

	a := adapter.New(demoSite, dialer, log, adapter.WithPreferredFrameMillis(cfg.Adapter.PreferredFrameMillis))
	if err := a.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "recoadapter: init: %v\n", err)
		os.Exit(1)
	}
	a.SetMode(cfg.Adapter.SingleShot)

	lifecycle := runner.NewLifecycleRunner(adapterDrainer{a}, runner.Hooks{
		OnStart: func() { log.Info("recoadapter_started") },
		OnStop:  func() { log.Info("recoadapter_stopped") },
	}, 5*time.Second)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := lifecycle.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "recoadapter: %v\n", err)
		os.Exit(1)
	}
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

type adapterDrainer struct {
	a *adapter.Adapter
}

func (d adapterDrainer) Drain() error {
	d.a.Term()
	return nil
}

type demoListenFor struct{}

func (demoListenFor) GetListenForList() []string { return nil }

type demoIntentInfo struct{}

func (demoIntentInfo) GetIntentInfo() site.IntentTriple { return site.IntentTriple{} }

type demoResult struct{ kind string }

func (r demoResult) Kind() string { return r.kind }

type demoResultFactory struct{}

func (demoResultFactory) CreateIntermediate(text string, offset, duration uint64, json string) site.Result {
	return demoResult{kind: "intermediate:" + text}
}
func (demoResultFactory) CreateFinal(text string, offset, duration uint64, json, luisJSON string) site.Result {
	return demoResult{kind: "final:" + text}
}
func (demoResultFactory) CreateTranslationIntermediate(text string, offset, duration uint64, translations map[string]string) site.Result {
	return demoResult{kind: "translation-intermediate:" + text}
}
func (demoResultFactory) CreateTranslationFinal(text string, offset, duration uint64, translations map[string]string, luisJSON string) site.Result {
	return demoResult{kind: "translation-final:" + text}
}
func (demoResultFactory) CreateTranslationSynthesis(audio []byte, statusEnd bool) site.Result {
	return demoResult{kind: fmt.Sprintf("translation-synthesis:%d bytes", len(audio))}
}

type demoCallbackSink struct{ log *slog.Logger }

func (s *demoCallbackSink) StartingTurn()          { s.log.Info("starting_turn") }
func (s *demoCallbackSink) StartedTurn(tag string) { s.log.Info("started_turn", "tag", tag) }
func (s *demoCallbackSink) DetectedSpeechStart(offset uint64) {
	s.log.Info("detected_speech_start", "offset", offset)
}
func (s *demoCallbackSink) DetectedSpeechEnd(offset uint64) {
	s.log.Info("detected_speech_end", "offset", offset)
}
func (s *demoCallbackSink) IntermediateResult(offset uint64, r site.Result) {
	s.log.Info("intermediate_result", "offset", offset, "result", r.Kind())
}
func (s *demoCallbackSink) FinalResult(offset uint64, r site.Result) {
	s.log.Info("final_result", "offset", offset, "result", r.Kind())
}
func (s *demoCallbackSink) TranslationSynthesis(r site.Result) {
	s.log.Info("translation_synthesis", "result", r.Kind())
}
func (s *demoCallbackSink) StoppedTurn()         { s.log.Info("stopped_turn") }
func (s *demoCallbackSink) RequestingAudioIdle() { s.log.Info("requesting_audio_idle") }
func (s *demoCallbackSink) CompletedSetFormatStop() {
	s.log.Info("completed_set_format_stop")
}
func (s *demoCallbackSink) Error(message string) { s.log.Error("adapter_error", "message", message) }
