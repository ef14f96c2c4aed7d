package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"assistant-voice-pipeline/audiodev"
	"assistant-voice-pipeline/clients/chat"
	"assistant-voice-pipeline/clients/media"
	"assistant-voice-pipeline/clients/smarthome"
	"assistant-voice-pipeline/clients/stt"
	"assistant-voice-pipeline/clients/tts"
	"assistant-voice-pipeline/config"
	"assistant-voice-pipeline/orchestrator"
	"assistant-voice-pipeline/playback"
	"assistant-voice-pipeline/recorder"
	"assistant-voice-pipeline/vad"
	"assistant-voice-pipeline/wakeword"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/joho/godotenv"
)

const targetRate = 16000

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration")
	noWake := flag.Bool("no-wake", false, "skip the wake word and start a turn on Enter")
	flag.Parse()

	// Secrets come from the environment; a local .env is a convenience,
	// not a requirement.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *noWake); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(ctx context.Context, cfg *config.Config, noWake bool) error {
	arbiter, err := audiodev.NewArbiter(&audiodev.Config{
		SampleRate:   cfg.Audio.MicRate,
		ChunkSamples: cfg.ChunkSamples(),
		NameHint:     cfg.Audio.DeviceHint,
	})
	if err != nil {
		return err
	}
	defer arbiter.Close()

	sink, err := playback.NewSink()
	if err != nil {
		return err
	}
	defer sink.Close()

	rec, err := buildRecorder(cfg, arbiter)
	if err != nil {
		return err
	}

	var engine *wakeword.Engine
	if !noWake {
		engine, err = buildWakeEngine(cfg, arbiter)
		if err != nil {
			return err
		}
	}

	orch, err := buildOrchestrator(cfg, sink)
	if err != nil {
		return err
	}

	log.Printf("assistant ready (mic=%dHz chunk=%dms wake=%t)",
		cfg.Audio.MicRate, cfg.Audio.ChunkMs, !noWake)

	if err := sink.Beep(ctx); err != nil {
		log.Printf("startup beep: %v", err)
	}

	return listen(ctx, engine, rec, orch, sink)
}

// listen runs the outer loop forever: wait for a wake (or Enter), record one
// utterance, run the turn. Turn level failures are logged, never propagated;
// only cancellation ends the loop.
func listen(ctx context.Context, engine *wakeword.Engine, rec *recorder.Recorder, orch *orchestrator.Orchestrator, sink *playback.Sink) error {
	stdin := bufio.NewScanner(os.Stdin)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		if engine != nil {
			if _, err := engine.Run(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}

				log.Printf("wake word: %v", err)
				time.Sleep(time.Second)

				continue
			}

			if err := sink.Beep(ctx); err != nil {
				log.Printf("wake beep: %v", err)
			}
		} else {
			fmt.Println("press Enter to talk")

			if !stdin.Scan() {
				return stdin.Err()
			}
		}

		utterance, err := rec.Record(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}

			if errors.Is(err, recorder.ErrNoSpeech) {
				log.Printf("heard nothing, going back to sleep")
			} else {
				log.Printf("recording: %v", err)
			}

			continue
		}

		if err := orch.RunTurn(ctx, utterance); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}

			log.Printf("turn failed: %v", err)
		}
	}
}

func buildRecorder(cfg *config.Config, arbiter *audiodev.Arbiter) (*recorder.Recorder, error) {
	backend := vad.Select(&vad.Config{
		SileroModelPath: cfg.VAD.SileroModel,
		Threshold:       cfg.VAD.Threshold,
		Aggressiveness:  cfg.VAD.Aggressiveness,
		Sensitivity:     cfg.VAD.Sensitivity,
		FloorRMS:        cfg.VAD.FloorRMS,
	})

	return recorder.New(&recorder.Config{
		Mic:                 arbiter,
		Backend:             backend,
		MicRate:             cfg.Audio.MicRate,
		TargetRate:          targetRate,
		SilenceDuration:     cfg.Recorder.SilenceDuration.Std(),
		MinSpeechDuration:   cfg.Recorder.MinSpeechDuration.Std(),
		MinRecordDuration:   cfg.Recorder.MinRecordDuration.Std(),
		MaxRecordDuration:   cfg.Recorder.MaxRecordDuration.Std(),
		CalibrationDuration: cfg.Recorder.CalibrationDuration.Std(),
		RetainTail:          cfg.Recorder.RetainTail.Std(),
	})
}

func buildWakeEngine(cfg *config.Config, arbiter *audiodev.Arbiter) (*wakeword.Engine, error) {
	var model whisper.Model

	keywords := make([]wakeword.Keyword, 0, len(cfg.Wake.Keywords))
	for _, spec := range cfg.Wake.Keywords {
		var scorer wakeword.Scorer

		if spec.Phrase != "" {
			if model == nil {
				var err error
				if model, err = whisper.New(cfg.Wake.WhisperModel); err != nil {
					return nil, fmt.Errorf("wake word model: %w", err)
				}
			}

			gate := vad.Select(&vad.Config{
				SileroModelPath: cfg.VAD.SileroModel,
				Threshold:       cfg.VAD.Threshold,
				Aggressiveness:  cfg.VAD.Aggressiveness,
				Sensitivity:     cfg.VAD.Sensitivity,
				FloorRMS:        cfg.VAD.FloorRMS,
			})

			transcriber, err := wakeword.NewTranscribeScorer(model, spec.Phrase, gate)
			if err != nil {
				return nil, err
			}

			scorer = transcriber
		} else {
			scorer = wakeword.NewFluxScorer()
		}

		keywords = append(keywords, wakeword.Keyword{
			Name:      spec.Name,
			Threshold: spec.Threshold,
			Scorer:    scorer,
		})
	}

	return wakeword.New(&wakeword.Config{
		Mic:      arbiter,
		Keywords: keywords,
		MicRate:  cfg.Audio.MicRate,
	})
}

func buildOrchestrator(cfg *config.Config, sink *playback.Sink) (*orchestrator.Orchestrator, error) {
	transcriber, err := buildSTT(cfg)
	if err != nil {
		return nil, err
	}

	chatClient, err := chat.New(&chat.Config{
		APIKey:       requireEnv("OPENAI_API_KEY"),
		BaseURL:      cfg.Chat.BaseURL,
		Model:        cfg.Chat.Model,
		SystemPrompt: cfg.Chat.SystemPrompt,
		MaxHistory:   cfg.Chat.MaxHistory,
		MaxTokens:    cfg.Chat.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	synthesizer, err := buildTTS(cfg)
	if err != nil {
		return nil, err
	}

	return orchestrator.New(&orchestrator.Config{
		STT:      transcriber,
		Chat:     chatClient,
		TTS:      synthesizer,
		Player:   sink,
		Handlers: buildHandlers(cfg),
	})
}

func buildSTT(cfg *config.Config) (stt.Engine, error) {
	var engines []stt.Engine

	if cfg.STT.Cloud.Model != "" {
		key := os.Getenv("GROQ_API_KEY")
		if key == "" {
			key = requireEnv("OPENAI_API_KEY")
		}

		cloud, err := stt.NewCloud(&stt.CloudConfig{
			APIKey:  key,
			BaseURL: cfg.STT.Cloud.BaseURL,
			Model:   cfg.STT.Cloud.Model,
		})
		if err != nil {
			return nil, err
		}

		engines = append(engines, cloud)
	}

	if cfg.STT.LocalModel != "" {
		local, err := stt.NewLocal(cfg.STT.LocalModel)
		if err != nil {
			return nil, err
		}

		engines = append(engines, local)
	}

	return stt.NewChain(engines...)
}

func buildTTS(cfg *config.Config) (tts.Synthesizer, error) {
	var synthesizers []tts.Synthesizer

	if cfg.TTS.Cloud.Model != "" {
		cloud, err := tts.NewCloud(&tts.CloudConfig{
			APIKey:      requireEnv("OPENAI_API_KEY"),
			BaseURL:     cfg.TTS.Cloud.BaseURL,
			Model:       cfg.TTS.Cloud.Model,
			Voice:       cfg.TTS.Cloud.Voice,
			VoiceByLang: cfg.TTS.Cloud.VoiceByLang,
		})
		if err != nil {
			return nil, err
		}

		synthesizers = append(synthesizers, cloud)
	}

	if cfg.TTS.Piper.Model != "" {
		local, err := tts.NewLocal(&tts.LocalConfig{
			Binary: cfg.TTS.Piper.Binary,
			Model:  cfg.TTS.Piper.Model,
			Rate:   cfg.TTS.Piper.Rate,
		})
		if err != nil {
			return nil, err
		}

		synthesizers = append(synthesizers, local)
	}

	return tts.NewChain(synthesizers...)
}

func buildHandlers(cfg *config.Config) []orchestrator.DirectiveHandler {
	var handlers []orchestrator.DirectiveHandler

	if cfg.SmartHome.BaseURL != "" {
		client, err := smarthome.New(&smarthome.Config{
			BaseURL: cfg.SmartHome.BaseURL,
			Token:   os.Getenv("HOMEASSISTANT_TOKEN"),
		})
		if err != nil {
			log.Printf("smarthome disabled: %v", err)
		} else {
			handlers = append(handlers, client)
		}
	}

	if cfg.Media.BaseURL != "" {
		client, err := media.New(&media.Config{
			BaseURL: cfg.Media.BaseURL,
			Token:   os.Getenv("SPOTIFY_TOKEN"),
		})
		if err != nil {
			log.Printf("media disabled: %v", err)
		} else {
			handlers = append(handlers, client)
		}
	}

	return handlers
}

// requireEnv reads an environment variable that the assistant cannot run
// without.
func requireEnv(name string) string {
	value := os.Getenv(name)
	if value == "" {
		log.Fatalf("%s is not set", name)
	}

	return value
}
