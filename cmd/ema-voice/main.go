// Command ema-voice is a voice assistant that listens, answers out loud and
// stops talking as soon as it is interrupted.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/invopop/jsonschema"
	orchestration "github.com/koscakluka/ema-voice/core"
	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/core/interrupt"
	"gopkg.in/yaml.v3"
)

const telemetryShutdownTimeout = 5 * time.Second

func main() {
	if err := execute(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "ema-voice:", err)
		os.Exit(1)
	}
}

func execute(args []string) error {
	app := kingpin.New("ema-voice", "Voice assistant with interruptible speech.")

	var configSet bool
	configPath := app.Flag("config", "YAML configuration file.").Short('c').
		Default("ema-voice.yaml").IsSetByUser(&configSet).String()
	envFiles := app.Flag("env-file", "Dotenv file with DEEPGRAM_API_KEY and OPENAI_API_KEY.").
		Default(".env").Strings()

	overrides := Config{}
	app.Flag("backend", "Audio backend (miniaudio, portaudio).").StringVar(&overrides.Audio.Backend)
	app.Flag("voice", "Deepgram voice.").StringVar(&overrides.TextToSpeech.Voice)
	app.Flag("speech-format", "Speech encoding (linear16, mp3).").StringVar(&overrides.TextToSpeech.Format)
	app.Flag("provider", "Responder provider (openai, ollama, groq).").StringVar(&overrides.Responder.Provider)
	app.Flag("base-url", "OpenAI compatible API base URL.").StringVar(&overrides.Responder.BaseURL)
	app.Flag("model", "Response model.").StringVar(&overrides.Responder.Model)
	app.Flag("silence-threshold", "Normalized peak below which a frame is silent.").
		Float64Var(&overrides.Segmentation.SilenceThreshold)
	app.Flag("silence-hangover", "Trailing silence that ends an utterance.").
		DurationVar(&overrides.Segmentation.SilenceHangover)
	app.Flag("log-file", "File logs are written to.").StringVar(&overrides.Logging.File)
	app.Flag("log-level", "Minimum log level.").StringVar(&overrides.Logging.Level)
	app.Flag("trace-file", "File traces are written to.").StringVar(&overrides.Logging.TraceFile)

	runCmd := app.Command("run", "Start the voice loop.").Default()
	headless := runCmd.Flag("headless", "Run without the terminal UI.").Bool()
	schemaCmd := app.Command("schema", "Print the JSON schema of the configuration file.")
	configCmd := app.Command("config", "Print the effective configuration.")

	command, err := app.Parse(args)
	if err != nil {
		return err
	}

	if command == schemaCmd.FullCommand() {
		return printSchema(os.Stdout)
	}

	config, err := LoadConfig(*configPath, configSet)
	if err != nil {
		return err
	}
	if err := config.Overlay(overrides); err != nil {
		return err
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	switch command {
	case configCmd.FullCommand():
		encoder := yaml.NewEncoder(os.Stdout)
		defer encoder.Close()
		return encoder.Encode(config)
	case runCmd.FullCommand():
		if err := loadEnv(*envFiles...); err != nil {
			return err
		}
		return run(context.Background(), config, *headless)
	}

	return nil
}

func printSchema(w io.Writer) error {
	reflector := jsonschema.Reflector{
		FieldNameTag:               "yaml",
		RequiredFromJSONSchemaTags: true,
	}
	schema := reflector.Reflect(&Config{})

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func run(ctx context.Context, config Config, headless bool) error {
	logOut, closeLog, err := openOutput(config.Logging.File, headless)
	if err != nil {
		return err
	}
	defer closeLog()

	var traceOut io.Writer
	if config.Logging.TraceFile != "" {
		out, closeTrace, err := openOutput(config.Logging.TraceFile, headless)
		if err != nil {
			return err
		}
		defer closeTrace()
		traceOut = out
	}

	shutdownTelemetry, err := setupTelemetry(logOut, config.Logging.Level, traceOut)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "ema-voice: failed to flush telemetry:", err)
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if headless {
		return runHeadless(ctx, cancel, config)
	}
	return runTUI(ctx, cancel, config)
}

// openOutput opens path for appending. Without a path logs go to stderr in
// headless mode and nowhere while the terminal UI owns the screen.
func openOutput(path string, headless bool) (io.Writer, func(), error) {
	if path == "" {
		if headless {
			return os.Stderr, func() {}, nil
		}
		return io.Discard, func() {}, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return f, func() { _ = f.Close() }, nil
}

func runHeadless(ctx context.Context, quit context.CancelFunc, config Config) error {
	o, err := newOrchestrator(config, headlessSources(config, quit)...)
	if err != nil {
		return err
	}
	defer o.Close()

	// Raw terminal mode needs explicit carriage returns
	fmt.Print("Listening. Press space to interrupt, Ctrl+C to quit.\r\n")
	return o.Orchestrate(ctx,
		orchestration.WithTranscriptionCallback(func(transcript string) {
			fmt.Printf("You: %s\r\n", transcript)
		}),
		orchestration.WithResponseCallback(func(response string) {
			fmt.Printf("Assistant: %s\r\n", response)
		}),
		orchestration.WithInterruptionCallback(func(string) {
			fmt.Print("Interrupted, listening for your voice now.\r\n")
		}),
		orchestration.WithShutdownRequestedCallback(quit),
	)
}

func runTUI(ctx context.Context, quit context.CancelFunc, config Config) error {
	// The terminal UI owns stdin, key presses reach the orchestrator through it
	var sources []interrupt.Source
	if config.Interrupts.Signal {
		sources = append(sources, interrupt.NewSignalSource())
	}

	o, err := newOrchestrator(config, sources...)
	if err != nil {
		return err
	}
	defer o.Close()

	model := newStatusModel(func() {
		o.Interrupt(interrupt.NewEvent(interrupt.KindKeyPress, "space"))
	})
	program := tea.NewProgram(model, tea.WithContext(ctx))

	orchestrated := make(chan error, 1)
	go func() {
		err := o.Orchestrate(ctx, orchestration.WithEventCallback(func(event events.Event) {
			program.Send(eventMsg{event: event})
		}))
		program.Send(orchestratorDoneMsg{err: err})
		orchestrated <- err
	}()

	_, runErr := program.Run()
	quit()
	o.Close()
	err = <-orchestrated

	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return errors.Join(runErr, err)
	}
	return err
}
