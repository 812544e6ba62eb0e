// Command assistant-voice-trigger records a spoken question when a glasses
// button is released, the microphone hears an onset, or ENTER is pressed,
// transcribes it and hands the text to a language model.
//
// Usage:
//
//	assistant-voice-trigger run [--config config.yaml]
//	assistant-voice-trigger devices
package main

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"assistant-voice-trigger/config"
)

var (
	configPath string
	modelPath  string
	microphone int
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "assistant-voice-trigger",
	Short:         "Button and voice triggered speech recorder",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")

	runCmd.Flags().StringVarP(&modelPath, "model", "m", "", "whisper model file, overrides transcription.model_path")
	runCmd.Flags().IntVar(&microphone, "microphone", -2, "input device index, overrides audio.microphone")

	rootCmd.AddCommand(runCmd, devicesCmd)
}

// loadConfig returns the defaults when no file is given, with command line
// overrides applied.
func loadConfig(fs afero.Fs) (*config.Config, error) {
	cfg := config.Default()

	if configPath != "" {
		loaded, err := config.Load(fs, configPath)
		if err != nil {
			return nil, err
		}

		cfg = loaded
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if modelPath != "" {
		cfg.Transcription.Engine = config.EngineWhisper
		cfg.Transcription.ModelPath = modelPath
	}

	if microphone >= -1 {
		cfg.Audio.Microphone = microphone
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
