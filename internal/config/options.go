// ABOUTME: Options struct shared by every multiplay command
// ABOUTME: Flat fields mapped to TOML sections, env vars and flags
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c"`

	// Audio settings
	AudioBackend string `help:"Output backend (malgo, oto, portaudio, virtual)" toml:"audio.backend" env:"AUDIO_BACKEND" flag:"backend"`

	// Paths
	DeviceList   string `help:"Device list file (JSON pairs of id and name)" toml:"paths.device_list" env:"DEVICE_LIST" flag:"device-list"`
	LatencyTable string `help:"Latency table file (TOML); empty disables compensation" toml:"paths.latency_table" env:"LATENCY_TABLE" flag:"latency-table"`
	AudioFile    string `help:"Audio file to play (mp3, flac, wav)" toml:"paths.audio_file" env:"AUDIO_FILE" flag:"file" short:"f"`

	// Playback settings
	PlaybackResampleTo int `help:"Resample audio to this rate before playback (0 keeps the file rate)" toml:"playback.resample_to" env:"RESAMPLE_TO" flag:"resample-to"`

	// Calibration settings
	CalibrationRounds          int           `help:"Measurements per device" toml:"calibration.rounds" env:"CALIBRATION_ROUNDS" flag:"rounds"`
	CalibrationTimeout         time.Duration `help:"Wait limit for a device to start consuming audio" toml:"calibration.timeout" env:"CALIBRATION_TIMEOUT" flag:"timeout"`
	CalibrationToneDuration    time.Duration `help:"Length of the calibration tone" toml:"calibration.tone_duration" env:"CALIBRATION_TONE_DURATION" flag:"tone-duration"`
	CalibrationIncludeOpenTime bool          `help:"Add stream open time to measured latency" toml:"calibration.include_open_time" env:"CALIBRATION_INCLUDE_OPEN_TIME" flag:"include-open-time"`

	// Metrics settings
	MetricsTextfile string `help:"Write Prometheus textfile metrics to this path" toml:"metrics.textfile" env:"METRICS_TEXTFILE" flag:"metrics-textfile"`

	// Logging settings
	LoggingLevel  string `help:"Global logging level (debug, info, warn, error)" toml:"logging.level" env:"LOGGING_LEVEL" flag:"log-level"`
	LoggingFormat string `help:"Logging format (text, json)" toml:"logging.format" env:"LOGGING_FORMAT" flag:"log-format"`
	LoggingFile   string `help:"Also write logs to this file" toml:"logging.file" env:"LOGGING_FILE" flag:"log-file"`

	LoggingCalibrate string `help:"Calibration logging level (empty follows the global level)" toml:"logging.calibrate" env:"LOGGING_CALIBRATE" flag:"log-level-calibrate"`
	LoggingDispatch  string `help:"Playback dispatcher logging level (empty follows the global level)" toml:"logging.dispatch" env:"LOGGING_DISPATCH" flag:"log-level-dispatch"`

	// UI settings
	UITUI bool `help:"Show live task view (logs go to the log file only)" toml:"ui.tui" env:"UI_TUI" flag:"tui"`
}

// Defaults returns the built-in option values
func Defaults() Options {
	return Options{
		Config:                     DefaultConfigFile,
		AudioBackend:               "malgo",
		DeviceList:                 "devices.json",
		LatencyTable:               "latency.toml",
		CalibrationRounds:          3,
		CalibrationTimeout:         2 * time.Second,
		CalibrationToneDuration:    time.Second,
		CalibrationIncludeOpenTime: true,
		LoggingLevel:               "info",
		LoggingFormat:              "text",
	}
}

// Validate checks option values that every command relies on
func (o *Options) Validate(backends []string) error {
	if !slices.Contains(backends, o.AudioBackend) {
		return fmt.Errorf("%w: unknown backend %q (supported: %s)",
			ErrMissingOrMalformed, o.AudioBackend, strings.Join(backends, ", "))
	}
	if o.PlaybackResampleTo < 0 {
		return fmt.Errorf("%w: resample rate must not be negative, got %d", ErrMissingOrMalformed, o.PlaybackResampleTo)
	}
	if o.CalibrationRounds < 1 {
		return fmt.Errorf("%w: calibration rounds must be at least 1, got %d", ErrMissingOrMalformed, o.CalibrationRounds)
	}
	if o.CalibrationTimeout <= 0 {
		return fmt.Errorf("%w: calibration timeout must be positive, got %v", ErrMissingOrMalformed, o.CalibrationTimeout)
	}
	if o.CalibrationToneDuration <= 0 {
		return fmt.Errorf("%w: tone duration must be positive, got %v", ErrMissingOrMalformed, o.CalibrationToneDuration)
	}
	if !validLevel(o.LoggingLevel) {
		return fmt.Errorf("%w: unknown logging level %q", ErrMissingOrMalformed, o.LoggingLevel)
	}
	for _, level := range []string{o.LoggingCalibrate, o.LoggingDispatch} {
		if level != "" && !validLevel(level) {
			return fmt.Errorf("%w: unknown module logging level %q", ErrMissingOrMalformed, level)
		}
	}
	switch o.LoggingFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown logging format %q", ErrMissingOrMalformed, o.LoggingFormat)
	}
	return nil
}

// ModuleLevels returns the per-module logging overrides that are set
func (o *Options) ModuleLevels() map[string]string {
	modules := make(map[string]string)
	if o.LoggingCalibrate != "" {
		modules["calibrate"] = o.LoggingCalibrate
	}
	if o.LoggingDispatch != "" {
		modules["dispatch"] = o.LoggingDispatch
	}
	return modules
}

func validLevel(level string) bool {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "warning", "error":
		return true
	default:
		return false
	}
}
