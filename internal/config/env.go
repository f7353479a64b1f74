// Package config provides environment helpers for go-gaze commands.
//
// Flags always win. Environment variables fill in values the user did not
// pass on the command line.
package config

import (
	"os"
	"strconv"
	"time"
)

// Environment variable names.
const (
	EnvCamera         = "GAZE_CAMERA"
	EnvLogLevel       = "GAZE_LOG_LEVEL"
	EnvCalibrationDB  = "GAZE_CALIBRATION_DB"
	EnvLandmarkWorker = "GAZE_LANDMARK_WORKER"
	EnvWhisperModel   = "WHISPER_MODEL"
	EnvGoogleAPIKey   = "GOOGLE_API_KEY"
	EnvGoogleCreds    = "GOOGLE_APPLICATION_CREDENTIALS"
)

// Defaults.
const (
	DefaultCalibrationDB = "gaze-calibration.db"
	DefaultTranscriptLog = "transcription.log"
	DefaultListenAddr    = "127.0.0.1:8765"
)

// String returns the value of key or def when unset or empty.
func String(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Int returns the integer value of key or def when unset or unparsable.
func Int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Float returns the float value of key or def when unset or unparsable.
func Float(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// Bool returns the boolean value of key or def when unset or unparsable.
func Bool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// Duration returns the duration value of key or def when unset or unparsable.
func Duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// CameraIndex returns the camera device index from GAZE_CAMERA.
func CameraIndex(def int) int {
	return Int(EnvCamera, def)
}

// LogLevel returns the log level from GAZE_LOG_LEVEL.
func LogLevel(def string) string {
	return String(EnvLogLevel, def)
}

// CalibrationDB returns the calibration database path.
func CalibrationDB() string {
	return String(EnvCalibrationDB, DefaultCalibrationDB)
}

// LandmarkWorker returns the landmark worker command, if configured.
func LandmarkWorker() string {
	return os.Getenv(EnvLandmarkWorker)
}

// WhisperModel returns the whisper model path, if configured.
func WhisperModel() string {
	return os.Getenv(EnvWhisperModel)
}

// GoogleAPIKey returns the Google API key, if configured.
func GoogleAPIKey() string {
	return os.Getenv(EnvGoogleAPIKey)
}

// HasGoogleCredentials reports whether any Google credential source is set.
func HasGoogleCredentials() bool {
	return os.Getenv(EnvGoogleAPIKey) != "" || os.Getenv(EnvGoogleCreds) != ""
}
