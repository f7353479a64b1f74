package transcribe

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"net/http"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/speech/v1"

	"github.com/teslashibe/go-gaze/pkg/audioio"
)

// GoogleConfig configures the Cloud Speech-to-Text engine.
type GoogleConfig struct {
	APIKey     string // Uses Application Default Credentials when empty
	Language   string // Default: en-US
	SampleRate int

	// Endpoint and HTTPClient override the service endpoint and transport.
	Endpoint   string
	HTTPClient *http.Client
}

// GoogleEngine sends each buffer to Cloud Speech-to-Text v1 recognize.
type GoogleEngine struct {
	svc *speech.Service
	cfg GoogleConfig
}

// NewGoogleEngine creates the engine. Without an API key it falls back to
// Application Default Credentials and reports ErrModelMissing when none
// are configured.
func NewGoogleEngine(ctx context.Context, cfg GoogleConfig) (*GoogleEngine, error) {
	if cfg.Language == "" || cfg.Language == "auto" {
		cfg.Language = "en-US"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}

	var opts []option.ClientOption
	switch {
	case cfg.HTTPClient != nil:
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	case cfg.APIKey != "":
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	default:
		ts, err := google.DefaultTokenSource(ctx, speech.CloudPlatformScope)
		if err != nil {
			return nil, fmt.Errorf("%w: google credentials: %v", ErrModelMissing, err)
		}
		opts = append(opts, option.WithTokenSource(ts))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	svc, err := speech.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create speech service: %w", err)
	}
	return &GoogleEngine{svc: svc, cfg: cfg}, nil
}

// Name returns "google".
func (g *GoogleEngine) Name() string { return "google" }

// Transcribe implements Engine. Alternative confidence is reported as a
// log-probability so it combines like whisper's.
func (g *GoogleEngine) Transcribe(ctx context.Context, samples []float32) ([]Segment, error) {
	pcm := audioio.EncodePCM16(toPCM16(samples))
	req := &speech.RecognizeRequest{
		Config: &speech.RecognitionConfig{
			Encoding:                   "LINEAR16",
			SampleRateHertz:            int64(g.cfg.SampleRate),
			LanguageCode:               g.cfg.Language,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speech.RecognitionAudio{
			Content: base64.StdEncoding.EncodeToString(pcm),
		},
	}

	resp, err := g.svc.Speech.Recognize(req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("google recognize: %w", err)
	}

	var segs []Segment
	for _, r := range resp.Results {
		if r == nil || len(r.Alternatives) == 0 || r.Alternatives[0] == nil {
			continue
		}
		alt := r.Alternatives[0]
		text := strings.TrimSpace(alt.Transcript)
		if text == "" {
			continue
		}
		seg := Segment{Text: text}
		if alt.Confidence > 0 {
			seg.AvgLogProb = math.Log(alt.Confidence)
			seg.HasLogProb = true
		}
		segs = append(segs, seg)
	}
	return segs, nil
}

// Close implements Engine.
func (g *GoogleEngine) Close() error { return nil }
