package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hireloop/interview-gateway/pkg/core/types"
)

type AuthMode string

const (
	AuthModeRequired AuthMode = "required"
	AuthModeOptional AuthMode = "optional"
	AuthModeDisabled AuthMode = "disabled"
)

type Config struct {
	Addr string

	AuthMode AuthMode
	APIKeys  map[string]struct{}

	// If true, client identity may be derived from proxy headers like X-Forwarded-For.
	// This should only be enabled when the gateway is deployed behind a trusted proxy/LB.
	TrustProxyHeaders bool

	MaxBodyBytes int64

	// CORS
	CORSAllowedOrigins map[string]struct{} // empty => disabled

	// Durable store. Empty DSN selects the in-memory store (dev/test only).
	PostgresDSN string

	// Ephemeral session store. Empty URL selects the in-memory store.
	RedisURL        string
	SessionChunkTTL time.Duration
	SessionMetaTTL  time.Duration

	// Collaborators.
	GeminiAPIKey      string
	GeminiModel       string
	DeepgramAPIKey    string
	ElevenLabsAPIKey  string
	ElevenLabsVoiceID string
	STTLanguage       string

	// Status tiers applied to the aggregate score on completion.
	StatusSelectedMin      int
	StatusPotentialMin     int
	StatusNotSelectedBelow int

	// Live WebSocket channel (/v1/live).
	LiveMaxAudioFrameBytes  int
	LiveMaxJSONMessageBytes int64
	LiveWSPingInterval      time.Duration
	LiveWSWriteTimeout      time.Duration
	LiveHandshakeTimeout    time.Duration

	// Operational defaults
	ReadHeaderTimeout   time.Duration
	ReadTimeout         time.Duration
	HandlerTimeout      time.Duration
	ShutdownGracePeriod time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                    envOr("IVGW_ADDR", ":8080"),
		AuthMode:                AuthMode(envOr("IVGW_AUTH_MODE", string(AuthModeRequired))),
		APIKeys:                 make(map[string]struct{}),
		TrustProxyHeaders:       envBoolOr("IVGW_TRUST_PROXY_HEADERS", false),
		MaxBodyBytes:            envInt64Or("IVGW_MAX_BODY_BYTES", 1<<20), // 1 MiB
		CORSAllowedOrigins:      make(map[string]struct{}),
		PostgresDSN:             envOr("IVGW_POSTGRES_DSN", ""),
		RedisURL:                envOr("IVGW_REDIS_URL", ""),
		SessionChunkTTL:         envDurationOr("IVGW_SESSION_CHUNK_TTL", time.Hour),
		SessionMetaTTL:          envDurationOr("IVGW_SESSION_META_TTL", 2*time.Hour),
		GeminiAPIKey:            envOr("IVGW_GEMINI_API_KEY", ""),
		GeminiModel:             envOr("IVGW_GEMINI_MODEL", "gemini-2.5-flash"),
		DeepgramAPIKey:          envOr("IVGW_DEEPGRAM_API_KEY", ""),
		ElevenLabsAPIKey:        envOr("IVGW_ELEVENLABS_API_KEY", ""),
		ElevenLabsVoiceID:       envOr("IVGW_ELEVENLABS_VOICE_ID", ""),
		STTLanguage:             envOr("IVGW_STT_LANGUAGE", ""),
		StatusSelectedMin:       envIntOr("IVGW_STATUS_SELECTED_MIN", 80),
		StatusPotentialMin:      envIntOr("IVGW_STATUS_POTENTIAL_MIN", 60),
		StatusNotSelectedBelow:  envIntOr("IVGW_STATUS_NOT_SELECTED_BELOW", 40),
		LiveMaxAudioFrameBytes:  envIntOr("IVGW_LIVE_MAX_AUDIO_FRAME_BYTES", 64*1024),
		LiveMaxJSONMessageBytes: envInt64Or("IVGW_LIVE_MAX_JSON_MESSAGE_BYTES", 256*1024),
		LiveWSPingInterval:      envDurationOr("IVGW_LIVE_WS_PING_INTERVAL", 20*time.Second),
		LiveWSWriteTimeout:      envDurationOr("IVGW_LIVE_WS_WRITE_TIMEOUT", 5*time.Second),
		LiveHandshakeTimeout:    envDurationOr("IVGW_LIVE_HANDSHAKE_TIMEOUT", 5*time.Second),
		ReadHeaderTimeout:       envDurationOr("IVGW_READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:             envDurationOr("IVGW_READ_TIMEOUT", 30*time.Second),
		HandlerTimeout:          envDurationOr("IVGW_TOTAL_REQUEST_TIMEOUT", 2*time.Minute),
		ShutdownGracePeriod:     envDurationOr("IVGW_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
	}

	switch cfg.AuthMode {
	case AuthModeRequired, AuthModeOptional, AuthModeDisabled:
	default:
		return Config{}, fmt.Errorf("IVGW_AUTH_MODE must be one of required|optional|disabled")
	}

	for _, key := range splitCSV(os.Getenv("IVGW_API_KEYS")) {
		cfg.APIKeys[key] = struct{}{}
	}

	for _, origin := range splitCSV(os.Getenv("IVGW_CORS_ORIGINS")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	if cfg.MaxBodyBytes <= 0 {
		return Config{}, fmt.Errorf("IVGW_MAX_BODY_BYTES must be > 0")
	}
	if cfg.SessionChunkTTL <= 0 {
		return Config{}, fmt.Errorf("IVGW_SESSION_CHUNK_TTL must be > 0")
	}
	if cfg.SessionMetaTTL <= 0 {
		return Config{}, fmt.Errorf("IVGW_SESSION_META_TTL must be > 0")
	}
	if cfg.SessionMetaTTL < cfg.SessionChunkTTL {
		return Config{}, fmt.Errorf("IVGW_SESSION_META_TTL must be >= IVGW_SESSION_CHUNK_TTL")
	}
	if cfg.StatusSelectedMin < cfg.StatusPotentialMin || cfg.StatusPotentialMin < cfg.StatusNotSelectedBelow {
		return Config{}, fmt.Errorf("status thresholds must be ordered: selected >= potential >= not-selected")
	}
	if cfg.LiveMaxAudioFrameBytes <= 0 {
		return Config{}, fmt.Errorf("IVGW_LIVE_MAX_AUDIO_FRAME_BYTES must be > 0")
	}
	if cfg.LiveMaxJSONMessageBytes <= 0 {
		return Config{}, fmt.Errorf("IVGW_LIVE_MAX_JSON_MESSAGE_BYTES must be > 0")
	}
	if cfg.LiveWSPingInterval <= 0 {
		return Config{}, fmt.Errorf("IVGW_LIVE_WS_PING_INTERVAL must be > 0")
	}
	if cfg.LiveWSWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("IVGW_LIVE_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.LiveHandshakeTimeout <= 0 {
		return Config{}, fmt.Errorf("IVGW_LIVE_HANDSHAKE_TIMEOUT must be > 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("IVGW_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ReadTimeout <= 0 {
		return Config{}, fmt.Errorf("IVGW_READ_TIMEOUT must be > 0")
	}
	if cfg.HandlerTimeout <= 0 {
		return Config{}, fmt.Errorf("IVGW_TOTAL_REQUEST_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("IVGW_SHUTDOWN_GRACE_PERIOD must be > 0")
	}

	if cfg.AuthMode == AuthModeRequired && len(cfg.APIKeys) == 0 {
		return Config{}, fmt.Errorf("IVGW_API_KEYS must be set when IVGW_AUTH_MODE=required")
	}

	return cfg, nil
}

// StatusThresholds returns the configured status tier boundaries.
func (cfg Config) StatusThresholds() types.StatusThresholds {
	return types.StatusThresholds{
		SelectedMin:      cfg.StatusSelectedMin,
		PotentialMin:     cfg.StatusPotentialMin,
		NotSelectedBelow: cfg.StatusNotSelectedBelow,
	}
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envBoolOr(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	switch strings.ToLower(raw) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return def
	}
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
