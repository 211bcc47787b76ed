package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind            string   `yaml:"bind"`
	Port            int      `yaml:"port"`
	CORSOrigins     []string `yaml:"cors_origins"`
	BodyLimitMB     int      `yaml:"body_limit_mb"`
	RateLimitPerMin int      `yaml:"rate_limit_per_minute"`
}

type Config struct {
	RuntimeName string          `yaml:"runtime_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	OpenAI      OpenAIConfig    `yaml:"openai"`
	Bus         BusConfig       `yaml:"bus"`
	Artifacts   ArtifactsConfig `yaml:"artifacts"`
	Pipeline    PipelineConfig  `yaml:"pipeline"`
	ASR         ASRConfig       `yaml:"asr"`
	MT          MTConfig        `yaml:"mt"`
	TTS         TTSConfig       `yaml:"tts"`
}

// OpenAIConfig is shared by every backend that talks to the OpenAI API
// (asr "openai", mt "openai", tts "openai").
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type ArtifactsConfig struct {
	Dir              string   `yaml:"dir"`
	IndexPath        string   `yaml:"index_path"`
	Store            string   `yaml:"store"`          // disk, s3
	RetentionMode    string   `yaml:"retention_mode"` // ephemeral, ttl
	TTLMinutes       int      `yaml:"ttl_minutes"`
	MaxCount         int      `yaml:"max_count"`
	SweepIntervalMin int      `yaml:"sweep_interval_minutes"`
	S3               S3Config `yaml:"s3"`
}

type S3Config struct {
	Endpoint         string `yaml:"endpoint"`
	Region           string `yaml:"region"`
	Bucket           string `yaml:"bucket"`
	AccessKey        string `yaml:"access_key"`
	SecretKey        string `yaml:"secret_key"`
	UseSSL           bool   `yaml:"use_ssl"`
	URLExpiryMinutes int    `yaml:"url_expiry_minutes"`
}

type PipelineConfig struct {
	DefaultLanguage  string   `yaml:"default_language"`
	FallbackLanguage string   `yaml:"fallback_language"`
	ASRTimeout       int      `yaml:"asr_timeout_ms"`
	MTTimeout        int      `yaml:"mt_timeout_ms"`
	TTSTimeout       int      `yaml:"tts_timeout_ms"`
	WarmBackends     []string `yaml:"warm_backends"`
}

type ASRConfig struct {
	Candidates  []string `yaml:"candidates"` // whisper, openai, exec, mock
	ModelPath   string   `yaml:"model_path"`
	Language    string   `yaml:"language"` // hint, empty = auto-detect
	Command     string   `yaml:"command"`
	OpenAIModel string   `yaml:"openai_model"`
}

type MTConfig struct {
	Candidates     []string `yaml:"candidates"` // google, openai, ollama, mock
	GoogleAPIKey   string   `yaml:"google_api_key"`
	GoogleEndpoint string   `yaml:"google_endpoint"`
	OpenAIModel    string   `yaml:"openai_model"`
	OllamaEndpoint string   `yaml:"ollama_endpoint"`
	OllamaModel    string   `yaml:"ollama_model"`
}

type TTSConfig struct {
	Candidates      []string `yaml:"candidates"` // openai, elevenlabs, gtts, exec, mock
	Command         string   `yaml:"command"`
	SampleRate      int      `yaml:"sample_rate"`
	Channels        int      `yaml:"channels"`
	OpenAIModel     string   `yaml:"openai_model"`
	OpenAIVoice     string   `yaml:"openai_voice"`
	ElevenLabsKey   string   `yaml:"elevenlabs_api_key"`
	ElevenLabsVoice string   `yaml:"elevenlabs_voice_id"`
	ElevenLabsModel string   `yaml:"elevenlabs_model"`
}

func Default() Config {
	return Config{
		RuntimeName: "voxlate-runtime",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind:            "0.0.0.0",
			Port:            8080,
			CORSOrigins:     []string{"*"},
			BodyLimitMB:     32,
			RateLimitPerMin: 120,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Enabled:        false,
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Artifacts: ArtifactsConfig{
			Dir:              "./data/audio",
			IndexPath:        "./data/voxlate-artifacts.db",
			Store:            "disk",
			RetentionMode:    "ttl",
			TTLMinutes:       720,
			MaxCount:         512,
			SweepIntervalMin: 10,
			S3: S3Config{
				Region:           "us-east-1",
				UseSSL:           true,
				URLExpiryMinutes: 15,
			},
		},
		Pipeline: PipelineConfig{
			DefaultLanguage:  "en",
			FallbackLanguage: "en",
			ASRTimeout:       60000,
			MTTimeout:        30000,
			TTSTimeout:       60000,
		},
		ASR: ASRConfig{
			Candidates:  []string{"whisper", "openai", "mock"},
			ModelPath:   "./models/ggml-base.bin",
			OpenAIModel: "whisper-1",
		},
		MT: MTConfig{
			Candidates:     []string{"google", "openai", "ollama", "mock"},
			GoogleEndpoint: "https://translation.googleapis.com/language/translate/v2",
			OpenAIModel:    "gpt-4o-mini",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "llama3.2:latest",
		},
		TTS: TTSConfig{
			Candidates:      []string{"openai", "elevenlabs", "gtts", "mock"},
			SampleRate:      22050,
			Channels:        1,
			OpenAIModel:     "tts-1",
			OpenAIVoice:     "alloy",
			ElevenLabsModel: "eleven_multilingual_v2",
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "VOXLATE_RUNTIME_NAME")
	overrideString(&cfg.Environment, "VOXLATE_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "VOXLATE_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "VOXLATE_HTTP_PORT")
	overrideStringSlice(&cfg.HTTP.CORSOrigins, "VOXLATE_HTTP_CORS_ORIGINS")
	overrideInt(&cfg.HTTP.BodyLimitMB, "VOXLATE_HTTP_BODY_LIMIT_MB")
	overrideInt(&cfg.HTTP.RateLimitPerMin, "VOXLATE_HTTP_RATE_LIMIT_PER_MINUTE")
	overrideString(&cfg.Telemetry.LogLevel, "VOXLATE_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "VOXLATE_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "VOXLATE_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "VOXLATE_TELEMETRY_PROMETHEUS_BIND")
	// Conventional provider variables are honored first so a plain .env
	// works; VOXLATE_-prefixed variables win when both are set.
	overrideString(&cfg.OpenAI.APIKey, "OPENAI_API_KEY")
	overrideString(&cfg.OpenAI.APIKey, "VOXLATE_OPENAI_API_KEY")
	overrideString(&cfg.OpenAI.BaseURL, "VOXLATE_OPENAI_BASE_URL")
	overrideBool(&cfg.Bus.Enabled, "VOXLATE_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "VOXLATE_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "VOXLATE_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "VOXLATE_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "VOXLATE_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "VOXLATE_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "VOXLATE_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "VOXLATE_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "VOXLATE_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Artifacts.Dir, "VOXLATE_ARTIFACTS_DIR")
	overrideString(&cfg.Artifacts.IndexPath, "VOXLATE_ARTIFACTS_INDEX_PATH")
	overrideString(&cfg.Artifacts.Store, "VOXLATE_ARTIFACTS_STORE")
	overrideString(&cfg.Artifacts.RetentionMode, "VOXLATE_ARTIFACTS_RETENTION_MODE")
	overrideInt(&cfg.Artifacts.TTLMinutes, "VOXLATE_ARTIFACTS_TTL_MINUTES")
	overrideInt(&cfg.Artifacts.MaxCount, "VOXLATE_ARTIFACTS_MAX_COUNT")
	overrideInt(&cfg.Artifacts.SweepIntervalMin, "VOXLATE_ARTIFACTS_SWEEP_INTERVAL_MINUTES")
	overrideString(&cfg.Artifacts.S3.Endpoint, "VOXLATE_ARTIFACTS_S3_ENDPOINT")
	overrideString(&cfg.Artifacts.S3.Region, "VOXLATE_ARTIFACTS_S3_REGION")
	overrideString(&cfg.Artifacts.S3.Bucket, "VOXLATE_ARTIFACTS_S3_BUCKET")
	overrideString(&cfg.Artifacts.S3.AccessKey, "VOXLATE_ARTIFACTS_S3_ACCESS_KEY")
	overrideString(&cfg.Artifacts.S3.SecretKey, "VOXLATE_ARTIFACTS_S3_SECRET_KEY")
	overrideBool(&cfg.Artifacts.S3.UseSSL, "VOXLATE_ARTIFACTS_S3_USE_SSL")
	overrideInt(&cfg.Artifacts.S3.URLExpiryMinutes, "VOXLATE_ARTIFACTS_S3_URL_EXPIRY_MINUTES")
	overrideString(&cfg.Pipeline.DefaultLanguage, "VOXLATE_PIPELINE_DEFAULT_LANGUAGE")
	overrideString(&cfg.Pipeline.FallbackLanguage, "VOXLATE_PIPELINE_FALLBACK_LANGUAGE")
	overrideInt(&cfg.Pipeline.ASRTimeout, "VOXLATE_PIPELINE_ASR_TIMEOUT_MS")
	overrideInt(&cfg.Pipeline.MTTimeout, "VOXLATE_PIPELINE_MT_TIMEOUT_MS")
	overrideInt(&cfg.Pipeline.TTSTimeout, "VOXLATE_PIPELINE_TTS_TIMEOUT_MS")
	overrideStringSlice(&cfg.Pipeline.WarmBackends, "VOXLATE_PIPELINE_WARM_BACKENDS")
	overrideStringSlice(&cfg.ASR.Candidates, "VOXLATE_ASR_CANDIDATES")
	overrideString(&cfg.ASR.ModelPath, "VOXLATE_ASR_MODEL_PATH")
	overrideString(&cfg.ASR.Language, "VOXLATE_ASR_LANGUAGE")
	overrideString(&cfg.ASR.Command, "VOXLATE_ASR_COMMAND")
	overrideString(&cfg.ASR.OpenAIModel, "VOXLATE_ASR_OPENAI_MODEL")
	overrideStringSlice(&cfg.MT.Candidates, "VOXLATE_MT_CANDIDATES")
	overrideString(&cfg.MT.GoogleAPIKey, "GOOGLE_TRANSLATE_API_KEY")
	overrideString(&cfg.MT.GoogleAPIKey, "VOXLATE_MT_GOOGLE_API_KEY")
	overrideString(&cfg.MT.GoogleEndpoint, "VOXLATE_MT_GOOGLE_ENDPOINT")
	overrideString(&cfg.MT.OpenAIModel, "VOXLATE_MT_OPENAI_MODEL")
	overrideString(&cfg.MT.OllamaEndpoint, "VOXLATE_MT_OLLAMA_ENDPOINT")
	overrideString(&cfg.MT.OllamaModel, "VOXLATE_MT_OLLAMA_MODEL")
	overrideStringSlice(&cfg.TTS.Candidates, "VOXLATE_TTS_CANDIDATES")
	overrideString(&cfg.TTS.Command, "VOXLATE_TTS_COMMAND")
	overrideInt(&cfg.TTS.SampleRate, "VOXLATE_TTS_SAMPLE_RATE")
	overrideInt(&cfg.TTS.Channels, "VOXLATE_TTS_CHANNELS")
	overrideString(&cfg.TTS.OpenAIModel, "VOXLATE_TTS_OPENAI_MODEL")
	overrideString(&cfg.TTS.OpenAIVoice, "VOXLATE_TTS_OPENAI_VOICE")
	overrideString(&cfg.TTS.ElevenLabsKey, "ELEVENLABS_API_KEY")
	overrideString(&cfg.TTS.ElevenLabsKey, "VOXLATE_TTS_ELEVENLABS_API_KEY")
	overrideString(&cfg.TTS.ElevenLabsVoice, "VOXLATE_TTS_ELEVENLABS_VOICE_ID")
	overrideString(&cfg.TTS.ElevenLabsModel, "VOXLATE_TTS_ELEVENLABS_MODEL")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.HTTP.BodyLimitMB <= 0 {
		return errors.New("http.body_limit_mb must be positive")
	}
	if cfg.HTTP.RateLimitPerMin < 0 {
		return errors.New("http.rate_limit_per_minute must be >= 0")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.Artifacts.Dir == "" {
		return errors.New("artifacts.dir must not be empty")
	}
	switch cfg.Artifacts.Store {
	case "disk", "s3":
	default:
		return errors.New("artifacts.store must be one of disk|s3")
	}
	switch cfg.Artifacts.RetentionMode {
	case "ephemeral":
	case "ttl":
		if cfg.Artifacts.IndexPath == "" {
			return errors.New("artifacts.index_path must not be empty when retention_mode=ttl")
		}
		if cfg.Artifacts.TTLMinutes <= 0 {
			return errors.New("artifacts.ttl_minutes must be positive when retention_mode=ttl")
		}
		if cfg.Artifacts.SweepIntervalMin <= 0 {
			return errors.New("artifacts.sweep_interval_minutes must be positive when retention_mode=ttl")
		}
	default:
		return errors.New("artifacts.retention_mode must be one of ephemeral|ttl")
	}
	if cfg.Artifacts.MaxCount < 0 {
		return errors.New("artifacts.max_count must be >= 0")
	}
	if cfg.Artifacts.Store == "s3" {
		if cfg.Artifacts.S3.Endpoint == "" {
			return errors.New("artifacts.s3.endpoint must be set when store=s3")
		}
		if cfg.Artifacts.S3.Bucket == "" {
			return errors.New("artifacts.s3.bucket must be set when store=s3")
		}
	}
	if cfg.Pipeline.DefaultLanguage == "" {
		return errors.New("pipeline.default_language must not be empty")
	}
	if cfg.Pipeline.FallbackLanguage == "" {
		return errors.New("pipeline.fallback_language must not be empty")
	}
	if cfg.Pipeline.ASRTimeout <= 0 || cfg.Pipeline.MTTimeout <= 0 || cfg.Pipeline.TTSTimeout <= 0 {
		return errors.New("pipeline stage timeouts must be positive")
	}
	if err := validateCandidates("asr", cfg.ASR.Candidates, "whisper", "openai", "exec", "mock"); err != nil {
		return err
	}
	if hasCandidate(cfg.ASR.Candidates, "exec") && cfg.ASR.Command == "" {
		return errors.New("asr.command must be set when candidates include exec")
	}
	if err := validateCandidates("mt", cfg.MT.Candidates, "google", "openai", "ollama", "mock"); err != nil {
		return err
	}
	if hasCandidate(cfg.MT.Candidates, "ollama") && cfg.MT.OllamaEndpoint == "" {
		return errors.New("mt.ollama_endpoint must be set when candidates include ollama")
	}
	if err := validateCandidates("tts", cfg.TTS.Candidates, "openai", "elevenlabs", "gtts", "exec", "mock"); err != nil {
		return err
	}
	if hasCandidate(cfg.TTS.Candidates, "exec") && cfg.TTS.Command == "" {
		return errors.New("tts.command must be set when candidates include exec")
	}
	if cfg.TTS.SampleRate <= 0 {
		return errors.New("tts.sample_rate must be positive")
	}
	if cfg.TTS.Channels <= 0 {
		return errors.New("tts.channels must be positive")
	}
	return nil
}

func validateCandidates(section string, candidates []string, known ...string) error {
	if len(candidates) == 0 {
		return fmt.Errorf("%s.candidates must not be empty", section)
	}
	for _, name := range candidates {
		if !hasCandidate(known, name) {
			return fmt.Errorf("%s.candidates: unknown backend %q (known: %s)", section, name, strings.Join(known, "|"))
		}
	}
	return nil
}

func hasCandidate(list []string, name string) bool {
	for _, c := range list {
		if c == name {
			return true
		}
	}
	return false
}
