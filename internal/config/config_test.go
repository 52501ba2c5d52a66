package config

import (
	"testing"
)

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		shouldSet    bool
		want         string
	}{
		{
			name:         "returns environment variable when set",
			key:          "TEST_VAR",
			defaultValue: "default",
			envValue:     "custom",
			shouldSet:    true,
			want:         "custom",
		},
		{
			name:         "returns default when environment variable not set",
			key:          "TEST_VAR_MISSING",
			defaultValue: "default",
			envValue:     "",
			shouldSet:    false,
			want:         "default",
		},
		{
			name:         "returns default when environment variable is empty string",
			key:          "TEST_VAR_EMPTY",
			defaultValue: "default",
			envValue:     "",
			shouldSet:    true,
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.shouldSet {
				t.Setenv(tt.key, tt.envValue)
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvAsInt(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue int
		envValue     string
		shouldSet    bool
		want         int
	}{
		{
			name:         "returns environment variable as int when set with valid integer",
			key:          "TEST_INT_VAR",
			defaultValue: 100,
			envValue:     "200",
			shouldSet:    true,
			want:         200,
		},
		{
			name:         "returns default when environment variable not set",
			key:          "TEST_INT_VAR_MISSING",
			defaultValue: 100,
			envValue:     "",
			shouldSet:    false,
			want:         100,
		},
		{
			name:         "returns default when environment variable is not a valid integer",
			key:          "TEST_INT_VAR_INVALID",
			defaultValue: 100,
			envValue:     "not_a_number",
			shouldSet:    true,
			want:         100,
		},
		{
			name:         "handles zero",
			key:          "TEST_INT_VAR_ZERO",
			defaultValue: 100,
			envValue:     "0",
			shouldSet:    true,
			want:         0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.shouldSet {
				t.Setenv(tt.key, tt.envValue)
			}

			got := getEnvAsInt(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvAsInt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSplitAPIKeys(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{name: "single key", raw: "key-1", want: []string{"key-1"}},
		{name: "multiple keys with whitespace", raw: "key-1, key-2 ,key-3", want: []string{"key-1", "key-2", "key-3"}},
		{name: "empty entries dropped", raw: "key-1,,key-2,", want: []string{"key-1", "key-2"}},
		{name: "empty value", raw: "", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitAPIKeys(tt.raw)
			if len(got) != len(tt.want) {
				t.Fatalf("splitAPIKeys() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("splitAPIKeys()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestLoad(t *testing.T) {
	setRequired := func(t *testing.T) {
		t.Helper()
		t.Setenv("API_KEYS", "test-api-key")
		t.Setenv("OPENAI_API_KEY", "sk-test")
	}

	t.Run("returns default values when only required variables set", func(t *testing.T) {
		setRequired(t)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		if cfg.Port != "8080" {
			t.Errorf("Port = %v, want 8080", cfg.Port)
		}
		if cfg.OpenAIModel != "gpt-4o-mini" {
			t.Errorf("OpenAIModel = %v, want gpt-4o-mini", cfg.OpenAIModel)
		}
		if cfg.QueryParserProvider != ProviderOpenAI {
			t.Errorf("QueryParserProvider = %v, want %v", cfg.QueryParserProvider, ProviderOpenAI)
		}
		if cfg.PipelineMaxAttempts != 3 {
			t.Errorf("PipelineMaxAttempts = %d, want 3", cfg.PipelineMaxAttempts)
		}
		if cfg.MaxRequestBodyBytes != 1<<20 {
			t.Errorf("MaxRequestBodyBytes = %d, want %d", cfg.MaxRequestBodyBytes, 1<<20)
		}
	})

	t.Run("error when API_KEYS missing", func(t *testing.T) {
		t.Setenv("API_KEYS", "")
		t.Setenv("OPENAI_API_KEY", "sk-test")

		if _, err := Load(); err == nil {
			t.Error("Load() error = nil, want error for missing API_KEYS")
		}
	})

	t.Run("multiple API keys parsed", func(t *testing.T) {
		setRequired(t)
		t.Setenv("API_KEYS", "key-1, key-2")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if len(cfg.APIKeys) != 2 {
			t.Errorf("APIKeys = %v, want 2 entries", cfg.APIKeys)
		}
	})

	t.Run("openai key not required when rule and stub providers selected", func(t *testing.T) {
		t.Setenv("API_KEYS", "test-api-key")
		t.Setenv("OPENAI_API_KEY", "")
		t.Setenv("QUERY_PARSER_PROVIDER", ProviderRule)
		t.Setenv("EXTRACTION_PROVIDER", ProviderStub)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.ExtractionProvider != ProviderStub {
			t.Errorf("ExtractionProvider = %v, want %v", cfg.ExtractionProvider, ProviderStub)
		}
	})

	t.Run("openai key required for openai provider", func(t *testing.T) {
		t.Setenv("API_KEYS", "test-api-key")
		t.Setenv("OPENAI_API_KEY", "")

		if _, err := Load(); err == nil {
			t.Error("Load() error = nil, want error for missing OPENAI_API_KEY")
		}
	})

	t.Run("invalid provider rejected", func(t *testing.T) {
		setRequired(t)
		t.Setenv("EXTRACTION_PROVIDER", "anthropic")

		if _, err := Load(); err == nil {
			t.Error("Load() error = nil, want error for invalid EXTRACTION_PROVIDER")
		}
	})

	t.Run("validation error when PIPELINE_MAX_ATTEMPTS <= 0", func(t *testing.T) {
		setRequired(t)
		t.Setenv("PIPELINE_MAX_ATTEMPTS", "0")

		if _, err := Load(); err == nil {
			t.Error("Load() error = nil, want error for PIPELINE_MAX_ATTEMPTS <= 0")
		}
	})
}
