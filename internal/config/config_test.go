package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
	if cfg.Workers != 1 {
		t.Errorf("Workers = %d, want 1", cfg.Workers)
	}
	if cfg.DefaultDeadline != 5*time.Second {
		t.Errorf("DefaultDeadline = %v, want 5s", cfg.DefaultDeadline)
	}
	if cfg.ProbeKind != ProbeAlways {
		t.Errorf("ProbeKind = %v, want always", cfg.ProbeKind)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(c *Config) {}, false},
		{"http with target", func(c *Config) { c.ProbeKind = ProbeHTTP; c.ProbeTarget = "http://db:8080" }, false},
		{"http without target", func(c *Config) { c.ProbeKind = ProbeHTTP }, true},
		{"dial without target", func(c *Config) { c.ProbeKind = ProbeDial }, true},
		{"session without key", func(c *Config) { c.ProbeKind = ProbeSession; c.SessionToken = "tok" }, true},
		{"session complete", func(c *Config) { c.ProbeKind = ProbeSession; c.SessionToken = "tok"; c.SessionKey = "k" }, false},
		{"unknown probe", func(c *Config) { c.ProbeKind = "ping" }, true},
		{"no listen address", func(c *Config) { c.ListenAddr = "" }, true},
		{"zero workers", func(c *Config) { c.Workers = 0 }, true},
		{"zero deadline", func(c *Config) { c.DefaultDeadline = 0 }, true},
		{"zero probe timeout", func(c *Config) { c.ProbeTimeout = 0 }, true},
		{"zero reconnect timeout", func(c *Config) { c.ReconnectTimeout = 0 }, true},
		{"zero shutdown timeout", func(c *Config) { c.ShutdownTimeout = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestConfig_Redacted(t *testing.T) {
	cfg := Default()
	cfg.SessionToken = "abc"
	cfg.SessionKey = "def"

	r := cfg.Redacted()
	if r.SessionToken != "*****" || r.SessionKey != "*****" {
		t.Errorf("Redacted() = %+v, want masked session fields", r)
	}
	if cfg.SessionToken != "abc" {
		t.Error("Redacted() modified the original")
	}
}

func TestConfig_Expand(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("SESSION_KEY", "s3cret")

	cfg := Default()
	cfg.ProbeTarget = "http://${DB_HOST}:8080/ping"
	cfg.SessionKey = "${SESSION_KEY}"

	if err := cfg.Expand(); err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	if cfg.ProbeTarget != "http://db.internal:8080/ping" {
		t.Errorf("ProbeTarget = %v", cfg.ProbeTarget)
	}
	if cfg.SessionKey != "s3cret" {
		t.Errorf("SessionKey = %v, want s3cret", cfg.SessionKey)
	}
}

func TestConfig_ExpandNamesField(t *testing.T) {
	cfg := Default()
	cfg.SessionToken = "${OPGUARD_TEST_UNSET_TOKEN}"

	err := cfg.Expand()
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Expand() error = %v, want ErrInvalidConfig", err)
	}
	for _, want := range []string{"session_token", "OPGUARD_TEST_UNSET_TOKEN"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Expand() error = %v, want mention of %s", err, want)
		}
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("PRESENT", "ok")

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr string
	}{
		{"plain", "no vars", "no vars", ""},
		{"braced", "a=${PRESENT}", "a=ok", ""},
		{"bare", "a=$PRESENT", "a=ok", ""},
		{"dollar escape", "$$${PRESENT}", "$ok", ""},
		{"missing", "a=${PRESENT} b=${MISSING_ONE} c=${MISSING_ONE}", "", "probe_target references unset environment variables: MISSING_ONE"},
		{"missing sorted", "${MISSING_B}${MISSING_A}", "", "MISSING_A, MISSING_B"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expandEnv("probe_target", tt.in)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expandEnv() error = %v, want mention of %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("expandEnv() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("expandEnv() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestApplyFile(t *testing.T) {
	tests := []struct {
		name     string
		file     File
		changed  map[string]bool
		initial  Config
		expected Config
		wantErr  bool
	}{
		{
			name: "applies file values",
			file: File{
				ListenAddr:      ":9090",
				ProbeKind:       "http",
				ProbeTarget:     "http://db:8080",
				Workers:         4,
				DefaultDeadline: "3s",
				ProbeTimeout:    "100ms",
			},
			changed: map[string]bool{},
			expected: Config{
				ListenAddr:      ":9090",
				ProbeKind:       "http",
				ProbeTarget:     "http://db:8080",
				Workers:         4,
				DefaultDeadline: 3 * time.Second,
				ProbeTimeout:    100 * time.Millisecond,
			},
		},
		{
			name:     "respects changed flags",
			file:     File{ListenAddr: ":9090", Workers: 4},
			changed:  map[string]bool{"listen": true},
			initial:  Config{ListenAddr: ":7070"},
			expected: Config{ListenAddr: ":7070", Workers: 4},
		},
		{
			name:    "invalid duration",
			file:    File{DefaultDeadline: "soon"},
			changed: map[string]bool{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.initial
			err := ApplyFile(&cfg, tt.file, tt.changed)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ApplyFile() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if cfg != tt.expected {
				t.Errorf("ApplyFile() = %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
listen_addr = ":9443"
probe_kind = "dial"
probe_target = "db:5432"
workers = 2
default_deadline = "2s"
reconnect_timeout = "1s"
log_level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	fc, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	cfg := Default()
	if err := ApplyFile(&cfg, fc, map[string]bool{}); err != nil {
		t.Fatalf("ApplyFile() error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if cfg.ListenAddr != ":9443" || cfg.ProbeKind != ProbeDial || cfg.ProbeTarget != "db:5432" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Workers != 2 {
		t.Errorf("Workers = %d, want 2", cfg.Workers)
	}
	if cfg.DefaultDeadline != 2*time.Second || cfg.ReconnectTimeout != time.Second {
		t.Errorf("durations = %v, %v", cfg.DefaultDeadline, cfg.ReconnectTimeout)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %v, want debug", cfg.LogLevel)
	}
	if !FileExists(path) {
		t.Error("FileExists() = false")
	}
}

func TestLoadFile_Errors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("LoadFile() on a missing file should fail")
	}

	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("workers = ["), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Error("LoadFile() on malformed TOML should fail")
	}
}

func TestApplyEnv(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		changed  map[string]bool
		expected Config
		wantErr  bool
	}{
		{
			name: "applies env values",
			env: map[string]string{
				"OPGUARD_LISTEN_ADDR":      ":8081",
				"OPGUARD_WORKERS":          "3",
				"OPGUARD_DEFAULT_DEADLINE": "4s",
				"OPGUARD_LOG_LEVEL":        "warn",
			},
			changed: map[string]bool{},
			expected: Config{
				ListenAddr:      ":8081",
				Workers:         3,
				DefaultDeadline: 4 * time.Second,
				LogLevel:        "warn",
			},
		},
		{
			name:     "respects changed flags",
			env:      map[string]string{"OPGUARD_WORKERS": "3", "OPGUARD_LOG_LEVEL": "warn"},
			changed:  map[string]bool{"workers": true},
			expected: Config{LogLevel: "warn"},
		},
		{
			name:    "invalid workers",
			env:     map[string]string{"OPGUARD_WORKERS": "many"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:    "invalid duration",
			env:     map[string]string{"OPGUARD_PROBE_TIMEOUT": "fast"},
			changed: map[string]bool{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			var cfg Config
			err := ApplyEnv(&cfg, tt.changed)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ApplyEnv() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if cfg != tt.expected {
				t.Errorf("ApplyEnv() = %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}
