package config

import (
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatabaseConfig_PostgresDSN(t *testing.T) {
	tests := []struct {
		name     string
		config   DatabaseConfig
		expected string
	}{
		{
			name: "discrete fields",
			config: DatabaseConfig{
				Driver:   "postgres",
				Host:     "localhost",
				Port:     5555,
				User:     "postgres",
				Password: "test",
				Database: "minitest",
			},
			expected: "host=localhost port=5555 user=postgres password=test dbname=minitest sslmode=disable",
		},
		{
			name: "empty driver defaults to postgres",
			config: DatabaseConfig{
				Host:     "localhost",
				Port:     5555,
				User:     "postgres",
				Database: "minitest",
			},
			expected: "host=localhost port=5555 user=postgres dbname=minitest sslmode=disable",
		},
		{
			name: "password with spaces and quotes",
			config: DatabaseConfig{
				Driver:   "postgres",
				Host:     "db",
				Port:     5432,
				User:     "app",
				Password: `it's a secret`,
				Database: "events",
			},
			expected: `host=db port=5432 user=app password='it\'s a secret' dbname=events sslmode=disable`,
		},
		{
			name: "verify-full with certificates",
			config: DatabaseConfig{
				Driver:   "postgres",
				Host:     "db",
				Port:     5432,
				User:     "app",
				Database: "events",
				TLS: DatabaseTLSConfig{
					Mode:     "verify-full",
					CAFile:   "/etc/ca.pem",
					CertFile: "/etc/client.pem",
					KeyFile:  "/etc/client.key",
				},
			},
			expected: "host=db port=5432 user=app dbname=events sslmode=verify-full sslrootcert=/etc/ca.pem sslcert=/etc/client.pem sslkey=/etc/client.key",
		},
		{
			name: "skip-verify maps to require",
			config: DatabaseConfig{
				Driver:   "postgres",
				Host:     "db",
				Port:     5432,
				User:     "app",
				Database: "events",
				TLS:      DatabaseTLSConfig{Mode: "skip-verify"},
			},
			expected: "host=db port=5432 user=app dbname=events sslmode=require",
		},
		{
			name: "key=value DSN keeps explicit sslmode",
			config: DatabaseConfig{
				Driver:           "postgres",
				ConnectionString: "host=db dbname=events sslmode=require",
			},
			expected: "host=db dbname=events sslmode=require",
		},
		{
			name: "URL DSN gains sslmode",
			config: DatabaseConfig{
				Driver:           "postgres",
				ConnectionString: "postgres://app@db:5432/events",
			},
			expected: "postgres://app@db:5432/events?sslmode=disable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.config.DSN())
		})
	}
}

func TestDatabaseConfig_MySQLDSN(t *testing.T) {
	t.Run("discrete fields", func(t *testing.T) {
		cfg := DatabaseConfig{
			Driver:   "mysql",
			Host:     "db.example.com",
			Port:     3306,
			User:     "admin",
			Password: "p@ss:w0rd!",
			Database: "mydb",
			TLS:      DatabaseTLSConfig{Mode: "skip-verify"},
		}

		parsed, err := mysql.ParseDSN(cfg.DSN())
		require.NoError(t, err)
		assert.Equal(t, "admin", parsed.User)
		assert.Equal(t, "p@ss:w0rd!", parsed.Passwd)
		assert.Equal(t, "tcp", parsed.Net)
		assert.Equal(t, "db.example.com:3306", parsed.Addr)
		assert.Equal(t, "mydb", parsed.DBName)
		assert.True(t, parsed.ParseTime)
		assert.Equal(t, time.UTC, parsed.Loc)
		assert.Equal(t, "skip-verify", parsed.TLSConfig)
	})

	t.Run("verify modes use the registered config", func(t *testing.T) {
		for _, mode := range []string{"verify-ca", "verify-full"} {
			cfg := DatabaseConfig{Driver: "mysql", TLS: DatabaseTLSConfig{Mode: mode}}
			assert.Equal(t, tlsConfigName, cfg.mysqlTLSParam())
		}
		off := DatabaseConfig{Driver: "mysql", TLS: DatabaseTLSConfig{Mode: "off"}}
		assert.Equal(t, "false", off.mysqlTLSParam())
	})

	t.Run("connection string keeps its tls setting", func(t *testing.T) {
		cfg := DatabaseConfig{
			Driver:           "mysql",
			ConnectionString: "root:pw@tcp(localhost:4000)/test?tls=skip-verify",
			TLS:              DatabaseTLSConfig{Mode: "off"},
		}

		parsed, err := mysql.ParseDSN(cfg.DSN())
		require.NoError(t, err)
		assert.Equal(t, "test", parsed.DBName)
		assert.Equal(t, "skip-verify", parsed.TLSConfig)
		assert.True(t, parsed.ParseTime)
	})
}

func TestResolveEffectiveDatabaseName(t *testing.T) {
	tests := []struct {
		name       string
		config     DatabaseConfig
		wantName   string
		wantSource string
		wantErr    string
	}{
		{
			name:       "discrete database",
			config:     DatabaseConfig{Database: "minitest"},
			wantName:   "minitest",
			wantSource: "database.database",
		},
		{
			name:       "postgres key=value",
			config:     DatabaseConfig{ConnectionString: "host=db dbname='my events'"},
			wantName:   "my events",
			wantSource: "dsn",
		},
		{
			name:       "postgres URL",
			config:     DatabaseConfig{ConnectionString: "postgresql://app@db/archive?sslmode=disable"},
			wantName:   "archive",
			wantSource: "dsn",
		},
		{
			name:       "mysql DSN",
			config:     DatabaseConfig{Driver: "mysql", ConnectionString: "root@tcp(db:3306)/events"},
			wantName:   "events",
			wantSource: "dsn",
		},
		{
			name:    "mismatch",
			config:  DatabaseConfig{Database: "a", ConnectionString: "dbname=b"},
			wantErr: "database mismatch",
		},
		{
			name:    "nothing configured",
			config:  DatabaseConfig{},
			wantErr: "no effective database name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, source, err := tt.config.EffectiveDatabaseName()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantSource, source)
		})
	}
}

func TestDatabaseConfig_RegisterTLSSkipsPostgres(t *testing.T) {
	cfg := DatabaseConfig{
		Driver: "postgres",
		TLS:    DatabaseTLSConfig{Mode: "verify-full", CAFile: "/does/not/exist.pem"},
	}
	assert.NoError(t, cfg.RegisterTLS())
}

func TestDatabaseConfig_RegisterTLSReportsMissingCA(t *testing.T) {
	cfg := DatabaseConfig{
		Driver: "mysql",
		TLS:    DatabaseTLSConfig{Mode: "verify-ca", CAFile: "/does/not/exist.pem"},
	}
	err := cfg.RegisterTLS()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read CA file")
}

func TestObservabilityConfig_SignalOverrides(t *testing.T) {
	cfg := ObservabilityConfig{
		OTLP: OTLPConfig{
			Endpoint: "collector:4317",
			Protocol: "grpc",
			Headers:  map[string]string{"x-team": "events"},
			Timeout:  10 * time.Second,
		},
		Traces: &OTLPConfig{
			Endpoint: "traces:4318",
			Protocol: "http/protobuf",
			Insecure: true,
			Headers:  map[string]string{"x-signal": "traces"},
		},
	}

	traces := cfg.GetTracesConfig()
	assert.Equal(t, "traces:4318", traces.Endpoint)
	assert.Equal(t, "http/protobuf", traces.Protocol)
	assert.True(t, traces.Insecure)
	assert.Equal(t, 10*time.Second, traces.Timeout)
	assert.Equal(t, map[string]string{"x-team": "events", "x-signal": "traces"}, traces.Headers)

	assert.Equal(t, cfg.OTLP, cfg.GetLogsConfig())
	assert.Equal(t, cfg.OTLP, cfg.GetMetricsConfig())
}

func TestConfig_Validate(t *testing.T) {
	validConfig := func() *Config {
		return &Config{
			Database: DatabaseConfig{
				Driver:   "postgres",
				Host:     "localhost",
				Port:     5555,
				User:     "postgres",
				Database: "minitest",
				TLS: DatabaseTLSConfig{
					Mode: "off",
				},
				Pool: PoolConfig{
					Capacity: 10,
				},
			},
			Server: ServerConfig{
				Host: "127.0.0.1",
				Port: 3000,
			},
			Observability: ObservabilityConfig{
				TraceSampleRatio: 1,
				Logging: LoggingConfig{
					Level:  "info",
					Format: "json",
				},
				OTLP: OTLPConfig{
					Protocol:    "grpc",
					Compression: "gzip",
				},
			},
		}
	}

	t.Run("valid config passes validation", func(t *testing.T) {
		result := validConfig().Validate()
		assert.False(t, result.HasErrors())
		assert.Empty(t, result.Errors)
		assert.Empty(t, result.Warnings)
	})

	t.Run("unknown driver", func(t *testing.T) {
		cfg := validConfig()
		cfg.Database.Driver = "sqlite"
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "database.driver")
	})

	t.Run("invalid database port", func(t *testing.T) {
		for _, port := range []int{0, 70000} {
			cfg := validConfig()
			cfg.Database.Port = port
			result := cfg.Validate()
			assert.True(t, result.HasErrors())
			assert.Contains(t, result.Error(), "database.port")
		}
	})

	t.Run("DSN skips port check", func(t *testing.T) {
		cfg := validConfig()
		cfg.Database.Port = 0
		cfg.Database.Database = ""
		cfg.Database.ConnectionString = "host=db dbname=minitest"
		result := cfg.Validate()
		assert.False(t, result.HasErrors())
		assert.Equal(t, "minitest", cfg.Database.Database)
	})

	t.Run("pool capacity must be positive", func(t *testing.T) {
		cfg := validConfig()
		cfg.Database.Pool.Capacity = 0
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "database.pool.capacity")
	})

	t.Run("negative acquire timeout", func(t *testing.T) {
		cfg := validConfig()
		cfg.Database.Pool.AcquireTimeout = -time.Second
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "database.pool.acquire_timeout")
	})

	t.Run("invalid server port", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.Port = -1
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "server.port")
	})

	t.Run("invalid server host", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.Host = "not a host"
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "server.host")
	})

	t.Run("invalid TLS mode", func(t *testing.T) {
		cfg := validConfig()
		cfg.Database.TLS.Mode = "invalid"
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "database.tls.mode")
	})

	t.Run("valid TLS modes", func(t *testing.T) {
		for _, mode := range []string{"", "off", "skip-verify", "verify-ca", "verify-full"} {
			cfg := validConfig()
			if mode == "verify-ca" || mode == "verify-full" {
				cfg.Database.TLS.CAFile = "/path/to/ca.pem"
			}
			cfg.Database.TLS.Mode = mode
			result := cfg.Validate()
			assert.False(t, result.HasErrors(), "TLS mode %q should be valid", mode)
		}
	})

	t.Run("verify modes require CA file", func(t *testing.T) {
		cfg := validConfig()
		cfg.Database.TLS.Mode = "verify-full"
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "database.tls.ca_file")
	})

	t.Run("client cert requires key", func(t *testing.T) {
		cfg := validConfig()
		cfg.Database.TLS.CertFile = "/path/client.pem"
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "database.tls.cert_file")
	})

	t.Run("invalid log level", func(t *testing.T) {
		cfg := validConfig()
		cfg.Observability.Logging.Level = "invalid"
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "observability.logging.level")
	})

	t.Run("invalid log format", func(t *testing.T) {
		cfg := validConfig()
		cfg.Observability.Logging.Format = "xml"
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "observability.logging.format")
	})

	t.Run("trace sample ratio out of range", func(t *testing.T) {
		cfg := validConfig()
		cfg.Observability.TraceSampleRatio = 1.5
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "observability.trace_sample_ratio")
	})

	t.Run("invalid OTLP protocol", func(t *testing.T) {
		cfg := validConfig()
		cfg.Observability.OTLP.Protocol = "http"
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "observability.otlp.protocol")
	})

	t.Run("OTLP http/protobuf endpoint", func(t *testing.T) {
		cfg := validConfig()
		cfg.Observability.OTLP.Protocol = "http/protobuf"
		cfg.Observability.OTLP.Endpoint = "localhost"
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "observability.otlp.endpoint")

		cfg.Observability.OTLP.Endpoint = "localhost:4318"
		assert.False(t, cfg.Validate().HasErrors())
	})

	t.Run("signal override validated", func(t *testing.T) {
		cfg := validConfig()
		cfg.Observability.Traces = &OTLPConfig{Compression: "zstd"}
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "observability.traces.compression")
	})

	t.Run("rate limit enabled requires rps and burst", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.RateLimit = RateLimitConfig{Enabled: true}
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "server.rate_limit.rps")
		assert.Contains(t, result.Error(), "server.rate_limit.burst")
	})

	t.Run("rate limit disabled with values warns", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.RateLimit = RateLimitConfig{RPS: 100, Burst: 10}
		result := cfg.Validate()
		assert.False(t, result.HasErrors())
		require.Len(t, result.Warnings, 1)
		assert.Contains(t, result.Warnings[0].Message, "rate limit values")
	})

	t.Run("CORS enabled without origins", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.CORS.Enabled = true
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "server.cors.allowed_origins")
	})

	t.Run("CORS wildcard with credentials", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.CORS = CORSConfig{Enabled: true, AllowedOrigins: []string{"*"}, AllowCredentials: true}
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "wildcard")
	})

	t.Run("CORS wildcard without credentials warns", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.CORS = CORSConfig{Enabled: true, AllowedOrigins: []string{"*"}}
		result := cfg.Validate()
		assert.False(t, result.HasErrors())
		require.Len(t, result.Warnings, 1)
		assert.Contains(t, result.Warnings[0].Message, "wildcard")
	})

	t.Run("retry interval larger than timeout warns", func(t *testing.T) {
		cfg := validConfig()
		cfg.Database.ConnectionTimeout = time.Second
		cfg.Database.ConnectionRetryInterval = 5 * time.Second
		result := cfg.Validate()
		assert.False(t, result.HasErrors())
		require.Len(t, result.Warnings, 1)
		assert.Contains(t, result.Warnings[0].Field, "connection_retry_interval")
	})

	t.Run("multiple errors collected", func(t *testing.T) {
		cfg := validConfig()
		cfg.Database.Port = 0
		cfg.Server.Port = 0
		cfg.Observability.Logging.Level = "invalid"
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Len(t, result.Errors, 3)
	})
}

func TestValidationError_Error(t *testing.T) {
	t.Run("with hint", func(t *testing.T) {
		err := ValidationError{
			Field:   "test.field",
			Message: "test message",
			Hint:    "try this",
		}
		assert.Equal(t, "test.field: test message (hint: try this)", err.Error())
	})

	t.Run("without hint", func(t *testing.T) {
		err := ValidationError{
			Field:   "test.field",
			Message: "test message",
		}
		assert.Equal(t, "test.field: test message", err.Error())
	})
}
