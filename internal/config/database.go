package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	"eventgraph/internal/sqlutil"
)

// tlsConfigName is the name used to register custom TLS configs with the MySQL driver.
const tlsConfigName = "eventgraph-custom"

// Dialect returns the SQL dialect selected by Driver.
func (d *DatabaseConfig) Dialect() (sqlutil.Dialect, error) {
	driver := d.Driver
	if strings.TrimSpace(driver) == "" {
		driver = defaultDriver
	}
	return sqlutil.ParseDialect(driver)
}

// DSN returns a data source name for the configured driver.
// If ConnectionString is set, it is used as the base with TLS settings applied.
// Otherwise, the DSN is built from the discrete fields.
func (d *DatabaseConfig) DSN() string {
	dialect, err := d.Dialect()
	if err != nil {
		return d.ConnectionString
	}
	if dialect == sqlutil.DialectMySQL {
		return d.mysqlDSN()
	}
	return d.postgresDSN()
}

func (d *DatabaseConfig) mysqlDSN() string {
	cfg := mysql.NewConfig()
	if d.ConnectionString != "" {
		parsed, err := mysql.ParseDSN(d.ConnectionString)
		if err != nil {
			return d.ConnectionString
		}
		cfg = parsed
	} else {
		cfg.User = d.User
		cfg.Passwd = d.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
		cfg.DBName = d.Database
	}
	cfg.ParseTime = true
	if cfg.Loc == nil {
		cfg.Loc = time.UTC
	}
	if cfg.TLSConfig == "" {
		cfg.TLSConfig = d.mysqlTLSParam()
	}
	return cfg.FormatDSN()
}

func (d *DatabaseConfig) postgresDSN() string {
	sslParams := d.postgresSSLParams()

	if d.ConnectionString != "" {
		dsn := d.ConnectionString
		if isPostgresURL(dsn) {
			u, err := url.Parse(dsn)
			if err != nil {
				return dsn
			}
			q := u.Query()
			for _, p := range sslParams {
				if q.Get(p[0]) == "" {
					q.Set(p[0], p[1])
				}
			}
			u.RawQuery = q.Encode()
			return u.String()
		}
		existing := parseKeyValueDSN(dsn)
		for _, p := range sslParams {
			if _, ok := existing[p[0]]; !ok {
				dsn += " " + p[0] + "=" + quotePostgresValue(p[1])
			}
		}
		return dsn
	}

	parts := []string{
		"host=" + quotePostgresValue(d.Host),
		"port=" + strconv.Itoa(d.Port),
		"user=" + quotePostgresValue(d.User),
	}
	if d.Password != "" {
		parts = append(parts, "password="+quotePostgresValue(d.Password))
	}
	parts = append(parts, "dbname="+quotePostgresValue(d.Database))
	for _, p := range sslParams {
		parts = append(parts, p[0]+"="+quotePostgresValue(p[1]))
	}
	return strings.Join(parts, " ")
}

// postgresSSLParams maps tls.mode onto lib/pq ssl* settings.
// An unset mode means plaintext.
func (d *DatabaseConfig) postgresSSLParams() [][2]string {
	var params [][2]string
	switch d.TLS.Mode {
	case "", "off":
		return [][2]string{{"sslmode", "disable"}}
	case "skip-verify":
		params = append(params, [2]string{"sslmode", "require"})
	default:
		params = append(params, [2]string{"sslmode", d.TLS.Mode})
	}
	if d.TLS.CAFile != "" {
		params = append(params, [2]string{"sslrootcert", d.TLS.CAFile})
	}
	if d.TLS.CertFile != "" {
		params = append(params, [2]string{"sslcert", d.TLS.CertFile})
	}
	if d.TLS.KeyFile != "" {
		params = append(params, [2]string{"sslkey", d.TLS.KeyFile})
	}
	return params
}

// mysqlTLSParam returns the go-sql-driver tls parameter for tls.mode.
func (d *DatabaseConfig) mysqlTLSParam() string {
	switch d.TLS.Mode {
	case "":
		return ""
	case "off":
		return "false"
	case "skip-verify":
		return "skip-verify"
	case "verify-ca", "verify-full":
		return tlsConfigName
	default:
		return d.TLS.Mode
	}
}

// EffectiveDatabaseName returns the database the service will query and where
// the name came from.
func (d *DatabaseConfig) EffectiveDatabaseName() (name string, source string, err error) {
	dialect, err := d.Dialect()
	if err != nil {
		return "", "", err
	}
	return resolveEffectiveDatabaseName(dialect, d.Database, d.ConnectionString)
}

func resolveEffectiveDatabaseName(dialect sqlutil.Dialect, databaseName string, connectionString string) (name string, source string, err error) {
	configDatabase := strings.TrimSpace(databaseName)
	dsnDatabase, err := parseDSNDatabaseName(dialect, connectionString)
	if err != nil {
		return "", "", err
	}

	if configDatabase != "" {
		if dsnDatabase != "" && configDatabase != dsnDatabase {
			return "", "", fmt.Errorf(
				"database mismatch: database.database=%q but database.dsn targets %q",
				configDatabase,
				dsnDatabase,
			)
		}
		return configDatabase, "database.database", nil
	}
	if dsnDatabase != "" {
		return dsnDatabase, "dsn", nil
	}
	return "", "", fmt.Errorf(
		"no effective database name configured: set database.database or name one in database.dsn",
	)
}

func parseDSNDatabaseName(dialect sqlutil.Dialect, connectionString string) (string, error) {
	dsn := strings.TrimSpace(connectionString)
	if dsn == "" {
		return "", nil
	}

	if dialect == sqlutil.DialectMySQL {
		parsed, err := mysql.ParseDSN(dsn)
		if err != nil {
			return "", fmt.Errorf("database.dsn is invalid: %w", err)
		}
		return strings.TrimSpace(parsed.DBName), nil
	}

	if isPostgresURL(dsn) {
		converted, err := pq.ParseURL(dsn)
		if err != nil {
			return "", fmt.Errorf("database.dsn is invalid: %w", err)
		}
		dsn = converted
	}
	return parseKeyValueDSN(dsn)["dbname"], nil
}

func isPostgresURL(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// parseKeyValueDSN reads a libpq key=value connection string. Values may be
// single-quoted with backslash escapes.
func parseKeyValueDSN(dsn string) map[string]string {
	out := make(map[string]string)
	s := strings.TrimSpace(dsn)
	for s != "" {
		eq := strings.IndexByte(s, '=')
		if eq < 0 {
			break
		}
		key := strings.TrimSpace(s[:eq])
		s = strings.TrimLeft(s[eq+1:], " ")

		var val strings.Builder
		if strings.HasPrefix(s, "'") {
			i := 1
			for ; i < len(s); i++ {
				if s[i] == '\\' && i+1 < len(s) {
					i++
					val.WriteByte(s[i])
					continue
				}
				if s[i] == '\'' {
					break
				}
				val.WriteByte(s[i])
			}
			if i < len(s) {
				i++
			}
			s = s[i:]
		} else {
			end := strings.IndexByte(s, ' ')
			if end < 0 {
				end = len(s)
			}
			val.WriteString(s[:end])
			s = s[end:]
		}
		out[key] = val.String()
		s = strings.TrimLeft(s, " ")
	}
	return out
}

func quotePostgresValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

// RegisterTLS registers a custom TLS configuration with the MySQL driver.
// Must be called before opening the database connection when using verify-ca or verify-full modes.
// Postgres reads certificate paths from the DSN and needs no registration.
func (d *DatabaseConfig) RegisterTLS() error {
	dialect, err := d.Dialect()
	if err != nil {
		return err
	}
	if dialect != sqlutil.DialectMySQL {
		return nil
	}
	if d.TLS.Mode != "verify-ca" && d.TLS.Mode != "verify-full" {
		return nil
	}

	tlsCfg, err := d.buildTLSConfig()
	if err != nil {
		return fmt.Errorf("failed to build TLS config: %w", err)
	}
	if err := mysql.RegisterTLSConfig(tlsConfigName, tlsCfg); err != nil {
		return fmt.Errorf("failed to register TLS config: %w", err)
	}
	return nil
}

// buildTLSConfig creates a tls.Config based on the DatabaseTLSConfig settings.
func (d *DatabaseConfig) buildTLSConfig() (*tls.Config, error) {
	tlsCfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}

	if d.TLS.CAFile != "" {
		caCert, err := os.ReadFile(d.TLS.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file %q: %w", d.TLS.CAFile, err)
		}
		certPool := x509.NewCertPool()
		if !certPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate from %q", d.TLS.CAFile)
		}
		tlsCfg.RootCAs = certPool
	}

	if d.TLS.CertFile != "" && d.TLS.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(d.TLS.CertFile, d.TLS.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	} else if d.TLS.CertFile != "" || d.TLS.KeyFile != "" {
		return nil, fmt.Errorf("both cert_file and key_file must be specified for client certificate authentication")
	}

	switch d.TLS.Mode {
	case "verify-ca":
		// Chain is checked against RootCAs; hostname is not.
		tlsCfg.InsecureSkipVerify = true
		tlsCfg.VerifyConnection = verifyChainOnly(tlsCfg.RootCAs)
	case "verify-full":
		tlsCfg.ServerName = d.TLS.ServerName
		if tlsCfg.ServerName == "" {
			tlsCfg.ServerName = d.Host
		}
	}

	return tlsCfg, nil
}

func verifyChainOnly(roots *x509.CertPool) func(tls.ConnectionState) error {
	return func(cs tls.ConnectionState) error {
		if len(cs.PeerCertificates) == 0 {
			return fmt.Errorf("server presented no certificates")
		}
		opts := x509.VerifyOptions{
			Roots:         roots,
			Intermediates: x509.NewCertPool(),
		}
		for _, cert := range cs.PeerCertificates[1:] {
			opts.Intermediates.AddCert(cert)
		}
		_, err := cs.PeerCertificates[0].Verify(opts)
		return err
	}
}
