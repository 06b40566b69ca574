package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

// quoteDSNValue quotes a value for key=value DSN format.
// Within single quotes, backslashes and single quotes are escaped.
// This prevents parsing errors when values contain spaces or special characters.
func quoteDSNValue(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}

// WarehouseDSN returns the driver-appropriate DSN for the configured warehouse.
// Postgres uses the pgx key=value format with a quoted password; sqlite
// returns the database file path.
func (c *Config) WarehouseDSN() string {
	if c.WarehouseDriver == DriverSQLite {
		return c.WarehousePath
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.WarehouseHost,
		c.WarehousePort,
		c.WarehouseUser,
		quoteDSNValue(c.WarehousePassword),
		c.WarehouseDBName,
		c.WarehouseSSLMode,
	)
}

// parseHistoryURL resolves the chat log DSN from the environment.
// HISTORY_URL wins; DATABASE_URL is accepted as a common alias. The DSN must
// be a postgres:// or postgresql:// URL.
func (c *Config) parseHistoryURL() error {
	dbURL := os.Getenv("HISTORY_URL")
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		return nil
	}

	if err := validatePostgresURL(dbURL); err != nil {
		return err
	}
	c.HistoryURL = dbURL
	return nil
}

// validatePostgresURL checks that a DSN parses as a postgres URL.
func validatePostgresURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidHistoryURL, err)
	}
	if parsed.Scheme != "postgres" && parsed.Scheme != "postgresql" {
		return fmt.Errorf("%w: must start with postgres:// or postgresql://, got %q",
			ErrInvalidHistoryURL, parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidHistoryURL)
	}
	return nil
}

// maskHistoryURL hides embedded credentials for safe logging.
func maskHistoryURL(raw string) string {
	if raw == "" {
		return ""
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.User == nil {
		return raw
	}
	parsed.User = url.UserPassword(parsed.User.Username(), maskedValue)
	// url.URL re-encodes the mask; substitute the literal for readability
	return strings.Replace(parsed.String(), url.QueryEscape(maskedValue), maskedValue, 1)
}
