package config

import (
	"fmt"
	"log/slog"
	"slices"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// Every LLM-backed stage must resolve to a key (stage slot or shared).
	for _, stage := range Stages() {
		if c.APIKeyFor(stage) == "" {
			return fmt.Errorf("%w: no key for stage %q - set GEMINI_API_KEY or its GEMINI_API_KEY_1..6 slot\n"+
				"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
				ErrMissingAPIKey, stage)
		}
	}

	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}

	// Temperature range: 0.0 (deterministic) to 2.0 (maximum creativity)
	if c.Temperature < 0.0 || c.Temperature > 2.0 {
		return fmt.Errorf("%w: must be between 0.0 and 2.0, got %.2f", ErrInvalidTemperature, c.Temperature)
	}

	// MaxTokens range: 1 to 2097152 (Gemini 2.5 max context window)
	if c.MaxTokens < 1 || c.MaxTokens > 2097152 {
		return fmt.Errorf("%w: must be between 1 and 2,097,152, got %d", ErrInvalidMaxTokens, c.MaxTokens)
	}

	if c.LLMTimeout <= 0 {
		return fmt.Errorf("%w: llm_timeout must be positive, got %v", ErrInvalidTimeout, c.LLMTimeout)
	}

	if c.Language != "" && c.Language != "en" && c.Language != "ar" {
		return fmt.Errorf("%w: %q is not supported, must be \"en\" or \"ar\"", ErrInvalidLanguage, c.Language)
	}

	if err := c.validateWarehouse(); err != nil {
		return err
	}

	if c.HistoryURL != "" {
		if err := validatePostgresURL(c.HistoryURL); err != nil {
			return err
		}
	}

	if c.ThrottleInterval <= 0 {
		return fmt.Errorf("%w: throttle_interval must be positive, got %v", ErrInvalidThrottle, c.ThrottleInterval)
	}

	return nil
}

// validateWarehouse checks the warehouse connection settings.
// Credentials themselves are not judged here: the user supplies them per
// session and bad ones surface as a connect-time error, not a config error.
func (c *Config) validateWarehouse() error {
	switch c.WarehouseDriver {
	case DriverPostgres:
		if c.WarehouseHost == "" {
			return fmt.Errorf("%w: host cannot be empty", ErrInvalidWarehouseHost)
		}
		if c.WarehousePort < 1 || c.WarehousePort > 65535 {
			return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidWarehousePort, c.WarehousePort)
		}
		if c.WarehouseDBName == "" {
			return fmt.Errorf("%w: database name cannot be empty", ErrInvalidWarehouseDBName)
		}

		// Modern SSL modes only - exclude deprecated allow/prefer (MITM vulnerable)
		validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
		if !slices.Contains(validSSLModes, c.WarehouseSSLMode) {
			return fmt.Errorf("%w: %q is not valid, must be one of: %v",
				ErrInvalidWarehouseSSLMode, c.WarehouseSSLMode, validSSLModes)
		}

		if c.WarehousePassword == "admin" {
			slog.Warn("Using the default demo password for the warehouse",
				"warning", "Change warehouse_password in config.yaml for production deployments")
		}
	case DriverSQLite:
		if c.WarehousePath == "" {
			return fmt.Errorf("%w: warehouse_path must be set when warehouse_driver is %q",
				ErrInvalidWarehousePath, DriverSQLite)
		}
	default:
		return fmt.Errorf("%w: %q is not supported, must be %q or %q",
			ErrInvalidWarehouseDriver, c.WarehouseDriver, DriverPostgres, DriverSQLite)
	}
	return nil
}
