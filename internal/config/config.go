// Package config provides configuration management for the drive-to-crm
// application: a YAML file with defaults, overridden by the environment
// variables the original migration scripts used.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jdavila/drive-to-crm/internal/objects"
	"github.com/jdavila/drive-to-crm/internal/retry"
)

// SalesforceConfig holds Salesforce authentication and connection settings.
type SalesforceConfig struct {
	Username      string `yaml:"username" json:"username"`
	Password      string `yaml:"password" json:"password"`
	SecurityToken string `yaml:"security_token" json:"security_token"`
	ClientID      string `yaml:"client_id" json:"client_id"`
	ClientSecret  string `yaml:"client_secret" json:"client_secret"`
	LoginURL      string `yaml:"login_url" json:"login_url"`
	FileDomain    string `yaml:"file_domain" json:"file_domain"`
	APIVersion    string `yaml:"api_version" json:"api_version"`
}

// DriveConfig holds Google Drive service-account settings.
type DriveConfig struct {
	ServiceAccountFile string `yaml:"service_account_file" json:"service_account_file"`
	FolderID           string `yaml:"folder_id" json:"folder_id"`
	BaseURL            string `yaml:"base_url" json:"base_url"`
	PageSize           int    `yaml:"page_size" json:"page_size"`
}

// ObjectConfig holds the per-record-type settings.
type ObjectConfig struct {
	PhotoField string `yaml:"photo_field" json:"photo_field"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`
}

// SyncConfig holds settings shared by both record types.
type SyncConfig struct {
	MigrationField string       `yaml:"migration_field" json:"migration_field"`
	OutputDir      string       `yaml:"output_dir" json:"output_dir"`
	ExclusionsFile string       `yaml:"exclusions_file" json:"exclusions_file"`
	Account        ObjectConfig `yaml:"account" json:"account"`
	Contact        ObjectConfig `yaml:"contact" json:"contact"`
}

// RetryConfig holds retry settings for Drive and Salesforce calls.
type RetryConfig struct {
	MaxAttempts    int     `yaml:"max_attempts" json:"max_attempts"`
	BaseDelayMs    int     `yaml:"base_delay_ms" json:"base_delay_ms"`
	Multiplier     float64 `yaml:"multiplier" json:"multiplier"`
	MaxDelaySec    int     `yaml:"max_delay_seconds" json:"max_delay_seconds"`
	TimeoutSeconds int     `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// Policy converts the retry settings into a retry.Policy.
func (r RetryConfig) Policy() retry.Policy {
	return retry.Policy{
		MaxAttempts: r.MaxAttempts,
		BaseDelay:   time.Duration(r.BaseDelayMs) * time.Millisecond,
		Multiplier:  r.Multiplier,
		MaxDelay:    time.Duration(r.MaxDelaySec) * time.Second,
		Jitter:      true,
	}
}

// Timeout returns the per-request timeout as a time.Duration.
func (r RetryConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file" json:"file"`
	Console    bool   `yaml:"console" json:"console"`
	JSONFormat bool   `yaml:"json_format" json:"json_format"`
}

// Config represents the complete application configuration.
type Config struct {
	Salesforce SalesforceConfig `yaml:"salesforce" json:"salesforce"`
	Drive      DriveConfig      `yaml:"drive" json:"drive"`
	Sync       SyncConfig       `yaml:"sync" json:"sync"`
	Retry      RetryConfig      `yaml:"retry" json:"retry"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// MissingError reports every required setting that is absent, so an
// operator can fix the whole set in one pass instead of discovering them
// one run at a time.
type MissingError struct {
	Names []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", strings.Join(e.Names, ", "))
}

// LoadConfig loads configuration from a YAML file with defaults and
// environment variable overrides. A missing file is not an error: the
// original migration scripts ran from environment variables alone, and
// this tool preserves that.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	if configPath != "" {
		if err := config.loadFromFile(configPath); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load config from file: %w", err)
			}
		}
	}

	config.setDefaults()
	config.loadFromEnvironment()

	if err := config.validateShape(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// loadFromFile loads configuration from a YAML file.
func (c *Config) loadFromFile(configPath string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return err
		}
		return fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}

	return nil
}

// setDefaults applies default values for missing configuration.
func (c *Config) setDefaults() {
	if c.Salesforce.LoginURL == "" {
		c.Salesforce.LoginURL = "https://login.salesforce.com"
	}
	if c.Salesforce.APIVersion == "" {
		c.Salesforce.APIVersion = "v59.0"
	}

	if c.Drive.BaseURL == "" {
		c.Drive.BaseURL = "https://www.googleapis.com/drive/v3"
	}
	if c.Drive.PageSize == 0 {
		c.Drive.PageSize = 1000
	}

	if c.Sync.MigrationField == "" {
		c.Sync.MigrationField = "Archdpdx_Migration_Id__c"
	}
	if c.Sync.OutputDir == "" {
		c.Sync.OutputDir = "./output"
	}

	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.BaseDelayMs == 0 {
		c.Retry.BaseDelayMs = 1000
	}
	if c.Retry.Multiplier == 0 {
		c.Retry.Multiplier = 2.0
	}
	if c.Retry.MaxDelaySec == 0 {
		c.Retry.MaxDelaySec = 60
	}
	if c.Retry.TimeoutSeconds == 0 {
		c.Retry.TimeoutSeconds = 300
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.File == "" {
		c.Logging.File = "./photo_upload.log"
	}
	c.Logging.Console = true
}

// loadFromEnvironment overrides configuration with environment variables.
// The names match the original migration scripts so existing .env files
// keep working.
func (c *Config) loadFromEnvironment() {
	if val := os.Getenv("SF_USERNAME"); val != "" {
		c.Salesforce.Username = val
	}
	if val := os.Getenv("SF_PASSWORD"); val != "" {
		c.Salesforce.Password = val
	}
	if val := os.Getenv("SF_SECURITY_TOKEN"); val != "" {
		c.Salesforce.SecurityToken = val
	}
	if val := os.Getenv("SF_CLIENT_ID"); val != "" {
		c.Salesforce.ClientID = val
	}
	if val := os.Getenv("SF_CLIENT_SECRET"); val != "" {
		c.Salesforce.ClientSecret = val
	}
	if val := os.Getenv("SF_DOMAIN"); val != "" {
		c.Salesforce.LoginURL = val
	}
	if val := os.Getenv("FILE_DOMAIN"); val != "" {
		c.Salesforce.FileDomain = val
	}

	if val := os.Getenv("SERVICE_ACCOUNT_FILE"); val != "" {
		c.Drive.ServiceAccountFile = val
	}
	if val := os.Getenv("FOLDER_ID"); val != "" {
		c.Drive.FolderID = val
	}

	if val := os.Getenv("PHOTO_FIELD"); val != "" {
		c.Sync.Contact.PhotoField = val
	}
	if val := os.Getenv("PHOTO_FIELD_ACCOUNT"); val != "" {
		c.Sync.Account.PhotoField = val
	}
	if val := os.Getenv("OUTPUT_DIR"); val != "" {
		c.Sync.OutputDir = val
	}
}

// validateShape checks settings that have values but hold nonsense. It
// does not check required settings; that is ValidateRequired's job, which
// runs once the selected record types are known.
func (c *Config) validateShape() error {
	if err := c.Retry.Policy().Validate(); err != nil {
		return fmt.Errorf("retry: %w", err)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	return nil
}

// ValidateRequired verifies every setting the run needs before any network
// call is made. All missing names are collected into a single
// MissingError.
func (c *Config) ValidateRequired(objs []objects.Object) error {
	var missing []string

	if c.Salesforce.Username == "" {
		missing = append(missing, "salesforce.username (SF_USERNAME)")
	}
	if c.Salesforce.Password == "" {
		missing = append(missing, "salesforce.password (SF_PASSWORD)")
	}
	if c.Salesforce.SecurityToken == "" {
		missing = append(missing, "salesforce.security_token (SF_SECURITY_TOKEN)")
	}
	if c.Salesforce.ClientID == "" {
		missing = append(missing, "salesforce.client_id (SF_CLIENT_ID)")
	}
	if c.Salesforce.ClientSecret == "" {
		missing = append(missing, "salesforce.client_secret (SF_CLIENT_SECRET)")
	}
	if c.Salesforce.FileDomain == "" {
		missing = append(missing, "salesforce.file_domain (FILE_DOMAIN)")
	}
	if c.Drive.ServiceAccountFile == "" {
		missing = append(missing, "drive.service_account_file (SERVICE_ACCOUNT_FILE)")
	}
	if c.Drive.FolderID == "" {
		missing = append(missing, "drive.folder_id (FOLDER_ID)")
	}

	for _, obj := range objs {
		switch obj {
		case objects.Account:
			if c.Sync.Account.PhotoField == "" {
				missing = append(missing, "sync.account.photo_field (PHOTO_FIELD_ACCOUNT)")
			}
		case objects.Contact:
			if c.Sync.Contact.PhotoField == "" {
				missing = append(missing, "sync.contact.photo_field (PHOTO_FIELD)")
			}
		}
	}

	if len(missing) > 0 {
		return &MissingError{Names: missing}
	}
	return nil
}

// ObjectSpec resolves the objects.Spec for a record type from this
// configuration.
func (c *Config) ObjectSpec(obj objects.Object) (objects.Spec, error) {
	var oc ObjectConfig
	switch obj {
	case objects.Account:
		oc = c.Sync.Account
	case objects.Contact:
		oc = c.Sync.Contact
	}
	return objects.Resolve(obj, objects.SpecConfig{
		PhotoField:     oc.PhotoField,
		MigrationField: c.Sync.MigrationField,
		BatchSize:      oc.BatchSize,
	})
}
