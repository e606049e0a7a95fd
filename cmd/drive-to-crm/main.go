package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jdavila/drive-to-crm/internal/config"
	"github.com/jdavila/drive-to-crm/internal/dispatch"
	"github.com/jdavila/drive-to-crm/internal/drive"
	"github.com/jdavila/drive-to-crm/internal/engine"
	"github.com/jdavila/drive-to-crm/internal/exclusions"
	"github.com/jdavila/drive-to-crm/internal/index"
	"github.com/jdavila/drive-to-crm/internal/logging"
	"github.com/jdavila/drive-to-crm/internal/objects"
	"github.com/jdavila/drive-to-crm/internal/progress"
	"github.com/jdavila/drive-to-crm/internal/report"
	"github.com/jdavila/drive-to-crm/internal/salesforce"
)

var (
	// Version information - will be set during build
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	objectName string
	outputDir  string
	verbose    bool
	dryRun     bool
	limit      int
	noProgress bool
)

// buildRootCommand creates and configures the root command
func buildRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "drive-to-crm",
		Short: "Sync Google Drive photos into Salesforce records",
		Long: `drive-to-crm matches image files in a Google Drive folder to Salesforce
records by the numeric migration id embedded in the filename, uploads
missing images as file attachments, and keeps each record's photo field
pointing at the right image.

The tool:
- Lists photoNNN.jpg files under the Accounts and Contacts subfolders
- Uploads images that are not yet attached to their matching record
- Repairs photo fields that are stale or malformed
- Skips everything already in sync, so reruns are safe
- Writes a CSV audit trail and an error log per record type`,
		Run: func(cmd *cobra.Command, args []string) {
			configPath := configFile
			if configPath == "" {
				configPath = "config.yaml"
			}
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				cmd.Printf("Configuration error: %v\n", err)
				os.Exit(1)
			}

			if err := runSync(context.Background(), cmd, cfg); err != nil {
				cmd.Printf("Sync failed: %v\n", err)
				os.Exit(1)
			}
		},
	}

	rootCmd.AddCommand(createVersionCommand())
	rootCmd.AddCommand(createConfigCommand())

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "configuration file path (default: config.yaml)")
	rootCmd.PersistentFlags().StringVar(&objectName, "object", "all", "record type to process: account, contact, or all")
	rootCmd.PersistentFlags().StringVar(&outputDir, "output-dir", "", "directory for CSV and error logs (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "verbose logging")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "decide outcomes without uploading or updating anything")
	rootCmd.PersistentFlags().IntVar(&limit, "limit", 0, "limit processing to N files per record type (0 = no limit)")
	rootCmd.PersistentFlags().BoolVar(&noProgress, "no-progress", false, "disable per-file terminal output")

	return rootCmd
}

func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("drive-to-crm %s\n", version)
			cmd.Printf("  commit: %s\n", commit)
			cmd.Printf("  built:  %s\n", buildDate)
		},
	}
}

func createConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the configuration file structure",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(`Configuration file structure (config.yaml):

salesforce:
  username: user@example.org          # or SF_USERNAME
  password: secret                    # or SF_PASSWORD
  security_token: token               # or SF_SECURITY_TOKEN
  client_id: connected-app-id         # or SF_CLIENT_ID
  client_secret: connected-app-secret # or SF_CLIENT_SECRET
  login_url: https://login.salesforce.com
  file_domain: https://myorg.file.force.com  # or FILE_DOMAIN
  api_version: v59.0

drive:
  service_account_file: service-account.json # or SERVICE_ACCOUNT_FILE
  folder_id: drive-folder-id                  # or FOLDER_ID
  page_size: 1000

sync:
  migration_field: Archdpdx_Migration_Id__c
  output_dir: ./output
  exclusions_file: ""                 # optional skip list, one filename per line
  account:
    photo_field: Photo__c             # or PHOTO_FIELD_ACCOUNT
    batch_size: 100
  contact:
    photo_field: Photo__c             # or PHOTO_FIELD
    batch_size: 50

retry:
  max_attempts: 3
  base_delay_ms: 1000
  multiplier: 2.0
  max_delay_seconds: 60

logging:
  level: info
  file: ./photo_upload.log
  console: true

Every credential can come from the environment instead of the file.`)
		},
	}
}

// selectObjects parses the --object flag into record types.
func selectObjects(name string) ([]objects.Object, error) {
	if name == "all" || name == "" {
		return []objects.Object{objects.Account, objects.Contact}, nil
	}
	obj, err := objects.Parse(name)
	if err != nil {
		return nil, err
	}
	return []objects.Object{obj}, nil
}

func runSync(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	objs, err := selectObjects(objectName)
	if err != nil {
		return err
	}

	if outputDir != "" {
		cfg.Sync.OutputDir = outputDir
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	// Required settings are checked in full before any network call so the
	// operator sees every missing name at once.
	if err := cfg.ValidateRequired(objs); err != nil {
		var missing *config.MissingError
		if errors.As(err, &missing) {
			cmd.Printf("Missing required configuration:\n")
			for _, name := range missing.Names {
				cmd.Printf("  - %s\n", name)
			}
			os.Exit(1)
		}
		return err
	}

	if err := logging.InitializeLogging(cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger := logging.GetDefaultLogger()
	defer logger.Close()

	if err := os.MkdirAll(cfg.Sync.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	driveAuth, err := drive.NewServiceAccountAuth(cfg.Drive.ServiceAccountFile)
	if err != nil {
		return err
	}
	driveOpts := []drive.Option{
		drive.WithPageSize(cfg.Drive.PageSize),
		drive.WithRetryPolicy(cfg.Retry.Policy()),
	}
	if cfg.Drive.BaseURL != "" {
		driveOpts = append(driveOpts, drive.WithBaseURL(cfg.Drive.BaseURL))
	}
	driveClient := drive.NewClient(driveAuth, driveOpts...)

	sfAuth := salesforce.NewPasswordAuth(salesforce.Credentials{
		Username:      cfg.Salesforce.Username,
		Password:      cfg.Salesforce.Password,
		SecurityToken: cfg.Salesforce.SecurityToken,
		ClientID:      cfg.Salesforce.ClientID,
		ClientSecret:  cfg.Salesforce.ClientSecret,
		LoginURL:      cfg.Salesforce.LoginURL,
	})
	sfClient := salesforce.NewClient(sfAuth,
		salesforce.WithAPIVersion(cfg.Salesforce.APIVersion),
		salesforce.WithRetryPolicy(cfg.Retry.Policy()),
	)

	excluded, err := exclusions.NewList(exclusions.Config{FilePath: cfg.Sync.ExclusionsFile})
	if err != nil {
		return err
	}
	defer excluded.Close()

	if dryRun {
		cmd.Println("Dry run: no uploads or record updates will be performed")
	}

	var failed bool
	for _, obj := range objs {
		if err := runObject(ctx, cmd, cfg, obj, driveClient, sfClient, excluded, logger); err != nil {
			// One record type failing must not keep the other from
			// running.
			logger.Error("Processing %s failed: %v", obj, err)
			cmd.Printf("Processing %s failed: %v\n", obj, err)
			failed = true
		}
	}
	if failed {
		return fmt.Errorf("one or more record types did not complete")
	}
	return nil
}

func runObject(ctx context.Context, cmd *cobra.Command, cfg *config.Config,
	obj objects.Object, driveClient drive.Client, sfClient salesforce.Client,
	excluded exclusions.List, logger logging.Logger) error {

	spec, err := cfg.ObjectSpec(obj)
	if err != nil {
		return err
	}

	audit := report.NewAudit()
	// The audit trail is written no matter how far the run got; a run that
	// found nothing still exports its synthetic row.
	defer func() {
		csvPath := filepath.Join(cfg.Sync.OutputDir, spec.CSVFile)
		file, err := os.Create(csvPath)
		if err != nil {
			logger.Error("Failed to create CSV export %s: %v", csvPath, err)
			return
		}
		defer file.Close()
		if err := audit.ExportCSV(file); err != nil {
			logger.Error("Failed to write CSV export %s: %v", csvPath, err)
			return
		}
		cmd.Printf("Audit trail written to %s\n", csvPath)
	}()

	records, attachments, err := index.Build(ctx, sfClient, spec, logger)
	if err != nil {
		return err
	}

	var reporter progress.Reporter
	if noProgress {
		reporter = progress.NewNopReporter()
	} else {
		reporter = progress.NewTerminalReporter()
	}

	reconciler := engine.NewReconciler(driveClient, sfClient, records, attachments,
		spec, cfg.Salesforce.FileDomain, dryRun, logger)
	runner := engine.NewRunner(driveClient, reconciler, spec, audit, reporter,
		excluded, limit, logger)

	mutations, runErr := runner.Run(ctx, cfg.Drive.FolderID)
	if runErr != nil {
		return runErr
	}

	if dryRun {
		cmd.Printf("Dry run: %d field updates would be dispatched for %s\n",
			len(mutations), spec.APIName)
		return nil
	}

	errorLog := dispatch.NewErrorLog(filepath.Join(cfg.Sync.OutputDir, spec.ErrorLogFile))
	defer errorLog.Close()

	dispatcher := dispatch.NewDispatcher(sfClient, spec, errorLog, logger)
	result, err := dispatcher.Dispatch(ctx, mutations)
	if err != nil {
		return err
	}
	if result.Batches > 0 {
		cmd.Printf("Dispatched %d field updates for %s in %d batches (%d failed)\n",
			result.Succeeded, spec.APIName, result.Batches, result.Failed)
	}
	return nil
}

func main() {
	rootCmd := buildRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
