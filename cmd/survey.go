// File: cmd/survey.go
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/cafogleman/cb-response-surveyor/internal/backend"
	"github.com/cafogleman/cb-response-surveyor/internal/config"
	"github.com/cafogleman/cb-response-surveyor/internal/credentials"
	"github.com/cafogleman/cb-response-surveyor/internal/criteria"
	"github.com/cafogleman/cb-response-surveyor/internal/observability"
	"github.com/cafogleman/cb-response-surveyor/internal/output"
	"github.com/cafogleman/cb-response-surveyor/internal/query"
	"github.com/cafogleman/cb-response-surveyor/internal/survey"
)

// newSurveyCmd creates and configures the `survey` command.
func newSurveyCmd() *cobra.Command {
	var opts config.SurveyConfig

	surveyCmd := &cobra.Command{
		Use:   "survey",
		Short: "Run process searches and write unique matches to a CSV file",
		Long: `Queries the configured Carbon Black backend for process executions matching
the supplied criteria (a raw query, definition files, or an IOC list),
deduplicates the matches, and writes them to <prefix>-survey.csv with
program and source provenance columns.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg := &config.Config{}
			if err := viper.Unmarshal(cfg); err != nil {
				return fmt.Errorf("failed to unmarshal config: %w", err)
			}
			cfg.Survey = opts

			return runSurvey(ctx, logger, cfg)
		},
	}

	surveyCmd.Flags().StringVar(&opts.Prefix, "prefix", "", "Output filename prefix.")
	surveyCmd.Flags().StringVar(&opts.Profile, "profile", "default", "The credential profile to use.")
	surveyCmd.Flags().BoolVar(&opts.Cloud, "cbc", false, "Use Cloud Enterprise EDR (formerly ThreatHunter) instead of on-prem Response.")
	surveyCmd.Flags().BoolVar(&opts.Translate, "translate", false, "Translate queries from Response to CBC format.")

	// Time boundaries for the survey. Days win when both are given.
	surveyCmd.Flags().IntVar(&opts.Days, "days", 0, "Number of days to search.")
	surveyCmd.Flags().IntVar(&opts.Minutes, "minutes", 0, "Number of minutes to search.")

	// Survey criteria: exactly one source.
	surveyCmd.Flags().StringVar(&opts.DefFile, "deffile", "", "Definition file to process (must end in .json).")
	surveyCmd.Flags().StringVar(&opts.DefDir, "defdir", "", "Directory containing multiple definition files.")
	surveyCmd.Flags().StringVar(&opts.Query, "query", "", "A single process query to execute.")
	surveyCmd.Flags().StringVar(&opts.IOCFile, "iocfile", "", "IOC file to process, one IOC per line. Requires --ioctype.")
	surveyCmd.MarkFlagsOneRequired("deffile", "defdir", "query", "iocfile")
	surveyCmd.MarkFlagsMutuallyExclusive("deffile", "defdir", "query", "iocfile")

	surveyCmd.Flags().StringVar(&opts.Hostname, "hostname", "", "Target a specific host by name.")
	surveyCmd.Flags().StringVar(&opts.Username, "username", "", "Target a specific username.")
	surveyCmd.Flags().StringVar(&opts.IOCType, "ioctype", "", "One of: ipaddr, domain, md5.")

	return surveyCmd
}

// runSurvey contains the core, testable survey flow:
// validate → resolve backend → load criteria → open output → execute.
// Every validation failure fires before the output file is created and
// before any network call.
func runSurvey(ctx context.Context, logger *zap.Logger, cfg *config.Config) error {
	sc := cfg.Survey

	if err := validateSurveyArgs(sc); err != nil {
		return err
	}

	b, err := buildBackend(cfg)
	if err != nil {
		return err
	}

	qopts := query.Options{
		Days:     sc.Days,
		Minutes:  sc.Minutes,
		Hostname: sc.Hostname,
		Username: sc.Username,
	}
	if err := query.CheckConflicts(sc.Query, b, qopts); err != nil {
		return err
	}

	groups, err := loadGroups(sc)
	if err != nil {
		return err
	}

	outputFilename := sc.OutputFilename()
	writer, err := output.NewWriter(outputFilename)
	if err != nil {
		return err
	}

	s := survey.New(b, writer, query.BaseFragment(b, qopts), sc.Translate, logger)
	runErr := s.Run(ctx, groups)
	if closeErr := writer.Close(); runErr == nil {
		runErr = closeErr
	}
	if runErr != nil {
		return runErr
	}

	logger.Info("Results saved", zap.String("file", outputFilename))
	return nil
}

// validateSurveyArgs covers what cobra's flag groups cannot: companion flags
// and input paths that must exist before anything else happens.
func validateSurveyArgs(sc config.SurveyConfig) error {
	if sc.IOCFile != "" && sc.IOCType == "" {
		return fmt.Errorf("--iocfile requires --ioctype")
	}
	if sc.DefFile != "" {
		if _, err := os.Stat(sc.DefFile); err != nil {
			return fmt.Errorf("deffile does not exist: %s", sc.DefFile)
		}
	}
	if sc.DefDir != "" {
		if _, err := os.Stat(sc.DefDir); err != nil {
			return fmt.Errorf("defdir does not exist: %s", sc.DefDir)
		}
	}
	if sc.IOCFile != "" {
		if _, err := os.Stat(sc.IOCFile); err != nil {
			return fmt.Errorf("iocfile does not exist: %s", sc.IOCFile)
		}
	}
	return nil
}

// buildBackend resolves the credential profile for the selected dialect and
// constructs its client.
func buildBackend(cfg *config.Config) (backend.Backend, error) {
	store, err := credentials.NewStore(cfg.Backend.CredentialDir)
	if err != nil {
		return nil, err
	}

	if cfg.Survey.Cloud {
		profile, err := store.LoadCloud(cfg.Survey.Profile)
		if err != nil {
			return nil, err
		}
		return backend.NewCloud(profile, cfg.Backend), nil
	}

	profile, err := store.LoadResponse(cfg.Survey.Profile)
	if err != nil {
		return nil, err
	}
	return backend.NewResponse(profile, cfg.Backend), nil
}

// loadGroups dispatches to the criteria loader for the selected input mode.
func loadGroups(sc config.SurveyConfig) ([]criteria.Group, error) {
	switch {
	case sc.Query != "":
		return []criteria.Group{criteria.FromQuery(sc.Query)}, nil
	case sc.IOCFile != "":
		return criteria.LoadIOCFile(sc.IOCFile, sc.IOCType)
	case sc.DefFile != "":
		return criteria.LoadDefinitionFile(sc.DefFile)
	case sc.DefDir != "":
		return criteria.LoadDefinitionDir(sc.DefDir)
	default:
		return nil, fmt.Errorf("no survey criteria provided")
	}
}
