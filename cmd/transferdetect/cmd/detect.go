package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"transfer-detection-service/cmd/transferdetect/config"
	"transfer-detection-service/internal/loader"
	"transfer-detection-service/internal/models"
	"transfer-detection-service/internal/reconciler"
	"transfer-detection-service/internal/reporter"
	"transfer-detection-service/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the detect command
var (
	inputFiles    []string
	bankRulesFile string
	outputFormat  string
	outputFile    string

	dateTolerance       int
	amountOnlyTolerance int
	amountEpsilon       float64
	threshold           float64
	categoryLabel       string
	profile             string

	confirmPairs   []string
	includeReasons bool
)

// detectCmd represents the detect command
var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect transfer pairs across bank statements",
	Long: `Detect reads cleaned transaction records from one or more normalized
CSV files and reconciles outgoing/incoming legs of the same money transfer,
across banks and currencies.

Expected input columns: ` + strings.Join(loader.KnownColumns(), ", ") + `

Examples:
  # Basic detection across two statements
  transferdetect detect --input-files wise.csv,alfalah.csv

  # With per-bank name-extraction rules and JSON output
  transferdetect detect --input-files all.csv --bank-rules banks.yaml \
    --output-format json --output-file pairs.json

  # Wider tolerance and a custom category label
  transferdetect detect --input-files all.csv --date-tolerance 120 \
    --category "Internal Transfer"

  # Force-confirm pairs the engine scored below threshold
  transferdetect detect --input-files all.csv --confirm TX042=TX107`,

	PreRunE: validateDetectFlags,
	RunE:    runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)

	detectCmd.Flags().StringSliceVarP(&inputFiles, "input-files", "i", []string{}, "comma-separated paths to normalized transaction CSV files (required)")
	detectCmd.Flags().StringVarP(&bankRulesFile, "bank-rules", "r", "", "YAML file with per-bank name-extraction patterns")

	detectCmd.Flags().StringVarP(&outputFormat, "output-format", "f", "console", "output format: console, json, csv")
	detectCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")

	detectCmd.Flags().IntVarP(&dateTolerance, "date-tolerance", "d", 72, "date matching tolerance in hours")
	detectCmd.Flags().IntVar(&amountOnlyTolerance, "amount-only-tolerance", 24, "tighter tolerance in hours for bare amount matches")
	detectCmd.Flags().Float64VarP(&amountEpsilon, "amount-epsilon", "e", 0.01, "absolute difference under which amounts count as equal")
	detectCmd.Flags().Float64VarP(&threshold, "threshold", "t", 0.70, "minimum confidence for auto-confirmation (0.0-1.0)")
	detectCmd.Flags().StringVar(&categoryLabel, "category", "Balance Correction", "category label written onto confirmed transfer legs")
	detectCmd.Flags().StringVar(&profile, "profile", "default", "matching profile: default, strict, relaxed")

	detectCmd.Flags().StringSliceVar(&confirmPairs, "confirm", []string{}, "manual confirmations as OUTGOING_ID=INCOMING_ID pairs")
	detectCmd.Flags().BoolVar(&includeReasons, "reasons", false, "include per-pair match reasons in console output")

	detectCmd.MarkFlagRequired("input-files")

	viper.BindPFlag("input-files", detectCmd.Flags().Lookup("input-files"))
	viper.BindPFlag("bank-rules", detectCmd.Flags().Lookup("bank-rules"))
	viper.BindPFlag("output-format", detectCmd.Flags().Lookup("output-format"))
	viper.BindPFlag("output-file", detectCmd.Flags().Lookup("output-file"))
	viper.BindPFlag("date-tolerance", detectCmd.Flags().Lookup("date-tolerance"))
	viper.BindPFlag("amount-only-tolerance", detectCmd.Flags().Lookup("amount-only-tolerance"))
	viper.BindPFlag("amount-epsilon", detectCmd.Flags().Lookup("amount-epsilon"))
	viper.BindPFlag("threshold", detectCmd.Flags().Lookup("threshold"))
	viper.BindPFlag("category", detectCmd.Flags().Lookup("category"))
	viper.BindPFlag("profile", detectCmd.Flags().Lookup("profile"))
}

func validateDetectFlags(cmd *cobra.Command, args []string) error {
	// viper values allow overrides from config file and environment
	inputFiles = viper.GetStringSlice("input-files")
	bankRulesFile = viper.GetString("bank-rules")
	outputFormat = viper.GetString("output-format")
	outputFile = viper.GetString("output-file")
	dateTolerance = viper.GetInt("date-tolerance")
	amountOnlyTolerance = viper.GetInt("amount-only-tolerance")
	amountEpsilon = viper.GetFloat64("amount-epsilon")
	threshold = viper.GetFloat64("threshold")
	categoryLabel = viper.GetString("category")
	profile = viper.GetString("profile")

	if len(inputFiles) == 0 {
		return fmt.Errorf("at least one input file is required")
	}

	for i, path := range inputFiles {
		if err := validateFileExists(path, fmt.Sprintf("input file %d", i+1)); err != nil {
			return err
		}
	}

	if bankRulesFile != "" {
		if err := validateFileExists(bankRulesFile, "bank rules file"); err != nil {
			return err
		}
	}

	validFormats := map[string]bool{"console": true, "json": true, "csv": true}
	if !validFormats[outputFormat] {
		return fmt.Errorf("invalid output format '%s'. Valid formats: console, json, csv", outputFormat)
	}

	validProfiles := map[string]bool{"default": true, "strict": true, "relaxed": true}
	if !validProfiles[profile] {
		return fmt.Errorf("invalid profile '%s'. Valid profiles: default, strict, relaxed", profile)
	}

	if dateTolerance <= 0 {
		return fmt.Errorf("date tolerance must be positive")
	}
	if threshold < 0.0 || threshold > 1.0 {
		return fmt.Errorf("threshold must be between 0.0 and 1.0")
	}

	if _, err := parseConfirmations(confirmPairs); err != nil {
		return err
	}

	if outputFile != "" {
		dir := filepath.Dir(outputFile)
		if dir != "." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return fmt.Errorf("output directory does not exist: %s", dir)
			}
		}
	}

	return nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return fmt.Errorf("%s path cannot be empty", description)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s does not exist: %s", description, filePath)
	}
	if err != nil {
		return fmt.Errorf("error accessing %s: %w", description, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected a file: %s", description, filePath)
	}

	return nil
}

// parseConfirmations converts OUT=IN flag values into manual confirmations.
func parseConfirmations(pairs []string) ([]models.ManualConfirmation, error) {
	confirmations := make([]models.ManualConfirmation, 0, len(pairs))

	for _, pair := range pairs {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid confirmation %q: expected OUTGOING_ID=INCOMING_ID", pair)
		}
		confirmations = append(confirmations, models.ManualConfirmation{
			OutgoingID: strings.TrimSpace(parts[0]),
			IncomingID: strings.TrimSpace(parts[1]),
		})
	}

	return confirmations, nil
}

func runDetect(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	logCfg := logger.DefaultConfig()
	if viper.GetBool("verbose") {
		logCfg = logger.DebugConfig()
	}
	log, err := logger.New(logCfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	rules, err := config.LoadBankRules(bankRulesFile)
	if err != nil {
		return err
	}

	matchingConfig, err := config.CreateMatchingConfig(config.MatchingOptions{
		Profile:                  profile,
		DateToleranceHours:       dateTolerance,
		AmountOnlyToleranceHours: amountOnlyTolerance,
		AmountEpsilon:            amountEpsilon,
		ConfirmationThreshold:    threshold,
		TransferCategory:         categoryLabel,
	})
	if err != nil {
		return err
	}

	records, err := loader.New(log).LoadFiles(inputFiles)
	if err != nil {
		return err
	}

	manual, err := parseConfirmations(confirmPairs)
	if err != nil {
		return err
	}

	service, err := reconciler.NewTransferService(matchingConfig, rules, log)
	if err != nil {
		return err
	}

	analysis, err := service.Detect(ctx, &reconciler.DetectionRequest{
		Records: records,
		Manual:  manual,
	})
	if err != nil {
		return err
	}

	generator, err := reporter.NewGenerator(config.CreateReportConfig(outputFormat, includeReasons))
	if err != nil {
		return fmt.Errorf("failed to create report generator: %w", err)
	}

	var output *os.File
	if outputFile != "" {
		output, err = os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer output.Close()
	} else {
		output = os.Stdout
	}

	if err := generator.Generate(analysis, output); err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "\nDetection completed: %d confirmed, %d potential, %d conflicts from %d records.\n",
			analysis.Summary.PairsFound, analysis.Summary.PotentialPairs,
			analysis.Summary.Conflicts, analysis.Summary.TotalRecords)
	}

	return nil
}
