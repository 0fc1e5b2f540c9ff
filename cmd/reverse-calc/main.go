package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/iwvelando/reverse-consolidation/internal/config"
	"github.com/iwvelando/reverse-consolidation/internal/engine"
	"github.com/iwvelando/reverse-consolidation/internal/schedule"
	"github.com/iwvelando/reverse-consolidation/pkg/constants"
	"github.com/iwvelando/reverse-consolidation/pkg/output"
	"github.com/iwvelando/reverse-consolidation/pkg/validation"
	"go.uber.org/zap"
)

// evaluate validates and evaluates the deal against a single clock reading,
// so the warnings and the result resolve the same asOf.
func evaluate(ctx context.Context, logger *zap.Logger, conf *config.Configuration, now time.Time) ([]string, *engine.Result, error) {
	warnings := conf.ValidateConfigurationWithFixedTime(now)

	in, err := conf.ToInputWithFixedTime(now)
	if err != nil {
		return warnings, nil, fmt.Errorf("failed to convert deal file: %w", err)
	}

	res, err := engine.NewCalculator(logger).Evaluate(ctx, in)
	return warnings, res, err
}

func main() {
	configLocation := flag.String("config", constants.DefaultConfigFile, "path to deal file")
	outputFormatFlag := flag.String("output-format", "", "type of output override: pretty, csv, json")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	printConfig := flag.Bool("print-config", false, "print the normalized deal file as YAML and exit")
	flag.Parse()

	conf, err := config.LoadConfiguration(*configLocation)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load configuration at %s\", \"error\": \"%v\"}\n", *configLocation, err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(conf.Logging, *logLevel)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to initialize logger\", \"error\": \"%v\"}\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if *printConfig {
		data, err := conf.Marshal()
		if err != nil {
			logger.Fatal("failed to encode deal file",
				zap.String("op", "main"),
				zap.Error(err),
			)
		}
		_, _ = os.Stdout.Write(data)
		return
	}

	outputFormat := conf.Output.Format
	if *outputFormatFlag != "" {
		outputFormat = *outputFormatFlag
	}
	if outputFormat == "" {
		outputFormat = constants.OutputFormatPretty
	}

	err = validation.ValidateOutputFormat(outputFormat)
	if err != nil {
		logger.Fatal(err.Error(),
			zap.String("op", "main"),
		)
	}

	warnings, res, err := evaluate(context.Background(), logger, conf, time.Now())
	for _, warning := range warnings {
		logger.Warn("Configuration warning: "+warning,
			zap.String("op", "main"),
		)
	}

	switch {
	case errors.Is(err, schedule.ErrNonTerminating):
		logger.Error("deal did not pay off, printing the partial schedule",
			zap.String("op", "main"),
			zap.Error(err),
		)
	case err != nil:
		logger.Fatal("failed to evaluate deal file",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}

	switch outputFormat {
	case constants.OutputFormatPretty:
		output.PrettyFormat(os.Stdout, conf.Merchant.Name, res)
	case constants.OutputFormatCSV:
		output.CsvFormat(os.Stdout, res)
	case constants.OutputFormatJSON:
		if err := output.JSONFormat(os.Stdout, res); err != nil {
			logger.Fatal("failed to write JSON output",
				zap.String("op", "main"),
				zap.Error(err),
			)
		}
	}
}
