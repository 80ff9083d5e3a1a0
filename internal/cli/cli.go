// Package cli parses command-line arguments into an app.Config.
package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/forgepipe/forgepipe/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments over environment defaults. It
// returns a populated Config, a boolean indicating the program should exit
// cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	envCfg, err := app.FromEnv()
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	flagSet := flag.NewFlagSet("forgepipe", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
forgepipe - a dependency-aware pipeline runner for code generation.

Usage:
  forgepipe [options] [DEFINITIONS_PATH]

Arguments:
  DEFINITIONS_PATH
    Path to a single .hcl pipeline file or a directory containing them.

Options:
`)
		flagSet.PrintDefaults()
	}

	defsFlag := flagSet.String("definitions", "", "Path to the pipeline file or directory.")
	pipelineFlag := flagSet.String("pipeline", envCfg.PipelineName, "Run only the named pipeline.")
	logFormatFlag := flagSet.String("log-format", envCfg.LogFormat, "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", envCfg.LogLevel, "Logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	path := envCfg.DefinitionsPath
	if *defsFlag != "" {
		path = *defsFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}

	if path == "" {
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	config, err := app.NewConfig(app.Config{
		DefinitionsPath: path,
		PipelineName:    *pipelineFlag,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	return config, false, nil
}
