package errs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// CLIErrorAdapter maps FossilError categories to process exit codes and
// user-facing messages for cmd/fossilgo.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
}

// NewCLIErrorAdapter creates a new CLI error adapter.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{verbose: verbose, logger: logger}
}

// ExitCodeFor determines the process exit code for an error.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	if fe, ok := err.(*FossilError); ok {
		return a.exitCodeFromFossilError(fe)
	}
	return 1
}

func (a *CLIErrorAdapter) exitCodeFromFossilError(err *FossilError) int {
	switch err.Category {
	case CategoryUsage:
		return 2
	case CategoryAuth, CategoryPermission:
		return 5
	case CategoryBusy:
		return 6
	case CategoryCorruptBlob, CategoryCorruptDelta, CategoryManifestParse:
		return 8
	case CategoryPhantom:
		return 9
	case CategoryVerifyFailed:
		return 10
	case CategoryProtocol:
		return 11
	case CategoryNotFound:
		return 12
	case CategoryInternal:
		return 70
	default:
		return 1
	}
}

// FormatError formats an error for user-facing display.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	if fe, ok := err.(*FossilError); ok {
		return a.formatFossilError(fe)
	}
	return fmt.Sprintf("fossilgo: %v", err)
}

func (a *CLIErrorAdapter) formatFossilError(err *FossilError) string {
	if a.verbose {
		return err.Error()
	}
	switch err.Category {
	case CategoryUsage, CategoryAuth, CategoryPermission:
		return err.Message
	default:
		return fmt.Sprintf("%s: %s", err.Category, err.Message)
	}
}

// HandleError writes the formatted error to stderr, logs it if warranted,
// then terminates the process with the matching exit code.
func (a *CLIErrorAdapter) HandleError(err error) {
	if err == nil {
		return
	}

	code := a.ExitCodeFor(err)
	message := a.FormatError(err)

	if a.shouldLog(err) {
		a.logError(err)
	}

	fmt.Fprintf(os.Stderr, "%s\n", message)
	os.Exit(code)
}

func (a *CLIErrorAdapter) shouldLog(err error) bool {
	if a.verbose {
		return true
	}
	if fe, ok := err.(*FossilError); ok {
		return fe.Category == CategoryInternal || fe.Category == CategoryCorruptBlob ||
			fe.Category == CategoryCorruptDelta || fe.Category == CategoryVerifyFailed
	}
	return true
}

func (a *CLIErrorAdapter) logError(err error) {
	if fe, ok := err.(*FossilError); ok {
		level := a.levelFor(fe.Category)
		attrs := []slog.Attr{slog.String("category", string(fe.Category))}
		if fe.Retryable {
			attrs = append(attrs, slog.Bool("retryable", true))
		}
		for k, v := range fe.Fields {
			attrs = append(attrs, slog.Any(k, v))
		}
		a.logger.LogAttrs(context.Background(), level, fe.Message, attrs...)
		return
	}
	a.logger.Error("unclassified error", "error", err)
}

func (a *CLIErrorAdapter) levelFor(category Category) slog.Level {
	switch category {
	case CategoryInternal, CategoryCorruptBlob, CategoryCorruptDelta, CategoryVerifyFailed:
		return slog.LevelError
	case CategoryBusy:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
