package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yuanying/fastepub/internal/content"
	"github.com/yuanying/fastepub/internal/library"
)

const (
	defaultJPEGQuality = 85
	minJPEGQuality     = 60
	maxJPEGQuality     = 100
)

// cliOptions is the configuration shared by every subcommand.
type cliOptions struct {
	Logger   *slog.Logger
	StateDir string
	Content  content.Options
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fastepub",
		Short: "Read EPUB books from the command line",
		Long: `fastepub opens EPUB 2 and EPUB 3 books, resolves chapters by table of
contents entry or reading order, and renders them as self-contained HTML
with every image inlined.

Reading progress and the list of opened books are kept in a JSON state
file so a book reopens where it was left.`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.String("log-level", "info", "Log level (debug|info|warn|error)")
	flags.String("log-format", "text", "Log format (text|json)")
	flags.BoolP("verbose", "v", false, "Enable verbose logging (same as --log-level debug)")
	flags.String("state-dir", "", "Directory holding app_state.json (default: $XDG_CONFIG_HOME/fast_epub)")
	flags.String("missing-image", "keep", "Unresolved image references: keep the reference or use a placeholder (keep|placeholder)")
	flags.Int("max-image-width", 0, "Downscale images wider than this many pixels (0 keeps original size)")
	flags.Int("quality", defaultJPEGQuality, "JPEG quality for re-encoded images (60-100)")
	flags.Bool("strict", false, "Reject books with a missing or compressed mimetype entry")

	cmd.AddCommand(
		newInfoCmd(),
		newTOCCmd(),
		newChapterCmd(),
		newCoverCmd(),
		newLibraryCmd(),
		newProgressCmd(),
	)
	return cmd
}

func readCLIOptions(cmd *cobra.Command) (cliOptions, error) {
	flags := cmd.Flags()

	logLevel, _ := flags.GetString("log-level")
	logFormat, _ := flags.GetString("log-format")
	verbose, _ := flags.GetBool("verbose")
	stateDir, _ := flags.GetString("state-dir")
	missingImage, _ := flags.GetString("missing-image")
	maxImageWidth, _ := flags.GetInt("max-image-width")
	quality, _ := flags.GetInt("quality")
	strict, _ := flags.GetBool("strict")

	logLevel = strings.ToLower(strings.TrimSpace(logLevel))
	logFormat = strings.ToLower(strings.TrimSpace(logFormat))

	switch logLevel {
	case "debug", "info", "warn", "error":
	default:
		return cliOptions{}, fmt.Errorf("invalid --log-level %q (want debug|info|warn|error)", logLevel)
	}
	switch logFormat {
	case "text", "json":
	default:
		return cliOptions{}, fmt.Errorf("invalid --log-format %q (want text|json)", logFormat)
	}
	policy, err := content.ParseMissingImagePolicy(missingImage)
	if err != nil {
		return cliOptions{}, fmt.Errorf("invalid --missing-image: %w", err)
	}
	if maxImageWidth < 0 {
		return cliOptions{}, fmt.Errorf("invalid --max-image-width %d (must be >= 0)", maxImageWidth)
	}
	if quality < minJPEGQuality || quality > maxJPEGQuality {
		return cliOptions{}, fmt.Errorf("invalid --quality %d (must be %d-%d)", quality, minJPEGQuality, maxJPEGQuality)
	}

	if verbose {
		logLevel = "debug"
	}
	logger := buildLogger(cmd.ErrOrStderr(), logLevel, logFormat)

	if stateDir == "" {
		stateDir, err = library.DefaultDir()
		if err != nil {
			return cliOptions{}, fmt.Errorf("invalid --state-dir: %w", err)
		}
	}

	opts := content.DefaultOptions()
	opts.Logger = logger
	opts.MissingImage = policy
	opts.MaxImageWidth = maxImageWidth
	opts.JPEGQuality = quality
	opts.Strict = strict

	return cliOptions{
		Logger:   logger,
		StateDir: stateDir,
		Content:  opts,
	}, nil
}

func buildLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handlerOpts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(handler)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
