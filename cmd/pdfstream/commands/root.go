package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pyhub-apps/pdfstream-golang/internal/config"
	"github.com/pyhub-apps/pdfstream-golang/internal/observability"
	"github.com/pyhub-apps/pdfstream-golang/pkg/stream"
	"github.com/pyhub-apps/pdfstream-golang/pkg/streamio"
)

var (
	cfgFile  string
	password string
	verbose  bool
	noColor  bool

	cfg    *config.Config
	logger *observability.Logger
	lib    *stream.Library
)

var rootCmd = &cobra.Command{
	Use:   "pdfstream",
	Short: "Inspect, save and convert PDF documents read block by block",
	Long: `pdfstream reads PDF documents through a block source, so the whole file is
never loaded up front. It can report document facts, extract text, save with
output options and convert a document's object graph to JSON.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadEnvFiles(".env.local", ".env"); err != nil {
			return err
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if verbose {
			cfg.Log.Level = "debug"
		}

		logger = observability.NewLogger(observability.LogConfig{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
		})

		opts := cfg.ToOptions()
		zl := logger.Zerolog()
		opts.Logger = &zl
		lib = stream.NewLibrary(opts)
		return lib.Start()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if lib != nil {
			lib.Stop()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVarP(&password, "password", "p", "", "document password")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// inputFile is a PDF opened for block reads.
type inputFile struct {
	*os.File
	size int64
}

func openInput(path string) (*inputFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &inputFile{File: f, size: fi.Size()}, nil
}

func (f *inputFile) blocks() streamio.BlockReader {
	return streamio.ReaderAtBlocks(f.File)
}

// openHandle opens path in s and returns the handle with a release func.
func openHandle(s *stream.Session, path string) (stream.Handle, func(), error) {
	in, err := openInput(path)
	if err != nil {
		return stream.NullHandle, nil, err
	}
	h := s.Open(in.size, in.blocks(), password)
	if h == stream.NullHandle {
		in.Close()
		msg, _ := s.LastError()
		return stream.NullHandle, nil, fmt.Errorf("%s: %s", path, msg)
	}
	return h, func() {
		s.Close(h)
		in.Close()
	}, nil
}

// sessionError turns the session's last error into an error value.
func sessionError(s *stream.Session, what string) error {
	msg, _ := s.LastError()
	return fmt.Errorf("%s: %s", what, msg)
}

// createOutput returns stdout for "" or "-", otherwise a new file. The
// close func leaves stdout open.
func createOutput(path string) (*os.File, func() error, error) {
	if path == "" || path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}
