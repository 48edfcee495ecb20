package commands

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var infoJobs int

var infoCmd = &cobra.Command{
	Use:   "info <file.pdf>...",
	Short: "Show page count, version and flags of PDF files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runInfo,
}

func init() {
	infoCmd.Flags().IntVarP(&infoJobs, "jobs", "j", runtime.NumCPU(), "files inspected concurrently")
	rootCmd.AddCommand(infoCmd)
}

type fileInfo struct {
	path       string
	pages      int
	version    string
	encrypted  int
	linearized int
	err        error
}

func tri(v int) string {
	switch v {
	case 1:
		return "yes"
	case 0:
		return "no"
	default:
		return "?"
	}
}

func runInfo(cmd *cobra.Command, args []string) error {
	if noColor {
		color.NoColor = true
	}

	results := make([]fileInfo, len(args))
	var g errgroup.Group
	g.SetLimit(max(infoJobs, 1))
	for i, path := range args {
		g.Go(func() error {
			// One session per goroutine keeps error messages apart.
			s := lib.NewSession()
			r := fileInfo{path: path}
			defer func() { results[i] = r }()

			h, release, err := openHandle(s, path)
			if err != nil {
				r.err = err
				return nil
			}
			defer release()

			r.pages = s.PageCount(h)
			v := s.PDFVersion(h)
			r.version = s.String(v)
			s.FreeString(v)
			r.encrypted = s.IsEncrypted(h)
			r.linearized = s.IsLinearized(h)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	bold := color.New(color.Bold)
	bold.Fprintln(w, "FILE\tPAGES\tVERSION\tENCRYPTED\tLINEARIZED")

	failed := 0
	for _, r := range results {
		if r.err != nil {
			failed++
			fmt.Fprintf(w, "%s\t%s\n", r.path, color.RedString("error: %v", r.err))
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.path, strconv.Itoa(r.pages), r.version, tri(r.encrypted), tri(r.linearized))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(args))
	}
	return nil
}
