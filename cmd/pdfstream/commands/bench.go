package commands

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/pyhub-apps/pdfstream-golang/pkg/stream"
	"github.com/pyhub-apps/pdfstream-golang/pkg/streamio"
)

var benchIterations int

var benchCmd = &cobra.Command{
	Use:   "bench <file.pdf>",
	Short: "Time open, text extraction, JSON conversion and save",
	Args:  cobra.ExactArgs(1),
	RunE:  runBench,
}

func init() {
	benchCmd.Flags().IntVarP(&benchIterations, "iterations", "n", 10, "number of timed runs")
	rootCmd.AddCommand(benchCmd)
}

// countingBlocks counts read callback invocations and bytes delivered.
type countingBlocks struct {
	r     streamio.BlockReader
	calls int
	bytes int64
}

func (c *countingBlocks) ReadBlock(position int32, buf []byte) int {
	c.calls++
	n := c.r.ReadBlock(position, buf)
	if n > 0 {
		c.bytes += int64(n)
	}
	return n
}

type benchTimes struct {
	open, text, json, save time.Duration
	calls                  int
	bytesRead              int64
	textLen                int
	pages                  int
}

func benchOnce(s *stream.Session, in *inputFile) (benchTimes, error) {
	var t benchTimes
	counter := &countingBlocks{r: in.blocks()}

	start := time.Now()
	h := s.Open(in.size, counter, password)
	if h == stream.NullHandle {
		return t, sessionError(s, "open")
	}
	defer s.Close(h)
	t.pages = s.PageCount(h)
	t.open = time.Since(start)

	start = time.Now()
	for i := 0; i < t.pages; i++ {
		a := s.PageText(h, i)
		t.textLen += len(s.Bytes(a))
		s.FreeString(a)
	}
	t.text = time.Since(start)

	start = time.Now()
	if s.Save(h, streamio.WriterBlocks(io.Discard), 0) == 0 {
		return t, sessionError(s, "save")
	}
	t.save = time.Since(start)
	t.calls, t.bytesRead = counter.calls, counter.bytes

	start = time.Now()
	if s.ToJSON(in.size, in.blocks(), cfg.JSON.DefaultVersion, streamio.WriterBlocks(io.Discard)) == 0 {
		return t, sessionError(s, "json")
	}
	t.json = time.Since(start)
	return t, nil
}

func runBench(cmd *cobra.Command, args []string) error {
	in, err := openInput(args[0])
	if err != nil {
		return err
	}
	defer in.Close()

	s := lib.NewSession()

	// Warm-up run
	if _, err := benchOnce(s, in); err != nil {
		return err
	}

	n := max(benchIterations, 1)
	bar := progressbar.NewOptions(n,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("benchmarking"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionClearOnFinish(),
	)

	var total benchTimes
	for i := 0; i < n; i++ {
		t, err := benchOnce(s, in)
		if err != nil {
			return err
		}
		total.open += t.open
		total.text += t.text
		total.json += t.json
		total.save += t.save
		total.calls, total.bytesRead = t.calls, t.bytesRead
		total.textLen, total.pages = t.textLen, t.pages
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	avg := func(d time.Duration) time.Duration { return d / time.Duration(n) }
	fmt.Printf("=== pdfstream benchmark ===\n")
	fmt.Printf("File: %s (%d bytes)\n", args[0], in.size)
	fmt.Printf("Pages: %d\n", total.pages)
	fmt.Printf("Iterations: %d\n", n)
	fmt.Printf("Open time: %v\n", avg(total.open))
	fmt.Printf("Read callbacks per open+save: %d (%d bytes)\n", total.calls, total.bytesRead)
	fmt.Printf("Text extraction time: %v (%d chars)\n", avg(total.text), total.textLen)
	fmt.Printf("Save time: %v\n", avg(total.save))
	fmt.Printf("JSON conversion time: %v\n", avg(total.json))

	perRun := avg(total.open + total.text + total.json + total.save)
	fmt.Printf("\n=== Summary ===\n")
	fmt.Printf("Time per run: %v\n", perRun)
	if perRun > 0 {
		fmt.Printf("Pages/sec: %.2f\n", float64(total.pages)/perRun.Seconds())
	}
	return nil
}
