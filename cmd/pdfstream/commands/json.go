package commands

import (
	"bufio"

	"github.com/spf13/cobra"

	"github.com/pyhub-apps/pdfstream-golang/pkg/streamio"
)

var (
	jsonVersion int
	jsonOutput  string
)

var jsonCmd = &cobra.Command{
	Use:   "json <file.pdf>",
	Short: "Convert the object graph of a PDF to JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runJSON,
}

func init() {
	jsonCmd.Flags().IntVar(&jsonVersion, "json-version", 0, "output layout, 1 or 2 (default from config)")
	jsonCmd.Flags().StringVarP(&jsonOutput, "output", "o", "", "output file (default stdout)")
	rootCmd.AddCommand(jsonCmd)
}

func runJSON(cmd *cobra.Command, args []string) error {
	version := jsonVersion
	if version == 0 {
		version = cfg.JSON.DefaultVersion
	}

	in, err := openInput(args[0])
	if err != nil {
		return err
	}
	defer in.Close()

	out, closeOut, err := createOutput(jsonOutput)
	if err != nil {
		return err
	}
	defer closeOut()
	bw := bufio.NewWriter(out)

	s := lib.NewSession()
	if s.ToJSON(in.size, in.blocks(), version, streamio.WriterBlocks(bw)) == 0 {
		return sessionError(s, args[0])
	}
	return bw.Flush()
}
