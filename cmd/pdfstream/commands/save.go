package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pyhub-apps/pdfstream-golang/pkg/pdf"
	"github.com/pyhub-apps/pdfstream-golang/pkg/streamio"
)

var (
	saveFlags  string
	saveOutput string
)

var saveCmd = &cobra.Command{
	Use:   "save <file.pdf>",
	Short: "Rewrite a PDF with output options",
	Long: `Rewrite a PDF. --flags takes a "|" or "," separated list of: object-streams,
compress, preserve-encryption, deterministic-id, qdf. linearize is recognized
but not supported.`,
	Args: cobra.ExactArgs(1),
	RunE: runSave,
}

func init() {
	saveCmd.Flags().StringVar(&saveFlags, "flags", "", "save options")
	saveCmd.Flags().StringVarP(&saveOutput, "output", "o", "", "output file (required)")
	_ = saveCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(saveCmd)
}

func runSave(cmd *cobra.Command, args []string) error {
	flags, err := pdf.ParseSaveFlags(saveFlags)
	if err != nil {
		return err
	}

	s := lib.NewSession()
	h, release, err := openHandle(s, args[0])
	if err != nil {
		return err
	}
	defer release()

	out, err := os.Create(saveOutput)
	if err != nil {
		return err
	}
	if s.Save(h, streamio.WriterBlocks(out), int(flags)) == 0 {
		out.Close()
		os.Remove(saveOutput)
		return sessionError(s, "save")
	}
	if err := out.Close(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "saved %s (%s)\n", saveOutput, flags)
	return nil
}
