package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pyhub-apps/pdfstream-golang/pkg/pdf"
	"github.com/pyhub-apps/pdfstream-golang/pkg/stream"
)

var (
	textPage   int
	textOutput string
)

var textCmd = &cobra.Command{
	Use:   "text <file.pdf>",
	Short: "Extract the text of a PDF",
	Long: `Extract the text of every page, pages separated by a page break marker, or
of a single page with --page.`,
	Args: cobra.ExactArgs(1),
	RunE: runText,
}

func init() {
	textCmd.Flags().IntVar(&textPage, "page", 0, "1-based page to extract (0 for all pages)")
	textCmd.Flags().StringVarP(&textOutput, "output", "o", "", "output file (default stdout)")
	rootCmd.AddCommand(textCmd)
}

func runText(cmd *cobra.Command, args []string) error {
	s := lib.NewSession()
	h, release, err := openHandle(s, args[0])
	if err != nil {
		return err
	}
	defer release()

	out, closeOut, err := createOutput(textOutput)
	if err != nil {
		return err
	}
	defer closeOut()

	first, last, err := pageRange(s, h, textPage)
	if err != nil {
		return err
	}
	for i := first; i <= last; i++ {
		a := s.PageText(h, i)
		if a == 0 {
			return sessionError(s, fmt.Sprintf("page %d", i+1))
		}
		if i > first {
			fmt.Fprint(out, pdf.PageBreak)
		}
		fmt.Fprint(out, s.String(a))
		s.FreeString(a)
	}
	fmt.Fprintln(out)
	return nil
}

// pageRange resolves the 0-based pages to extract for a 1-based page
// selection, where 0 selects every page.
func pageRange(s *stream.Session, h stream.Handle, page int) (int, int, error) {
	n := s.PageCount(h)
	if n == 0 {
		return 0, 0, sessionError(s, "page count")
	}
	if page < 0 || page > n {
		return 0, 0, fmt.Errorf("page %d out of range, document has %d pages", page, n)
	}
	if page > 0 {
		return page - 1, page - 1, nil
	}
	return 0, n - 1, nil
}
