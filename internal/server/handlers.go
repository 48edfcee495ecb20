package server

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/pyhub-apps/pdfstream-golang/pkg/pdf"
	"github.com/pyhub-apps/pdfstream-golang/pkg/streamio"
)

// upload is a request body streamed to disk and opened through a block
// source reading the spool file. The body is never held in memory whole.
type upload struct {
	file *os.File
	doc  *pdf.StreamDocument
}

func (u *upload) release() {
	if u.doc != nil {
		u.doc.Close()
	}
	name := u.file.Name()
	u.file.Close()
	os.Remove(name)
}

func (s *Server) open(c *fiber.Ctx) (*upload, error) {
	body := c.Context().RequestBodyStream()
	if body == nil {
		body = bytes.NewReader(c.Body())
	}

	f, err := os.CreateTemp("", "pdfstream-*.pdf")
	if err != nil {
		return nil, pdf.NewError(pdf.KindResource, "upload", err)
	}
	u := &upload{file: f}

	limit := s.cfg.MaxUpload
	size, err := io.Copy(f, io.LimitReader(body, limit+1))
	if err != nil {
		u.release()
		return nil, pdf.NewError(pdf.KindIO, "upload", err)
	}
	if size > limit {
		u.release()
		return nil, fiber.ErrRequestEntityTooLarge
	}
	if size == 0 {
		u.release()
		return nil, pdf.NewError(pdf.KindInvalidInput, "upload", pdf.ErrEmptyInput)
	}

	doc, err := s.lib.OpenDocument(size, streamio.ReaderAtBlocks(f), c.Get(PasswordHeader))
	if err != nil {
		u.release()
		return nil, err
	}
	u.doc = doc
	return u, nil
}

// flushBlocks delivers each chunk to the response stream as it is produced.
func flushBlocks(w *bufio.Writer) streamio.BlockWriter {
	return streamio.WriteBlockFunc(func(data []byte) int {
		if _, err := w.Write(data); err != nil {
			return 0
		}
		if err := w.Flush(); err != nil {
			return 0
		}
		return 1
	})
}

func (s *Server) health(c *fiber.Ctx) error {
	status := "healthy"
	code := fiber.StatusOK
	if !s.lib.Started() {
		status = "stopped"
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(fiber.Map{
		"status":         status,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"open_documents": s.lib.OpenDocuments(),
	})
}

type infoResponse struct {
	Pages      int          `json:"pages"`
	Version    string       `json:"version"`
	Encrypted  bool         `json:"encrypted"`
	Linearized bool         `json:"linearized"`
	Metadata   metadataJSON `json:"metadata"`
}

type metadataJSON struct {
	Title        string     `json:"title,omitempty"`
	Author       string     `json:"author,omitempty"`
	Subject      string     `json:"subject,omitempty"`
	Keywords     string     `json:"keywords,omitempty"`
	Creator      string     `json:"creator,omitempty"`
	Producer     string     `json:"producer,omitempty"`
	CreationDate *time.Time `json:"creation_date,omitempty"`
	ModDate      *time.Time `json:"mod_date,omitempty"`
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func (s *Server) info(c *fiber.Ctx) error {
	u, err := s.open(c)
	if err != nil {
		return err
	}
	defer u.release()

	info, err := u.doc.Info()
	if err != nil {
		return err
	}
	md, err := u.doc.Metadata()
	if err != nil {
		return err
	}
	return c.JSON(infoResponse{
		Pages:      info.PageCount,
		Version:    info.Version,
		Encrypted:  info.Encrypted,
		Linearized: info.Linearized,
		Metadata: metadataJSON{
			Title:        md.Title,
			Author:       md.Author,
			Subject:      md.Subject,
			Keywords:     md.Keywords,
			Creator:      md.Creator,
			Producer:     md.Producer,
			CreationDate: timePtr(md.CreationDate),
			ModDate:      timePtr(md.ModDate),
		},
	})
}

func (s *Server) text(c *fiber.Ctx) error {
	var opts []pdf.TextExtractionOption
	if form := c.Query("normalize"); form != "" {
		if !pdf.ValidNormalization(form) {
			return fiber.NewError(fiber.StatusBadRequest, "unknown normalization form: "+form)
		}
		opts = append(opts, pdf.WithNormalization(form))
	}

	u, err := s.open(c)
	if err != nil {
		return err
	}
	defer u.release()

	if p := c.Query("page"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid page: "+p)
		}
		text, err := u.doc.PageText(n, opts...)
		if err != nil {
			return err
		}
		return c.SendString(text)
	}

	text, err := u.doc.Text(opts...)
	if err != nil {
		return err
	}
	return c.SendString(text)
}

func (s *Server) json(c *fiber.Ctx) error {
	version := c.QueryInt("version", s.defaultVersion)
	if version != 1 && version != 2 {
		return pdf.NewError(pdf.KindInvalidInput, "json", pdf.ErrInvalidVersion)
	}

	u, err := s.open(c)
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer u.release()
		if err := s.lib.EncodeDocument(u.doc, version, flushBlocks(w)); err != nil {
			s.log.Warn().Err(err).Msg("json stream aborted")
		}
	}))
	return nil
}

func (s *Server) save(c *fiber.Ctx) error {
	flags, err := pdf.ParseSaveFlags(c.Query("flags"))
	if err != nil {
		return pdf.NewError(pdf.KindInvalidInput, "save", err)
	}
	if err := flags.Validate(); err != nil {
		return err
	}

	u, err := s.open(c)
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer u.release()
		if err := s.lib.SaveDocument(u.doc, flushBlocks(w), flags); err != nil {
			s.log.Warn().Err(err).Msg("save stream aborted")
		}
	}))
	return nil
}
