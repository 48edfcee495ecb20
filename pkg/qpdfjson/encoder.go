// Package qpdfjson writes the structure of a PDF document as JSON in the
// layouts popularized by qpdf's --json output. Objects are encoded one at a
// time straight into the destination writer.
package qpdfjson

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/pyhub-apps/pdfstream-golang/pkg/pdf"
	"github.com/pyhub-apps/pdfstream-golang/pkg/streamio"
)

// Supported output versions.
const (
	Version1 = 1
	Version2 = 2
)

// Document is the view of an open document needed for encoding.
type Document interface {
	Info() (pdf.Info, error)
	Model() (*model.Context, error)
}

// ValidVersion reports whether v is a supported output version.
func ValidVersion(v int) bool {
	return v == Version1 || v == Version2
}

// Encode writes the JSON representation of doc to w.
func Encode(w io.Writer, doc Document, version int) error {
	if !ValidVersion(version) {
		return pdf.NewError(pdf.KindInvalidInput, "json", fmt.Errorf("%w: %d (want 1 or 2)", pdf.ErrInvalidVersion, version))
	}

	info, err := doc.Info()
	if err != nil {
		return err
	}
	ctx, err := doc.Model()
	if err != nil {
		return err
	}

	e := &encoder{w: w, ctx: ctx, info: info, version: version}
	if err := e.document(); err != nil {
		return e.wrap(err)
	}
	return nil
}

type encoder struct {
	w       io.Writer
	ctx     *model.Context
	info    pdf.Info
	version int
	err     error
}

func (e *encoder) wrap(err error) error {
	var perr *pdf.Error
	switch {
	case errors.As(err, &perr):
		return err
	case errors.Is(err, streamio.ErrWriteCallback):
		return pdf.NewError(pdf.KindIO, "json", err)
	default:
		return pdf.NewError(pdf.KindConversion, "json", err)
	}
}

func (e *encoder) raw(s string) {
	if e.err != nil {
		return
	}
	_, e.err = io.WriteString(e.w, s)
}

func (e *encoder) str(s string) {
	if e.err != nil {
		return
	}
	b, err := json.Marshal(s)
	if err != nil {
		e.err = err
		return
	}
	_, e.err = e.w.Write(b)
}

func (e *encoder) key(k string) {
	e.str(k)
	e.raw(":")
}

func (e *encoder) document() error {
	e.raw(`{"version":`)
	e.raw(strconv.Itoa(e.version))
	e.raw(`,"parameters":{"decodelevel":"generalized"},"pages":`)
	e.pages()

	if e.version == Version1 {
		e.raw(`,"objects":{`)
		e.key("trailer")
		e.value(e.trailer())
		for _, nr := range e.objectNumbers() {
			entry := e.ctx.Table[nr]
			e.raw(",")
			e.key(ref(nr, generation(entry)))
			e.value(entry.Object)
		}
		e.raw("}}")
		return e.err
	}

	e.raw(`,"encrypt":`)
	e.encrypt()
	e.raw(`,"objectstreams":`)
	e.objectStreams()
	e.raw(`,"qpdf":[`)
	e.header()
	e.raw(",{")
	for _, nr := range e.objectNumbers() {
		entry := e.ctx.Table[nr]
		e.key("obj:" + ref(nr, generation(entry)))
		e.object(entry)
		e.raw(",")
	}
	e.key("trailer")
	e.raw(`{"value":`)
	e.value(e.trailer())
	e.raw("}}]}")
	return e.err
}

func (e *encoder) header() {
	e.raw(`{"jsonversion":2,"pdfversion":`)
	e.str(e.info.Version)
	e.raw(`,"pagecount":`)
	e.raw(strconv.Itoa(e.info.PageCount))
	e.raw(`,"encrypted":`)
	e.raw(strconv.FormatBool(e.info.Encrypted))
	e.raw(`,"linearized":`)
	e.raw(strconv.FormatBool(e.info.Linearized))
	e.raw(`,"maxobjectid":`)
	e.raw(strconv.Itoa(e.info.MaxObjectID))
	e.raw("}")
}

// objectNumbers returns the in-use object numbers in ascending order.
func (e *encoder) objectNumbers() []int {
	nrs := make([]int, 0, len(e.ctx.Table))
	for nr, entry := range e.ctx.Table {
		if nr == 0 || entry == nil || entry.Free || entry.Object == nil {
			continue
		}
		nrs = append(nrs, nr)
	}
	sort.Ints(nrs)
	return nrs
}

func generation(entry *model.XRefTableEntry) int {
	if entry == nil || entry.Generation == nil {
		return 0
	}
	return *entry.Generation
}

func ref(nr, gen int) string {
	return strconv.Itoa(nr) + " " + strconv.Itoa(gen) + " R"
}

func (e *encoder) pages() {
	e.raw("[")
	for i := 1; i <= e.info.PageCount; i++ {
		if i > 1 {
			e.raw(",")
		}
		e.raw(`{"pageposfrom1":`)
		e.raw(strconv.Itoa(i))
		e.raw(`,"object":`)
		_, ir, _, err := e.ctx.PageDict(i, false)
		if err != nil || ir == nil {
			e.raw("null")
		} else {
			e.str(ref(ir.ObjectNumber.Value(), ir.GenerationNumber.Value()))
		}
		e.raw("}")
	}
	e.raw("]")
}

// trailer rebuilds the trailer dictionary from the cross-reference table.
func (e *encoder) trailer() types.Dict {
	d := types.Dict{}
	if e.ctx.Size != nil {
		d["Size"] = types.Integer(*e.ctx.Size)
	}
	if e.ctx.Root != nil {
		d["Root"] = *e.ctx.Root
	}
	if e.ctx.Info != nil {
		d["Info"] = *e.ctx.Info
	}
	if e.ctx.Encrypt != nil {
		d["Encrypt"] = *e.ctx.Encrypt
	}
	if e.ctx.ID != nil {
		d["ID"] = e.ctx.ID
	}
	return d
}

func (e *encoder) object(entry *model.XRefTableEntry) {
	sd, ok := streamDict(entry.Object)
	if !ok {
		e.raw(`{"value":`)
		e.value(entry.Object)
		e.raw("}")
		return
	}

	e.raw(`{"stream":{"dict":`)
	e.value(sd.Dict)
	e.raw("}}")
}

func streamDict(o types.Object) (types.StreamDict, bool) {
	switch v := o.(type) {
	case types.StreamDict:
		return v, true
	case *types.StreamDict:
		if v != nil {
			return *v, true
		}
	case types.ObjectStreamDict:
		return v.StreamDict, true
	case *types.ObjectStreamDict:
		if v != nil {
			return v.StreamDict, true
		}
	case types.XRefStreamDict:
		return v.StreamDict, true
	case *types.XRefStreamDict:
		if v != nil {
			return v.StreamDict, true
		}
	}
	return types.StreamDict{}, false
}

func (e *encoder) value(o types.Object) {
	if e.err != nil {
		return
	}

	if sd, ok := streamDict(o); ok {
		e.value(sd.Dict)
		return
	}

	switch v := o.(type) {
	case nil:
		e.raw("null")
	case types.Boolean:
		e.raw(strconv.FormatBool(bool(v)))
	case types.Integer:
		e.raw(strconv.Itoa(int(v)))
	case types.Float:
		e.raw(strconv.FormatFloat(float64(v), 'f', -1, 64))
	case types.Name:
		e.str("/" + string(v))
	case types.StringLiteral:
		e.stringLiteral(v)
	case types.HexLiteral:
		e.hexLiteral(v)
	case types.IndirectRef:
		e.str(ref(v.ObjectNumber.Value(), v.GenerationNumber.Value()))
	case *types.IndirectRef:
		if v == nil {
			e.raw("null")
			return
		}
		e.str(ref(v.ObjectNumber.Value(), v.GenerationNumber.Value()))
	case types.Array:
		e.raw("[")
		for i, item := range v {
			if i > 0 {
				e.raw(",")
			}
			e.value(item)
		}
		e.raw("]")
	case types.Dict:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		e.raw("{")
		for i, k := range keys {
			if i > 0 {
				e.raw(",")
			}
			e.key("/" + k)
			e.value(v[k])
		}
		e.raw("}")
	default:
		e.str(o.String())
	}
}

func (e *encoder) stringLiteral(v types.StringLiteral) {
	s, err := types.StringLiteralToString(v)
	if e.version == Version1 {
		if err != nil {
			s = v.Value()
		}
		e.str(s)
		return
	}
	if err != nil {
		e.str("b:" + hex.EncodeToString([]byte(v.Value())))
		return
	}
	e.str("u:" + s)
}

func (e *encoder) hexLiteral(v types.HexLiteral) {
	if e.version == Version1 {
		s, err := types.HexLiteralToString(v)
		if err != nil {
			s = v.Value()
		}
		e.str(s)
		return
	}
	e.str("b:" + v.Value())
}
