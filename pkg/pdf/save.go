package pdf

import (
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/filter"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// SaveFlags selects output options for Save.
type SaveFlags uint32

const (
	FlagObjectStreams      SaveFlags = 0x01
	FlagCompress           SaveFlags = 0x02
	FlagLinearize          SaveFlags = 0x04
	FlagPreserveEncryption SaveFlags = 0x08
	FlagDeterministicID    SaveFlags = 0x10
	FlagQDF                SaveFlags = 0x20

	flagMask = FlagObjectStreams | FlagCompress | FlagLinearize |
		FlagPreserveEncryption | FlagDeterministicID | FlagQDF
)

var flagNames = []struct {
	flag SaveFlags
	name string
}{
	{FlagObjectStreams, "object-streams"},
	{FlagCompress, "compress"},
	{FlagLinearize, "linearize"},
	{FlagPreserveEncryption, "preserve-encryption"},
	{FlagDeterministicID, "deterministic-id"},
	{FlagQDF, "qdf"},
}

func (f SaveFlags) String() string {
	if f == 0 {
		return "none"
	}
	var names []string
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			names = append(names, fn.name)
		}
	}
	if rest := f &^ flagMask; rest != 0 {
		names = append(names, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return strings.Join(names, "|")
}

// ParseSaveFlags parses a "|" or "," separated list of flag names.
func ParseSaveFlags(s string) (SaveFlags, error) {
	var f SaveFlags
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ',' }) {
		part = strings.TrimSpace(part)
		if part == "" || part == "none" {
			continue
		}
		found := false
		for _, fn := range flagNames {
			if fn.name == part {
				f |= fn.flag
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("%w: unknown flag %q", ErrInvalidFlags, part)
		}
	}
	return f, nil
}

// Validate rejects unknown bits and options the writer cannot produce.
func (f SaveFlags) Validate() error {
	if rest := f &^ flagMask; rest != 0 {
		return NewError(KindInvalidInput, "save", fmt.Errorf("%w: unknown bits 0x%x", ErrInvalidFlags, uint32(rest)))
	}
	if f&FlagLinearize != 0 {
		return NewError(KindUnsupported, "save", ErrLinearize)
	}
	return nil
}

// Save writes the document to w. The document stays open and may be saved
// again; every save works on a freshly loaded copy of the object graph.
func (d *StreamDocument) Save(w io.Writer, flags SaveFlags) error {
	if err := d.check("save"); err != nil {
		return err
	}
	if err := flags.Validate(); err != nil {
		return err
	}
	if w == nil {
		return NewError(KindInvalidInput, "save", fmt.Errorf("nil writer"))
	}

	qdf := flags&FlagQDF != 0
	conf := newConfiguration(d.ctx.Configuration.UserPW)
	conf.OwnerPW = d.ctx.Configuration.OwnerPW
	conf.WriteObjectStream = flags&FlagObjectStreams != 0 && !qdf
	conf.WriteXRefStream = conf.WriteObjectStream

	wctx, err := readContext(d.src, conf)
	if err != nil {
		return loadError("save", d.src, err)
	}

	if flags&FlagPreserveEncryption == 0 {
		wctx.Encrypt = nil
		wctx.EncKey = nil
	}

	switch {
	case qdf:
		decodeStreams(wctx)
	case flags&FlagCompress != 0:
		compressStreams(wctx)
	}

	// The encryption key of a preserved Encrypt dictionary is bound to the
	// source file ID.
	if flags&FlagDeterministicID != 0 && wctx.Encrypt == nil {
		info, _ := d.Info()
		id := documentID(wctx, info, d.size)
		wctx.ID = types.Array{types.HexLiteral(id), types.HexLiteral(id)}
	}

	if err := writeContext(wctx, w); err != nil {
		return classify("save", err)
	}
	return nil
}

func writeContext(ctx *model.Context, w io.Writer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("writer panic: %v", r)
		}
	}()
	if err := api.WriteContext(ctx, w); err != nil {
		return fmt.Errorf("failed to write PDF: %w", err)
	}
	return nil
}

// skipStream reports whether a stream belongs to the file structure itself.
func skipStream(sd types.StreamDict) bool {
	t := sd.Type()
	return t != nil && (*t == "XRef" || *t == "ObjStm")
}

// compressStreams Flate-encodes every stream that carries no filter.
func compressStreams(ctx *model.Context) {
	for _, entry := range ctx.Table {
		if entry == nil || entry.Free || entry.Object == nil {
			continue
		}
		sd, ok := entry.Object.(types.StreamDict)
		if !ok || skipStream(sd) || len(sd.FilterPipeline) > 0 || sd.Raw == nil {
			continue
		}

		sd.Content = sd.Raw
		sd.FilterPipeline = []types.PDFFilter{{Name: filter.Flate}}
		sd.InsertName("Filter", filter.Flate)
		if err := sd.Encode(); err != nil {
			continue
		}
		setLength(&sd)
		entry.Object = sd
	}
}

var decodableFilters = map[string]bool{
	filter.Flate:     true,
	filter.LZW:       true,
	filter.ASCII85:   true,
	filter.ASCIIHex:  true,
	filter.RunLength: true,
}

// decodeStreams removes generic filters so stream content is readable.
// Streams with image codecs keep their encoding.
func decodeStreams(ctx *model.Context) {
	for _, entry := range ctx.Table {
		if entry == nil || entry.Free || entry.Object == nil {
			continue
		}
		sd, ok := entry.Object.(types.StreamDict)
		if !ok || skipStream(sd) || len(sd.FilterPipeline) == 0 || sd.Raw == nil {
			continue
		}

		decodable := true
		for _, f := range sd.FilterPipeline {
			if !decodableFilters[f.Name] {
				decodable = false
				break
			}
		}
		if !decodable {
			continue
		}
		if err := sd.Decode(); err != nil {
			continue
		}

		sd.Raw = sd.Content
		sd.FilterPipeline = nil
		sd.Delete("Filter")
		sd.Delete("DecodeParms")
		setLength(&sd)
		entry.Object = sd
	}
}

func setLength(sd *types.StreamDict) {
	l := int64(len(sd.Raw))
	sd.StreamLength = &l
	sd.Update("Length", types.Integer(l))
}

var idNamespace = uuid.MustParse("5b1f6d6e-8f7a-4c1e-9a43-2f8d3c7e0b61")

// documentID derives a file identifier from stable document facts.
func documentID(ctx *model.Context, info Info, size int64) string {
	nrs := make([]int, 0, len(ctx.Table))
	for nr := range ctx.Table {
		nrs = append(nrs, nr)
	}
	sort.Ints(nrs)

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s|%d|%d|%d", info.Version, info.PageCount, size, len(nrs))
	if ctx.Root != nil {
		fmt.Fprintf(&sb, "|%s", ctx.Root.String())
	}
	for _, nr := range nrs {
		if e := ctx.Table[nr]; e != nil && e.Offset != nil {
			fmt.Fprintf(&sb, "|%d@%d", nr, *e.Offset)
		}
	}

	id := uuid.NewSHA1(idNamespace, []byte(sb.String()))
	return hex.EncodeToString(id[:])
}
