package qpdfjson

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyhub-apps/pdfstream-golang/internal/testpdf"
	"github.com/pyhub-apps/pdfstream-golang/pkg/pdf"
)

type v2Output struct {
	Version    int            `json:"version"`
	Parameters map[string]any `json:"parameters"`
	Pages      []struct {
		PagePosFrom1 int    `json:"pageposfrom1"`
		Object       string `json:"object"`
	} `json:"pages"`
	Encrypt struct {
		Encrypted  bool           `json:"encrypted"`
		Parameters map[string]any `json:"parameters"`
	} `json:"encrypt"`
	ObjectStreams map[string]struct {
		Objects []string `json:"objects"`
	} `json:"objectstreams"`
	QPDF          []json.RawMessage `json:"qpdf"`
}

type v2Objects map[string]struct {
	Value  json.RawMessage `json:"value"`
	Stream *struct {
		Dict map[string]any `json:"dict"`
	} `json:"stream"`
}

type v2Header struct {
	JSONVersion int    `json:"jsonversion"`
	PDFVersion  string `json:"pdfversion"`
	PageCount   int    `json:"pagecount"`
	Encrypted   bool   `json:"encrypted"`
	Linearized  bool   `json:"linearized"`
	MaxObjectID int    `json:"maxobjectid"`
}

func open(t *testing.T, data []byte, opts ...pdf.Option) *pdf.StreamDocument {
	t.Helper()
	doc, err := pdf.Open(bytes.NewReader(data), int64(len(data)), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { doc.Close() })
	return doc
}

func encode(t *testing.T, doc Document, version int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, doc, version))
	require.True(t, json.Valid(buf.Bytes()), "output must be valid JSON:\n%s", buf.String())
	return buf.Bytes()
}

func TestEncodeV2(t *testing.T) {
	doc := open(t, testpdf.New().Title("Report").Page("one").Page("two").Bytes())
	out := encode(t, doc, Version2)

	var got v2Output
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, "generalized", got.Parameters["decodelevel"])
	require.Len(t, got.Pages, 2)
	assert.Equal(t, 1, got.Pages[0].PagePosFrom1)
	assert.Equal(t, "5 0 R", got.Pages[0].Object)
	assert.Equal(t, "7 0 R", got.Pages[1].Object)
	assert.False(t, got.Encrypt.Encrypted)
	assert.Empty(t, got.ObjectStreams, "classic xref table has no object streams")

	require.Len(t, got.QPDF, 2)
	var header v2Header
	require.NoError(t, json.Unmarshal(got.QPDF[0], &header))
	info, err := doc.Info()
	require.NoError(t, err)
	assert.Equal(t, v2Header{
		JSONVersion: 2,
		PDFVersion:  "1.4",
		PageCount:   2,
		MaxObjectID: info.MaxObjectID,
	}, header)

	var objects v2Objects
	require.NoError(t, json.Unmarshal(got.QPDF[1], &objects))

	var catalog map[string]any
	require.NoError(t, json.Unmarshal(objects["obj:1 0 R"].Value, &catalog))
	assert.Equal(t, "/Catalog", catalog["/Type"])
	assert.Equal(t, "2 0 R", catalog["/Pages"])

	var infoDict map[string]any
	require.NoError(t, json.Unmarshal(objects["obj:4 0 R"].Value, &infoDict))
	assert.Equal(t, "u:Report", infoDict["/Title"])

	content := objects["obj:6 0 R"].Stream
	require.NotNil(t, content)
	assert.Contains(t, content.Dict, "/Length")

	var trailer map[string]any
	require.NoError(t, json.Unmarshal(objects["trailer"].Value, &trailer))
	assert.Equal(t, "1 0 R", trailer["/Root"])
	assert.Equal(t, "4 0 R", trailer["/Info"])
}

func TestEncodeObjectStreams(t *testing.T) {
	src := open(t, testpdf.Simple("Hello World!", "Page two"))
	var saved bytes.Buffer
	require.NoError(t, src.Save(&saved, pdf.FlagObjectStreams))

	doc := open(t, saved.Bytes())
	info, err := doc.Info()
	require.NoError(t, err)
	require.True(t, info.ObjectStreams)

	var got v2Output
	require.NoError(t, json.Unmarshal(encode(t, doc, Version2), &got))
	require.NotEmpty(t, got.ObjectStreams)

	var objects v2Objects
	require.NoError(t, json.Unmarshal(got.QPDF[1], &objects))

	members := 0
	for stream, entry := range got.ObjectStreams {
		for _, member := range entry.Objects {
			obj, ok := objects["obj:"+member]
			require.True(t, ok, "member %s of %s not encoded", member, stream)
			assert.Nil(t, obj.Stream, "object streams only hold non-stream objects")
			assert.NotEmpty(t, obj.Value)
			members++
		}
	}
	assert.Positive(t, members)
}

func TestEncodeV1(t *testing.T) {
	doc := open(t, testpdf.New().Title("Report").Page("one").Bytes())
	out := encode(t, doc, Version1)

	var got struct {
		Version int                       `json:"version"`
		Objects map[string]map[string]any `json:"objects"`
	}
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, 1, got.Version)
	assert.Equal(t, "1 0 R", got.Objects["trailer"]["/Root"])
	assert.Equal(t, "Report", got.Objects["4 0 R"]["/Title"])
	assert.Equal(t, "/Page", got.Objects["5 0 R"]["/Type"])
	assert.NotContains(t, string(out), `"qpdf"`)
}

func TestEncodeRejectsVersion(t *testing.T) {
	doc := open(t, testpdf.HelloWorld())

	for _, v := range []int{0, 3, -1} {
		var buf bytes.Buffer
		err := Encode(&buf, doc, v)
		require.Error(t, err)
		assert.ErrorIs(t, err, pdf.ErrInvalidVersion)
		assert.Equal(t, pdf.KindInvalidInput, pdf.KindOf(err))
		assert.Zero(t, buf.Len())
	}
}

func TestEncodeClosedDocument(t *testing.T) {
	data := testpdf.HelloWorld()
	doc, err := pdf.Open(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.NoError(t, doc.Close())

	var buf bytes.Buffer
	err = Encode(&buf, doc, Version2)
	assert.ErrorIs(t, err, pdf.ErrClosed)
	assert.Zero(t, buf.Len())
}

func TestEncodeEncrypted(t *testing.T) {
	data, err := testpdf.Encrypt(testpdf.HelloWorld(), "pw", "pw")
	require.NoError(t, err)
	doc := open(t, data, pdf.WithPassword("pw"))

	var got v2Output
	require.NoError(t, json.Unmarshal(encode(t, doc, Version2), &got))
	assert.True(t, got.Encrypt.Encrypted)
	assert.Equal(t, "AESv2", got.Encrypt.Parameters["method"])
	assert.EqualValues(t, 128, got.Encrypt.Parameters["bits"])

	var header v2Header
	require.NoError(t, json.Unmarshal(got.QPDF[0], &header))
	assert.True(t, header.Encrypted)
}

type failingWriter struct{ after int }

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.after <= 0 {
		return 0, assert.AnError
	}
	w.after--
	return len(p), nil
}

func TestEncodeStopsOnWriteError(t *testing.T) {
	doc := open(t, testpdf.HelloWorld())

	err := Encode(&failingWriter{after: 3}, doc, Version2)
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, pdf.KindConversion, pdf.KindOf(err))
}

func TestValueEncoding(t *testing.T) {
	tests := []struct {
		name    string
		version int
		in      types.Object
		want    string
	}{
		{"name", Version2, types.Name("Type"), `"/Type"`},
		{"integer", Version2, types.Integer(42), `42`},
		{"float", Version2, types.Float(0.5), `0.5`},
		{"bool", Version1, types.Boolean(true), `true`},
		{"null", Version2, nil, `null`},
		{"reference", Version2, *types.NewIndirectRef(12, 0), `"12 0 R"`},
		{"hex v2", Version2, types.HexLiteral("cafe"), `"b:cafe"`},
		{"string v2", Version2, types.StringLiteral("plain"), `"u:plain"`},
		{"string v1", Version1, types.StringLiteral("plain"), `"plain"`},
		{"array", Version2, types.Array{types.Integer(1), types.Name("A")}, `[1,"/A"]`},
		{"dict sorted", Version2, types.Dict{"B": types.Integer(2), "A": types.Integer(1)}, `{"/A":1,"/B":2}`},
		{"escaped", Version1, types.StringLiteral(`say "hi"`), `"say \"hi\""`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			e := &encoder{w: &buf, version: tt.version}
			e.value(tt.in)
			require.NoError(t, e.err)
			assert.Equal(t, tt.want, buf.String())
		})
	}
}
