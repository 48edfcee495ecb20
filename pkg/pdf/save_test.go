package pdf

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyhub-apps/pdfstream-golang/internal/testpdf"
)

func TestSaveRoundTrip(t *testing.T) {
	data := testpdf.Simple("Hello World!", "Page two")

	tests := []struct {
		name  string
		flags SaveFlags
	}{
		{"plain", 0},
		{"object streams", FlagObjectStreams},
		{"compress", FlagCompress},
		{"qdf", FlagQDF},
		{"deterministic id", FlagDeterministicID},
		{"everything supported", FlagObjectStreams | FlagCompress | FlagPreserveEncryption | FlagDeterministicID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := openBytes(t, data)

			var out bytes.Buffer
			require.NoError(t, doc.Save(&out, tt.flags))
			require.NotZero(t, out.Len())

			saved := openBytes(t, out.Bytes())
			n, err := saved.PageCount()
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			// The source document is still usable after saving.
			n, err = doc.PageCount()
			require.NoError(t, err)
			assert.Equal(t, 2, n)
		})
	}
}

func TestSaveCompressAndQDF(t *testing.T) {
	doc := openBytes(t, testpdf.HelloWorld())

	var compressed bytes.Buffer
	require.NoError(t, doc.Save(&compressed, FlagCompress))
	assert.Contains(t, compressed.String(), "/FlateDecode")
	assert.NotContains(t, compressed.String(), "(Hello World!) Tj")

	var qdf bytes.Buffer
	require.NoError(t, doc.Save(&qdf, FlagQDF|FlagCompress))
	assert.Contains(t, qdf.String(), "(Hello World!) Tj")

	// QDF of the compressed output decodes the stream again.
	recompressed := openBytes(t, compressed.Bytes())
	var decoded bytes.Buffer
	require.NoError(t, recompressed.Save(&decoded, FlagQDF))
	assert.Contains(t, decoded.String(), "(Hello World!) Tj")
}

func TestSaveRejectsFlags(t *testing.T) {
	doc := openBytes(t, testpdf.HelloWorld())

	var out bytes.Buffer
	err := doc.Save(&out, FlagLinearize)
	require.Error(t, err)
	assert.Equal(t, KindUnsupported, KindOf(err))
	assert.ErrorIs(t, err, ErrLinearize)

	err = doc.Save(&out, 0x80)
	require.Error(t, err)
	assert.Equal(t, KindInvalidInput, KindOf(err))
	assert.ErrorIs(t, err, ErrInvalidFlags)

	assert.Zero(t, out.Len(), "rejected saves write nothing")
}

func TestSaveEncryption(t *testing.T) {
	plain := testpdf.HelloWorld()
	encrypted, err := testpdf.Encrypt(plain, "secret", "secret")
	require.NoError(t, err)

	_, err = Open(bytes.NewReader(encrypted), int64(len(encrypted)))
	require.Error(t, err, "opening without the password fails")
	assert.Equal(t, KindLoad, KindOf(err))

	doc := openBytes(t, encrypted, WithPassword("secret"))
	enc, err := doc.IsEncrypted()
	require.NoError(t, err)
	assert.True(t, enc)

	t.Run("decrypted by default", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, doc.Save(&out, 0))

		saved := openBytes(t, out.Bytes())
		enc, err := saved.IsEncrypted()
		require.NoError(t, err)
		assert.False(t, enc)
	})

	t.Run("preserved", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, doc.Save(&out, FlagPreserveEncryption))

		_, err := Open(bytes.NewReader(out.Bytes()), int64(out.Len()))
		require.Error(t, err)

		saved := openBytes(t, out.Bytes(), WithPassword("secret"))
		enc, err := saved.IsEncrypted()
		require.NoError(t, err)
		assert.True(t, enc)
	})
}

func TestSaveFlagsString(t *testing.T) {
	assert.Equal(t, "none", SaveFlags(0).String())
	assert.Equal(t, "object-streams|qdf", (FlagObjectStreams | FlagQDF).String())
	assert.Equal(t, "compress|0x100", (FlagCompress | 0x100).String())

	f, err := ParseSaveFlags("compress, deterministic-id")
	require.NoError(t, err)
	assert.Equal(t, FlagCompress|FlagDeterministicID, f)

	_, err = ParseSaveFlags("shrink")
	assert.ErrorIs(t, err, ErrInvalidFlags)
}

func TestDocumentIDIsStable(t *testing.T) {
	data := testpdf.HelloWorld()
	a := openBytes(t, data)
	b := openBytes(t, data)

	ai, _ := a.Info()
	bi, _ := b.Info()
	assert.Equal(t, documentID(a.ctx, ai, a.Size()), documentID(b.ctx, bi, b.Size()))
	assert.Len(t, documentID(a.ctx, ai, a.Size()), 32)
}
