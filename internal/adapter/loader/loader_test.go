package loader_test

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"support-assistant/internal/adapter/loader"
	"support-assistant/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLoader() *loader.FileLoader {
	return loader.NewFileLoader(domain.NewSplitter(500, 100))
}

func TestLoad_PlainText(t *testing.T) {
	l := newLoader()
	spans, err := l.Load(context.Background(), "notes.txt", []byte("Refunds are accepted within 30 days.\n\nContact support by email."))
	require.NoError(t, err)

	require.NotEmpty(t, spans)
	assert.Contains(t, spans[0], "Refunds are accepted within 30 days.")
}

func TestLoad_EmptyTextYieldsNoSpans(t *testing.T) {
	l := newLoader()
	spans, err := l.Load(context.Background(), "empty.txt", []byte("   \n\n  "))
	require.NoError(t, err)
	assert.Empty(t, spans)
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	l := newLoader()
	_, err := l.Load(context.Background(), "binary.exe", []byte("x"))
	assert.ErrorIs(t, err, domain.ErrUnsupportedExtension)
}

func TestLoad_CSVRendersHeaderValuePairs(t *testing.T) {
	l := newLoader()
	csv := "product,price,stock\nWidget,9.99,12\nGadget,19.99,0\n"
	spans, err := l.Load(context.Background(), "inventory.csv", []byte(csv))
	require.NoError(t, err)

	joined := ""
	for _, span := range spans {
		joined += span + " "
	}
	assert.Contains(t, joined, "product: Widget")
	assert.Contains(t, joined, "price: 9.99")
	assert.Contains(t, joined, "product: Gadget")
	// The header row itself is not a record.
	assert.NotContains(t, joined, "product: product")
}

func TestLoad_CSVEmptyFile(t *testing.T) {
	l := newLoader()
	spans, err := l.Load(context.Background(), "empty.csv", nil)
	require.NoError(t, err)
	assert.Empty(t, spans)
}

func TestLoad_HTMLStripsMarkupAndScripts(t *testing.T) {
	l := newLoader()
	html := `<html><head><title>Help</title><script>alert("x")</script></head>
<body>
<nav>Home | About</nav>
<h1>Shipping policy</h1>
<p>Orders ship within two business days.</p>
<footer>Copyright</footer>
</body></html>`

	spans, err := l.Load(context.Background(), "policy.html", []byte(html))
	require.NoError(t, err)

	joined := ""
	for _, span := range spans {
		joined += span + " "
	}
	assert.Contains(t, joined, "Shipping policy")
	assert.Contains(t, joined, "Orders ship within two business days.")
	assert.NotContains(t, joined, "alert")
	assert.NotContains(t, joined, "Home | About")
	assert.NotContains(t, joined, "Copyright")
}

func TestLoad_HTMExtension(t *testing.T) {
	l := newLoader()
	spans, err := l.Load(context.Background(), "page.htm", []byte("<p>Some paragraph text.</p>"))
	require.NoError(t, err)
	require.NotEmpty(t, spans)
	assert.Contains(t, spans[0], "Some paragraph text.")
}

func TestLoad_Docx(t *testing.T) {
	l := newLoader()
	data := buildDocx(t, `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph of the manual.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second paragraph with </w:t></w:r><w:r><w:t>two runs.</w:t></w:r></w:p>
  </w:body>
</w:document>`)

	spans, err := l.Load(context.Background(), "manual.docx", data)
	require.NoError(t, err)

	joined := ""
	for _, span := range spans {
		joined += span + " "
	}
	assert.Contains(t, joined, "First paragraph of the manual.")
	assert.Contains(t, joined, "Second paragraph with two runs.")
}

func TestLoad_DocxWithoutDocumentXML(t *testing.T) {
	l := newLoader()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("word/other.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte("<x/>"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = l.Load(context.Background(), "broken.docx", buf.Bytes())
	assert.ErrorContains(t, err, "word/document.xml")
}

func TestLoad_CorruptPDF(t *testing.T) {
	l := newLoader()
	_, err := l.Load(context.Background(), "broken.pdf", []byte("not a pdf"))
	assert.Error(t, err)
}

func TestLoad_CancelledContext(t *testing.T) {
	l := newLoader()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := l.Load(ctx, "notes.txt", []byte("text"))
	assert.ErrorIs(t, err, context.Canceled)
}

func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("word/document.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}
