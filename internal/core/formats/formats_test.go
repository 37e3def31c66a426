package formats

import (
	"encoding/xml"
	"strings"
	"testing"

	"oaiserver/internal/core/query"
	perr "oaiserver/internal/platform/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rawFormat struct{}

func (rawFormat) Format() Format {
	return Format{Prefix: "raw", Schema: "urn:raw.xsd", Namespace: "urn:raw"}
}
func (rawFormat) CanDisseminate(doc query.Document) bool { return doc["raw"] != nil }
func (rawFormat) Serialize(doc query.Document) ([]byte, error) {
	return []byte("<raw/>"), nil
}

func TestDublinCore(t *testing.T) {
	doc := query.Document{
		"title":    "A <tricky> & title",
		"authors":  []any{"Smith, Anna", "Jones, Bob"},
		"keywords": []any{"physics"},
		"year":     float64(2020),
		"rights":   map[string]any{"id": "cc-by"},
	}
	out, err := DublinCore{}.Serialize(doc)
	require.NoError(t, err)
	s := string(out)
	assert.True(t, strings.HasPrefix(s, "<oai_dc:dc "))
	assert.Contains(t, s, `xmlns:dc="http://purl.org/dc/elements/1.1/"`)
	assert.Contains(t, s, "<dc:title>A &lt;tricky&gt; &amp; title</dc:title>")
	assert.Contains(t, s, "<dc:creator>Jones, Bob</dc:creator>")
	assert.Contains(t, s, "<dc:rights>cc-by</dc:rights>")
	assert.Less(t, strings.Index(s, "dc:title"), strings.Index(s, "dc:creator"))

	var probe struct {
		Titles []string `xml:"title"`
	}
	require.NoError(t, xml.Unmarshal(out, &probe))
	assert.Equal(t, []string{"A <tricky> & title"}, probe.Titles)

	assert.False(t, DublinCore{}.CanDisseminate(query.Document{"year": float64(1)}))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(DublinCore{}, rawFormat{})
	assert.Equal(t, []string{"oai_dc", "raw"}, r.Prefixes())
	assert.True(t, r.Has("raw"))

	_, err := r.Get("marc21")
	assert.True(t, perr.IsCode(err, perr.ErrorCodeCannotDisseminateFormat))

	doc := query.Document{"title": "x"}
	assert.Equal(t, []Format{DublinCore{}.Format()}, r.For(doc))
	_, err = r.Serialize(doc, "raw")
	assert.True(t, perr.IsCode(err, perr.ErrorCodeCannotDisseminateFormat))
	out, err := r.Serialize(query.Document{"raw": true}, "raw")
	require.NoError(t, err)
	assert.Equal(t, "<raw/>", string(out))
	assert.Empty(t, r.For(query.Document{}))
}

func TestSelect(t *testing.T) {
	r := NewRegistry(DublinCore{}, rawFormat{})
	sel, err := r.Select([]string{" raw "})
	require.NoError(t, err)
	assert.Equal(t, []string{"raw"}, sel.Prefixes())

	_, err = r.Select([]string{"marc21"})
	assert.True(t, perr.IsCode(err, perr.ErrorCodeInvalidArgument))
	_, err = r.Select(nil)
	assert.Error(t, err)
	assert.Equal(t, []string{"oai_dc"}, Builtin().Prefixes())
}
