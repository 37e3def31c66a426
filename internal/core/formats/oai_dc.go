package formats

import (
	"encoding/xml"
	"fmt"
	"strconv"

	"oaiserver/internal/core/query"
)

// DublinCore serializes unqualified Dublin Core (oai_dc)
type DublinCore struct{}

const (
	dcNamespace    = "http://purl.org/dc/elements/1.1/"
	oaiDCNamespace = "http://www.openarchives.org/OAI/2.0/oai_dc/"
	oaiDCSchema    = "http://www.openarchives.org/OAI/2.0/oai_dc.xsd"
	xsiNamespace   = "http://www.w3.org/2001/XMLSchema-instance"
)

// dcElements in schema order, each with the content keys that feed it
var dcElements = []struct {
	name string
	keys []string
}{
	{"title", []string{"title", "titles"}},
	{"creator", []string{"creator", "creators", "authors"}},
	{"subject", []string{"subject", "subjects", "keywords"}},
	{"description", []string{"description", "abstract"}},
	{"publisher", []string{"publisher"}},
	{"contributor", []string{"contributor", "contributors"}},
	{"date", []string{"date", "publication_date"}},
	{"type", []string{"type", "resource_type"}},
	{"format", []string{"format"}},
	{"identifier", []string{"identifier", "identifiers", "doi"}},
	{"source", []string{"source"}},
	{"language", []string{"language"}},
	{"relation", []string{"relation"}},
	{"coverage", []string{"coverage"}},
	{"rights", []string{"rights", "license"}},
}

// Format implements Serializer
func (DublinCore) Format() Format {
	return Format{Prefix: "oai_dc", Schema: oaiDCSchema, Namespace: oaiDCNamespace}
}

// CanDisseminate needs at least one Dublin Core element
func (DublinCore) CanDisseminate(doc query.Document) bool {
	return len(dcFields(doc)) > 0
}

type dcField struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

type dcRoot struct {
	XMLName        xml.Name  `xml:"oai_dc:dc"`
	NSOAIDC        string    `xml:"xmlns:oai_dc,attr"`
	NSDC           string    `xml:"xmlns:dc,attr"`
	NSXSI          string    `xml:"xmlns:xsi,attr"`
	SchemaLocation string    `xml:"xsi:schemaLocation,attr"`
	Fields         []dcField `xml:",any"`
}

// Serialize implements Serializer
func (DublinCore) Serialize(doc query.Document) ([]byte, error) {
	root := dcRoot{
		NSOAIDC:        oaiDCNamespace,
		NSDC:           dcNamespace,
		NSXSI:          xsiNamespace,
		SchemaLocation: oaiDCNamespace + " " + oaiDCSchema,
		Fields:         dcFields(doc),
	}
	out, err := xml.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("oai_dc: %w", err)
	}
	return out, nil
}

func dcFields(doc query.Document) []dcField {
	var out []dcField
	for _, el := range dcElements {
		for _, k := range el.keys {
			for _, v := range query.Lookup(doc, k) {
				s := text(v)
				if s == "" {
					continue
				}
				out = append(out, dcField{XMLName: xml.Name{Local: "dc:" + el.name}, Value: s})
			}
		}
	}
	return out
}

func text(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
