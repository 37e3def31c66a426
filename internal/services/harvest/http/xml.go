package http

import (
	"encoding/xml"
	"strconv"
	"time"

	"oaiserver/internal/core/oai"
	"oaiserver/internal/services/harvest/domain"
)

const (
	xsiNamespace           = "http://www.w3.org/2001/XMLSchema-instance"
	identifierNamespace    = "http://www.openarchives.org/OAI/2.0/oai-identifier"
	identifierSchema       = "http://www.openarchives.org/OAI/2.0/oai-identifier.xsd"
	responseSchemaLocation = oai.ProtocolNamespace + " " + oai.ProtocolSchema
)

type envelope struct {
	XMLName        xml.Name `xml:"OAI-PMH"`
	NS             string   `xml:"xmlns,attr"`
	NSXSI          string   `xml:"xmlns:xsi,attr"`
	SchemaLocation string   `xml:"xsi:schemaLocation,attr"`
	ResponseDate   string   `xml:"responseDate"`
	Request        request  `xml:"request"`

	Errors              []xmlError      `xml:"error,omitempty"`
	Identify            *xmlIdentify    `xml:"Identify,omitempty"`
	ListMetadataFormats *xmlFormats     `xml:"ListMetadataFormats,omitempty"`
	ListSets            *xmlSets        `xml:"ListSets,omitempty"`
	GetRecord           *xmlGetRecord   `xml:"GetRecord,omitempty"`
	ListIdentifiers     *xmlIdentifiers `xml:"ListIdentifiers,omitempty"`
	ListRecords         *xmlRecords     `xml:"ListRecords,omitempty"`
}

type request struct {
	Verb            string `xml:"verb,attr,omitempty"`
	Identifier      string `xml:"identifier,attr,omitempty"`
	MetadataPrefix  string `xml:"metadataPrefix,attr,omitempty"`
	From            string `xml:"from,attr,omitempty"`
	Until           string `xml:"until,attr,omitempty"`
	Set             string `xml:"set,attr,omitempty"`
	ResumptionToken string `xml:"resumptionToken,attr,omitempty"`
	BaseURL         string `xml:",chardata"`
}

type xmlError struct {
	Code    string `xml:"code,attr"`
	Message string `xml:",chardata"`
}

type xmlIdentify struct {
	RepositoryName    string           `xml:"repositoryName"`
	BaseURL           string           `xml:"baseURL"`
	ProtocolVersion   string           `xml:"protocolVersion"`
	AdminEmail        []string         `xml:"adminEmail"`
	EarliestDatestamp string           `xml:"earliestDatestamp"`
	DeletedRecord     string           `xml:"deletedRecord"`
	Granularity       string           `xml:"granularity"`
	Compression       []string         `xml:"compression,omitempty"`
	Description       []xmlDescription `xml:"description,omitempty"`
}

type xmlDescription struct {
	OAIIdentifier *xmlOAIIdentifier `xml:"oai-identifier"`
}

type xmlOAIIdentifier struct {
	NS                   string `xml:"xmlns,attr"`
	NSXSI                string `xml:"xmlns:xsi,attr"`
	SchemaLocation       string `xml:"xsi:schemaLocation,attr"`
	Scheme               string `xml:"scheme"`
	RepositoryIdentifier string `xml:"repositoryIdentifier"`
	Delimiter            string `xml:"delimiter"`
	SampleIdentifier     string `xml:"sampleIdentifier"`
}

type xmlFormats struct {
	Formats []xmlFormat `xml:"metadataFormat"`
}

type xmlFormat struct {
	Prefix    string `xml:"metadataPrefix"`
	Schema    string `xml:"schema"`
	Namespace string `xml:"metadataNamespace"`
}

type xmlSets struct {
	Sets  []xmlSet  `xml:"set"`
	Token *xmlToken `xml:"resumptionToken,omitempty"`
}

type xmlSet struct {
	Spec        string          `xml:"setSpec"`
	Name        string          `xml:"setName"`
	Description *xmlInnerString `xml:"setDescription,omitempty"`
}

type xmlInnerString struct {
	Text string `xml:",chardata"`
}

type xmlHeader struct {
	Status     string   `xml:"status,attr,omitempty"`
	Identifier string   `xml:"identifier"`
	Datestamp  string   `xml:"datestamp"`
	SetSpecs   []string `xml:"setSpec"`
}

type xmlRecord struct {
	Header   xmlHeader    `xml:"header"`
	Metadata *xmlMetadata `xml:"metadata,omitempty"`
}

type xmlMetadata struct {
	Inner []byte `xml:",innerxml"`
}

type xmlGetRecord struct {
	Record xmlRecord `xml:"record"`
}

type xmlIdentifiers struct {
	Headers []xmlHeader `xml:"header"`
	Token   *xmlToken   `xml:"resumptionToken,omitempty"`
}

type xmlRecords struct {
	Records []xmlRecord `xml:"record"`
	Token   *xmlToken   `xml:"resumptionToken,omitempty"`
}

type xmlToken struct {
	ExpirationDate   string `xml:"expirationDate,attr,omitempty"`
	CompleteListSize string `xml:"completeListSize,attr,omitempty"`
	Cursor           string `xml:"cursor,attr"`
	Value            string `xml:",chardata"`
}

// render turns a dispatched response into the protocol envelope
func render(resp *domain.Response, baseURL string) envelope {
	env := envelope{
		NS:             oai.ProtocolNamespace,
		NSXSI:          xsiNamespace,
		SchemaLocation: responseSchemaLocation,
		ResponseDate:   oai.FormatDatestamp(resp.Date),
		Request:        request{BaseURL: baseURL},
	}
	if resp.Args != nil {
		env.Request.Verb = string(resp.Verb)
		env.Request.Identifier = resp.Args[oai.ArgIdentifier]
		env.Request.MetadataPrefix = resp.Args[oai.ArgMetadataPrefix]
		env.Request.From = resp.Args[oai.ArgFrom]
		env.Request.Until = resp.Args[oai.ArgUntil]
		env.Request.Set = resp.Args[oai.ArgSet]
		env.Request.ResumptionToken = resp.Args[oai.ArgResumptionToken]
	}
	for _, e := range resp.Errors {
		env.Errors = append(env.Errors, xmlError{Code: e.Code, Message: e.Message})
	}

	switch p := resp.Payload.(type) {
	case domain.Identify:
		if p.BaseURL == "" {
			p.BaseURL = baseURL
		}
		env.Identify = identify(p)
	case domain.MetadataFormats:
		out := &xmlFormats{}
		for _, f := range p.Formats {
			out.Formats = append(out.Formats, xmlFormat{Prefix: f.Prefix, Schema: f.Schema, Namespace: f.Namespace})
		}
		env.ListMetadataFormats = out
	case domain.SetsPage:
		out := &xmlSets{Token: xtoken(p.Token)}
		for _, s := range p.Sets {
			x := xmlSet{Spec: s.Spec, Name: s.Name}
			if s.Description != "" {
				x.Description = &xmlInnerString{Text: s.Description}
			}
			out.Sets = append(out.Sets, x)
		}
		env.ListSets = out
	case domain.Item:
		env.GetRecord = &xmlGetRecord{Record: record(p)}
	case domain.ListPage:
		if p.Verb == oai.VerbListIdentifiers {
			out := &xmlIdentifiers{Token: xtoken(p.Token)}
			for _, it := range p.Items {
				out.Headers = append(out.Headers, header(it.Header))
			}
			env.ListIdentifiers = out
			break
		}
		out := &xmlRecords{Token: xtoken(p.Token)}
		for _, it := range p.Items {
			out.Records = append(out.Records, record(it))
		}
		env.ListRecords = out
	}
	return env
}

func identify(p domain.Identify) *xmlIdentify {
	out := &xmlIdentify{
		RepositoryName:    p.RepositoryName,
		BaseURL:           p.BaseURL,
		ProtocolVersion:   p.ProtocolVersion,
		AdminEmail:        p.AdminEmails,
		EarliestDatestamp: oai.FormatDatestamp(p.EarliestDatestamp),
		DeletedRecord:     string(p.DeletedRecord),
		Granularity:       string(p.Granularity),
		Compression:       p.Compressions,
	}
	if p.RepositoryIdentifier != "" {
		out.Description = append(out.Description, xmlDescription{OAIIdentifier: &xmlOAIIdentifier{
			NS:                   identifierNamespace,
			NSXSI:                xsiNamespace,
			SchemaLocation:       identifierNamespace + " " + identifierSchema,
			Scheme:               "oai",
			RepositoryIdentifier: p.RepositoryIdentifier,
			Delimiter:            ":",
			SampleIdentifier:     p.SampleIdentifier,
		}})
	}
	return out
}

func header(h domain.Header) xmlHeader {
	x := xmlHeader{Identifier: h.Identifier, Datestamp: oai.FormatDatestamp(h.Datestamp), SetSpecs: h.SetSpecs}
	if h.Deleted {
		x.Status = "deleted"
	}
	return x
}

func record(it domain.Item) xmlRecord {
	r := xmlRecord{Header: header(it.Header)}
	if !it.Header.Deleted && len(it.Metadata) > 0 {
		r.Metadata = &xmlMetadata{Inner: it.Metadata}
	}
	return r
}

func xtoken(t *domain.Token) *xmlToken {
	if t == nil {
		return nil
	}
	x := &xmlToken{
		Value:  t.Value,
		Cursor: strconv.Itoa(t.Cursor),
	}
	// a negative size is unknown and the attribute is left out
	if t.CompleteListSize >= 0 {
		x.CompleteListSize = strconv.FormatInt(t.CompleteListSize, 10)
	}
	if t.ExpirationDate != nil {
		x.ExpirationDate = t.ExpirationDate.UTC().Format(time.RFC3339)
	}
	return x
}
