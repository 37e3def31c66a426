// Package domain defines the protocol level results the harvest endpoint serves
package domain

import (
	"net/url"
	"time"

	"oaiserver/internal/core/formats"
	"oaiserver/internal/core/oai"
)

// Header identifies one record in a listing
type Header struct {
	Identifier string
	Datestamp  time.Time
	SetSpecs   []string
	Deleted    bool
}

// Item is a header plus, for ListRecords and GetRecord, serialized metadata
type Item struct {
	Header Header
	// Metadata is a complete XML element; empty for deleted records and ListIdentifiers
	Metadata []byte
}

// Token is the resumptionToken element of an incomplete list
// an empty Value marks the final page
type Token struct {
	Value            string
	ExpirationDate   *time.Time
	// CompleteListSize is negative when the size is unknown
	CompleteListSize int64
	Cursor           int
}

// ListPage is one page of ListIdentifiers or ListRecords
type ListPage struct {
	Verb  oai.Verb
	Items []Item
	// Token is nil when the whole list fit in one response
	Token *Token
}

// SetItem is one entry of ListSets
type SetItem struct {
	Spec        string
	Name        string
	Description string
}

// SetsPage is one page of ListSets
type SetsPage struct {
	Sets  []SetItem
	Token *Token
}

// Identify describes the repository
type Identify struct {
	RepositoryName    string
	BaseURL           string
	ProtocolVersion   string
	AdminEmails       []string
	EarliestDatestamp time.Time
	DeletedRecord     oai.DeletedPolicy
	Granularity       oai.Granularity
	Compressions      []string
	// RepositoryIdentifier and SampleIdentifier feed the oai-identifier description
	RepositoryIdentifier string
	SampleIdentifier     string
}

// MetadataFormats is the ListMetadataFormats payload
type MetadataFormats struct {
	Formats []formats.Format
}

// Request is one protocol request as received
type Request struct {
	Args url.Values
}

// ProtocolError is an error reported inside the response payload
type ProtocolError struct {
	Code    string
	Message string
}

// Response is the outcome of a dispatched request
// exactly one of Payload and Errors is set
type Response struct {
	Date time.Time
	Verb oai.Verb
	// Args are echoed in the request element; nil after badVerb or badArgument
	Args    map[string]string
	Payload any
	Errors  []ProtocolError
}

// Event describes one served request for the harvest log
type Event struct {
	At       time.Time
	Verb     string
	Outcome  string
	Set      string
	Prefix   string
	Items    int
	Resumed  bool
	Duration time.Duration
}
