// Package oai holds OAI-PMH 2.0 protocol primitives: verbs, argument names,
// datestamps and set spec rules
package oai

import "slices"

// ProtocolNamespace is the OAI-PMH response namespace
const ProtocolNamespace = "http://www.openarchives.org/OAI/2.0/"

// ProtocolSchema is the OAI-PMH response schema location
const ProtocolSchema = "http://www.openarchives.org/OAI/2.0/OAI-PMH.xsd"

// Verb is one of the six protocol requests
type Verb string

// Protocol verbs
const (
	VerbIdentify            Verb = "Identify"
	VerbListMetadataFormats Verb = "ListMetadataFormats"
	VerbListSets            Verb = "ListSets"
	VerbListIdentifiers     Verb = "ListIdentifiers"
	VerbListRecords         Verb = "ListRecords"
	VerbGetRecord           Verb = "GetRecord"
)

// Verbs lists every verb in protocol order
var Verbs = []Verb{
	VerbIdentify, VerbListMetadataFormats, VerbListSets,
	VerbListIdentifiers, VerbListRecords, VerbGetRecord,
}

// ParseVerb matches s exactly; verbs are case sensitive
func ParseVerb(s string) (Verb, bool) {
	v := Verb(s)
	return v, slices.Contains(Verbs, v)
}

// Request argument names
const (
	ArgVerb            = "verb"
	ArgIdentifier      = "identifier"
	ArgMetadataPrefix  = "metadataPrefix"
	ArgFrom            = "from"
	ArgUntil           = "until"
	ArgSet             = "set"
	ArgResumptionToken = "resumptionToken"
)

// Arguments describes which arguments a verb accepts besides verb itself
type Arguments struct {
	Required  []string
	Optional  []string
	Exclusive string
}

// Allows reports whether name is accepted at all
func (a Arguments) Allows(name string) bool {
	return name == a.Exclusive || slices.Contains(a.Required, name) || slices.Contains(a.Optional, name)
}

// Grammar is the argument table for every verb
var Grammar = map[Verb]Arguments{
	VerbIdentify:            {},
	VerbListMetadataFormats: {Optional: []string{ArgIdentifier}},
	VerbListSets:            {Exclusive: ArgResumptionToken},
	VerbGetRecord:           {Required: []string{ArgIdentifier, ArgMetadataPrefix}},
	VerbListIdentifiers: {
		Required:  []string{ArgMetadataPrefix},
		Optional:  []string{ArgFrom, ArgUntil, ArgSet},
		Exclusive: ArgResumptionToken,
	},
	VerbListRecords: {
		Required:  []string{ArgMetadataPrefix},
		Optional:  []string{ArgFrom, ArgUntil, ArgSet},
		Exclusive: ArgResumptionToken,
	},
}

// DeletedPolicy is the repository's deletedRecord support level
type DeletedPolicy string

// Deleted record policies
const (
	DeletedNo         DeletedPolicy = "no"
	DeletedTransient  DeletedPolicy = "transient"
	DeletedPersistent DeletedPolicy = "persistent"
)
