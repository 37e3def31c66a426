// Package ident mints and resolves OAI identifiers for records
package ident

import (
	"os"
	"strconv"
	"strings"

	"oaiserver/internal/platform/config"
	perr "oaiserver/internal/platform/errors"

	"github.com/google/uuid"
)

// Status is the lifecycle of a minted identifier
type Status string

// Identifier statuses
const (
	// StatusReserved is an identifier not yet bound to a stored object
	StatusReserved Status = "reserved"
	// StatusRegistered is an identifier bound to an object uuid
	StatusRegistered Status = "registered"
)

// PID is a minted persistent identifier
type PID struct {
	Value  string    `json:"value"`
	Object uuid.UUID `json:"object"`
	Status Status    `json:"status"`
}

// Config holds the identifier prefix
type Config struct {
	Prefix string
}

// DefaultPrefix is oai:<hostname>:recid/
func DefaultPrefix() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	return "oai:" + host + ":recid/"
}

// ConfigFrom reads ID_PREFIX under cfg's prefix
func ConfigFrom(cfg config.Conf) Config {
	return Config{Prefix: cfg.MayString("ID_PREFIX", DefaultPrefix())}
}

// Provider converts between local record ids and OAI identifiers
type Provider struct {
	prefix string
}

// New builds a Provider; an empty prefix falls back to DefaultPrefix
func New(cfg Config) *Provider {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix()
	}
	return &Provider{prefix: cfg.Prefix}
}

// Prefix returns the configured prefix
func (p *Provider) Prefix() string { return p.prefix }

// ToOAIID renders the identifier for a local id
func (p *Provider) ToOAIID(localID int64) string {
	return p.prefix + strconv.FormatInt(localID, 10)
}

// FromOAIID recovers the local id; foreign or malformed identifiers are idDoesNotExist
func (p *Provider) FromOAIID(oaiID string) (int64, error) {
	rest, ok := strings.CutPrefix(oaiID, p.prefix)
	if !ok || rest == "" {
		return 0, notExist(oaiID)
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, notExist(oaiID)
	}
	return id, nil
}

// Mint returns the PID for a local id; it is registered once bound to an object
func (p *Provider) Mint(localID int64, object uuid.UUID) PID {
	st := StatusReserved
	if object != uuid.Nil {
		st = StatusRegistered
	}
	return PID{Value: p.ToOAIID(localID), Object: object, Status: st}
}

// RepositoryIdentifier is the namespace part of an oai-identifier prefix,
// the hostname in oai:<hostname>:recid/
func (p *Provider) RepositoryIdentifier() string {
	rest, ok := strings.CutPrefix(p.prefix, "oai:")
	if !ok {
		return ""
	}
	ns, _, _ := strings.Cut(rest, ":")
	return ns
}

// SampleIdentifier is advertised in Identify
func (p *Provider) SampleIdentifier() string { return p.ToOAIID(1) }

func notExist(oaiID string) error {
	return perr.WithField(perr.Newf(perr.ErrorCodeIDDoesNotExist, "identifier %q does not exist", oaiID), "identifier")
}
