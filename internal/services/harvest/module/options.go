package module

import (
	"time"

	"oaiserver/internal/core/oai"
	"oaiserver/internal/core/token"
	"oaiserver/internal/platform/config"
)

// Options holds configuration settings for the harvest endpoint
type Options struct {
	PageSize         int
	ProtocolVersion  string
	AdminEmails      []string
	Compressions     []string
	RepositoryName   string
	BaseURL          string
	DeletedRecord    oai.DeletedPolicy
	DeletedRetention time.Duration
	MetadataFormats  []string
	ListTimeout      time.Duration
	Token            token.Config
}

// FromConfig reads the OAI_ harvest settings
func FromConfig(cfg config.Conf) Options {
	oc := cfg.Prefix("OAI_")
	return Options{
		PageSize:         oc.MayInt("PAGE_SIZE", 10),
		ProtocolVersion:  oc.MayString("PROTOCOL_VERSION", "2.0"),
		AdminEmails:      oc.MayCSV("ADMIN_EMAILS", nil),
		Compressions:     oc.MayCSV("COMPRESSIONS", []string{"identity"}),
		RepositoryName:   oc.MayString("REPOSITORY_NAME", ""),
		BaseURL:          oc.MayString("BASE_URL", ""),
		DeletedRecord:    oai.DeletedPolicy(oc.MayEnum("DELETED_RECORD", "transient", "no", "transient", "persistent")),
		DeletedRetention: oc.MayDuration("DELETED_RETENTION", 720*time.Hour),
		MetadataFormats:  oc.MayCSV("METADATA_FORMATS", []string{"oai_dc"}),
		ListTimeout:      oc.MayDuration("LIST_TIMEOUT", 10*time.Second),
		Token:            token.ConfigFrom(oc),
	}
}
