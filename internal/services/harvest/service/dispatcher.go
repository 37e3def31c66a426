package service

import (
	"context"
	"maps"
	"slices"
	"time"

	"oaiserver/internal/core/formats"
	"oaiserver/internal/core/ident"
	"oaiserver/internal/core/oai"
	"oaiserver/internal/core/token"
	perr "oaiserver/internal/platform/errors"
	"oaiserver/internal/platform/logger"
	"oaiserver/internal/platform/metrics"
	ptime "oaiserver/internal/platform/time"
	"oaiserver/internal/services/harvest/domain"
	records "oaiserver/internal/services/records/domain"
)

// IdentifyConfig is the static part of Identify
type IdentifyConfig struct {
	RepositoryName  string
	BaseURL         string
	ProtocolVersion string
	AdminEmails     []string
	Compressions    []string
}

// Service dispatches protocol requests
type Service struct {
	pages   *Paginator
	records records.ReaderPort
	formats *formats.Registry
	ids     *ident.Provider
	ident   IdentifyConfig

	clock   ptime.Clock
	metrics *metrics.Metrics
	sink    domain.EventSink
}

// Option customizes a Service
type Option func(*Service)

// WithSink forwards a harvest event for every request
func WithSink(s domain.EventSink) Option { return func(svc *Service) { svc.sink = s } }

// New builds the dispatcher around a paginator
func New(pages *Paginator, ids *ident.Provider, cfg IdentifyConfig, opts ...Option) *Service {
	if pages == nil {
		panic("harvest.Service requires a paginator")
	}
	if cfg.ProtocolVersion == "" {
		cfg.ProtocolVersion = "2.0"
	}
	s := &Service{
		pages:   pages,
		records: pages.records,
		formats: pages.formats,
		ids:     ids,
		ident:   cfg,
		clock:   pages.clock,
		metrics: pages.metrics,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Dispatch implements domain.Dispatcher
// protocol errors come back inside the response; only failures the client
// cannot fix are returned as errors
func (s *Service) Dispatch(ctx context.Context, req domain.Request) (*domain.Response, error) {
	start := time.Now()
	resp := &domain.Response{Date: s.clock.Now()}

	verb, args, err := s.parse(req)
	resp.Verb = verb
	ctx = logger.WithField(ctx, "verb", string(verb))
	if err == nil {
		resp.Args = args
		hctx, cancel := s.pages.bound(ctx)
		resp.Payload, err = s.handle(hctx, verb, args)
		err = timedOut(hctx, err)
		cancel()
	}

	outcome := "ok"
	switch {
	case err == nil:
	case perr.IsProtocol(err):
		name, _ := perr.OAICode(perr.CodeOf(err))
		outcome = name
		resp.Payload = nil
		resp.Errors = []domain.ProtocolError{{Code: name, Message: perr.WireFrom(err).Message}}
		if perr.IsCode(err, perr.ErrorCodeBadVerb) || perr.IsCode(err, perr.ErrorCodeBadArgument) {
			resp.Args = nil
		}
	default:
		outcome = "failure"
		logger.C(ctx).Error().Err(err).
			Interface("args", req.Args).
			Time("at", resp.Date).
			Msg("harvest request failed")
	}
	elapsed := time.Since(start)
	s.metrics.ObserveVerb(string(verb), outcome, elapsed)
	s.emit(ctx, resp, args, outcome, elapsed)

	if outcome == "failure" {
		if perr.IsCode(err, perr.ErrorCodeUnavailable) || perr.Retryable(err) {
			return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "service temporarily unavailable")
		}
		return nil, perr.Wrap(err, perr.ErrorCodeUnknown, "internal error")
	}
	return resp, nil
}

// parse checks the request against the verb grammar
func (s *Service) parse(req domain.Request) (oai.Verb, map[string]string, error) {
	vs := req.Args[oai.ArgVerb]
	if len(vs) == 0 {
		return "", nil, perr.New(perr.ErrorCodeBadVerb, "verb argument is missing")
	}
	if len(vs) > 1 {
		return "", nil, perr.New(perr.ErrorCodeBadVerb, "verb argument is repeated")
	}
	verb, ok := oai.ParseVerb(vs[0])
	if !ok {
		return "", nil, perr.Newf(perr.ErrorCodeBadVerb, "illegal verb %q", vs[0])
	}
	g := oai.Grammar[verb]

	args := map[string]string{}
	for _, name := range slices.Sorted(maps.Keys(req.Args)) {
		if name == oai.ArgVerb {
			continue
		}
		vals := req.Args[name]
		if !g.Allows(name) {
			return verb, nil, badArg(name, "illegal argument %q for %s", name, verb)
		}
		if len(vals) > 1 {
			return verb, nil, badArg(name, "argument %q is repeated", name)
		}
		if vals[0] == "" {
			return verb, nil, badArg(name, "argument %q is empty", name)
		}
		args[name] = vals[0]
	}

	if g.Exclusive != "" {
		if _, ok := args[g.Exclusive]; ok {
			if len(args) > 1 {
				return verb, nil, badArg(g.Exclusive, "%s is an exclusive argument", g.Exclusive)
			}
			return verb, args, nil
		}
	}
	for _, name := range g.Required {
		if _, ok := args[name]; !ok {
			return verb, nil, badArg(name, "missing required argument %q", name)
		}
	}
	return verb, args, nil
}

func (s *Service) handle(ctx context.Context, verb oai.Verb, args map[string]string) (any, error) {
	switch verb {
	case oai.VerbIdentify:
		return s.Identify(ctx)
	case oai.VerbListMetadataFormats:
		return s.ListMetadataFormats(ctx, args[oai.ArgIdentifier])
	case oai.VerbListSets:
		if tok := args[oai.ArgResumptionToken]; tok != "" {
			return s.pages.NextSets(ctx, tok)
		}
		return s.pages.FirstSets(ctx)
	case oai.VerbGetRecord:
		return s.GetRecord(ctx, args[oai.ArgIdentifier], args[oai.ArgMetadataPrefix])
	case oai.VerbListIdentifiers, oai.VerbListRecords:
		if tok := args[oai.ArgResumptionToken]; tok != "" {
			return s.pages.NextPage(ctx, verb, tok)
		}
		return s.pages.FirstPage(ctx, verb, token.Selector{
			MetadataPrefix: args[oai.ArgMetadataPrefix],
			Set:            args[oai.ArgSet],
			From:           args[oai.ArgFrom],
			Until:          args[oai.ArgUntil],
		})
	}
	return nil, perr.Newf(perr.ErrorCodeBadVerb, "illegal verb %q", verb)
}

// Identify describes the repository
func (s *Service) Identify(ctx context.Context) (domain.Identify, error) {
	earliest, ok, err := s.records.Earliest(ctx)
	if err != nil {
		return domain.Identify{}, err
	}
	if !ok {
		earliest = time.Unix(0, 0).UTC()
	}
	return domain.Identify{
		RepositoryName:       s.ident.RepositoryName,
		BaseURL:              s.ident.BaseURL,
		ProtocolVersion:      s.ident.ProtocolVersion,
		AdminEmails:          s.ident.AdminEmails,
		EarliestDatestamp:    earliest,
		DeletedRecord:        s.pages.cfg.Deleted,
		Granularity:          oai.GranularitySeconds,
		Compressions:         s.ident.Compressions,
		RepositoryIdentifier: s.ids.RepositoryIdentifier(),
		SampleIdentifier:     s.ids.SampleIdentifier(),
	}, nil
}

// ListMetadataFormats lists every format, or those one record can be disseminated in
func (s *Service) ListMetadataFormats(ctx context.Context, identifier string) (domain.MetadataFormats, error) {
	if identifier == "" {
		return domain.MetadataFormats{Formats: s.formats.Formats()}, nil
	}
	r, err := s.lookup(ctx, identifier)
	if err != nil {
		return domain.MetadataFormats{}, err
	}
	fs := s.formats.Formats()
	if !r.Deleted() {
		fs = s.formats.For(r.Content)
	}
	if len(fs) == 0 {
		return domain.MetadataFormats{}, perr.Newf(perr.ErrorCodeNoMetadataFormats, "no metadata formats available for %q", identifier)
	}
	return domain.MetadataFormats{Formats: fs}, nil
}

// GetRecord returns one record in one format
func (s *Service) GetRecord(ctx context.Context, identifier, prefix string) (domain.Item, error) {
	if _, err := s.formats.Get(prefix); err != nil {
		return domain.Item{}, err
	}
	r, err := s.lookup(ctx, identifier)
	if err != nil {
		return domain.Item{}, err
	}
	it := domain.Item{Header: header(&r)}
	if r.Deleted() {
		return it, nil
	}
	if it.Metadata, err = s.formats.Serialize(r.Content, prefix); err != nil {
		return domain.Item{}, err
	}
	return it, nil
}

// lookup resolves an identifier; tombstones are hidden when the policy is no
// and once a transient tombstone outlives the retention window
func (s *Service) lookup(ctx context.Context, identifier string) (records.Record, error) {
	r, err := s.records.GetByOAIID(ctx, identifier)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			return records.Record{}, notExist(identifier)
		}
		return records.Record{}, err
	}
	if !s.pages.listable(&r) {
		return records.Record{}, notExist(identifier)
	}
	return r, nil
}

func (s *Service) emit(ctx context.Context, resp *domain.Response, args map[string]string, outcome string, elapsed time.Duration) {
	if s.sink == nil {
		return
	}
	e := domain.Event{
		At:       resp.Date,
		Verb:     string(resp.Verb),
		Outcome:  outcome,
		Set:      args[oai.ArgSet],
		Prefix:   args[oai.ArgMetadataPrefix],
		Resumed:  args[oai.ArgResumptionToken] != "",
		Duration: elapsed,
	}
	switch p := resp.Payload.(type) {
	case domain.ListPage:
		e.Items = len(p.Items)
	case domain.SetsPage:
		e.Items = len(p.Sets)
	case domain.Item:
		e.Items = 1
	}
	s.sink.Record(ctx, e)
}

func badArg(field, format string, a ...any) error {
	return perr.WithField(perr.Newf(perr.ErrorCodeBadArgument, format, a...), field)
}

func notExist(identifier string) error {
	return perr.WithField(perr.Newf(perr.ErrorCodeIDDoesNotExist, "identifier %q does not exist", identifier), oai.ArgIdentifier)
}
