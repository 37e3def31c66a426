// Package service implements the six harvesting verbs over the record and
// set registries
package service

import (
	"context"
	"errors"
	"time"

	"oaiserver/internal/core/formats"
	"oaiserver/internal/core/oai"
	"oaiserver/internal/core/token"
	perr "oaiserver/internal/platform/errors"
	"oaiserver/internal/platform/logger"
	"oaiserver/internal/platform/metrics"
	ptime "oaiserver/internal/platform/time"
	"oaiserver/internal/services/harvest/domain"
	records "oaiserver/internal/services/records/domain"
	sets "oaiserver/internal/services/sets/domain"
)

// unknownSize marks a list size the paginator cannot state
const unknownSize = -1

// PageConfig tunes listing pages
type PageConfig struct {
	PageSize int
	Deleted  oai.DeletedPolicy
	// Retention bounds how long transient tombstones stay listed
	Retention time.Duration
	// QueryTimeout bounds the storage calls behind one request; zero means none
	QueryTimeout time.Duration
}

// Paginator serves ListIdentifiers, ListRecords and ListSets one page at a time
type Paginator struct {
	records records.ReaderPort
	sets    sets.RegistryPort
	formats *formats.Registry
	codec   *token.Codec
	cfg     PageConfig
	clock   ptime.Clock
	metrics *metrics.Metrics
}

// NewPaginator builds a Paginator; a nil clock means the system clock
func NewPaginator(
	rs records.ReaderPort,
	ss sets.RegistryPort,
	fs *formats.Registry,
	codec *token.Codec,
	cfg PageConfig,
	clock ptime.Clock,
	m *metrics.Metrics,
) *Paginator {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 10
	}
	if cfg.Deleted == "" {
		cfg.Deleted = oai.DeletedTransient
	}
	if clock == nil {
		clock = ptime.System
	}
	return &Paginator{records: rs, sets: ss, formats: fs, codec: codec, cfg: cfg, clock: clock, metrics: m}
}

// FirstPage validates sel and returns the first page of verb
func (p *Paginator) FirstPage(ctx context.Context, verb oai.Verb, sel token.Selector) (_ domain.ListPage, err error) {
	ctx, cancel := p.bound(ctx)
	defer cancel()
	defer func() { err = timedOut(ctx, err) }()

	f, err := p.filter(ctx, sel)
	if err != nil {
		return domain.ListPage{}, err
	}
	total, err := p.records.Count(ctx, f)
	if err != nil {
		return domain.ListPage{}, err
	}
	return p.page(ctx, token.State{Verb: verb, Selector: sel, Total: total}, f, true)
}

// NextPage continues a listing from a resumption token
func (p *Paginator) NextPage(ctx context.Context, verb oai.Verb, tok string) (_ domain.ListPage, err error) {
	ctx, cancel := p.bound(ctx)
	defer cancel()
	defer func() { err = timedOut(ctx, err) }()

	st, err := p.decode(tok, verb)
	if err != nil {
		return domain.ListPage{}, err
	}
	f, err := p.filter(ctx, st.Selector)
	if err != nil {
		if perr.IsProtocol(err) {
			return domain.ListPage{}, badToken("resumption token no longer matches the repository: " + perr.WireFrom(err).Message)
		}
		return domain.ListPage{}, err
	}
	f.AfterID = st.AfterID
	return p.page(ctx, st, f, false)
}

// FirstSets returns the first ListSets page
func (p *Paginator) FirstSets(ctx context.Context) (_ domain.SetsPage, err error) {
	ctx, cancel := p.bound(ctx)
	defer cancel()
	defer func() { err = timedOut(ctx, err) }()

	total, err := p.sets.Count(ctx)
	if err != nil {
		return domain.SetsPage{}, err
	}
	if total == 0 {
		return domain.SetsPage{}, perr.New(perr.ErrorCodeNoSetHierarchy, "this repository does not support sets")
	}
	return p.setsPage(ctx, token.State{Verb: oai.VerbListSets, Total: total}, true)
}

// NextSets continues ListSets from a resumption token
func (p *Paginator) NextSets(ctx context.Context, tok string) (_ domain.SetsPage, err error) {
	ctx, cancel := p.bound(ctx)
	defer cancel()
	defer func() { err = timedOut(ctx, err) }()

	st, err := p.decode(tok, oai.VerbListSets)
	if err != nil {
		return domain.SetsPage{}, err
	}
	return p.setsPage(ctx, st, false)
}

// bound caps the storage calls of one request at QueryTimeout
func (p *Paginator) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.QueryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, p.cfg.QueryTimeout)
}

// timedOut turns an expired query deadline into a transient server error
func timedOut(ctx context.Context, err error) error {
	if err == nil || perr.IsProtocol(err) || perr.IsCode(err, perr.ErrorCodeUnavailable) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "storage query timed out")
	}
	return err
}

// listable reports whether a single record is visible under the deleted policy
func (p *Paginator) listable(r *records.Record) bool {
	return records.Filter{Deleted: p.deleted()}.Matches(r)
}

func (p *Paginator) decode(tok string, verb oai.Verb) (token.State, error) {
	st, err := p.codec.Decode(tok)
	if err != nil {
		return token.State{}, err
	}
	if st.Verb != verb {
		return token.State{}, badToken("resumption token was issued for " + string(st.Verb))
	}
	return st, nil
}

// filter validates a selector and turns it into a record filter
func (p *Paginator) filter(ctx context.Context, sel token.Selector) (records.Filter, error) {
	if _, err := p.formats.Get(sel.MetadataPrefix); err != nil {
		return records.Filter{}, err
	}
	w, err := oai.ParseWindow(sel.From, sel.Until)
	if err != nil {
		return records.Filter{}, err
	}
	if sel.Set != "" {
		if err := p.checkSet(ctx, sel.Set); err != nil {
			return records.Filter{}, err
		}
	}
	return records.Filter{Set: sel.Set, Window: w, Deleted: p.deleted()}, nil
}

func (p *Paginator) checkSet(ctx context.Context, spec string) error {
	n, err := p.sets.Count(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		return perr.New(perr.ErrorCodeNoSetHierarchy, "this repository does not support sets")
	}
	if _, err := p.sets.Get(ctx, spec); err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			return perr.WithField(perr.Newf(perr.ErrorCodeBadArgument, "unknown set %q", spec), oai.ArgSet)
		}
		return err
	}
	return nil
}

func (p *Paginator) deleted() records.DeletedFilter {
	switch p.cfg.Deleted {
	case oai.DeletedNo:
		return records.DeletedFilter{}
	case oai.DeletedTransient:
		if p.cfg.Retention > 0 {
			since := p.clock.Now().Add(-p.cfg.Retention)
			return records.DeletedFilter{Include: true, Since: &since}
		}
	}
	return records.DeletedFilter{Include: true}
}

// page collects up to PageSize disseminable items from the id stream after f.AfterID
// rows the format cannot carry are skipped and reading continues, so a first
// page is empty only when nothing in the whole stream qualifies
func (p *Paginator) page(ctx context.Context, st token.State, f records.Filter, first bool) (domain.ListPage, error) {
	limit := p.cfg.PageSize
	out := domain.ListPage{Verb: st.Verb, Items: make([]domain.Item, 0, limit)}
	var (
		lastID  int64
		more    bool
		skipped bool
	)
scan:
	for {
		rows, err := p.records.List(ctx, f, limit+1)
		if err != nil {
			return domain.ListPage{}, err
		}
		for i := range rows {
			if len(out.Items) == limit {
				more = true
				break scan
			}
			lastID = rows[i].ID
			item, ok := p.item(ctx, &rows[i], st.Verb, st.Selector.MetadataPrefix)
			if !ok {
				skipped = true
				continue
			}
			out.Items = append(out.Items, item)
		}
		if len(rows) <= limit {
			break
		}
		f.AfterID = lastID
	}

	if first && len(out.Items) == 0 {
		return domain.ListPage{}, perr.New(perr.ErrorCodeNoRecordsMatch, "no records match the request")
	}
	// the stored count cannot see format eligibility, so it is dropped once rows are skipped
	if skipped {
		st.Total = unknownSize
	}

	switch {
	case more:
		next := st
		next.AfterID = lastID
		next.Cursor = st.Cursor + len(out.Items)
		next.Issued = 0
		tok, err := p.issue(next, st.Cursor)
		if err != nil {
			return domain.ListPage{}, err
		}
		out.Token = tok
	case !first:
		out.Token = &domain.Token{CompleteListSize: st.Total, Cursor: st.Cursor}
	}
	return out, nil
}

// item renders one row; live records the format cannot carry are left out
func (p *Paginator) item(ctx context.Context, r *records.Record, verb oai.Verb, prefix string) (domain.Item, bool) {
	it := domain.Item{Header: header(r)}
	if r.Deleted() {
		return it, true
	}
	s, err := p.formats.Get(prefix)
	if err != nil || !s.CanDisseminate(r.Content) {
		return it, false
	}
	if verb != oai.VerbListRecords {
		return it, true
	}
	md, err := s.Serialize(r.Content)
	if err != nil {
		logger.C(ctx).Warn().Err(err).Int64("record_id", r.ID).Str("prefix", prefix).Msg("record failed to serialize; skipped")
		return it, false
	}
	it.Metadata = md
	return it, true
}

func (p *Paginator) setsPage(ctx context.Context, st token.State, first bool) (domain.SetsPage, error) {
	rows, next, err := p.sets.List(ctx, st.AfterSpec, p.cfg.PageSize)
	if err != nil {
		return domain.SetsPage{}, err
	}
	out := domain.SetsPage{Sets: make([]domain.SetItem, 0, len(rows))}
	for _, s := range rows {
		out.Sets = append(out.Sets, domain.SetItem{Spec: s.Spec, Name: s.Name, Description: s.Description})
	}
	switch {
	case next != "":
		n := st
		n.AfterSpec = next
		n.Cursor = st.Cursor + len(rows)
		n.Issued = 0
		if out.Token, err = p.issue(n, st.Cursor); err != nil {
			return domain.SetsPage{}, err
		}
	case !first:
		out.Token = &domain.Token{CompleteListSize: st.Total, Cursor: st.Cursor}
	}
	return out, nil
}

// issue encodes next; the element's cursor is the offset of the page being served
func (p *Paginator) issue(next token.State, cursor int) (*domain.Token, error) {
	next.Issued = p.clock.Now().Unix()
	v, err := p.codec.Encode(next)
	if err != nil {
		return nil, err
	}
	p.metrics.TokenIssued()
	exp := p.codec.ExpiresAt(next)
	return &domain.Token{Value: v, ExpirationDate: &exp, CompleteListSize: next.Total, Cursor: cursor}, nil
}

func header(r *records.Record) domain.Header {
	return domain.Header{
		Identifier: r.OAIID,
		Datestamp:  r.UpdatedAt,
		SetSpecs:   r.Sets,
		Deleted:    r.Deleted(),
	}
}

func badToken(msg string) error {
	return perr.WithField(perr.New(perr.ErrorCodeBadResumptionToken, msg), oai.ArgResumptionToken)
}
