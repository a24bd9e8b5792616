package auditor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/pageaudit/internal/idgen"
	"github.com/hazyhaar/pageaudit/internal/kit"
	"github.com/hazyhaar/pageaudit/internal/safeurl"
	"github.com/hazyhaar/pageaudit/internal/store"
	"github.com/hazyhaar/pageaudit/report"
)

// maxBatch bounds the URLs of one API or MCP request.
const maxBatch = 20

// ErrNotFound is returned for unknown run ids.
var ErrNotFound = errors.New("auditor: run not found")

// errBadRequest marks invalid requests.
var errBadRequest = errors.New("bad request")

// ErrNoStore is returned by lookups when no store is configured.
var ErrNoStore = errors.New("auditor: no report store configured")

// Service exposes the auditor to remote callers. Target URLs pass the
// SSRF guard first.
type Service struct {
	auditor *Auditor
	store   *store.Store
	guard   *safeurl.Guard
	logger  *slog.Logger

	run  kit.Endpoint
	get  kit.Endpoint
	list kit.Endpoint
}

// RunRequest asks for one or more audits.
type RunRequest struct {
	URL  string   `json:"url,omitempty"`
	URLs []string `json:"urls,omitempty"`
}

// GetRequest fetches one stored run.
type GetRequest struct {
	ID string `json:"id"`
}

// ListRequest lists stored runs.
type ListRequest struct {
	URL   string `json:"url,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// NewService wires a Service. st may be nil, which disables get and list.
func NewService(a *Auditor, st *store.Store, guard *safeurl.Guard, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{auditor: a, store: st, guard: guard, logger: logger}
	s.run = kit.Logging(logger, "audit_run")(s.doRun)
	s.get = kit.Logging(logger, "audit_get")(s.doGet)
	s.list = kit.Logging(logger, "audit_list")(s.doList)
	return s
}

// Run audits the requested URLs and returns their reports in order.
func (s *Service) Run(ctx context.Context, req RunRequest) ([]*report.Report, error) {
	out, err := s.run(ctx, &req)
	if err != nil {
		return nil, err
	}
	return out.([]*report.Report), nil
}

// Get returns a stored report.
func (s *Service) Get(ctx context.Context, id string) (*report.Report, error) {
	out, err := s.get(ctx, &GetRequest{ID: id})
	if err != nil {
		return nil, err
	}
	return out.(*report.Report), nil
}

// List returns stored run summaries, newest first.
func (s *Service) List(ctx context.Context, req ListRequest) ([]store.Summary, error) {
	out, err := s.list(ctx, &req)
	if err != nil {
		return nil, err
	}
	return out.([]store.Summary), nil
}

// targets validates and normalises the URLs of req.
func (s *Service) targets(ctx context.Context, req *RunRequest) ([]string, error) {
	raw := req.URLs
	if req.URL != "" {
		raw = append([]string{req.URL}, raw...)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("auditor: url is required: %w", errBadRequest)
	}
	if len(raw) > maxBatch {
		return nil, fmt.Errorf("auditor: at most %d urls per request: %w", maxBatch, errBadRequest)
	}
	urls := make([]string, 0, len(raw))
	for _, u := range raw {
		clean, err := s.guard.Check(ctx, u)
		if err != nil {
			return nil, fmt.Errorf("auditor: %s: %w", u, err)
		}
		urls = append(urls, clean)
	}
	return urls, nil
}

func (s *Service) doRun(ctx context.Context, req any) (any, error) {
	r := req.(*RunRequest)
	urls, err := s.targets(ctx, r)
	if err != nil {
		return nil, err
	}
	reps, err := s.auditor.RunMany(ctx, urls)
	if err != nil {
		return nil, err
	}
	return reps, nil
}

func (s *Service) doGet(ctx context.Context, req any) (any, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	r := req.(*GetRequest)
	id, err := idgen.ParseRun(r.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	rep, err := s.store.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if rep == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, r.ID)
	}
	return rep, nil
}

func (s *Service) doList(ctx context.Context, req any) (any, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	r := req.(*ListRequest)
	return s.store.ListRuns(ctx, store.Filter{URL: r.URL, Limit: r.Limit})
}
