package audits

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labsentinel/internal/application"
	"labsentinel/internal/domain/auditerrors"
	domain "labsentinel/internal/domain/audits"
	"labsentinel/internal/domain/procedures"
)

const gelVisionText = `EXPERIMENT_TYPE: GEL_ELECTROPHORESIS
An agarose gel with six lanes. The ladder lane shows sharp, distinct bands.`

const gelReportJSON = `{
  "summary": "Run follows the protocol.",
  "findings": [],
  "sop_compliance_checklist": [
    {"criterion": "Ladder present", "status": "COMPLIANT"},
    {"criterion": "Bands straight", "status": "COMPLIANT"},
    {"criterion": "Run voltage", "status": "UNABLE_TO_ASSESS"},
    {"criterion": "Dye front visible", "status": "COMPLIANT"}
  ],
  "risk_assessment": "Low",
  "recommended_actions": ["File the gel image with the batch record"]
}`

// ---- fakes ----

type fakeVision struct {
	mu    sync.Mutex
	calls int
	text  string
	err   error
}

func (f *fakeVision) Describe(ctx context.Context, imageBase64, contentType string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.text, f.err
}

type fakeAuditor struct {
	mu    sync.Mutex
	calls int
	raw   string
	err   error
}

func (f *fakeAuditor) Audit(ctx context.Context, description, procedureText string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.raw, f.err
}

type memCache struct {
	mu      sync.Mutex
	results map[string][]byte
	descs   map[string]string
}

func newMemCache() *memCache {
	return &memCache{results: make(map[string][]byte), descs: make(map[string]string)}
}

func (m *memCache) Get(ctx context.Context, fp string) (*domain.AuditResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.results[fp]
	if !ok {
		return nil, domain.ErrNotFound
	}
	var res domain.AuditResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (m *memCache) Put(ctx context.Context, fp string, res *domain.AuditResult) error {
	b, err := json.Marshal(res)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.results[fp]; ok {
		if bytes.Equal(existing, b) {
			return nil
		}
		return domain.ErrCacheConflict
	}
	m.results[fp] = b
	return nil
}

func (m *memCache) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = make(map[string][]byte)
	m.descs = make(map[string]string)
	return nil
}

func (m *memCache) Description(ctx context.Context, key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	text, ok := m.descs[key]
	return text, ok
}

func (m *memCache) SaveDescription(ctx context.Context, key, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.descs[key]; !ok {
		m.descs[key] = text
	}
	return nil
}

type memRepo struct {
	mu   sync.Mutex
	recs []*domain.Record
}

func (m *memRepo) Save(ctx context.Context, rec *domain.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	return nil
}

func (m *memRepo) Get(ctx context.Context, tenant string, id domain.AuditID) (*domain.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.recs {
		if r.TenantID == tenant && r.ID == id {
			return r, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memRepo) Latest(ctx context.Context, tenant string, limit int) ([]*domain.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Record
	for i := len(m.recs) - 1; i >= 0 && len(out) < limit; i-- {
		if m.recs[i].TenantID == tenant {
			out = append(out, m.recs[i])
		}
	}
	return out, nil
}

func (m *memRepo) Summary(ctx context.Context, tenant string, sinceDays int) (domain.Summary, error) {
	return domain.Summary{}, nil
}

func (m *memRepo) Paginate(ctx context.Context, tenant string, page, pageSize int) (domain.PaginatedRecords, error) {
	return domain.PaginatedRecords{}, nil
}

func (m *memRepo) Cursor(ctx context.Context, tenant string, cursorTime time.Time, cursorID string, pageSize int) ([]*domain.Record, error) {
	return nil, nil
}

type memErrors struct {
	mu   sync.Mutex
	errs []*auditerrors.AuditError
}

func (m *memErrors) Save(ctx context.Context, e *auditerrors.AuditError) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = append(m.errs, e)
	return nil
}

func (m *memErrors) Latest(ctx context.Context, tenant string, limit int) ([]*auditerrors.AuditError, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errs, nil
}

func newTestService(vision *fakeVision, auditor *fakeAuditor) (*Service, *memCache, *memRepo, *memErrors) {
	cache := newMemCache()
	repo := &memRepo{}
	errRepo := &memErrors{}
	svc := &Service{
		Catalog:      procedures.BuiltIn(),
		Repo:         repo,
		Errors:       errRepo,
		Cache:        cache,
		Descriptions: cache,
		Vision:       vision,
		Auditor:      auditor,
		Clock:        application.SystemClock{},
	}
	return svc, cache, repo, errRepo
}

func gelCommand() RunAuditCommand {
	return RunAuditCommand{
		TenantID:    "acme-lab",
		ProcedureID: "SOP-GE-002",
		Evidence:    []byte("fake gel image bytes"),
		ContentType: "image/png",
	}
}

// ---- tests ----

func TestRunAudit_HappyPath(t *testing.T) {
	vision := &fakeVision{text: gelVisionText}
	auditor := &fakeAuditor{raw: gelReportJSON}
	svc, _, repo, _ := newTestService(vision, auditor)

	out, err := svc.RunAudit(context.Background(), gelCommand())
	require.NoError(t, err)

	// (3 + 0.25*1)/4*100 = 81.25, rounds to 81
	assert.Equal(t, 81, out.Score)
	assert.Equal(t, domain.VerdictPass, out.Status)
	assert.Equal(t, domain.TypeGel, out.DetectedType)
	assert.False(t, out.Mismatch)
	assert.False(t, out.Cached)
	assert.NotEmpty(t, out.ID)
	assert.Equal(t, 1, vision.calls)
	assert.Equal(t, 1, auditor.calls)

	repo.mu.Lock()
	defer repo.mu.Unlock()
	require.Len(t, repo.recs, 1)
	assert.Equal(t, "acme-lab", repo.recs[0].TenantID)
}

func TestRunAudit_ReplayServedFromCache(t *testing.T) {
	vision := &fakeVision{text: gelVisionText}
	auditor := &fakeAuditor{raw: gelReportJSON}
	svc, _, _, _ := newTestService(vision, auditor)
	ctx := context.Background()

	first, err := svc.RunAudit(ctx, gelCommand())
	require.NoError(t, err)

	second, err := svc.RunAudit(ctx, gelCommand())
	require.NoError(t, err)

	assert.True(t, second.Cached)
	assert.Equal(t, first.AuditResult, second.AuditResult)

	// neither model ran again
	assert.Equal(t, 1, vision.calls)
	assert.Equal(t, 1, auditor.calls)

	// request-scoped ids differ even though the verdict is identical
	assert.NotEqual(t, first.ID, second.ID)
}

func TestRunAudit_EmptyEvidence(t *testing.T) {
	svc, _, _, _ := newTestService(&fakeVision{}, &fakeAuditor{})

	cmd := gelCommand()
	cmd.Evidence = nil
	_, err := svc.RunAudit(context.Background(), cmd)
	require.ErrorIs(t, err, domain.ErrEmptyEvidence)
}

func TestRunAudit_UnknownProcedure(t *testing.T) {
	svc, _, _, _ := newTestService(&fakeVision{}, &fakeAuditor{})

	cmd := gelCommand()
	cmd.ProcedureID = "SOP-MISSING"
	_, err := svc.RunAudit(context.Background(), cmd)
	require.ErrorIs(t, err, procedures.ErrNotFound)
}

func TestRunAudit_UpstreamGarbageNotCached(t *testing.T) {
	vision := &fakeVision{text: gelVisionText}
	auditor := &fakeAuditor{raw: "no structured output today"}
	svc, cache, _, errRepo := newTestService(vision, auditor)
	ctx := context.Background()

	_, err := svc.RunAudit(ctx, gelCommand())
	require.ErrorIs(t, err, domain.ErrUpstreamFormat)

	// nothing cached for the fingerprint
	cache.mu.Lock()
	assert.Empty(t, cache.results)
	cache.mu.Unlock()

	// the failure is recorded with its phase
	errRepo.mu.Lock()
	require.Len(t, errRepo.errs, 1)
	assert.Equal(t, auditerrors.PhaseParse, errRepo.errs[0].Phase)
	errRepo.mu.Unlock()

	// a retry after the upstream recovers succeeds
	auditor.raw = gelReportJSON
	out, err := svc.RunAudit(ctx, gelCommand())
	require.NoError(t, err)
	assert.Equal(t, 81, out.Score)

	// the vision text was memoized by the failed attempt
	assert.Equal(t, 1, vision.calls)
}

func TestRunAudit_VisionFailureRecorded(t *testing.T) {
	vision := &fakeVision{err: errors.New("model unavailable")}
	svc, _, _, errRepo := newTestService(vision, &fakeAuditor{})

	_, err := svc.RunAudit(context.Background(), gelCommand())
	require.Error(t, err)

	errRepo.mu.Lock()
	defer errRepo.mu.Unlock()
	require.Len(t, errRepo.errs, 1)
	assert.Equal(t, auditerrors.PhaseVision, errRepo.errs[0].Phase)
}

func TestRunAudit_MismatchedEvidence(t *testing.T) {
	// Gel evidence audited against the HPLC procedure.
	vision := &fakeVision{text: gelVisionText}
	auditor := &fakeAuditor{raw: gelReportJSON}
	svc, _, _, _ := newTestService(vision, auditor)

	cmd := gelCommand()
	cmd.ProcedureID = "SOP-HP-003"
	out, err := svc.RunAudit(context.Background(), cmd)
	require.NoError(t, err)

	assert.True(t, out.Mismatch)
	assert.Equal(t, domain.VerdictFail, out.Status)
	assert.LessOrEqual(t, out.Score, 15)
	require.NotEmpty(t, out.Findings)
	assert.Equal(t, "F-MISMATCH", out.Findings[len(out.Findings)-1].ID)
}

func TestRunAudit_ConcurrentCallsCoalesce(t *testing.T) {
	vision := &fakeVision{text: gelVisionText}
	auditor := &fakeAuditor{raw: gelReportJSON}
	svc, _, _, _ := newTestService(vision, auditor)

	const n = 8
	var wg sync.WaitGroup
	results := make([]*RunAuditResult, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.RunAudit(context.Background(), gelCommand())
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, 81, results[i].Score)
	}

	// Coalescing plus the cache keeps the model call count at one even
	// for stragglers that arrive after the first flight lands.
	assert.Equal(t, 1, vision.calls)
	assert.Equal(t, 1, auditor.calls)
}

func TestClearCache(t *testing.T) {
	vision := &fakeVision{text: gelVisionText}
	auditor := &fakeAuditor{raw: gelReportJSON}
	svc, cache, _, _ := newTestService(vision, auditor)
	ctx := context.Background()

	_, err := svc.RunAudit(ctx, gelCommand())
	require.NoError(t, err)
	require.NoError(t, svc.ClearCache(ctx, "acme-lab"))

	cache.mu.Lock()
	assert.Empty(t, cache.results)
	cache.mu.Unlock()

	// next run recomputes
	out, err := svc.RunAudit(ctx, gelCommand())
	require.NoError(t, err)
	assert.False(t, out.Cached)
	assert.Equal(t, 2, auditor.calls)
}

