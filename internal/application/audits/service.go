package audits

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"labsentinel/internal/application"
	"labsentinel/internal/domain/ai"
	"labsentinel/internal/domain/auditerrors"
	domain "labsentinel/internal/domain/audits"
	"labsentinel/internal/domain/procedures"
)

// Service implements the audit use-cases. It is safe for concurrent use:
// all mutable state lives behind the injected ports, and audits for the
// same fingerprint are coalesced so exactly one computation runs per key.
type Service struct {
	Catalog      *procedures.Catalog
	Repo         domain.Repository
	Errors       auditerrors.Repository
	Cache        domain.ResultCache
	Descriptions domain.DescriptionCache
	Vision       ai.Vision
	Auditor      ai.Auditor
	Artifacts    domain.ArtifactStore
	Clock        application.Clock
	Log          *zap.Logger

	group singleflight.Group
}

// Command to run one audit.
type RunAuditCommand struct {
	TenantID    string
	ProcedureID string
	Evidence    []byte
	ContentType string
}

// RunAuditResult wraps the deterministic verdict with request-scoped
// metadata (history id, timing, cache provenance).
type RunAuditResult struct {
	*domain.AuditResult
	ID          string `json:"id"`
	Cached      bool   `json:"cached"`
	ArtifactURL string `json:"artifact_url,omitempty"`
	DurationMS  int64  `json:"duration_ms"`
}

// RunAudit computes one audit synchronously. Concurrent calls for the same
// fingerprint share a single computation; later callers read the cached
// result instead of re-invoking either upstream model.
func (s *Service) RunAudit(ctx context.Context, cmd RunAuditCommand) (*RunAuditResult, error) {
	if len(cmd.Evidence) == 0 {
		return nil, domain.ErrEmptyEvidence
	}
	spec, err := s.Catalog.Get(cmd.ProcedureID)
	if err != nil {
		return nil, err
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	fp := domain.Fingerprint(cmd.Evidence, spec.ID, spec.Version)
	v, err, _ := s.group.Do(fp, func() (any, error) {
		return s.runOne(ctx, cmd, spec, fp)
	})
	if err != nil {
		return nil, err
	}
	return v.(*RunAuditResult), nil
}

func (s *Service) runOne(ctx context.Context, cmd RunAuditCommand, spec *procedures.Spec, fp string) (*RunAuditResult, error) {
	start := s.Clock.Now()

	// Cache hit short-circuits before any model call.
	if res, err := s.Cache.Get(ctx, fp); err == nil {
		s.log().Debug("audit cache hit", zap.String("fingerprint", fp))
		out := &RunAuditResult{
			AuditResult: res,
			ID:          uuid.New().String(),
			Cached:      true,
			DurationMS:  s.Clock.Now().Sub(start).Milliseconds(),
		}
		s.saveRecord(ctx, cmd.TenantID, out, start)
		return out, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		s.log().Warn("cache read failed, recomputing", zap.String("fingerprint", fp), zap.Error(err))
	}

	// Vision stage, memoized by evidence hash.
	evKey := domain.EvidenceKey(cmd.Evidence)
	var visionText string
	var memoized bool
	if s.Descriptions != nil {
		visionText, memoized = s.Descriptions.Description(ctx, evKey)
	}
	if !memoized {
		var err error
		visionText, err = s.Vision.Describe(ctx, encodeEvidence(cmd.Evidence), cmd.ContentType)
		if err != nil {
			s.recordFailure(ctx, cmd, fp, auditerrors.PhaseVision, err)
			return nil, fmt.Errorf("vision stage: %w", err)
		}
		if s.Descriptions != nil {
			if serr := s.Descriptions.SaveDescription(ctx, evKey, visionText); serr != nil {
				s.log().Warn("description cache write failed", zap.Error(serr))
			}
		}
	}
	desc := domain.ParseEvidenceText(visionText)

	// Reasoning stage. Runs even when the evidence will mismatch the
	// procedure; the gate needs the full comparison alongside its override.
	rawReport, err := s.Auditor.Audit(ctx, visionText, spec.Text)
	if err != nil {
		s.recordFailure(ctx, cmd, fp, auditerrors.PhaseReasoning, err)
		return nil, fmt.Errorf("reasoning stage: %w", err)
	}

	rep, err := domain.ParseReport(rawReport)
	if err != nil {
		s.recordFailure(ctx, cmd, fp, auditerrors.PhaseParse, err)
		return nil, err
	}

	res, err := domain.Evaluate(fp, desc, rep, spec.Ref())
	if err != nil {
		return nil, err
	}

	// First write wins. A conflicting put means a determinism breach
	// somewhere upstream; the original cached value stays authoritative.
	if err := s.Cache.Put(ctx, fp, res); err != nil {
		if errors.Is(err, domain.ErrCacheConflict) {
			s.log().Error("cache consistency violation, keeping original result",
				zap.String("fingerprint", fp), zap.Error(err))
			if orig, gerr := s.Cache.Get(ctx, fp); gerr == nil {
				res = orig
			}
		} else {
			s.log().Warn("cache write failed", zap.String("fingerprint", fp), zap.Error(err))
		}
	}

	out := &RunAuditResult{
		AuditResult: res,
		ID:          uuid.New().String(),
		ArtifactURL: s.uploadArtifacts(ctx, cmd, spec, fp, res),
		DurationMS:  s.Clock.Now().Sub(start).Milliseconds(),
	}
	s.saveRecord(ctx, cmd.TenantID, out, start)
	return out, nil
}

// uploadArtifacts stores the evidence image and the result export; best
// effort, the verdict stands without them.
func (s *Service) uploadArtifacts(ctx context.Context, cmd RunAuditCommand, spec *procedures.Spec, fp string, res *domain.AuditResult) string {
	if s.Artifacts == nil {
		return ""
	}
	prefix := fmt.Sprintf("%s/%s/%s", cmd.TenantID, spec.ID, fp[:16])

	contentType := cmd.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}
	if _, err := s.Artifacts.Put(ctx, prefix+"/evidence", cmd.Evidence, contentType); err != nil {
		s.log().Warn("evidence upload failed", zap.String("fingerprint", fp), zap.Error(err))
	}

	report, err := json.Marshal(res)
	if err != nil {
		return ""
	}
	url, err := s.Artifacts.Put(ctx, prefix+"/result.json", report, "application/json")
	if err != nil {
		s.log().Warn("result upload failed", zap.String("fingerprint", fp), zap.Error(err))
		return ""
	}
	return url
}

// saveRecord persists the history row; the verdict is already cached, so a
// failed save is logged rather than failing the audit.
func (s *Service) saveRecord(ctx context.Context, tenant string, out *RunAuditResult, auditedAt time.Time) {
	if s.Repo == nil {
		return
	}
	rec := &domain.Record{
		ID:           domain.AuditID(out.ID),
		TenantID:     tenant,
		AuditedAt:    auditedAt,
		Fingerprint:  out.Fingerprint,
		ProcedureID:  out.ProcedureID,
		DetectedType: out.DetectedType,
		ExpectedType: out.ExpectedType,
		Mismatch:     out.Mismatch,
		Score:        out.Score,
		Status:       out.Status,
		Counts:       out.Counts,
		Cached:       out.Cached,
		ArtifactURL:  out.ArtifactURL,
		DurationMS:   out.DurationMS,
	}
	if err := s.Repo.Save(ctx, rec); err != nil {
		s.log().Warn("history save failed", zap.String("audit_id", out.ID), zap.Error(err))
	}
}

func encodeEvidence(evidence []byte) string {
	return base64.StdEncoding.EncodeToString(evidence)
}

// Latest returns the most recent audit records for a tenant.
func (s *Service) Latest(ctx context.Context, tenant string, limit int) ([]*domain.Record, error) {
	return s.Repo.Latest(ctx, tenant, limit)
}

// Get returns a single audit record by id.
func (s *Service) Get(ctx context.Context, tenant string, id domain.AuditID) (*domain.Record, error) {
	return s.Repo.Get(ctx, tenant, id)
}

// Summary aggregates verdicts over the last N days.
func (s *Service) Summary(ctx context.Context, tenant string, sinceDays int) (domain.Summary, error) {
	return s.Repo.Summary(ctx, tenant, sinceDays)
}

// ClearCache is the one explicit cache-destroy operation; the scoring
// pipeline itself never removes an entry.
func (s *Service) ClearCache(ctx context.Context, tenant string) error {
	s.log().Info("clearing result cache", zap.String("tenant", tenant))
	return s.Cache.Clear(ctx)
}

func (s *Service) recordFailure(ctx context.Context, cmd RunAuditCommand, fp, phase string, cause error) {
	if s.Errors == nil {
		return
	}
	e := &auditerrors.AuditError{
		TenantID:    cmd.TenantID,
		Fingerprint: fp,
		ProcedureID: cmd.ProcedureID,
		Phase:       phase,
		Message:     cause.Error(),
		CreatedAt:   s.Clock.Now(),
	}
	if err := s.Errors.Save(ctx, e); err != nil {
		s.log().Warn("audit error record failed", zap.Error(err))
	}
}

func (s *Service) log() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}
