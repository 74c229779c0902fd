package procedures

import (
	"errors"
	"fmt"
	"strings"

	"labsentinel/internal/domain/audits"
)

var (
	ErrNotFound  = errors.New("procedure not found")
	ErrMalformed = errors.New("malformed procedure spec")
	ErrDuplicate = errors.New("procedure id already registered")
)

// Spec is one Standard Operating Procedure: identity, the experiment type
// it covers, its ordered requirement list, and the full protocol text fed to
// the auditor prompt. Specs are static, externally supplied data.
type Spec struct {
	ID           string                `yaml:"id" json:"id"`
	Version      string                `yaml:"version" json:"version"`
	Title        string                `yaml:"title" json:"title"`
	ExpectedType audits.ExperimentType `yaml:"expected_type" json:"expected_type"`
	Requirements []string              `yaml:"requirements" json:"requirements"`
	Text         string                `yaml:"text" json:"-"`
}

// Validate rejects specs that cannot drive an audit.
func (s *Spec) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrMalformed)
	}
	if strings.TrimSpace(s.Version) == "" {
		return fmt.Errorf("%w: %s has no version", ErrMalformed, s.ID)
	}
	if audits.TypeFromTag(string(s.ExpectedType)) == audits.TypeUnknown {
		return fmt.Errorf("%w: %s has unknown expected type %q", ErrMalformed, s.ID, s.ExpectedType)
	}
	if len(s.Requirements) == 0 {
		return fmt.Errorf("%w: %s has no requirements", ErrMalformed, s.ID)
	}
	if strings.TrimSpace(s.Text) == "" {
		return fmt.Errorf("%w: %s has no protocol text", ErrMalformed, s.ID)
	}
	return nil
}

// Ref returns the identity triple the audit engine needs.
func (s *Spec) Ref() audits.ProcedureRef {
	return audits.ProcedureRef{ID: s.ID, Version: s.Version, Expected: s.ExpectedType}
}
