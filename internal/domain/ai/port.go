package ai

import "context"

// Vision port: the image-description collaborator. Takes base64 evidence,
// returns free text that should open with an EXPERIMENT_TYPE marker line.
type Vision interface {
	Describe(ctx context.Context, imageBase64, contentType string) (string, error)
}

// Auditor port: the comparison/reasoning collaborator. Takes the vision
// description and the procedure text, returns raw model output that the
// engine normalizes and never trusts.
type Auditor interface {
	Audit(ctx context.Context, description, procedureText string) (string, error)
}
