// Package generate defines the content-generation collaborator. The
// pipeline never produces planning text itself; it hands a stage input
// to a Generator and treats the returned front-matter document as an
// opaque, already-structured record.
package generate

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/planforge/planforge/internal/artifact"
	"github.com/planforge/planforge/internal/errors"
)

// StageInput is everything a generator gets to produce the next layer.
type StageInput struct {
	IdeaID string
	// Stage is the artifact type being produced.
	Stage artifact.Type
	// Upstream holds the validated upstream documents, keyed by type.
	Upstream map[artifact.Type]*artifact.Document
	// Guidance is free-text operator guidance passed through untouched.
	Guidance string
}

// Generator produces one structured planning document per stage.
type Generator interface {
	Generate(ctx context.Context, input StageInput) (*artifact.Document, error)
}

// CommandGenerator shells out to an external tool. The stage input's
// upstream documents are rendered to front-matter on stdin; stdout must
// be one front-matter document of the requested type.
type CommandGenerator struct {
	// Command is run through the shell, with the stage name appended as
	// an argument.
	Command string
	Dir     string
}

// Generate implements Generator.
func (g *CommandGenerator) Generate(ctx context.Context, input StageInput) (*artifact.Document, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", fmt.Sprintf("%s %s", g.Command, input.Stage))
	cmd.Dir = g.Dir

	var stdin bytes.Buffer
	for _, t := range artifact.KnownTypes {
		doc, ok := input.Upstream[t]
		if !ok {
			continue
		}
		encoded, err := artifact.Encode(doc)
		if err != nil {
			return nil, err
		}
		stdin.Write(encoded)
		stdin.WriteString("\n")
	}
	if input.Guidance != "" {
		stdin.WriteString(input.Guidance + "\n")
	}
	cmd.Stdin = &stdin

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeArtifactParse,
			fmt.Sprintf("generator command failed for stage %s: %s", input.Stage, stderr.String()), err).
			WithSuggestion("check the configured generator command")
	}

	doc, err := artifact.Decode(stdout.Bytes(), "generator output")
	if err != nil {
		return nil, err
	}
	if doc.Type != input.Stage {
		return nil, errors.New(errors.ErrCodeArtifactParse,
			fmt.Sprintf("generator produced a %s document, wanted %s", doc.Type, input.Stage))
	}
	doc.IdeaID = input.IdeaID
	return doc, nil
}

// Static returns every document from a fixed map, for tests and dry
// runs.
type Static struct {
	Docs map[artifact.Type]*artifact.Document
}

// Generate implements Generator.
func (s *Static) Generate(ctx context.Context, input StageInput) (*artifact.Document, error) {
	doc, ok := s.Docs[input.Stage]
	if !ok {
		return nil, errors.New(errors.ErrCodeArtifactNotFound,
			fmt.Sprintf("no static document for stage %s", input.Stage))
	}
	doc.IdeaID = input.IdeaID
	return doc, nil
}
