package handlers

import (
	"fmt"

	"github.com/widyaops/confdeploy/internal/models"
	"github.com/widyaops/confdeploy/internal/pipeline"
	"github.com/widyaops/confdeploy/internal/validation"
)

// buildArtifact validates the posted file map and converts it into a
// pipeline artifact. Every path must be a clean relative path.
func buildArtifact(req *models.DeployRequest) (pipeline.Artifact, error) {
	if len(req.Files) == 0 {
		return pipeline.Artifact{}, fmt.Errorf("artifact has no files")
	}

	artifact := pipeline.Artifact{Files: make(map[string][]byte, len(req.Files))}
	for name, content := range req.Files {
		if err := validation.ValidateArtifactPath(name); err != nil {
			return pipeline.Artifact{}, fmt.Errorf("invalid file path %q: %w", name, err)
		}
		artifact.Files[name] = []byte(content)
	}
	return artifact, nil
}
