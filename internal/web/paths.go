package web

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/followup/internal/core"
)

// resolvePaths rewrites the paths of req relative to dataDir. Absolute paths
// are accepted when they lie under dataDir. An empty output directory
// becomes dataDir itself so default outputs land there.
func resolvePaths(dataDir string, req *core.RunRequest) error {
	root, err := filepath.Abs(dataDir)
	if err != nil {
		return fmt.Errorf("resolve data directory: %w", err)
	}

	if req.OutputDir == "" {
		req.OutputDir = root
	}

	fields := []struct {
		name string
		ptr  *string
	}{
		{"fleet", &req.FleetPath},
		{"authors", &req.AuthorsPath},
		{"mdlDir", &req.MDLDir},
		{"previousMdlDir", &req.PreviousMDLDir},
		{"reference", &req.ReferencePath},
		{"followUp", &req.FollowUpPath},
		{"oldFollowUp", &req.OldFollowUp},
		{"newFollowUp", &req.NewFollowUp},
		{"outputDir", &req.OutputDir},
		{"output", &req.OutputPath},
	}
	for _, f := range fields {
		if strings.TrimSpace(*f.ptr) == "" {
			continue
		}
		p, err := underRoot(root, *f.ptr)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", errBadRequest, f.name, err)
		}
		*f.ptr = p
	}
	return nil
}

func underRoot(root, p string) (string, error) {
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	p = filepath.Clean(p)

	rel, err := filepath.Rel(root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%q is outside the data directory", p)
	}
	return p, nil
}
