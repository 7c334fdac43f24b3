// Package builder executes build and move jobs against a local container
// engine. It produces the raw result documents that the ingest layer
// normalizes.
package builder

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Docker runs jobs through the docker (or compatible) CLI.
type Docker struct {
	Bin             string // container engine binary, default "docker"
	LintBin         string // optional dockerfile linter, e.g. hadolint
	ResultsRegistry string // registry built images are pushed to
}

func (d *Docker) bin() string {
	if d.Bin == "" {
		return "docker"
	}
	return d.Bin
}

// Build clones the source repository, builds the image, and reports what was
// built. The returned document is populated as far as the build got, so a
// failed build still carries its log.
func (d *Docker) Build(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	var logLines []string
	doc := func() map[string]interface{} {
		return map[string]interface{}{"build_log": logLines}
	}

	gitURL := str(params, "git_url")
	if gitURL == "" {
		return doc(), fmt.Errorf("builder: git_url is required")
	}
	localTag := str(params, "local_tag")
	if localTag == "" {
		return doc(), fmt.Errorf("builder: local_tag is required")
	}

	dir, err := os.MkdirTemp("", "slipway-build-")
	if err != nil {
		return doc(), fmt.Errorf("builder: workdir: %w", err)
	}
	defer os.RemoveAll(dir)

	if _, err := d.run(ctx, &logLines, "git", "clone", gitURL, dir); err != nil {
		return doc(), err
	}
	if commit := str(params, "git_commit"); commit != "" {
		if _, err := d.run(ctx, &logLines, "git", "-C", dir, "checkout", commit); err != nil {
			return doc(), err
		}
	}

	buildDir := dir
	if p := str(params, "git_path"); p != "" {
		buildDir = filepath.Join(dir, p)
	}
	dfPath := filepath.Join(buildDir, "Dockerfile")
	if f := str(params, "git_dockerfile_path"); f != "" {
		dfPath = filepath.Join(buildDir, f)
	}
	dockerfile, err := os.ReadFile(dfPath)
	if err != nil {
		return doc(), fmt.Errorf("builder: read dockerfile: %w", err)
	}

	// lint findings go into the build log; they never fail the build
	if d.LintBin != "" {
		d.run(ctx, &logLines, d.LintBin, dfPath)
	}

	if _, err := d.run(ctx, &logLines, d.bin(), "build", "-t", localTag, "-f", dfPath, buildDir); err != nil {
		result := doc()
		result["dockerfile"] = string(dockerfile)
		return result, err
	}

	result := doc()
	result["dockerfile"] = string(dockerfile)

	built, err := d.inspect(ctx, localTag)
	if err != nil {
		return result, err
	}
	result["built_img_info"] = built
	if pkgs := d.packages(ctx, localTag); pkgs != nil {
		result["built_img_plugins_output"] = map[string]interface{}{"all_packages": pkgs}
	}

	if base := BaseImage(string(dockerfile)); base != "" && base != "scratch" {
		// the base may only exist remotely; pull before inspecting
		d.run(ctx, &logLines, d.bin(), "pull", base)
		if info, err := d.inspect(ctx, base); err == nil {
			result["base_img_info"] = info
			if pkgs := d.packages(ctx, base); pkgs != nil {
				result["base_plugins_output"] = map[string]interface{}{"all_packages": pkgs}
			}
		} else {
			logLines = append(logLines, err.Error())
		}
	}

	if d.ResultsRegistry != "" {
		ref := d.ResultsRegistry + "/" + localTag
		if _, err := d.run(ctx, &logLines, d.bin(), "tag", localTag, ref); err != nil {
			result["build_log"] = logLines
			return result, err
		}
		if _, err := d.run(ctx, &logLines, d.bin(), "push", ref); err != nil {
			result["build_log"] = logLines
			return result, err
		}
	}

	result["build_log"] = logLines
	return result, nil
}

// Move transfers each tag from the source registry to the target registry.
// Tag entries are repository paths relative to the registries, e.g.
// "alice/app:v1".
func (d *Docker) Move(ctx context.Context, params map[string]interface{}) error {
	source := str(params, "source_registry")
	if source == "" {
		return fmt.Errorf("builder: source_registry is required")
	}
	target := str(params, "target_registry")
	if target == "" {
		return fmt.Errorf("builder: target_registry is required")
	}
	tags := strList(params, "tags")
	if len(tags) == 0 {
		return fmt.Errorf("builder: tags are required")
	}

	for _, tag := range tags {
		srcRef := source + "/" + tag
		tgtRef := target + "/" + tag
		if _, err := d.run(ctx, nil, d.bin(), "pull", srcRef); err != nil {
			return err
		}
		if _, err := d.run(ctx, nil, d.bin(), "tag", srcRef, tgtRef); err != nil {
			return err
		}
		if _, err := d.run(ctx, nil, d.bin(), "push", tgtRef); err != nil {
			return err
		}
	}
	return nil
}

// inspect returns the image's Id and RepoTags in the result-document shape.
func (d *Docker) inspect(ctx context.Context, ref string) (map[string]interface{}, error) {
	out, err := d.run(ctx, nil, d.bin(), "image", "inspect", ref)
	if err != nil {
		return nil, err
	}
	var infos []struct {
		Id       string
		RepoTags []string
	}
	if err := json.Unmarshal([]byte(out), &infos); err != nil {
		return nil, fmt.Errorf("builder: inspect %s: %w", ref, err)
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("builder: inspect %s: no image", ref)
	}
	return map[string]interface{}{
		"Id":       strings.TrimPrefix(infos[0].Id, "sha256:"),
		"RepoTags": infos[0].RepoTags,
	}, nil
}

// packages lists installed rpms inside the image. Not every image carries
// rpm, so errors just mean no package report.
func (d *Docker) packages(ctx context.Context, ref string) []string {
	out, err := d.run(ctx, nil, d.bin(), "run", "--rm", ref, "rpm", "-qa")
	if err != nil || out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

func (d *Docker) run(ctx context.Context, logLines *[]string, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	text := strings.TrimSpace(string(out))
	if logLines != nil && text != "" {
		*logLines = append(*logLines, strings.Split(text, "\n")...)
	}
	if err != nil {
		if text == "" {
			text = err.Error()
		}
		return "", fmt.Errorf("builder: %s %s: %s", name, strings.Join(args, " "), text)
	}
	return text, nil
}

// BaseImage returns the base of the final build stage, or "" when the
// dockerfile has no FROM line.
func BaseImage(dockerfile string) string {
	base := ""
	for _, line := range strings.Split(dockerfile, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || !strings.EqualFold(fields[0], "FROM") {
			continue
		}
		base = fields[1]
	}
	return base
}

func str(params map[string]interface{}, key string) string {
	s, _ := params[key].(string)
	return s
}

func strList(params map[string]interface{}, key string) []string {
	items, ok := params[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
