package generator

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

var versionRegex = regexp.MustCompile(`v?(\d+\.\d+\.\d+)`)

// DetectVersion runs "<command> --version" and returns the x.y.z it reports.
func DetectVersion(ctx context.Context, command string) (string, error) {
	path, err := exec.LookPath(command)
	if err != nil {
		return "", err
	}
	// #nosec G204 -- path comes from exec.LookPath on the configured generator
	out, err := exec.CommandContext(ctx, path, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("%s --version: %w", command, err)
	}
	v := parseVersion(string(out))
	if v == "" {
		return "", fmt.Errorf("no version found in %q", strings.TrimSpace(string(out)))
	}
	return v, nil
}

// parseVersion extracts the first semantic version from generator output, e.g.
// "jekyll 4.3.2" -> "4.3.2". Returns empty string when none is present.
func parseVersion(output string) string {
	if m := versionRegex.FindStringSubmatch(output); len(m) >= 2 {
		return m[1]
	}
	return ""
}
