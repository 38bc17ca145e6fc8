// Package gha provides the small GitHub Actions surface the CLI needs:
// environment detection, grouped log output, step outputs and ref lookup.
package gha

import (
	"fmt"
	"os"
	"strings"
)

// OnGHA reports whether the process runs inside a GitHub Actions job.
func OnGHA() bool {
	return os.Getenv("GITHUB_ACTION") != "" || os.Getenv("GITHUB_ACTIONS") == "true"
}

// Group prints content inside a collapsible log group. Off GHA it prints
// the content as-is.
func Group(title, content string) {
	if !OnGHA() {
		fmt.Println(content)
		return
	}
	fmt.Printf("::group::%s\n%s\n::endgroup::\n", title, content)
}

// WriteOutput appends a step output to $GITHUB_OUTPUT. Off GHA it is a no-op.
func WriteOutput(key, value string) error {
	path := strings.TrimSpace(os.Getenv("GITHUB_OUTPUT"))
	if path == "" {
		return nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("output key is required")
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, "%s=%s\n", key, value); err != nil {
		return err
	}
	return nil
}

// CurrentRef returns the ref the job runs for. On pull requests
// GITHUB_HEAD_REF holds the source branch; otherwise GITHUB_REF applies.
func CurrentRef() string {
	if ref := strings.TrimSpace(os.Getenv("GITHUB_HEAD_REF")); ref != "" {
		return ref
	}
	return strings.TrimSpace(os.Getenv("GITHUB_REF"))
}

// BaseRef returns the pull request target branch, empty outside PRs.
func BaseRef() string {
	return strings.TrimSpace(os.Getenv("GITHUB_BASE_REF"))
}

// DefaultRef returns the repository default branch. GitHub does not expose
// it as a plain env var, so STASH_DEFAULT_BRANCH overrides the fallback.
func DefaultRef() string {
	if ref := strings.TrimSpace(os.Getenv("STASH_DEFAULT_BRANCH")); ref != "" {
		return ref
	}
	return "main"
}
