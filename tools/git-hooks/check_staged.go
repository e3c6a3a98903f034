// Pre-commit hook: rejects commits that touch too many engine packages at
// once. Install with:
//
//	ln -s ../../tools/git-hooks/pre-commit .git/hooks/pre-commit
package main

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path"
	"slices"
	"strings"
)

// maxComponents is how many engine packages one commit may touch.
const maxComponents = 2

// component maps a staged path to the package it belongs to. Docs, tests
// data, and tooling do not count.
func component(file string) (string, bool) {
	if !strings.HasSuffix(file, ".go") || strings.HasPrefix(file, "tools/") {
		return "", false
	}
	dir := path.Dir(file)
	switch {
	case dir == ".":
		return "main", true
	case dir == "util":
		return "util", true
	case strings.HasPrefix(dir, "app/compute"):
		// computetest moves with the adapter it fakes.
		return "app/compute", true
	case dir == "app" || strings.HasPrefix(dir, "app/"):
		return dir, true
	default:
		return "", false
	}
}

func main() {
	cmd := exec.Command("git", "diff", "--cached", "--name-only")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		fmt.Printf("Warning: could not check staged files: %v\n", err)
		os.Exit(0)
	}

	seen := make(map[string]bool)
	for _, f := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if c, ok := component(strings.TrimSpace(f)); ok {
			seen[c] = true
		}
	}
	if len(seen) <= maxComponents {
		os.Exit(0)
	}

	components := make([]string, 0, len(seen))
	for c := range seen {
		components = append(components, c)
	}
	slices.Sort(components)

	fmt.Println("This commit touches more than", maxComponents, "packages:")
	for _, c := range components {
		fmt.Printf(" - %s\n", c)
	}
	fmt.Println("Split it up, or commit with --no-verify if it really is one change.")
	os.Exit(1)
}
