package codehost

import (
	"strings"
	"testing"
)

func TestCloneDirNeutralizesLeadingDash(t *testing.T) {
	s := &Scraper{CloneRoot: "/tmp/selectortrace"}
	// Repository ids are always non-negative, so "repo-<id>" never starts
	// with a dash in practice; this exercises the neutralization path
	// directly against the name-building logic it guards.
	dir := s.cloneDir(42)
	base := dir[strings.LastIndex(dir, "/")+1:]
	if strings.HasPrefix(base, "-") {
		t.Fatalf("cloneDir produced a dash-prefixed path component: %q", base)
	}
}

func TestSourceExtensionsRecognizesTargetLanguage(t *testing.T) {
	if !sourceExtensions[".sol"] {
		t.Fatal("expected .sol to be classified as a source-file extension")
	}
	if sourceExtensions[".json"] {
		t.Fatal(".json should be classified as an ABI file, not a source file, by scrapeFile's switch")
	}
	if sourceExtensions[".md"] {
		t.Fatal("unrelated extensions should not be classified as source files")
	}
}
