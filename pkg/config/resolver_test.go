package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// writeTree lays out an owl root in a temp directory.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("Failed to create directory for %s: %v", rel, err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", rel, err)
		}
	}
	return root
}

func resolveTree(t *testing.T, files map[string]string, host string) *ResolvedConfig {
	t.Helper()
	root := writeTree(t, files)
	cfg, err := NewLoader(root, zerolog.Nop()).Resolve(context.Background(), host)
	if err != nil {
		t.Fatalf("Expected successful resolve, got: %v", err)
	}
	return cfg
}

func resolveTreeErr(t *testing.T, files map[string]string, host string) *Error {
	t.Helper()
	root := writeTree(t, files)
	_, err := NewLoader(root, zerolog.Nop()).Resolve(context.Background(), host)
	if err == nil {
		t.Fatalf("Expected resolve error, got none")
	}
	cerr, ok := AsError(err)
	if !ok {
		t.Fatalf("Expected *config.Error, got %T: %v", err, err)
	}
	return cerr
}

func TestResolver_RepeatedDirectivesAccumulate(t *testing.T) {
	cfg := resolveTree(t, map[string]string{
		"main.owl": strings.Join([]string{
			"@package vim",
			":config vimrc -> ~/.vimrc",
			":script make deps",
			"@package git",
			"@package vim",
			":config gvimrc -> ~/.gvimrc",
			":script make install",
		}, "\n"),
	}, "h")

	if len(cfg.Entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(cfg.Entries))
	}

	vim := cfg.Entry("vim")
	if vim == nil {
		t.Fatal("Expected entry for vim")
	}
	if len(vim.ConfigMappings) != 2 {
		t.Errorf("Expected 2 accumulated mappings, got %d", len(vim.ConfigMappings))
	}
	if len(vim.SetupScripts) != 2 {
		t.Errorf("Expected 2 accumulated scripts, got %d", len(vim.SetupScripts))
	}
	if vim.SetupScripts[0] != "make deps" || vim.SetupScripts[1] != "make install" {
		t.Errorf("Expected scripts in declaration order, got %v", vim.SetupScripts)
	}
}

func TestResolver_DotfileSourceExpansion(t *testing.T) {
	files := map[string]string{
		"main.owl": "@package p\n:config nvim -> ~/.config/nvim\n:config /etc/motd -> ~/motd",
	}
	root := writeTree(t, files)
	cfg, err := NewLoader(root, zerolog.Nop()).Resolve(context.Background(), "h")
	if err != nil {
		t.Fatalf("Expected successful resolve, got: %v", err)
	}

	mappings := cfg.Entry("p").ConfigMappings
	want := filepath.Join(root, "dotfiles", "nvim")
	if mappings[0].Source != want {
		t.Errorf("Expected relative source expanded to %q, got %q", want, mappings[0].Source)
	}
	if mappings[1].Source != "/etc/motd" {
		t.Errorf("Expected absolute source kept, got %q", mappings[1].Source)
	}
	if mappings[0].Destination != "~/.config/nvim" {
		t.Errorf("Expected destination kept as written, got %q", mappings[0].Destination)
	}
}

func TestResolver_GroupExpansion(t *testing.T) {
	files := map[string]string{
		"main.owl":        "@package local\n@group base",
		"groups/base.owl": "@package ripgrep\n:config rg -> ~/.config/rg",
	}
	root := writeTree(t, files)
	cfg, err := NewLoader(root, zerolog.Nop()).Resolve(context.Background(), "h")
	if err != nil {
		t.Fatalf("Expected successful resolve, got: %v", err)
	}

	if len(cfg.Entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(cfg.Entries))
	}

	rg := cfg.Entry("ripgrep")
	if rg == nil {
		t.Fatal("Expected ripgrep entry from group")
	}
	if rg.SourceKind != SourceGroup {
		t.Errorf("Expected source kind group, got %q", rg.SourceKind)
	}
	if rg.GroupName != "base" {
		t.Errorf("Expected group name base, got %q", rg.GroupName)
	}
	if want := filepath.Join(root, "groups", "base.owl"); rg.SourceFile != want {
		t.Errorf("Expected source file %q, got %q", want, rg.SourceFile)
	}
	if len(rg.ConfigMappings) != 1 {
		t.Errorf("Expected 1 mapping from group, got %d", len(rg.ConfigMappings))
	}
}

func TestResolver_GroupGlobalsAppendAtInclusionPoint(t *testing.T) {
	cfg := resolveTree(t, map[string]string{
		"main.owl":        "@env FIRST = 1\n@group base\n@env LAST = 3",
		"groups/base.owl": "@env FROM_GROUP = 2\n@script group-setup.sh",
	}, "h")

	keys := make([]string, 0, len(cfg.GlobalEnvs))
	for _, env := range cfg.GlobalEnvs {
		keys = append(keys, env.Key)
	}
	if strings.Join(keys, ",") != "FIRST,FROM_GROUP,LAST" {
		t.Errorf("Expected envs in inclusion order, got %v", keys)
	}

	if len(cfg.GlobalScripts) != 1 || cfg.GlobalScripts[0].Script != "group-setup.sh" {
		t.Errorf("Expected group script collected, got %v", cfg.GlobalScripts)
	}
}

func TestResolver_NestedGroups(t *testing.T) {
	cfg := resolveTree(t, map[string]string{
		"main.owl":         "@group outer",
		"groups/outer.owl": "@package a\n@group inner",
		"groups/inner.owl": "@package b",
	}, "h")

	if len(cfg.Entries) != 2 {
		t.Fatalf("Expected 2 entries through nested groups, got %d", len(cfg.Entries))
	}
	if cfg.Entry("b").GroupName != "inner" {
		t.Errorf("Expected b from group inner, got %q", cfg.Entry("b").GroupName)
	}
}

func TestResolver_DiamondIncludeIsNotACycle(t *testing.T) {
	// Two groups independently include a common third. Only true
	// back-edges are cycles.
	cfg := resolveTree(t, map[string]string{
		"main.owl":          "@group g1\n@group g2",
		"groups/g1.owl":     "@group common\n@package p1",
		"groups/g2.owl":     "@group common\n@package p2",
		"groups/common.owl": "@package shared\n:config s -> ~/s",
	}, "h")

	if len(cfg.Entries) != 3 {
		t.Fatalf("Expected 3 entries (shared once), got %d: %v", len(cfg.Entries), cfg.PackageNames())
	}
	if len(cfg.Entry("shared").ConfigMappings) != 1 {
		t.Errorf("Expected shared entry with 1 mapping, got %d", len(cfg.Entry("shared").ConfigMappings))
	}
}

func TestResolver_GroupCycle(t *testing.T) {
	cerr := resolveTreeErr(t, map[string]string{
		"main.owl":     "@group a",
		"groups/a.owl": "@group b",
		"groups/b.owl": "@group a",
	}, "h")

	if cerr.Kind != ErrCycle {
		t.Fatalf("Expected cycle error, got %q: %v", cerr.Kind, cerr)
	}
	if !strings.Contains(cerr.Message, "cycle") {
		t.Errorf("Expected cycle message, got %q", cerr.Message)
	}
	if !strings.Contains(cerr.Message, `"a"`) && !strings.Contains(cerr.Message, `"b"`) {
		t.Errorf("Expected cycle error to name an offending group, got %q", cerr.Message)
	}
}

func TestResolver_SelfIncludeIsACycle(t *testing.T) {
	cerr := resolveTreeErr(t, map[string]string{
		"main.owl":        "@group self",
		"groups/self.owl": "@group self",
	}, "h")

	if cerr.Kind != ErrCycle {
		t.Fatalf("Expected cycle error, got %q", cerr.Kind)
	}
	if !strings.Contains(cerr.Message, `"self"`) {
		t.Errorf("Expected cycle error naming self, got %q", cerr.Message)
	}
}

func TestResolver_GroupFileNotFound(t *testing.T) {
	files := map[string]string{"main.owl": "@group base"}
	root := writeTree(t, files)
	_, err := NewLoader(root, zerolog.Nop()).Resolve(context.Background(), "h")
	if err == nil {
		t.Fatal("Expected resolve error, got none")
	}

	cerr, ok := AsError(err)
	if !ok {
		t.Fatalf("Expected *config.Error, got %T", err)
	}
	if cerr.Kind != ErrReference {
		t.Errorf("Expected reference error, got %q", cerr.Kind)
	}
	if !strings.Contains(cerr.Message, "Group file not found") {
		t.Errorf("Expected missing-group message, got %q", cerr.Message)
	}
	if want := filepath.Join(root, "groups", "base.owl"); !strings.Contains(cerr.Message, want) {
		t.Errorf("Expected message to carry the absolute path %q, got %q", want, cerr.Message)
	}
	if cerr.Line != 1 {
		t.Errorf("Expected error at the include line, got %d", cerr.Line)
	}
}

func TestResolver_GroupDuplicateLastNonEmptyWins(t *testing.T) {
	// main defines mappings for pkg, the group redefines them: the group's
	// non-empty list replaces the earlier one wholesale.
	cfg := resolveTree(t, map[string]string{
		"main.owl":            "@package pkg\n:config one -> ~/one\n@group override",
		"groups/override.owl": "@package pkg\n:config two -> ~/two\n:config three -> ~/three",
	}, "h")

	pkg := cfg.Entry("pkg")
	if len(pkg.ConfigMappings) != 2 {
		t.Fatalf("Expected replacement (2 mappings), got %d", len(pkg.ConfigMappings))
	}
	if !strings.HasSuffix(pkg.ConfigMappings[0].Source, "two") {
		t.Errorf("Expected group mappings to win, got %v", pkg.ConfigMappings)
	}
	if pkg.SourceKind != SourceGroup || pkg.GroupName != "override" {
		t.Errorf("Expected identity to track the later source, got kind=%q group=%q", pkg.SourceKind, pkg.GroupName)
	}
}

func TestResolver_GroupDuplicateEmptyKeepsExisting(t *testing.T) {
	// The group re-declares pkg without content: the existing lists stay.
	cfg := resolveTree(t, map[string]string{
		"main.owl":         "@package pkg\n:config one -> ~/one\n@group touch",
		"groups/touch.owl": "@package pkg",
	}, "h")

	pkg := cfg.Entry("pkg")
	if len(pkg.ConfigMappings) != 1 {
		t.Fatalf("Expected existing mapping kept, got %d", len(pkg.ConfigMappings))
	}
	// Identity still tracks the later-processed node.
	if pkg.SourceKind != SourceGroup {
		t.Errorf("Expected identity overwritten by group, got %q", pkg.SourceKind)
	}
}

func TestMergeEntry_PerFieldPolicy(t *testing.T) {
	existing := &Entry{
		PackageName:    "p",
		ConfigMappings: []ConfigMapping{{Source: "a", Destination: "b"}},
		SetupScripts:   []string{"keep.sh"},
		EnvVars:        []EnvVar{{Key: "OLD", Value: "1"}},
		SourceFile:     "main.owl",
		SourceKind:     SourceMain,
	}
	incoming := &Entry{
		PackageName: "p",
		Services:    []ServiceSpec{{Name: "svc"}},
		EnvVars:     []EnvVar{{Key: "NEW", Value: "2"}},
		SourceFile:  "groups/g.owl",
		SourceKind:  SourceGroup,
		GroupName:   "g",
	}

	mergeEntry(existing, incoming)

	if len(existing.ConfigMappings) != 1 || existing.ConfigMappings[0].Source != "a" {
		t.Errorf("Expected empty incoming mappings to keep existing, got %v", existing.ConfigMappings)
	}
	if len(existing.SetupScripts) != 1 || existing.SetupScripts[0] != "keep.sh" {
		t.Errorf("Expected empty incoming scripts to keep existing, got %v", existing.SetupScripts)
	}
	if len(existing.Services) != 1 || existing.Services[0].Name != "svc" {
		t.Errorf("Expected non-empty incoming services to replace, got %v", existing.Services)
	}
	if len(existing.EnvVars) != 1 || existing.EnvVars[0].Key != "NEW" {
		t.Errorf("Expected non-empty incoming envs to replace wholesale, got %v", existing.EnvVars)
	}
	if existing.SourceKind != SourceGroup || existing.GroupName != "g" || existing.SourceFile != "groups/g.owl" {
		t.Errorf("Expected identity fields overwritten, got %+v", existing)
	}
}

func TestResolver_ParseErrorInGroupPropagates(t *testing.T) {
	files := map[string]string{
		"main.owl":          "@group broken",
		"groups/broken.owl": ":config orphan -> mapping",
	}
	root := writeTree(t, files)
	_, err := NewLoader(root, zerolog.Nop()).Resolve(context.Background(), "h")
	if err == nil {
		t.Fatal("Expected resolve error, got none")
	}

	cerr, _ := AsError(err)
	if cerr.Kind != ErrContext {
		t.Errorf("Expected context error from group file, got %q", cerr.Kind)
	}
	if want := filepath.Join(root, "groups", "broken.owl"); cerr.File != want {
		t.Errorf("Expected error located in group file %q, got %q", want, cerr.File)
	}
}
