package config

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// groupStack tracks the groups currently being expanded. One stack is
// shared by reference across sibling includes, so a group reachable from
// itself is caught as a cycle while two groups independently including a
// common third are not: a group is marked on entry and unmarked again when
// its expansion completes.
type groupStack struct {
	inProgress map[string]bool
}

func newGroupStack() *groupStack {
	return &groupStack{inProgress: make(map[string]bool)}
}

// enter marks name as in progress. It reports false when the name is
// already being expanded, which means a true back-edge.
func (s *groupStack) enter(name string) bool {
	if s.inProgress[name] {
		return false
	}
	s.inProgress[name] = true
	return true
}

func (s *groupStack) leave(name string) {
	delete(s.inProgress, name)
}

// sourceInfo identifies the file a resolver pass is walking.
type sourceInfo struct {
	file  string
	kind  SourceKind
	group string
}

// fileResult accumulates one file's resolution outcome: entries keyed by
// package name plus first-reference order, and the global declarations the
// file (and its group includes) contributed.
type fileResult struct {
	entries       map[string]*Entry
	order         []string
	globalEnvs    []EnvVar
	globalScripts []GlobalScript
}

func newFileResult() *fileResult {
	return &fileResult{entries: make(map[string]*Entry)}
}

// entry returns the Entry for name, creating it with empty lists on first
// reference.
func (r *fileResult) entry(name string, src sourceInfo) *Entry {
	if e, ok := r.entries[name]; ok {
		return e
	}
	e := &Entry{
		PackageName: name,
		SourceFile:  src.file,
		SourceKind:  src.kind,
		GroupName:   src.group,
	}
	r.entries[name] = e
	r.order = append(r.order, name)
	return e
}

// list returns the entries in first-reference order.
func (r *fileResult) list() []*Entry {
	out := make([]*Entry, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name])
	}
	return out
}

// resolver walks one file's AST, expanding group includes recursively and
// accumulating per-package entries. It is synchronous and single-pass:
// every file is fully resolved before the walk continues, because cycle
// detection and deterministic merge order both depend on strict visitation
// order.
type resolver struct {
	root   string
	logger zerolog.Logger
}

// resolveFile reads, tokenizes, parses, and resolves one file.
func (rs *resolver) resolveFile(path string, kind SourceKind, group string, stack *groupStack) (*fileResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, newErrorf(ErrReference, path, 0, "", "Cannot read config file: %v", err)
	}

	prog, err := ParseFile(path, string(content))
	if err != nil {
		return nil, err
	}

	return rs.resolveProgram(prog, sourceInfo{file: path, kind: kind, group: group}, stack)
}

// resolveProgram walks the program in source order. The parser has already
// enforced context rules, so package-scoped nodes can trust the tracked
// current package.
func (rs *resolver) resolveProgram(prog *Program, src sourceInfo, stack *groupStack) (*fileResult, error) {
	res := newFileResult()
	current := ""

	for _, node := range prog.Body {
		switch n := node.(type) {
		case *PackagesBlockStart:
			current = ""

		case *PackagesBlockItem:
			res.entry(n.Name, src)

		case *PackageDecl:
			res.entry(n.Name, src)
			current = n.Name

		case *GroupInclude:
			if err := rs.expandGroup(n, res, stack); err != nil {
				return nil, err
			}

		case *GlobalEnvDecl:
			res.globalEnvs = append(res.globalEnvs, EnvVar{Key: n.Key, Value: n.Value})

		case *GlobalScriptDecl:
			res.globalScripts = append(res.globalScripts, GlobalScript{Script: n.Script, SourceFile: src.file})

		case *PackageConfigMapping:
			e := res.entry(current, src)
			e.ConfigMappings = append(e.ConfigMappings, ConfigMapping{
				Source:      rs.dotfilePath(n.Source),
				Destination: n.Dest,
			})

		case *PackageEnvDecl:
			e := res.entry(current, src)
			e.EnvVars = append(e.EnvVars, EnvVar{Key: n.Key, Value: n.Value})

		case *PackageServiceDecl:
			e := res.entry(current, src)
			e.Services = append(e.Services, ServiceSpec{Name: n.Name, Props: n.Props})

		case *PackageScriptDecl:
			e := res.entry(current, src)
			e.SetupScripts = append(e.SetupScripts, n.Script)
		}
	}

	return res, nil
}

// expandGroup resolves groups/<name>.owl with the same shared stack and
// merges its outcome into res at the point of inclusion.
func (rs *resolver) expandGroup(n *GroupInclude, res *fileResult, stack *groupStack) error {
	path := filepath.Join(rs.root, "groups", n.Name+".owl")

	if !stack.enter(n.Name) {
		return newErrorf(ErrCycle, n.File, n.Line, n.Raw, "Group inclusion cycle detected: %q", n.Name)
	}
	defer stack.leave(n.Name)

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return newErrorf(ErrReference, n.File, n.Line, n.Raw, "Group file not found: %s", path)
		}
		return newErrorf(ErrReference, n.File, n.Line, n.Raw, "Cannot read group file %s: %v", path, err)
	}

	rs.logger.Debug().
		Str("group", n.Name).
		Str("file", path).
		Msg("Expanding group include")

	prog, err := ParseFile(path, string(content))
	if err != nil {
		return err
	}

	sub, err := rs.resolveProgram(prog, sourceInfo{file: path, kind: SourceGroup, group: n.Name}, stack)
	if err != nil {
		return err
	}

	mergeEntries(res, sub)
	res.globalEnvs = append(res.globalEnvs, sub.globalEnvs...)
	res.globalScripts = append(res.globalScripts, sub.globalScripts...)
	return nil
}

// dotfilePath expands a :config source below the root's dotfiles
// directory. Absolute sources are kept as written.
func (rs *resolver) dotfilePath(source string) string {
	if filepath.IsAbs(source) {
		return source
	}
	return filepath.Join(rs.root, "dotfiles", source)
}

// mergeEntries merges the incoming result's entries over dst, keyed by
// package name. New packages keep their incoming order, appended after the
// existing ones. Global envs and scripts are deliberately not touched
// here: they concatenate at the call site, preserving inclusion order.
func mergeEntries(dst, incoming *fileResult) {
	for _, name := range incoming.order {
		in := incoming.entries[name]
		existing, ok := dst.entries[name]
		if !ok {
			dst.entries[name] = in
			dst.order = append(dst.order, name)
			continue
		}
		mergeEntry(existing, in)
	}
}

// mergeEntry applies the last-non-empty-wins policy to a duplicate package
// entry: each list field is replaced wholesale by the incoming value only
// when that value is non-empty, otherwise the existing value is kept. This
// is a replace, not a union: two sources defining different non-empty
// mappings for the same package do not get concatenated. Identity fields
// always track the later source.
func mergeEntry(existing, incoming *Entry) {
	if len(incoming.ConfigMappings) > 0 {
		existing.ConfigMappings = incoming.ConfigMappings
	}
	if len(incoming.SetupScripts) > 0 {
		existing.SetupScripts = incoming.SetupScripts
	}
	if len(incoming.Services) > 0 {
		existing.Services = incoming.Services
	}
	if len(incoming.EnvVars) > 0 {
		existing.EnvVars = incoming.EnvVars
	}

	existing.SourceFile = incoming.SourceFile
	existing.SourceKind = incoming.SourceKind
	existing.GroupName = incoming.GroupName
}
