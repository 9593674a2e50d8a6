package config

// Node is a single parsed directive. Every node records the file and
// 1-based line it was parsed from so resolver diagnostics can point back at
// the source.
type Node interface {
	// Pos returns the node's source file and line.
	Pos() (file string, line int)
}

// position is embedded by every node to satisfy Node. Raw keeps the
// original source line for diagnostics raised after parsing (missing group
// files, inclusion cycles).
type position struct {
	File string
	Line int
	Raw  string
}

// Pos returns the source file and line.
func (p position) Pos() (string, int) { return p.File, p.Line }

// Program is the parsed form of one source file, directives in source
// order. Programs are ephemeral: they live only for the duration of one
// Resolve call.
type Program struct {
	// File is the source file the program was parsed from.
	File string

	// Body holds the parsed directives in source order.
	Body []Node
}

// PackagesBlockStart opens a @packages list block. Bare names on the
// following lines become PackagesBlockItem nodes until any non-list
// directive ends the block.
type PackagesBlockStart struct {
	position
}

// PackagesBlockItem is a bare package name inside a @packages block.
type PackagesBlockItem struct {
	position
	Name string
}

// PackageDecl declares a package via @package and makes it the current
// package context.
type PackageDecl struct {
	position
	Name string
}

// GroupInclude inlines the directives of groups/<Name>.owl at this point.
type GroupInclude struct {
	position
	Name string
}

// GlobalEnvDecl is a host-wide @env declaration.
type GlobalEnvDecl struct {
	position
	Key   string
	Value string
}

// GlobalScriptDecl is a host-wide @script declaration.
type GlobalScriptDecl struct {
	position
	Script string
}

// PackageConfigMapping is a :config source -> destination directive for the
// current package.
type PackageConfigMapping struct {
	position
	Source string
	Dest   string
}

// PackageEnvDecl is a package-scoped :env declaration.
type PackageEnvDecl struct {
	position
	Key   string
	Value string
}

// PackageServiceDecl is a :service declaration with optional bracketed
// properties.
type PackageServiceDecl struct {
	position
	Name  string
	Props map[string]any
}

// PackageScriptDecl is a :script declaration. The deprecated !setup form
// parses to the same node.
type PackageScriptDecl struct {
	position
	Script string
}
