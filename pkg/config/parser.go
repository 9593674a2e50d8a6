package config

import (
	"fmt"
	"strings"
)

// Parser turns one file's token stream into a Program. Parsing is
// fail-fast: the first grammar violation aborts with a *Error and no
// partial AST is returned. A Parser is single-use; construct a new one per
// token stream.
type Parser struct {
	tokens []Token
	pos    int
	file   string

	// currentPackage is the active package context. Package-scoped
	// directives (:config, :env, :service, :script) require it; it is set
	// by @package and cleared when a @packages block opens.
	currentPackage string

	// inPackagesBlock is set between @packages and the next non-list
	// directive. Bare names are valid only while it is set.
	inPackagesBlock bool
}

// NewParser returns a parser over one file's token stream.
func NewParser(tokens []Token) *Parser {
	p := &Parser{tokens: tokens}
	if len(tokens) > 0 {
		p.file = tokens[0].File
	}
	return p
}

// Parse tokenizes nothing itself; it consumes the stream handed to
// NewParser and builds the Program.
func (p *Parser) Parse() (*Program, error) {
	prog := &Program{File: p.file}

	for ; p.pos < len(p.tokens); p.pos++ {
		tok := p.tokens[p.pos]

		var (
			nodes []Node
			err   error
		)

		switch tok.Kind {
		case TokenEOF:
			return prog, nil
		case TokenPackagesBlock:
			nodes, err = p.parsePackagesBlock(tok)
		case TokenPackage:
			nodes, err = p.parsePackageDecl(tok)
		case TokenGroup:
			nodes, err = p.parseGroupInclude(tok)
		case TokenGlobalEnv:
			nodes, err = p.parseGlobalEnv(tok)
		case TokenGlobalScript:
			nodes, err = p.parseGlobalScript(tok)
		case TokenConfig:
			nodes, err = p.parseConfigMapping(tok)
		case TokenEnv:
			nodes, err = p.parsePackageEnv(tok)
		case TokenService:
			nodes, err = p.parseService(tok)
		case TokenScript:
			nodes, err = p.parseScript(tok)
		case TokenText:
			nodes, err = p.parseText(tok)
		default:
			err = p.errorf(ErrStructural, tok, "Unhandled token kind %q", tok.Kind)
		}

		if err != nil {
			return nil, err
		}
		prog.Body = append(prog.Body, nodes...)
	}

	return prog, nil
}

// Parse is a convenience wrapper combining NewParser and Parser.Parse.
func Parse(tokens []Token) (*Program, error) {
	return NewParser(tokens).Parse()
}

// ParseFile tokenizes and parses one file's content in a single step.
func ParseFile(file, content string) (*Program, error) {
	return Parse(Tokenize(file, content))
}

func (p *Parser) parsePackagesBlock(tok Token) ([]Node, error) {
	// A @packages block is a context boundary: the block flag goes up and
	// any active package context ends.
	p.inPackagesBlock = true
	p.currentPackage = ""
	return []Node{&PackagesBlockStart{position: p.at(tok)}}, nil
}

func (p *Parser) parsePackageDecl(tok Token) ([]Node, error) {
	p.inPackagesBlock = false
	if tok.Payload == "" {
		return nil, p.errorf(ErrStructural, tok, "Package name required after @package")
	}

	parts := strings.Split(tok.Payload, ",")
	nodes := make([]Node, 0, len(parts))
	for _, part := range parts {
		name := strings.TrimSpace(part)
		if name == "" {
			return nil, p.errorf(ErrStructural, tok, "Empty package name in @package list")
		}
		nodes = append(nodes, &PackageDecl{position: p.at(tok), Name: name})
		// Each name declares a package; the last one processed becomes the
		// new current context.
		p.currentPackage = name
	}
	return nodes, nil
}

func (p *Parser) parseGroupInclude(tok Token) ([]Node, error) {
	p.inPackagesBlock = false
	if tok.Payload == "" {
		return nil, p.errorf(ErrStructural, tok, "Group name required after @group")
	}
	return []Node{&GroupInclude{position: p.at(tok), Name: tok.Payload}}, nil
}

func (p *Parser) parseGlobalEnv(tok Token) ([]Node, error) {
	p.inPackagesBlock = false
	key, value, err := p.splitKeyValue(tok)
	if err != nil {
		return nil, err
	}
	return []Node{&GlobalEnvDecl{position: p.at(tok), Key: key, Value: value}}, nil
}

func (p *Parser) parseGlobalScript(tok Token) ([]Node, error) {
	p.inPackagesBlock = false
	if tok.Payload == "" {
		return nil, p.errorf(ErrStructural, tok, "Script required after @script")
	}
	return []Node{&GlobalScriptDecl{position: p.at(tok), Script: tok.Payload}}, nil
}

func (p *Parser) parseConfigMapping(tok Token) ([]Node, error) {
	p.inPackagesBlock = false
	if p.currentPackage == "" {
		return nil, p.errorf(ErrContext, tok, "Package context required before :config")
	}

	idx := strings.Index(tok.Payload, "->")
	if idx < 0 {
		return nil, p.errorf(ErrStructural, tok, "Expected <source> -> <destination> after :config")
	}

	source := strings.TrimSpace(tok.Payload[:idx])
	dest := strings.TrimSpace(tok.Payload[idx+2:])
	if source == "" || dest == "" {
		return nil, p.errorf(ErrStructural, tok, "Expected <source> -> <destination> after :config")
	}

	return []Node{&PackageConfigMapping{position: p.at(tok), Source: source, Dest: dest}}, nil
}

func (p *Parser) parsePackageEnv(tok Token) ([]Node, error) {
	p.inPackagesBlock = false
	if p.currentPackage == "" {
		return nil, p.errorf(ErrContext, tok, "Package context required before :env")
	}
	key, value, err := p.splitKeyValue(tok)
	if err != nil {
		return nil, err
	}
	return []Node{&PackageEnvDecl{position: p.at(tok), Key: key, Value: value}}, nil
}

func (p *Parser) parseService(tok Token) ([]Node, error) {
	p.inPackagesBlock = false
	if p.currentPackage == "" {
		return nil, p.errorf(ErrContext, tok, "Package context required before :service")
	}

	name := tok.Payload
	var props map[string]any

	if open := strings.Index(tok.Payload, "["); open >= 0 {
		name = strings.TrimSpace(tok.Payload[:open])
		rest := tok.Payload[open+1:]
		closing := strings.Index(rest, "]")
		if closing < 0 {
			return nil, p.errorf(ErrStructural, tok, "Expected closing ] in :service properties")
		}

		var err error
		props, err = p.parseServiceProps(tok, rest[:closing])
		if err != nil {
			return nil, err
		}
	}

	if name == "" {
		return nil, p.errorf(ErrStructural, tok, "Service name required after :service")
	}

	return []Node{&PackageServiceDecl{position: p.at(tok), Name: name, Props: props}}, nil
}

func (p *Parser) parseServiceProps(tok Token, body string) (map[string]any, error) {
	props := make(map[string]any)

	for _, raw := range strings.Split(body, ",") {
		pair := strings.TrimSpace(raw)
		if pair == "" {
			continue
		}

		eq := strings.Index(pair, "=")
		if eq < 0 {
			return nil, p.errorf(ErrStructural, tok, "Expected prop=value in :service properties, got %q", pair)
		}
		key := strings.TrimSpace(pair[:eq])
		if key == "" {
			return nil, p.errorf(ErrStructural, tok, "Expected prop=value in :service properties, got %q", pair)
		}
		props[key] = coerceServiceValue(strings.TrimSpace(pair[eq+1:]))
	}

	return props, nil
}

// coerceServiceValue turns the literals true/false (any case) into
// booleans; every other value stays a string.
func coerceServiceValue(value string) any {
	switch strings.ToLower(value) {
	case "true":
		return true
	case "false":
		return false
	}
	return value
}

func (p *Parser) parseScript(tok Token) ([]Node, error) {
	p.inPackagesBlock = false
	if p.currentPackage == "" {
		return nil, p.errorf(ErrContext, tok, "Package context required before :script")
	}
	if tok.Payload == "" {
		return nil, p.errorf(ErrStructural, tok, "Script required after :script")
	}
	return []Node{&PackageScriptDecl{position: p.at(tok), Script: tok.Payload}}, nil
}

func (p *Parser) parseText(tok Token) ([]Node, error) {
	// A sigil that survived prefix matching is a misspelled or unsupported
	// directive, inside or outside a block: bare package names never start
	// with one.
	if startsWithSigil(tok.Payload) {
		word := tok.Payload
		if i := strings.IndexAny(word, " \t"); i > 0 {
			word = word[:i]
		}
		return nil, p.errorf(ErrUnknownDirective, tok, "Unknown directive %q", word)
	}

	if !p.inPackagesBlock {
		return nil, p.errorf(ErrStructural, tok, "Unrecognized line")
	}

	return []Node{&PackagesBlockItem{position: p.at(tok), Name: tok.Payload}}, nil
}

// splitKeyValue enforces the KEY = VALUE shape shared by @env and :env.
// The first '=' splits; the key must be non-empty; the value may be empty
// and is kept verbatim, quotes included.
func (p *Parser) splitKeyValue(tok Token) (key, value string, err error) {
	eq := strings.Index(tok.Payload, "=")
	if eq < 0 {
		return "", "", p.errorf(ErrStructural, tok, "Expected <KEY> = <VALUE>")
	}

	key = strings.TrimSpace(tok.Payload[:eq])
	value = strings.TrimSpace(tok.Payload[eq+1:])
	if key == "" {
		return "", "", p.errorf(ErrStructural, tok, "Environment variable name required")
	}
	return key, value, nil
}

func startsWithSigil(line string) bool {
	return strings.HasPrefix(line, "@") ||
		strings.HasPrefix(line, ":") ||
		strings.HasPrefix(line, "!")
}

func (p *Parser) at(tok Token) position {
	return position{File: tok.File, Line: tok.Line, Raw: tok.RawLine}
}

func (p *Parser) errorf(kind ErrorKind, tok Token, format string, args ...any) error {
	return newError(kind, tok.File, tok.Line, tok.RawLine, fmt.Sprintf(format, args...))
}
