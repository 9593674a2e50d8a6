package config

import "strings"

// TokenKind identifies the directive a source line carries.
type TokenKind string

const (
	// TokenPackagesBlock is the @packages block opener.
	TokenPackagesBlock TokenKind = "packages-block"

	// TokenPackage is an @package declaration.
	TokenPackage TokenKind = "package"

	// TokenGlobalEnv is a host-wide @env declaration.
	TokenGlobalEnv TokenKind = "global-env"

	// TokenGroup is an @group include.
	TokenGroup TokenKind = "group"

	// TokenGlobalScript is a host-wide @script declaration.
	TokenGlobalScript TokenKind = "global-script"

	// TokenConfig is a package-scoped :config mapping.
	TokenConfig TokenKind = "config"

	// TokenEnv is a package-scoped :env declaration.
	TokenEnv TokenKind = "env"

	// TokenService is a package-scoped :service declaration.
	TokenService TokenKind = "service"

	// TokenScript is a package-scoped :script declaration. The deprecated
	// !setup prefix emits the same kind.
	TokenScript TokenKind = "script"

	// TokenText is any non-empty line matching no directive prefix. Whether
	// a TEXT line is valid is the parser's concern.
	TokenText TokenKind = "text"

	// TokenEOF terminates every token stream, numbered one past the last
	// source line.
	TokenEOF TokenKind = "eof"
)

// Token is one meaningful source line. Blank lines and lines that become
// empty after comment stripping produce no token.
type Token struct {
	// Kind is the directive kind, TokenText for unrecognized lines, or
	// TokenEOF for the stream terminator.
	Kind TokenKind

	// Payload is the trimmed text after the directive prefix. For TokenText
	// it is the whole trimmed line.
	Payload string

	// RawLine is the original source line before comment stripping.
	RawLine string

	// Line is the 1-based source line number.
	Line int

	// File is the source identifier the token came from.
	File string
}

// directivePrefixes is tried in order against each stripped line. Order
// matters: "@packages" must match before "@package ".
var directivePrefixes = []struct {
	prefix string
	kind   TokenKind
}{
	{"@packages", TokenPackagesBlock},
	{"@package ", TokenPackage},
	{"@env ", TokenGlobalEnv},
	{"@group ", TokenGroup},
	{"@script ", TokenGlobalScript},
	{":config ", TokenConfig},
	{":env ", TokenEnv},
	{":service ", TokenService},
	{":script ", TokenScript},
	{"!setup ", TokenScript},
}

// Tokenize turns raw source text into a line-oriented token stream ending
// in a TokenEOF. Tokenizing never fails: lines matching no directive prefix
// become TokenText and are judged by the parser.
func Tokenize(file, content string) []Token {
	lines := strings.Split(content, "\n")
	tokens := make([]Token, 0, len(lines)+1)

	for i, raw := range lines {
		line := strings.TrimSpace(stripComment(raw))
		if line == "" {
			continue
		}

		tok := Token{
			Kind:    TokenText,
			Payload: line,
			RawLine: raw,
			Line:    i + 1,
			File:    file,
		}
		for _, d := range directivePrefixes {
			if strings.HasPrefix(line, d.prefix) {
				tok.Kind = d.kind
				tok.Payload = strings.TrimSpace(line[len(d.prefix):])
				break
			}
		}
		tokens = append(tokens, tok)
	}

	return append(tokens, Token{Kind: TokenEOF, Line: len(lines) + 1, File: file})
}

// stripComment cuts an inline comment off a line: a '#' outside single or
// double quotes starts a comment running to end of line. Backslash escapes
// are honored inside quotes. Unterminated quoting is tolerated, never an
// error.
func stripComment(line string) string {
	var quote rune
	escaped := false

	for i, r := range line {
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == quote:
				quote = 0
			}
			continue
		}

		switch r {
		case '\'', '"':
			quote = r
		case '#':
			return line[:i]
		}
	}

	return line
}
