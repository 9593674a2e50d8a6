// Package config implements the owl configuration language: tokenizer,
// directive parser, group resolver, and the loader that merges a global
// configuration with a per-host override.
//
// # Overview
//
// Every other subsystem (package planning, dotfile synchronization,
// service management, environment handling, setup scripts) consumes the
// ResolvedConfig produced here. The engine is a deterministic function
// from a set of source texts plus a host identifier to a validated entry
// set: it performs no network I/O, executes no subprocesses, and persists
// no state. The first diagnostic aborts a Resolve call completely; there
// are no partial results.
//
// # Components
//
// Tokenize: turns raw source text into a line-oriented token stream,
// stripping quote-aware comments. Tokenizing never fails.
//
// Parser: consumes one file's tokens, enforces the directive grammar and
// package-context rules, and builds a Program AST. Fails fast on the first
// shape violation.
//
// resolver: walks a Program, recursively expands @group includes with
// cycle detection, and accumulates per-package entries under the
// last-non-empty-wins merge policy.
//
// Loader: orchestrates main.owl plus hosts/<name>.owl resolution and merges
// host over global.
//
// Validator: post-resolution structural checks over the merged model.
//
// Watcher: fsnotify-driven re-resolution for interactive workflows.
//
// # The .owl format
//
// One directive per physical line; leading and trailing whitespace is
// ignored; '#' starts a same-line comment outside quotes:
//
//	@packages
//	ripgrep                             # bare names, one per line
//	@package <name>[, <name>...]        # switches current package context
//	@group <name>                       # inlines another file's directives
//	@env <KEY> = <VALUE>                # global environment variable
//	@script <script>                    # global setup script
//	:config <source> -> <destination>   # requires current package
//	:env <KEY> = <VALUE>                # requires current package
//	:service <name> [prop=val,...]      # requires current package
//	:script <script>                    # requires current package
//	!setup <script>                     # deprecated alias of :script
//
// # Usage Example
//
//	loader := config.NewLoader(root, logger)
//	cfg, err := loader.Resolve(ctx, "workstation")
//	if err != nil {
//	    var cerr *config.Error
//	    if errors.As(err, &cerr) {
//	        fmt.Println(cerr) // "<file>:<line>: <message>" plus source line
//	    }
//	    return err
//	}
//	for _, entry := range cfg.Entries {
//	    fmt.Println(entry.PackageName)
//	}
//
// # Error Handling
//
// Every failure surfaces as a *Error with a kind (structural, context,
// reference, cycle, unknown-directive), the source file, the 1-based line
// (0 for file-level failures), the offending raw line, and a message.
// All errors are fatal within one Resolve call: configuration must be
// proven valid before anything downstream installs, removes, or touches
// the filesystem.
//
// # Thread Safety
//
// A Loader is safe for concurrent Resolve calls: every call builds fresh
// in-progress sets and entry maps. Parser values are single-use.
package config
