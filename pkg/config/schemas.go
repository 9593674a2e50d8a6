package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationIssue is one failed check against the resolved model.
type ValidationIssue struct {
	// Path locates the failing value, e.g. "entries.neovim.configs".
	Path string `json:"path"`

	// Message describes the failed check.
	Message string `json:"message"`
}

func (i ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", i.Path, i.Message)
}

// Validator checks a resolved configuration for structural soundness beyond
// what the grammar already enforces. It is safe for concurrent use.
type Validator struct {
	validate *validator.Validate
}

// NewValidator returns a validator with the entry checks registered.
func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

// ValidateResolved runs every check against cfg and returns all issues
// found. An empty result means the configuration is sound.
func (v *Validator) ValidateResolved(cfg *ResolvedConfig) []ValidationIssue {
	var issues []ValidationIssue

	seen := make(map[string]bool, len(cfg.Entries))
	for _, entry := range cfg.Entries {
		path := "entries." + entry.PackageName

		if seen[entry.PackageName] {
			issues = append(issues, ValidationIssue{
				Path:    path,
				Message: "duplicate package entry",
			})
		}
		seen[entry.PackageName] = true

		if err := v.validate.Struct(entry); err != nil {
			issues = append(issues, structIssues(path, err)...)
		}

		for i, svc := range entry.Services {
			if strings.TrimSpace(svc.Name) == "" {
				issues = append(issues, ValidationIssue{
					Path:    fmt.Sprintf("%s.services[%d]", path, i),
					Message: "service name must not be empty",
				})
			}
		}
	}

	for i, env := range cfg.GlobalEnvs {
		if strings.TrimSpace(env.Key) == "" {
			issues = append(issues, ValidationIssue{
				Path:    fmt.Sprintf("global_envs[%d]", i),
				Message: "environment variable key must not be empty",
			})
		}
	}

	for i, script := range cfg.GlobalScripts {
		if strings.TrimSpace(script.Script) == "" {
			issues = append(issues, ValidationIssue{
				Path:    fmt.Sprintf("global_scripts[%d]", i),
				Message: "script must not be empty",
			})
		}
	}

	return issues
}

// Validate is the error-returning form of ValidateResolved: nil when the
// configuration is sound, otherwise an error listing every issue.
func (v *Validator) Validate(cfg *ResolvedConfig) error {
	issues := v.ValidateResolved(cfg)
	if len(issues) == 0 {
		return nil
	}

	lines := make([]string, 0, len(issues))
	for _, issue := range issues {
		lines = append(lines, issue.String())
	}
	return fmt.Errorf("resolved configuration failed validation:\n  %s", strings.Join(lines, "\n  "))
}

// structIssues converts validator field errors into issues rooted at path.
func structIssues(path string, err error) []ValidationIssue {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []ValidationIssue{{Path: path, Message: err.Error()}}
	}

	issues := make([]ValidationIssue, 0, len(verrs))
	for _, fe := range verrs {
		issues = append(issues, ValidationIssue{
			Path:    path + "." + strings.ToLower(fe.Field()),
			Message: fmt.Sprintf("failed %q validation", fe.Tag()),
		})
	}
	return issues
}
