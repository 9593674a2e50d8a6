package policy

import (
	"time"
)

// BuiltinPolicies returns the guardrail policies that ship with owl. They
// cover the mistakes that bite hardest in a dotfiles tree: links landing in
// relative paths, services with made-up scopes, and plans that quietly
// remove half the host.
func BuiltinPolicies() []Policy {
	return []Policy{
		linkDestinationsPolicy(),
		serviceScopesPolicy(),
		packageNamingPolicy(),
		scriptHygienePolicy(),
		planSafetyPolicy(),
	}
}

// linkDestinationsPolicy rejects config mappings that do not land in an
// absolute or home-relative destination.
func linkDestinationsPolicy() Policy {
	return Policy{
		Name:        "link-destinations",
		Description: "Config mapping destinations must be absolute paths or start with ~/",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"links", "paths"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package owl.policies.links

import rego.v1

# Destinations must be absolute or home-relative. A bare relative path
# would be linked wherever the tool happens to run from.
deny contains violation if {
	input.entry
	some mapping in input.entry.configs
	not startswith(mapping.destination, "/")
	not startswith(mapping.destination, "~/")
	violation := {
		"message": sprintf("Mapping destination '%s' must be an absolute path or start with ~/", [mapping.destination]),
		"severity": "error",
		"package": input.entry["package"],
	}
}

deny contains violation if {
	input.entry
	some mapping in input.entry.configs
	trim_space(mapping.source) == ""
	violation := {
		"message": sprintf("Package %s declares a mapping with an empty source", [input.entry["package"]]),
		"severity": "error",
		"package": input.entry["package"],
	}
}`,
	}
}

// serviceScopesPolicy rejects services declared with an unknown scope.
func serviceScopesPolicy() Policy {
	return Policy{
		Name:        "service-scopes",
		Description: "Service scope must be system or user when set",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"services"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package owl.policies.services

import rego.v1

deny contains violation if {
	input.entry
	some svc in input.entry.services
	scope := svc.props.scope
	not scope in ["system", "user"]
	violation := {
		"message": sprintf("Service %s has invalid scope '%s' (must be system or user)", [svc.name, scope]),
		"severity": "error",
		"package": input.entry["package"],
	}
}

deny contains violation if {
	input.entry
	some svc in input.entry.services
	trim_space(svc.name) == ""
	violation := {
		"message": sprintf("Package %s declares a service without a name", [input.entry["package"]]),
		"severity": "error",
		"package": input.entry["package"],
	}
}`,
	}
}

// packageNamingPolicy enforces package naming conventions and flags entries
// that declare nothing to manage.
func packageNamingPolicy() Policy {
	return Policy{
		Name:        "package-naming",
		Description: "Package names must be valid package manager names (lowercase, digits, +._-)",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"naming", "conventions"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package owl.policies.naming

import rego.v1

deny contains violation if {
	input.entry
	name := input.entry["package"]
	not regex.match("^[a-z0-9][a-z0-9+._-]*$", name)
	violation := {
		"message": sprintf("Package name '%s' must be lowercase and contain only letters, digits, and +._-", [name]),
		"severity": "error",
		"package": name,
	}
}

# An entry that declares nothing still installs the package, which is
# usually intentional, but call it out.
deny contains violation if {
	input.entry
	count(object.get(input.entry, "configs", [])) == 0
	count(object.get(input.entry, "scripts", [])) == 0
	count(object.get(input.entry, "services", [])) == 0
	count(object.get(input.entry, "envs", [])) == 0
	violation := {
		"message": sprintf("Package %s declares no configs, scripts, services, or envs", [input.entry["package"]]),
		"severity": "info",
		"package": input.entry["package"],
	}
}`,
	}
}

// scriptHygienePolicy checks setup scripts for common footguns.
func scriptHygienePolicy() Policy {
	return Policy{
		Name:        "script-hygiene",
		Description: "Setup scripts must be non-empty; sudo usage is flagged",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"scripts", "safety"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package owl.policies.scripts

import rego.v1

deny contains violation if {
	input.entry
	some script in input.entry.scripts
	trim_space(script) == ""
	violation := {
		"message": sprintf("Package %s declares an empty setup script", [input.entry["package"]]),
		"severity": "error",
		"package": input.entry["package"],
	}
}

# Setup scripts run as the invoking user. Scripts that reach for sudo
# usually belong in the package install step instead.
deny contains violation if {
	input.entry
	some script in input.entry.scripts
	contains(script, "sudo ")
	violation := {
		"message": sprintf("Package %s setup script uses sudo: %s", [input.entry["package"], script]),
		"severity": "warning",
		"package": input.entry["package"],
	}
}`,
	}
}

// planSafetyPolicy reviews execution plans for risky shapes.
func planSafetyPolicy() Policy {
	return Policy{
		Name:        "plan-safety",
		Description: "Flags bulk removals and scripts that pipe downloads into a shell",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"plans", "safety"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package owl.policies.plans

import rego.v1

deny contains violation if {
	input.plan
	remove_count := count([u |
		some u in input.plan.units
		u.operation == "remove"
	])
	remove_count > 3
	violation := {
		"message": sprintf("Plan removes %d packages - please review carefully", [remove_count]),
		"severity": "warning",
	}
}

deny contains violation if {
	input.plan
	some unit in input.plan.units
	unit.operation == "run"
	regex.match("curl.+\\|\\s*(sh|bash)", unit.detail)
	violation := {
		"message": sprintf("Plan unit %s pipes a download into a shell", [unit.id]),
		"severity": "warning",
		"resource": unit.resource_id,
	}
}`,
	}
}
