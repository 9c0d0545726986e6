package rules

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	errs "sift/internal/errors"
)

// Rule registry file format:
//
//	[[groups]]
//	name = "naming"
//
//	  [[groups.rules]]
//	  name = "short-variable-name"
//	  category = "Variables"
//	  message = "identifier is too short"
//	  context = ["scan"]
//	  query = "(var_spec name: (identifier) @exp)"
//	  regex = ""
//	  priority = 4
//	  check = "short-name"
//	  scope = ""
//	  paths = ["**.go"]
//
//	    [groups.rules.params]
//	    max = 3
//
// Records are validated here, before any evaluation begins; a malformed rule
// is a configuration error, not a query error.

type registryFile struct {
	Groups []ruleGroup `toml:"groups"`
}

type ruleGroup struct {
	Name  string       `toml:"name"`
	Rules []ruleRecord `toml:"rules"`
}

type ruleRecord struct {
	Name     string                 `toml:"name"`
	Category string                 `toml:"category"`
	Message  string                 `toml:"message"`
	Context  []string               `toml:"context"`
	Query    string                 `toml:"query"`
	RegEx    string                 `toml:"regex"`
	Priority int                    `toml:"priority"`
	Check    string                 `toml:"check"`
	Scope    string                 `toml:"scope"`
	Paths    []string               `toml:"paths"`
	Params   map[string]interface{} `toml:"params"`
}

var (
	scopeMu sync.RWMutex
	scopes  = map[string]PreFilter{}
)

// RegisterScope makes a named pre-filter available to rule records. The
// empty name is the identity scope (whole tree).
func RegisterScope(name string, filter PreFilter) {
	scopeMu.Lock()
	defer scopeMu.Unlock()
	scopes[name] = filter
}

func scopeFor(name string) (PreFilter, bool) {
	if name == "" {
		return nil, true
	}
	scopeMu.RLock()
	defer scopeMu.RUnlock()
	filter, ok := scopes[name]
	return filter, ok
}

// Load reads one registry file and returns the flattened, validated rule
// list in file order.
func Load(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeNotFound, "read rule registry").
			WithContext(errs.CtxPath, path)
	}

	var file registryFile
	if _, err := toml.Decode(string(data), &file); err != nil {
		return nil, errs.Wrap(err, errs.CodeValidationError, "decode rule registry").
			WithContext(errs.CtxPath, path)
	}

	out := make([]Rule, 0)
	for _, group := range file.Groups {
		for _, record := range group.Rules {
			rule, err := buildRule(group.Name, record)
			if err != nil {
				return nil, errs.Wrap(err, errs.CodeValidationError, "invalid rule record").
					WithContext(errs.CtxPath, path).
					WithContext(errs.CtxRule, record.Name)
			}
			out = append(out, rule)
		}
	}
	return out, nil
}

// LoadAll concatenates the rules of several registry files, preserving file
// order and within-file order.
func LoadAll(paths []string) ([]Rule, error) {
	out := make([]Rule, 0)
	for _, path := range paths {
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		out = append(out, loaded...)
	}
	return out, nil
}

func buildRule(groupName string, record ruleRecord) (Rule, error) {
	if strings.TrimSpace(record.Name) == "" {
		return Rule{}, fmt.Errorf("rule name is required")
	}
	if strings.TrimSpace(record.Query) == "" {
		return Rule{}, fmt.Errorf("rule query is required")
	}
	if strings.TrimSpace(record.Check) == "" {
		return Rule{}, fmt.Errorf("rule check is required")
	}

	contexts, err := parseContexts(record.Context)
	if err != nil {
		return Rule{}, err
	}

	if record.RegEx != "" {
		if _, err := regexp.Compile(record.RegEx); err != nil {
			return Rule{}, fmt.Errorf("invalid regex constraint: %w", err)
		}
		if !strings.Contains(record.Query, "@exp") {
			return Rule{}, fmt.Errorf("regex constraint requires an @exp capture in the query")
		}
	}

	check, err := NewCheck(record.Check, Params(record.Params))
	if err != nil {
		return Rule{}, err
	}

	preFilter, ok := scopeFor(record.Scope)
	if !ok {
		return Rule{}, fmt.Errorf("unknown scope %q", record.Scope)
	}

	category := record.Category
	if category == "" {
		category = groupName
	}

	rule := Rule{
		Name:      record.Name,
		Category:  category,
		Message:   record.Message,
		Contexts:  contexts,
		Query:     record.Query,
		RegEx:     record.RegEx,
		Priority:  record.Priority,
		Scope:     record.Scope,
		PreFilter: preFilter,
		Check:     check,
	}
	if measurer, ok := check.(Measurer); ok {
		rule.Measurer = measurer
	}
	if err := rule.SetPathGlobs(record.Paths); err != nil {
		return Rule{}, fmt.Errorf("invalid path pattern: %w", err)
	}
	return rule, nil
}

func parseContexts(values []string) (RunContext, error) {
	var contexts RunContext
	for _, value := range values {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "scan":
			contexts |= RunScan
		case "measure":
			contexts |= RunMeasure
		case "":
			continue
		default:
			return 0, fmt.Errorf("unknown context %q", value)
		}
	}
	return contexts, nil
}
