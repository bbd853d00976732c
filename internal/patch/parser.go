package patch

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var fileOrdinalRe = regexp.MustCompile(`^(\d{3})-`)

// ParseFile parses one patch file body into a File. name is the
// file's base name, used to derive the ordinal prefix. Regexes are
// compiled at parse time. An unknown directive, a malformed line, a
// rule without SEARCH or a regex that fails to compile makes ParseFile
// return an error, so the whole file is rejected, not only the rule
// that contains the fault.
func ParseFile(name string, body []byte) (*File, error) {
	m := fileOrdinalRe.FindStringSubmatch(name)
	if m == nil {
		return nil, fmt.Errorf("patch: file %q missing required NNN- ordinal prefix", name)
	}
	ordinal, _ := strconv.Atoi(m[1])

	f := &File{Name: name, Ordinal: ordinal}

	var rules []Rule
	var cur Rule
	curHasContent := false

	flush := func() error {
		if !curHasContent {
			return nil
		}
		if cur.Search == "" {
			return fmt.Errorf("patch: file %q has a rule with no SEARCH directive", name)
		}
		if cur.MatchMode == MatchRegex {
			re, err := regexp.Compile(cur.Search)
			if err != nil {
				return fmt.Errorf("patch: file %q: invalid SEARCH regex: %w", name, err)
			}
			cur.SearchRe = re
		}
		rules = append(rules, cur)
		cur = Rule{}
		curHasContent = false
		return nil
	}

	lines := strings.Split(string(body), "\n")
	for lineNo, rawLine := range lines {
		line := strings.TrimRight(rawLine, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if trimmed == "---" {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}

		directive, value, ok := splitDirective(trimmed)
		if !ok {
			return nil, fmt.Errorf("patch: file %q line %d: malformed directive %q", name, lineNo+1, trimmed)
		}

		switch directive {
		case "EXCLUDE":
			f.Excludes = append(f.Excludes, value)
		case "SKIP_BEFORE", "SKIP_AFTER", "ONLY_BEFORE", "ONLY_AFTER":
			rule, err := parseContextDirective(directive, value)
			if err != nil {
				return nil, fmt.Errorf("patch: file %q line %d: %w", name, lineNo+1, err)
			}
			f.ContextRules = append(f.ContextRules, rule)
		case "CONDITION":
			cond, err := parseCondition(value)
			if err != nil {
				return nil, fmt.Errorf("patch: file %q line %d: %w", name, lineNo+1, err)
			}
			cur.Conditions = append(cur.Conditions, cond)
			curHasContent = true
		case "MATCH_TYPE":
			mode, err := parseMatchMode(value)
			if err != nil {
				return nil, fmt.Errorf("patch: file %q line %d: %w", name, lineNo+1, err)
			}
			cur.MatchMode = mode
			curHasContent = true
		case "SEARCH":
			cur.Search = value
			curHasContent = true
		case "REPLACE":
			cur.Replace = value
			curHasContent = true
		default:
			return nil, fmt.Errorf("patch: file %q line %d: unknown directive %q", name, lineNo+1, directive)
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}

	f.Rules = rules
	return f, nil
}

func splitDirective(line string) (directive, value string, ok bool) {
	idx := strings.Index(line, ":")
	if idx < 0 {
		return "", "", false
	}
	return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:]), true
}

func parseCondition(value string) (Condition, error) {
	fields := strings.SplitN(value, " ", 2)
	kind := strings.ToUpper(strings.TrimSpace(fields[0]))
	var rest string
	if len(fields) > 1 {
		rest = fields[1]
	}
	switch kind {
	case "ALWAYS":
		return Condition{Type: ConditionAlways}, nil
	case "QUERY_CONTAINS":
		return Condition{Type: ConditionQueryContains, Value: rest}, nil
	case "QUERY_CONTAINS_ICASE":
		return Condition{Type: ConditionQueryContainsICase, Value: strings.ToLower(rest)}, nil
	case "RESPONSE_CONTAINS":
		return Condition{Type: ConditionResponseContains, Value: rest}, nil
	case "RESPONSE_CONTAINS_ICASE":
		return Condition{Type: ConditionResponseContainsICase, Value: strings.ToLower(rest)}, nil
	case "QUERY_MATCHES":
		re, err := regexp.Compile(rest)
		if err != nil {
			return Condition{}, fmt.Errorf("invalid QUERY_MATCHES regex: %w", err)
		}
		return Condition{Type: ConditionQueryMatches, Value: rest, Regex: re}, nil
	case "RESPONSE_MATCHES":
		re, err := regexp.Compile(rest)
		if err != nil {
			return Condition{}, fmt.Errorf("invalid RESPONSE_MATCHES regex: %w", err)
		}
		return Condition{Type: ConditionResponseMatches, Value: rest, Regex: re}, nil
	default:
		return Condition{}, fmt.Errorf("unknown condition type %q", kind)
	}
}

func parseMatchMode(value string) (MatchMode, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "EXACT":
		return MatchExact, nil
	case "ICASE":
		return MatchICase, nil
	case "REGEX":
		return MatchRegex, nil
	default:
		return 0, fmt.Errorf("unknown MATCH_TYPE %q", value)
	}
}

// parseContextDirective parses "pattern:N" into a ContextRule; the
// directive name itself determines direction and action.
func parseContextDirective(directive, value string) (ContextRule, error) {
	idx := strings.LastIndex(value, ":")
	if idx < 0 {
		return ContextRule{}, fmt.Errorf("%s requires \"pattern:N\", got %q", directive, value)
	}
	pattern := value[:idx]
	n, err := strconv.Atoi(strings.TrimSpace(value[idx+1:]))
	if err != nil {
		return ContextRule{}, fmt.Errorf("%s: invalid line count: %w", directive, err)
	}

	rule := ContextRule{Pattern: pattern, Lines: n}
	switch directive {
	case "SKIP_BEFORE":
		rule.Direction, rule.Action = ContextBefore, ContextSkip
	case "SKIP_AFTER":
		rule.Direction, rule.Action = ContextAfter, ContextSkip
	case "ONLY_BEFORE":
		rule.Direction, rule.Action = ContextBefore, ContextOnly
	case "ONLY_AFTER":
		rule.Direction, rule.Action = ContextAfter, ContextOnly
	}
	return rule, nil
}
