package patch

import (
	"regexp"
	"strings"
)

var ansiEscapeRe = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripANSI(s string) string {
	return ansiEscapeRe.ReplaceAllString(s, "")
}

// Apply runs every file in ordinal order, every rule in declared
// order within a file, against response, cumulatively — later rules
// see the output of earlier ones. It never panics or aborts; a rule
// whose own evaluation fails is simply skipped, per §4.2's "engine
// errors are never fatal to a request."
func (rs *RuleSet) Apply(query, response string) string {
	if rs == nil {
		return response
	}
	for _, file := range rs.Files {
		for _, rule := range file.Rules {
			if !conditionsMatch(query, response, rule.Conditions) {
				continue
			}
			response = applyRule(response, rule, file.Excludes, file.ContextRules)
		}
	}
	return response
}

// conditionsMatch implements §4.2/§8's OR-across-conditions rule: an
// empty condition list always matches.
func conditionsMatch(query, response string, conditions []Condition) bool {
	if len(conditions) == 0 {
		return true
	}
	for _, c := range conditions {
		switch c.Type {
		case ConditionAlways:
			return true
		case ConditionQueryContains:
			if strings.Contains(query, c.Value) {
				return true
			}
		case ConditionQueryContainsICase:
			if strings.Contains(strings.ToLower(query), c.Value) {
				return true
			}
		case ConditionResponseContains:
			if strings.Contains(response, c.Value) {
				return true
			}
		case ConditionResponseContainsICase:
			if strings.Contains(strings.ToLower(response), c.Value) {
				return true
			}
		case ConditionQueryMatches:
			if c.Regex != nil && c.Regex.MatchString(query) {
				return true
			}
		case ConditionResponseMatches:
			if c.Regex != nil && c.Regex.MatchString(response) {
				return true
			}
		}
	}
	return false
}

// applyRule applies one rule to response. When the file carries no
// excludes and no context rules, and the rule isn't a line-start
// match, it performs one whole-string substitution per §4.2(c);
// otherwise it walks the response line by line so that excludes and
// context rules can veto individual lines.
func applyRule(response string, rule Rule, excludes []string, contextRules []ContextRule) string {
	isLineStart := strings.HasPrefix(rule.Search, "^")
	if len(excludes) == 0 && len(contextRules) == 0 && !isLineStart {
		return wholeStringReplace(response, rule)
	}

	lineEnding := "\n"
	if strings.Contains(response, "\r\n") {
		lineEnding = "\r\n"
	}
	lines := strings.Split(response, "\n")
	for i := range lines {
		lines[i] = strings.TrimSuffix(lines[i], "\r")
	}

	for idx, line := range lines {
		if lineExcluded(line, excludes) {
			continue
		}
		switch checkContextRules(lines, idx, contextRules) {
		case contextResultSkip, contextResultOnlyNotFound:
			continue
		}
		if isLineStart {
			prefix := rule.Search[1:]
			if prefix == "source:" && !shouldReplaceSourceInBlock(lines, idx) {
				continue
			}
			if lineStartsWith(line, prefix) {
				lines[idx] = rule.Replace
			}
			continue
		}
		if lineMatchesSearch(line, rule.Search, rule.MatchMode) {
			lines[idx] = lineSubstitute(line, rule.Search, rule)
		}
	}
	return strings.Join(lines, lineEnding)
}

func wholeStringReplace(response string, rule Rule) string {
	switch rule.MatchMode {
	case MatchRegex:
		if rule.SearchRe == nil {
			return response
		}
		return rule.SearchRe.ReplaceAllString(response, rule.Replace)
	case MatchICase:
		re := regexpCaseInsensitive(rule.Search)
		if re == nil {
			return response
		}
		return re.ReplaceAllString(response, rule.Replace)
	default:
		return strings.ReplaceAll(response, rule.Search, rule.Replace)
	}
}

// lineStartsWith implements the "^"-prefixed line-start SEARCH form:
// ANSI escapes are stripped before matching (§4.2's "ANSI escapes
// stripped for line-start patterns") and the prefix must anchor the
// start of the line once leading whitespace is trimmed, matching
// `strip_ansi_codes(line).trim_start().starts_with(prefix)` in the
// original engine.
func lineStartsWith(line, prefix string) bool {
	return strings.HasPrefix(strings.TrimLeft(stripANSI(line), " \t"), prefix)
}

func lineMatchesSearch(line, search string, mode MatchMode) bool {
	switch mode {
	case MatchRegex:
		re := regexp.MustCompile(search)
		return re.MatchString(line)
	case MatchICase:
		return strings.Contains(strings.ToLower(line), strings.ToLower(search))
	default:
		return strings.Contains(line, search)
	}
}

func lineSubstitute(line, search string, rule Rule) string {
	switch rule.MatchMode {
	case MatchRegex:
		if rule.SearchRe == nil {
			return line
		}
		return rule.SearchRe.ReplaceAllString(line, rule.Replace)
	case MatchICase:
		re := regexpCaseInsensitive(search)
		if re == nil {
			return line
		}
		return re.ReplaceAllString(line, rule.Replace)
	default:
		return strings.ReplaceAll(line, search, rule.Replace)
	}
}

func regexpCaseInsensitive(literal string) *regexp.Regexp {
	re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(literal))
	if err != nil {
		return nil
	}
	return re
}

func lineExcluded(line string, excludes []string) bool {
	stripped := stripANSI(line)
	for _, pattern := range excludes {
		if strings.Contains(stripped, pattern) {
			return true
		}
	}
	return false
}

type contextResult int

const (
	contextResultAllow contextResult = iota
	contextResultSkip
	contextResultOnlyNotFound
)

// checkContextRules mirrors the original engine's precedence: any
// matched SKIP rule wins immediately; an ONLY rule that never matches
// across the whole rule set vetoes the line even if no SKIP fired.
func checkContextRules(lines []string, idx int, rules []ContextRule) contextResult {
	if len(rules) == 0 {
		return contextResultAllow
	}
	hasOnly := false
	onlySatisfied := false

	for _, rule := range rules {
		var start, end int
		if rule.Direction == ContextBefore {
			start = idx - rule.Lines
			if start < 0 {
				start = 0
			}
			end = idx
		} else {
			start = idx + 1
			end = idx + 1 + rule.Lines
			if end > len(lines) {
				end = len(lines)
			}
		}

		found := false
		for i := start; i < end; i++ {
			if strings.Contains(stripANSI(lines[i]), rule.Pattern) {
				found = true
				break
			}
		}

		switch rule.Action {
		case ContextSkip:
			if found {
				return contextResultSkip
			}
		case ContextOnly:
			hasOnly = true
			if found {
				onlySatisfied = true
			}
		}
	}

	if hasOnly && !onlySatisfied {
		return contextResultOnlyNotFound
	}
	return contextResultAllow
}

// shouldReplaceSourceInBlock limits "source:" line-start replacement
// to user-maintained RPSL objects (aut-num/organisation/person/role),
// never to registry-maintained objects (as-block/route/route6/
// inet6num/inetnum), by walking backwards to the nearest object-type
// attribute or block boundary.
func shouldReplaceSourceInBlock(lines []string, idx int) bool {
	start := idx - 50
	if start < 0 {
		start = 0
	}
	for i := idx - 1; i >= start; i-- {
		trimmed := strings.TrimSpace(stripANSI(lines[i]))
		if trimmed == "" || strings.HasPrefix(trimmed, "%") {
			return false
		}
		switch {
		case strings.HasPrefix(trimmed, "aut-num:"),
			strings.HasPrefix(trimmed, "organisation:"),
			strings.HasPrefix(trimmed, "person:"),
			strings.HasPrefix(trimmed, "role:"):
			return true
		case strings.HasPrefix(trimmed, "as-block:"),
			strings.HasPrefix(trimmed, "route:"),
			strings.HasPrefix(trimmed, "route6:"),
			strings.HasPrefix(trimmed, "inet6num:"),
			strings.HasPrefix(trimmed, "inetnum:"):
			return false
		}
	}
	return false
}
