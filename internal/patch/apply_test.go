package patch

import "testing"

func TestApplyEmptyRuleSetIsNoop(t *testing.T) {
	var rs *RuleSet
	in := "some response text\r\nwith two lines\r\n"
	out := rs.Apply("query", in)
	if out != in {
		t.Errorf("Apply with nil rule set changed the response")
	}

	rs = &RuleSet{}
	out = rs.Apply("query", in)
	if out != in {
		t.Errorf("Apply with empty rule set changed the response")
	}
}

func TestApplyWholeStringSubstitution(t *testing.T) {
	f, err := ParseFile("010-rename.txt", []byte(
		"CONDITION: ALWAYS\nMATCH_TYPE: EXACT\nSEARCH: old-value\nREPLACE: new-value\n"))
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	rs := &RuleSet{Files: []File{*f}}
	out := rs.Apply("q", "line with old-value here\n")
	want := "line with new-value here\n"
	if out != want {
		t.Errorf("Apply = %q, want %q", out, want)
	}
}

func TestApplyExcludeExclusivity(t *testing.T) {
	body := []byte(
		"EXCLUDE: DO-NOT-TOUCH\n" +
			"CONDITION: ALWAYS\nMATCH_TYPE: EXACT\nSEARCH: secret\nREPLACE: [redacted]\n",
	)
	f, err := ParseFile("020-redact.txt", body)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	rs := &RuleSet{Files: []File{*f}}

	in := "normal line with secret\nDO-NOT-TOUCH line with secret\n"
	out := rs.Apply("q", in)
	want := "normal line with [redacted]\nDO-NOT-TOUCH line with secret\n"
	if out != want {
		t.Errorf("Apply = %q, want %q", out, want)
	}
}

func TestApplyQueryContainsCondition(t *testing.T) {
	f, err := ParseFile("030-conditional.txt", []byte(
		"CONDITION: QUERY_CONTAINS dn42\nMATCH_TYPE: EXACT\nSEARCH: foo\nREPLACE: bar\n"))
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	rs := &RuleSet{Files: []File{*f}}

	if got := rs.Apply("example.dn42", "foo\n"); got != "bar\n" {
		t.Errorf("with matching query, Apply = %q, want %q", got, "bar\n")
	}
	if got := rs.Apply("example.com", "foo\n"); got != "foo\n" {
		t.Errorf("with non-matching query, Apply = %q, want unchanged", got)
	}
}

func TestApplyCumulativeOrdering(t *testing.T) {
	f1, err := ParseFile("010-first.txt", []byte(
		"CONDITION: ALWAYS\nMATCH_TYPE: EXACT\nSEARCH: a\nREPLACE: b\n"))
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	f2, err := ParseFile("020-second.txt", []byte(
		"CONDITION: ALWAYS\nMATCH_TYPE: EXACT\nSEARCH: b\nREPLACE: c\n"))
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	rs := &RuleSet{Files: []File{*f1, *f2}}
	if got := rs.Apply("q", "a\n"); got != "c\n" {
		t.Errorf("Apply = %q, want %q (rule 2 should see rule 1's output)", got, "c\n")
	}
}

func TestParseFileRejectsMissingOrdinal(t *testing.T) {
	_, err := ParseFile("no-ordinal.txt", []byte("CONDITION: ALWAYS\nSEARCH: a\nREPLACE: b\n"))
	if err == nil {
		t.Fatal("expected error for file without NNN- ordinal prefix")
	}
}

func TestApplyLineStartMatchAnchorsAndStripsANSI(t *testing.T) {
	f, err := ParseFile("040-mask-source.txt", []byte(
		"CONDITION: ALWAYS\nMATCH_TYPE: EXACT\nSEARCH: ^source:\nREPLACE: source:         REDACTED\n"))
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	rs := &RuleSet{Files: []File{*f}}

	in := "aut-num:        AS4242421234\n" +
		"as-name:        EXAMPLE\n" +
		"\x1b[32msource:         DN42\x1b[0m\n"
	want := "aut-num:        AS4242421234\n" +
		"as-name:        EXAMPLE\n" +
		"source:         REDACTED\n"
	if got := rs.Apply("q", in); got != want {
		t.Errorf("Apply = %q, want %q", got, want)
	}

	// A line merely containing "source:" past its start must not match;
	// only a line that starts with it (after ANSI stripping) may.
	notStart := "remark:         see source: below\n"
	if got := rs.Apply("q", notStart); got != notStart {
		t.Errorf("Apply = %q, want unchanged (source: not at line start)", got)
	}
}

func TestApplyLineStartMatchReplacesWholeLine(t *testing.T) {
	f, err := ParseFile("050-replace-whole.txt", []byte(
		"CONDITION: ALWAYS\nMATCH_TYPE: EXACT\nSEARCH: ^remark:\nREPLACE: remark: replaced\n"))
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	rs := &RuleSet{Files: []File{*f}}

	in := "remark: this whole line should be dropped\n"
	want := "remark: replaced\n"
	if got := rs.Apply("q", in); got != want {
		t.Errorf("Apply = %q, want the entire line replaced: %q", got, want)
	}
}

func TestShouldReplaceSourceInBlock(t *testing.T) {
	lines := []string{
		"aut-num:        AS4242421234",
		"as-name:        EXAMPLE",
		"source:         DN42",
	}
	if !shouldReplaceSourceInBlock(lines, 2) {
		t.Error("expected source: under aut-num: to be replaceable")
	}

	lines2 := []string{
		"inetnum:        172.20.0.0/24",
		"source:         DN42",
	}
	if shouldReplaceSourceInBlock(lines2, 1) {
		t.Error("expected source: under inetnum: to NOT be replaceable")
	}
}
