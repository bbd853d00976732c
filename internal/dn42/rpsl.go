// Package dn42 implements C4: a local mirror of the DN42 registry,
// refreshed on a schedule from either a git clone or an HTTP back-end,
// indexed for ASN/inetnum/inet6num/identifier lookups.
package dn42

import (
	"bufio"
	"bytes"
	"strings"
)

// Attribute is one "name: value" line of an RPSL object, kept in
// declaration order so records render the way they were authored.
type Attribute struct {
	Name  string
	Value string
}

// Record is one parsed RPSL object: its type, primary key, and the
// ordered attribute list backing both lookup and rendering.
type Record struct {
	ObjectType string
	PrimaryKey string
	Attributes []Attribute
}

// Render reproduces the record in RPSL text form.
func (r *Record) Render() string {
	var b strings.Builder
	for _, a := range r.Attributes {
		b.WriteString(a.Name)
		b.WriteString(":")
		pad := 16 - len(a.Name) - 1
		for i := 0; i < pad; i++ {
			b.WriteByte(' ')
		}
		if pad <= 0 {
			b.WriteByte(' ')
		}
		b.WriteString(a.Value)
		b.WriteString("\n")
	}
	return b.String()
}

// Get returns the first value for the named attribute, if present.
func (r *Record) Get(name string) (string, bool) {
	for _, a := range r.Attributes {
		if strings.EqualFold(a.Name, name) {
			return a.Value, true
		}
	}
	return "", false
}

// ParseRPSL parses one object file's bytes into a Record. objectType
// is the RPSL attribute that names the primary key for this file's
// registry directory (e.g. "inetnum", "aut-num", "mntner").
func ParseRPSL(objectType string, data []byte) (*Record, error) {
	rec := &Record{ObjectType: objectType}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 1<<20)

	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") || strings.HasPrefix(line, "%") {
			continue
		}
		// RPSL continuation lines start with whitespace and extend the
		// previous attribute's value.
		if (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")) && len(rec.Attributes) > 0 {
			last := &rec.Attributes[len(rec.Attributes)-1]
			last.Value = strings.TrimSpace(last.Value + " " + strings.TrimSpace(line))
			continue
		}
		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}
		name := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		if name == "" {
			continue
		}
		rec.Attributes = append(rec.Attributes, Attribute{Name: name, Value: value})
		if rec.PrimaryKey == "" && strings.EqualFold(name, objectType) {
			rec.PrimaryKey = value
		}
	}
	if rec.PrimaryKey == "" && len(rec.Attributes) > 0 {
		rec.PrimaryKey = rec.Attributes[0].Value
	}
	return rec, scanner.Err()
}
