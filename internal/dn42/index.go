package dn42

import "net"

// networkEntry pairs a parsed CIDR with the record it covers, used by
// both the IPv4 and IPv6 range indexes.
type networkEntry struct {
	net    *net.IPNet
	record *Record
}

// Index is the immutable, queryable view of one DN42 mirror refresh.
// It is never mutated after construction; Manager swaps the active
// pointer atomically (atomic.Value) so readers always see a fully
// built index.
type Index struct {
	byID       map[string]*Record // "object-type/primary-key" -> record
	byASN      map[string]*Record // "AS4242421234" -> record
	byInetnum  []networkEntry
	byInet6num []networkEntry
	builtAt    int64 // unix seconds, set by the caller
}

// NewIndex returns an empty Index ready for incremental population by
// a refresh pass.
func NewIndex() *Index {
	return &Index{
		byID:  make(map[string]*Record),
		byASN: make(map[string]*Record),
	}
}

// Add files a parsed record into every index it belongs in.
func (idx *Index) Add(r *Record) {
	idx.byID[r.ObjectType+"/"+r.PrimaryKey] = r

	switch r.ObjectType {
	case "aut-num":
		idx.byASN[normalizeASNKey(r.PrimaryKey)] = r
	case "inetnum":
		if _, cidr, err := net.ParseCIDR(inetnumToCIDR(r.PrimaryKey)); err == nil {
			idx.byInetnum = append(idx.byInetnum, networkEntry{net: cidr, record: r})
		}
	case "inet6num":
		if _, cidr, err := net.ParseCIDR(r.PrimaryKey); err == nil {
			idx.byInet6num = append(idx.byInet6num, networkEntry{net: cidr, record: r})
		}
	}
}

// ByID looks up a record by "object-type/primary-key".
func (idx *Index) ByID(objectType, key string) (*Record, bool) {
	r, ok := idx.byID[objectType+"/"+key]
	return r, ok
}

// ByASN looks up an "AS<digits>" record.
func (idx *Index) ByASN(asn string) (*Record, bool) {
	r, ok := idx.byASN[normalizeASNKey(asn)]
	return r, ok
}

// ByIP returns the most-specific record covering ip, breaking ties by
// longer prefix length, per §4.4's lookup algorithm.
func (idx *Index) ByIP(ip net.IP) (*Record, bool) {
	entries := idx.byInetnum
	if ip.To4() == nil {
		entries = idx.byInet6num
	}
	var best *networkEntry
	bestOnes := -1
	for i := range entries {
		e := &entries[i]
		if !e.net.Contains(ip) {
			continue
		}
		ones, _ := e.net.Mask.Size()
		if ones > bestOnes {
			best = e
			bestOnes = ones
		}
	}
	if best == nil {
		return nil, false
	}
	return best.record, true
}

func normalizeASNKey(s string) string {
	upper := s
	if len(s) >= 2 && (s[0] == 'a' || s[0] == 'A') && (s[1] == 's' || s[1] == 'S') {
		upper = "AS" + s[2:]
	}
	return upper
}

// inetnumToCIDR passes through a primary key that is already a CIDR
// and turns a bare address into a /32. Any other form, including the
// "a.b.c.d - w.x.y.z" range style, is returned unchanged; it does not
// parse as a CIDR, so Add leaves such a record out of the range index.
func inetnumToCIDR(primaryKey string) string {
	if _, _, err := net.ParseCIDR(primaryKey); err == nil {
		return primaryKey
	}
	if ip := net.ParseIP(primaryKey); ip != nil {
		return primaryKey + "/32"
	}
	return primaryKey
}
