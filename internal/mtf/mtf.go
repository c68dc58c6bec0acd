// Package mtf implements spec section 3/4.3's move-to-front table: a
// fixed-length-15 self-organizing codec for the filename (and defname)
// strings carried by location records, so a small working set of
// filenames collapses to a one-byte index instead of a repeated
// literal string.
//
// No third-party MTF or dictionary-coding library appears anywhere in
// the retrieved examples, so this is built directly against the
// spec's own encode/decode contract.
package mtf

// Size is the table's fixed length (spec section 3).
const Size = 15

// New is the sentinel index meaning "no entry matched; a literal
// string follows on the wire."
const New = Size

// Table is a 15-slot move-to-front table. The zero value is not
// valid; use NewTable.
type Table struct {
	entries [Size]string
}

// NewTable returns a table seeded with Size distinct placeholder
// strings, per spec section 3 ("initial contents are 15 distinct
// placeholder strings"). The placeholders are never valid real
// filenames, so the first real encode/decode of any of them promotes
// a genuine string into slot 0 immediately.
func NewTable() *Table {
	t := &Table{}
	for i := 0; i < Size; i++ {
		t.entries[i] = placeholder(i)
	}
	return t
}

func placeholder(i int) string {
	// Distinct and never collides with a real filename a caller would
	// pass in (NUL is not a valid path byte, so it can't appear in a
	// PutString-encoded filename either).
	return string([]byte{0, byte(i)})
}

// shiftDown moves entries[0:i] down by one slot (entries[k+1] =
// entries[k] for k in [0,i)), leaving slot 0 free for the caller to
// fill in. Both Encode and Decode call this for every promotion so
// they stay in lockstep, per spec section 4.3.
func (t *Table) shiftDown(i int) {
	for k := i; k > 0; k-- {
		t.entries[k] = t.entries[k-1]
	}
}

// Encode returns the index of s before promotion if s is present in
// the table, else New ("literal follows"). In either case s becomes
// index 0 and every entry ahead of its old position shifts down by
// one — the encoder must shift even on a miss, mirroring the decoder's
// behavior on a literal, per spec section 4.3.
func (t *Table) Encode(s string) int {
	for i := 0; i < Size; i++ {
		if t.entries[i] == s {
			t.shiftDown(i)
			t.entries[0] = s
			return i
		}
	}
	t.shiftDown(Size - 1)
	t.entries[0] = s
	return New
}

// Decode returns the string for index i, promoting it to slot 0. For
// i == New the caller has already read a literal string off the wire;
// pass it as literal and Decode installs it at slot 0, shifting every
// other entry down, and returns it unchanged.
func (t *Table) Decode(i int, literal string) string {
	if i == New {
		t.shiftDown(Size - 1)
		t.entries[0] = literal
		return literal
	}
	s := t.entries[i]
	t.shiftDown(i)
	t.entries[0] = s
	return s
}
