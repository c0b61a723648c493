// Package codec converts store records to and from the flat delimited text
// format the store is saved in.
//
// A buffer is a header followed by one record per live node in ascending id
// order. All integers are three zero-padded ASCII digits:
//
//	"^" <count> "^"
//	{ <id> "^" <name> "^" <kind> "^" <content> "^" <parent> "^" <child0>..<child9> "^" <nchildren> "^" }
//
// A '^' inside a name or content is written as [EscapeByte]. Child slots past
// nchildren are written as 000 and never read back.
package codec

import (
	"bytes"
	"fmt"

	"github.com/brettbedarf/treefs"
)

const (
	// Delimiter separates every field
	Delimiter byte = '^'
	// EscapeByte stands in for a literal Delimiter inside names and content
	EscapeByte byte = 0x01

	tripletMax  = 999
	childSlots  = treefs.MaxChildren
	unusedChild = 0
)

// Encode writes records in the order given
func Encode(records []treefs.Record) ([]byte, error) {
	if len(records) > tripletMax {
		return nil, fmt.Errorf("%d records do not fit the header", len(records))
	}

	var buf bytes.Buffer
	buf.Grow(4 + len(records)*(4*4+2+childSlots*3+2+treefs.MaxNameLen+treefs.MaxContent+6))
	buf.WriteByte(Delimiter)
	writeTriplet(&buf, len(records))
	buf.WriteByte(Delimiter)

	for _, r := range records {
		if err := checkRecord(r); err != nil {
			return nil, err
		}
		writeTriplet(&buf, int(r.ID))
		buf.WriteByte(Delimiter)
		writeEscaped(&buf, []byte(r.Name))
		buf.WriteByte(Delimiter)
		buf.WriteByte(byte('0' + r.Kind))
		buf.WriteByte(Delimiter)
		writeEscaped(&buf, r.Content)
		buf.WriteByte(Delimiter)
		writeTriplet(&buf, int(r.Parent))
		buf.WriteByte(Delimiter)
		for i := range childSlots {
			c := unusedChild
			if i < len(r.Children) {
				c = int(r.Children[i])
			}
			writeTriplet(&buf, c)
		}
		buf.WriteByte(Delimiter)
		writeTriplet(&buf, len(r.Children))
		buf.WriteByte(Delimiter)
	}
	return buf.Bytes(), nil
}

func checkRecord(r treefs.Record) error {
	switch {
	case r.ID < 0 || r.ID > tripletMax:
		return fmt.Errorf("record id %d out of range", r.ID)
	case r.Parent < 0 || r.Parent > tripletMax:
		return fmt.Errorf("record %d parent %d out of range", r.ID, r.Parent)
	case r.Kind < treefs.KindFile || r.Kind > treefs.KindRoot:
		return fmt.Errorf("record %d kind %d not encodable", r.ID, r.Kind)
	case len(r.Children) > childSlots:
		return fmt.Errorf("record %d has %d children", r.ID, len(r.Children))
	}
	for _, c := range r.Children {
		if c < 0 || c > tripletMax {
			return fmt.Errorf("record %d child %d out of range", r.ID, c)
		}
	}
	return nil
}

func writeTriplet(buf *bytes.Buffer, n int) {
	buf.WriteByte(byte('0' + n/100))
	buf.WriteByte(byte('0' + n/10%10))
	buf.WriteByte(byte('0' + n%10))
}

func writeEscaped(buf *bytes.Buffer, p []byte) {
	for _, b := range p {
		if b == Delimiter {
			b = EscapeByte
		}
		buf.WriteByte(b)
	}
}

// Decode parses a whole buffer. Bytes after the last declared record are
// ignored since fixed-size device reads pad the buffer.
//
// Decode only checks the syntax and field limits; tree structure is checked
// when the records are loaded into a store.
func Decode(buf []byte) ([]treefs.Record, error) {
	p := parser{buf: buf}

	if err := p.delim(); err != nil {
		return nil, err
	}
	count, err := p.triplet()
	if err != nil {
		return nil, err
	}
	if err := p.delim(); err != nil {
		return nil, err
	}
	if count > treefs.MaxNodes {
		return nil, p.errorf("record count %d exceeds capacity %d", count, treefs.MaxNodes)
	}

	records := make([]treefs.Record, 0, count)
	for range count {
		r, err := p.record()
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}

type parser struct {
	buf []byte
	pos int
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: offset %d: %s", treefs.ErrCorruptFormat, p.pos, fmt.Sprintf(format, args...))
}

func (p *parser) record() (treefs.Record, error) {
	var r treefs.Record

	id, err := p.tripletField()
	if err != nil {
		return r, err
	}
	r.ID = treefs.NodeID(id)

	name, err := p.escaped(treefs.MaxNameLen, "name")
	if err != nil {
		return r, err
	}
	if len(name) == 0 {
		return r, p.errorf("record %d has an empty name", id)
	}
	r.Name = string(name)

	if p.pos >= len(p.buf) {
		return r, p.errorf("buffer ends before kind")
	}
	k := p.buf[p.pos]
	if k < '0' || k > '2' {
		return r, p.errorf("kind digit %q", k)
	}
	r.Kind = treefs.Kind(k - '0')
	p.pos++
	if err := p.delim(); err != nil {
		return r, err
	}

	if r.Content, err = p.escaped(treefs.MaxContent, "content"); err != nil {
		return r, err
	}

	parent, err := p.tripletField()
	if err != nil {
		return r, err
	}
	r.Parent = treefs.NodeID(parent)

	var slots [childSlots]treefs.NodeID
	for i := range slots {
		c, err := p.triplet()
		if err != nil {
			return r, err
		}
		slots[i] = treefs.NodeID(c)
	}
	if err := p.delim(); err != nil {
		return r, err
	}

	n, err := p.tripletField()
	if err != nil {
		return r, err
	}
	if n > childSlots {
		return r, p.errorf("record %d declares %d children", id, n)
	}
	if n > 0 {
		r.Children = append([]treefs.NodeID(nil), slots[:n]...)
	}
	return r, nil
}

func (p *parser) delim() error {
	if p.pos >= len(p.buf) {
		return p.errorf("buffer ends before delimiter")
	}
	if p.buf[p.pos] != Delimiter {
		return p.errorf("expected delimiter, found %q", p.buf[p.pos])
	}
	p.pos++
	return nil
}

func (p *parser) triplet() (int, error) {
	if p.pos+3 > len(p.buf) {
		return 0, p.errorf("buffer ends inside number")
	}
	n := 0
	for _, b := range p.buf[p.pos : p.pos+3] {
		if b < '0' || b > '9' {
			return 0, p.errorf("non-digit %q in number", b)
		}
		n = n*10 + int(b-'0')
	}
	p.pos += 3
	return n, nil
}

// tripletField reads a number followed by a delimiter
func (p *parser) tripletField() (int, error) {
	n, err := p.triplet()
	if err != nil {
		return 0, err
	}
	return n, p.delim()
}

// escaped reads up to limit bytes terminated by a delimiter, which is consumed
func (p *parser) escaped(limit int, what string) ([]byte, error) {
	start := p.pos
	for i := 0; ; i++ {
		if p.pos >= len(p.buf) {
			return nil, p.errorf("buffer ends inside %s", what)
		}
		b := p.buf[p.pos]
		if b == Delimiter {
			break
		}
		if i == limit {
			return nil, p.errorf("%s longer than %d bytes", what, limit)
		}
		p.pos++
	}
	if p.pos == start {
		p.pos++
		return nil, nil
	}
	out := make([]byte, p.pos-start)
	for i, b := range p.buf[start:p.pos] {
		if b == EscapeByte {
			b = Delimiter
		}
		out[i] = b
	}
	p.pos++
	return out, nil
}
