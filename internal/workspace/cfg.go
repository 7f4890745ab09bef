package workspace

import (
	"fmt"
	"strconv"
	"strings"
)

// CfgSet is the set of active cfg options for one crate: bare atoms such as
// unix or test, and key-value pairs such as feature = "std".
type CfgSet struct {
	atoms  map[string]bool
	values map[string]map[string]bool
}

// NewCfgSet builds a set from entries written as `name` or `key=value`
// (the value may be quoted).
func NewCfgSet(entries ...string) *CfgSet {
	s := &CfgSet{atoms: map[string]bool{}, values: map[string]map[string]bool{}}
	for _, e := range entries {
		key, value, ok := strings.Cut(e, "=")
		if !ok {
			s.atoms[strings.TrimSpace(e)] = true
			continue
		}
		if v, err := strconv.Unquote(strings.TrimSpace(value)); err == nil {
			value = v
		}
		s.Set(strings.TrimSpace(key), strings.TrimSpace(value))
	}
	return s
}

// Set enables key = "value".
func (s *CfgSet) Set(key, value string) {
	if s.values[key] == nil {
		s.values[key] = map[string]bool{}
	}
	s.values[key][value] = true
}

// Enable turns on a bare atom.
func (s *CfgSet) Enable(atom string) { s.atoms[atom] = true }

// With returns a copy of s with the extra atoms enabled.
func (s *CfgSet) With(atoms ...string) *CfgSet {
	c := &CfgSet{atoms: make(map[string]bool, len(s.atoms)+len(atoms)), values: make(map[string]map[string]bool, len(s.values))}
	for a := range s.atoms {
		c.atoms[a] = true
	}
	for k, vs := range s.values {
		for v := range vs {
			c.Set(k, v)
		}
	}
	for _, a := range atoms {
		c.atoms[a] = true
	}
	return c
}

// Eval parses and evaluates a cfg predicate such as
// all(unix, not(feature = "x")).
func (s *CfgSet) Eval(expr string) (bool, error) {
	p := &cfgParser{src: expr}
	pred, err := p.parse()
	if err != nil {
		return false, err
	}
	return pred.eval(s), nil
}

type cfgPred struct {
	op    string // "", "all", "any", "not"
	key   string
	value *string
	args  []cfgPred
}

func (p cfgPred) eval(s *CfgSet) bool {
	switch p.op {
	case "all":
		for _, a := range p.args {
			if !a.eval(s) {
				return false
			}
		}
		return true
	case "any":
		for _, a := range p.args {
			if a.eval(s) {
				return true
			}
		}
		return false
	case "not":
		return !p.args[0].eval(s)
	}
	if p.value != nil {
		return s.values[p.key][*p.value]
	}
	return s.atoms[p.key]
}

type cfgParser struct {
	src string
	pos int
}

func (p *cfgParser) parse() (cfgPred, error) {
	pred, err := p.predicate()
	if err != nil {
		return cfgPred{}, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return cfgPred{}, fmt.Errorf("cfg %q: unexpected %q at %d", p.src, p.src[p.pos:], p.pos)
	}
	return pred, nil
}

func (p *cfgParser) predicate() (cfgPred, error) {
	name := p.ident()
	if name == "" {
		return cfgPred{}, fmt.Errorf("cfg %q: expected identifier at %d", p.src, p.pos)
	}
	p.skipSpace()
	switch {
	case p.peek('='):
		p.pos++
		p.skipSpace()
		v, err := p.str()
		if err != nil {
			return cfgPred{}, err
		}
		return cfgPred{key: name, value: &v}, nil

	case p.peek('('):
		if name != "all" && name != "any" && name != "not" {
			return cfgPred{}, fmt.Errorf("cfg %q: unknown operator %q", p.src, name)
		}
		p.pos++
		var args []cfgPred
		for {
			p.skipSpace()
			if p.peek(')') {
				p.pos++
				break
			}
			arg, err := p.predicate()
			if err != nil {
				return cfgPred{}, err
			}
			args = append(args, arg)
			p.skipSpace()
			if p.peek(',') {
				p.pos++
				continue
			}
			if !p.peek(')') {
				return cfgPred{}, fmt.Errorf("cfg %q: expected ',' or ')' at %d", p.src, p.pos)
			}
		}
		if name == "not" && len(args) != 1 {
			return cfgPred{}, fmt.Errorf("cfg %q: not() takes exactly one predicate", p.src)
		}
		return cfgPred{op: name, args: args}, nil
	}
	return cfgPred{key: name}, nil
}

func (p *cfgParser) ident() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' && p.pos > start {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

func (p *cfgParser) str() (string, error) {
	if !p.peek('"') {
		return "", fmt.Errorf("cfg %q: expected string at %d", p.src, p.pos)
	}
	end := strings.IndexByte(p.src[p.pos+1:], '"')
	if end < 0 {
		return "", fmt.Errorf("cfg %q: unterminated string", p.src)
	}
	v := p.src[p.pos+1 : p.pos+1+end]
	p.pos += end + 2
	return v, nil
}

func (p *cfgParser) peek(c byte) bool { return p.pos < len(p.src) && p.src[p.pos] == c }

func (p *cfgParser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t' || p.src[p.pos] == '\n' || p.src[p.pos] == '\r') {
		p.pos++
	}
}
