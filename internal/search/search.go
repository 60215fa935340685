// Package search parses the card search language used by filtered decks.
//
// A query is a sequence of terms combined with implicit AND. Terms can be
// negated with a leading '-', grouped with parentheses and combined with
// "or". A term is either free text matched against note fields or a
// key:value filter:
//
//	deck:Spanish::Verbs  deck:filtered  tag:leech  is:due  flag:1
//	card:2  note:1656  added:7  prop:ivl>=10  prop:lapses>3
package search

import (
	"fmt"
	"strconv"
	"strings"
)

// Node is an element of a parsed query.
type Node interface {
	String() string
}

// And matches cards matched by every child.
type And struct{ Nodes []Node }

// Or matches cards matched by any child.
type Or struct{ Nodes []Node }

// Not inverts its child.
type Not struct{ Node Node }

// Text matches note fields containing Value.
type Text struct{ Value string }

// Deck matches a deck name (with '*' wildcards) and its children.
// The special name "filtered" matches cards hosted by a filtered deck.
type Deck struct{ Name string }

// Tag matches notes carrying a tag (with '*' wildcards).
type Tag struct{ Name string }

// State matches cards by an is: keyword.
type State struct{ Kind StateKind }

// Flag matches the card's color flag.
type Flag struct{ Value int }

// Ordinal matches the card template ordinal (1-based in queries).
type Ordinal struct{ Value int }

// NoteID matches cards of one note.
type NoteID struct{ Value int64 }

// Added matches cards created in the last Days days.
type Added struct{ Days int }

// Prop compares a numeric card property.
type Prop struct {
	Field string
	Op    string
	Value float64
}

// StateKind enumerates the is: keywords.
type StateKind string

const (
	StateNew       StateKind = "new"
	StateLearn     StateKind = "learn"
	StateReview    StateKind = "review"
	StateDue       StateKind = "due"
	StateSuspended StateKind = "suspended"
	StateBuried    StateKind = "buried"
)

var propFields = map[string]bool{"ivl": true, "due": true, "reps": true, "lapses": true, "ease": true}

func (n And) String() string { return joinNodes(n.Nodes, " ") }
func (n Or) String() string  { return "(" + joinNodes(n.Nodes, " or ") + ")" }
func (n Not) String() string { return "-" + n.Node.String() }
func (n Text) String() string {
	return strconv.Quote(n.Value)
}
func (n Deck) String() string    { return "deck:" + n.Name }
func (n Tag) String() string     { return "tag:" + n.Name }
func (n State) String() string   { return "is:" + string(n.Kind) }
func (n Flag) String() string    { return "flag:" + strconv.Itoa(n.Value) }
func (n Ordinal) String() string { return "card:" + strconv.Itoa(n.Value) }
func (n NoteID) String() string  { return "note:" + strconv.FormatInt(n.Value, 10) }
func (n Added) String() string   { return "added:" + strconv.Itoa(n.Days) }
func (n Prop) String() string {
	return "prop:" + n.Field + n.Op + strconv.FormatFloat(n.Value, 'f', -1, 64)
}

func joinNodes(nodes []Node, sep string) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = n.String()
	}
	return strings.Join(parts, sep)
}

// SyntaxError describes a malformed query.
type SyntaxError struct {
	Query  string
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid search %q: %s", e.Query, e.Reason)
}

// Parse turns a query into a node tree. An empty query yields nil, which
// matches every card.
func Parse(query string) (Node, error) {
	toks, err := tokenize(query)
	if err != nil {
		return nil, &SyntaxError{Query: query, Reason: err.Error()}
	}
	if len(toks) == 0 {
		return nil, nil
	}
	p := &parser{toks: toks}
	node, err := p.parseOr()
	if err != nil {
		return nil, &SyntaxError{Query: query, Reason: err.Error()}
	}
	if p.pos < len(p.toks) {
		return nil, &SyntaxError{Query: query, Reason: fmt.Sprintf("unexpected %q", p.toks[p.pos].text)}
	}
	return node, nil
}

// Combine joins several queries with AND, skipping empty ones.
func Combine(nodes ...Node) Node {
	var kept []Node
	for _, n := range nodes {
		if n != nil {
			kept = append(kept, n)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	default:
		return And{Nodes: kept}
	}
}

type tokenKind int

const (
	tokWord tokenKind = iota
	tokOpen
	tokClose
	tokNot
)

type token struct {
	kind tokenKind
	text string
}

func tokenize(q string) ([]token, error) {
	var toks []token
	rs := []rune(q)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case r == ' ' || r == '\t' || r == '\n':
			i++
		case r == '(':
			toks = append(toks, token{kind: tokOpen, text: "("})
			i++
		case r == ')':
			toks = append(toks, token{kind: tokClose, text: ")"})
			i++
		case r == '-' && i+1 < len(rs) && rs[i+1] != ' ':
			toks = append(toks, token{kind: tokNot, text: "-"})
			i++
		default:
			var sb strings.Builder
			for i < len(rs) && rs[i] != ' ' && rs[i] != '(' && rs[i] != ')' {
				if rs[i] == '"' {
					end := i + 1
					for end < len(rs) && rs[end] != '"' {
						end++
					}
					if end >= len(rs) {
						return nil, fmt.Errorf("unterminated quote")
					}
					sb.WriteString(string(rs[i+1 : end]))
					i = end + 1
					continue
				}
				sb.WriteRune(rs[i])
				i++
			}
			toks = append(toks, token{kind: tokWord, text: sb.String()})
		}
	}
	return toks, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() *token {
	if p.pos >= len(p.toks) {
		return nil
	}
	return &p.toks[p.pos]
}

func isKeyword(t *token, word string) bool {
	return t != nil && t.kind == tokWord && strings.EqualFold(t.text, word)
}

func (p *parser) parseOr() (Node, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	nodes := []Node{first}
	for isKeyword(p.peek(), "or") {
		p.pos++
		next, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, next)
	}
	if len(nodes) == 1 {
		return first, nil
	}
	return Or{Nodes: nodes}, nil
}

func (p *parser) parseAnd() (Node, error) {
	var nodes []Node
	for {
		t := p.peek()
		if t == nil || t.kind == tokClose || isKeyword(t, "or") {
			break
		}
		if isKeyword(t, "and") {
			p.pos++
			continue
		}
		n, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	switch len(nodes) {
	case 0:
		return nil, fmt.Errorf("empty expression")
	case 1:
		return nodes[0], nil
	default:
		return And{Nodes: nodes}, nil
	}
}

func (p *parser) parseUnary() (Node, error) {
	t := p.peek()
	switch t.kind {
	case tokNot:
		p.pos++
		if p.peek() == nil {
			return nil, fmt.Errorf("dangling '-'")
		}
		n, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Not{Node: n}, nil
	case tokOpen:
		p.pos++
		n, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if c := p.peek(); c == nil || c.kind != tokClose {
			return nil, fmt.Errorf("missing ')'")
		}
		p.pos++
		return n, nil
	case tokClose:
		return nil, fmt.Errorf("unexpected ')'")
	default:
		p.pos++
		return parseTerm(t.text)
	}
}

func parseTerm(text string) (Node, error) {
	key, value, ok := strings.Cut(text, ":")
	if !ok {
		return Text{Value: text}, nil
	}
	if value == "" {
		return nil, fmt.Errorf("%s: missing value", key)
	}
	switch strings.ToLower(key) {
	case "deck":
		return Deck{Name: value}, nil
	case "tag":
		return Tag{Name: value}, nil
	case "is":
		kind := StateKind(strings.ToLower(value))
		switch kind {
		case StateNew, StateLearn, StateReview, StateDue, StateSuspended, StateBuried:
			return State{Kind: kind}, nil
		}
		return nil, fmt.Errorf("unknown state %q", value)
	case "flag":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 || n > 7 {
			return nil, fmt.Errorf("flag must be 0-7")
		}
		return Flag{Value: n}, nil
	case "card":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("card must be a positive ordinal")
		}
		return Ordinal{Value: n}, nil
	case "note", "nid":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("note must be an id")
		}
		return NoteID{Value: n}, nil
	case "added":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("added must be a positive day count")
		}
		return Added{Days: n}, nil
	case "prop":
		return parseProp(value)
	default:
		return nil, fmt.Errorf("unknown filter %q", key)
	}
}

func parseProp(expr string) (Node, error) {
	for _, op := range []string{"<=", ">=", "!=", "<", ">", "="} {
		if idx := strings.Index(expr, op); idx > 0 {
			field := strings.ToLower(expr[:idx])
			if !propFields[field] {
				return nil, fmt.Errorf("unknown property %q", field)
			}
			v, err := strconv.ParseFloat(expr[idx+len(op):], 64)
			if err != nil {
				return nil, fmt.Errorf("property %s needs a number", field)
			}
			return Prop{Field: field, Op: op, Value: v}, nil
		}
	}
	return nil, fmt.Errorf("property needs a comparison")
}
