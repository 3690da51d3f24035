package netpath

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/flownetio/flownet/pkg/graph"
)

// CompareOp is a numeric comparison operator in a block filter
type CompareOp int

const (
	OpEquals CompareOp = iota
	OpNotEquals
	OpLessThan
	OpLessEquals
	OpGreaterThan
	OpGreaterEquals
)

func (op CompareOp) String() string {
	switch op {
	case OpEquals:
		return "="
	case OpNotEquals:
		return "!="
	case OpLessThan:
		return "<"
	case OpLessEquals:
		return "<="
	case OpGreaterThan:
		return ">"
	case OpGreaterEquals:
		return ">="
	default:
		return "?"
	}
}

func (op CompareOp) eval(a, b int) bool {
	switch op {
	case OpEquals:
		return a == b
	case OpNotEquals:
		return a != b
	case OpLessThan:
		return a < b
	case OpLessEquals:
		return a <= b
	case OpGreaterThan:
		return a > b
	case OpGreaterEquals:
		return a >= b
	default:
		return false
	}
}

// QuantityFilter restricts blocks by quantity
type QuantityFilter struct {
	Op    CompareOp
	Value int
}

// IndexRange selects block indexes. Wildcard selects all; otherwise Lo..Hi
// inclusive, with Lo == Hi for a single index.
type IndexRange struct {
	Wildcard bool
	Lo, Hi   int
}

// Contains reports whether the range selects index i
func (r IndexRange) Contains(i int) bool {
	if r.Wildcard {
		return true
	}
	return i >= r.Lo && i <= r.Hi
}

func (r IndexRange) String() string {
	if r.Wildcard {
		return "*"
	}
	if r.Lo == r.Hi {
		return strconv.Itoa(r.Lo)
	}
	return fmt.Sprintf("%d..%d", r.Lo, r.Hi)
}

// Path is a parsed block path. Segments are optional from the right: a path
// may name just a branch, a filtered block set, an index selection, or go all
// the way down to a single property.
type Path struct {
	BranchID string

	// HasBlocks is set when the path descends into the branch's block list.
	HasBlocks bool
	TypeFilter string
	Quantity   *QuantityFilter

	Index    *IndexRange
	Property string
}

// Parse parses a path expression. Errors carry the offending position.
func Parse(input string) (*Path, error) {
	p := &parser{lexer: NewLexer(input), input: input}
	p.advance()
	path, err := p.parsePath()
	if err != nil {
		return nil, err
	}
	if p.tok.Type != TokenEOF {
		return nil, p.errorf("unexpected %q", p.tok.Value)
	}
	return path, nil
}

// MustParse parses a path and panics on error. For fixed paths in tests and
// wiring code.
func MustParse(input string) *Path {
	path, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return path
}

type parser struct {
	lexer *Lexer
	input string
	tok   Token
}

func (p *parser) advance() {
	p.tok = p.lexer.Next()
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return &ParseError{Input: p.input, Pos: p.tok.Pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) parsePath() (*Path, error) {
	path := &Path{}

	id, err := p.parseBranchID()
	if err != nil {
		return nil, err
	}
	path.BranchID = id

	if p.tok.Type != TokenSlash {
		return path, nil
	}
	p.advance()

	if p.tok.Type != TokenIdentifier || p.tok.Value != "blocks" {
		return nil, p.errorf("expected \"blocks\" segment")
	}
	path.HasBlocks = true
	p.advance()

	if p.tok.Type == TokenLBracket {
		if err := p.parseFilters(path); err != nil {
			return nil, err
		}
	}

	if p.tok.Type != TokenSlash {
		return path, nil
	}
	p.advance()

	idx, err := p.parseIndex()
	if err != nil {
		return nil, err
	}
	path.Index = idx

	if p.tok.Type != TokenSlash {
		return path, nil
	}
	p.advance()

	if p.tok.Type != TokenIdentifier {
		return nil, p.errorf("expected property name")
	}
	path.Property = p.tok.Value
	p.advance()

	return path, nil
}

// parseBranchID accepts identifier and number tokens, merging adjacent runs so
// ids like "2stage" lex cleanly.
func (p *parser) parseBranchID() (string, error) {
	if p.tok.Type != TokenIdentifier && p.tok.Type != TokenNumber {
		return "", p.errorf("expected branch id")
	}
	var sb strings.Builder
	end := p.tok.Pos
	for (p.tok.Type == TokenIdentifier || p.tok.Type == TokenNumber) && p.tok.Pos == end {
		sb.WriteString(p.tok.Value)
		end = p.tok.Pos + len(p.tok.Value)
		p.advance()
	}
	return sb.String(), nil
}

func (p *parser) parseFilters(path *Path) error {
	p.advance() // consume [
	for {
		if p.tok.Type != TokenIdentifier {
			return p.errorf("expected filter name")
		}
		name, namePos := p.tok.Value, p.tok.Pos
		p.advance()

		switch name {
		case "type":
			if p.tok.Type != TokenEquals {
				return p.errorf("type filter requires \"=\"")
			}
			p.advance()
			if p.tok.Type != TokenIdentifier {
				return p.errorf("expected block type name")
			}
			path.TypeFilter = p.tok.Value
			p.advance()
		case "quantity":
			op, ok := compareOpFor(p.tok.Type)
			if !ok {
				return p.errorf("quantity filter requires a comparison operator")
			}
			p.advance()
			if p.tok.Type != TokenNumber {
				return p.errorf("expected quantity value")
			}
			n, err := strconv.Atoi(p.tok.Value)
			if err != nil {
				return p.errorf("invalid quantity %q", p.tok.Value)
			}
			path.Quantity = &QuantityFilter{Op: op, Value: n}
			p.advance()
		default:
			return &ParseError{Input: p.input, Pos: namePos, Msg: fmt.Sprintf("unknown filter %q", name)}
		}

		if p.tok.Type == TokenComma {
			p.advance()
			continue
		}
		break
	}
	if p.tok.Type != TokenRBracket {
		return p.errorf("expected \"]\"")
	}
	p.advance()
	return nil
}

func compareOpFor(t TokenType) (CompareOp, bool) {
	switch t {
	case TokenEquals:
		return OpEquals, true
	case TokenNotEquals:
		return OpNotEquals, true
	case TokenLessThan:
		return OpLessThan, true
	case TokenLessEquals:
		return OpLessEquals, true
	case TokenGreaterThan:
		return OpGreaterThan, true
	case TokenGreaterEquals:
		return OpGreaterEquals, true
	default:
		return 0, false
	}
}

func (p *parser) parseIndex() (*IndexRange, error) {
	if p.tok.Type == TokenStar {
		p.advance()
		return &IndexRange{Wildcard: true}, nil
	}
	if p.tok.Type != TokenNumber {
		return nil, p.errorf("expected block index")
	}
	lo, err := strconv.Atoi(p.tok.Value)
	if err != nil {
		return nil, p.errorf("invalid index %q", p.tok.Value)
	}
	p.advance()

	if p.tok.Type != TokenDotDot {
		return &IndexRange{Lo: lo, Hi: lo}, nil
	}
	p.advance()
	if p.tok.Type != TokenNumber {
		return nil, p.errorf("expected range end")
	}
	hi, err := strconv.Atoi(p.tok.Value)
	if err != nil {
		return nil, p.errorf("invalid index %q", p.tok.Value)
	}
	if hi < lo {
		return nil, p.errorf("range end %d precedes start %d", hi, lo)
	}
	p.advance()
	return &IndexRange{Lo: lo, Hi: hi}, nil
}

// String renders the canonical form of the path. Parsing the result yields an
// equal path.
func (p *Path) String() string {
	var sb strings.Builder
	sb.WriteString(p.BranchID)
	if !p.HasBlocks {
		return sb.String()
	}
	sb.WriteString("/blocks")
	if p.TypeFilter != "" || p.Quantity != nil {
		sb.WriteByte('[')
		if p.TypeFilter != "" {
			sb.WriteString("type=")
			sb.WriteString(p.TypeFilter)
			if p.Quantity != nil {
				sb.WriteByte(',')
			}
		}
		if p.Quantity != nil {
			fmt.Fprintf(&sb, "quantity%s%d", p.Quantity.Op, p.Quantity.Value)
		}
		sb.WriteByte(']')
	}
	if p.Index == nil {
		return sb.String()
	}
	sb.WriteByte('/')
	sb.WriteString(p.Index.String())
	if p.Property == "" {
		return sb.String()
	}
	sb.WriteByte('/')
	sb.WriteString(p.Property)
	return sb.String()
}

// Match reports whether a block at the given index satisfies the path's
// filters and index selection. The branch segment is the caller's concern.
func (p *Path) Match(block graph.Block, index int) bool {
	if !p.HasBlocks {
		return false
	}
	if p.TypeFilter != "" && block.Type != p.TypeFilter {
		return false
	}
	if p.Quantity != nil && !p.Quantity.Op.eval(block.Quantity, p.Quantity.Value) {
		return false
	}
	if p.Index != nil && !p.Index.Contains(index) {
		return false
	}
	return true
}

// BlockAddr locates one block in a network
type BlockAddr struct {
	BranchID string
	Index    int
}

func (a BlockAddr) String() string {
	return fmt.Sprintf("%s/blocks/%d", a.BranchID, a.Index)
}

// Select evaluates the path against a network and returns the addresses of
// every matching block in branch block order. A path without a blocks segment
// selects nothing; a missing or non-branch node yields graph errors.
func Select(net *graph.Network, path *Path) ([]BlockAddr, error) {
	node, ok := net.Node(path.BranchID)
	if !ok {
		return nil, fmt.Errorf("node %q: %w", path.BranchID, graph.ErrNodeNotFound)
	}
	if node.Kind != graph.KindBranch {
		return nil, fmt.Errorf("node %q: %w", path.BranchID, graph.ErrNotABranch)
	}
	if !path.HasBlocks {
		return nil, nil
	}
	var addrs []BlockAddr
	for i, block := range node.Blocks {
		if path.Match(block, i) {
			addrs = append(addrs, BlockAddr{BranchID: node.ID, Index: i})
		}
	}
	return addrs, nil
}
