package tmpl

import (
	"strings"

	"github.com/leapstack-labs/sqlforge/pkg/core"
)

// BlockDataType is the sentinel block type for raw data between recognized
// tags.
const BlockDataType = "__sqlforge_data"

// DefaultBlockTypes are the block keywords extracted when callers pass no
// explicit allowed set.
var DefaultBlockTypes = []string{"macro", "materialization", "docs"}

// Block is one span of a lexed template: either raw data or a recognized
// top-level block. Concatenating Full() over a lex result reproduces the
// input exactly.
type Block interface {
	// BlockType returns the recognized tag keyword, or BlockDataType for raw
	// data spans.
	BlockType() string
	// Full returns the exact source span, including the open and close tags
	// for recognized blocks.
	Full() string
}

// BlockData is a raw literal span between recognized blocks.
type BlockData struct {
	Contents string
}

func (b *BlockData) BlockType() string { return BlockDataType }
func (b *BlockData) Full() string      { return b.Contents }

// BlockTag is a recognized top-level block: its tag keyword, the declared
// name (first identifier of the tag arguments), the raw argument text, and
// the raw inner body.
type BlockTag struct {
	TypeName string
	Name     string
	RawArgs  string
	Contents string
	FullText string
	// Start and End are byte offsets of the full span in the input.
	Start int
	End   int
}

func (b *BlockTag) BlockType() string { return b.TypeName }
func (b *BlockTag) Full() string      { return b.FullText }

// ExtractTopLevelBlocks lexes raw template text into an ordered sequence of
// blocks without running the full parser. Recognized blocks may not nest
// inside each other; generic control tags (if/for/...) inside a block body
// are consumed without closing it. Tag-like text inside string literals,
// comments, and raw sections is ignored.
//
// A nil allowedBlocks selects DefaultBlockTypes. When collectRawData is
// false, only BlockTag entries are returned.
func ExtractTopLevelBlocks(text string, allowedBlocks []string, collectRawData bool) ([]Block, error) {
	if allowedBlocks == nil {
		allowedBlocks = DefaultBlockTypes
	}
	allowed := make(map[string]bool, len(allowedBlocks))
	for _, name := range allowedBlocks {
		allowed[name] = true
	}
	lx := &blockLexer{data: text, allowed: allowed, collect: collectRawData}
	return lx.lex()
}

type blockLexer struct {
	data    string
	allowed map[string]bool
	collect bool

	blocks    []Block
	pos       int
	dataStart int
}

// tagInfo describes one {% ... %} tag found during the scan.
type tagInfo struct {
	name  string
	args  string
	start int // offset of "{%"
	end   int // offset just past "%}"
}

func (lx *blockLexer) lex() ([]Block, error) {
	for lx.pos < len(lx.data) {
		marker, at := lx.nextMarker(lx.pos)
		if at < 0 {
			break
		}
		switch marker {
		case "{#":
			end, err := lx.skipComment(at)
			if err != nil {
				return nil, err
			}
			lx.pos = end
		case "{{":
			end, err := lx.skipDelimited(at+2, "}}")
			if err != nil {
				return nil, err
			}
			lx.pos = end
		case "{%":
			tag, err := lx.readTag(at)
			if err != nil {
				return nil, err
			}
			switch {
			case tag.name == "raw":
				end, err := lx.skipRawSection(tag.end)
				if err != nil {
					return nil, err
				}
				lx.pos = end
			case lx.allowed[tag.name]:
				if err := lx.lexBlock(tag); err != nil {
					return nil, err
				}
			default:
				lx.pos = tag.end
			}
		}
	}
	lx.flushData(len(lx.data))
	return lx.blocks, nil
}

// lexBlock consumes a recognized block from its open tag through the
// matching end tag, emitting preceding raw data and the completed BlockTag.
func (lx *blockLexer) lexBlock(open tagInfo) error {
	lx.flushData(open.start)
	endName := "end" + open.name

	pos := open.end
	for pos < len(lx.data) {
		marker, at := lx.nextMarker(pos)
		if at < 0 {
			break
		}
		switch marker {
		case "{#":
			end, err := lx.skipComment(at)
			if err != nil {
				return err
			}
			pos = end
		case "{{":
			end, err := lx.skipDelimited(at+2, "}}")
			if err != nil {
				return err
			}
			pos = end
		case "{%":
			tag, err := lx.readTag(at)
			if err != nil {
				return err
			}
			switch {
			case tag.name == "raw":
				end, err := lx.skipRawSection(tag.end)
				if err != nil {
					return err
				}
				pos = end
			case lx.allowed[tag.name]:
				return core.CompilationErrorf(nil,
					"nested tags: '%s' block opened while '%s' block is still open",
					tag.name, open.name)
			case tag.name == endName:
				lx.blocks = append(lx.blocks, &BlockTag{
					TypeName: open.name,
					Name:     firstIdent(open.args),
					RawArgs:  open.args,
					Contents: lx.data[open.end:tag.start],
					FullText: lx.data[open.start:tag.end],
					Start:    open.start,
					End:      tag.end,
				})
				lx.pos = tag.end
				lx.dataStart = tag.end
				return nil
			default:
				// generic control tag inside the block body, consumed
				pos = tag.end
			}
		}
	}
	return core.CompilationErrorf(nil,
		"unexpected end of input: missing {%% %s %%} for '%s' block", endName, open.name)
}

// nextMarker finds the next "{#", "{{", or "{%" at or after from.
func (lx *blockLexer) nextMarker(from int) (string, int) {
	i := from
	for {
		j := strings.IndexByte(lx.data[i:], '{')
		if j < 0 {
			return "", -1
		}
		i += j
		if i+1 >= len(lx.data) {
			return "", -1
		}
		switch lx.data[i+1] {
		case '#':
			return "{#", i
		case '{':
			return "{{", i
		case '%':
			return "{%", i
		}
		i++
	}
}

// skipComment consumes a {# ... #} comment starting at "{#".
func (lx *blockLexer) skipComment(start int) (int, error) {
	end := strings.Index(lx.data[start+2:], "#}")
	if end < 0 {
		return 0, core.CompilationErrorf(nil, "unexpected end of input inside comment")
	}
	return start + 2 + end + 2, nil
}

// skipDelimited consumes up to and including the close marker, honoring
// single- and double-quoted string literals so a close sequence inside a
// string does not terminate the span.
func (lx *blockLexer) skipDelimited(from int, close string) (int, error) {
	i := from
	for i < len(lx.data) {
		c := lx.data[i]
		if c == '\'' || c == '"' {
			end, err := skipString(lx.data, i)
			if err != nil {
				return 0, err
			}
			i = end
			continue
		}
		if strings.HasPrefix(lx.data[i:], close) {
			return i + len(close), nil
		}
		i++
	}
	return 0, core.CompilationErrorf(nil, "unexpected end of input, expected %q", close)
}

// skipRawSection consumes everything through the matching {% endraw %} tag.
// Nothing inside a raw section is interpreted, quotes included.
func (lx *blockLexer) skipRawSection(from int) (int, error) {
	pos := from
	for pos < len(lx.data) {
		idx := strings.Index(lx.data[pos:], "{%")
		if idx < 0 {
			break
		}
		at := pos + idx
		tag, err := lx.readTag(at)
		if err != nil {
			return 0, err
		}
		if tag.name == "endraw" {
			return tag.end, nil
		}
		pos = at + 2
	}
	return 0, core.CompilationErrorf(nil, "unexpected end of input: missing {%% endraw %%}")
}

// readTag parses one {% ... %} tag starting at "{%" and returns its keyword
// and raw argument text.
func (lx *blockLexer) readTag(start int) (tagInfo, error) {
	end, err := lx.skipDelimited(start+2, "%}")
	if err != nil {
		return tagInfo{}, err
	}
	inner := lx.data[start+2 : end-2]
	inner = strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(inner), "-"), "-")
	inner = strings.TrimSpace(inner)

	name := firstIdent(inner)
	args := strings.TrimSpace(inner[len(name):])
	return tagInfo{name: name, args: args, start: start, end: end}, nil
}

func (lx *blockLexer) flushData(until int) {
	if !lx.collect {
		lx.dataStart = until
		return
	}
	if until > lx.dataStart {
		lx.blocks = append(lx.blocks, &BlockData{Contents: lx.data[lx.dataStart:until]})
	}
	lx.dataStart = until
}

// skipString consumes a quoted string literal starting at the opening quote,
// honoring backslash escapes.
func skipString(data string, start int) (int, error) {
	quote := data[start]
	i := start + 1
	for i < len(data) {
		switch data[i] {
		case '\\':
			i += 2
		case quote:
			return i + 1, nil
		default:
			i++
		}
	}
	return 0, core.CompilationErrorf(nil, "unexpected end of input inside string literal")
}

// firstIdent returns the leading identifier of s, or "" if s does not start
// with one. Full identifiers are matched, so keywords that are prefixes of
// longer names are never confused.
func firstIdent(s string) string {
	end := 0
	for end < len(s) {
		c := s[end]
		isAlpha := c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		isDigit := c >= '0' && c <= '9'
		if !isAlpha && !(end > 0 && isDigit) {
			break
		}
		end++
	}
	return s[:end]
}
