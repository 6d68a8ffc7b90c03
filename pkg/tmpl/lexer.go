package tmpl

import (
	"strings"

	"github.com/leapstack-labs/sqlforge/pkg/core"
)

type tokenKind int

const (
	tokText tokenKind = iota
	tokExpr
	tokTag
	tokComment
)

// token is one lexical unit of a template: a literal text run, a {{ ... }}
// expression, or a {% ... %} statement tag.
type token struct {
	kind tokenKind
	text string // literal text, or expression source
	name string // tag keyword
	args string // raw tag arguments after the keyword
	line int

	trimBefore bool
	trimAfter  bool
}

// tokenize splits template source into tokens. Comments are dropped here;
// raw sections collapse into literal text tokens. Whitespace-control markers
// ("-") are honored by trimming the adjacent text tokens.
func tokenize(data string) ([]token, error) {
	lx := &tokenLexer{data: data, line: 1}
	if err := lx.run(); err != nil {
		return nil, err
	}
	applyTrim(lx.tokens)
	return lx.tokens, nil
}

type tokenLexer struct {
	data   string
	pos    int
	line   int
	tokens []token
}

func (lx *tokenLexer) run() error {
	textStart := lx.pos
	textLine := lx.line
	for lx.pos < len(lx.data) {
		rest := lx.data[lx.pos:]
		var marker string
		switch {
		case strings.HasPrefix(rest, "{#"):
			marker = "{#"
		case strings.HasPrefix(rest, "{{"):
			marker = "{{"
		case strings.HasPrefix(rest, "{%"):
			marker = "{%"
		default:
			if lx.data[lx.pos] == '\n' {
				lx.line++
			}
			lx.pos++
			continue
		}

		lx.emitText(lx.data[textStart:lx.pos], textLine)
		start := lx.pos
		inner, end, err := lx.readInner(marker)
		if err != nil {
			return err
		}

		body, trimBefore, trimAfter := stripTrimMarkers(inner)
		switch marker {
		case "{#":
			// dropped by the parser, but trim markers still apply
			lx.tokens = append(lx.tokens, token{kind: tokComment, line: lx.line, trimBefore: trimBefore, trimAfter: trimAfter})
		case "{{":
			lx.tokens = append(lx.tokens, token{
				kind: tokExpr, text: strings.TrimSpace(body), line: lx.line,
				trimBefore: trimBefore, trimAfter: trimAfter,
			})
		case "{%":
			body = strings.TrimSpace(body)
			name := firstIdent(body)
			if name == "" {
				return core.CompilationErrorf(nil, "expected a statement keyword in tag %q", lx.data[start:end])
			}
			tok := token{
				kind: tokTag, name: name, args: strings.TrimSpace(body[len(name):]), line: lx.line,
				trimBefore: trimBefore, trimAfter: trimAfter,
			}
			if name == "raw" {
				lx.line += strings.Count(lx.data[start:end], "\n")
				lx.pos = end
				if err := lx.readRaw(tok); err != nil {
					return err
				}
				textStart = lx.pos
				textLine = lx.line
				continue
			}
			lx.tokens = append(lx.tokens, tok)
		}
		lx.line += strings.Count(lx.data[start:end], "\n")
		lx.pos = end
		textStart = lx.pos
		textLine = lx.line
	}
	lx.emitText(lx.data[textStart:], textLine)
	return nil
}

// readInner consumes the current marker through its close delimiter and
// returns the inner source.
func (lx *tokenLexer) readInner(marker string) (inner string, end int, err error) {
	var close string
	switch marker {
	case "{#":
		close = "#}"
	case "{{":
		close = "}}"
	case "{%":
		close = "%}"
	}
	if marker == "{#" {
		idx := strings.Index(lx.data[lx.pos+2:], close)
		if idx < 0 {
			return "", 0, core.CompilationErrorf(nil, "unexpected end of input inside comment")
		}
		end = lx.pos + 2 + idx + 2
		return lx.data[lx.pos+2 : end-2], end, nil
	}
	i := lx.pos + 2
	for i < len(lx.data) {
		c := lx.data[i]
		if c == '\'' || c == '"' {
			next, serr := skipString(lx.data, i)
			if serr != nil {
				return "", 0, serr
			}
			i = next
			continue
		}
		if strings.HasPrefix(lx.data[i:], close) {
			return lx.data[lx.pos+2 : i], i + len(close), nil
		}
		i++
	}
	return "", 0, core.CompilationErrorf(nil, "unexpected end of input, expected %q", close)
}

// readRaw consumes literal text through {% endraw %}, emitting it as a text
// token. tok is the already-lexed raw tag, kept for its trim markers.
func (lx *tokenLexer) readRaw(tok token) error {
	start := lx.pos
	pos := lx.pos
	for pos < len(lx.data) {
		idx := strings.Index(lx.data[pos:], "{%")
		if idx < 0 {
			break
		}
		at := pos + idx
		close := strings.Index(lx.data[at+2:], "%}")
		if close < 0 {
			break
		}
		end := at + 2 + close + 2
		body, _, trimAfter := stripTrimMarkers(lx.data[at+2 : end-2])
		if firstIdent(strings.TrimSpace(body)) == "endraw" {
			lx.tokens = append(lx.tokens,
				token{kind: tokComment, line: lx.line, trimBefore: tok.trimBefore},
				token{kind: tokText, text: lx.data[start:at], line: lx.line},
				token{kind: tokComment, line: lx.line, trimAfter: trimAfter},
			)
			lx.line += strings.Count(lx.data[start:end], "\n")
			lx.pos = end
			return nil
		}
		pos = at + 2
	}
	return core.CompilationErrorf(nil, "unexpected end of input: missing {%% endraw %%}")
}

func (lx *tokenLexer) emitText(text string, line int) {
	if text == "" {
		return
	}
	lx.tokens = append(lx.tokens, token{kind: tokText, text: text, line: line})
}

// stripTrimMarkers removes leading/trailing "-" whitespace-control markers.
func stripTrimMarkers(inner string) (body string, before, after bool) {
	body = inner
	if strings.HasPrefix(body, "-") {
		before = true
		body = body[1:]
	}
	if strings.HasSuffix(body, "-") {
		after = true
		body = body[:len(body)-1]
	}
	return body, before, after
}

// applyTrim rewrites text tokens adjacent to trim markers.
func applyTrim(tokens []token) {
	for i := range tokens {
		if tokens[i].kind == tokText {
			continue
		}
		if tokens[i].trimBefore && i > 0 && tokens[i-1].kind == tokText {
			tokens[i-1].text = strings.TrimRight(tokens[i-1].text, " \t\r\n")
		}
		if tokens[i].trimAfter && i+1 < len(tokens) && tokens[i+1].kind == tokText {
			tokens[i+1].text = strings.TrimLeft(tokens[i+1].text, " \t\r\n")
		}
	}
}
