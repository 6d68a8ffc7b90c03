package tmpl

import (
	"strings"

	"github.com/leapstack-labs/sqlforge/pkg/core"
)

// ParseFunc parses the statement form of a registered block keyword. It
// receives the raw tag arguments and the tag's line, and uses the Parser to
// consume the statement body through its terminator.
type ParseFunc func(p *Parser, args string, line int) (Stmt, error)

// Parser turns a token stream into statements. The base grammar (text,
// expressions, if/for/set/do) is fixed; additional block keywords are
// dispatched through the Env's registered ParseFuncs.
type Parser struct {
	env  *Env
	toks []token
	pos  int
}

// Node returns the node under compilation, if any, for error attribution.
func (p *Parser) Node() *core.Node {
	return p.env.node
}

func (p *Parser) errf(format string, args ...any) error {
	return core.CompilationErrorf(p.env.node, format, args...)
}

func (p *Parser) parseAll() ([]Stmt, error) {
	stmts, term, err := p.parseStatements(nil)
	if err != nil {
		return nil, err
	}
	if term != "" {
		return nil, p.errf("unexpected {%% %s %%}", term)
	}
	return stmts, nil
}

// ParseUntil consumes statements through the named terminator tag, which is
// dropped. Registered block keywords use this to parse their bodies.
func (p *Parser) ParseUntil(end string) ([]Stmt, error) {
	stmts, term, err := p.parseStatements(map[string]bool{end: true})
	if err != nil {
		return nil, err
	}
	if term != end {
		return nil, p.errf("unexpected end of template, expected {%% %s %%}", end)
	}
	return stmts, nil
}

// parseStatements consumes statements until a tag named in until is reached
// (the terminator is consumed and returned) or the token stream ends.
func (p *Parser) parseStatements(until map[string]bool) ([]Stmt, string, error) {
	var stmts []Stmt
	for p.pos < len(p.toks) {
		tok := p.toks[p.pos]
		switch tok.kind {
		case tokComment:
			p.pos++
		case tokText:
			p.pos++
			stmts = append(stmts, &TextStmt{Text: tok.text})
		case tokExpr:
			p.pos++
			stmts = append(stmts, &OutputStmt{Expr: tok.text, Line: tok.line})
		case tokTag:
			if until[tok.name] {
				p.pos++
				return stmts, tok.name, nil
			}
			stmt, err := p.parseTag(tok)
			if err != nil {
				return nil, "", err
			}
			stmts = append(stmts, stmt)
		}
	}
	return stmts, "", nil
}

func (p *Parser) parseTag(tok token) (Stmt, error) {
	switch tok.name {
	case "if":
		return p.parseIf(tok)
	case "for":
		return p.parseFor(tok)
	case "set":
		return p.parseSet(tok)
	case "do":
		p.pos++
		return &DoStmt{Expr: tok.args, Line: tok.line}, nil
	}
	if fn, ok := p.env.extensions[tok.name]; ok {
		p.pos++
		return fn(p, tok.args, tok.line)
	}
	return nil, p.errf("unknown tag %q on line %d", tok.name, tok.line)
}

func (p *Parser) parseIf(tok token) (Stmt, error) {
	p.pos++
	stmt := &IfStmt{}
	cond := tok.args
	line := tok.line
	for {
		body, term, err := p.parseStatements(map[string]bool{"elif": true, "else": true, "endif": true})
		if err != nil {
			return nil, err
		}
		stmt.Branches = append(stmt.Branches, IfBranch{Cond: cond, Line: line, Body: body})
		switch term {
		case "elif":
			prev := p.toks[p.pos-1]
			cond = prev.args
			line = prev.line
		case "else":
			elseBody, elseTerm, err := p.parseStatements(map[string]bool{"endif": true})
			if err != nil {
				return nil, err
			}
			if elseTerm != "endif" {
				return nil, p.errf("unexpected end of template, expected {%% endif %%}")
			}
			stmt.Else = elseBody
			return stmt, nil
		case "endif":
			return stmt, nil
		default:
			return nil, p.errf("unexpected end of template, expected {%% endif %%}")
		}
	}
}

func (p *Parser) parseFor(tok token) (Stmt, error) {
	p.pos++
	varsPart, iter, ok := splitForArgs(tok.args)
	if !ok {
		return nil, p.errf("invalid for statement %q on line %d", tok.args, tok.line)
	}
	var vars []string
	for _, v := range splitTopLevel(varsPart, ',') {
		v = strings.TrimSpace(v)
		if v == "" || firstIdent(v) != v {
			return nil, p.errf("invalid loop variable %q on line %d", v, tok.line)
		}
		vars = append(vars, v)
	}
	body, err := p.ParseUntil("endfor")
	if err != nil {
		return nil, err
	}
	return &ForStmt{Vars: vars, Iter: iter, Line: tok.line, Body: body}, nil
}

func (p *Parser) parseSet(tok token) (Stmt, error) {
	p.pos++
	if eq := indexTopLevel(tok.args, '='); eq >= 0 {
		name := strings.TrimSpace(tok.args[:eq])
		if firstIdent(name) != name || name == "" {
			return nil, p.errf("invalid set target %q on line %d", name, tok.line)
		}
		return &SetStmt{Name: name, Expr: strings.TrimSpace(tok.args[eq+1:]), Line: tok.line}, nil
	}
	name := strings.TrimSpace(tok.args)
	if firstIdent(name) != name || name == "" {
		return nil, p.errf("invalid set target %q on line %d", name, tok.line)
	}
	body, err := p.ParseUntil("endset")
	if err != nil {
		return nil, err
	}
	return &SetBlockStmt{Name: name, Body: body, Line: tok.line}, nil
}

// parseMacro handles {% macro name(params) %}. The resolved name takes the
// macro prefix so definitions can be registered and referenced across files
// regardless of load order.
func parseMacro(p *Parser, args string, line int) (Stmt, error) {
	name, params, err := parseSignature(p, args, line)
	if err != nil {
		return nil, err
	}
	body, err := p.ParseUntil("endmacro")
	if err != nil {
		return nil, err
	}
	return &MacroDef{Name: MacroName(name), Params: params, Body: body, Line: line}, nil
}

// parseMaterialization handles
// {% materialization name, adapter='x' %} / {% materialization name, default %}.
// Any argument other than "adapter" and the "default" marker is a parse error.
func parseMaterialization(p *Parser, args string, line int) (Stmt, error) {
	parts := splitTopLevel(args, ',')
	name := strings.TrimSpace(parts[0])
	if name == "" || firstIdent(name) != name {
		return nil, p.errf("invalid materialization name %q on line %d", strings.TrimSpace(parts[0]), line)
	}

	adapter := DefaultAdapter
	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		key := firstIdent(part)
		rest := strings.TrimSpace(part[len(key):])
		switch {
		case key == "default" && rest == "":
		case key == "adapter" && strings.HasPrefix(rest, "="):
			value, err := unquote(strings.TrimSpace(rest[1:]))
			if err != nil {
				return nil, p.errf("materialization %q: adapter must be a string literal, got %q", name, rest[1:])
			}
			adapter = value
		default:
			return nil, p.errf("materialization %q received unknown argument %q", name, part)
		}
	}

	body, err := p.ParseUntil("endmaterialization")
	if err != nil {
		return nil, err
	}
	return &MacroDef{Name: MaterializationMacroName(name, adapter), Body: body, Line: line}, nil
}

// parseDocs handles {% docs name %}. Docs blocks take no parameters.
func parseDocs(p *Parser, args string, line int) (Stmt, error) {
	name := strings.TrimSpace(args)
	if name == "" || firstIdent(name) != name {
		return nil, p.errf("invalid docs name %q on line %d", args, line)
	}
	body, err := p.ParseUntil("enddocs")
	if err != nil {
		return nil, err
	}
	return &MacroDef{Name: DocsMacroName(name), Body: body, Line: line}, nil
}

// parseSignature parses "name(a, b=expr)" into a declared name and params.
func parseSignature(p *Parser, args string, line int) (string, []Param, error) {
	name := firstIdent(strings.TrimSpace(args))
	if name == "" {
		return "", nil, p.errf("expected a macro name on line %d", line)
	}
	rest := strings.TrimSpace(strings.TrimSpace(args)[len(name):])
	if rest == "" {
		return name, nil, nil
	}
	if !strings.HasPrefix(rest, "(") || !strings.HasSuffix(rest, ")") {
		return "", nil, p.errf("invalid macro signature %q on line %d", args, line)
	}
	inner := rest[1 : len(rest)-1]
	if strings.TrimSpace(inner) == "" {
		return name, nil, nil
	}

	var params []Param
	for _, part := range splitTopLevel(inner, ',') {
		part = strings.TrimSpace(part)
		if eq := indexTopLevel(part, '='); eq >= 0 {
			pname := strings.TrimSpace(part[:eq])
			if firstIdent(pname) != pname || pname == "" {
				return "", nil, p.errf("invalid macro parameter %q on line %d", part, line)
			}
			params = append(params, Param{Name: pname, Default: strings.TrimSpace(part[eq+1:])})
			continue
		}
		if firstIdent(part) != part || part == "" {
			return "", nil, p.errf("invalid macro parameter %q on line %d", part, line)
		}
		params = append(params, Param{Name: part})
	}
	return name, params, nil
}

// splitForArgs splits "a, b in expr" at the top-level " in " keyword.
func splitForArgs(args string) (vars, iter string, ok bool) {
	depth := 0
	i := 0
	for i < len(args) {
		c := args[i]
		switch c {
		case '\'', '"':
			end, err := skipString(args, i)
			if err != nil {
				return "", "", false
			}
			i = end
			continue
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		}
		if depth == 0 && strings.HasPrefix(args[i:], " in ") {
			return strings.TrimSpace(args[:i]), strings.TrimSpace(args[i+4:]), true
		}
		i++
	}
	return "", "", false
}

// splitTopLevel splits s on sep, ignoring separators nested inside brackets
// or string literals.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	start := 0
	i := 0
	for i < len(s) {
		c := s[i]
		switch c {
		case '\'', '"':
			end, err := skipString(s, i)
			if err != nil {
				i = len(s)
				continue
			}
			i = end
			continue
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		}
		if c == sep && depth == 0 {
			parts = append(parts, s[start:i])
			start = i + 1
		}
		i++
	}
	parts = append(parts, s[start:])
	return parts
}

// indexTopLevel finds the first unnested, unquoted occurrence of c that is
// not part of a comparison operator.
func indexTopLevel(s string, c byte) int {
	depth := 0
	i := 0
	for i < len(s) {
		ch := s[i]
		switch ch {
		case '\'', '"':
			end, err := skipString(s, i)
			if err != nil {
				return -1
			}
			i = end
			continue
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		}
		if ch == c && depth == 0 {
			if c == '=' {
				next := i + 1
				if next < len(s) && s[next] == '=' {
					i += 2
					continue
				}
				if i > 0 && strings.IndexByte("=!<>", s[i-1]) >= 0 {
					i++
					continue
				}
			}
			return i
		}
		i++
	}
	return -1
}

// unquote strips matching single or double quotes from a string literal.
func unquote(s string) (string, error) {
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1], nil
		}
	}
	return "", core.CompilationErrorf(nil, "expected a quoted string, got %q", s)
}
