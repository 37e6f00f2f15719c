package main

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"regexp"
	"strconv"
	"strings"
)

var (
	statementPattern  = regexp.MustCompile(`(?i)^(select|insert|update|delete|with|create|alter|drop)\b`)
	uuidMarkerPattern = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
)

type violation struct {
	file    string
	name    string
	line    int
	message string
}

func (v violation) String() string {
	return fmt.Sprintf("%s:%d %s (%s)", v.file, v.line, v.message, v.name)
}

// linter checks SQL string constants for a leading "--sql <uuid>" marker and
// remembers markers across files so reuse is reported.
type linter struct {
	seen map[string]token.Position
}

func newLinter() *linter {
	return &linter{seen: make(map[string]token.Position)}
}

// lint parses src (nil reads path) and returns its violations.
func (l *linter) lint(path string, src any) ([]violation, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, src, parser.ParseComments)
	if err != nil {
		return nil, err
	}
	var violations []violation
	ast.Inspect(file, func(n ast.Node) bool {
		vs, ok := n.(*ast.ValueSpec)
		if !ok {
			return true
		}
		for _, value := range vs.Values {
			bl, ok := value.(*ast.BasicLit)
			if !ok || bl.Kind != token.STRING {
				continue
			}
			raw, err := unquote(bl.Value)
			if err != nil {
				continue
			}
			marker, body := splitMarker(raw)
			if !statementPattern.MatchString(body) {
				continue
			}
			pos := fset.Position(bl.Pos())
			v := violation{file: path, line: pos.Line, name: joinNames(vs.Names)}
			if !uuidMarkerPattern.MatchString(marker) {
				v.message = "missing or invalid --sql <uuid> marker"
				violations = append(violations, v)
				continue
			}
			if prev, dup := l.seen[marker]; dup {
				v.message = fmt.Sprintf("marker already used at %s:%d", prev.Filename, prev.Line)
				violations = append(violations, v)
				continue
			}
			l.seen[marker] = pos
		}
		return true
	})
	return violations, nil
}

// splitMarker returns the first line when it is a comment, plus the
// statement text that follows it.
func splitMarker(s string) (marker, body string) {
	s = strings.TrimLeft(s, "\n\r \t")
	first, rest, _ := strings.Cut(s, "\n")
	first = strings.TrimSpace(first)
	if strings.HasPrefix(first, "--") {
		return first, strings.TrimSpace(rest)
	}
	return "", s
}

func unquote(v string) (string, error) {
	if len(v) == 0 {
		return v, nil
	}
	if v[0] == '`' {
		return v[1 : len(v)-1], nil
	}
	return strconv.Unquote(v)
}

func joinNames(idents []*ast.Ident) string {
	parts := make([]string, 0, len(idents))
	for _, ident := range idents {
		if ident == nil {
			continue
		}
		parts = append(parts, ident.Name)
	}
	return strings.Join(parts, ",")
}
