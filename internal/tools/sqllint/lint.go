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
	// A statement starts the literal, optionally after its marker line.
	sqlStatementPattern = regexp.MustCompile(`(?is)^\s*(--[^\n]*\n\s*)?(select\s|insert\s+into\s|update\s+\S+\s+set\s|delete\s+from\s|with\s+\S+\s+as\s*\()`)
	uuidMarkerPattern   = regexp.MustCompile(`^--sql ([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})$`)
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

// linter checks SQL string constants for a unique --sql <uuid> first line.
type linter struct {
	// markers maps a uuid to the place it was first seen.
	markers    map[string]string
	violations []violation
}

func newLinter() *linter {
	return &linter{markers: map[string]string{}}
}

// lintFile parses path, or src when it is non-nil, and records violations.
func (l *linter) lintFile(path string, src any) error {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, src, parser.ParseComments)
	if err != nil {
		return err
	}
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
			if err != nil || !sqlStatementPattern.MatchString(raw) {
				continue
			}
			pos := fset.Position(bl.Pos())
			name := joinNames(vs.Names)
			at := fmt.Sprintf("%s:%d %s", path, pos.Line, name)
			match := uuidMarkerPattern.FindStringSubmatch(firstLine(raw))
			switch {
			case match == nil:
				l.add(path, pos.Line, name, "missing or invalid --sql <uuid> marker")
			case l.markers[match[1]] != "":
				l.add(path, pos.Line, name, "duplicate --sql marker, first used at "+l.markers[match[1]])
			default:
				l.markers[match[1]] = at
			}
		}
		return true
	})
	return nil
}

func (l *linter) add(file string, line int, name, message string) {
	l.violations = append(l.violations, violation{file: file, line: line, name: name, message: message})
}

func firstLine(s string) string {
	s = strings.TrimLeft(s, "\n\r \t")
	if idx := strings.IndexAny(s, "\n\r"); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return strings.TrimSpace(s)
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
