// Command sqllint fails when a SQL string constant lacks a unique
// "--sql <uuid>" first line, the marker SQLRunner logs queries by.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func main() {
	flag.Parse()
	targets := flag.Args()
	if len(targets) == 0 {
		targets = []string{"."}
	}

	l := newLinter()
	for _, target := range targets {
		info, err := os.Stat(target)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sqllint: %v\n", err)
			os.Exit(1)
		}
		if !info.IsDir() {
			if filepath.Ext(target) == ".go" {
				if err := l.lintFile(target, nil); err != nil {
					fmt.Fprintf(os.Stderr, "sqllint: %v\n", err)
					os.Exit(1)
				}
			}
			continue
		}
		walkErr := filepath.WalkDir(target, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				name := d.Name()
				if path != target && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "vendor" || name == "testdata") {
					return filepath.SkipDir
				}
				return nil
			}
			if filepath.Ext(path) != ".go" || strings.HasSuffix(path, "_test.go") {
				return nil
			}
			return l.lintFile(path, nil)
		})
		if walkErr != nil {
			fmt.Fprintf(os.Stderr, "sqllint: %v\n", walkErr)
			os.Exit(1)
		}
	}

	if len(l.violations) > 0 {
		fmt.Fprintln(os.Stderr, "sqllint: SQL audit marker violations")
		for _, v := range l.violations {
			fmt.Fprintf(os.Stderr, "  %s\n", v)
		}
		os.Exit(1)
	}
}
