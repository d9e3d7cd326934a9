package solc

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// importPattern matches the target of a Solidity import directive in its
// plain (`import "x";`), aliased (`import "x" as y;`) and symbol
// (`import {A, B} from "x";`) forms.
var importPattern = regexp.MustCompile(`(?m)^\s*import\s+(?:[^'";]*?from\s+)?['"]([^'"]+)['"]`)

// MinimalInput builds a compiler input holding only sourceName and its
// transitive imports, preserving the language and settings of the full
// input. Submitting the minimal input keeps unrelated project sources off
// the public explorer.
func MinimalInput(full *CompilerInput, sourceName string) (*CompilerInput, error) {
	if _, ok := full.Sources[sourceName]; !ok {
		return nil, fmt.Errorf("source %q is not part of the compiler input", sourceName)
	}

	closure := map[string]bool{sourceName: true}
	queue := []string{sourceName}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, target := range sourceImports(full.Sources[current].Content) {
			resolved := resolveImport(current, target)
			if _, ok := full.Sources[resolved]; !ok {
				// Remapped or externally provided path; the compiler
				// resolved it outside the sources map.
				continue
			}
			if !closure[resolved] {
				closure[resolved] = true
				queue = append(queue, resolved)
			}
		}
	}

	out := full.Clone()
	out.Sources = make(map[string]SourceContent, len(closure))
	for name := range closure {
		out.Sources[name] = full.Sources[name]
	}
	return out, nil
}

// sourceImports extracts the import targets of a source file.
func sourceImports(content string) []string {
	var targets []string
	for _, match := range importPattern.FindAllStringSubmatch(content, -1) {
		targets = append(targets, match[1])
	}
	return targets
}

// resolveImport resolves an import target against the importing file.
// Relative targets are joined to the importer's directory; anything else
// is a direct source name.
func resolveImport(importer, target string) string {
	if strings.HasPrefix(target, "./") || strings.HasPrefix(target, "../") {
		return path.Join(path.Dir(importer), target)
	}
	return target
}
