package extract

import (
	"fmt"
	"sort"
	"strings"
)

// SymbolKind is the closed set of declaration kinds the extractor emits.
type SymbolKind int

const (
	SymbolModule SymbolKind = iota
	SymbolFunction
	SymbolClass
	SymbolMethod
	SymbolBinding
)

func (k SymbolKind) String() string {
	switch k {
	case SymbolModule:
		return "module"
	case SymbolFunction:
		return "func"
	case SymbolClass:
		return "class"
	case SymbolMethod:
		return "method"
	case SymbolBinding:
		return "binding"
	default:
		return "unknown"
	}
}

// CallSite captures an invocation or attribute reference found inside a
// symbol body.
type CallSite struct {
	Name      string `json:"name"`
	Qualifier string `json:"qualifier,omitempty"`
	Line      int    `json:"line,omitempty"`
}

// Symbol is one extracted declaration. StartByte/EndByte delimit the source
// range so a changed file can be re-extracted without touching neighbors.
type Symbol struct {
	ID        string
	Name      string
	QualName  string
	Kind      SymbolKind
	Line      int
	EndLine   int
	StartByte int
	EndByte   int
	Signature string
	Doc       string
	Calls     []CallSite
}

// FileExtract holds everything pulled out of a single file. Extraction is
// pure: identical bytes always produce an identical FileExtract.
type FileExtract struct {
	Path          string
	Fingerprint   string
	Symbols       []Symbol
	Imports       []string
	ImportAliases map[string]string
}

// ParseIssue records a non-fatal extraction failure. Issues never abort the
// indexing of other files.
type ParseIssue struct {
	File    string `json:"file"`
	Message string `json:"message"`
}

func normalizeStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" || seen[value] {
			continue
		}
		seen[value] = true
		out = append(out, value)
	}
	sort.Strings(out)
	return out
}

func normalizeCallSites(values []CallSite) []CallSite {
	if len(values) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(values))
	out := make([]CallSite, 0, len(values))
	for _, value := range values {
		value.Name = strings.TrimSpace(value.Name)
		value.Qualifier = strings.TrimSpace(value.Qualifier)
		if value.Name == "" {
			continue
		}
		key := fmt.Sprintf("%s|%s|%d", value.Name, value.Qualifier, value.Line)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, value)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		if out[i].Qualifier != out[j].Qualifier {
			return out[i].Qualifier < out[j].Qualifier
		}
		return out[i].Name < out[j].Name
	})

	return out
}

func normalizeImportAliases(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}

	out := make(map[string]string, len(values))
	for alias, target := range values {
		alias = strings.TrimSpace(alias)
		target = strings.TrimSpace(target)
		if alias == "" || target == "" {
			continue
		}
		out[alias] = target
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
