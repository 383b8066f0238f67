package extract

import "fmt"

// StableSymbolID returns a deterministic ID for a symbol.
// Format: file|kind|qualname. Line numbers are deliberately excluded so an
// unrelated edit above a symbol does not change its identity.
func StableSymbolID(file string, symbol Symbol) string {
	return fmt.Sprintf("%s|%s|%s", file, symbol.Kind.String(), symbol.QualName)
}

// FileSymbolID identifies the module-level symbol that stands in for a file.
func FileSymbolID(file string) string {
	return fmt.Sprintf("%s|%s|%s", file, SymbolModule.String(), file)
}
