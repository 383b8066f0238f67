package extract

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// pythonParser turns Python source into symbols and references via
// tree-sitter. It is the only language the index models.
type pythonParser struct {
	parser *sitter.Parser
}

func newPythonParser() *pythonParser {
	p := sitter.NewParser()
	p.SetLanguage(python.GetLanguage())
	return &pythonParser{parser: p}
}

func (p *pythonParser) extensions() []string {
	return []string{".py", ".pyw"}
}

func (p *pythonParser) parse(path string, content []byte) (*FileExtract, error) {
	tree, err := p.parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	result := &FileExtract{
		Path:          path,
		Symbols:       make([]Symbol, 0),
		Imports:       make([]string, 0),
		ImportAliases: make(map[string]string),
	}

	root := tree.RootNode()

	// Every file contributes a module symbol; import edges hang off it.
	result.Symbols = append(result.Symbols, Symbol{
		Name:      path,
		QualName:  path,
		Kind:      SymbolModule,
		Line:      1,
		EndLine:   int(root.EndPoint().Row) + 1,
		StartByte: 0,
		EndByte:   int(root.EndByte()),
	})

	p.extractSymbols(root, content, result, "")

	return result, nil
}

func (p *pythonParser) extractSymbols(node *sitter.Node, content []byte, result *FileExtract, scope string) {
	switch node.Type() {
	case "function_definition":
		sym := p.extractFunction(node, content, scope)
		if sym != nil {
			result.Symbols = append(result.Symbols, *sym)
		}
		// Nested functions fold into their parent's range.
		return

	case "class_definition":
		sym := p.extractClass(node, content, scope)
		if sym != nil {
			result.Symbols = append(result.Symbols, *sym)
			if bodyNode := node.ChildByFieldName("body"); bodyNode != nil {
				for i := 0; i < int(bodyNode.ChildCount()); i++ {
					p.extractSymbols(bodyNode.Child(i), content, result, sym.QualName)
				}
			}
		}
		return

	case "import_statement":
		imports, aliases := p.extractImport(node, content)
		result.Imports = append(result.Imports, imports...)
		mergeAliases(result.ImportAliases, aliases)

	case "import_from_statement":
		imports, aliases := p.extractFromImport(node, content)
		result.Imports = append(result.Imports, imports...)
		mergeAliases(result.ImportAliases, aliases)

	case "decorator":
		// Decorator expressions run at definition time; they are module-level
		// calls wherever they appear.
		result.Symbols[0].Calls = append(result.Symbols[0].Calls, p.extractCalls(node, content)...)

	case "expression_statement":
		if scope == "" {
			if sym := p.extractBinding(node, content); sym != nil {
				result.Symbols = append(result.Symbols, *sym)
			} else {
				// Bare module-level calls hang off the module symbol, the
				// same anchor import edges use.
				result.Symbols[0].Calls = append(result.Symbols[0].Calls, p.extractCalls(node, content)...)
			}
		}
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		p.extractSymbols(node.Child(i), content, result, scope)
	}
}

func (p *pythonParser) extractFunction(node *sitter.Node, content []byte, scope string) *Symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}

	name := nameNode.Content(content)
	kind := SymbolFunction
	qualName := name
	if scope != "" {
		kind = SymbolMethod
		qualName = scope + "." + name
	}

	bodyNode := node.ChildByFieldName("body")

	return &Symbol{
		Name:      name,
		QualName:  qualName,
		Kind:      kind,
		Signature: p.buildFunctionSignature(node, content),
		Line:      int(node.StartPoint().Row) + 1,
		EndLine:   int(node.EndPoint().Row) + 1,
		StartByte: int(node.StartByte()),
		EndByte:   int(node.EndByte()),
		Doc:       docstringOf(bodyNode, content),
		Calls:     p.extractCalls(bodyNode, content),
	}
}

func (p *pythonParser) extractClass(node *sitter.Node, content []byte, scope string) *Symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}

	name := nameNode.Content(content)
	qualName := name
	if scope != "" {
		qualName = scope + "." + name
	}

	return &Symbol{
		Name:      name,
		QualName:  qualName,
		Kind:      SymbolClass,
		Signature: p.buildClassSignature(node, content),
		Line:      int(node.StartPoint().Row) + 1,
		EndLine:   int(node.EndPoint().Row) + 1,
		StartByte: int(node.StartByte()),
		EndByte:   int(node.EndByte()),
		Doc:       docstringOf(node.ChildByFieldName("body"), content),
	}
}

// extractBinding picks up module-level assignments like CONFIG = {...}.
func (p *pythonParser) extractBinding(node *sitter.Node, content []byte) *Symbol {
	if node.ChildCount() == 0 {
		return nil
	}
	assign := node.Child(0)
	if assign == nil || assign.Type() != "assignment" {
		return nil
	}
	left := assign.ChildByFieldName("left")
	if left == nil || left.Type() != "identifier" {
		return nil
	}

	name := left.Content(content)
	return &Symbol{
		Name:      name,
		QualName:  name,
		Kind:      SymbolBinding,
		Line:      int(node.StartPoint().Row) + 1,
		EndLine:   int(node.EndPoint().Row) + 1,
		StartByte: int(node.StartByte()),
		EndByte:   int(node.EndByte()),
		Calls:     p.extractCalls(assign.ChildByFieldName("right"), content),
	}
}

func (p *pythonParser) extractImport(node *sitter.Node, content []byte) ([]string, map[string]string) {
	imports := make([]string, 0)
	aliases := make(map[string]string)
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "dotted_name":
			module := strings.TrimSpace(child.Content(content))
			if module != "" {
				imports = append(imports, module)
				aliases[defaultImportAlias(module)] = module
			}
		case "aliased_import":
			module := ""
			if nameNode := child.ChildByFieldName("name"); nameNode != nil {
				module = strings.TrimSpace(nameNode.Content(content))
			}
			alias := ""
			if aliasNode := child.ChildByFieldName("alias"); aliasNode != nil {
				alias = strings.TrimSpace(aliasNode.Content(content))
			}
			if module != "" {
				imports = append(imports, module)
				if alias == "" {
					alias = defaultImportAlias(module)
				}
				aliases[alias] = module
			}
		}
	}
	return imports, aliases
}

func (p *pythonParser) extractFromImport(node *sitter.Node, content []byte) ([]string, map[string]string) {
	aliases := make(map[string]string)
	moduleNode := node.ChildByFieldName("module_name")
	if moduleNode == nil {
		return nil, aliases
	}
	moduleName := strings.TrimSpace(moduleNode.Content(content))
	if moduleName == "" {
		return nil, aliases
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		if node.FieldNameForChild(i) != "name" {
			continue
		}
		child := node.Child(i)
		if child == nil {
			continue
		}

		switch child.Type() {
		case "aliased_import":
			importedName := ""
			if nameNode := child.ChildByFieldName("name"); nameNode != nil {
				importedName = strings.TrimSpace(nameNode.Content(content))
			}
			aliasName := ""
			if aliasNode := child.ChildByFieldName("alias"); aliasNode != nil {
				aliasName = strings.TrimSpace(aliasNode.Content(content))
			}
			if aliasName != "" && importedName != "" {
				aliases[aliasName] = moduleName + "#" + importedName
			}
		case "dotted_name", "identifier":
			importedName := strings.TrimSpace(child.Content(content))
			if importedName != "" {
				aliases[importedName] = moduleName + "#" + importedName
			}
		}
	}

	return []string{moduleName}, aliases
}

func (p *pythonParser) buildFunctionSignature(node *sitter.Node, content []byte) string {
	nameNode := node.ChildByFieldName("name")
	paramsNode := node.ChildByFieldName("parameters")
	returnNode := node.ChildByFieldName("return_type")

	sig := "def"
	if nameNode != nil {
		sig += " " + nameNode.Content(content)
	}
	if paramsNode != nil {
		sig += paramsNode.Content(content)
	}
	if returnNode != nil {
		sig += " -> " + returnNode.Content(content)
	}
	return sig
}

func (p *pythonParser) buildClassSignature(node *sitter.Node, content []byte) string {
	nameNode := node.ChildByFieldName("name")
	superclassNode := node.ChildByFieldName("superclasses")

	sig := "class"
	if nameNode != nil {
		sig += " " + nameNode.Content(content)
	}
	if superclassNode != nil {
		sig += superclassNode.Content(content)
	}
	return sig
}

func (p *pythonParser) extractCalls(bodyNode *sitter.Node, content []byte) []CallSite {
	if bodyNode == nil {
		return nil
	}

	calls := make([]CallSite, 0)
	p.collectCalls(bodyNode, content, &calls)
	return calls
}

func (p *pythonParser) collectCalls(node *sitter.Node, content []byte, calls *[]CallSite) {
	if node == nil {
		return
	}

	if node.Type() == "call" {
		if site := p.extractCallSite(node, content); site.Name != "" {
			*calls = append(*calls, site)
		}
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		p.collectCalls(node.Child(i), content, calls)
	}
}

func (p *pythonParser) extractCallSite(callNode *sitter.Node, content []byte) CallSite {
	name, qualifier := p.extractCallName(callNode.ChildByFieldName("function"), content)
	return CallSite{
		Name:      name,
		Qualifier: qualifier,
		Line:      int(callNode.StartPoint().Row) + 1,
	}
}

func (p *pythonParser) extractCallName(node *sitter.Node, content []byte) (name, qualifier string) {
	if node == nil {
		return "", ""
	}

	switch node.Type() {
	case "identifier":
		return node.Content(content), ""
	case "attribute":
		object := node.ChildByFieldName("object")
		attr := node.ChildByFieldName("attribute")
		if attr != nil {
			qualifierValue := ""
			if object != nil {
				qualifierValue = strings.TrimSpace(object.Content(content))
			}
			return attr.Content(content), qualifierValue
		}
	case "parenthesized_expression":
		return p.extractCallName(node.ChildByFieldName("expression"), content)
	case "subscript":
		return p.extractCallName(node.ChildByFieldName("value"), content)
	}

	qualifierValue, nameValue := splitQualifiedName(node.Content(content))
	if nameValue != "" {
		return nameValue, qualifierValue
	}
	return strings.TrimSpace(node.Content(content)), ""
}

func docstringOf(bodyNode *sitter.Node, content []byte) string {
	if bodyNode == nil || bodyNode.ChildCount() == 0 {
		return ""
	}
	firstStmt := bodyNode.Child(0)
	if firstStmt.Type() != "expression_statement" || firstStmt.ChildCount() == 0 {
		return ""
	}
	expr := firstStmt.Child(0)
	if expr.Type() != "string" {
		return ""
	}
	return cleanDocstring(expr.Content(content))
}

func cleanDocstring(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, `"""`) && strings.HasSuffix(s, `"""`) && len(s) >= 6 {
		s = s[3 : len(s)-3]
	} else if strings.HasPrefix(s, `'''`) && strings.HasSuffix(s, `'''`) && len(s) >= 6 {
		s = s[3 : len(s)-3]
	}
	if idx := strings.Index(s, "\n"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

func splitQualifiedName(raw string) (qualifier, name string) {
	raw = strings.TrimSpace(raw)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 {
		return "", raw
	}
	return raw[:idx], raw[idx+1:]
}

func defaultImportAlias(module string) string {
	segments := strings.Split(module, ".")
	return segments[len(segments)-1]
}

func mergeAliases(dst, src map[string]string) {
	for alias, target := range src {
		if alias == "" || target == "" {
			continue
		}
		if _, exists := dst[alias]; !exists {
			dst[alias] = target
		}
	}
}
