package engine

import (
	"strings"
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_csharp "github.com/tree-sitter/tree-sitter-c-sharp/bindings/go"

	"github.com/standardbeagle/lwi/internal/debug"
	"github.com/standardbeagle/lwi/internal/types"
)

// declarationQuery captures every named declaration a unit can contribute
// to the symbol index. Each capture carries a .name sub-capture with the
// identifier node.
const declarationQuery = `
    (namespace_declaration name: (qualified_name) @namespace.name) @namespace
    (namespace_declaration name: (identifier) @namespace.name) @namespace
    (file_scoped_namespace_declaration name: (qualified_name) @namespace.name) @namespace
    (file_scoped_namespace_declaration name: (identifier) @namespace.name) @namespace
    (class_declaration name: (identifier) @class.name) @class
    (interface_declaration name: (identifier) @interface.name) @interface
    (struct_declaration name: (identifier) @struct.name) @struct
    (record_declaration name: (identifier) @record.name) @record
    (enum_declaration name: (identifier) @enum.name) @enum
    (method_declaration name: (identifier) @method.name) @method
    (constructor_declaration name: (identifier) @constructor.name) @constructor
    (property_declaration name: (identifier) @property.name) @property
    (field_declaration
        (variable_declaration
            (variable_declarator (identifier) @field.name))) @field
    (event_field_declaration
        (variable_declaration
            (variable_declarator (identifier) @event.name))) @event
    (delegate_declaration name: (identifier) @delegate.name) @delegate
`

var captureKinds = map[string]types.SymbolKind{
	"namespace":   types.KindNamespace,
	"class":       types.KindClass,
	"interface":   types.KindInterface,
	"struct":      types.KindStruct,
	"record":      types.KindRecord,
	"enum":        types.KindEnum,
	"method":      types.KindMethod,
	"constructor": types.KindConstructor,
	"property":    types.KindProperty,
	"field":       types.KindField,
	"event":       types.KindEvent,
	"delegate":    types.KindDelegate,
}

// unitParser owns the per-goroutine tree-sitter state. Parsers are not
// safe for concurrent use, so each one lives in a pool slot.
type unitParser struct {
	parser   *tree_sitter.Parser
	language *tree_sitter.Language
	query    *tree_sitter.Query
}

var parserPool = sync.Pool{
	New: func() any { return newUnitParser() },
}

func newUnitParser() *unitParser {
	parser := tree_sitter.NewParser()
	language := tree_sitter.NewLanguage(tree_sitter_csharp.Language())
	if err := parser.SetLanguage(language); err != nil {
		return &unitParser{}
	}
	query, _ := tree_sitter.NewQuery(language, declarationQuery)
	// Go binding returns a typed-nil error on success, so gate on the
	// query pointer instead.
	if query == nil {
		return &unitParser{}
	}
	return &unitParser{parser: parser, language: language, query: query}
}

// extractSymbols parses one unit's content and returns its declared
// symbols. A unit that fails to parse contributes no symbols; the unit
// itself stays tracked so a later edit can recover it.
func extractSymbols(path string, content []byte) []types.SymbolRef {
	up := parserPool.Get().(*unitParser)
	defer parserPool.Put(up)
	if up.parser == nil || up.query == nil {
		return nil
	}

	tree := up.parser.Parse(content, nil)
	if tree == nil {
		debug.LogEngine("parse produced no tree for %s\n", path)
		return nil
	}
	defer tree.Close()

	qc := tree_sitter.NewQueryCursor()
	defer qc.Close()
	matches := qc.Matches(up.query, tree.RootNode(), content)
	captureNames := up.query.CaptureNames()

	var symbols []types.SymbolRef
	for {
		match := matches.Next()
		if match == nil {
			break
		}

		var name string
		var kind types.SymbolKind
		var line, column int
		for _, c := range match.Captures {
			captureName := captureNames[c.Index]
			if sub, ok := strings.CutSuffix(captureName, ".name"); ok {
				name = string(content[c.Node.StartByte():c.Node.EndByte()])
				kind = captureKinds[sub]
				pos := c.Node.StartPosition()
				line = int(pos.Row) + 1
				column = int(pos.Column) + 1
			}
		}
		if name == "" || kind == types.KindUnknown {
			continue
		}
		symbols = append(symbols, types.SymbolRef{
			Name:   name,
			Kind:   kind,
			Line:   line,
			Column: column,
		})
	}
	return symbols
}
