// Package pyimports lists the modules a Python statement imports, using the
// tree-sitter Python grammar.
package pyimports

import (
	"context"
	"sync"

	"github.com/alexaandru/go-sitter-forest/python"
	sitter "github.com/alexaandru/go-tree-sitter-bare"
)

// Node types of the tree-sitter Python grammar.
const (
	nodeImport       = "import_statement"
	nodeImportFrom   = "import_from_statement"
	nodeFutureImport = "future_import_statement"
	nodeDottedName   = "dotted_name"
	nodeAliased      = "aliased_import"
	nodeError        = "ERROR"

	fieldName       = "name"
	fieldModuleName = "module_name"

	futureModule = "__future__"
)

var (
	languageOnce sync.Once
	language     *sitter.Language
)

func pythonLanguage() *sitter.Language {
	languageOnce.Do(func() {
		language = sitter.NewLanguage(python.GetLanguage())
	})

	return language
}

var parserPool = sync.Pool{
	New: func() any {
		parser := sitter.NewParser()
		parser.SetLanguage(pythonLanguage())

		return parser
	},
}

// Extract returns the module names imported by stmt, in source order.
// `import a.b as c, d` yields a.b and d; `from ..x import y` yields ..x.
// Statements that import nothing, or cannot be parsed, yield nil.
func Extract(stmt string) []string {
	if stmt == "" {
		return nil
	}

	parser, ok := parserPool.Get().(*sitter.Parser)
	if !ok {
		return nil
	}

	defer parserPool.Put(parser)

	src := []byte(stmt)

	tree, err := parser.ParseString(context.Background(), nil, src)
	if err != nil {
		return nil
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.IsNull() {
		return nil
	}

	var modules []string

	collect(root, src, &modules)

	return modules
}

func collect(node sitter.Node, src []byte, modules *[]string) {
	switch node.Type() {
	case nodeError:
		return
	case nodeFutureImport:
		*modules = append(*modules, futureModule)

		return
	case nodeImport:
		for idx := range node.NamedChildCount() {
			child := node.NamedChild(idx)

			switch child.Type() {
			case nodeDottedName:
				*modules = append(*modules, text(child, src))
			case nodeAliased:
				if name := child.ChildByFieldName(fieldName); !name.IsNull() {
					*modules = append(*modules, text(name, src))
				}
			}
		}

		return
	case nodeImportFrom:
		if module := node.ChildByFieldName(fieldModuleName); !module.IsNull() {
			*modules = append(*modules, text(module, src))
		}

		return
	}

	for idx := range node.NamedChildCount() {
		collect(node.NamedChild(idx), src, modules)
	}
}

func text(node sitter.Node, src []byte) string {
	start, end := node.StartByte(), node.EndByte()
	if end > uint(len(src)) || start > end {
		return ""
	}

	return string(src[start:end])
}
