package impact

import (
	tree_sitter_zig "github.com/tree-sitter-grammars/tree-sitter-zig/bindings/go"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_csharp "github.com/tree-sitter/tree-sitter-c-sharp/bindings/go"
	tree_sitter_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// Grammar describes one surface syntax to the impact analyzer: which node
// kinds are member declarations, which are member bodies, and which carry
// comments. Member identity and edit classification are defined once against
// these tables, never per concrete grammar.
type Grammar struct {
	Name     string
	language *tree_sitter.Language

	// declarationKinds are the node kinds that participate in ordinal member
	// identity: type containers and the members inside them.
	declarationKinds map[string]bool

	// bracedBodyKinds are brace-delimited member bodies. An edit must fall
	// strictly between the braces to stay confined.
	bracedBodyKinds map[string]bool

	// exprBodyKinds are expression-shaped bodies (arrow bodies, initializer
	// clauses, indented blocks). Containment is inclusive of the endpoints.
	exprBodyKinds map[string]bool

	// bodyFields maps a declaration kind to the field name holding its body
	// expression, for grammars that attach initializers without a wrapper
	// node (Java's variable_declarator value, JS field definitions).
	bodyFields map[string]string

	commentKinds map[string]bool
}

// Language returns the tree-sitter language for parser setup.
func (g *Grammar) Language() *tree_sitter.Language {
	return g.language
}

// IsDeclaration reports whether the node kind participates in member
// identity.
func (g *Grammar) IsDeclaration(kind string) bool {
	return g.declarationKinds[kind]
}

func (g *Grammar) isBody(kind string) bool {
	return g.bracedBodyKinds[kind] || g.exprBodyKinds[kind]
}

func (g *Grammar) isComment(kind string) bool {
	return g.commentKinds[kind]
}

func kindSet(kinds ...string) map[string]bool {
	set := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	return set
}

func grammarCSharp() *Grammar {
	return &Grammar{
		Name:     "csharp",
		language: tree_sitter.NewLanguage(tree_sitter_csharp.Language()),
		declarationKinds: kindSet(
			"namespace_declaration", "file_scoped_namespace_declaration",
			"class_declaration", "struct_declaration", "interface_declaration",
			"record_declaration", "enum_declaration", "delegate_declaration",
			"method_declaration", "constructor_declaration", "destructor_declaration",
			"operator_declaration", "conversion_operator_declaration",
			"property_declaration", "indexer_declaration", "event_declaration",
			"field_declaration", "event_field_declaration",
		),
		bracedBodyKinds: kindSet("block"),
		exprBodyKinds:   kindSet("arrow_expression_clause", "equals_value_clause"),
		bodyFields:      map[string]string{"variable_declarator": "value"},
		commentKinds:    kindSet("comment"),
	}
}

func grammarJava() *Grammar {
	return &Grammar{
		Name:     "java",
		language: tree_sitter.NewLanguage(tree_sitter_java.Language()),
		declarationKinds: kindSet(
			"class_declaration", "interface_declaration", "enum_declaration",
			"record_declaration", "annotation_type_declaration",
			"method_declaration", "constructor_declaration", "field_declaration",
		),
		bracedBodyKinds: kindSet("block", "constructor_body"),
		exprBodyKinds:   kindSet(),
		bodyFields:      map[string]string{"variable_declarator": "value"},
		commentKinds:    kindSet("line_comment", "block_comment"),
	}
}

func grammarGo() *Grammar {
	return &Grammar{
		Name:     "go",
		language: tree_sitter.NewLanguage(tree_sitter_go.Language()),
		declarationKinds: kindSet(
			"function_declaration", "method_declaration", "type_declaration",
			"const_declaration", "var_declaration",
		),
		bracedBodyKinds: kindSet("block"),
		exprBodyKinds:   kindSet(),
		commentKinds:    kindSet("comment"),
	}
}

func grammarPython() *Grammar {
	return &Grammar{
		Name:     "python",
		language: tree_sitter.NewLanguage(tree_sitter_python.Language()),
		declarationKinds: kindSet(
			"function_definition", "class_definition", "decorated_definition",
		),
		bracedBodyKinds: kindSet(),
		// Python bodies are indentation-delimited; inclusive containment.
		exprBodyKinds: kindSet("block"),
		commentKinds:  kindSet("comment"),
	}
}

func grammarTypeScript() *Grammar {
	return &Grammar{
		Name:     "typescript",
		language: tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript()),
		declarationKinds: kindSet(
			"class_declaration", "abstract_class_declaration",
			"interface_declaration", "enum_declaration", "type_alias_declaration",
			"function_declaration", "generator_function_declaration",
			"method_definition", "public_field_definition",
			"lexical_declaration", "variable_declaration",
		),
		bracedBodyKinds: kindSet("statement_block"),
		exprBodyKinds:   kindSet(),
		bodyFields: map[string]string{
			"variable_declarator":     "value",
			"public_field_definition": "value",
		},
		commentKinds: kindSet("comment"),
	}
}

func grammarJavaScript() *Grammar {
	return &Grammar{
		Name:     "javascript",
		language: tree_sitter.NewLanguage(tree_sitter_javascript.Language()),
		declarationKinds: kindSet(
			"class_declaration", "function_declaration",
			"generator_function_declaration", "method_definition",
			"field_definition", "lexical_declaration", "variable_declaration",
		),
		bracedBodyKinds: kindSet("statement_block"),
		exprBodyKinds:   kindSet(),
		bodyFields: map[string]string{
			"variable_declarator": "value",
			"field_definition":    "value",
		},
		commentKinds: kindSet("comment"),
	}
}

func grammarRust() *Grammar {
	return &Grammar{
		Name:     "rust",
		language: tree_sitter.NewLanguage(tree_sitter_rust.Language()),
		declarationKinds: kindSet(
			"function_item", "struct_item", "enum_item", "impl_item",
			"trait_item", "mod_item", "const_item", "static_item", "type_item",
		),
		bracedBodyKinds: kindSet("block"),
		exprBodyKinds:   kindSet(),
		commentKinds:    kindSet("line_comment", "block_comment"),
	}
}

func grammarCpp() *Grammar {
	return &Grammar{
		Name:     "cpp",
		language: tree_sitter.NewLanguage(tree_sitter_cpp.Language()),
		declarationKinds: kindSet(
			"function_definition", "class_specifier", "struct_specifier",
			"enum_specifier", "namespace_definition", "template_declaration",
			"declaration", "field_declaration",
		),
		bracedBodyKinds: kindSet("compound_statement"),
		exprBodyKinds:   kindSet(),
		commentKinds:    kindSet("comment"),
	}
}

func grammarPHP() *Grammar {
	return &Grammar{
		Name:     "php",
		language: tree_sitter.NewLanguage(tree_sitter_php.LanguagePHP()),
		declarationKinds: kindSet(
			"class_declaration", "interface_declaration", "trait_declaration",
			"enum_declaration", "function_definition", "method_declaration",
			"property_declaration", "const_declaration", "namespace_definition",
		),
		bracedBodyKinds: kindSet("compound_statement"),
		exprBodyKinds:   kindSet(),
		commentKinds:    kindSet("comment"),
	}
}

func grammarZig() *Grammar {
	return &Grammar{
		Name:     "zig",
		language: tree_sitter.NewLanguage(tree_sitter_zig.Language()),
		declarationKinds: kindSet(
			"function_declaration", "variable_declaration",
			"struct_declaration", "union_declaration", "enum_declaration",
		),
		bracedBodyKinds: kindSet("block"),
		exprBodyKinds:   kindSet(),
		commentKinds:    kindSet("comment"),
	}
}

// Grammars returns the full adapter set keyed by language name.
func Grammars() map[string]*Grammar {
	grammars := []*Grammar{
		grammarCSharp(),
		grammarJava(),
		grammarGo(),
		grammarPython(),
		grammarTypeScript(),
		grammarJavaScript(),
		grammarRust(),
		grammarCpp(),
		grammarPHP(),
		grammarZig(),
	}
	byName := make(map[string]*Grammar, len(grammars))
	for _, g := range grammars {
		byName[g.Name] = g
	}
	return byName
}

// LanguageForExtension maps a file extension (with dot) to a grammar name,
// or "" when the extension is not recognized.
func LanguageForExtension(ext string) string {
	switch ext {
	case ".cs":
		return "csharp"
	case ".java":
		return "java"
	case ".go":
		return "go"
	case ".py":
		return "python"
	case ".ts", ".tsx":
		return "typescript"
	case ".js", ".jsx", ".mjs":
		return "javascript"
	case ".rs":
		return "rust"
	case ".cpp", ".cc", ".cxx", ".c", ".h", ".hpp":
		return "cpp"
	case ".php", ".phtml":
		return "php"
	case ".zig":
		return "zig"
	default:
		return ""
	}
}
