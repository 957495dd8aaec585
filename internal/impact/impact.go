package impact

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/lwa/internal/debug"
	lwaerrors "github.com/standardbeagle/lwa/internal/errors"
	"github.com/standardbeagle/lwa/internal/types"
)

var errParseFailed = errors.New("parse failed")

// Verdict is the outcome of classifying a single edit.
type Verdict int

const (
	// VerdictFullDocument means the edit may change the document's declared
	// shape; all analysis for the document must be redone and dependents
	// notified.
	VerdictFullDocument Verdict = iota
	// VerdictSyntaxOnly means the edit is confined to one member body (or
	// trivia) and leaves every declaration signature intact.
	VerdictSyntaxOnly
)

func (v Verdict) String() string {
	if v == VerdictSyntaxOnly {
		return "syntax-only"
	}
	return "full-document"
}

// MemberID identifies a member by its ordinal path among declaration nodes
// from the root, e.g. "0.2.1". The path is independent of node kinds so the
// same shape of edit produces the same identity across languages.
type MemberID string

// Analysis carries the verdict plus the member the edit was confined to,
// when one was found on both sides of the edit.
type Analysis struct {
	Verdict Verdict
	Member  MemberID
}

// Analyzer classifies edits against the language grammars. Parsers are
// created lazily per language and reused; Analyzer is safe for concurrent
// use but serializes parses through one parser per language.
type Analyzer struct {
	mu       sync.Mutex
	grammars map[string]*Grammar
	parsers  map[string]*tree_sitter.Parser
}

// NewAnalyzer creates an analyzer covering all registered grammars.
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		grammars: Grammars(),
		parsers:  make(map[string]*tree_sitter.Parser),
	}
}

// Close releases all cached parsers.
func (a *Analyzer) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, p := range a.parsers {
		p.Close()
	}
	a.parsers = make(map[string]*tree_sitter.Parser)
}

func (a *Analyzer) parser(language string) (*tree_sitter.Parser, *Grammar, error) {
	grammar, ok := a.grammars[language]
	if !ok {
		return nil, nil, nil
	}
	if p, ok := a.parsers[language]; ok {
		return p, grammar, nil
	}
	p := tree_sitter.NewParser()
	if err := p.SetLanguage(grammar.Language()); err != nil {
		p.Close()
		return nil, nil, lwaerrors.NewImpactError(language, types.Span{}, fmt.Errorf("set language: %w", err))
	}
	a.parsers[language] = p
	return p, grammar, nil
}

// ClassifyEdit determines whether replacing oldSpan in oldText with the
// bytes now occupying newSpan in newText can affect anything beyond the
// edited member's body. Unknown languages and unparseable content classify
// as full-document; the analyzer never errs toward syntax-only.
func (a *Analyzer) ClassifyEdit(language string, oldText, newText []byte, oldSpan, newSpan types.Span) (Analysis, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	parser, grammar, err := a.parser(language)
	if err != nil {
		return Analysis{Verdict: VerdictFullDocument}, err
	}
	if parser == nil {
		debug.LogImpact("no grammar for language %q, classifying full-document", language)
		return Analysis{Verdict: VerdictFullDocument}, nil
	}

	oldTree := parser.Parse(oldText, nil)
	if oldTree == nil {
		return Analysis{Verdict: VerdictFullDocument}, lwaerrors.NewImpactError(language, oldSpan, errParseFailed)
	}
	defer oldTree.Close()

	newTree := parser.Parse(newText, nil)
	if newTree == nil {
		return Analysis{Verdict: VerdictFullDocument}, lwaerrors.NewImpactError(language, newSpan, errParseFailed)
	}
	defer newTree.Close()

	// Broken trees on either side mean the member structure cannot be
	// trusted near the edit.
	if oldTree.RootNode().HasError() || newTree.RootNode().HasError() {
		debug.LogImpact("parse errors near edit in %s document, classifying full-document", language)
		return Analysis{Verdict: VerdictFullDocument}, nil
	}

	// Comment edits: harmless unless the comment is leading trivia attached
	// to a declaration, where it may feed generated member documentation.
	oldComment := enclosingComment(grammar, oldTree, oldSpan)
	newComment := enclosingComment(grammar, newTree, newSpan)
	if oldComment != nil || newComment != nil {
		if oldComment == nil || newComment == nil {
			return Analysis{Verdict: VerdictFullDocument}, nil
		}
		if attachedToDeclaration(grammar, oldComment) || attachedToDeclaration(grammar, newComment) {
			debug.LogImpact("edit in declaration-leading comment, classifying full-document")
			return Analysis{Verdict: VerdictFullDocument}, nil
		}
		if outsideIdentical(oldText, newText, oldComment, newComment) {
			return Analysis{Verdict: VerdictSyntaxOnly}, nil
		}
		return Analysis{Verdict: VerdictFullDocument}, nil
	}

	oldSite := locateEditSite(grammar, oldTree, oldSpan)
	newSite := locateEditSite(grammar, newTree, newSpan)
	if oldSite == nil || newSite == nil {
		return Analysis{Verdict: VerdictFullDocument}, nil
	}

	oldID := memberPath(grammar, oldSite.declaration)
	newID := memberPath(grammar, newSite.declaration)
	if oldID != newID {
		debug.LogImpact("edit moved between members %s and %s, classifying full-document", oldID, newID)
		return Analysis{Verdict: VerdictFullDocument}, nil
	}

	if !signaturesMatch(oldText, newText, oldSite, newSite) {
		debug.LogImpact("signature of member %s changed, classifying full-document", oldID)
		return Analysis{Verdict: VerdictFullDocument, Member: oldID}, nil
	}

	return Analysis{Verdict: VerdictSyntaxOnly, Member: oldID}, nil
}

// editSite is a member body that contains an edit, together with its
// enclosing declaration.
type editSite struct {
	body        *tree_sitter.Node
	declaration *tree_sitter.Node
}

// locateEditSite finds the member body the span is confined to, or nil when
// the span touches anything outside a body. Braced bodies require the span
// to fall strictly between the delimiters so that deleting a brace is never
// treated as a body-internal edit.
func locateEditSite(grammar *Grammar, tree *tree_sitter.Tree, span types.Span) *editSite {
	node := smallestNodeCovering(tree.RootNode(), span)
	for node != nil {
		kind := node.Kind()
		if grammar.isBody(kind) && bodyConfines(grammar, node, span) {
			decl := enclosingDeclaration(grammar, node)
			if decl != nil {
				return &editSite{body: node, declaration: decl}
			}
			return nil
		}
		if field, ok := grammar.bodyFields[kind]; ok {
			value := node.ChildByFieldName(field)
			if value != nil && spanWithin(span, value) {
				decl := enclosingDeclaration(grammar, node)
				if decl != nil {
					return &editSite{body: value, declaration: decl}
				}
				return nil
			}
		}
		node = node.Parent()
	}
	return nil
}

func bodyConfines(grammar *Grammar, body *tree_sitter.Node, span types.Span) bool {
	if grammar.bracedBodyKinds[body.Kind()] {
		return span.Start > body.StartByte() && span.End < body.EndByte()
	}
	return spanWithin(span, body)
}

func spanWithin(span types.Span, node *tree_sitter.Node) bool {
	return span.Start >= node.StartByte() && span.End <= node.EndByte()
}

// smallestNodeCovering descends to the deepest node whose byte range covers
// the span. Works on empty spans (pure insertions) as well.
func smallestNodeCovering(node *tree_sitter.Node, span types.Span) *tree_sitter.Node {
	for {
		var next *tree_sitter.Node
		count := int(node.ChildCount())
		for i := 0; i < count; i++ {
			child := node.Child(uint(i))
			if child == nil {
				continue
			}
			if span.Start >= child.StartByte() && span.End <= child.EndByte() {
				next = child
				break
			}
		}
		if next == nil {
			return node
		}
		node = next
	}
}

func enclosingDeclaration(grammar *Grammar, node *tree_sitter.Node) *tree_sitter.Node {
	for cur := node.Parent(); cur != nil; cur = cur.Parent() {
		if grammar.IsDeclaration(cur.Kind()) {
			return cur
		}
	}
	return nil
}

// memberPath builds the ordinal identity of a declaration: at every level
// from the root down, the index of the ancestor among its declaration-kind
// siblings. Whitespace and body edits elsewhere in the file do not disturb
// it; adding or removing a preceding member does.
func memberPath(grammar *Grammar, decl *tree_sitter.Node) MemberID {
	var ordinals []string
	for cur := decl; cur != nil; {
		parent := cur.Parent()
		if parent == nil {
			break
		}
		index := 0
		count := int(parent.ChildCount())
		for i := 0; i < count; i++ {
			sibling := parent.Child(uint(i))
			if sibling == nil {
				continue
			}
			if sibling.StartByte() == cur.StartByte() && sibling.EndByte() == cur.EndByte() && sibling.Kind() == cur.Kind() {
				break
			}
			if grammar.IsDeclaration(sibling.Kind()) {
				index++
			}
		}
		ordinals = append(ordinals, strconv.Itoa(index))
		if grammar.IsDeclaration(parent.Kind()) {
			cur = parent
		} else {
			cur = enclosingDeclaration(grammar, parent)
			if cur != nil {
				// Re-anchor: the ordinal of the container itself is emitted
				// on the next loop pass.
				continue
			}
			break
		}
	}
	// Reverse into root-first order.
	for i, j := 0, len(ordinals)-1; i < j; i, j = i+1, j-1 {
		ordinals[i], ordinals[j] = ordinals[j], ordinals[i]
	}
	return MemberID(strings.Join(ordinals, "."))
}

// signaturesMatch compares the member's text with its edited body carved
// out. If the prefix before the body and the suffix after it are identical
// on both sides, nothing visible outside the member changed.
func signaturesMatch(oldText, newText []byte, oldSite, newSite *editSite) bool {
	oldPrefix, oldSuffix := carveBody(oldText, oldSite)
	newPrefix, newSuffix := carveBody(newText, newSite)
	return oldPrefix == newPrefix && oldSuffix == newSuffix
}

func carveBody(text []byte, site *editSite) (prefix, suffix string) {
	declStart, declEnd := site.declaration.StartByte(), site.declaration.EndByte()
	bodyStart, bodyEnd := site.body.StartByte(), site.body.EndByte()
	return string(text[declStart:bodyStart]), string(text[bodyEnd:declEnd])
}

// outsideIdentical reports whether everything outside the comment is
// byte-identical between the two versions.
func outsideIdentical(oldText, newText []byte, oldComment, newComment *tree_sitter.Node) bool {
	oldBefore := string(oldText[:oldComment.StartByte()])
	oldAfter := string(oldText[oldComment.EndByte():])
	newBefore := string(newText[:newComment.StartByte()])
	newAfter := string(newText[newComment.EndByte():])
	return oldBefore == newBefore && oldAfter == newAfter
}

// attachedToDeclaration reports whether the comment is leading trivia of a
// declaration: the next non-comment sibling is a declaration-kind node.
func attachedToDeclaration(grammar *Grammar, comment *tree_sitter.Node) bool {
	parent := comment.Parent()
	if parent == nil {
		return false
	}
	count := int(parent.ChildCount())
	seen := false
	for i := 0; i < count; i++ {
		sibling := parent.Child(uint(i))
		if sibling == nil {
			continue
		}
		if !seen {
			if sibling.StartByte() == comment.StartByte() && sibling.EndByte() == comment.EndByte() {
				seen = true
			}
			continue
		}
		if grammar.isComment(sibling.Kind()) {
			continue
		}
		return grammar.IsDeclaration(sibling.Kind())
	}
	return false
}

func enclosingComment(grammar *Grammar, tree *tree_sitter.Tree, span types.Span) *tree_sitter.Node {
	for node := smallestNodeCovering(tree.RootNode(), span); node != nil; node = node.Parent() {
		if grammar.isComment(node.Kind()) {
			return node
		}
	}
	return nil
}
