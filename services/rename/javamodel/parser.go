// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package javamodel

import (
	"context"
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianRename/services/rename/model"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"
)

// Java tree-sitter node types.
const (
	nodePackage           = "package_declaration"
	nodeImport            = "import_declaration"
	nodeClass             = "class_declaration"
	nodeInterface         = "interface_declaration"
	nodeEnum              = "enum_declaration"
	nodeRecord            = "record_declaration"
	nodeMethod            = "method_declaration"
	nodeConstructor       = "constructor_declaration"
	nodeField             = "field_declaration"
	nodeConstant          = "constant_declaration"
	nodeModifiers         = "modifiers"
	nodeSuperclass        = "superclass"
	nodeSuperInterfaces   = "super_interfaces"
	nodeExtendsInterfaces = "extends_interfaces"
	nodeTypeList          = "type_list"
	nodeEnumBodyDecls     = "enum_body_declarations"
	nodeFormalParameter   = "formal_parameter"
	nodeSpreadParameter   = "spread_parameter"
	nodeVarDeclarator     = "variable_declarator"
	nodeLocalVar          = "local_variable_declaration"
	nodeEnhancedFor       = "enhanced_for_statement"
	nodeInvocation        = "method_invocation"
	nodeNew               = "object_creation_expression"
	nodeIdentifier        = "identifier"
	nodeScopedIdentifier  = "scoped_identifier"
	nodeTypeIdentifier    = "type_identifier"
	nodeScopedType        = "scoped_type_identifier"
	nodeGenericType       = "generic_type"
	nodeArrayType         = "array_type"
	nodeVoidType          = "void_type"
	nodeIntegralType      = "integral_type"
	nodeFloatType         = "floating_point_type"
	nodeBooleanType       = "boolean_type"
	nodeThis              = "this"
	nodeSuper             = "super"
	nodeError             = "ERROR"
)

// nodeCheckInterval is how many body nodes are visited between context checks.
const nodeCheckInterval = 256

// =============================================================================
// Extracted declarations
// =============================================================================

type typeKind int

const (
	kindClass typeKind = iota
	kindInterface
	kindEnum
	kindRecord
)

// unit is the extraction result of one compilation unit.
type unit struct {
	container model.ContainerID
	project   model.ProjectID
	archive   bool
	pkg       string
	imports   []importDecl
	types     []*typeDecl
	syntax    *model.ReparseError
}

type importDecl struct {
	path     string
	onDemand bool
	static   bool
}

type typeDecl struct {
	id        model.TypeID
	name      string
	kind      typeKind
	abstract  bool
	vis       model.Visibility
	nameRange model.Range
	outer     *typeDecl
	unit      *unit

	superclass *typeRef
	interfaces []typeRef
	methods    []*methodDecl
	fields     map[string]typeRef
	bodies     []*body
}

func (t *typeDecl) concrete() bool {
	return (t.kind == kindClass || t.kind == kindEnum || t.kind == kindRecord) && !t.abstract
}

// typeRef is a type as written, generics stripped.
type typeRef struct {
	name      string
	dims      int
	primitive bool
}

// erased returns the simple name used in signatures.
func (r typeRef) erased() string {
	name := r.name
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return name + strings.Repeat("[]", r.dims)
}

func (r typeRef) reference() bool { return !r.primitive && r.dims == 0 && r.name != "" }

var voidType = typeRef{name: "void", primitive: true}

type methodDecl struct {
	owner     *typeDecl
	ordinal   int
	name      string
	nameRange model.Range
	params    []typeRef
	varargs   bool
	ret       typeRef
	vis       model.Visibility
	static    bool
	abstract  bool
	body      *body
}

func (m *methodDecl) signature() string {
	parts := make([]string, len(m.params))
	for i, p := range m.params {
		parts[i] = p.erased()
	}
	return "(" + strings.Join(parts, ",") + ")"
}

func (m *methodDecl) accepts(arity int) bool {
	n := len(m.params)
	if m.varargs {
		return arity >= n-1
	}
	return arity == n
}

func (m *methodDecl) key() model.BindingKey {
	return model.BindingKey(fmt.Sprintf("%s#m%d", m.owner.id, m.ordinal))
}

func (m *methodDecl) id() model.MethodID {
	return model.MethodID{
		Type:      m.owner.id,
		Name:      m.name,
		Signature: m.signature(),
		Binary:    m.owner.unit.archive,
	}
}

// body is a method or constructor body with its local declarations.
type body struct {
	owner  *typeDecl
	locals map[string]typeRef
	calls  []*invocation
}

type receiverKind int

const (
	recvNone receiverKind = iota
	recvThis
	recvSuper
	recvName
	recvNew
	recvCall
	recvOther
)

type invocation struct {
	name      string
	nameRange model.Range
	arity     int
	recv      receiverKind
	recvName  string
	recvType  typeRef
	recvCall  *invocation
	body      *body
}

// =============================================================================
// Parsing
// =============================================================================

// parseUnit parses one compilation unit with its own tree-sitter parser.
//
// Syntax errors do not fail the call; they are recorded on unit.syntax and
// extraction continues on the error-tolerant tree.
func parseUnit(ctx context.Context, src *Source, maxFileSize int64) (*unit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if maxFileSize > 0 && int64(len(src.Content)) > maxFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit %d", ErrFileTooLarge, src.Container, len(src.Content), maxFileSize)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(java.GetLanguage())
	tree, err := parser.ParseCtx(ctx, nil, src.Content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse of %s failed: %w", src.Container, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	u := &unit{container: src.Container, project: src.Project, archive: src.Archive}
	if root == nil {
		u.syntax = &model.ReparseError{Container: src.Container, Message: "empty syntax tree"}
		return u, nil
	}
	if root.HasError() {
		u.syntax = firstSyntaxError(root, src.Container)
	}

	x := &extractor{content: src.Content, unit: u}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		switch child.Type() {
		case nodePackage:
			u.pkg = x.packageName(child)
		case nodeImport:
			u.imports = append(u.imports, x.importDecl(child))
		}
	}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		x.typeDeclaration(ctx, root.NamedChild(i), nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return u, nil
}

func firstSyntaxError(root *sitter.Node, c model.ContainerID) *model.ReparseError {
	stack := []*sitter.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.Type() == nodeError {
			return &model.ReparseError{Container: c, Offset: int(n.StartByte()), Message: "syntax error"}
		}
		if n.IsMissing() {
			return &model.ReparseError{Container: c, Offset: int(n.StartByte()), Message: "missing " + n.Type()}
		}
		for i := int(n.ChildCount()) - 1; i >= 0; i-- {
			child := n.Child(i)
			if child != nil && (child.HasError() || child.IsMissing()) {
				stack = append(stack, child)
			}
		}
	}
	return &model.ReparseError{Container: c, Message: "syntax error"}
}

type extractor struct {
	content []byte
	unit    *unit
}

func (x *extractor) text(n *sitter.Node) string {
	return string(x.content[n.StartByte():n.EndByte()])
}

func (x *extractor) rangeOf(n *sitter.Node) model.Range {
	return model.Range{
		Container: x.unit.container,
		Offset:    int(n.StartByte()),
		Length:    int(n.EndByte() - n.StartByte()),
	}
}

func (x *extractor) packageName(n *sitter.Node) string {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() == nodeScopedIdentifier || child.Type() == nodeIdentifier {
			return x.text(child)
		}
	}
	return ""
}

func (x *extractor) importDecl(n *sitter.Node) importDecl {
	var imp importDecl
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		switch child.Type() {
		case "static":
			imp.static = true
		case "asterisk", "*":
			imp.onDemand = true
		case nodeScopedIdentifier, nodeIdentifier:
			imp.path = x.text(child)
		}
	}
	return imp
}

// typeDeclaration extracts n if it declares a type, including its members
// and nested types.
func (x *extractor) typeDeclaration(ctx context.Context, n *sitter.Node, outer *typeDecl) {
	var kind typeKind
	switch n.Type() {
	case nodeClass:
		kind = kindClass
	case nodeInterface:
		kind = kindInterface
	case nodeEnum:
		kind = kindEnum
	case nodeRecord:
		kind = kindRecord
	default:
		return
	}
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}

	t := &typeDecl{
		name:      x.text(nameNode),
		kind:      kind,
		nameRange: x.rangeOf(nameNode),
		outer:     outer,
		unit:      x.unit,
		fields:    make(map[string]typeRef),
	}
	switch {
	case outer != nil:
		t.id = model.TypeID(string(outer.id) + "$" + t.name)
	case x.unit.pkg != "":
		t.id = model.TypeID(x.unit.pkg + "." + t.name)
	default:
		t.id = model.TypeID(t.name)
	}
	mods := x.modifiers(n)
	t.vis = mods.visibility(outer != nil && outer.kind == kindInterface)
	t.abstract = mods.has("abstract") || kind == kindInterface
	x.unit.types = append(x.unit.types, t)

	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case nodeSuperclass:
			if child.NamedChildCount() > 0 {
				ref := x.typeRef(child.NamedChild(0))
				t.superclass = &ref
			}
		case nodeSuperInterfaces, nodeExtendsInterfaces:
			t.interfaces = append(t.interfaces, x.typeList(child)...)
		}
	}

	bodyNode := n.ChildByFieldName("body")
	if bodyNode == nil {
		return
	}
	x.members(ctx, bodyNode, t)
}

func (x *extractor) typeList(n *sitter.Node) []typeRef {
	var out []typeRef
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() == nodeTypeList {
			out = append(out, x.typeList(child)...)
			continue
		}
		out = append(out, x.typeRef(child))
	}
	return out
}

func (x *extractor) members(ctx context.Context, bodyNode *sitter.Node, t *typeDecl) {
	for i := 0; i < int(bodyNode.NamedChildCount()); i++ {
		child := bodyNode.NamedChild(i)
		switch child.Type() {
		case nodeMethod:
			x.method(ctx, child, t)
		case nodeConstructor:
			b := x.body(ctx, child.ChildByFieldName("body"), t, x.parameters(child.ChildByFieldName("parameters")))
			t.bodies = append(t.bodies, b)
		case nodeField, nodeConstant:
			ref := x.typeRef(child.ChildByFieldName("type"))
			for j := 0; j < int(child.NamedChildCount()); j++ {
				decl := child.NamedChild(j)
				if decl.Type() != nodeVarDeclarator {
					continue
				}
				if name := decl.ChildByFieldName("name"); name != nil {
					t.fields[x.text(name)] = ref
				}
			}
		case nodeEnumBodyDecls:
			x.members(ctx, child, t)
		default:
			x.typeDeclaration(ctx, child, t)
		}
	}
}

type param struct {
	name    string
	ref     typeRef
	varargs bool
}

func (x *extractor) parameters(n *sitter.Node) []param {
	if n == nil {
		return nil
	}
	var out []param
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case nodeFormalParameter:
			p := param{ref: x.typeRef(child.ChildByFieldName("type"))}
			if name := child.ChildByFieldName("name"); name != nil {
				p.name = x.text(name)
			}
			out = append(out, p)
		case nodeSpreadParameter:
			p := param{varargs: true}
			for j := 0; j < int(child.NamedChildCount()); j++ {
				part := child.NamedChild(j)
				switch part.Type() {
				case nodeModifiers:
				case nodeVarDeclarator:
					if name := part.ChildByFieldName("name"); name != nil {
						p.name = x.text(name)
					}
				default:
					if p.ref.name == "" {
						p.ref = x.typeRef(part)
					}
				}
			}
			p.ref.dims++
			out = append(out, p)
		}
	}
	return out
}

func (x *extractor) method(ctx context.Context, n *sitter.Node, t *typeDecl) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	mods := x.modifiers(n)
	params := x.parameters(n.ChildByFieldName("parameters"))
	bodyNode := n.ChildByFieldName("body")

	m := &methodDecl{
		owner:     t,
		ordinal:   len(t.methods),
		name:      x.text(nameNode),
		nameRange: x.rangeOf(nameNode),
		ret:       x.typeRef(n.ChildByFieldName("type")),
		vis:       mods.visibility(t.kind == kindInterface),
		static:    mods.has("static"),
	}
	for _, p := range params {
		m.params = append(m.params, p.ref)
		m.varargs = m.varargs || p.varargs
	}
	if t.kind == kindInterface {
		m.abstract = bodyNode == nil && !m.static
	} else {
		m.abstract = mods.has("abstract")
	}
	t.methods = append(t.methods, m)
	if bodyNode != nil {
		m.body = x.body(ctx, bodyNode, t, params)
		t.bodies = append(t.bodies, m.body)
	}
}

// body collects local declarations and invocations below n. Local and
// anonymous class declarations are not descended into.
func (x *extractor) body(ctx context.Context, n *sitter.Node, t *typeDecl, params []param) *body {
	b := &body{owner: t, locals: make(map[string]typeRef)}
	for _, p := range params {
		if p.name != "" {
			b.locals[p.name] = p.ref
		}
	}
	if n == nil {
		return b
	}

	calls := make(map[[2]uint32]*invocation)
	stack := []*sitter.Node{n}
	visited := 0
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		visited++
		if visited%nodeCheckInterval == 0 && ctx.Err() != nil {
			return b
		}

		switch node.Type() {
		case nodeClass, nodeInterface, nodeEnum, nodeRecord, "class_body":
			continue
		case nodeLocalVar:
			ref := x.typeRef(node.ChildByFieldName("type"))
			for i := 0; i < int(node.NamedChildCount()); i++ {
				decl := node.NamedChild(i)
				if decl.Type() != nodeVarDeclarator {
					continue
				}
				if name := decl.ChildByFieldName("name"); name != nil {
					b.locals[x.text(name)] = ref
				}
			}
		case nodeEnhancedFor:
			if name := node.ChildByFieldName("name"); name != nil {
				b.locals[x.text(name)] = x.typeRef(node.ChildByFieldName("type"))
			}
		case nodeInvocation:
			x.invocation(node, b, calls)
		}

		for i := int(node.NamedChildCount()) - 1; i >= 0; i-- {
			if child := node.NamedChild(i); child != nil {
				stack = append(stack, child)
			}
		}
	}
	return b
}

// invocation returns the call for n, creating it and its receiver call on
// first sight.
func (x *extractor) invocation(n *sitter.Node, b *body, seen map[[2]uint32]*invocation) *invocation {
	span := [2]uint32{n.StartByte(), n.EndByte()}
	if inv, ok := seen[span]; ok {
		return inv
	}
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	inv := &invocation{
		name:      x.text(nameNode),
		nameRange: x.rangeOf(nameNode),
		body:      b,
	}
	seen[span] = inv
	if args := n.ChildByFieldName("arguments"); args != nil {
		inv.arity = int(args.NamedChildCount())
	}

	obj := n.ChildByFieldName("object")
	switch {
	case obj == nil:
		inv.recv = recvNone
	case obj.Type() == nodeThis:
		inv.recv = recvThis
	case obj.Type() == nodeSuper:
		inv.recv = recvSuper
	case obj.Type() == nodeIdentifier:
		inv.recv = recvName
		inv.recvName = x.text(obj)
	case obj.Type() == nodeNew:
		inv.recv = recvNew
		inv.recvType = x.typeRef(obj.ChildByFieldName("type"))
	case obj.Type() == nodeInvocation:
		if inner := x.invocation(obj, b, seen); inner != nil {
			inv.recv = recvCall
			inv.recvCall = inner
		} else {
			inv.recv = recvOther
		}
	default:
		inv.recv = recvOther
	}
	b.calls = append(b.calls, inv)
	return inv
}

func (x *extractor) typeRef(n *sitter.Node) typeRef {
	if n == nil {
		return typeRef{}
	}
	switch n.Type() {
	case nodeTypeIdentifier, nodeScopedType:
		return typeRef{name: x.stripGenerics(x.text(n))}
	case nodeGenericType:
		if n.NamedChildCount() > 0 {
			return x.typeRef(n.NamedChild(0))
		}
	case nodeArrayType:
		ref := x.typeRef(n.ChildByFieldName("element"))
		if dims := n.ChildByFieldName("dimensions"); dims != nil {
			ref.dims += strings.Count(x.text(dims), "[")
		} else {
			ref.dims++
		}
		return ref
	case nodeVoidType:
		return voidType
	case nodeIntegralType, nodeFloatType, nodeBooleanType:
		return typeRef{name: x.text(n), primitive: true}
	}
	return typeRef{name: x.stripGenerics(x.text(n))}
}

func (x *extractor) stripGenerics(s string) string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch {
		case r == '<':
			depth++
		case r == '>':
			depth--
		case depth == 0 && r != ' ' && r != '\n' && r != '\t':
			b.WriteRune(r)
		}
	}
	return b.String()
}

type modifierSet map[string]bool

func (m modifierSet) has(name string) bool { return m[name] }

func (m modifierSet) visibility(interfaceMember bool) model.Visibility {
	switch {
	case m["public"]:
		return model.VisibilityPublic
	case m["protected"]:
		return model.VisibilityProtected
	case m["private"]:
		return model.VisibilityPrivate
	case interfaceMember:
		return model.VisibilityPublic
	}
	return model.VisibilityPackage
}

func (x *extractor) modifiers(n *sitter.Node) modifierSet {
	mods := modifierSet{}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child.Type() != nodeModifiers {
			continue
		}
		for j := 0; j < int(child.ChildCount()); j++ {
			mods[child.Child(j).Type()] = true
		}
	}
	return mods
}
