// Package eval implements the PuppyCAD expression evaluator: memoized,
// per-declaration resolution of field values with active-set cycle
// detection.
package eval

import (
	"math"

	"github.com/puppycad/pcad/graph"
	"github.com/puppycad/pcad/lang"
	"github.com/puppycad/pcad/pcadval"
)

var anchors = map[string]bool{
	"top": true, "bottom": true, "left": true, "right": true, "front": true, "back": true,
}

// CompiledNode is one declaration's flattened compile output: its
// authored fields only (no dependency/execution-order metadata), used by
// codegen.CompileToThreeJSON.
type CompiledNode struct {
	ID     string
	Kind   string
	Op     string
	Fields pcadval.OrderedObject
}

// Evaluator resolves declaration field maps on demand, caching results
// and detecting reference cycles the static feature graph alone cannot
// see (e.g. transitive cycles through locals).
type Evaluator struct {
	graph      *graph.FeatureGraph
	resolved   map[string]map[string]pcadval.Value
	evaluating map[string]bool
}

// New returns an Evaluator over file's feature graph.
func New(file *lang.File) *Evaluator {
	return &Evaluator{
		graph:      graph.New(file),
		resolved:   make(map[string]map[string]pcadval.Value),
		evaluating: make(map[string]bool),
	}
}

// NewFromGraph returns an Evaluator reusing an already-built feature
// graph (used by the model builder, which needs the graph for
// topological ordering before evaluation starts).
func NewFromGraph(g *graph.FeatureGraph) *Evaluator {
	return &Evaluator{
		graph:      g,
		resolved:   make(map[string]map[string]pcadval.Value),
		evaluating: make(map[string]bool),
	}
}

// Build evaluates every declaration in authoring order and returns the
// flattened compile output used for JSON codegen.
func (e *Evaluator) Build() ([]CompiledNode, error) {
	var nodes []CompiledNode
	for _, id := range e.graph.DeclarationOrder() {
		fields, err := e.ResolveDecl(id)
		if err != nil {
			return nil, err
		}
		decl, ok := e.graph.Decl(id)
		if !ok {
			return nil, unknownIdentifier(lang.Span{}, "", id)
		}

		var entries []pcadval.ObjectEntry
		for _, entry := range decl.Entries {
			fieldEntry, ok := entry.(*lang.FieldEntry)
			if !ok {
				continue
			}
			value := fields[fieldEntry.Name]
			entries = append(entries, pcadval.ObjectEntry{Name: fieldEntry.Name, Value: value})
		}

		kind := "solid"
		if decl.Kind == lang.DeclFeature {
			kind = "feature"
		}

		nodes = append(nodes, CompiledNode{ID: decl.ID, Kind: kind, Op: decl.Op, Fields: entries})
	}
	return nodes, nil
}

// ResolveDecl returns the field map for id, computing and memoizing it on
// first request.
func (e *Evaluator) ResolveDecl(id string) (map[string]pcadval.Value, error) {
	if cached, ok := e.resolved[id]; ok {
		return cached, nil
	}
	if !e.graph.HasDecl(id) {
		return nil, unknownIdentifier(lang.Span{}, "", id)
	}
	if e.evaluating[id] {
		return nil, &lang.LangError{
			Level: lang.LevelError, Code: lang.CodeDependencyCycle,
			Message: "cycle detected involving '" + id + "'",
			Node:    id,
		}
	}
	e.evaluating[id] = true

	decl, _ := e.graph.Decl(id)
	scope := make(map[string]pcadval.Value)

	for _, entry := range decl.Entries {
		value, err := e.evalExpr(entry.EntryExpr(), scope, id)
		if err != nil {
			delete(e.evaluating, id)
			return nil, err
		}
		scope[entry.EntryName()] = value
	}

	fields := make(map[string]pcadval.Value)
	for _, entry := range decl.Entries {
		fieldEntry, ok := entry.(*lang.FieldEntry)
		if !ok {
			continue
		}
		value, ok := scope[fieldEntry.Name]
		if !ok {
			delete(e.evaluating, id)
			return nil, &lang.LangError{
				Level: lang.LevelError, Code: lang.CodeMissingField,
				Message: "missing field '" + fieldEntry.Name + "' while serializing",
				Span:    decl.Span, Node: id,
			}
		}
		fields[fieldEntry.Name] = value
	}

	e.resolved[id] = fields
	delete(e.evaluating, id)
	return fields, nil
}

func (e *Evaluator) evalExpr(expr *lang.Expr, scope map[string]pcadval.Value, current string) (pcadval.Value, error) {
	switch expr.Kind {
	case lang.ExprNumber:
		return pcadval.Number(expr.Number), nil
	case lang.ExprString:
		return pcadval.String(expr.String), nil
	case lang.ExprBool:
		return pcadval.Bool(expr.Bool), nil
	case lang.ExprNull:
		return pcadval.Null(), nil

	case lang.ExprVector:
		var comps [3]float64
		labels := [3]string{"x", "y", "z"}
		for i, sub := range expr.Vector {
			v, err := e.evalExpr(sub, scope, current)
			if err != nil {
				return pcadval.Value{}, err
			}
			n, ok := v.AsNumber()
			if !ok {
				return pcadval.Value{}, typeError(expr.Span, "expected number for vector "+labels[i]+" component")
			}
			comps[i] = n
		}
		return pcadval.Vec3(comps[0], comps[1], comps[2]), nil

	case lang.ExprObject:
		entries := make([]pcadval.ObjectEntry, 0, len(expr.Fields))
		for _, f := range expr.Fields {
			v, err := e.evalExpr(f.Expr, scope, current)
			if err != nil {
				return pcadval.Value{}, err
			}
			entries = append(entries, pcadval.ObjectEntry{Name: f.Name, Value: v})
		}
		return pcadval.Object(entries), nil

	case lang.ExprIdent:
		name := expr.Ident()
		if v, ok := scope[name]; ok {
			return v, nil
		}
		if e.graph.HasDecl(name) {
			return pcadval.NodeRef(name), nil
		}
		return pcadval.Value{}, unknownIdentifier(expr.Span, current, name)

	case lang.ExprReference:
		return e.resolveReference(expr.Segments, scope, expr.Span, current)

	case lang.ExprCall:
		return e.evalCall(expr.CallName, expr.Args, scope, current, expr.Span)

	case lang.ExprUnary:
		v, err := e.evalExpr(expr.Operand, scope, current)
		if err != nil {
			return pcadval.Value{}, err
		}
		switch expr.UnaryOp {
		case lang.UnaryNeg:
			n, ok := v.AsNumber()
			if !ok {
				return pcadval.Value{}, typeError(expr.Span, "unary '-' expects a number")
			}
			return pcadval.Number(-n), nil
		case lang.UnaryNot:
			b, ok := v.AsBool()
			if !ok {
				return pcadval.Value{}, typeError(expr.Span, "unary '!' expects a boolean")
			}
			return pcadval.Bool(!b), nil
		}
		return pcadval.Value{}, typeError(expr.Span, "unknown unary operator")

	case lang.ExprBinary:
		return e.evalBinary(expr, scope, current)
	}

	return pcadval.Value{}, typeError(expr.Span, "unknown expression kind")
}

func (e *Evaluator) evalBinary(expr *lang.Expr, scope map[string]pcadval.Value, current string) (pcadval.Value, error) {
	left, err := e.evalExpr(expr.Left, scope, current)
	if err != nil {
		return pcadval.Value{}, err
	}
	right, err := e.evalExpr(expr.Right, scope, current)
	if err != nil {
		return pcadval.Value{}, err
	}

	switch expr.BinOp {
	case lang.BinOr:
		lb, ok1 := left.AsBool()
		rb, ok2 := right.AsBool()
		if !ok1 || !ok2 {
			return pcadval.Value{}, typeError(expr.Span, "logical '||' expects booleans")
		}
		return pcadval.Bool(lb || rb), nil
	case lang.BinAnd:
		lb, ok1 := left.AsBool()
		rb, ok2 := right.AsBool()
		if !ok1 || !ok2 {
			return pcadval.Value{}, typeError(expr.Span, "logical '&&' expects booleans")
		}
		return pcadval.Bool(lb && rb), nil
	case lang.BinEq:
		return compareEqNe(expr.Span, false, left, right)
	case lang.BinNe:
		return compareEqNe(expr.Span, true, left, right)
	case lang.BinLt:
		return compareNumbers(expr.Span, left, right, func(a, b float64) bool { return a < b }, "comparison '<'")
	case lang.BinLe:
		return compareNumbers(expr.Span, left, right, func(a, b float64) bool { return a <= b }, "comparison '<='")
	case lang.BinGt:
		return compareNumbers(expr.Span, left, right, func(a, b float64) bool { return a > b }, "comparison '>'")
	case lang.BinGe:
		return compareNumbers(expr.Span, left, right, func(a, b float64) bool { return a >= b }, "comparison '>='")
	case lang.BinAdd:
		return arith(expr.Span, left, right, func(a, b float64) float64 { return a + b }, "addition")
	case lang.BinSub:
		return arith(expr.Span, left, right, func(a, b float64) float64 { return a - b }, "subtraction")
	case lang.BinMul:
		return arith(expr.Span, left, right, func(a, b float64) float64 { return a * b }, "multiplication")
	case lang.BinDiv:
		return arith(expr.Span, left, right, func(a, b float64) float64 { return a / b }, "division")
	case lang.BinMod:
		return arith(expr.Span, left, right, math.Mod, "remainder")
	}
	return pcadval.Value{}, typeError(expr.Span, "unknown binary operator")
}

func (e *Evaluator) resolveReference(segments []string, scope map[string]pcadval.Value, span lang.Span, current string) (pcadval.Value, error) {
	if len(segments) == 0 {
		return pcadval.Value{}, lang.Syntax(span, "empty reference")
	}
	first := segments[0]
	if len(segments) == 1 {
		if v, ok := scope[first]; ok {
			return v, nil
		}
		return pcadval.Value{}, unknownIdentifier(span, current, first)
	}

	if !e.graph.HasDecl(first) {
		return pcadval.Value{}, unknownIdentifier(span, current, first)
	}

	if len(segments) == 2 {
		field := segments[1]
		targetFields, err := e.ResolveDecl(first)
		if err != nil {
			return pcadval.Value{}, err
		}
		if v, ok := targetFields[field]; ok {
			return v, nil
		}
		if anchors[field] {
			return pcadval.TargetRef(first, field), nil
		}
	}

	return pcadval.Value{}, &lang.LangError{
		Level: lang.LevelError, Code: lang.CodeUnknownIdentifier,
		Message: "unknown reference '" + joinDot(segments) + "'",
		Span:    span, Node: current,
		Details: []lang.Detail{{Key: "reference", Value: joinDot(segments)}},
	}
}

func joinDot(segments []string) string {
	out := segments[0]
	for _, s := range segments[1:] {
		out += "." + s
	}
	return out
}

func (e *Evaluator) evalCall(name string, args []*lang.Expr, scope map[string]pcadval.Value, current string, span lang.Span) (pcadval.Value, error) {
	values := make([]pcadval.Value, 0, len(args))
	for _, arg := range args {
		v, err := e.evalExpr(arg, scope, current)
		if err != nil {
			return pcadval.Value{}, err
		}
		values = append(values, v)
	}

	switch name {
	case "min":
		return binaryFn(span, name, values, math.Min)
	case "max":
		return binaryFn(span, name, values, math.Max)
	case "abs":
		return unaryFn(span, name, values, math.Abs)
	case "sqrt":
		return unaryFn(span, name, values, math.Sqrt)
	case "sin":
		return unaryFn(span, name, values, math.Sin)
	case "cos":
		return unaryFn(span, name, values, math.Cos)
	case "tan":
		return unaryFn(span, name, values, math.Tan)
	case "clamp":
		if len(values) != 3 {
			return pcadval.Value{}, wrongArity(span, name, 3, len(values))
		}
		v, ok1 := values[0].AsNumber()
		lo, ok2 := values[1].AsNumber()
		hi, ok3 := values[2].AsNumber()
		if !ok1 || !ok2 || !ok3 {
			return pcadval.Value{}, typeError(span, "clamp expects number arguments")
		}
		return pcadval.Number(clamp(v, lo, hi)), nil
	case "deg":
		return unaryFn(span, name, values, toRadians)
	case "rad":
		// identity: the language already expresses angles in radians.
		return unaryFn(span, name, values, func(v float64) float64 { return v })
	case "vec3":
		if len(values) != 3 {
			return pcadval.Value{}, wrongArity(span, name, 3, len(values))
		}
		x, ok1 := values[0].AsNumber()
		y, ok2 := values[1].AsNumber()
		z, ok3 := values[2].AsNumber()
		if !ok1 || !ok2 || !ok3 {
			return pcadval.Value{}, typeError(span, "vec3 expects numeric arguments")
		}
		return pcadval.Vec3(x, y, z), nil
	}

	return pcadval.Value{}, &lang.LangError{
		Level: lang.LevelError, Code: lang.CodeUnknownIdentifier,
		Message: "unknown function '" + name + "'",
		Span:    span, Node: current,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }

func compareEqNe(span lang.Span, negate bool, left, right pcadval.Value) (pcadval.Value, error) {
	var equal bool
	switch {
	case left.Kind == pcadval.KindNumber && right.Kind == pcadval.KindNumber:
		equal = left.Number == right.Number
	case left.Kind == pcadval.KindBool && right.Kind == pcadval.KindBool:
		equal = left.Bool == right.Bool
	case left.Kind == pcadval.KindString && right.Kind == pcadval.KindString:
		equal = left.String == right.String
	case left.Kind == pcadval.KindNull && right.Kind == pcadval.KindNull:
		equal = true
	default:
		return pcadval.Value{}, typeError(span, "cannot compare values with '=='")
	}
	if negate {
		equal = !equal
	}
	return pcadval.Bool(equal), nil
}

func compareNumbers(span lang.Span, left, right pcadval.Value, op func(a, b float64) bool, label string) (pcadval.Value, error) {
	a, ok1 := left.AsNumber()
	b, ok2 := right.AsNumber()
	if !ok1 || !ok2 {
		return pcadval.Value{}, typeError(span, label)
	}
	return pcadval.Bool(op(a, b)), nil
}

func arith(span lang.Span, left, right pcadval.Value, op func(a, b float64) float64, label string) (pcadval.Value, error) {
	a, ok1 := left.AsNumber()
	b, ok2 := right.AsNumber()
	if !ok1 || !ok2 {
		return pcadval.Value{}, typeError(span, label)
	}
	return pcadval.Number(op(a, b)), nil
}

func unaryFn(span lang.Span, name string, values []pcadval.Value, op func(float64) float64) (pcadval.Value, error) {
	if len(values) == 0 {
		return pcadval.Value{}, wrongArity(span, name, 1, 0)
	}
	n, ok := values[0].AsNumber()
	if !ok {
		return pcadval.Value{}, typeError(span, "'"+name+"' expects a numeric argument")
	}
	return pcadval.Number(op(n)), nil
}

func binaryFn(span lang.Span, name string, values []pcadval.Value, op func(a, b float64) float64) (pcadval.Value, error) {
	if len(values) != 2 {
		return pcadval.Value{}, wrongArity(span, name, 2, len(values))
	}
	a, ok1 := values[0].AsNumber()
	b, ok2 := values[1].AsNumber()
	if !ok1 || !ok2 {
		return pcadval.Value{}, typeError(span, "'"+name+"' expects numeric arguments")
	}
	return pcadval.Number(op(a, b)), nil
}

func typeError(span lang.Span, message string) *lang.LangError {
	return &lang.LangError{Level: lang.LevelError, Code: lang.CodeTypeMismatch, Message: message, Span: span}
}

func unknownIdentifier(span lang.Span, node, ident string) *lang.LangError {
	return &lang.LangError{
		Level: lang.LevelError, Code: lang.CodeUnknownIdentifier,
		Message: "unknown identifier '" + ident + "'",
		Span:    span, Node: node,
	}
}

func wrongArity(span lang.Span, name string, expected, got int) *lang.LangError {
	return &lang.LangError{
		Level: lang.LevelError, Code: lang.CodeTypeMismatch,
		Message: "function '" + name + "' expects " + itoa(expected) + " args, got " + itoa(got),
		Span:    span,
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
