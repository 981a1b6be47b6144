package engine

import (
	"strings"
)

// S4Class is a formal class definition created by setClass.
type S4Class struct {
	Name     string
	Slots    []SlotDef
	Contains []string
	Virtual  bool
	// DataType is the basic type the class extends ("numeric", "list",
	// ...); objects of such classes carry their data as a .Data part.
	DataType  string
	Prototype map[string]*Value
	Validity  *Value
}

// SlotDef is one declared slot.
type SlotDef struct {
	Name string
	Type string
}

// SlotNames lists the declared slots, including .Data for classes that
// extend a basic type.
func (c *S4Class) SlotNames() []string {
	names := make([]string, 0, len(c.Slots)+1)
	for _, s := range c.Slots {
		names = append(names, s.Name)
	}
	if c.DataType != "" {
		names = append(names, ".Data")
	}
	return names
}

func (c *S4Class) slot(name string) (SlotDef, bool) {
	for _, s := range c.Slots {
		if s.Name == name {
			return s, true
		}
	}
	if name == ".Data" && c.DataType != "" {
		return SlotDef{Name: ".Data", Type: c.DataType}, true
	}
	return SlotDef{}, false
}

var basicTypes = map[string]Kind{
	"numeric": RealKind, "character": StrKind, "logical": LglKind, "integer": IntKind,
	"complex": CplxKind, "list": ListKind, "raw": RawKind,
}

// S4Class returns the definition of a class, or nil.
func (in *Interp) S4Class(name string) *S4Class { return in.classes[name] }

// S4ClassOf returns the class definition of an S4 object, or nil.
func (in *Interp) S4ClassOf(v *Value) *S4Class {
	if v.Kind != S4Kind && !v.S4 {
		return nil
	}
	cls := v.Class()
	if len(cls) == 0 {
		return nil
	}
	return in.classes[cls[0]]
}

// superclasses returns name followed by all classes it extends, nearest
// first.
func (in *Interp) superclasses(name string) []string {
	out := []string{name}
	seen := map[string]bool{name: true}
	for i := 0; i < len(out); i++ {
		def := in.classes[out[i]]
		if def == nil {
			continue
		}
		for _, p := range def.Contains {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out
}

func (in *Interp) s4Extends(x *Value, what string) bool {
	if x.Kind != S4Kind && !x.S4 {
		return false
	}
	for _, cl := range x.Class() {
		for _, s := range in.superclasses(cl) {
			if s == what {
				return true
			}
		}
	}
	return false
}

// valueIs reports whether v is acceptable for a slot of type typ.
func (in *Interp) valueIs(v *Value, typ string) bool {
	switch typ {
	case "ANY", "":
		return true
	case "numeric":
		return (v.Kind == RealKind || v.Kind == IntKind) && !isFactor(v)
	case "function":
		return v.Kind == CloKind || v.Kind == BuiltinKind
	case "environment":
		return v.Kind == EnvKind
	case "NULL":
		return v.Kind == NilKind
	}
	if k, ok := basicTypes[typ]; ok && v.Kind == k {
		return true
	}
	if in.s4Extends(v, typ) || v.Inherits(typ) {
		return true
	}
	for _, cl := range ImplicitClass(v) {
		if cl == typ {
			return true
		}
	}
	return false
}

func (in *Interp) installS4() {
	in.def("setClass", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("Class", "representation", "prototype", "contains", "validity", "slots")
		if err != nil {
			return nil, err
		}
		name, ok := asStringScalar(orNull(a[0]))
		if !ok || name == "" {
			return nil, c.errorf("invalid class name")
		}
		def := &S4Class{Name: name, Prototype: map[string]*Value{}}
		var own []SlotDef
		for _, spec := range []*Value{a[1], a[5]} {
			if spec == nil {
				continue
			}
			names := spec.Names()
			for i := 0; i < spec.Len(); i++ {
				typ := strAt(spec, i)
				if names == nil || names[i] == "" {
					if typ == "VIRTUAL" {
						def.Virtual = true
					} else {
						def.Contains = append(def.Contains, typ)
					}
					continue
				}
				own = append(own, SlotDef{Name: names[i], Type: typ})
			}
		}
		if a[3] != nil {
			for _, p := range Strings(a[3]) {
				if p == "VIRTUAL" {
					def.Virtual = true
					continue
				}
				def.Contains = append(def.Contains, p)
			}
		}
		seen := map[string]bool{}
		for _, p := range def.Contains {
			if _, basic := basicTypes[p]; basic {
				def.DataType = p
				continue
			}
			parent := in.classes[p]
			if parent == nil {
				return nil, c.errorf("no definition was found for superclass \"%s\" in the specification of class \"%s\"", p, name)
			}
			if def.DataType == "" {
				def.DataType = parent.DataType
			}
			for _, s := range parent.Slots {
				if !seen[s.Name] {
					seen[s.Name] = true
					def.Slots = append(def.Slots, s)
				}
			}
			for k, v := range parent.Prototype {
				def.Prototype[k] = v
			}
			if def.Validity == nil {
				def.Validity = parent.Validity
			}
		}
		for _, s := range own {
			if seen[s.Name] {
				for i := range def.Slots {
					if def.Slots[i].Name == s.Name {
						def.Slots[i] = s
					}
				}
				continue
			}
			seen[s.Name] = true
			def.Slots = append(def.Slots, s)
		}
		if a[2] != nil && a[2].Kind == ListKind {
			for i, n := range a[2].Names() {
				def.Prototype[n] = a[2].Items[i]
			}
		}
		if a[4] != nil && a[4].Kind != NilKind {
			def.Validity = a[4]
		}
		in.classes[name] = def
		log.Debugf("defined class %s with %d slots", name, len(def.Slots))
		gen := NewBuiltin(name, func(in *Interp, c *CallCtx) (*Value, error) {
			return in.newObject(c, name, c.Args, c.Names)
		})
		gen.SetAttr("className", Str(name))
		gen.SetAttr("class", Str("classGeneratorFunction"))
		in.visible = false
		return gen, nil
	})
	in.def("representation", func(in *Interp, c *CallCtx) (*Value, error) {
		out := Str()
		names := make([]string, len(c.Args))
		for i, a := range c.Args {
			s, ok := asStringScalar(a)
			if !ok {
				return nil, c.errorf("element %d of the representation was not a single character string", i+1)
			}
			out.Str = append(out.Str, s)
			names[i] = c.Names[i]
		}
		out.SetAttr("names", Str(names...))
		return out, nil
	})
	in.def("setValidity", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("Class", "method")
		if err != nil {
			return nil, err
		}
		name, _ := asStringScalar(orNull(a[0]))
		def := in.classes[name]
		if def == nil {
			return nil, c.errorf("class \"%s\" is not defined", name)
		}
		def.Validity = a[1]
		in.visible = false
		return Null, nil
	})
	in.def("new", func(in *Interp, c *CallCtx) (*Value, error) {
		if len(c.Args) == 0 {
			return nil, c.errorf("argument \"Class\" is missing, with no default")
		}
		name, ok := asStringScalar(c.Args[0])
		if !ok {
			return nil, c.errorf("invalid class argument")
		}
		return in.newObject(c, name, c.Args[1:], c.Names[1:])
	})
	in.def("validObject", func(in *Interp, c *CallCtx) (*Value, error) {
		if len(c.Args) == 0 {
			return nil, c.errorf("argument \"object\" is missing, with no default")
		}
		if err := in.validate(c, c.Args[0]); err != nil {
			return nil, err
		}
		in.visible = false
		return Bool(true), nil
	})
	in.def("slotNames", func(in *Interp, c *CallCtx) (*Value, error) {
		if len(c.Args) == 0 {
			return nil, c.errorf("argument \"x\" is missing, with no default")
		}
		def := in.S4ClassOf(c.Args[0])
		if c.Args[0].Kind == StrKind {
			name, _ := asStringScalar(c.Args[0])
			def = in.classes[name]
		}
		if def == nil {
			return Str(), nil
		}
		return Str(def.SlotNames()...), nil
	})
	in.def("getSlots", func(in *Interp, c *CallCtx) (*Value, error) {
		name, _ := asStringScalar(orNull(firstArg(c)))
		def := in.classes[name]
		if def == nil {
			return nil, c.errorf("no definition of class \"%s\" found", name)
		}
		names := def.SlotNames()
		types := make([]string, len(names))
		for i, n := range names {
			s, _ := def.slot(n)
			types[i] = s.Type
		}
		out := Str(types...)
		out.SetAttr("names", Str(names...))
		return out, nil
	})
	in.def("isVirtualClass", func(in *Interp, c *CallCtx) (*Value, error) {
		name, _ := asStringScalar(orNull(firstArg(c)))
		def := in.classes[name]
		return Bool(def != nil && def.Virtual), nil
	})
	for _, fn := range []string{"existsClass", "isClass"} {
		in.def(fn, func(in *Interp, c *CallCtx) (*Value, error) {
			name, _ := asStringScalar(orNull(firstArg(c)))
			return Bool(in.classes[name] != nil), nil
		})
	}
	in.def("removeClass", func(in *Interp, c *CallCtx) (*Value, error) {
		name, _ := asStringScalar(orNull(firstArg(c)))
		_, ok := in.classes[name]
		delete(in.classes, name)
		return Bool(ok), nil
	})
	in.def("is", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("object", "class2")
		if err != nil {
			return nil, err
		}
		if a[0] == nil {
			return nil, c.errorf("argument \"object\" is missing, with no default")
		}
		if a[1] == nil {
			cls := a[0].Class()
			if len(cls) == 0 {
				cls = ImplicitClass(a[0])
			}
			return Str(in.superclasses(cls[0])...), nil
		}
		what, _ := asStringScalar(a[1])
		return Bool(in.valueIs(a[0], what)), nil
	})
	in.def("isS4", func(in *Interp, c *CallCtx) (*Value, error) {
		x := firstArg(c)
		return Bool(x != nil && (x.Kind == S4Kind || x.S4)), nil
	})
	in.def("slot", func(in *Interp, c *CallCtx) (*Value, error) {
		if len(c.Args) < 2 {
			return nil, c.errorf("argument \"name\" is missing, with no default")
		}
		name, _ := asStringScalar(c.Args[1])
		return in.getSlot(c, c.Args[0], name)
	})
	in.defSpecial("@", func(in *Interp, c *CallCtx) (*Value, error) {
		if len(c.Args) != 2 {
			return nil, c.errorf("invalid slot access")
		}
		obj, err := in.Eval(c.Args[0], c.Env)
		if err != nil {
			return nil, err
		}
		name, ok := memberName(c.Args[1])
		if !ok {
			return nil, c.errorf("invalid type or length for slot name")
		}
		return in.getSlot(c, obj, name)
	})
	setter := func(in *Interp, c *CallCtx) (*Value, error) {
		if len(c.Args) != 3 {
			return nil, c.errorf("invalid slot assignment")
		}
		name, ok := memberName(c.Args[1])
		if !ok {
			return nil, c.errorf("invalid type or length for slot name")
		}
		return in.setSlot(c, c.Args[0], name, c.Args[2])
	}
	in.def("slot<-", setter)
	in.def("@<-", setter)

	in.def("setGeneric", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("name", "def")
		if err != nil {
			return nil, err
		}
		name, ok := asStringScalar(orNull(a[0]))
		if !ok {
			return nil, c.errorf("invalid generic function name")
		}
		fallback := a[1]
		if fallback == nil || (fallback.Kind == CloKind && callsStandardGeneric(fallback.Clo.Body)) {
			fallback, _ = in.findFun(name, c.Env)
		}
		in.makeGeneric(name, fallback)
		in.cb.WriteConsole("[1] \""+name+"\"\n", false)
		in.visible = false
		return Str(name), nil
	})
	in.def("setMethod", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("f", "signature", "definition")
		if err != nil {
			return nil, err
		}
		name, _ := asStringScalar(orNull(a[0]))
		sig, _ := asStringScalar(orNull(a[1]))
		if a[2] == nil || (a[2].Kind != CloKind && a[2].Kind != BuiltinKind) {
			return nil, c.errorf("no function definition supplied for method '%s'", name)
		}
		if in.methods[name] == nil {
			existing, _ := in.findFun(name, c.Env)
			if existing == nil && name != "show" {
				return nil, c.errorf("no existing definition for function '%s'", name)
			}
			in.makeGeneric(name, existing)
		}
		in.methods[name][sig] = a[2]
		in.visible = false
		return Str(name), nil
	})
	in.def("standardGeneric", func(in *Interp, c *CallCtx) (*Value, error) {
		name, _ := asStringScalar(orNull(firstArg(c)))
		return nil, c.errorf("expected a generic function or a primitive for dispatch, got '%s'", name)
	})
	in.def("isGeneric", func(in *Interp, c *CallCtx) (*Value, error) {
		name, _ := asStringScalar(orNull(firstArg(c)))
		_, ok := in.methods[name]
		return Bool(ok), nil
	})
	in.def("existsMethod", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("f", "signature")
		if err != nil {
			return nil, err
		}
		name, _ := asStringScalar(orNull(a[0]))
		sig, _ := asStringScalar(orNull(a[1]))
		_, ok := in.methods[name][sig]
		return Bool(ok), nil
	})
}

// makeGeneric installs a dispatcher for name in the global environment.
// Calls fall back to fallback when no method matches the first argument.
func (in *Interp) makeGeneric(name string, fallback *Value) {
	if in.methods[name] == nil {
		in.methods[name] = map[string]*Value{}
	}
	if fallback != nil && in.methods[name]["ANY"] == nil {
		in.methods[name]["ANY"] = fallback
	}
	if name == "show" {
		return
	}
	in.global.Set(name, NewBuiltin(name, func(in *Interp, c *CallCtx) (*Value, error) {
		fn := in.methods[name]["ANY"]
		if len(c.Args) > 0 {
			if m := in.s4Method(name, c.Args[0]); m != nil {
				fn = m
			}
		}
		if fn == nil {
			return nil, c.errorf("unable to find an inherited method for function '%s'", name)
		}
		return in.Call(fn, c.Args, c.Names, c.Env)
	}))
}

func firstArg(c *CallCtx) *Value {
	if len(c.Args) == 0 {
		return nil
	}
	return c.Args[0]
}

func callsStandardGeneric(body *Value) bool {
	if body.Kind != LangKind {
		return false
	}
	if body.Fn.Kind == SymKind && body.Fn.Name == "standardGeneric" {
		return true
	}
	for _, it := range body.Items {
		if callsStandardGeneric(it) {
			return true
		}
	}
	return false
}

// s4Method finds the method of generic for the class of x, walking
// superclasses.
func (in *Interp) s4Method(generic string, x *Value) *Value {
	table := in.methods[generic]
	if table == nil {
		return nil
	}
	cls := x.Class()
	if len(cls) == 0 {
		cls = ImplicitClass(x)
	}
	for _, c := range cls {
		for _, s := range in.superclasses(c) {
			if fn := table[s]; fn != nil {
				return fn
			}
		}
	}
	return nil
}

// newObject allocates an instance of class name initialised from named slot
// values and unnamed superclass instances or data.
func (in *Interp) newObject(c *CallCtx, name string, args []*Value, names []string) (*Value, error) {
	def := in.classes[name]
	if def == nil {
		if k, ok := basicTypes[name]; ok {
			return &Value{Kind: k}, nil
		}
		return nil, c.errorf("undefined class \"%s\"", name)
	}
	if def.Virtual {
		return nil, c.errorf("cannot allocate an object of a virtual class (\"%s\")", name)
	}
	var obj *Value
	if def.DataType != "" {
		obj = &Value{Kind: basicTypes[def.DataType], S4: true}
		if proto := def.Prototype[".Data"]; proto != nil {
			obj = proto.Copy()
			obj.S4 = true
		}
	} else {
		obj = &Value{Kind: S4Kind}
	}
	for _, s := range def.Slots {
		val := def.Prototype[s.Name]
		if val == nil {
			val = slotDefault(s.Type)
		}
		obj.SetAttr(s.Name, val)
	}
	obj.SetAttr("class", Str(name))
	for i, a := range args {
		n := ""
		if i < len(names) {
			n = names[i]
		}
		if n != "" {
			var err error
			if obj, err = in.setSlot(c, obj, n, a); err != nil {
				return nil, err
			}
			continue
		}
		switch {
		case a.Kind == S4Kind || a.S4:
			for _, at := range a.Attrs {
				if at.Name != "class" {
					obj.SetAttr(at.Name, at.Value)
				}
			}
		case def.DataType != "":
			var err error
			if obj, err = in.setSlot(c, obj, ".Data", a); err != nil {
				return nil, err
			}
		default:
			return nil, c.errorf("cannot use object of class \"%s\" in new():  class \"%s\" does not extend that class", ImplicitClass(a)[0], name)
		}
	}
	if len(args) > 0 {
		if err := in.validate(c, obj); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

func slotDefault(typ string) *Value {
	switch typ {
	case "numeric":
		return Real()
	case "character":
		return Str()
	case "logical":
		return Lgl()
	case "integer":
		return Int()
	case "complex":
		return Cplx()
	case "list":
		return List()
	case "raw":
		return RawBytes()
	}
	return Null
}

func (in *Interp) getSlot(c *CallCtx, obj *Value, name string) (*Value, error) {
	if name == ".Data" {
		data := obj.Copy()
		data.S4 = false
		data.Attrs = nil
		if n := obj.Attr("names"); n != nil {
			data.SetAttr("names", n)
		}
		return data, nil
	}
	def := in.S4ClassOf(obj)
	if def == nil {
		if v := obj.Attr(name); v != nil && obj.Kind != S4Kind {
			return v, nil
		}
		if obj.Kind != S4Kind && !obj.S4 {
			return nil, c.errorf("no applicable method for `@` applied to an object of class \"%s\"", ImplicitClass(obj)[0])
		}
	}
	if def != nil {
		if _, ok := def.slot(name); !ok {
			return nil, c.errorf("no slot of name \"%s\" for this object of class \"%s\"", name, def.Name)
		}
	}
	v := obj.Attr(name)
	if v == nil {
		return Null, nil
	}
	return v, nil
}

func (in *Interp) setSlot(c *CallCtx, obj *Value, name string, val *Value) (*Value, error) {
	def := in.S4ClassOf(obj)
	if def == nil {
		return nil, c.errorf("no slot of name \"%s\" for this object of class \"%s\"", name, ImplicitClass(obj)[0])
	}
	slot, ok := def.slot(name)
	if !ok {
		return nil, c.errorf("invalid name for slot of class \"%s\": %s", def.Name, name)
	}
	if !in.valueIs(val, slot.Type) {
		cls := val.Class()
		if len(cls) == 0 {
			cls = ImplicitClass(val)
		}
		return nil, c.errorf("assignment of an object of class \"%s\" is not valid for @'%s' in an object of class \"%s\"; is(value, \"%s\") is not TRUE",
			cls[0], name, def.Name, slot.Type)
	}
	if name == ".Data" {
		out := Coerce(val, basicTypes[def.DataType])
		out.Attrs = nil
		if n := val.Attr("names"); n != nil {
			out.SetAttr("names", n)
		}
		for _, a := range obj.Attrs {
			if a.Name != "names" {
				out.SetAttr(a.Name, a.Value)
			}
		}
		out.S4 = true
		return out, nil
	}
	out := obj.Copy()
	out.SetAttr(name, val)
	return out, nil
}

// validate runs the validity methods of the object's class chain.
func (in *Interp) validate(c *CallCtx, obj *Value) error {
	def := in.S4ClassOf(obj)
	if def == nil {
		return nil
	}
	for _, s := range def.Slots {
		if v := obj.Attr(s.Name); v != nil && !in.valueIs(v, s.Type) {
			return c.errorf("invalid class \"%s\" object: invalid object for slot \"%s\" in class \"%s\": got class \"%s\", should be or extend class \"%s\"",
				def.Name, s.Name, def.Name, ImplicitClass(v)[0], s.Type)
		}
	}
	var checks []*Value
	for _, cl := range in.superclasses(def.Name) {
		if d := in.classes[cl]; d != nil && d.Validity != nil {
			dup := false
			for _, ch := range checks {
				if ch == d.Validity {
					dup = true
				}
			}
			if !dup {
				checks = append([]*Value{d.Validity}, checks...)
			}
		}
	}
	for _, fn := range checks {
		res, err := in.Call(fn, []*Value{obj}, nil, c.Env)
		if err != nil {
			return err
		}
		if res.Kind == StrKind && res.Len() > 0 {
			return c.errorf("invalid class \"%s\" object: %s", def.Name, strings.Join(res.Str, "\n"))
		}
	}
	return nil
}
