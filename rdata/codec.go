package rdata

import (
	"github.com/chazu/rjs/wire"
)

// Object option flags written after the tag byte.
const (
	optClass      int32 = 1 << 0
	optNames      int32 = 1 << 1
	optAttributes int32 = 1 << 2
	optStructOnly int32 = 1 << 3
	optNoChildren int32 = 1 << 4
	optDimNames   int32 = 1 << 5
	optRowNames   int32 = 1 << 6
)

// structTag marks a struct-only store in the store type byte.
const structTag byte = 0x80

// maxNesting bounds recursion while decoding.
const maxNesting = 512

// WriteValue encodes obj; a nil obj is written as the absent tag.
func WriteValue(w *wire.Writer, obj Object) {
	if obj == nil {
		w.PutTag(tagAbsent)
		return
	}
	w.PutTag(int8(obj.Type()))
	switch o := obj.(type) {
	case nullObject, missingObject, promiseObject:
		return

	case *Vector:
		opts := classOpt(o.Class) | namesOpt(o.Names) | attrOpt(o.Attrs)
		if o.Data.StructOnly() {
			opts |= optStructOnly
		}
		w.PutInt32(opts)
		putClass(w, opts, o.Class)
		w.PutInt64(o.Length())
		WriteStore(w, o.Data)
		if opts&optNames != 0 {
			WriteStore(w, o.Names)
		}
		putAttrs(w, opts, o.Attrs)

	case *Factor:
		opts := classOpt(o.Class) | namesOpt(o.Names) | attrOpt(o.Attrs)
		if o.Data.StructOnly() {
			opts |= optStructOnly
		}
		w.PutInt32(opts)
		putClass(w, opts, o.Class)
		w.PutInt64(o.Length())
		WriteStore(w, o.Data)
		if opts&optNames != 0 {
			WriteStore(w, o.Names)
		}
		putAttrs(w, opts, o.Attrs)

	case *Array:
		opts := classOpt(o.Class) | attrOpt(o.Attrs)
		if o.DimNames != nil {
			opts |= optDimNames
		}
		w.PutInt32(opts)
		putClass(w, opts, o.Class)
		w.PutInt32s(o.Dim)
		WriteStore(w, o.Data)
		if o.DimNames != nil {
			WriteValue(w, o.DimNames)
		}
		putAttrs(w, opts, o.Attrs)

	case *List:
		opts := classOpt(o.Class) | namesOpt(o.Names) | attrOpt(o.Attrs)
		if o.Items == nil {
			opts |= optStructOnly
		}
		w.PutInt32(opts)
		putClass(w, opts, o.Class)
		w.PutInt64(o.Length())
		if opts&optNames != 0 {
			WriteStore(w, o.Names)
		}
		for _, item := range o.Items {
			WriteValue(w, item)
		}
		putAttrs(w, opts, o.Attrs)

	case *DataFrame:
		opts := classOpt(o.Class) | attrOpt(o.Attrs)
		if o.RowNames != nil {
			opts |= optRowNames
		}
		if o.Columns == nil {
			opts |= optStructOnly
		}
		w.PutInt32(opts)
		putClass(w, opts, o.Class)
		w.PutInt64(o.colCount)
		w.PutInt64(o.rowCount)
		WriteStore(w, namesOrEmpty(o.Names))
		if o.RowNames != nil {
			WriteStore(w, o.RowNames)
		}
		for _, col := range o.Columns {
			WriteValue(w, col)
		}
		putAttrs(w, opts, o.Attrs)

	case *Environment:
		opts := classOpt(o.Class) | attrOpt(o.Attrs)
		if o.Items == nil {
			opts |= optNoChildren
		}
		w.PutInt32(opts)
		putClass(w, opts, o.Class)
		w.PutInt64(int64(o.Handle))
		w.PutString(o.ID)
		w.PutInt64(o.Length())
		if o.Items != nil {
			WriteStore(w, namesOrEmpty(o.Names))
			for _, item := range o.Items {
				WriteValue(w, item)
			}
		}
		putAttrs(w, opts, o.Attrs)

	case *Function:
		opts := attrOpt(o.Attrs)
		w.PutInt32(opts)
		w.PutString(o.Header)
		putAttrs(w, opts, o.Attrs)

	case *Reference:
		opts := classOpt(o.DeclaredClass)
		w.PutInt32(opts)
		w.PutInt64(int64(o.Handle))
		w.PutTag(int8(o.DeclaredType))
		putClass(w, opts, o.DeclaredClass)

	case *S4:
		w.PutInt32(0)
		w.PutString(o.ClassName())
		w.PutStrings(o.SlotNames)
		for _, v := range o.SlotValues {
			WriteValue(w, v)
		}

	case *Language:
		opts := classOpt(o.Class) | attrOpt(o.Attrs)
		w.PutInt32(opts)
		putClass(w, opts, o.Class)
		w.PutByte(byte(o.Kind))
		w.PutString(o.Source)
		putAttrs(w, opts, o.Attrs)

	case *Other:
		opts := attrOpt(o.Attrs)
		w.PutInt32(opts)
		w.PutString(o.Class)
		putAttrs(w, opts, o.Attrs)

	default:
		panic("rdata: unsupported object type " + obj.Type().String())
	}
}

func classOpt(class string) int32 {
	if class != "" {
		return optClass
	}
	return 0
}

func namesOpt(names *CharacterStore) int32 {
	if names != nil {
		return optNames
	}
	return 0
}

func attrOpt(l *List) int32 {
	if l != nil {
		return optAttributes
	}
	return 0
}

func namesOrEmpty(names *CharacterStore) *CharacterStore {
	if names == nil {
		return NewCharacterStore()
	}
	return names
}

func putClass(w *wire.Writer, opts int32, class string) {
	if opts&optClass != 0 {
		w.PutString(class)
	}
}

func putAttrs(w *wire.Writer, opts int32, l *List) {
	if opts&optAttributes != 0 {
		WriteValue(w, l)
	}
}

// WriteStore encodes a store, prefixed with its type byte.
func WriteStore(w *wire.Writer, s Store) {
	if s.StructOnly() {
		w.PutByte(structTag | byte(s.StoreType()))
		if f, ok := s.(*FactorStore); ok {
			w.PutBool(f.Ordered)
			w.PutInt32(int32(f.LevelCount()))
		}
		return
	}
	w.PutByte(byte(s.StoreType()))
	switch st := s.(type) {
	case *LogicalStore:
		w.PutInt32(int32(len(st.Values)))
		for _, v := range st.Values {
			w.PutByte(byte(v))
		}
	case *IntegerStore:
		w.PutInt32s(st.Values)
	case *NumericStore:
		w.PutFloat64s(st.Values)
	case *ComplexStore:
		w.PutInt32(int32(len(st.Re)))
		for i := range st.Re {
			w.PutFloat64(st.Re[i])
			w.PutFloat64(st.Im[i])
		}
	case *CharacterStore:
		w.PutInt32(int32(len(st.Values)))
		for i, v := range st.Values {
			w.PutStringNA(v, st.IsNA(i))
		}
	case *RawStore:
		w.PutBytes(st.Values)
	case *FactorStore:
		w.PutBool(st.Ordered)
		w.PutStrings(st.Levels)
		w.PutInt32s(st.Codes)
	default:
		panic("rdata: unsupported store type " + s.StoreType().String())
	}
}

// ReadValue decodes one value. Decode problems are reported through r.Err.
func ReadValue(r *wire.Reader) Object {
	return readValue(r, 0)
}

func readValue(r *wire.Reader, depth int) Object {
	if depth > maxNesting {
		r.Failf("value nesting exceeds %d", maxNesting)
		return nil
	}
	tag := r.GetTag()
	if r.Err() != nil {
		return nil
	}
	if tag == tagAbsent {
		return nil
	}
	switch Type(tag) {
	case TypeNull:
		return Null
	case TypeMissing:
		return Missing
	case TypePromise:
		return Promise

	case TypeVector:
		opts := r.GetInt32()
		v := &Vector{Class: getClass(r, opts)}
		v.length = getLength(r)
		v.Data = ReadStore(r)
		if v.Data != nil && !v.Data.StructOnly() && int64(v.Data.Len()) != v.length {
			r.Failf("vector length %d does not match store length %d", v.length, v.Data.Len())
		}
		v.Names = getNames(r, opts)
		v.Attrs = getAttrs(r, opts, depth)
		return v

	case TypeFactor:
		opts := r.GetInt32()
		f := &Factor{Class: getClass(r, opts)}
		f.length = getLength(r)
		store := ReadStore(r)
		fs, ok := store.(*FactorStore)
		if !ok {
			r.Failf("factor without factor store")
			return nil
		}
		f.Data = fs
		f.Names = getNames(r, opts)
		f.Attrs = getAttrs(r, opts, depth)
		return f

	case TypeArray:
		opts := r.GetInt32()
		a := &Array{Class: getClass(r, opts)}
		a.Dim = r.GetInt32s()
		a.Data = ReadStore(r)
		if opts&optDimNames != 0 {
			a.DimNames = getList(r, depth)
		}
		a.Attrs = getAttrs(r, opts, depth)
		return a

	case TypeList:
		opts := r.GetInt32()
		l := &List{Class: getClass(r, opts)}
		l.length = getLength(r)
		l.Names = getNames(r, opts)
		if opts&optStructOnly == 0 {
			l.Items = readItems(r, l.length, depth)
		}
		l.Attrs = getAttrs(r, opts, depth)
		return l

	case TypeDataFrame:
		opts := r.GetInt32()
		d := &DataFrame{Class: getClass(r, opts)}
		d.colCount = getLength(r)
		d.rowCount = getLength(r)
		d.Names = getCharacterStore(r)
		if opts&optRowNames != 0 {
			d.RowNames = ReadStore(r)
		}
		if opts&optStructOnly == 0 {
			d.Columns = readItems(r, d.colCount, depth)
		}
		d.Attrs = getAttrs(r, opts, depth)
		return d

	case TypeEnvironment:
		opts := r.GetInt32()
		e := &Environment{Class: getClass(r, opts)}
		e.Handle = uint64(r.GetInt64())
		e.ID = r.GetString()
		e.length = getLength(r)
		if opts&optNoChildren == 0 {
			e.Names = getCharacterStore(r)
			e.Items = readItems(r, e.length, depth)
		}
		e.Attrs = getAttrs(r, opts, depth)
		return e

	case TypeFunction:
		opts := r.GetInt32()
		f := &Function{Header: r.GetString()}
		f.Attrs = getAttrs(r, opts, depth)
		return f

	case TypeReference:
		opts := r.GetInt32()
		ref := &Reference{Handle: uint64(r.GetInt64())}
		ref.DeclaredType = Type(r.GetTag())
		ref.DeclaredClass = getClass(r, opts)
		return ref

	case TypeS4:
		r.GetInt32()
		s := &S4{Class: r.GetString()}
		s.SlotNames = r.GetStrings()
		s.SlotValues = readItems(r, int64(len(s.SlotNames)), depth)
		return s

	case TypeLanguage:
		opts := r.GetInt32()
		l := &Language{Class: getClass(r, opts)}
		l.Kind = LanguageKind(r.GetByte())
		if l.Kind < LangName || l.Kind > LangCall {
			r.Failf("unknown language kind %d", l.Kind)
			return nil
		}
		l.Source = r.GetString()
		l.Attrs = getAttrs(r, opts, depth)
		return l

	case TypeOther:
		opts := r.GetInt32()
		o := &Other{Class: r.GetString()}
		o.Attrs = getAttrs(r, opts, depth)
		return o
	}
	r.Failf("unknown value tag %d", tag)
	return nil
}

func getClass(r *wire.Reader, opts int32) string {
	if opts&optClass != 0 {
		return r.GetString()
	}
	return ""
}

func getLength(r *wire.Reader) int64 {
	n := r.GetInt64()
	if n < 0 || n > wire.MaxArrayLength {
		r.Failf("invalid length %d", n)
		return 0
	}
	return n
}

func getNames(r *wire.Reader, opts int32) *CharacterStore {
	if opts&optNames == 0 {
		return nil
	}
	return getCharacterStore(r)
}

func getCharacterStore(r *wire.Reader) *CharacterStore {
	s := ReadStore(r)
	if r.Err() != nil {
		return nil
	}
	cs, ok := s.(*CharacterStore)
	if !ok {
		r.Failf("expected character store, got %v", s.StoreType())
		return nil
	}
	return cs
}

func getAttrs(r *wire.Reader, opts int32, depth int) *List {
	if opts&optAttributes == 0 {
		return nil
	}
	return getList(r, depth)
}

func getList(r *wire.Reader, depth int) *List {
	obj := readValue(r, depth+1)
	if r.Err() != nil {
		return nil
	}
	l, ok := obj.(*List)
	if !ok {
		r.Failf("expected list")
		return nil
	}
	return l
}

func readItems(r *wire.Reader, n int64, depth int) []Object {
	// every item needs at least its tag byte
	if n > int64(r.Remaining()) {
		r.Failf("item count %d exceeds remaining input", n)
		return nil
	}
	items := make([]Object, n)
	for i := range items {
		items[i] = readValue(r, depth+1)
		if r.Err() != nil {
			return nil
		}
	}
	return items
}

// ReadStore decodes a store written by WriteStore.
func ReadStore(r *wire.Reader) Store {
	b := r.GetByte()
	if r.Err() != nil {
		return nil
	}
	if b&structTag != 0 {
		t := StoreType(b &^ structTag)
		if !validStoreType(t) {
			r.Failf("unknown store type %d", t)
			return nil
		}
		if t == FactorType {
			ordered := r.GetBool()
			return StructFactorStore(ordered, int(r.GetInt32()))
		}
		return StructStore(t)
	}
	switch t := StoreType(b); t {
	case LogicalType:
		n := r.GetLength(1)
		vals := make([]Logical, n)
		for i := range vals {
			v := Logical(r.GetByte())
			if v < False || v > LogicalNA {
				r.Failf("invalid logical byte %d", v)
				return nil
			}
			vals[i] = v
		}
		return &LogicalStore{Values: vals}
	case IntegerType:
		return &IntegerStore{Values: r.GetInt32s()}
	case NumericType:
		return &NumericStore{Values: r.GetFloat64s()}
	case ComplexType:
		n := r.GetLength(16)
		s := &ComplexStore{Re: make([]float64, n), Im: make([]float64, n)}
		for i := 0; i < n; i++ {
			s.Re[i] = r.GetFloat64()
			s.Im[i] = r.GetFloat64()
		}
		return s
	case CharacterType:
		n := r.GetLength(4)
		s := &CharacterStore{Values: make([]string, n)}
		for i := 0; i < n; i++ {
			v, na := r.GetStringNA()
			if na {
				s.SetNA(i)
			} else {
				s.Values[i] = v
			}
		}
		return s
	case RawType:
		return &RawStore{Values: r.GetBytes()}
	case FactorType:
		f := &FactorStore{Ordered: r.GetBool()}
		f.Levels = r.GetStrings()
		f.Codes = r.GetInt32s()
		for _, c := range f.Codes {
			if c != wire.NAInt32 && (c < 1 || int(c) > len(f.Levels)) {
				r.Failf("factor code %d out of range", c)
				return nil
			}
		}
		return f
	default:
		r.Failf("unknown store type %d", t)
		return nil
	}
}

func validStoreType(t StoreType) bool {
	switch t {
	case LogicalType, IntegerType, NumericType, ComplexType, CharacterType, RawType, FactorType:
		return true
	}
	return false
}

// Marshal encodes obj into a fresh byte slice.
func Marshal(obj Object) []byte {
	w := wire.NewWriter(64)
	WriteValue(w, obj)
	return w.Bytes()
}

// Unmarshal decodes exactly one value from data.
func Unmarshal(data []byte) (Object, error) {
	r := wire.NewReader(data)
	obj := ReadValue(r)
	r.ExpectEnd()
	if err := r.Err(); err != nil {
		return nil, err
	}
	return obj, nil
}
