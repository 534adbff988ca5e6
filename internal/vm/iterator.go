package vm

// Iterator is a single handle dispatching by kind tag over the five
// container kinds. HasNext is side-effect-free and idempotent; Value/Key
// read the current element without advancing; Advance is a no-op past the
// end. Key is valid only for the map kinds. The handle holds a shared
// reference to the backing container; the key sequence is fixed at creation,
// so structural mutation of the container during iteration is undefined.
type Iterator struct {
	kind Kind

	array  *Array
	mapObj *MapObj
	intMap *IntMapObj

	strKeys []string
	intKeys []int32

	pos int
}

// NewIterator builds an iterator over a container value. Non-container
// kinds raise a wrong-type fault.
func NewIterator(container Value) *Iterator {
	switch container.Kind() {
	case KindArray:
		return &Iterator{kind: KindArray, array: container.Array()}
	case KindMap:
		m := container.Map()
		return &Iterator{kind: KindMap, mapObj: m, strKeys: append([]string(nil), m.Keys()...)}
	case KindSet:
		s := container.Set()
		return &Iterator{kind: KindSet, strKeys: append([]string(nil), s.Keys()...)}
	case KindIntMap:
		m := container.IntMap()
		return &Iterator{kind: KindIntMap, intMap: m, intKeys: append([]int32(nil), m.Keys()...)}
	case KindIntSet:
		s := container.IntSet()
		return &Iterator{kind: KindIntSet, intKeys: append([]int32(nil), s.Keys()...)}
	default:
		panic(faultf(FaultWrongType, "cannot iterate %s", container.Kind()))
	}
}

func (it *Iterator) length() int {
	switch it.kind {
	case KindArray:
		return len(it.array.Elems)
	case KindMap, KindSet:
		return len(it.strKeys)
	default:
		return len(it.intKeys)
	}
}

// HasNext reports whether a current element exists.
func (it *Iterator) HasNext() bool {
	return it.pos < it.length()
}

// Value returns the current element without advancing.
func (it *Iterator) Value() Value {
	if checksEnabled && !it.HasNext() {
		panic(faultf(FaultBadIndex, "iterator exhausted"))
	}
	switch it.kind {
	case KindArray:
		return it.array.Elems[it.pos]
	case KindMap:
		v, _ := it.mapObj.Get(it.strKeys[it.pos])
		return v
	case KindSet:
		return Str(it.strKeys[it.pos])
	case KindIntMap:
		v, _ := it.intMap.Get(it.intKeys[it.pos])
		return v
	default: // int set
		return Int(it.intKeys[it.pos])
	}
}

// Key returns the current key. Valid only for the map kinds; array and set
// iteration has no key.
func (it *Iterator) Key() Value {
	switch it.kind {
	case KindMap:
		if checksEnabled && !it.HasNext() {
			panic(faultf(FaultBadIndex, "iterator exhausted"))
		}
		return Str(it.strKeys[it.pos])
	case KindIntMap:
		if checksEnabled && !it.HasNext() {
			panic(faultf(FaultBadIndex, "iterator exhausted"))
		}
		return Int(it.intKeys[it.pos])
	default:
		panic(faultf(FaultWrongType, "%s iterator has no keys", it.kind))
	}
}

// Advance moves to the next element; past the end it is a no-op.
func (it *Iterator) Advance() {
	if it.pos < it.length() {
		it.pos++
	}
}
