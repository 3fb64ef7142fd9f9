package ir

import (
	"slices"
	"unicode/utf16"
)

// IRValue is a sealed interface over the JSON-shaped values Encode produces.
// Only IRNull, IRString, IRInt, IRBool, IRArray, and IRObject implement it.
// There is no float variant: numerals travel as digit strings.
type IRValue interface {
	irValue() // Sealed - only these types implement it
}

// IRNull marks an empty slot, such as an unnamed application or an unknown
// dimension.
type IRNull struct{}

func (IRNull) irValue() {}

type IRString string

func (IRString) irValue() {}

// IRInt is always int64, never float64.
type IRInt int64

func (IRInt) irValue() {}

type IRBool bool

func (IRBool) irValue() {}

type IRArray []IRValue

func (IRArray) irValue() {}

// IRObject maps string keys to values. Use SortedKeys() for deterministic
// iteration.
type IRObject map[string]IRValue

func (IRObject) irValue() {}

// Tag builds a tagged array: the tag string followed by the children.
func Tag(tag string, children ...IRValue) IRArray {
	arr := make(IRArray, 0, len(children)+1)
	arr = append(arr, IRString(tag))
	return append(arr, children...)
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's string ordering compares UTF-8 bytes, which differs for characters
// outside the BMP.
func (obj IRObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}
