// Copyright 2026 The Linear Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package linear

import "unsafe"

// hashFn has the signature of the hash functions the Go runtime generates
// for map key types: (pointer to key, seed) -> hash.
type hashFn func(key unsafe.Pointer, seed uintptr) uintptr

// getRuntimeHasher returns the hash function used by Go's builtin maps for
// the key type K. The function is extracted by materializing the type
// descriptor for a map[K]struct{} and reading the hasher field out of it.
// The struct mirrors below must be kept in sync with the layout of the
// runtime's type descriptors (internal/abi.Type and internal/abi.MapType).
func getRuntimeHasher[K comparable]() hashFn {
	var m map[K]struct{}
	a := any(m)
	i := (*iface)(unsafe.Pointer(&a))
	return (*mapType)(i.typ).hasher
}

// iface mirrors the runtime representation of an empty interface value.
type iface struct {
	typ  unsafe.Pointer
	data unsafe.Pointer
}

// abiType mirrors internal/abi.Type. Only the overall size matters here: it
// positions the trailing fields of mapType correctly.
type abiType struct {
	size       uintptr
	ptrBytes   uintptr
	hash       uint32
	tflag      uint8
	align      uint8
	fieldAlign uint8
	kind       uint8
	equal      func(unsafe.Pointer, unsafe.Pointer) bool
	gcData     *byte
	str        int32
	ptrToThis  int32
}

// mapType mirrors internal/abi.MapType far enough to reach the hasher.
type mapType struct {
	abiType
	key    *abiType
	elem   *abiType
	bucket *abiType
	hasher hashFn
}

// noescape hides a pointer from escape analysis. noescape is the identity
// function but escape analysis doesn't think the output depends on the
// input. noescape is inlined and currently compiles down to zero
// instructions.
//
//go:nosplit
//go:nocheckptr
func noescape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}
