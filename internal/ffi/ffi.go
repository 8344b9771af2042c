// Package ffi implements the foreign-function bridge (C9): dynamic library
// open/symbol lookup and a libffi-style indirect call dispatch.
//
// There is no pure-Go equivalent of libffi's "call any C signature given
// only type tags" in the dependency pack this module was grounded on
// (_examples/original_source/src/vm/foreign.rs binds libc's dlopen/dlsym and
// the libffi crate directly). cgo binding straight to dlfcn.h and ffi.h is
// the idiomatic Go analogue of that same mechanism — see DESIGN.md.
package ffi

/*
#cgo LDFLAGS: -lffi -ldl
#include <dlfcn.h>
#include <ffi.h>
#include <stdlib.h>

static void *sbl_dlopen(const char *path) {
	return dlopen(path, RTLD_NOW | RTLD_GLOBAL);
}

static void *sbl_dlsym(void *handle, const char *name) {
	return dlsym(handle, name);
}
*/
import "C"

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/alekratz/sbl/internal/ast"
	"github.com/alekratz/sbl/internal/value"
)

func key(lib, name string) string { return lib + "::" + name }

// Bridge owns every open dynamic library handle and resolved symbol for the
// lifetime of one VM: shared, never mutated after installation.
type Bridge struct {
	mu      sync.Mutex
	handles map[string]unsafe.Pointer // lib name -> dlopen handle
	symbols map[string]unsafe.Pointer // "lib::name" -> dlsym address
}

// NewBridge returns an empty Bridge.
func NewBridge() *Bridge {
	return &Bridge{
		handles: make(map[string]unsafe.Pointer),
		symbols: make(map[string]unsafe.Pointer),
	}
}

// Ensure opens lib (if not already open) and resolves name within it (if
// not already resolved), caching both. Safe to call on every Call; it is a
// no-op after the first successful call for a given (lib, name) pair.
func (b *Bridge) Ensure(lib, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	handle, ok := b.handles[lib]
	if !ok {
		cLib := C.CString(lib)
		defer C.free(unsafe.Pointer(cLib))
		handle = C.sbl_dlopen(cLib)
		if handle == nil {
			return fmt.Errorf("could not open dynamic library `%s`", lib)
		}
		b.handles[lib] = handle
	}

	k := key(lib, name)
	if _, ok := b.symbols[k]; ok {
		return nil
	}
	cName := C.CString(name)
	defer C.free(unsafe.Pointer(cName))
	sym := C.sbl_dlsym(handle, cName)
	if sym == nil {
		return fmt.Errorf("could not find symbol `%s` in dynamic library `%s`", name, lib)
	}
	b.symbols[k] = sym
	return nil
}

// Call marshals args into their C-ABI representation and invokes the
// resolved symbol via libffi, returning its result as a Value (NilValue for
// a void return).
func (b *Bridge) Call(lib, name string, ret ast.TypeTag, args []value.Value) (value.Value, error) {
	b.mu.Lock()
	sym, ok := b.symbols[key(lib, name)]
	b.mu.Unlock()
	if !ok {
		return value.Value{}, fmt.Errorf("foreign function `%s` in `%s` was never loaded", name, lib)
	}
	return ffiCall(sym, ret, args)
}
