package ffi

/*
#include <ffi.h>
#include <stdlib.h>
#include <string.h>
#include <stdint.h>
*/
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/alekratz/sbl/internal/ast"
	"github.com/alekratz/sbl/internal/value"
)

// cType maps a declared SBL parameter/return type to its libffi type and a
// freshly-allocated C buffer sized to hold one value of that type.
func cType(t ast.TypeTag) (*C.ffi_type, int) {
	switch t {
	case ast.TypeInt:
		return &C.ffi_type_sint32, int(C.sizeof_int32_t)
	case ast.TypeChar:
		return &C.ffi_type_uint8, 1
	case ast.TypeString:
		return &C.ffi_type_pointer, int(C.sizeof_uintptr_t)
	case ast.TypeBool:
		return &C.ffi_type_sint32, int(C.sizeof_int32_t)
	case ast.TypeVoid:
		return &C.ffi_type_void, 0
	default:
		return &C.ffi_type_void, 0
	}
}

// marshalArg copies v's C-ABI representation into a freshly-allocated C
// buffer: ints as 32-bit signed, chars as an unsigned byte, strings as
// NUL-terminated UTF-8 pointers (kept alive in pool for the duration of the
// call), bools as 32-bit 0/1.
func marshalArg(t ast.TypeTag, v value.Value, pool *[]unsafe.Pointer) (unsafe.Pointer, error) {
	switch t {
	case ast.TypeInt:
		p := C.malloc(C.sizeof_int32_t)
		*(*C.int32_t)(p) = C.int32_t(v.I)
		*pool = append(*pool, p)
		return p, nil
	case ast.TypeChar:
		p := C.malloc(1)
		*(*C.uint8_t)(p) = C.uint8_t(byte(v.C))
		*pool = append(*pool, p)
		return p, nil
	case ast.TypeBool:
		p := C.malloc(C.sizeof_int32_t)
		b := C.int32_t(0)
		if v.B {
			b = 1
		}
		*(*C.int32_t)(p) = b
		*pool = append(*pool, p)
		return p, nil
	case ast.TypeString:
		cstr := C.CString(v.S)
		*pool = append(*pool, unsafe.Pointer(cstr))
		// libffi wants a pointer TO the argument value; for a pointer-typed
		// argument the value is itself a pointer, so we store it and hand
		// back a pointer-to-pointer.
		holder := C.malloc(C.sizeof_uintptr_t)
		*(*uintptr)(holder) = uintptr(unsafe.Pointer(cstr))
		*pool = append(*pool, holder)
		return holder, nil
	default:
		return nil, fmt.Errorf("unsupported foreign argument type %s", t)
	}
}

func freePool(pool []unsafe.Pointer) {
	for _, p := range pool {
		C.free(p)
	}
}

// ffiCall prepares a CIF for (argTypes... -> ret), marshals args, and
// invokes sym, converting the result back to a Value.
func ffiCall(sym unsafe.Pointer, ret ast.TypeTag, args []value.Value) (value.Value, error) {
	var pool []unsafe.Pointer
	defer func() { freePool(pool) }()

	argTypes := make([]*C.ffi_type, len(args))
	argValues := make([]unsafe.Pointer, len(args))
	for i := range args {
		t := inferTag(args[i])
		ct, _ := cType(t)
		argTypes[i] = ct
		p, err := marshalArg(t, args[i], &pool)
		if err != nil {
			return value.Value{}, err
		}
		argValues[i] = p
	}

	retType, retSize := cType(ret)
	if retSize == 0 {
		retSize = 8
	}
	rvalue := C.malloc(C.size_t(retSize))
	defer C.free(rvalue)

	var cif C.ffi_cif
	var argTypesPtr **C.ffi_type
	if len(argTypes) > 0 {
		argTypesPtr = (**C.ffi_type)(unsafe.Pointer(&argTypes[0]))
	}
	status := C.ffi_prep_cif(&cif, C.FFI_DEFAULT_ABI, C.uint(len(args)), retType, argTypesPtr)
	if status != C.FFI_OK {
		return value.Value{}, fmt.Errorf("ffi_prep_cif failed: status %d", int(status))
	}

	var argValuesPtr *unsafe.Pointer
	if len(argValues) > 0 {
		argValuesPtr = &argValues[0]
	}
	C.ffi_call(&cif, (*[0]byte)(sym), rvalue, argValuesPtr)

	return unmarshalResult(ret, rvalue), nil
}

// inferTag recovers the TypeTag a Value was already checked against in
// callForeign, so marshalArg encodes it the same way regardless of call
// order.
func inferTag(v value.Value) ast.TypeTag {
	switch v.Kind {
	case value.Int:
		return ast.TypeInt
	case value.Char:
		return ast.TypeChar
	case value.String:
		return ast.TypeString
	case value.Bool:
		return ast.TypeBool
	default:
		return ast.TypeVoid
	}
}

func unmarshalResult(ret ast.TypeTag, rvalue unsafe.Pointer) value.Value {
	switch ret {
	case ast.TypeInt:
		return value.NewInt(int64(*(*C.int32_t)(rvalue)))
	case ast.TypeChar:
		return value.NewChar(rune(*(*C.uint8_t)(rvalue)))
	case ast.TypeBool:
		return value.NewBool(*(*C.int32_t)(rvalue) != 0)
	case ast.TypeVoid:
		return value.NilValue
	default:
		return value.NilValue
	}
}
