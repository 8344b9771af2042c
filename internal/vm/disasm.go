package vm

import (
	"fmt"
	"strings"

	"github.com/alekratz/sbl/internal/bytecode"
	"github.com/alekratz/sbl/internal/runtime"
)

// Disassemble renders every user function in table in the CLI's `--dump`
// format: one `- NAME ---…` header line per function, followed by
// `AAAAAA OPCODE PAYLOAD` lines (six-digit zero-padded address).
func Disassemble(table *runtime.FunTable) string {
	var sb strings.Builder
	for _, name := range table.Names() {
		fn, _ := table.Get(name)
		if fn.Kind != runtime.UserFunc {
			continue
		}
		header := fmt.Sprintf("- %s ", name)
		sb.WriteString(header)
		sb.WriteString(strings.Repeat("-", dashWidth(header)))
		sb.WriteByte('\n')
		for addr, in := range fn.Body {
			sb.WriteString(disasmInstr(addr, in))
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func disasmInstr(addr int, in bytecode.Instr) string {
	payload := payloadString(in)
	if payload == "" {
		return fmt.Sprintf("%06d %s", addr, in.Kind)
	}
	return fmt.Sprintf("%06d %s %s", addr, in.Kind, payload)
}

func payloadString(in bytecode.Instr) string {
	switch in.Kind {
	case bytecode.Push:
		parts := make([]string, len(in.Bundle))
		for i, v := range in.Bundle {
			parts[i] = v.String()
		}
		return strings.Join(parts, " ")
	case bytecode.Store:
		return fmt.Sprintf("%s %s", in.Target.String(), in.Val.String())
	case bytecode.Call:
		return in.Val.S
	case bytecode.PushL, bytecode.PopDiscard, bytecode.Ret, bytecode.Nop:
		return ""
	default:
		if in.Val.Kind == 0 && in.Val.I == 0 && in.Val.S == "" {
			return ""
		}
		return in.Val.String()
	}
}

func dashWidth(header string) int {
	if w := 40 - len(header); w > 3 {
		return w
	}
	return 3
}
