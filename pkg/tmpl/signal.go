package tmpl

import "errors"

// MacroReturn is the early-return signal: macro body logic raises it through
// the `return(value)` context builtin to produce a value immediately. It is
// control flow, not a failure; the macro invocation boundary converts it into
// a normal successful result.
type MacroReturn struct {
	Value any
}

func (e *MacroReturn) Error() string {
	return "macro returned a value outside of a macro invocation"
}

// AsMacroReturn unwraps err into a *MacroReturn if one is in its chain.
func AsMacroReturn(err error) (*MacroReturn, bool) {
	var mr *MacroReturn
	if errors.As(err, &mr) {
		return mr, true
	}
	return nil, false
}
