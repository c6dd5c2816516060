package vars

import "strings"

// Flag describes the behaviour of a variable. Built-in variables carry
// their flags in the okey table; user variables only ever gain FlagLinked.
type Flag uint32

const (
	FlagBool Flag = 1 << iota
	FlagVirtual
	FlagReadOnly
	FlagNoDelete
	FlagNoEmpty
	FlagNoCntrls
	FlagNum
	FlagPosNum
	FlagLower
	FlagHook
	FlagImport
	FlagEnv
	FlagFirstUse
	FlagDefault
	FlagLinked
)

var flagNames = []struct {
	f    Flag
	name string
}{
	{FlagBool, "boolean"},
	{FlagVirtual, "virtual"},
	{FlagReadOnly, "read-only"},
	{FlagNoDelete, "nodelete"},
	{FlagNoEmpty, "notempty"},
	{FlagNoCntrls, "no-control-chars"},
	{FlagNum, "number"},
	{FlagPosNum, "positive-number"},
	{FlagLower, "lowercase"},
	{FlagHook, "hooked"},
	{FlagImport, "import"},
	{FlagEnv, "env-sync"},
	{FlagFirstUse, "first-use-value"},
	{FlagDefault, "default-value"},
	{FlagLinked, "env-linked"},
}

// String renders the set flags as a comma separated list.
func (f Flag) String() string {
	var parts []string
	for _, fn := range flagNames {
		if f&fn.f != 0 {
			parts = append(parts, fn.name)
		}
	}
	return strings.Join(parts, ", ")
}
