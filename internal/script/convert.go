package script

import (
	"sort"

	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/huemotion/internal/light"
)

// stateToTable converts a light state to a Lua table. Unset fields are nil.
func stateToTable(L *lua.LState, st light.State) *lua.LTable {
	tbl := L.NewTable()
	if st.On != nil {
		tbl.RawSetString("on", lua.LBool(*st.On))
	}
	if st.Hue != nil {
		tbl.RawSetString("hue", lua.LNumber(*st.Hue))
	}
	if st.Sat != nil {
		tbl.RawSetString("sat", lua.LNumber(*st.Sat))
	}
	if st.Bri != nil {
		tbl.RawSetString("bri", lua.LNumber(*st.Bri))
	}
	if st.TransitionTime != nil {
		tbl.RawSetString("transitiontime", lua.LNumber(*st.TransitionTime))
	}
	return tbl
}

// lightsToTable converts a snapshot to a Lua table keyed by light id.
func lightsToTable(L *lua.LState, lights light.Collection) *lua.LTable {
	tbl := L.NewTable()
	for _, id := range lights.IDs() {
		l := lights[id]
		entry := stateToTable(L, l.State)
		entry.RawSetString("name", lua.LString(l.Name))
		entry.RawSetString("reachable", lua.LBool(l.Reachable))
		tbl.RawSetInt(int(id), entry)
	}
	return tbl
}

// toValue converts a Lua value to an attribute value. Numbers are clamped
// to the range of T and truncated.
func toValue[T interface{ bool | uint8 | uint16 }](v lua.LValue) (T, bool) {
	var zero T
	switch val := v.(type) {
	case lua.LBool:
		if _, ok := any(zero).(bool); ok {
			return any(bool(val)).(T), true
		}
	case lua.LNumber:
		f := float64(val)
		switch any(zero).(type) {
		case uint8:
			return any(uint8(clamp(f, 255))).(T), true
		case uint16:
			return any(uint16(clamp(f, 65535))).(T), true
		}
	}
	return zero, false
}

func clamp(f, limit float64) float64 {
	if f < 0 {
		return 0
	}
	if f > limit {
		return limit
	}
	return f
}

// numberField reads a numeric field from a table.
func numberField(tbl *lua.LTable, key string) (float64, bool) {
	n, ok := tbl.RawGetString(key).(lua.LNumber)
	return float64(n), ok
}

// intKeys returns the integer keys of a table in ascending order.
func intKeys(tbl *lua.LTable) []int {
	var keys []int
	tbl.ForEach(func(k, _ lua.LValue) {
		if n, ok := k.(lua.LNumber); ok {
			keys = append(keys, int(n))
		}
	})
	sort.Ints(keys)
	return keys
}
