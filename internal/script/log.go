package script

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"
)

// logLoader exposes zerolog to scripts as require("log").
// Each function takes a message and an optional table of fields.
func logLoader(name string) lua.LGFunction {
	return func(L *lua.LState) int {
		mod := L.NewTable()
		L.SetField(mod, "debug", L.NewFunction(logAt(name, zerolog.DebugLevel)))
		L.SetField(mod, "info", L.NewFunction(logAt(name, zerolog.InfoLevel)))
		L.SetField(mod, "warn", L.NewFunction(logAt(name, zerolog.WarnLevel)))
		L.SetField(mod, "error", L.NewFunction(logAt(name, zerolog.ErrorLevel)))
		L.Push(mod)
		return 1
	}
}

func logAt(name string, level zerolog.Level) lua.LGFunction {
	return func(L *lua.LState) int {
		msg := L.CheckString(1)
		event := log.WithLevel(level).Str("source", "lua").Str("script", name)
		if fields, ok := L.Get(2).(*lua.LTable); ok {
			fields.ForEach(func(k, v lua.LValue) {
				event = event.Str(k.String(), v.String())
			})
		}
		event.Msg(msg)
		return 0
	}
}
