package script

import (
	"context"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/huemotion/internal/animation"
	"github.com/dokzlo13/huemotion/internal/light"
)

// luaApplier calls a Lua function to compute an attribute.
// Must only be used from the goroutine that owns L (the engine loop).
// Each call is cut off after CallTimeout.
type luaApplier[T animation.Value] struct {
	L      *lua.LState
	fn     *lua.LFunction
	id     light.DeviceID
	script string
}

func (a *luaApplier[T]) Apply(snapshot light.Collection, prev *T) animation.Producer[T] {
	L := a.L
	ctx, cancel := context.WithTimeout(context.Background(), CallTimeout)
	defer cancel()
	L.SetContext(ctx)
	defer L.RemoveContext()

	L.Push(a.fn)
	L.Push(lightsToTable(L, snapshot))
	L.Push(prevToLua(prev))
	L.Push(lua.LNumber(a.id))

	if err := L.PCall(3, 1, nil); err != nil {
		log.Error().Err(err).Str("script", a.script).Uint8("light", uint8(a.id)).Msg("Script function failed")
		return nil
	}

	ret := L.Get(-1)
	L.Pop(1)
	if ret == lua.LNil {
		return nil
	}

	v, ok := toValue[T](ret)
	if !ok {
		log.Warn().
			Str("script", a.script).
			Uint8("light", uint8(a.id)).
			Str("type", ret.Type().String()).
			Msg("Script function returned an unusable value")
		return nil
	}
	return animation.Constant(v)
}

func prevToLua[T animation.Value](prev *T) lua.LValue {
	if prev == nil {
		return lua.LNil
	}
	switch v := any(*prev).(type) {
	case bool:
		return lua.LBool(v)
	case uint8:
		return lua.LNumber(v)
	case uint16:
		return lua.LNumber(v)
	}
	return lua.LNil
}
