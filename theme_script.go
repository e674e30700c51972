// theme_script.go: Lua runtime for theme functions.lua scripts
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextend

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/Shopify/go-lua"
)

// ThemeScriptName is the optional per-theme script run on first load.
const ThemeScriptName = "functions.lua"

// callbackTableKey names the registry table holding Lua hook callbacks.
const callbackTableKey = "goextend.callbacks"

type scriptReentryKey struct{}

// themeScript owns the Lua state of one theme.
//
// The script may call:
//
//	add_action(name, fn [, priority])
//	add_filter(name, fn [, priority])
//	do_action(name, ...)
//	apply_filters(name, value, ...) -> value
//	enqueue_style(handle, src [, version])
//	enqueue_script(handle, src [, version [, in_footer]])
//	theme_asset(path) -> url
//	log(level, message)
//
// The state is not safe for concurrent use, so every entry from Go holds mu.
// Calls that re-enter the state from inside a running script carry a context
// marker and skip the lock.
type themeScript struct {
	mu      sync.Mutex
	state   *lua.State
	kernel  *Kernel
	slug    string
	path    string
	logger  Logger
	ctx     context.Context
	nextRef int
}

func newThemeScript(kernel *Kernel, slug, path string, logger Logger) *themeScript {
	script := &themeScript{
		state:  lua.NewState(),
		kernel: kernel,
		slug:   slug,
		path:   path,
		logger: logger.With("theme", slug, "script", path),
	}
	lua.OpenLibraries(script.state)

	script.state.NewTable()
	script.state.SetField(lua.RegistryIndex, callbackTableKey)

	for _, fn := range []lua.RegistryFunction{
		{Name: "add_action", Function: script.addAction},
		{Name: "add_filter", Function: script.addFilter},
		{Name: "do_action", Function: script.doAction},
		{Name: "apply_filters", Function: script.applyFilters},
		{Name: "enqueue_style", Function: script.enqueueStyle},
		{Name: "enqueue_script", Function: script.enqueueScript},
		{Name: "theme_asset", Function: script.themeAsset},
		{Name: "log", Function: script.log},
	} {
		script.state.PushGoFunction(fn.Function)
		script.state.SetGlobal(fn.Name)
	}
	return script
}

// run executes the script file once.
func (s *themeScript) run(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	restore := s.enter(ctx)
	defer restore()

	if err := lua.LoadFile(s.state, s.path, ""); err != nil {
		return NewThemeScriptError(s.slug, s.path, err)
	}
	if err := s.state.ProtectedCall(0, 0, 0); err != nil {
		return NewThemeScriptError(s.slug, s.path, err)
	}
	return nil
}

func (s *themeScript) enter(ctx context.Context) func() {
	previous := s.ctx
	s.ctx = context.WithValue(ctx, scriptReentryKey{}, s)
	return func() { s.ctx = previous }
}

func (s *themeScript) reentrant(ctx context.Context) bool {
	owner, _ := ctx.Value(scriptReentryKey{}).(*themeScript)
	return owner == s
}

// storeCallback keeps the function at index in the callback table.
func (s *themeScript) storeCallback(l *lua.State, index int) int {
	s.nextRef++
	ref := s.nextRef
	l.Field(lua.RegistryIndex, callbackTableKey)
	l.PushValue(index)
	l.RawSetInt(-2, ref)
	l.Pop(1)
	return ref
}

// invoke calls the stored callback ref. For filters value is passed first
// and the callback result is returned; a nil result leaves value unchanged.
func (s *themeScript) invoke(ctx context.Context, ref int, filter bool, value any, args []any) (any, error) {
	if !s.reentrant(ctx) {
		s.mu.Lock()
		defer s.mu.Unlock()
		restore := s.enter(ctx)
		defer restore()
	}

	l := s.state
	top := l.Top()
	defer l.SetTop(top)

	l.Field(lua.RegistryIndex, callbackTableKey)
	l.RawGetInt(-1, ref)
	l.Remove(-2)

	count := 0
	if filter {
		pushGoValue(l, value)
		count++
	}
	for _, arg := range args {
		pushGoValue(l, arg)
		count++
	}

	if err := l.ProtectedCall(count, 1, 0); err != nil {
		return value, NewThemeScriptError(s.slug, s.path, err)
	}
	if !filter || l.IsNoneOrNil(-1) {
		return value, nil
	}
	return luaToGoValue(l, -1), nil
}

func (s *themeScript) addAction(l *lua.State) int {
	name := lua.CheckString(l, 1)
	lua.CheckType(l, 2, lua.TypeFunction)
	priority := lua.OptInteger(l, 3, DefaultPriority)
	ref := s.storeCallback(l, 2)

	err := s.kernel.hooks.AddAction(name, func(ctx context.Context, args ...any) error {
		_, err := s.invoke(ctx, ref, false, nil, args)
		return err
	}, WithPriority(priority), WithOwner("theme:"+s.slug))
	if err != nil {
		lua.Errorf(l, "%s", err.Error())
	}
	return 0
}

func (s *themeScript) addFilter(l *lua.State) int {
	name := lua.CheckString(l, 1)
	lua.CheckType(l, 2, lua.TypeFunction)
	priority := lua.OptInteger(l, 3, DefaultPriority)
	ref := s.storeCallback(l, 2)

	err := s.kernel.hooks.AddFilter(name, func(ctx context.Context, value any, args ...any) (any, error) {
		return s.invoke(ctx, ref, true, value, args)
	}, WithPriority(priority), WithOwner("theme:"+s.slug))
	if err != nil {
		lua.Errorf(l, "%s", err.Error())
	}
	return 0
}

func (s *themeScript) doAction(l *lua.State) int {
	name := lua.CheckString(l, 1)
	args := collectLuaArgs(l, 2)
	if err := s.kernel.hooks.DoAction(s.ctx, name, args...); err != nil {
		lua.Errorf(l, "%s", err.Error())
	}
	return 0
}

func (s *themeScript) applyFilters(l *lua.State) int {
	name := lua.CheckString(l, 1)
	value := luaToGoValue(l, 2)
	args := collectLuaArgs(l, 3)
	filtered, err := s.kernel.hooks.ApplyFilters(s.ctx, name, value, args...)
	if err != nil {
		lua.Errorf(l, "%s", err.Error())
	}
	pushGoValue(l, filtered)
	return 1
}

func (s *themeScript) enqueueStyle(l *lua.State) int {
	s.kernel.assets.EnqueueStyle(Asset{
		Handle:  lua.CheckString(l, 1),
		Src:     lua.CheckString(l, 2),
		Version: lua.OptString(l, 3, ""),
	})
	return 0
}

func (s *themeScript) enqueueScript(l *lua.State) int {
	inFooter := false
	if !l.IsNoneOrNil(4) {
		inFooter = l.ToBoolean(4)
	}
	s.kernel.assets.EnqueueScript(Asset{
		Handle:   lua.CheckString(l, 1),
		Src:      lua.CheckString(l, 2),
		Version:  lua.OptString(l, 3, ""),
		InFooter: inFooter,
	})
	return 0
}

func (s *themeScript) themeAsset(l *lua.State) int {
	l.PushString(ThemeAssetURL(s.slug, lua.CheckString(l, 1)))
	return 1
}

func (s *themeScript) log(l *lua.State) int {
	level := lua.CheckString(l, 1)
	message := lua.CheckString(l, 2)
	switch level {
	case "debug":
		s.logger.Debug(message)
	case "warn", "warning":
		s.logger.Warn(message)
	case "error":
		s.logger.Error(message)
	default:
		s.logger.Info(message)
	}
	return 0
}

func collectLuaArgs(l *lua.State, from int) []any {
	top := l.Top()
	if top < from {
		return nil
	}
	args := make([]any, 0, top-from+1)
	for i := from; i <= top; i++ {
		args = append(args, luaToGoValue(l, i))
	}
	return args
}

// pushGoValue pushes a Go value. Unsupported types are pushed as their
// fmt representation.
func pushGoValue(l *lua.State, value any) {
	switch v := value.(type) {
	case nil:
		l.PushNil()
	case string:
		l.PushString(v)
	case bool:
		l.PushBoolean(v)
	case int:
		l.PushInteger(v)
	case int64:
		l.PushInteger(int(v))
	case int32:
		l.PushInteger(int(v))
	case float64:
		l.PushNumber(v)
	case float32:
		l.PushNumber(float64(v))
	case []string:
		l.NewTable()
		for i, item := range v {
			l.PushString(item)
			l.RawSetInt(-2, i+1)
		}
	case []any:
		l.NewTable()
		for i, item := range v {
			pushGoValue(l, item)
			l.RawSetInt(-2, i+1)
		}
	case map[string]any:
		l.NewTable()
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			pushGoValue(l, v[key])
			l.SetField(-2, key)
		}
	default:
		l.PushString(fmt.Sprint(v))
	}
}

// luaToGoValue converts the value at index. Integral numbers become int,
// sequence tables []any and other tables map[string]any.
func luaToGoValue(l *lua.State, index int) any {
	switch l.TypeOf(index) {
	case lua.TypeString:
		value, _ := l.ToString(index)
		return value
	case lua.TypeNumber:
		value, _ := l.ToNumber(index)
		if value == math.Trunc(value) && math.Abs(value) < 1<<53 {
			return int(value)
		}
		return value
	case lua.TypeBoolean:
		return l.ToBoolean(index)
	case lua.TypeTable:
		return luaTableToGo(l, index)
	default:
		return nil
	}
}

func luaTableToGo(l *lua.State, index int) any {
	index = l.AbsIndex(index)
	values := map[string]any{}
	var sequence []any
	isSequence := true

	l.PushNil()
	for l.Next(index) {
		switch l.TypeOf(-2) {
		case lua.TypeNumber:
			key, _ := l.ToNumber(-2)
			if int(key) != len(sequence)+1 {
				isSequence = false
			}
			sequence = append(sequence, luaToGoValue(l, -1))
			values[fmt.Sprint(int(key))] = sequence[len(sequence)-1]
		case lua.TypeString:
			isSequence = false
			key, _ := l.ToString(-2)
			values[key] = luaToGoValue(l, -1)
		}
		l.Pop(1)
	}

	if isSequence && len(sequence) > 0 {
		return sequence
	}
	return values
}
