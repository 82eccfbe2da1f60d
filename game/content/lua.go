package content

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"boardrush/game/domain"
)

//go:embed packs/default.lua
var defaultPack string

var (
	defaultOnce  sync.Once
	defaultTable *MemoryTable
	defaultErr   error
)

// Default は組み込みのコンテンツパックを返します。
func Default() (*MemoryTable, error) {
	defaultOnce.Do(func() {
		defaultTable, defaultErr = LoadLua(defaultPack)
	})
	return defaultTable, defaultErr
}

func LoadLuaFile(path string) (*MemoryTable, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read content pack: %w", err)
	}
	return LoadLua(string(src))
}

// LoadLua はテーブルを return する Lua スクリプトからコンテンツ表を作ります。
//
//	return {
//	  quiz = { { id = "q1", difficulty = 1, prompt = "...", options = {"a", "b"}, answer = 1, reward = 10, xp = 5 } },
//	  duel = { ... }, funding = { ... }, opportunity = { ... }, challenge = { ... },
//	}
//
// answer は Lua 側では1始まりです。スクリプトには base / table / string ライブラリだけを開きます。
func LoadLua(source string) (*MemoryTable, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()

	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}

	if err := L.DoString(source); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPack, err)
	}
	root, ok := L.Get(-1).(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("%w: script must return a table", ErrInvalidPack)
	}
	L.Pop(1)

	var items []Item
	for category := domain.EventQuiz; category < domain.NumEventTypes; category++ {
		list, ok := root.RawGetString(category.String()).(*lua.LTable)
		if !ok {
			continue
		}
		for i := 1; i <= list.Len(); i++ {
			entry, ok := list.RawGetInt(i).(*lua.LTable)
			if !ok {
				return nil, fmt.Errorf("%w: %s[%d] is not a table", ErrInvalidPack, category, i)
			}
			items = append(items, itemFromLua(category, entry))
		}
	}
	return NewMemoryTable(items)
}

func itemFromLua(category domain.EventType, t *lua.LTable) Item {
	it := Item{
		ID:         luaString(t, "id"),
		Category:   category,
		Difficulty: luaInt(t, "difficulty", MinDifficulty),
		Prompt:     luaString(t, "prompt"),
		Answer:     luaInt(t, "answer", 0) - 1,
		Reward:     luaInt(t, "reward", 0),
		Cost:       luaInt(t, "cost", 0),
		Points:     luaInt(t, "points", 0),
		XP:         luaInt(t, "xp", 0),
	}
	if opts, ok := t.RawGetString("options").(*lua.LTable); ok {
		for i := 1; i <= opts.Len(); i++ {
			it.Options = append(it.Options, lua.LVAsString(opts.RawGetInt(i)))
		}
	}
	return it
}

func luaString(t *lua.LTable, key string) string {
	return lua.LVAsString(t.RawGetString(key))
}

func luaInt(t *lua.LTable, key string, def int) int {
	if n, ok := t.RawGetString(key).(lua.LNumber); ok {
		return int(n)
	}
	return def
}
