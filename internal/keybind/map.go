package keybind

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Map is an ordered Action -> []KeyCombination table. Order matters:
// Lookup scans it front to back and returns the first action whose
// binding matches, and the same order drives how bindings are listed in
// a help screen.
type Map struct {
	bindings *orderedmap.OrderedMap[Action, []KeyCombination]
}

func single(code KeyCode, mods ...KeyModifiers) []KeyCombination {
	var m KeyModifiers
	for _, x := range mods {
		m |= x
	}
	return []KeyCombination{{Code: code, Modifiers: m}}
}

// Defaults returns the built-in Action -> binding table, used as the base
// that user overrides are merged on top of.
func Defaults() *orderedmap.OrderedMap[Action, []KeyCombination] {
	m := orderedmap.New[Action, []KeyCombination]()
	m.Set(ActionQuit, single("q"))
	m.Set(ActionForceQuit, single("c", ModCtrl))
	m.Set(ActionOpenActions, single("x"))
	m.Set(ActionOpenHelp, single("?"))
	m.Set(ActionFullscreen, single("f"))
	m.Set(ActionReloadCollection, single(fKey(5)))
	m.Set(ActionHistory, single("h"))
	m.Set(ActionSearch, single("/"))
	m.Set(ActionExport, single(":"))
	m.Set(ActionPreviousPane, single(KeyTab, ModShift))
	m.Set(ActionNextPane, single(KeyTab))
	m.Set(ActionUp, single(KeyUp))
	m.Set(ActionDown, single(KeyDown))
	m.Set(ActionLeft, single(KeyLeft))
	m.Set(ActionRight, single(KeyRight))
	m.Set(ActionPageUp, single(KeyPageUp))
	m.Set(ActionPageDown, single(KeyPageDown))
	m.Set(ActionHome, single(KeyHome))
	m.Set(ActionEnd, single(KeyEnd))
	m.Set(ActionSubmit, single(KeyEnter))
	m.Set(ActionToggle, single(KeySpace))
	m.Set(ActionCancel, single(KeyEscape))
	m.Set(ActionDelete, single(KeyDelete))
	m.Set(ActionEdit, single("e"))
	m.Set(ActionReset, single("z"))
	m.Set(ActionView, single("v"))
	m.Set(ActionSelectCollection, single(fKey(3)))
	m.Set(ActionSelectProfiles, single("p"))
	m.Set(ActionSelectRecipes, single("l"))
	m.Set(ActionSelectRecipe, single("c"))
	m.Set(ActionSelectResponse, single("r"))
	return m
}

// New builds a Map from the default bindings with userBindings merged on
// top: an action named in userBindings overwrites the default in place
// (keeping its original position) or is appended if new, and an action
// mapped to an empty list is dropped from the result entirely.
func New(userBindings *orderedmap.OrderedMap[Action, []KeyCombination]) *Map {
	m := Defaults()
	if userBindings != nil {
		for pair := userBindings.Oldest(); pair != nil; pair = pair.Next() {
			m.Set(pair.Key, pair.Value)
		}
	}
	var empty []Action
	for pair := m.Oldest(); pair != nil; pair = pair.Next() {
		if len(pair.Value) == 0 {
			empty = append(empty, pair.Key)
		}
	}
	for _, a := range empty {
		m.Delete(a)
	}
	return &Map{bindings: m}
}

// Lookup returns the first action (in map order) whose binding matches
// event, per the "linear scan, exact modifier match" lookup rule.
func (m *Map) Lookup(event KeyEvent) (Action, bool) {
	for pair := m.bindings.Oldest(); pair != nil; pair = pair.Next() {
		for _, combo := range pair.Value {
			if combo.Matches(event) {
				return pair.Key, true
			}
		}
	}
	return "", false
}

// Bindings returns the combinations bound to action, for help-screen
// display.
func (m *Map) Bindings(action Action) ([]KeyCombination, bool) {
	return m.bindings.Get(action)
}
