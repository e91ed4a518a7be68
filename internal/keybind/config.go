package keybind

import (
	"fmt"
	"os"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"
)

// LoadUserBindings reads a keybinding config file: a YAML mapping of
// snake_case action name to either one key-combination string or a list
// of them. Decoding via yaml.Node (rather than straight into a Go map)
// preserves the file's key order, same as the collection loader, so
// newly-added actions display in the order the user wrote them.
func LoadUserBindings(path string) (*orderedmap.OrderedMap[Action, []KeyCombination], error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keybinding config: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse keybinding config: %w", err)
	}
	if len(doc.Content) == 0 {
		return orderedmap.New[Action, []KeyCombination](), nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("keybinding config: expected a mapping at the top level")
	}

	out := orderedmap.New[Action, []KeyCombination]()
	for i := 0; i+1 < len(root.Content); i += 2 {
		keyNode, valNode := root.Content[i], root.Content[i+1]
		action := Action(keyNode.Value)

		var combos []KeyCombination
		switch valNode.Kind {
		case yaml.ScalarNode:
			c, err := ParseKeyCombination(valNode.Value)
			if err != nil {
				return nil, fmt.Errorf("action %q: %w", action, err)
			}
			combos = []KeyCombination{c}
		case yaml.SequenceNode:
			for _, item := range valNode.Content {
				c, err := ParseKeyCombination(item.Value)
				if err != nil {
					return nil, fmt.Errorf("action %q: %w", action, err)
				}
				combos = append(combos, c)
			}
		default:
			return nil, fmt.Errorf("action %q: expected a string or list of strings", action)
		}

		out.Set(action, combos)
	}

	return out, nil
}
