package patterns

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// metadataKeys are top-level keys that share the pattern file but are not
// ecosystems.
var metadataKeys = map[string]bool{
	"size_thresholds":   true,
	"system_exclusions": true,
}

var subgroupKinds = map[string]Kind{
	"directories": Directory,
	"files":       File,
}

// Parse decodes a pattern document of the form
//
//	ecosystem:
//	  directories: [name, ...]
//	  files: [glob, ...]
//
// keeping document order. Categories are "ecosystem.subgroup".
func Parse(data []byte) (*Set, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse patterns: %w", err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return NewSet()
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: patterns must be a mapping of ecosystems", root.Line)
	}

	var ps []Pattern
	for i := 0; i+1 < len(root.Content); i += 2 {
		eco, body := root.Content[i], root.Content[i+1]
		if metadataKeys[eco.Value] {
			continue
		}
		if body.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("line %d: ecosystem %q must map subgroups to lists", body.Line, eco.Value)
		}
		for j := 0; j+1 < len(body.Content); j += 2 {
			sub, list := body.Content[j], body.Content[j+1]
			kind, ok := subgroupKinds[sub.Value]
			if !ok {
				return nil, fmt.Errorf("line %d: %s: unknown subgroup %q (want directories or files)", sub.Line, eco.Value, sub.Value)
			}
			var values []string
			if err := list.Decode(&values); err != nil {
				return nil, fmt.Errorf("line %d: %s.%s: %w", list.Line, eco.Value, sub.Value, err)
			}
			category := eco.Value + "." + sub.Value
			for _, v := range values {
				ps = append(ps, Pattern{Category: category, Kind: kind, Value: v})
			}
		}
	}
	return NewSet(ps...)
}
