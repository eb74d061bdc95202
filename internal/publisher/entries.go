package publisher

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Entries is an ordered list of entries. It encodes as a JSON object or YAML mapping that preserves the order.
type Entries []Entry

func (e Entries) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, entry := range e {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(entry.Path)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(entry.Value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Path, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (e Entries) MarshalYAML() (any, error) {
	node := yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, entry := range e {
		var value yaml.Node
		if err := value.Encode(entry.Value); err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Path, err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: entry.Path},
			&value,
		)
	}
	return &node, nil
}
