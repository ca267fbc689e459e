package redis

import "fmt"

// KeyBuilder provides prefixed Redis key building
type KeyBuilder struct {
	prefix string
}

// NewKeyBuilder creates a key builder. An empty prefix falls back to "storefront".
func NewKeyBuilder(prefix string) *KeyBuilder {
	if prefix == "" {
		prefix = "storefront"
	}
	return &KeyBuilder{prefix: prefix}
}

// BuildKey constructs a Redis key with the prefix
func (kb *KeyBuilder) BuildKey(key string) string {
	return fmt.Sprintf("%s:%s", kb.prefix, key)
}

// KeyNode is the key holding the JSON value at a store path
func (kb *KeyBuilder) KeyNode(path string) string {
	return kb.BuildKey("kv:" + path)
}

// KeyChildren is the set of child names under a store path ("" is the root)
func (kb *KeyBuilder) KeyChildren(path string) string {
	return kb.BuildKey("kvidx:" + path)
}
