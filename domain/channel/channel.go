// Package channel provides channel schema value types.
// A channel describes one external network link variant (ATM, POS, interbank)
// as pure data: identity, vendor metadata, and the ordered field definitions
// the codec uses to lay messages out on the wire.
package channel

import (
	"fmt"

	"github.com/finswitch/finswitch/domain/field"
)

// Channel is a declarative channel description (immutable value type).
// Channels are loaded from YAML schema files.
type Channel struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`   // "ATM", "POS", "INTERBANK", ...
	Vendor  string `yaml:"vendor"` // "FISC", "NCR", ...
	Version string `yaml:"version"`
	Active  bool   `yaml:"active"`

	// RequestSchema and ResponseSchema name the default message layouts.
	// Most channels share one layout for both directions.
	RequestSchema  string `yaml:"request_schema,omitempty"`
	ResponseSchema string `yaml:"response_schema,omitempty"`

	Fields []field.Definition `yaml:"fields"`
}

// Validate checks channel identity fields. Field definitions are validated
// during Resolve.
func (c Channel) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("channel missing id")
	}
	if c.Type == "" {
		return fmt.Errorf("channel %s: missing type", c.ID)
	}
	if len(c.Fields) == 0 {
		return fmt.Errorf("channel %s: no field definitions", c.ID)
	}
	return nil
}

// Resolved pairs a channel with its resolved field tree. The registry hands
// these out so the codec never re-resolves per message.
type Resolved struct {
	Channel Channel
	Tree    *field.Tree
}

// Resolve validates the channel and builds its field tree.
func Resolve(c Channel) (*Resolved, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	tree, err := field.Resolve(c.Fields)
	if err != nil {
		return nil, fmt.Errorf("channel %s: %w", c.ID, err)
	}
	return &Resolved{Channel: c, Tree: tree}, nil
}

// Document is the root of a channel schema YAML file.
type Document struct {
	Channels []Channel `yaml:"channels"`
}
