package quarry

import (
	"context"
	"fmt"
)

// Tool wraps a retrieval-capable corpus behind a single-query-answer
// capability. The sub-question engine dispatches sub-questions to
// tools by name.
type Tool interface {
	// Name returns the tool's unique name within one ask.
	Name() string
	// Description returns the human-readable description the
	// sub-question generator uses to route sub-questions.
	Description() string
	// Answer runs one query against the wrapped corpus and returns a
	// natural-language answer.
	Answer(ctx context.Context, query string) (string, error)
}

// ToolSet holds the tools available to one query session and resolves
// sub-questions to tools by name.
type ToolSet struct {
	tools []Tool
	index map[string]Tool
}

// NewToolSet builds a set from the given tools. Duplicate names are
// rejected so decomposition routing stays unambiguous.
func NewToolSet(tools ...Tool) (*ToolSet, error) {
	s := &ToolSet{index: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if _, dup := s.index[t.Name()]; dup {
			return nil, &ErrConfig{Field: "tools", Reason: fmt.Sprintf("duplicate tool name %q", t.Name())}
		}
		s.index[t.Name()] = t
		s.tools = append(s.tools, t)
	}
	return s, nil
}

// Get returns the tool with the given name, or false.
func (s *ToolSet) Get(name string) (Tool, bool) {
	t, ok := s.index[name]
	return t, ok
}

// Descriptors returns name+description pairs in registration order,
// ready to embed in a decomposition prompt.
func (s *ToolSet) Descriptors() []ToolDescriptor {
	out := make([]ToolDescriptor, len(s.tools))
	for i, t := range s.tools {
		out[i] = ToolDescriptor{Name: t.Name(), Description: t.Description()}
	}
	return out
}

// Len returns the number of registered tools.
func (s *ToolSet) Len() int { return len(s.tools) }

// ToolFunc adapts a function to the Tool interface.
type ToolFunc struct {
	ToolName string
	Desc     string
	Fn       func(ctx context.Context, query string) (string, error)
}

func (t ToolFunc) Name() string        { return t.ToolName }
func (t ToolFunc) Description() string { return t.Desc }

func (t ToolFunc) Answer(ctx context.Context, query string) (string, error) {
	return t.Fn(ctx, query)
}
