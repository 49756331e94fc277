package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lantern-ai/lantern/internal/provider"
	"github.com/lantern-ai/lantern/internal/store"
)

// ContactDirectory is the slice of storage the contact tools read from.
type ContactDirectory interface {
	ContactsByName(ctx context.Context, name string) ([]store.Contact, error)
	CountContacts(ctx context.Context) (int64, error)
}

// LookupContact finds contacts by partial name match.
type LookupContact struct {
	directory ContactDirectory
}

// NewLookupContact builds the lookup_contact tool.
func NewLookupContact(directory ContactDirectory) *LookupContact {
	return &LookupContact{directory: directory}
}

func (t *LookupContact) Definition() provider.ToolDefinition {
	return provider.ToolDefinition{
		Name:        "lookup_contact",
		Description: "Look up contacts by name. Matches partial names, case-insensitively.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "Full or partial contact name to search for",
				},
			},
			"required": []string{"name"},
		},
	}
}

func (t *LookupContact) Call(ctx context.Context, args string) (string, error) {
	var params struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal([]byte(args), &params); err != nil {
		return "", fmt.Errorf("parsing arguments: %w", err)
	}
	if params.Name == "" {
		return "", fmt.Errorf("parsing arguments: name is required")
	}

	contacts, err := t.directory.ContactsByName(ctx, params.Name)
	if err != nil {
		return "", err
	}
	if len(contacts) == 0 {
		return fmt.Sprintf("No contacts found matching %q.", params.Name), nil
	}

	type entry struct {
		Name  string `json:"name"`
		Email string `json:"email,omitempty"`
		Phone string `json:"phone,omitempty"`
	}
	entries := make([]entry, len(contacts))
	for i, c := range contacts {
		entries[i] = entry{Name: c.Name, Email: c.Email, Phone: c.Phone}
	}
	out, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("encoding result: %w", err)
	}
	return string(out), nil
}

// CountContacts reports the total contact count.
type CountContacts struct {
	directory ContactDirectory
}

// NewCountContacts builds the count_contacts tool.
func NewCountContacts(directory ContactDirectory) *CountContacts {
	return &CountContacts{directory: directory}
}

func (t *CountContacts) Definition() provider.ToolDefinition {
	return provider.ToolDefinition{
		Name:        "count_contacts",
		Description: "Count how many contacts exist in the directory.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	}
}

func (t *CountContacts) Call(ctx context.Context, _ string) (string, error) {
	n, err := t.directory.CountContacts(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("There are %d contacts in the directory.", n), nil
}
