package eventsourcing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(s string) *string { return &s }

func TestAttributeChanges(t *testing.T) {
	current := map[string]string{"Color": "blue", "Size": "L"}

	var changes AttributeChanges
	changes = changes.Stage(current, "Color", ptr("blue"))
	assert.Empty(t, changes, "unchanged values are not staged")

	changes = changes.Stage(current, "Color", ptr(" red "))
	changes = changes.Stage(current, "Size", nil)
	changes = changes.Stage(current, "Missing", nil)
	require.Len(t, changes, 2)
	assert.Equal(t, "red", *changes["Color"])
	assert.Nil(t, changes["Size"])

	got := changes.ApplyTo(CopyAttributes(current))
	assert.Equal(t, map[string]string{"Color": "red"}, got)

	// Staging back to the current value drops the pending change.
	changes = changes.Stage(current, "Color", ptr("blue"))
	assert.NotContains(t, changes, "Color")
}

func TestValidateAttribute(t *testing.T) {
	require.NoError(t, ValidateAttribute("employee_id", ptr("42")))
	require.NoError(t, ValidateAttribute("_x", nil))
	require.Error(t, ValidateAttribute("1st", ptr("x")))
	require.Error(t, ValidateAttribute("has space", ptr("x")))
	require.Error(t, ValidateAttribute("ok", ptr("  ")))
}
