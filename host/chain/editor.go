package chain

import (
	"fmt"

	"github.com/cwbudde/algo-pluginhost/host/plugin"
)

// HasEditor reports whether the plugin at index can produce an editor.
func (c *Chain) HasEditor(index int) bool {
	e := c.entryAt(index)
	if e == nil {
		return false
	}

	ep, ok := e.plugin.(plugin.EditorProvider)

	return ok && ep.HasEditor()
}

// ShowEditor makes the editor of the entry at index visible and brings it
// to front, creating it on first use. Entries without an editor and
// out-of-range indices are ignored.
func (c *Chain) ShowEditor(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entryAt(index)
	if e == nil {
		return nil
	}

	ep, ok := e.plugin.(plugin.EditorProvider)
	if !ok || !ep.HasEditor() {
		return nil
	}

	if e.editor == nil {
		ed, err := ep.CreateEditor()
		if err != nil {
			return fmt.Errorf("chain: create editor for %q: %w", e.descriptor.Name, err)
		}

		if ed == nil {
			return nil
		}

		e.editor = ed
	}

	e.editor.SetVisible(true)
	e.editor.ToFront()

	return nil
}

// HideEditor hides the editor of the entry at index. The editor is kept.
func (c *Chain) HideEditor(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entryAt(index)
	if e == nil || e.editor == nil {
		return
	}

	e.editor.SetVisible(false)
}

// EditorVisible reports whether the entry at index has a visible editor.
func (c *Chain) EditorVisible(index int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entryAt(index)

	return e != nil && e.editor != nil && e.editor.Visible()
}
