package chain

import (
	"errors"
	"testing"
)

func TestEditor(t *testing.T) {
	t.Parallel()

	t.Run("created once and shown", func(t *testing.T) {
		t.Parallel()

		c := newTestChain(newStubHost())
		mustAppend(t, c, desc("editor"))
		p := c.PluginAt(0).(*editorPlugin)

		if !c.HasEditor(0) {
			t.Fatal("HasEditor = false")
		}

		for range 3 {
			if err := c.ShowEditor(0); err != nil {
				t.Fatalf("ShowEditor: %v", err)
			}
		}

		if p.createCalls != 1 {
			t.Fatalf("CreateEditor called %d times, want 1", p.createCalls)
		}

		if !c.EditorVisible(0) || p.editor.frontCalls != 3 {
			t.Fatalf("visible = %v, front calls = %d", c.EditorVisible(0), p.editor.frontCalls)
		}
	})

	t.Run("hide keeps the surface", func(t *testing.T) {
		t.Parallel()

		c := newTestChain(newStubHost())
		mustAppend(t, c, desc("editor"))
		p := c.PluginAt(0).(*editorPlugin)

		if err := c.ShowEditor(0); err != nil {
			t.Fatalf("ShowEditor: %v", err)
		}

		c.HideEditor(0)

		if c.EditorVisible(0) {
			t.Fatal("editor still visible")
		}

		if p.editor.closed {
			t.Fatal("hidden editor was closed")
		}

		if err := c.ShowEditor(0); err != nil {
			t.Fatalf("ShowEditor: %v", err)
		}

		if p.createCalls != 1 {
			t.Fatalf("CreateEditor called %d times, want 1", p.createCalls)
		}
	})

	t.Run("destroyed with its entry", func(t *testing.T) {
		t.Parallel()

		c := newTestChain(newStubHost())
		mustAppend(t, c, desc("editor"))
		p := c.PluginAt(0).(*editorPlugin)

		if err := c.ShowEditor(0); err != nil {
			t.Fatalf("ShowEditor: %v", err)
		}

		ed := p.editor
		c.Remove(0)

		if !ed.closed || !p.isClosed() {
			t.Fatalf("editor closed = %v, plugin closed = %v", ed.closed, p.isClosed())
		}
	})

	t.Run("creation error", func(t *testing.T) {
		t.Parallel()

		errNoDisplay := errors.New("no display")

		c := newTestChain(newStubHost())
		mustAppend(t, c, desc("editor"))
		c.PluginAt(0).(*editorPlugin).createErr = errNoDisplay

		if err := c.ShowEditor(0); !errors.Is(err, errNoDisplay) {
			t.Fatalf("ShowEditor = %v, want wrapped creation error", err)
		}

		if c.EditorVisible(0) {
			t.Fatal("editor visible after failed creation")
		}
	})

	t.Run("plugins without editor and bad indices", func(t *testing.T) {
		t.Parallel()

		c := newTestChain(newStubHost())
		mustAppend(t, c, desc("gain2"))

		for _, index := range []int{0, -1, 5} {
			if c.HasEditor(index) {
				t.Fatalf("HasEditor(%d) = true", index)
			}

			if err := c.ShowEditor(index); err != nil {
				t.Fatalf("ShowEditor(%d) = %v", index, err)
			}

			c.HideEditor(index)

			if c.EditorVisible(index) {
				t.Fatalf("EditorVisible(%d) = true", index)
			}
		}
	})
}
