package pagewalk_test

import (
	"testing"

	"github.com/fwojciec/pagewalk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorf(t *testing.T) {
	t.Parallel()

	err := pagewalk.Errorf(pagewalk.ENOTFOUND, "session %q not found", "abc")

	assert.Equal(t, pagewalk.ENOTFOUND, pagewalk.ErrorCode(err))
	assert.Equal(t, "session \"abc\" not found", pagewalk.ErrorMessage(err))
}

func TestErrorCode_NilError(t *testing.T) {
	t.Parallel()

	assert.Empty(t, pagewalk.ErrorCode(nil))
	assert.Empty(t, pagewalk.ErrorMessage(nil))
}

func TestErrorCode_NonApplicationError(t *testing.T) {
	t.Parallel()

	assert.Equal(t, pagewalk.EINTERNAL, pagewalk.ErrorCode(pagewalk.ErrNavigation))
	assert.Equal(t, "Internal error", pagewalk.ErrorMessage(pagewalk.ErrNavigation))
}

func TestNavigationAction_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		action  pagewalk.NavigationAction
		wantErr bool
	}{
		{"click with locator", pagewalk.Click("a.next"), false},
		{"click without locator", pagewalk.Click(""), true},
		{"goto absolute", pagewalk.GoToURL("https://example.com/?page=2"), false},
		{"goto relative", pagewalk.GoToURL("/page/2"), true},
		{"goto javascript", pagewalk.GoToURL("javascript:void(0)"), true},
		{"goto empty", pagewalk.GoToURL(""), true},
		{"fetch absolute", pagewalk.Fetch("https://example.com/api?cursor=abc"), false},
		{"fetch ftp", pagewalk.Fetch("ftp://example.com/list"), true},
		{"scroll", pagewalk.ScrollToBottom(), false},
		{"unknown kind", pagewalk.NavigationAction{Kind: "hover"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.action.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, pagewalk.EINVALID, pagewalk.ErrorCode(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNavigationAction_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "click(a.next)", pagewalk.Click("a.next").String())
	assert.Equal(t, "goto(https://example.com/)", pagewalk.GoToURL("https://example.com/").String())
	assert.Equal(t, "scroll", pagewalk.ScrollToBottom().String())
}

func TestMethod_Validate(t *testing.T) {
	t.Parallel()

	for _, m := range pagewalk.Methods() {
		assert.NoError(t, m.Validate(), m)
	}

	err := pagewalk.Method("sideways").Validate()
	require.Error(t, err)
	assert.Equal(t, pagewalk.EINVALID, pagewalk.ErrorCode(err))
}

func TestElement(t *testing.T) {
	t.Parallel()

	t.Run("label falls back to aria-label", func(t *testing.T) {
		t.Parallel()

		e := pagewalk.Element{Attrs: map[string]string{"aria-label": " Next page "}}

		assert.Equal(t, "Next page", e.Label())
	})

	t.Run("text wins over attributes", func(t *testing.T) {
		t.Parallel()

		e := pagewalk.Element{Text: "Next", Attrs: map[string]string{"title": "Go forward"}}

		assert.Equal(t, "Next", e.Label())
	})

	t.Run("disabled element is not interactable", func(t *testing.T) {
		t.Parallel()

		assert.True(t, pagewalk.Element{Visible: true}.Interactable())
		assert.False(t, pagewalk.Element{Visible: true, Disabled: true}.Interactable())
		assert.False(t, pagewalk.Element{}.Interactable())
	})

	t.Run("navigable href", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, "/page/2", pagewalk.Element{Href: " /page/2 "}.NavigableHref())
		assert.Empty(t, pagewalk.Element{Href: "#"}.NavigableHref())
		assert.Empty(t, pagewalk.Element{Href: "#results"}.NavigableHref())
		assert.Empty(t, pagewalk.Element{Href: "JavaScript:void(0)"}.NavigableHref())
		assert.Empty(t, pagewalk.Element{Href: "mailto:a@example.com"}.NavigableHref())
	})
}

func TestState(t *testing.T) {
	t.Parallel()

	for _, s := range []pagewalk.State{pagewalk.StateComplete, pagewalk.StateStopped, pagewalk.StateError} {
		assert.True(t, s.Terminal(), s)
		assert.False(t, s.Active(), s)
	}
	for _, s := range []pagewalk.State{pagewalk.StateDetecting, pagewalk.StateNavigating, pagewalk.StateWaitingReady, pagewalk.StateExtracting} {
		assert.True(t, s.Active(), s)
		assert.False(t, s.Terminal(), s)
	}
	assert.False(t, pagewalk.StatePaused.Terminal())
	assert.False(t, pagewalk.StateIdle.Active())
}

func TestSessionState_Validate(t *testing.T) {
	t.Parallel()

	valid := func() *pagewalk.SessionState {
		return &pagewalk.SessionState{
			ID:          "s1",
			StartURL:    "https://example.com/search",
			Method:      pagewalk.MethodAuto,
			MaxAttempts: 5,
		}
	}

	t.Run("valid", func(t *testing.T) {
		t.Parallel()

		assert.NoError(t, valid().Validate())
	})

	t.Run("missing id", func(t *testing.T) {
		t.Parallel()

		s := valid()
		s.ID = ""

		assert.Equal(t, pagewalk.EINVALID, pagewalk.ErrorCode(s.Validate()))
	})

	t.Run("bad method", func(t *testing.T) {
		t.Parallel()

		s := valid()
		s.Method = "nope"

		assert.Equal(t, pagewalk.EINVALID, pagewalk.ErrorCode(s.Validate()))
	})

	t.Run("attempts beyond budget", func(t *testing.T) {
		t.Parallel()

		s := valid()
		s.AttemptCount = 6

		assert.Equal(t, pagewalk.EINVALID, pagewalk.ErrorCode(s.Validate()))
	})
}

func TestExtractedContent_IDs(t *testing.T) {
	t.Parallel()

	c := &pagewalk.ExtractedContent{Items: []pagewalk.Item{{ID: "a"}, {ID: "b"}}}

	assert.Equal(t, []string{"a", "b"}, c.IDs())

	var nilContent *pagewalk.ExtractedContent
	assert.Nil(t, nilContent.IDs())
}

func TestResolveURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://example.com/api?cursor=abc", pagewalk.ResolveURL("https://example.com/search?page=1#top", "/api?cursor=abc"))
	assert.Equal(t, "https://example.com/search?page=2", pagewalk.ResolveURL("https://example.com/search?page=1", "?page=2"))
	assert.Equal(t, "https://other.org/x", pagewalk.ResolveURL("https://example.com/", "https://other.org/x#frag"))
}

func TestSameSite(t *testing.T) {
	t.Parallel()

	assert.True(t, pagewalk.SameSite("https://example.com/a", "https://example.com/b"))
	assert.True(t, pagewalk.SameSite("https://www.example.co.uk/a", "https://search.example.co.uk/b"))
	assert.False(t, pagewalk.SameSite("https://example.com/a", "https://evil.com/b"))
	assert.False(t, pagewalk.SameSite("https://foo.github.io/", "https://bar.github.io/"))
	assert.False(t, pagewalk.SameSite("https://example.com/", "/relative"))
}

func TestCanonicalURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://example.com/", pagewalk.CanonicalURL("HTTPS://Example.COM:443#x"))
	assert.Equal(t, "http://example.com:8080/a?page=2", pagewalk.CanonicalURL("http://example.com:8080/a?page=2"))
	assert.Equal(t,
		pagewalk.CanonicalURL("https://example.com/search?page=2"),
		pagewalk.CanonicalURL("https://EXAMPLE.com/search?page=2#results"),
	)
}
