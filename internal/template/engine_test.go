package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/campaign-engine/internal/domain"
)

func TestRenderBasic(t *testing.T) {
	e := NewEngine()
	out, err := e.Render("Hello {{ name }}", map[string]interface{}{"name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "Hello Ada", out)
}

func TestRenderDefaultFilter(t *testing.T) {
	e := NewEngine()

	out, err := e.Render(`Hi {{ first_name | default: "there" }}`, map[string]interface{}{"first_name": ""})
	require.NoError(t, err)
	assert.Equal(t, "Hi there", out)

	out, err = e.Render(`Hi {{ first_name | default: "there" }}`, map[string]interface{}{"first_name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "Hi Ada", out)
}

func TestRenderParseErrorReturnsOriginal(t *testing.T) {
	e := NewEngine()
	raw := "Hello {% if %}"
	out, err := e.Render(raw, nil)
	assert.Error(t, err)
	assert.Equal(t, raw, out)
}

func TestRenderCacheReuse(t *testing.T) {
	e := NewEngine()
	tpl := "X {{ n }}"

	out, err := e.Render(tpl, map[string]interface{}{"n": 1})
	require.NoError(t, err)
	assert.Equal(t, "X 1", out)

	// Second render hits the cache but must still apply fresh bindings.
	out, err = e.Render(tpl, map[string]interface{}{"n": 2})
	require.NoError(t, err)
	assert.Equal(t, "X 2", out)
}

func TestRenderEmailDomainFilter(t *testing.T) {
	e := NewEngine()
	out, err := e.Render("{{ email | email_domain }}", map[string]interface{}{"email": "ada@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "example.com", out)
}

func TestBindings(t *testing.T) {
	b := Bindings(domain.Recipient{Address: "ada@example.com", DisplayName: "Ada Lovelace"})
	assert.Equal(t, "ada@example.com", b["email"])
	assert.Equal(t, "Ada Lovelace", b["name"])
	assert.Equal(t, "Ada", b["first_name"])

	b = Bindings(domain.Recipient{Address: "x@example.com"})
	assert.Equal(t, "", b["first_name"])
}
