// Package template provides campaign personalization using the Liquid
// template language, with parsed-template caching keyed by content hash.
package template

import (
	"crypto/md5"
	"fmt"
	"html"
	"log"
	"net/url"
	"strings"
	"sync"

	"github.com/osteele/liquid"

	"github.com/ignite/campaign-engine/internal/domain"
)

// Engine renders Liquid templates with caching. Rendering is lax: on parse or
// render errors the original template text is returned so a broken
// placeholder never blocks a send.
type Engine struct {
	engine *liquid.Engine
	cache  sync.Map // md5 of template -> *liquid.Template
}

// NewEngine creates an engine with the campaign filter set registered.
func NewEngine() *Engine {
	e := &Engine{engine: liquid.NewEngine()}
	e.registerFilters()
	return e
}

func (e *Engine) registerFilters() {
	// Fallback value: {{ first_name | default: "Friend" }}
	e.engine.RegisterFilter("default", func(value interface{}, defaultVal string) interface{} {
		if value == nil {
			return defaultVal
		}
		s := fmt.Sprintf("%v", value)
		if s == "" || s == "<nil>" {
			return defaultVal
		}
		return value
	})

	// {{ name | capitalize }}
	e.engine.RegisterFilter("capitalize", func(s string) string {
		if len(s) == 0 {
			return s
		}
		return strings.ToUpper(string(s[0])) + strings.ToLower(s[1:])
	})

	// {{ bio | truncate: 50 }}
	e.engine.RegisterFilter("truncate", func(s string, length int) string {
		if len(s) <= length {
			return s
		}
		if length <= 3 {
			return s[:length]
		}
		return s[:length-3] + "..."
	})

	// {{ email | urlencode }}
	e.engine.RegisterFilter("urlencode", func(s string) string {
		return url.QueryEscape(s)
	})

	// {{ user_input | escape }}
	e.engine.RegisterFilter("escape", func(s string) string {
		return html.EscapeString(s)
	})

	// {{ email | email_domain }}
	e.engine.RegisterFilter("email_domain", func(email string) string {
		parts := strings.Split(email, "@")
		if len(parts) == 2 {
			return parts[1]
		}
		return ""
	})
}

// Render processes a template with the given bindings. On error the original
// template text is returned alongside the error; callers decide whether to
// send it unrendered.
func (e *Engine) Render(templateStr string, bindings map[string]interface{}) (string, error) {
	key := fmt.Sprintf("%x", md5.Sum([]byte(templateStr)))

	if cached, ok := e.cache.Load(key); ok {
		tpl := cached.(*liquid.Template)
		out, err := tpl.RenderString(bindings)
		if err != nil {
			return templateStr, err
		}
		return out, nil
	}

	tpl, err := e.engine.ParseString(templateStr)
	if err != nil {
		log.Printf("[Template] parse error: %v", err)
		return templateStr, err
	}
	e.cache.Store(key, tpl)

	out, err := tpl.RenderString(bindings)
	if err != nil {
		log.Printf("[Template] render error: %v", err)
		return templateStr, err
	}
	return out, nil
}

// Bindings builds the per-recipient variable map exposed to templates.
func Bindings(r domain.Recipient) map[string]interface{} {
	first := r.DisplayName
	if i := strings.IndexByte(first, ' '); i > 0 {
		first = first[:i]
	}
	return map[string]interface{}{
		"email":      r.Address,
		"name":       r.DisplayName,
		"first_name": first,
	}
}

// ClearCache drops all cached parsed templates.
func (e *Engine) ClearCache() {
	e.cache = sync.Map{}
}
