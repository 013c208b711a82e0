// templates/engine.go
package templates

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Set describes where a feature's templates live.
type Set struct {
	// FS is usually an embed.FS from the feature package.
	FS fs.FS

	// Shared are glob patterns for the layout and partials every page
	// can use, e.g. "views/layout.gohtml".
	Shared []string

	// Pages are glob patterns for page files. Each page is compiled into
	// its own clone of the shared templates and is rendered by its base
	// name without extension ("views/form.gohtml" → "form").
	Pages []string
}

// Engine holds compiled pages.
type Engine struct {
	mu     sync.RWMutex
	funcs  template.FuncMap
	pages  map[string]*template.Template
	logger *zap.Logger
}

// New returns an empty Engine. Call Boot before rendering.
func New(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		funcs:  Funcs(),
		pages:  map[string]*template.Template{},
		logger: logger,
	}
}

// Boot compiles the shared templates once and every page on top of a clone
// of them, so pages may each define "content" without colliding.
func (e *Engine) Boot(s Set) error {
	sharedFiles, err := globAll(s.FS, s.Shared)
	if err != nil {
		return err
	}
	base := template.New("root").Funcs(e.funcs)
	for _, p := range sharedFiles {
		if err := parseFile(base, s.FS, p); err != nil {
			return err
		}
	}

	pageFiles, err := globAll(s.FS, s.Pages)
	if err != nil {
		return err
	}
	if len(pageFiles) == 0 {
		return fmt.Errorf("templates: no pages match %v", s.Pages)
	}

	pages := make(map[string]*template.Template, len(pageFiles))
	for _, p := range pageFiles {
		clone, err := base.Clone()
		if err != nil {
			return fmt.Errorf("templates: clone shared: %w", err)
		}
		if err := parseFile(clone, s.FS, p); err != nil {
			return err
		}
		name := strings.TrimSuffix(path.Base(p), path.Ext(p))
		pages[name] = clone
		e.logger.Debug("template page compiled", zap.String("page", name))
	}

	e.mu.Lock()
	for k, v := range pages {
		e.pages[k] = v
	}
	e.mu.Unlock()
	return nil
}

func parseFile(t *template.Template, fsys fs.FS, p string) error {
	b, err := fs.ReadFile(fsys, p)
	if err != nil {
		return fmt.Errorf("templates: read %s: %w", p, err)
	}
	if _, err := t.Parse(string(b)); err != nil {
		return fmt.Errorf("templates: parse %s: %w", p, err)
	}
	return nil
}

func globAll(fsys fs.FS, patterns []string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	for _, pat := range patterns {
		matches, err := fs.Glob(fsys, pat)
		if err != nil {
			return nil, fmt.Errorf("templates: glob %q: %w", pat, err)
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Has reports whether a page was compiled.
func (e *Engine) Has(page string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.pages[page]
	return ok
}

// Execute renders page into w. The page's entry template is "layout".
// Output is buffered, so nothing is written when execution fails.
func (e *Engine) Execute(w io.Writer, page string, data any) error {
	e.mu.RLock()
	t, ok := e.pages[page]
	e.mu.RUnlock()
	if !ok {
		return fmt.Errorf("templates: page %q not found", page)
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}
