package render

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"os"
)

//go:embed theme/*
var embeddedTheme embed.FS

// DefaultTheme selects the built-in theme.
const DefaultTheme = "default"

// Theme holds the parsed page and frame templates and their inline assets.
type Theme struct {
	page   *template.Template
	frame  *template.Template
	style  template.CSS
	script template.JS
}

// LoadTheme loads the built-in theme, or the theme directory at name. A theme
// directory only needs the files it overrides; everything else falls back to
// the built-in theme.
func LoadTheme(name string) (*Theme, error) {
	base, err := fs.Sub(embeddedTheme, "theme")
	if err != nil {
		return nil, err
	}
	layers := []fs.FS{base}
	if name != "" && name != DefaultTheme {
		info, err := os.Stat(name)
		if err != nil || !info.IsDir() {
			return nil, fmt.Errorf("theme %q is not a directory", name)
		}
		layers = append([]fs.FS{os.DirFS(name)}, layers...)
	}

	read := func(file string) (string, error) {
		for _, fsys := range layers {
			data, err := fs.ReadFile(fsys, file)
			if err == nil {
				return string(data), nil
			}
		}
		return "", fmt.Errorf("theme file %s not found", file)
	}

	t := &Theme{}
	for _, f := range []struct {
		file string
		dst  **template.Template
	}{{"page.html", &t.page}, {"frame.html", &t.frame}} {
		src, err := read(f.file)
		if err != nil {
			return nil, err
		}
		tpl, err := template.New(f.file).Parse(src)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", f.file, err)
		}
		*f.dst = tpl
	}
	style, err := read("style.css")
	if err != nil {
		return nil, err
	}
	script, err := read("frame.js")
	if err != nil {
		return nil, err
	}
	// #nosec G203 -- theme assets are trusted local files
	t.style, t.script = template.CSS(style), template.JS(script)
	return t, nil
}
