package main

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"sync"
)

//go:embed templates/portal/*.tmpl static/*
var portalAssetsFS embed.FS

// Checked in order when PORTAL_ASSETS_DIR is unset, so development works from
// both the repo root and apps/portal.
var portalAssetDirCandidates = []string{".", "apps/portal"}

// portalTemplateRenderer parses the layout plus one content template per page.
// Live renderers read from disk on every request; embedded ones parse once.
type portalTemplateRenderer struct {
	assets fs.FS
	live   bool

	mu    sync.Mutex
	cache map[string]*template.Template
}

func newPortalTemplateRenderer(env, assetsDir string) *portalTemplateRenderer {
	assets, live := resolvePortalAssets(env, assetsDir)
	return &portalTemplateRenderer{
		assets: assets,
		live:   live,
		cache:  make(map[string]*template.Template),
	}
}

// resolvePortalAssets picks an on-disk asset tree in development and falls
// back to the embedded copy when none is found.
func resolvePortalAssets(env, assetsDir string) (fs.FS, bool) {
	if env != "development" {
		return portalAssetsFS, false
	}

	candidates := portalAssetDirCandidates
	if assetsDir != "" {
		candidates = []string{assetsDir}
	}
	for _, dir := range candidates {
		disk := os.DirFS(dir)
		if _, err := fs.Stat(disk, portalTemplateLayoutPath); err == nil {
			return disk, true
		}
	}
	return portalAssetsFS, false
}

func (r *portalTemplateRenderer) templatesForRender(contentTemplatePath string) (*template.Template, error) {
	if r.live {
		return r.parse(contentTemplatePath)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.cache[contentTemplatePath]; ok {
		return cached, nil
	}
	parsed, err := r.parse(contentTemplatePath)
	if err != nil {
		return nil, err
	}
	r.cache[contentTemplatePath] = parsed
	return parsed, nil
}

func (r *portalTemplateRenderer) parse(contentTemplatePath string) (*template.Template, error) {
	parsed, err := template.New("layout.tmpl").ParseFS(r.assets, portalTemplateLayoutPath, contentTemplatePath)
	if err != nil {
		return nil, fmt.Errorf("parse portal templates %s: %w", contentTemplatePath, err)
	}
	return parsed, nil
}

func (r *portalTemplateRenderer) staticFileSystem() (http.FileSystem, error) {
	sub, err := fs.Sub(r.assets, "static")
	if err != nil {
		return nil, fmt.Errorf("portal static fs: %w", err)
	}
	return http.FS(sub), nil
}
