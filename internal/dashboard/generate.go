// Package dashboard renders Grafana dashboards for the GreptimeDB tables
// the bridge records into.
package dashboard

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var templates embed.FS

// Options select the tables queried by the dashboard.
type Options struct {
	StateTable string
	EventTable string
}

// Render parses dashboard templates and writes rendered dashboards to outDir.
// Templates read GREPTIMEDB_DATASOURCE_UID through the env function.
func Render(outDir string, opts Options) error {
	if opts.StateTable == "" {
		opts.StateTable = "jsbsim_state"
	}
	if opts.EventTable == "" {
		opts.EventTable = "jsbsim_events"
	}
	funcMap := template.FuncMap{
		"env": func(key string) (string, error) {
			v := os.Getenv(key)
			if v == "" {
				return "", fmt.Errorf("environment variable %s not set", key)
			}
			return v, nil
		},
	}

	tpls, err := template.New("").Funcs(funcMap).ParseFS(templates, "templates/*.tmpl")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	for _, t := range tpls.Templates() {
		if !strings.HasSuffix(t.Name(), ".tmpl") {
			continue
		}
		outPath := filepath.Join(outDir, strings.TrimSuffix(t.Name(), ".tmpl"))
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		if err := t.Execute(f, opts); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	return nil
}
