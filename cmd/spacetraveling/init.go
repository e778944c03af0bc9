package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/spf13/cobra"

	"github.com/eringen/spacetraveling/scaffold"
)

// scaffoldData holds the template variables passed to every scaffold template.
type scaffoldData struct {
	SiteName string
	Endpoint string
}

func newInitCmd() *cobra.Command {
	var data scaffoldData
	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a starter config.yaml and .env.example",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			if data.SiteName == "" {
				abs, err := filepath.Abs(dir)
				if err != nil {
					return err
				}
				data.SiteName = toTitle(filepath.Base(abs))
			}
			created, err := writeScaffold(dir, data)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, p := range created {
				fmt.Fprintf(w, "  created %s\n", p)
			}
			fmt.Fprintln(w, "\nSet PRISMIC_ACCESS_TOKEN in .env, then run 'spacetraveling serve -c config.yaml'.")
			return nil
		},
	}
	cmd.Flags().StringVar(&data.SiteName, "name", "", "site name (default: derived from the directory)")
	cmd.Flags().StringVar(&data.Endpoint, "endpoint", "https://your-repo.cdn.prismic.io/api/v2", "content API endpoint")
	return cmd
}

// writeScaffold renders every scaffold template into dir. It refuses to
// overwrite existing files and returns the paths it created.
func writeScaffold(dir string, data scaffoldData) ([]string, error) {
	const root = "templates"
	var created []string

	err := fs.WalkDir(scaffold.Templates, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		outPath := strings.TrimSuffix(filepath.Join(dir, relPath), ".tmpl")
		if filepath.Base(outPath) == "dotenv" {
			outPath = filepath.Join(filepath.Dir(outPath), ".env.example")
		}

		if d.IsDir() {
			return os.MkdirAll(outPath, 0o755)
		}

		src, err := scaffold.Templates.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		tmpl, err := template.New(filepath.Base(path)).Parse(string(src))
		if err != nil {
			return fmt.Errorf("parse template %s: %w", path, err)
		}

		f, err := os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err != nil {
			if os.IsExist(err) {
				return fmt.Errorf("%s already exists", outPath)
			}
			return fmt.Errorf("create %s: %w", outPath, err)
		}
		defer f.Close()

		if err := tmpl.Execute(f, data); err != nil {
			return fmt.Errorf("execute template %s: %w", path, err)
		}
		created = append(created, outPath)
		return nil
	})
	return created, err
}

// toTitle converts a hyphenated or lowercase name to a title-case string.
// e.g. "my-blog" -> "My Blog", "myblog" -> "Myblog"
func toTitle(s string) string {
	parts := strings.Split(s, "-")
	for i, p := range parts {
		if len(p) > 0 {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}
