// migrations хранит SQL-схему PostgreSQL, встроенную в бинарник.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed *.sql
var files embed.FS

// Up возвращает up-миграции в порядке номеров.
func Up() ([]string, error) {
	return load(".up.sql")
}

// Down возвращает down-миграции в обратном порядке.
func Down() ([]string, error) {
	out, err := load(".down.sql")
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}

	return out, nil
}

func load(suffix string) ([]string, error) {
	const op = "migrations.load"

	names, err := fs.Glob(files, "*"+suffix)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sort.Strings(names)

	out := make([]string, 0, len(names))
	for _, name := range names {
		b, err := files.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", op, name, err)
		}
		out = append(out, strings.TrimSpace(string(b)))
	}

	return out, nil
}
