package migrate

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/mandelsoft/vfs/pkg/vfs"

	"go.hackfix.me/dbmigrate/schema"
)

// Annotations recognized in SQL migration files.
const (
	annotationUp   = "-- +up"
	annotationDown = "-- +down"
	annotationNoTx = "-- +notx"
	// Lines between these are a single statement, even if some of them end
	// with a semicolon, e.g. trigger or function bodies.
	annotationStmtBegin = "-- +statement begin"
	annotationStmtEnd   = "-- +statement end"
)

// LoadSQL reads a SQL migration file. See ParseSQL for the file format.
func LoadSQL(fs vfs.FileSystem, path string) (Migration, error) {
	data, err := vfs.ReadFile(fs, path)
	if err != nil {
		return Migration{}, fmt.Errorf("failed reading SQL migration: %w", err)
	}

	mig, err := ParseSQL(data)
	if err != nil {
		return Migration{}, fmt.Errorf("failed parsing SQL migration '%s': %w", path, err)
	}

	return mig, nil
}

// ParseSQL parses a SQL migration. The statements to apply follow a
// `-- +up` line, and the statements to revert follow a `-- +down` line. A
// migration without down statements is irreversible. A `-- +notx` line
// before the sections disables the transaction. Statements end with a
// semicolon at the end of a line, unless they're enclosed by
// `-- +statement begin` and `-- +statement end` lines.
//
// Example:
//
//	-- +up
//	CREATE TABLE post (id integer PRIMARY KEY, title varchar(255));
//	-- +down
//	DROP TABLE post;
//	-- +statement begin
//	CREATE TRIGGER post_ai AFTER INSERT ON post BEGIN
//	  UPDATE post SET title = upper(title) WHERE id = new.id;
//	END;
//	-- +statement end
func ParseSQL(data []byte) (Migration, error) {
	var (
		up, down []string
		section  *[]string
		seenUp   bool
		noTx     bool
		inBlock  bool
		blockNo  int
		stmt     strings.Builder
	)

	flush := func() {
		if s := strings.TrimSpace(stmt.String()); s != "" && section != nil {
			*section = append(*section, strings.TrimSuffix(s, ";"))
		}
		stmt.Reset()
	}

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		trimmed := strings.TrimSpace(line)

		lower := strings.ToLower(trimmed)
		if inBlock && lower != annotationStmtEnd {
			if lower == annotationUp || lower == annotationDown || lower == annotationStmtBegin {
				return Migration{}, fmt.Errorf("line %d: '%s' inside a statement block", lineNo, trimmed)
			}
			stmt.WriteString(line)
			stmt.WriteByte('\n')
			continue
		}

		switch lower {
		case annotationStmtBegin:
			if section == nil {
				return Migration{}, fmt.Errorf("line %d: statement block outside of a section", lineNo)
			}
			flush()
			inBlock, blockNo = true, lineNo
			continue
		case annotationStmtEnd:
			if !inBlock {
				return Migration{}, fmt.Errorf("line %d: '%s' without '%s'", lineNo, annotationStmtEnd, annotationStmtBegin)
			}
			flush()
			inBlock = false
			continue
		case annotationUp:
			if seenUp {
				return Migration{}, fmt.Errorf("line %d: duplicate '%s' section", lineNo, annotationUp)
			}
			flush()
			seenUp, section = true, &up
			continue
		case annotationDown:
			if !seenUp {
				return Migration{}, fmt.Errorf("line %d: '%s' section before '%s'", lineNo, annotationDown, annotationUp)
			}
			if section == &down {
				return Migration{}, fmt.Errorf("line %d: duplicate '%s' section", lineNo, annotationDown)
			}
			flush()
			section = &down
			continue
		case annotationNoTx:
			if section != nil {
				return Migration{}, fmt.Errorf("line %d: '%s' must precede the sections", lineNo, annotationNoTx)
			}
			noTx = true
			continue
		}

		if section == nil {
			if trimmed == "" || strings.HasPrefix(trimmed, "--") {
				continue
			}
			return Migration{}, fmt.Errorf("line %d: statement outside of a section", lineNo)
		}

		if stmt.Len() == 0 && (trimmed == "" || strings.HasPrefix(trimmed, "--")) {
			continue
		}
		stmt.WriteString(line)
		stmt.WriteByte('\n')
		if strings.HasSuffix(trimmed, ";") {
			flush()
		}
	}
	if err := sc.Err(); err != nil {
		return Migration{}, err
	}
	if inBlock {
		return Migration{}, fmt.Errorf("line %d: unterminated statement block", blockNo)
	}
	flush()

	if !seenUp {
		return Migration{}, fmt.Errorf("missing '%s' section", annotationUp)
	}

	var opts []MigrationOption
	if noTx {
		opts = append(opts, WithoutTransaction())
	}
	if len(down) == 0 {
		return NewIrreversible(execStatements(up), opts...), nil
	}

	return NewReversible(execStatements(up), execStatements(down), opts...), nil
}

func execStatements(stmts []string) Func {
	return func(ctx context.Context, b *schema.Builder) error {
		for _, s := range stmts {
			if err := b.Execute(ctx, s); err != nil {
				return err
			}
		}
		return nil
	}
}
