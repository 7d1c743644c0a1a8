package migrate

import (
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"go.hackfix.me/dbmigrate/db/types"
)

var (
	validNameRx = regexp.MustCompile(`^[\w\\]+$`)
	// m240101_120000_create_post
	plainNameRx = regexp.MustCompile(`^m(\d{6})_(\d{6})_\w+$`)
	// M240101120000CreatePost
	nsNameRx = regexp.MustCompile(`^M(\d{12})\w+$`)
	wordRx   = regexp.MustCompile(`[A-Za-z0-9]+`)
)

// ValidateName returns an error if the name contains characters other than
// letters, digits, underscores and backslashes.
func ValidateName(name string) error {
	if !validNameRx.MatchString(name) {
		return &types.InvalidInputError{
			Msg: "The migration name should contain letters, digits, underscore and/or backslash characters only.",
		}
	}
	return nil
}

// BaseName returns the part of a migration name after its namespace.
func BaseName(name string) string {
	if i := strings.LastIndexByte(name, '\\'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// NamespaceOf returns the namespace of a migration name, or an empty string if
// it's not namespaced.
func NamespaceOf(name string) string {
	if i := strings.LastIndexByte(name, '\\'); i >= 0 {
		return name[:i]
	}
	return ""
}

// IsMigrationName returns true if the base name follows one of the migration
// naming conventions.
func IsMigrationName(base string) bool {
	return plainNameRx.MatchString(base) || nsNameRx.MatchString(base)
}

// Timestamp returns the 12 digit ymdHis timestamp embedded in the name, or an
// empty string if there is none.
func Timestamp(name string) string {
	base := BaseName(name)
	if m := plainNameRx.FindStringSubmatch(base); m != nil {
		return m[1] + m[2]
	}
	if m := nsNameRx.FindStringSubmatch(base); m != nil {
		return m[1]
	}
	return ""
}

// Canonical returns the timestamp embedded in the name, or the name itself.
func Canonical(name string) string {
	if ts := Timestamp(name); ts != "" {
		return ts
	}
	return name
}

// sortKey orders migrations by timestamp, then by full name.
func sortKey(name string) string {
	return Timestamp(name) + `\` + name
}

// GenerateName returns a new migration name for the given description. Without
// a namespace the name is m{ymd}_{His}_{name}, otherwise it's
// {namespace}\M{ymdHis}{Name}.
func GenerateName(name, namespace string, now time.Time) string {
	now = now.UTC()
	if namespace == "" {
		return "m" + now.Format("060102_150405") + "_" + name
	}
	return strings.Trim(namespace, `\`) + `\M` + now.Format("060102150405") + PascalCase(name)
}

// PascalCase joins the words of s with their first letter in upper case, e.g.
// "create_post_table" becomes "CreatePostTable".
func PascalCase(s string) string {
	title := cases.Title(language.Und, cases.NoLower)
	var sb strings.Builder
	for _, w := range wordRx.FindAllString(s, -1) {
		sb.WriteString(title.String(w))
	}
	return sb.String()
}
