// Package migrate provides functionality to manage database schema migrations.
//
// Features:
//   - Migrations are either reversible (up and down steps) or irreversible (up
//     only), and are written in Go and registered by name, or in plain SQL files
//     with `-- +up` and `-- +down` sections.
//   - Discovers migrations in directories and namespace-mapped directories,
//     using the `m{ymd}_{His}_{name}` and `M{ymdHis}{Name}` naming conventions.
//   - Tracks migration history in a dedicated database table.
//   - Applies pending migrations oldest first, and reverts applied ones most
//     recent first, stopping at the first failure.
package migrate
