// Package pkg provides the core libraries for Rootline, a client for a
// collaborative genealogy backend.
//
// # Overview
//
// Rootline loads bounded family-tree traversals, marks people who appear more
// than once, and previews suggested profile edits against the current
// profile before a moderator decides them. The pkg directory is organized
// into three areas:
//
//  1. Domain logic: [tree], [suggest], [refs], [profile], [review]
//  2. Infrastructure: [cache], [session], [config], [observability]
//  3. External integrations: [integrations] and its backend client
//
// # Architecture
//
// The typical data flow for a tree:
//
//	Backend traversal (GET /api/tree/{ref})
//	         ↓
//	    [tree] package (graph, occurrence badges, hop cursor)
//	         ↓
//	    [render/familydot] package (Graphviz DOT, SVG, PDF, PNG)
//
// and for a suggestion:
//
//	Suggestion + current profile
//	         ↓
//	    [refs] package (place, cemetery and ethnicity names)
//	         ↓
//	    [suggest] package (merge, ordered diff rows)
//	         ↓
//	    [review] package (moderator decision + ledger)
//
// # Quick Start
//
// Load a tree and hop between the appearances of its root:
//
//	client, _ := backend.NewClient(backend.Options{BaseURL: url, Token: token})
//	view := tree.NewView(client, tree.WithUploader(client))
//	defer view.Close()
//
//	if err := view.Load(ctx, tree.Request{RootRef: "P-1024", Up: 3, Down: 3, MaxNodes: 500}); err != nil {
//	    return err
//	}
//	snap, _ := view.Render()
//	next, moved := view.Hop("P-1024")
//
// Preview a suggestion:
//
//	resolver := refs.NewResolver(client)
//	pv, _ := suggest.NewPreviewer(client, resolver).Open(ctx, *sug)
//	defer pv.Close()
//	_ = pv.Wait(ctx)
//	for _, row := range pv.State().Rows {
//	    fmt.Println(row.Field, row.Before, "→", row.After)
//	}
//
// # Main Packages
//
// [tree] - Adapts backend traversals into a renderable family graph. Repeated
// appearances of one person share an occurrence badge; the hop cursor cycles
// through them. Links to people outside the window are counted, not fatal.
//
// [suggest] - Merges a suggestion payload onto the current profile and
// produces the ordered list of changed fields, or a relation preview for
// family suggestions.
//
// [refs] - Concurrent lookups of place, cemetery and ethnicity names with
// per-session labels.
//
// [review] - Moderator decisions, recorded in a memory or MongoDB ledger.
//
// [cache] - File, Redis and null caches for reference records.
//
// [session] - Viewer identity and login sessions in files or Redis.
//
// [integrations] - HTTP plumbing with retry and a circuit breaker; the
// backend subpackage implements every endpoint rootline calls.
//
// # Testing
//
// Run tests:
//
//	go test ./pkg/...           # All tests
//	go test ./pkg/tree/...      # Specific package
//	go test -run Example ./...  # Examples only
//
// [tree]: https://pkg.go.dev/github.com/rootline/rootline/pkg/tree
// [suggest]: https://pkg.go.dev/github.com/rootline/rootline/pkg/suggest
// [refs]: https://pkg.go.dev/github.com/rootline/rootline/pkg/refs
// [profile]: https://pkg.go.dev/github.com/rootline/rootline/pkg/profile
// [review]: https://pkg.go.dev/github.com/rootline/rootline/pkg/review
// [cache]: https://pkg.go.dev/github.com/rootline/rootline/pkg/cache
// [session]: https://pkg.go.dev/github.com/rootline/rootline/pkg/session
// [config]: https://pkg.go.dev/github.com/rootline/rootline/pkg/config
// [observability]: https://pkg.go.dev/github.com/rootline/rootline/pkg/observability
// [integrations]: https://pkg.go.dev/github.com/rootline/rootline/pkg/integrations
// [render/familydot]: https://pkg.go.dev/github.com/rootline/rootline/pkg/render/familydot
package pkg
