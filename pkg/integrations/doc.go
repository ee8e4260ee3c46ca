// Package integrations provides the HTTP plumbing for rootline's backend
// clients.
//
// # Overview
//
// The genealogy backend is reached through the [backend] subpackage. This
// package holds what any such client needs:
//
//   - [Client]: GET, JSON POST and multipart upload with default headers
//   - response caching via [cache.Cache], used for reference records only
//   - retry with backoff for network errors, 5xx and 429 responses
//   - sentinel errors for the HTTP statuses callers care about
//
// # Client Pattern
//
//	client := backend.NewClient(backend.Options{BaseURL: url, Token: token, Cache: c})
//	place, err := client.Place(ctx, "pl-7")
//
// [backend]: github.com/rootline/rootline/pkg/integrations/backend
// [cache.Cache]: github.com/rootline/rootline/pkg/cache.Cache
package integrations
