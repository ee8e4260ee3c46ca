// Package backend is the HTTP client for the genealogy backend API.
//
// One [Client] serves every consumer in rootline:
//
//   - [tree.Fetcher] and [tree.PictureUploader] for tree views
//   - [refs.Lookup] for place, cemetery and ethnicity labels
//   - [suggest.Backend] for suggestion previews
//   - [review.Backend] for moderation decisions
//
// Reference records are cached through the configured [cache.Cache] since
// they rarely change. Traversals, profiles and suggestions always go to the
// backend.
//
// Transport errors are translated to rootline error codes, so callers can
// test them with [errors.Is] from the rootline errors package:
//
//	_, err := client.FetchSnapshot(ctx, "P-12")
//	if rlerrors.Is(err, rlerrors.ErrCodeProfileNotFound) {
//		...
//	}
package backend
