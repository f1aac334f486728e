// Package perceptiontoolkit is the orchestration core of an AR perception
// system: it maintains a catalog of artifacts (detection targets paired with
// displayable content), reacts to detection events, and enriches results with
// metadata fetched from the pages they reference.
//
// # Architecture
//
// Detection subsystems (barcode scanners, image trackers, geolocation) are
// external. They feed events into the engine, which coordinates:
//
//   - artifact: catalog types, the in-memory store, and the HTTP loader for
//     JSON catalogs and pages embedding artifact script blocks
//   - nearby: the dealer tracking which artifacts are currently relevant,
//     producing found/lost deltas per event
//   - fetch: the policy gate, HTTP fetcher, and caching resolver that turn
//     content URLs into structured records
//   - pagemeta: the default extractor building records from page titles and
//     metadata tags
//   - enrich: the step upgrading under-populated found-artifact content from
//     resolved records
//   - engine: the coordinator wiring the above and fanning deltas out to
//     sinks
//
// Outer surfaces live in gateway (websocket event transport), output/natspub
// (NATS delta publishing), and cmd/perceptd (the daemon).
//
// Content fetching is strictly opt-in: nothing is fetched unless an absolute
// http(s) URL passes the configured policy, and every fetch failure degrades
// silently to unenriched content.
package perceptiontoolkit
