// Package timeline records the scheduler activity of a reactive.Runtime and
// persists it.
//
// A Recorder is a reactive.Instrumentation that keeps the most recent events
// of a session in a ring buffer and fans them out to live subscribers.
// Snapshots of the buffer are Timelines, which a Store persists:
//
//   - MemoryStore keeps timelines in process memory
//   - S3Store writes one JSON object per timeline under a key prefix
//   - RedisStore writes one key per timeline plus a sorted-set index
package timeline
