package fallback

import "time"

// mockSnapshot is the fixed dataset served when both the realtime channel
// and polling are down. It is deliberately generic placeholder content; the
// Source label tells the UI to render it as unavailable-state filler, never
// as truth.
func mockSnapshot() Snapshot {
	now := time.Now()
	return Snapshot{
		Source:    "mock",
		FetchedAt: now,
		Bays: []BayStatus{
			{BayID: "bay-1", Status: BayAvailable, UpdatedAt: now.UnixMilli()},
			{BayID: "bay-2", Status: BayAvailable, UpdatedAt: now.UnixMilli()},
			{BayID: "bay-3", Status: BayMaintenance, UpdatedAt: now.UnixMilli()},
		},
		Queue: []QueueEntry{},
	}
}
