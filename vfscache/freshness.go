package vfscache

import "time"

// isFresh implements spec.md §4.1's freshness rule, grounded on isFresh in
// the original client utility: an entry validated within the last
// cacheInterval is trusted outright; otherwise it is trusted only if the
// local cache file's mtime still equals the server's.
func (m *Manager) isFresh(path string, h *fileHandle) bool {
	if time.Since(h.validatedAt) < m.interval {
		return true
	}

	localInfo, err := h.local.Stat()
	if err != nil {
		return false
	}

	st, status, err := m.remote.Getattr(path)
	if err != nil || status < 0 {
		return false
	}

	return localInfo.ModTime().Unix() == st.Mtime.Sec
}

// markValidated records that path's handle was just reconciled with the
// server, restarting its freshness window (the original's updateTc).
func (m *Manager) markValidated(h *fileHandle) {
	h.validatedAt = time.Now()
}
