// ABOUTME: TUI update helpers for server
// ABOUTME: Functions to send server state updates to TUI
package server

import "sort"

// Status returns the current server state
func (s *Server) Status() ServerStatus {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	clients := make([]ClientInfo, 0, len(s.clients))
	for _, client := range s.clients {
		client.mu.RLock()
		stream := client.stream
		client.mu.RUnlock()

		info := ClientInfo{
			Name:  client.Name,
			ID:    client.ID,
			State: "idle",
		}
		if stream != nil {
			info.State = "streaming"
			info.Stream = stream.Stats()
			info.LastText = info.Stream.LastText
		}
		clients = append(clients, info)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].Name < clients[j].Name })

	return ServerStatus{
		Name:    s.config.Name,
		Port:    s.config.Port,
		Engine:  s.config.EngineName,
		Clients: clients,
	}
}

// updateTUI sends current server state to TUI
func (s *Server) updateTUI() {
	if s.tui == nil {
		return
	}
	s.tui.Update(s.Status())
}
