package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const refreshInterval = 5 * time.Second

var httpClient = &http.Client{Timeout: 10 * time.Second}

// fetchRunsCmd polls the server's runs endpoint.
func fetchRunsCmd(serverURL string) tea.Cmd {
	return func() tea.Msg {
		resp, err := httpClient.Get(serverURL + "/api/v1/runs?limit=100")
		if err != nil {
			return runsLoadedMsg{err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return runsLoadedMsg{err: fmt.Errorf("server returned %s", resp.Status)}
		}

		var runs []run
		if err := json.NewDecoder(resp.Body).Decode(&runs); err != nil {
			return runsLoadedMsg{err: fmt.Errorf("could not decode runs: %w", err)}
		}
		return runsLoadedMsg{runs: runs}
	}
}

// refreshTickCmd schedules the next poll.
func refreshTickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return refreshTickMsg(t)
	})
}
