package tui

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"coopsched/internal/sched"
)

// HTTPStats returns a StatsFunc that reads GET /api/v1/stats from baseURL.
func HTTPStats(baseURL string, client *http.Client) StatsFunc {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	url := strings.TrimRight(baseURL, "/") + "/api/v1/stats"
	return func() (sched.Stats, error) {
		resp, err := client.Get(url)
		if err != nil {
			return sched.Stats{}, err
		}
		defer resp.Body.Close()

		var env struct {
			Status string      `json:"status"`
			Data   sched.Stats `json:"data"`
			Error  *struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			return sched.Stats{}, fmt.Errorf("decode stats: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			if env.Error != nil {
				return sched.Stats{}, fmt.Errorf("stats: %s", env.Error.Message)
			}
			return sched.Stats{}, fmt.Errorf("stats: unexpected status %s", resp.Status)
		}
		return env.Data, nil
	}
}
