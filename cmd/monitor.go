package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"
	"github.com/urfave/cli/v2"

	"github.com/bayline/shop-sync-service/internal/domain/model"
)

func monitorCmd() *cli.Command {
	return &cli.Command{
		Name:    "monitor",
		Aliases: []string{"m"},
		Usage:   "Terminal dashboard over a running server's /stats endpoint",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Base URL of the server",
				Value: "http://localhost:8090",
			},
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "Refresh interval",
				Value: 2 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			return runMonitor(c.String("addr"), c.Duration("interval"))
		},
	}
}

func runMonitor(addr string, interval time.Duration) error {
	if err := ui.Init(); err != nil {
		return fmt.Errorf("monitor: init terminal: %w", err)
	}
	defer ui.Close()

	header := widgets.NewParagraph()
	header.Title = " shop-sync monitor "
	header.SetRect(0, 0, 80, 5)

	connGauge := widgets.NewGauge()
	connGauge.Title = " connections (of 500 shown) "
	connGauge.SetRect(0, 5, 80, 8)

	roomTable := widgets.NewTable()
	roomTable.Title = " rooms "
	roomTable.RowSeparator = false
	roomTable.SetRect(0, 8, 80, 24)

	client := &http.Client{Timeout: 5 * time.Second}
	refresh := func() {
		stats, err := fetchStats(client, addr)
		if err != nil {
			header.Text = fmt.Sprintf("addr: %s\nUNREACHABLE: %v", addr, err)
			ui.Render(header)
			return
		}

		header.Text = fmt.Sprintf(
			"addr: %s\nuptime: %s   rooms: %d   connections: %d   dropped events: %d",
			addr, stats.Uptime.Truncate(time.Second),
			stats.TotalRooms, stats.TotalConnections, stats.DroppedEvents,
		)

		pct := stats.TotalConnections * 100 / 500
		if pct > 100 {
			pct = 100
		}
		connGauge.Percent = pct

		rows := [][]string{{"room", "members", "queued"}}
		for _, r := range stats.Rooms {
			rows = append(rows, []string{
				r.RoomKey,
				fmt.Sprintf("%d", r.Members),
				fmt.Sprintf("%d", r.QueuedDepth),
			})
		}
		roomTable.Rows = rows

		ui.Render(header, connGauge, roomTable)
	}

	refresh()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	events := ui.PollEvents()
	for {
		select {
		case e := <-events:
			switch e.ID {
			case "q", "<C-c>":
				return nil
			case "<Resize>":
				refresh()
			}
		case <-ticker.C:
			refresh()
		}
	}
}

func fetchStats(client *http.Client, addr string) (model.HubStats, error) {
	resp, err := client.Get(addr + "/stats")
	if err != nil {
		return model.HubStats{}, err
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return model.HubStats{}, fmt.Errorf("status %d", resp.StatusCode)
	}

	var stats model.HubStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return model.HubStats{}, err
	}
	return stats, nil
}
