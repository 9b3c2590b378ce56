package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/dd0wney/cluso-graphmetrics/pkg/engine"
)

// maxCommunityRows bounds the community size listing
const maxCommunityRows = 10

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF00FF"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FFFF"))

	statsBoxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FF00")).
			Padding(0, 1)

	rankBoxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#FFFF00")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Width(14)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)
)

type communitySize struct {
	id   int
	size int
}

// communitySizes returns communities largest first, ties by id
func communitySizes(assignment map[string]int) []communitySize {
	counts := make(map[int]int)
	for _, c := range assignment {
		counts[c]++
	}
	sizes := make([]communitySize, 0, len(counts))
	for id, n := range counts {
		sizes = append(sizes, communitySize{id: id, size: n})
	}
	sort.Slice(sizes, func(i, j int) bool {
		if sizes[i].size != sizes[j].size {
			return sizes[i].size > sizes[j].size
		}
		return sizes[i].id < sizes[j].id
	})
	return sizes
}

func row(label, value string) string {
	return labelStyle.Render(label) + value
}

// renderSummary formats a result for the terminal
func renderSummary(res *engine.Result, runner string, elapsed time.Duration) string {
	var stats []string
	stats = append(stats, headerStyle.Render("Graph"))
	if s := res.Stats; s != nil {
		stats = append(stats,
			row("nodes", strconv.Itoa(s.Nodes)),
			row("links", strconv.Itoa(s.Links)),
		)
		if s.DroppedLinks > 0 {
			stats = append(stats, row("dropped", warnStyle.Render(strconv.Itoa(s.DroppedLinks))))
		}
	} else {
		stats = append(stats, row("nodes", strconv.Itoa(len(res.NodeMetrics))))
	}

	sizes := communitySizes(res.Communities)
	stats = append(stats,
		"",
		headerStyle.Render("Communities"),
		row("count", strconv.Itoa(len(sizes))),
		row("modularity", strconv.FormatFloat(res.ModularityQ, 'f', 4, 64)),
	)
	if s := res.Stats; s != nil {
		converged := "yes"
		if !s.CentralityConverged {
			converged = warnStyle.Render("no")
		}
		stats = append(stats,
			row("passes", strconv.Itoa(s.LocalMovePasses)),
			"",
			headerStyle.Render("Centrality"),
			row("iterations", strconv.Itoa(s.PowerIterations)),
			row("converged", converged),
		)
	}

	var ranking []string
	ranking = append(ranking, headerStyle.Render("Top eigenvector"))
	if len(res.TopEigenvector) == 0 {
		ranking = append(ranking, "(none)")
	}
	for i, n := range res.TopEigenvector {
		ranking = append(ranking, fmt.Sprintf("%2d. %-20s %.4f", i+1, n.ID, n.Score))
	}
	ranking = append(ranking, "", headerStyle.Render("Largest communities"))
	for i, c := range sizes {
		if i == maxCommunityRows {
			ranking = append(ranking, fmt.Sprintf("... %d more", len(sizes)-maxCommunityRows))
			break
		}
		ranking = append(ranking, fmt.Sprintf("#%-6d %d nodes", c.id, c.size))
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		statsBoxStyle.Render(strings.Join(stats, "\n")),
		rankBoxStyle.Render(strings.Join(ranking, "\n")),
	)
	title := titleStyle.Render(fmt.Sprintf("graphmetrics  %s  %s", runner, elapsed.Round(time.Millisecond)))
	return lipgloss.JoinVertical(lipgloss.Left, title, body)
}
