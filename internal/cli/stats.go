package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

type StatsCmd struct {
	JSON bool `help:"Print the snapshot as JSON."`
}

func (c *StatsCmd) Run(ctx *Context) error {
	svc, err := ctx.Service()
	if err != nil {
		return err
	}
	snap, err := svc.Snapshot(ctx.Ctx())
	if err != nil {
		return fmt.Errorf("failed to compute stats: %w", err)
	}

	if c.JSON {
		jsonBytes, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal stats: %w", err)
		}
		ctx.println(string(jsonBytes))
		return nil
	}

	level := fmt.Sprintf("%d", snap.Level)
	if snap.NextLevelXP > 0 {
		level = fmt.Sprintf("%d (%d XP to level %d)", snap.Level, snap.NextLevelXP-snap.TotalXP, snap.Level+1)
	}
	rows := [][2]string{
		{"Total XP", fmt.Sprint(snap.TotalXP)},
		{"Level", level},
		{"Notes", fmt.Sprint(snap.NotesCount)},
		{"Quizzes taken", fmt.Sprint(snap.QuizzesTaken)},
		{"Sessions", fmt.Sprintf("%d (%d pomodoros)", snap.SessionsCompleted, snap.PomodorosCompleted)},
		{"Study time", (time.Duration(snap.StudySeconds) * time.Second).String()},
		{"Longest streak", fmt.Sprintf("%d days", snap.LongestStreakDays)},
	}

	ctx.println(titleStyle.Render("Study progress"))
	for _, r := range rows {
		ctx.println(lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(r[0]), r[1]))
	}

	ctx.println()
	if len(snap.Badges) == 0 {
		ctx.println(mutedStyle.Render("No badges yet."))
		return nil
	}
	names := make(map[string]string, len(ctx.Config.Badges))
	for _, b := range ctx.Config.Badges {
		names[b.ID] = b.Name
	}
	badges := make([]string, 0, len(snap.Badges))
	for _, id := range snap.Badges {
		name := names[id]
		if name == "" {
			name = id
		}
		badges = append(badges, badgeStyle.Render(name))
	}
	ctx.println(labelStyle.Render("Badges") + strings.Join(badges, " "))
	return nil
}
