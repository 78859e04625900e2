package slack

import (
	"fmt"
	"strings"

	"github.com/leaftrace/anomalyd/internal/database"
	"github.com/leaftrace/anomalyd/internal/events"
	"github.com/leaftrace/anomalyd/internal/utils"
)

const (
	maxTitleLength = 200
	maxNotesLength = 500
)

// FormatEvent renders an anomaly event as Slack mrkdwn
func FormatEvent(evt events.Event) string {
	var sb strings.Builder
	emoji := database.GetSeverityEmoji(evt.Severity)

	switch {
	case evt.Type == events.TypeStatusChanged && evt.Status == database.AnomalyStatusEscalated:
		sb.WriteString(fmt.Sprintf("%s *ESCALATED* (%s)\n", emoji, evt.Severity))
	case evt.Type == events.TypeAnomalyDetected:
		sb.WriteString(fmt.Sprintf("%s *%s anomaly detected*\n", emoji, strings.ToUpper(string(evt.Severity))))
	default:
		sb.WriteString(fmt.Sprintf("%s *%s*\n", emoji, evt.Type))
	}

	sb.WriteString(fmt.Sprintf("*%s*\n", utils.TruncateText(evt.Title, maxTitleLength)))
	sb.WriteString(fmt.Sprintf("Type: `%s`", evt.AnomalyType))
	if evt.AffectedResourceType != "" {
		sb.WriteString(fmt.Sprintf(" | Resource: %s `%s`", evt.AffectedResourceType, evt.AffectedResourceID))
	}
	sb.WriteString("\n")

	if evt.Notes != "" {
		sb.WriteString(fmt.Sprintf("\n*Reason*\n%s\n", utils.TruncateText(evt.Notes, maxNotesLength)))
	}
	if evt.PerformedBy != "" && evt.PerformedBy != "system" {
		sb.WriteString(fmt.Sprintf("\n_by %s_", evt.PerformedBy))
	}
	sb.WriteString(fmt.Sprintf("\nAnomaly ID: `%s`", evt.AnomalyID))

	return sb.String()
}
