package installation

import (
	"fmt"
	"log/slog"
	"time"
)

// TeamMapping routes events for a Slack team to the instance that serves it.
type TeamMapping struct {
	TeamID      string
	TeamName    string
	Domain      string
	InstanceID  int64
	BotToken    string
	InstalledAt time.Time
}

// String omits the bot token so mappings are safe to print.
func (m TeamMapping) String() string {
	return fmt.Sprintf("TeamMapping{team=%s name=%q domain=%s instance=%d}", m.TeamID, m.TeamName, m.Domain, m.InstanceID)
}

// LogValue implements slog.LogValuer without the bot token.
func (m TeamMapping) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("team_id", m.TeamID),
		slog.String("team_name", m.TeamName),
		slog.String("domain", m.Domain),
		slog.Int64("instance_id", m.InstanceID),
	)
}
