package notifier

import (
	"fmt"
	"html"

	"github.com/gdg-garage/sputnik-ledger/internal/models"
)

// bold renders emphasis in the markup of the channel: HTML for Telegram,
// Markdown for Discord.
func bold(channel Channel, s string) string {
	if channel == ChannelTelegram {
		return "<b>" + html.EscapeString(s) + "</b>"
	}
	return "**" + s + "**"
}

func plain(channel Channel, s string) string {
	if channel == ChannelTelegram {
		return html.EscapeString(s)
	}
	return s
}

func IssueMessage(channel Channel, award models.IssuedAchievement) string {
	return fmt.Sprintf("🏆 You received a new achievement %s! +%d points",
		bold(channel, award.Achievement.Name), award.Reward)
}

func CancelMessage(channel Channel, award models.IssuedAchievement) string {
	reason := ""
	if award.CancellationReason != nil {
		reason = *award.CancellationReason
	}
	canceler := ""
	if award.Canceler != nil {
		canceler = award.Canceler.FullName()
	}
	return fmt.Sprintf("🚩 Unfortunately, the achievement %s was canceled. Reason: %s\nCanceled by: %s",
		bold(channel, award.Achievement.Name), bold(channel, reason), plain(channel, canceler))
}

func AnnouncementMessage(award models.IssuedAchievement) string {
	return fmt.Sprintf("🎉 **Achievement Unlocked**\n**Student:** %s\n**Achievement:** %s (%s)\n**Reward:** %d",
		award.Student.FullName(),
		award.Achievement.Name,
		award.Achievement.Rarity,
		award.Reward,
	)
}
