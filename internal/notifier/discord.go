package notifier

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/shopspring/decimal"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/config"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/logger"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/models"
)

// Notifier tells the organisers' channel about money and sign-ups.
type Notifier interface {
	NotifyRegistrationPaid(registration models.Registration) error
	NotifyBalancePaid(registration models.Registration, amount decimal.Decimal) error
	NotifyDonation(donation models.Donation) error
	NotifyCounsellors(pair models.CounsellorPair) error
}

type messageSender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type DiscordNotifier struct {
	session   messageSender
	channelID string
}

func NewDiscordNotifier(session *discordgo.Session, channelID string) *DiscordNotifier {
	return &DiscordNotifier{
		session:   session,
		channelID: channelID,
	}
}

// NewFromConfig opens a bot session when a token and channel are configured.
// It returns (nil, nil) when Discord notifications are not set up.
func NewFromConfig(cfg *config.Config) (*DiscordNotifier, error) {
	if cfg.DiscordBotToken == "" || cfg.DiscordNotificationsChannelID == "" {
		return nil, nil
	}
	session, err := discordgo.New("Bot " + cfg.DiscordBotToken)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	return NewDiscordNotifier(session, cfg.DiscordNotificationsChannelID), nil
}

func (n *DiscordNotifier) NotifyRegistrationPaid(registration models.Registration) error {
	names := make([]string, 0, len(registration.Attendees))
	for _, a := range registration.Attendees {
		if !a.Archived {
			names = append(names, strings.TrimSpace(a.FirstName+" "+a.LastName))
		}
	}
	message := fmt.Sprintf("🏕️ **New Registration #%d**\n**Guardian:** %s (%s)\n**Campers:** %s\n**Paid:** $%s (%s, %s pricing)\n**Remaining:** $%s",
		registration.ID,
		registration.Guardian1.Name,
		registration.Guardian1.Email,
		strings.Join(names, ", "),
		registration.AmountPaid.String(),
		registration.PaymentType,
		registration.PricingType,
		registration.RemainingBalance().StringFixed(2),
	)
	return n.send(message)
}

func (n *DiscordNotifier) NotifyBalancePaid(registration models.Registration, amount decimal.Decimal) error {
	message := fmt.Sprintf("💵 **Balance Payment** for registration #%d\n**Guardian:** %s\n**Amount:** $%s\n**Total paid:** $%s",
		registration.ID,
		registration.Guardian1.Name,
		amount.StringFixed(2),
		registration.AmountPaid.String(),
	)
	return n.send(message)
}

func (n *DiscordNotifier) NotifyDonation(donation models.Donation) error {
	donor := donation.Name
	if donor == "" {
		donor = "Anonymous"
	}
	return n.send(fmt.Sprintf("🎁 **Donation** of $%s from %s", donation.Amount.String(), donor))
}

func (n *DiscordNotifier) NotifyCounsellors(pair models.CounsellorPair) error {
	message := fmt.Sprintf("🧑‍🤝‍🧑 **Counsellor Pair #%d**\n%s %s & %s %s",
		pair.ID,
		pair.Counsellor1.FirstName, pair.Counsellor1.LastName,
		pair.Counsellor2.FirstName, pair.Counsellor2.LastName,
	)
	if pair.PairingRequest != "" {
		message += fmt.Sprintf("\n**Pairing request:** %s", pair.PairingRequest)
	}
	return n.send(message)
}

func (n *DiscordNotifier) send(message string) error {
	if n.session == nil {
		return fmt.Errorf("discord session is nil")
	}
	if n.channelID == "" {
		return fmt.Errorf("discord channel ID is empty")
	}

	if _, err := n.session.ChannelMessageSend(n.channelID, message); err != nil {
		logger.Warnw("discord_notify_failed", "channel_id", n.channelID, "error", err)
		return err
	}
	return nil
}
