package tickets

import (
	"errors"

	"github.com/bwmarrin/discordgo"
)

// Session is the slice of the Discord session the ticket system talks to.
// *discordgo.Session satisfies it; tests substitute a mock.
type Session interface {
	// Channel gets a channel by ID.
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)

	// GuildChannelCreateComplex creates a channel in a guild.
	GuildChannelCreateComplex(guildID string, data discordgo.GuildChannelCreateData, options ...discordgo.RequestOption) (*discordgo.Channel, error)

	// ChannelDelete deletes a channel.
	ChannelDelete(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)

	// ChannelMessageSendComplex sends a message to a channel.
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)

	// ChannelMessageDelete deletes a message.
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error

	// ChannelPermissionSet sets a permission overwrite on a channel.
	ChannelPermissionSet(channelID, targetID string, targetType discordgo.PermissionOverwriteType, allow, deny int64, options ...discordgo.RequestOption) error

	// ChannelPermissionDelete removes a permission overwrite from a channel.
	ChannelPermissionDelete(channelID, targetID string, options ...discordgo.RequestOption) error
}

// isUnknownChannel reports whether err is Discord telling us the channel no
// longer exists. Those failures are treated as already-done.
func isUnknownChannel(err error) bool {
	restErr := new(discordgo.RESTError)
	if !errors.As(err, &restErr) {
		return false
	}
	return restErr.Message != nil && restErr.Message.Code == discordgo.ErrCodeUnknownChannel
}
